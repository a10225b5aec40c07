package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, c *Client) error
	FindByEmail(ctx context.Context, db *gorm.DB, email string) (*Client, error)
	FindByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]Client, error)
	// AssociateConsultant links the client only when no consultant is linked yet.
	// It reports whether this call made the association.
	AssociateConsultant(ctx context.Context, db *gorm.DB, clientID, consultantID snowflake.ID, at time.Time) (bool, error)
	// ListFirstAssociatedInRange returns clients first associated with the consultant in [from, to).
	ListFirstAssociatedInRange(ctx context.Context, db *gorm.DB, consultantID snowflake.ID, from, to time.Time) ([]Client, error)
}
