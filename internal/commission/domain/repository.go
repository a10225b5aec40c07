package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ListFilter struct {
	ConsultantID *snowflake.ID
	Month        int
	Year         int
	Status       Status
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, c *Commission) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Commission, error)
	FindByOrderID(ctx context.Context, db *gorm.DB, orderID snowflake.ID) (*Commission, error)
	// ListByConsultantAndRange returns commissions whose order date is in [from, to), in insertion order.
	ListByConsultantAndRange(ctx context.Context, db *gorm.DB, consultantID snowflake.ID, from, to time.Time) ([]Commission, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]Commission, error)
	Transition(ctx context.Context, db *gorm.DB, id snowflake.ID, from []Status, to Status, at time.Time) (bool, error)
}
