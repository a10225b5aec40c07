package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Service interface {
	// Ensure returns the client for contact.Email, creating it when absent, and
	// associates it with consultantID if it has no consultant yet. It runs on db
	// so callers can include it in their own transaction.
	Ensure(ctx context.Context, db *gorm.DB, contact Contact, consultantID *snowflake.ID) (*Client, error)
}
