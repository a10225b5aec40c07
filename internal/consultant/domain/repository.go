package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, c *Consultant) error
	Update(ctx context.Context, db *gorm.DB, c *Consultant) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Consultant, error)
	FindByCode(ctx context.Context, db *gorm.DB, code string) (*Consultant, error)
	FindActiveByCode(ctx context.Context, db *gorm.DB, code string) (*Consultant, error)
	ListReportable(ctx context.Context, db *gorm.DB) ([]Consultant, error)
}
