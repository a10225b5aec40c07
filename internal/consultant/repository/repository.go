package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/atelier/internal/consultant/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const selectColumns = `SELECT id, name, email, code, status, commission_percentage, reports_enabled, created_at, updated_at FROM consultants`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, c *domain.Consultant) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO consultants (id, name, email, code, status, commission_percentage, reports_enabled, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID,
		c.Name,
		c.Email,
		c.Code,
		c.Status,
		c.CommissionPercentage,
		c.ReportsEnabled,
		c.CreatedAt,
		c.UpdatedAt,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, c *domain.Consultant) error {
	return db.WithContext(ctx).Exec(
		`UPDATE consultants
		 SET name = ?, email = ?, status = ?, commission_percentage = ?, reports_enabled = ?, updated_at = ?
		 WHERE id = ?`,
		c.Name,
		c.Email,
		c.Status,
		c.CommissionPercentage,
		c.ReportsEnabled,
		c.UpdatedAt,
		c.ID,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Consultant, error) {
	return r.findOne(ctx, db, selectColumns+` WHERE id = ? LIMIT 1`, id)
}

func (r *repo) FindByCode(ctx context.Context, db *gorm.DB, code string) (*domain.Consultant, error) {
	return r.findOne(ctx, db, selectColumns+` WHERE UPPER(code) = UPPER(?) LIMIT 1`, code)
}

func (r *repo) FindActiveByCode(ctx context.Context, db *gorm.DB, code string) (*domain.Consultant, error) {
	return r.findOne(ctx, db, selectColumns+` WHERE UPPER(code) = UPPER(?) AND status = ? LIMIT 1`, code, domain.StatusActive)
}

func (r *repo) ListReportable(ctx context.Context, db *gorm.DB) ([]domain.Consultant, error) {
	var items []domain.Consultant
	err := db.WithContext(ctx).Raw(
		selectColumns+` WHERE status = ? AND reports_enabled = ? ORDER BY created_at ASC, id ASC`,
		domain.StatusActive,
		true,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, query string, args ...any) (*domain.Consultant, error) {
	var c domain.Consultant
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&c).Error; err != nil {
		return nil, err
	}
	if c.ID == 0 {
		return nil, nil
	}
	return &c, nil
}
