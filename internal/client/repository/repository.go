package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/atelier/internal/client/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const selectColumns = `SELECT id, consultant_id, name, email, phone, first_associated_at, created_at, updated_at FROM clients`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, c *domain.Client) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO clients (id, consultant_id, name, email, phone, first_associated_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID,
		c.ConsultantID,
		c.Name,
		c.Email,
		c.Phone,
		c.FirstAssociatedAt,
		c.CreatedAt,
		c.UpdatedAt,
	).Error
}

func (r *repo) FindByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.Client, error) {
	var c domain.Client
	err := db.WithContext(ctx).Raw(selectColumns+` WHERE email = ? LIMIT 1`, email).Scan(&c).Error
	if err != nil {
		return nil, err
	}
	if c.ID == 0 {
		return nil, nil
	}
	return &c, nil
}

func (r *repo) FindByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]domain.Client, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var items []domain.Client
	err := db.WithContext(ctx).Raw(selectColumns+` WHERE id IN ?`, ids).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) AssociateConsultant(ctx context.Context, db *gorm.DB, clientID, consultantID snowflake.ID, at time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE clients SET consultant_id = ?, first_associated_at = ?, updated_at = ?
		 WHERE id = ? AND consultant_id IS NULL`,
		consultantID,
		at,
		at,
		clientID,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) ListFirstAssociatedInRange(ctx context.Context, db *gorm.DB, consultantID snowflake.ID, from, to time.Time) ([]domain.Client, error) {
	var items []domain.Client
	err := db.WithContext(ctx).Raw(
		selectColumns+` WHERE consultant_id = ? AND first_associated_at >= ? AND first_associated_at < ?
		 ORDER BY first_associated_at ASC, id ASC`,
		consultantID,
		from,
		to,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
