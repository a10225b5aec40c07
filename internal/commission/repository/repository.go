package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/atelier/internal/commission/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const selectColumns = `SELECT id, consultant_id, order_id, client_id, order_amount, commission_rate, commission_amount,
	status, reference_month, reference_year, order_date, created_at, approved_at, paid_at, cancelled_at, updated_at
	FROM commissions`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, c *domain.Commission) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO commissions (id, consultant_id, order_id, client_id, order_amount, commission_rate, commission_amount,
			status, reference_month, reference_year, order_date, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID,
		c.ConsultantID,
		c.OrderID,
		c.ClientID,
		c.OrderAmount,
		c.CommissionRate,
		c.CommissionAmount,
		c.Status,
		c.ReferenceMonth,
		c.ReferenceYear,
		c.OrderDate,
		c.CreatedAt,
		c.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Commission, error) {
	return r.findOne(ctx, db, selectColumns+` WHERE id = ? LIMIT 1`, id)
}

func (r *repo) FindByOrderID(ctx context.Context, db *gorm.DB, orderID snowflake.ID) (*domain.Commission, error) {
	return r.findOne(ctx, db, selectColumns+` WHERE order_id = ? LIMIT 1`, orderID)
}

func (r *repo) ListByConsultantAndRange(ctx context.Context, db *gorm.DB, consultantID snowflake.ID, from, to time.Time) ([]domain.Commission, error) {
	var items []domain.Commission
	err := db.WithContext(ctx).Raw(
		selectColumns+` WHERE consultant_id = ? AND order_date >= ? AND order_date < ?
		 ORDER BY created_at ASC, id ASC`,
		consultantID,
		from,
		to,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]domain.Commission, error) {
	var (
		where []string
		args  []any
	)
	if filter.ConsultantID != nil {
		where = append(where, "consultant_id = ?")
		args = append(args, *filter.ConsultantID)
	}
	if filter.Month > 0 {
		where = append(where, "reference_month = ?")
		args = append(args, filter.Month)
	}
	if filter.Year > 0 {
		where = append(where, "reference_year = ?")
		args = append(args, filter.Year)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}

	query := selectColumns
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at ASC, id ASC"

	var items []domain.Commission
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) Transition(ctx context.Context, db *gorm.DB, id snowflake.ID, from []domain.Status, to domain.Status, at time.Time) (bool, error) {
	if len(from) == 0 {
		return false, nil
	}
	column := ""
	switch to {
	case domain.StatusApproved:
		column = "approved_at"
	case domain.StatusPaid:
		column = "paid_at"
	case domain.StatusCancelled:
		column = "cancelled_at"
	default:
		return false, domain.ErrInvalidStatus
	}
	res := db.WithContext(ctx).Exec(
		`UPDATE commissions SET status = ?, `+column+` = ?, updated_at = ?
		 WHERE id = ? AND status IN ?`,
		to,
		at,
		at,
		id,
		from,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, query string, args ...any) (*domain.Commission, error) {
	var c domain.Commission
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&c).Error; err != nil {
		return nil, err
	}
	if c.ID == 0 {
		return nil, nil
	}
	return &c, nil
}
