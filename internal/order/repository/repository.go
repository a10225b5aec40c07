package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/atelier/internal/order/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const selectColumns = `SELECT id, client_id, customer_name, customer_email, customer_phone, channel,
	consultant_id, consultant_code, items, shipping_address, subtotal, shipping_fee, total, currency,
	payment_status, external_payment_reference, paid_at, created_at, updated_at
	FROM orders`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, o *domain.Order) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO orders (id, client_id, customer_name, customer_email, customer_phone, channel,
			consultant_id, consultant_code, items, shipping_address, subtotal, shipping_fee, total, currency,
			payment_status, external_payment_reference, paid_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID,
		o.ClientID,
		o.CustomerName,
		o.CustomerEmail,
		o.CustomerPhone,
		o.Channel,
		o.ConsultantID,
		o.ConsultantCode,
		o.Items,
		o.ShippingAddress,
		o.Subtotal,
		o.ShippingFee,
		o.Total,
		o.Currency,
		o.PaymentStatus,
		o.ExternalPaymentReference,
		o.PaidAt,
		o.CreatedAt,
		o.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Order, error) {
	return r.findOne(ctx, db, selectColumns+` WHERE id = ? LIMIT 1`, id)
}

func (r *repo) FindByExternalReference(ctx context.Context, db *gorm.DB, ref string) (*domain.Order, error) {
	return r.findOne(ctx, db, selectColumns+` WHERE external_payment_reference = ? LIMIT 1`, ref)
}

func (r *repo) TransitionStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from []domain.PaymentStatus, to domain.PaymentStatus, at time.Time) (bool, error) {
	if len(from) == 0 {
		return false, nil
	}
	query := `UPDATE orders SET payment_status = ?, updated_at = ? WHERE id = ? AND payment_status IN ?`
	args := []any{to, at, id, from}
	if to == domain.PaymentStatusPaid {
		query = `UPDATE orders SET payment_status = ?, updated_at = ?, paid_at = ? WHERE id = ? AND payment_status IN ?`
		args = []any{to, at, at, id, from}
	}
	res := db.WithContext(ctx).Exec(query, args...)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, query string, args ...any) (*domain.Order, error) {
	var o domain.Order
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&o).Error; err != nil {
		return nil, err
	}
	if o.ID == 0 {
		return nil, nil
	}
	return &o, nil
}
