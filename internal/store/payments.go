package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/kycfabric/gateway/internal/domain"
)

const paymentColumns = `id, user_id, order_id, total_amount, currency, credits_purchased,
	order_status, payment_status, payment_id, payment_link_id, short_url, provider_response,
	created_at, updated_at`

func scanPaymentOrder(row pgx.Row) (*domain.PaymentOrder, error) {
	var o domain.PaymentOrder
	err := row.Scan(&o.ID, &o.UserID, &o.OrderID, &o.TotalAmount, &o.Currency,
		&o.CreditsPurchased, &o.OrderStatus, &o.PaymentStatus, &o.PaymentID,
		&o.PaymentLinkID, &o.ShortURL, &o.ProviderResponse, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *Store) InsertPaymentOrder(ctx context.Context, o *domain.PaymentOrder) error {
	err := s.Db.QueryRow(ctx,
		`INSERT INTO payment_orders
		 (id, user_id, order_id, total_amount, currency, credits_purchased, order_status,
		  payment_status, payment_id, payment_link_id, short_url, provider_response)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING created_at, updated_at`,
		o.ID, o.UserID, o.OrderID, o.TotalAmount, o.Currency, o.CreditsPurchased,
		o.OrderStatus, o.PaymentStatus, o.PaymentID, o.PaymentLinkID, o.ShortURL,
		o.ProviderResponse,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("unable to insert payment order: %w", err)
	}
	return nil
}

func (s *Store) GetPaymentOrderByOrderID(ctx context.Context, orderID string) (*domain.PaymentOrder, error) {
	return scanPaymentOrder(s.Db.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payment_orders WHERE order_id = $1`, orderID))
}

func (s *Store) GetPaymentOrderByLinkID(ctx context.Context, linkID string) (*domain.PaymentOrder, error) {
	return scanPaymentOrder(s.Db.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payment_orders WHERE payment_link_id = $1`, linkID))
}

// ListPaymentOrders returns a user's orders, newest first.
func (s *Store) ListPaymentOrders(ctx context.Context, userID string, limit int) ([]domain.PaymentOrder, error) {
	rows, err := s.Db.Query(ctx,
		`SELECT `+paymentColumns+` FROM payment_orders
		 WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []domain.PaymentOrder
	for rows.Next() {
		o, err := scanPaymentOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

// MarkPaymentOrderPaid transitions an order to paid/captured exactly once.
// The returned bool reports whether this call performed the transition, so
// callers can credit the purchase without double-applying on webhook retries.
func (s *Store) MarkPaymentOrderPaid(ctx context.Context, orderID, paymentID string) (bool, error) {
	tag, err := s.Db.Exec(ctx,
		`UPDATE payment_orders SET
		   order_status = $1, payment_status = $2, payment_id = $3, updated_at = now()
		 WHERE order_id = $4 AND order_status <> $1`,
		domain.OrderStatusPaid, domain.PaymentStatusCaptured, paymentID, orderID)
	if err != nil {
		return false, fmt.Errorf("unable to mark order paid: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// UpdatePaymentOrderStatus records a non-terminal lifecycle change.
func (s *Store) UpdatePaymentOrderStatus(ctx context.Context, orderID, orderStatus, paymentStatus string) error {
	tag, err := s.Db.Exec(ctx,
		`UPDATE payment_orders SET order_status = $1, payment_status = $2, updated_at = now()
		 WHERE order_id = $3`,
		orderStatus, paymentStatus, orderID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
