package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/kycfabric/gateway/internal/domain"
)

var (
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrUserNotFound        = errors.New("user not found")
)

// Service owns all movements on user credit balances. Every movement is a
// ledger row plus a mirrored update of users.credits, applied atomically.
type Service struct {
	db      *pgxpool.Pool
	pricing map[string]float64
	log     *logrus.Logger
}

func NewService(db *pgxpool.Pool, pricing map[string]float64, log *logrus.Logger) *Service {
	return &Service{db: db, pricing: pricing, log: log}
}

// Price returns the per-call cost for a service tag. Unknown tags cost
// nothing, so a misconfigured price table fails open rather than blocking
// verifications.
func (s *Service) Price(service string) float64 {
	return s.pricing[service]
}

// Balance returns the user's current credit balance.
func (s *Service) Balance(ctx context.Context, userID string) (float64, error) {
	var credits float64
	err := s.db.QueryRow(ctx, "SELECT credits FROM users WHERE id = $1", userID).Scan(&credits)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrUserNotFound
	}
	if err != nil {
		return 0, err
	}
	return credits, nil
}

// CheckEligible reports whether the user can afford one call of the given
// service at its current price.
func (s *Service) CheckEligible(ctx context.Context, userID, service string) (bool, error) {
	balance, err := s.Balance(ctx, userID)
	if err != nil {
		return false, err
	}
	return balance >= s.Price(service), nil
}

// DeductCredits charges one call of the given service against the user.
func (s *Service) DeductCredits(ctx context.Context, userID, service, description string) (*domain.LedgerTransaction, error) {
	return s.apply(ctx, userID, service, -s.Price(service), description)
}

// IncreaseCredits tops up the user's balance, typically after a purchase.
func (s *Service) IncreaseCredits(ctx context.Context, userID string, amount float64, description string) (*domain.LedgerTransaction, error) {
	return s.apply(ctx, userID, domain.LedgerTypeCredit, amount, description)
}

func (s *Service) apply(ctx context.Context, userID, txnType string, amount float64, description string) (*domain.LedgerTransaction, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// 1. Lock the user row so concurrent movements serialize on the balance.
	var current float64
	err = tx.QueryRow(ctx, "SELECT credits FROM users WHERE id = $1 FOR UPDATE", userID).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock user: %w", err)
	}

	// 2. Reject overdrafts before writing anything.
	if amount < 0 && current < -amount {
		return nil, ErrInsufficientCredits
	}
	newBalance := current + amount

	// 3. Record the movement with the post-transaction balance.
	txn := &domain.LedgerTransaction{
		ID:          uuid.NewString(),
		UserID:      userID,
		Type:        txnType,
		Amount:      amount,
		Description: description,
		Balance:     newBalance,
	}
	err = tx.QueryRow(ctx,
		`INSERT INTO ledger_transactions (id, user_id, type, amount, description, balance)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at, updated_at`,
		txn.ID, txn.UserID, txn.Type, txn.Amount, txn.Description, txn.Balance,
	).Scan(&txn.CreatedAt, &txn.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert ledger transaction: %w", err)
	}

	// 4. Mirror the new balance onto the user for cheap eligibility reads.
	_, err = tx.Exec(ctx,
		"UPDATE users SET credits = $1, updated_at = now() WHERE id = $2", newBalance, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to update user balance: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"user_id": userID,
		"type":    txnType,
		"amount":  amount,
		"balance": newBalance,
	}).Info("ledger transaction applied")

	return txn, nil
}

// History returns the user's ledger rows, newest first.
func (s *Service) History(ctx context.Context, userID string, limit int) ([]domain.LedgerTransaction, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, user_id, type, amount, description, balance, created_at, updated_at
		 FROM ledger_transactions WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txns []domain.LedgerTransaction
	for rows.Next() {
		var t domain.LedgerTransaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Type, &t.Amount, &t.Description,
			&t.Balance, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

// ServiceUsageCounts tallies ledger activity per service over the last 30 days.
func (s *Service) ServiceUsageCounts(ctx context.Context, userID string) (map[string]int, error) {
	rows, err := s.db.Query(ctx,
		`SELECT type, COUNT(*) FROM ledger_transactions
		 WHERE user_id = $1 AND created_at >= now() - interval '30 days'
		 GROUP BY type`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var svc string
		var n int
		if err := rows.Scan(&svc, &n); err != nil {
			return nil, err
		}
		counts[svc] = n
	}
	return counts, rows.Err()
}

// DailyStat is one day of usage for a single service.
type DailyStat struct {
	Date        string  `json:"date"`
	Count       int     `json:"count"`
	TotalAmount float64 `json:"total_amount"`
}

// WeeklyServiceStats returns per-day usage of one service over the last
// 7 days, oldest first. TotalAmount is reported as spend, so deductions
// come back positive.
func (s *Service) WeeklyServiceStats(ctx context.Context, userID, service string) ([]DailyStat, error) {
	rows, err := s.db.Query(ctx,
		`SELECT to_char(created_at, 'YYYY-MM-DD') AS day, COUNT(*), SUM(amount)
		 FROM ledger_transactions
		 WHERE user_id = $1 AND type = $2 AND created_at >= now() - interval '7 days'
		 GROUP BY day ORDER BY day`, userID, service)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []DailyStat
	for rows.Next() {
		var st DailyStat
		if err := rows.Scan(&st.Date, &st.Count, &st.TotalAmount); err != nil {
			return nil, err
		}
		st.TotalAmount = math.Abs(st.TotalAmount)
		stats = append(stats, st)
	}
	return stats, rows.Err()
}
