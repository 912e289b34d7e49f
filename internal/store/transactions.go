package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/kycfabric/gateway/internal/domain"
)

const verificationColumns = `id, user_id, api_name, provider_name, transaction_details,
	provider_request, provider_response, status, http_status_code, message, is_cached,
	tat, created_at, updated_at`

func scanVerification(row pgx.Row) (*domain.VerificationTransaction, error) {
	var t domain.VerificationTransaction
	var provider, status string
	err := row.Scan(&t.ID, &t.UserID, &t.APIName, &provider, &t.TransactionDetails,
		&t.ProviderRequest, &t.ProviderResponse, &status, &t.HTTPStatusCode, &t.Message,
		&t.IsCached, &t.TAT, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	t.ProviderName = domain.Provider(provider)
	t.Status = domain.Status(status)
	return &t, nil
}

// InsertVerification writes the initial placeholder row for an attempt.
func (s *Store) InsertVerification(ctx context.Context, t *domain.VerificationTransaction) error {
	err := s.Db.QueryRow(ctx,
		`INSERT INTO verification_transactions
		 (id, user_id, api_name, provider_name, transaction_details, provider_request,
		  provider_response, status, http_status_code, message, is_cached, tat)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING created_at, updated_at`,
		t.ID, t.UserID, t.APIName, string(t.ProviderName), t.TransactionDetails,
		t.ProviderRequest, t.ProviderResponse, string(t.Status), t.HTTPStatusCode,
		t.Message, t.IsCached, t.TAT,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("unable to insert verification transaction: %w", err)
	}
	return nil
}

// UpdateVerification overwrites the mutable outcome fields of a placeholder.
func (s *Store) UpdateVerification(ctx context.Context, t *domain.VerificationTransaction) error {
	err := s.Db.QueryRow(ctx,
		`UPDATE verification_transactions SET
		   provider_name = $1, transaction_details = $2, provider_request = $3,
		   provider_response = $4, status = $5, http_status_code = $6, message = $7,
		   is_cached = $8, tat = $9, updated_at = now()
		 WHERE id = $10
		 RETURNING updated_at`,
		string(t.ProviderName), t.TransactionDetails, t.ProviderRequest, t.ProviderResponse,
		string(t.Status), t.HTTPStatusCode, t.Message, t.IsCached, t.TAT, t.ID,
	).Scan(&t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("unable to update verification transaction: %w", err)
	}
	return nil
}

// GetVerification retrieves a single transaction by ID.
func (s *Store) GetVerification(ctx context.Context, id string) (*domain.VerificationTransaction, error) {
	return scanVerification(s.Db.QueryRow(ctx,
		`SELECT `+verificationColumns+` FROM verification_transactions WHERE id = $1`, id))
}

// ListVerifications returns a user's attempts, newest first.
func (s *Store) ListVerifications(ctx context.Context, userID string, limit int) ([]domain.VerificationTransaction, error) {
	rows, err := s.Db.Query(ctx,
		`SELECT `+verificationColumns+` FROM verification_transactions
		 WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txns []domain.VerificationTransaction
	for rows.Next() {
		t, err := scanVerification(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, *t)
	}
	return txns, rows.Err()
}

// FindCachedVerification returns the newest transaction matching the filter,
// or (nil, nil) when nothing usable exists. Only rows that captured a
// provider response qualify; identifier fields match against the stored
// transaction_details document.
func (s *Store) FindCachedVerification(ctx context.Context, f domain.TransactionFilter) (*domain.VerificationTransaction, error) {
	if len(f.Fields) == 0 || len(f.Statuses) == 0 {
		return nil, nil
	}

	statuses := make([]string, len(f.Statuses))
	for i, st := range f.Statuses {
		statuses[i] = string(st)
	}

	conds := []string{"api_name = $1", "status = ANY($2)", "provider_response IS NOT NULL"}
	args := []any{f.APIName, statuses}

	fieldConds := make([]string, 0, len(f.Fields))
	for _, field := range f.Fields {
		args = append(args, field.Name, field.Value)
		fieldConds = append(fieldConds,
			fmt.Sprintf("transaction_details->>$%d = $%d", len(args)-1, len(args)))
	}
	joiner := " AND "
	if f.MatchAny {
		joiner = " OR "
	}
	conds = append(conds, "("+strings.Join(fieldConds, joiner)+")")

	query := `SELECT ` + verificationColumns + ` FROM verification_transactions
		 WHERE ` + strings.Join(conds, " AND ") + `
		 ORDER BY created_at DESC LIMIT 1`

	t, err := scanVerification(s.Db.QueryRow(ctx, query, args...))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache lookup failed: %w", err)
	}
	return t, nil
}
