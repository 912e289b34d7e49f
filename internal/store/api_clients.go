package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kycfabric/gateway/internal/domain"
)

const apiClientColumns = `id, user_id, client_id, hashed_secret, is_enabled, enabled_apis,
	created_at, updated_at`

func scanAPIClient(row pgx.Row) (*domain.APIClient, error) {
	var c domain.APIClient
	err := row.Scan(&c.ID, &c.UserID, &c.ClientID, &c.HashedSecret, &c.IsEnabled,
		&c.EnabledAPIs, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) InsertAPIClient(ctx context.Context, c *domain.APIClient) error {
	err := s.Db.QueryRow(ctx,
		`INSERT INTO api_clients (id, user_id, client_id, hashed_secret, is_enabled, enabled_apis)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at, updated_at`,
		c.ID, c.UserID, c.ClientID, c.HashedSecret, c.IsEnabled, c.EnabledAPIs,
	).Scan(&c.CreatedAt, &c.UpdatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("unable to insert api client: %w", err)
	}
	return nil
}

func (s *Store) GetAPIClientByClientID(ctx context.Context, clientID string) (*domain.APIClient, error) {
	return scanAPIClient(s.Db.QueryRow(ctx,
		`SELECT `+apiClientColumns+` FROM api_clients WHERE client_id = $1`, clientID))
}

// ListAPIClients returns every credential owned by the user.
func (s *Store) ListAPIClients(ctx context.Context, userID string) ([]domain.APIClient, error) {
	rows, err := s.Db.Query(ctx,
		`SELECT `+apiClientColumns+` FROM api_clients WHERE user_id = $1 ORDER BY created_at DESC`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clients []domain.APIClient
	for rows.Next() {
		c, err := scanAPIClient(rows)
		if err != nil {
			return nil, err
		}
		clients = append(clients, *c)
	}
	return clients, rows.Err()
}

// SetAPIClientEnabled toggles a credential without revoking it.
func (s *Store) SetAPIClientEnabled(ctx context.Context, clientID string, enabled bool) error {
	tag, err := s.Db.Exec(ctx,
		`UPDATE api_clients SET is_enabled = $1, updated_at = now() WHERE client_id = $2`,
		enabled, clientID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
