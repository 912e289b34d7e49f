package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/kycfabric/gateway/internal/domain"
)

// InsertRefreshToken records a newly issued refresh session.
func (s *Store) InsertRefreshToken(ctx context.Context, t *domain.RefreshToken) error {
	err := s.Db.QueryRow(ctx,
		`INSERT INTO refresh_tokens (id, user_id, token, expires_at)
		 VALUES ($1, $2, $3, $4)
		 RETURNING created_at`,
		t.ID, t.UserID, t.Token, t.ExpiresAt,
	).Scan(&t.CreatedAt)
	if err != nil {
		return fmt.Errorf("unable to insert refresh token: %w", err)
	}
	return nil
}

// GetRefreshToken fetches an unexpired session for the given user and token.
func (s *Store) GetRefreshToken(ctx context.Context, userID, token string) (*domain.RefreshToken, error) {
	var t domain.RefreshToken
	err := s.Db.QueryRow(ctx,
		`SELECT id, user_id, token, expires_at, created_at FROM refresh_tokens
		 WHERE user_id = $1 AND token = $2 AND expires_at > now()`,
		userID, token,
	).Scan(&t.ID, &t.UserID, &t.Token, &t.ExpiresAt, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Store) DeleteRefreshToken(ctx context.Context, token string) error {
	_, err := s.Db.Exec(ctx, `DELETE FROM refresh_tokens WHERE token = $1`, token)
	return err
}

// DeleteUserRefreshTokens terminates every session the user has open.
func (s *Store) DeleteUserRefreshTokens(ctx context.Context, userID string) error {
	_, err := s.Db.Exec(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, userID)
	return err
}
