package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/kycfabric/gateway/internal/domain"
)

// UpsertContactOTP stores a fresh OTP for the contact, creating the row on
// first request. Re-requesting an OTP resets the verified flag.
func (s *Store) UpsertContactOTP(ctx context.Context, c *domain.VerifiedContact) error {
	err := s.Db.QueryRow(ctx,
		`INSERT INTO verified_contacts (id, email, phone_number, otp, otp_expires_at, is_verified)
		 VALUES ($1, $2, $3, $4, $5, FALSE)
		 ON CONFLICT (email) DO UPDATE SET
		   phone_number = EXCLUDED.phone_number,
		   otp = EXCLUDED.otp,
		   otp_expires_at = EXCLUDED.otp_expires_at,
		   is_verified = FALSE,
		   updated_at = now()
		 RETURNING id, created_at, updated_at`,
		c.ID, c.Email, c.PhoneNumber, c.OTP, c.OTPExpiresAt,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("unable to upsert contact: %w", err)
	}
	return nil
}

func (s *Store) GetContactByEmail(ctx context.Context, email string) (*domain.VerifiedContact, error) {
	var c domain.VerifiedContact
	err := s.Db.QueryRow(ctx,
		`SELECT id, email, phone_number, otp, otp_expires_at, is_verified, created_at, updated_at
		 FROM verified_contacts WHERE email = $1`, email,
	).Scan(&c.ID, &c.Email, &c.PhoneNumber, &c.OTP, &c.OTPExpiresAt, &c.IsVerified, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// MarkContactVerified clears the pending OTP once it has been confirmed.
func (s *Store) MarkContactVerified(ctx context.Context, email string) error {
	tag, err := s.Db.Exec(ctx,
		`UPDATE verified_contacts SET is_verified = TRUE, otp = '', updated_at = now()
		 WHERE email = $1`, email)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
