package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kycfabric/gateway/internal/domain"
)

// ErrDuplicate is returned when an insert collides with a unique constraint.
var ErrDuplicate = errors.New("record already exists")

const userColumns = `id, email, username, phone_number, hashed_password, first_name,
	last_name, role, is_active, credits, created_at, updated_at`

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Email, &u.Username, &u.PhoneNumber, &u.HashedPassword,
		&u.FirstName, &u.LastName, &u.Role, &u.IsActive, &u.Credits, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser inserts a new user and fills in the generated timestamps.
func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	err := s.Db.QueryRow(ctx,
		`INSERT INTO users (id, email, username, phone_number, hashed_password, first_name, last_name, role, is_active, credits)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING created_at, updated_at`,
		u.ID, u.Email, u.Username, u.PhoneNumber, u.HashedPassword,
		u.FirstName, u.LastName, u.Role, u.IsActive, u.Credits,
	).Scan(&u.CreatedAt, &u.UpdatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("unable to create user: %w", err)
	}
	return nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	return scanUser(s.Db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return scanUser(s.Db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return scanUser(s.Db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1`, username))
}

// SetUserActive flips the session flag maintained by login and logout.
func (s *Store) SetUserActive(ctx context.Context, id string, active bool) error {
	tag, err := s.Db.Exec(ctx,
		`UPDATE users SET is_active = $1, updated_at = now() WHERE id = $2`, active, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateUserProfile persists the fields editable through the dashboard.
func (s *Store) UpdateUserProfile(ctx context.Context, u *domain.User) error {
	err := s.Db.QueryRow(ctx,
		`UPDATE users SET first_name = $1, last_name = $2, phone_number = $3, updated_at = now()
		 WHERE id = $4
		 RETURNING updated_at`,
		u.FirstName, u.LastName, u.PhoneNumber, u.ID,
	).Scan(&u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
