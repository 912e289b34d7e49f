package store

import (
	"context"
	_ "embed"
	"fmt"
)

// Schema is the full DDL for the gateway database. Statements are
// idempotent so ApplySchema can run on every deploy.
//
//go:embed schema.sql
var Schema string

// ApplySchema creates all tables and indexes if they do not exist yet.
func (s *Store) ApplySchema(ctx context.Context) error {
	if _, err := s.Db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("unable to apply schema: %w", err)
	}
	return nil
}
