package main

import (
	"context"
	"log"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"

	"github.com/kycfabric/gateway/internal/store"
)

// Applies the full schema. Statements are idempotent, so rerunning against
// an existing database is safe.
func main() {
	_ = godotenv.Load()

	dbSource := os.Getenv("DB_SOURCE")
	if dbSource == "" {
		log.Fatal("DB_SOURCE environment variable is required")
	}

	ctx := context.Background()
	conn, err := pgx.Connect(ctx, dbSource)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer conn.Close(ctx)

	if _, err := conn.Exec(ctx, store.Schema); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Println("Schema applied successfully")
}
