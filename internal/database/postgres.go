package database

import (
	"database/sql"
	"log"
	"time"

	_ "github.com/lib/pq"
)

// ConnectPostgres connects to PostgreSQL and ensures the schema.
func ConnectPostgres(postgresURI string) (*sql.DB, error) {
	db, err := sql.Open("postgres", postgresURI)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err = db.Ping(); err != nil {
		return nil, err
	}

	log.Println("✅ Connected to PostgreSQL")

	if err = initPostgresTables(db); err != nil {
		return nil, err
	}
	return db, nil
}

// initPostgresTables creates the persistent-profile schema if missing.
func initPostgresTables(db *sql.DB) error {
	queries := []string{
		// Persistent user profiles. Live presence lives in MongoDB; this
		// row is the identity that survives broadcast sessions.
		`CREATE TABLE IF NOT EXISTS users (
			uid UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			email VARCHAR(255) NOT NULL DEFAULT '',
			nickname VARCHAR(50) NOT NULL,
			icon TEXT NOT NULL DEFAULT '',
			gender VARCHAR(20) NOT NULL,
			age_range VARCHAR(20) NOT NULL,
			status VARCHAR(20) NOT NULL,
			status_message TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			last_updated TIMESTAMP NOT NULL DEFAULT NOW()
		)`,

		`CREATE INDEX IF NOT EXISTS idx_users_email ON users (email)`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}
