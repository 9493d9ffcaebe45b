package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

func NewPool(ctx context.Context, url string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// EnsureSchema creates the tables on startup so a fresh database works out of
// the box. Uniqueness of cadet_number, username, email and school name is
// enforced here; the repository maps the resulting violations to typed errors.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			cadet_number VARCHAR(50) NOT NULL,
			username VARCHAR(50) NOT NULL,
			email VARCHAR(255) NOT NULL,
			contact_number VARCHAR(30),
			address VARCHAR(255),
			district VARCHAR(100),
			role VARCHAR(50) NOT NULL DEFAULT 'user',
			school_id BIGINT,
			password_hash VARCHAR(255) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			CONSTRAINT uq_users_cadet_number UNIQUE (cadet_number),
			CONSTRAINT uq_users_username UNIQUE (username),
			CONSTRAINT uq_users_email UNIQUE (email)
		)`,
		`CREATE TABLE IF NOT EXISTS schools (
			id BIGSERIAL PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			district VARCHAR(100) NOT NULL,
			municipality VARCHAR(100) NOT NULL,
			ward_number INT NOT NULL,
			area_name VARCHAR(100),
			official_email VARCHAR(255),
			phone_number VARCHAR(20) NOT NULL,
			website VARCHAR(255),
			principal_name VARCHAR(100) NOT NULL,
			principal_contact VARCHAR(20) NOT NULL,
			teacher_name VARCHAR(100),
			teacher_contact VARCHAR(20),
			notes TEXT,
			is_active BOOLEAN NOT NULL DEFAULT true,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			CONSTRAINT uq_schools_name UNIQUE (name)
		)`,
		`CREATE TABLE IF NOT EXISTS training_sessions (
			id BIGSERIAL PRIMARY KEY,
			school_id BIGINT NOT NULL REFERENCES schools (id),
			ncc_batch VARCHAR(100) NOT NULL,
			start_date DATE NOT NULL,
			passout_date DATE,
			division VARCHAR(10) NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
