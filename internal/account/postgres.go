package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// PostgresStore keeps the account in a single-row table for deployments
// that already run a database and want the credential outside the config
// file. The row id is fixed so the upsert can never grow a second account.
type PostgresStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewPostgresStore(db *sql.DB, logger zerolog.Logger) *PostgresStore {
	return &PostgresStore{db: db, logger: logger}
}

func (s *PostgresStore) Verify(ctx context.Context, username, password string) bool {
	var storedUsername, storedHash string
	err := s.db.QueryRowContext(ctx, `
		SELECT username, password_hash
		FROM admin_account
		WHERE id = 1
	`).Scan(&storedUsername, &storedHash)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Error().Err(err).Msg("query admin account")
		}
		return false
	}

	return username == storedUsername && compareHash(storedHash, password)
}

func (s *PostgresStore) Update(ctx context.Context, username, password string) error {
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO admin_account (id, username, password_hash, updated_at)
		VALUES (1, $1, $2, $3)
		ON CONFLICT (id)
		DO UPDATE SET
			username = EXCLUDED.username,
			password_hash = EXCLUDED.password_hash,
			updated_at = EXCLUDED.updated_at
	`, username, hash, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert admin account: %w", err)
	}

	return nil
}

// Seed inserts the account only when the table is still empty, so a
// config-provided bootstrap credential never overwrites a later password
// change.
func (s *PostgresStore) Seed(ctx context.Context, username, passwordHash string) error {
	if username == "" || passwordHash == "" {
		return nil
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO admin_account (id, username, password_hash, updated_at)
		VALUES (1, $1, $2, $3)
		ON CONFLICT (id) DO NOTHING
	`, username, passwordHash, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("seed admin account: %w", err)
	}

	return nil
}
