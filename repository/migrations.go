package repository

import (
	"context"
	"fmt"
	"time"

	"chat-sessions/config"
)

type Migration struct {
	Version     int
	Description string
	// Statements per dialect, run in order inside one transaction.
	Statements map[string][]string
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Statements: map[string][]string{
			config.DriverSQLite: {
				`CREATE TABLE IF NOT EXISTS users (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					username TEXT NOT NULL UNIQUE,
					password TEXT NOT NULL,
					created_at INTEGER NOT NULL
				)`,
				`CREATE TABLE IF NOT EXISTS chat_sessions (
					id TEXT PRIMARY KEY,
					initiator_id INTEGER NOT NULL REFERENCES users(id),
					recipient_id INTEGER NOT NULL REFERENCES users(id),
					participant_lo INTEGER NOT NULL,
					participant_hi INTEGER NOT NULL,
					created_at INTEGER NOT NULL,
					UNIQUE (participant_lo, participant_hi)
				)`,
				`CREATE INDEX IF NOT EXISTS idx_chat_sessions_hi ON chat_sessions(participant_hi)`,
				`CREATE TABLE IF NOT EXISTS messages (
					session_id TEXT NOT NULL REFERENCES chat_sessions(id),
					sequence_no INTEGER NOT NULL,
					sender_id INTEGER NOT NULL,
					body TEXT NOT NULL,
					sent_at INTEGER NOT NULL,
					PRIMARY KEY (session_id, sequence_no)
				)`,
			},
			config.DriverMySQL: {
				`CREATE TABLE IF NOT EXISTS users (
					id BIGINT AUTO_INCREMENT PRIMARY KEY,
					username VARCHAR(64) NOT NULL UNIQUE,
					password VARCHAR(255) NOT NULL,
					created_at BIGINT NOT NULL
				)`,
				`CREATE TABLE IF NOT EXISTS chat_sessions (
					id VARCHAR(16) PRIMARY KEY,
					initiator_id BIGINT NOT NULL,
					recipient_id BIGINT NOT NULL,
					participant_lo BIGINT NOT NULL,
					participant_hi BIGINT NOT NULL,
					created_at BIGINT NOT NULL,
					UNIQUE KEY uq_chat_sessions_pair (participant_lo, participant_hi),
					INDEX idx_chat_sessions_hi (participant_hi),
					FOREIGN KEY (initiator_id) REFERENCES users(id),
					FOREIGN KEY (recipient_id) REFERENCES users(id)
				)`,
				`CREATE TABLE IF NOT EXISTS messages (
					session_id VARCHAR(16) NOT NULL,
					sequence_no BIGINT NOT NULL,
					sender_id BIGINT NOT NULL,
					body TEXT NOT NULL,
					sent_at BIGINT NOT NULL,
					PRIMARY KEY (session_id, sequence_no),
					FOREIGN KEY (session_id) REFERENCES chat_sessions(id)
				)`,
			},
		},
	},
}

// ApplyMigrations runs every migration newer than the recorded version.
func (s *SQLStore) ApplyMigrations(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			description VARCHAR(255) NOT NULL,
			applied_at BIGINT NOT NULL
		)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	current, err := s.CurrentVersion(ctx)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	s.log.Debug("Schema version", "version", current, "dialect", s.dialect)

	applied := 0
	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		if err := s.applyMigration(ctx, m); err != nil {
			return fmt.Errorf("migration %d: %w", m.Version, err)
		}
		applied++
		s.log.Info("Migration applied", "version", m.Version, "description", m.Description)
	}
	if applied == 0 {
		s.log.Debug("Schema up to date")
	}
	return nil
}

func (s *SQLStore) CurrentVersion(ctx context.Context) (int, error) {
	var version int
	err := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	return version, err
}

func (s *SQLStore) applyMigration(ctx context.Context, m Migration) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range m.Statements[s.dialect] {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, ?)",
		m.Version, m.Description, time.Now().UnixMilli(),
	); err != nil {
		return err
	}
	return tx.Commit()
}
