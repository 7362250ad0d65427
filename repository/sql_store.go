package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"chat-sessions/config"

	"github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"
)

// SQLStore owns the connection pool shared by the SQL repositories.
type SQLStore struct {
	db      *sql.DB
	dialect string
	log     *slog.Logger
}

// OpenSQL connects to driver (sqlite3 or mysql), checks the connection and
// brings the schema up to date.
func OpenSQL(ctx context.Context, driver, dsn string, log *slog.Logger) (*SQLStore, error) {
	if driver != config.DriverSQLite && driver != config.DriverMySQL {
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}
	if driver == config.DriverMySQL {
		if _, err := mysql.ParseDSN(dsn); err != nil {
			return nil, fmt.Errorf("mysql dsn: %w", err)
		}
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}

	switch driver {
	case config.DriverSQLite:
		// sqlite serializes writers; a single connection avoids SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	default:
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("database ping: %w", err)
	}

	store := &SQLStore{db: db, dialect: driver, log: log}
	if err := store.ApplyMigrations(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLStore) Users() *SQLUserRepo       { return &SQLUserRepo{db: s.db} }
func (s *SQLStore) Sessions() *SQLSessionRepo { return &SQLSessionRepo{db: s.db} }
func (s *SQLStore) Messages() *SQLMessageRepo { return &SQLMessageRepo{db: s.db} }

func (s *SQLStore) Close() error {
	return s.db.Close()
}

// isUniqueViolation reports a primary key or unique constraint failure from
// either driver.
func isUniqueViolation(err error) bool {
	var liteErr sqlite3.Error
	if stderrors.As(err, &liteErr) {
		return liteErr.Code == sqlite3.ErrConstraint
	}
	var myErr *mysql.MySQLError
	if stderrors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	return false
}

func toMillis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }
