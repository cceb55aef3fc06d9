package internal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// DBTX is the query surface shared by *sql.DB and *sql.Tx, so entity helpers
// run the same inside and outside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store wraps the SQLite database handle.
type Store struct {
	db  *sql.DB
	log *zap.SugaredLogger
}

// OpenStore opens (creating if needed) the SQLite database at path and turns
// on foreign key enforcement.
func OpenStore(path string, log *zap.SugaredLogger) (*Store, error) {
	if log == nil {
		log = zap.S()
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}

	// The pure-Go driver serializes writes itself, but a single connection
	// keeps transaction semantics predictable.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	log.Infow("database opened", "path", path)
	return &Store{db: db, log: log}, nil
}

// RebuildStore deletes any existing database file at path and opens a fresh
// one with the given DDL applied.
func RebuildStore(path, ddl string, log *zap.SugaredLogger) (*Store, error) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to remove existing database %s: %w", path, err)
	}

	store, err := OpenStore(path, log)
	if err != nil {
		return nil, err
	}
	if err := store.ApplyDDL(context.Background(), ddl); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Close() error {
	return s.db.Close()
}

// ApplyDDL executes a DDL script against the database.
func (s *Store) ApplyDDL(ctx context.Context, ddl string) error {
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to apply DDL: %w", err)
	}
	return nil
}

// WithTx runs fn inside a transaction, rolling back on error or panic.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && s.log != nil {
			s.log.Warnw("transaction rollback failed", "error", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
