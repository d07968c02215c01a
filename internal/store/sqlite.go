package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/hyperjump/musubu/internal/hdc"
	"github.com/hyperjump/musubu/internal/hdql"
)

// SQLiteStore persists entity metadata in SQLite. Only metadata is stored;
// embeddings are rebuilt from keys when a Store is loaded.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates a SQLite database at dbPath and initializes
// the schema. Parent directories are created if they do not exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS entities (
		key TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT,
		attributes TEXT,
		position INTEGER NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_entities_type ON entities(type);
	CREATE INDEX IF NOT EXISTS idx_entities_position ON entities(position);
	`
	_, err := db.Exec(schema)
	return err
}

// PutEntity inserts or replaces an entity. Insertion order is preserved via
// the position column so a reloaded store iterates in the original order.
func (s *SQLiteStore) PutEntity(ctx context.Context, e hdql.Entity) error {
	attrsJSON, err := json.Marshal(e.Attributes)
	if err != nil {
		return fmt.Errorf("failed to marshal attributes: %w", err)
	}
	now := time.Now()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO entities (key, type, name, description, attributes, position, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, COALESCE((SELECT position FROM entities WHERE key = ?),
		         (SELECT COALESCE(MAX(position), -1) + 1 FROM entities)), ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
		   description = excluded.description,
		   attributes = excluded.attributes,
		   updated_at = excluded.updated_at`,
		e.Key(), e.Type, e.Name, e.Description, string(attrsJSON), e.Key(), now, now,
	)
	return err
}

// GetEntity returns an entity by key.
func (s *SQLiteStore) GetEntity(ctx context.Context, key string) (hdql.Entity, error) {
	var e hdql.Entity
	var attrsJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT type, name, description, attributes FROM entities WHERE key = ?`, key,
	).Scan(&e.Type, &e.Name, &e.Description, &attrsJSON)
	if err == sql.ErrNoRows {
		return hdql.Entity{}, fmt.Errorf("entity not found: %s", key)
	}
	if err != nil {
		return hdql.Entity{}, err
	}
	if attrsJSON != "" && attrsJSON != "null" {
		if err := json.Unmarshal([]byte(attrsJSON), &e.Attributes); err != nil {
			return hdql.Entity{}, fmt.Errorf("failed to unmarshal attributes: %w", err)
		}
	}
	return e, nil
}

// DeleteEntity removes an entity by key.
func (s *SQLiteStore) DeleteEntity(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM entities WHERE key = ?`, key)
	return err
}

// ListEntities returns all entities in insertion order.
func (s *SQLiteStore) ListEntities(ctx context.Context) ([]hdql.Entity, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT type, name, description, attributes FROM entities ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entities []hdql.Entity
	for rows.Next() {
		var e hdql.Entity
		var attrsJSON string
		if err := rows.Scan(&e.Type, &e.Name, &e.Description, &attrsJSON); err != nil {
			return nil, err
		}
		if attrsJSON != "" && attrsJSON != "null" {
			_ = json.Unmarshal([]byte(attrsJSON), &e.Attributes)
		}
		entities = append(entities, e)
	}
	return entities, rows.Err()
}

// CountEntities returns the total number of entities.
func (s *SQLiteStore) CountEntities(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entities`).Scan(&count)
	return count, err
}

// LoadStore builds an in-memory Store from the persisted entities.
func (s *SQLiteStore) LoadStore(ctx context.Context, dims int, strategy hdc.Strategy, logger *zap.Logger) (*Store, error) {
	entities, err := s.ListEntities(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load entities: %w", err)
	}
	st := New(dims, strategy, logger)
	st.AddAll(entities)
	return st, nil
}

// SaveStore persists every entity of an in-memory store in a transaction,
// replacing the previous contents.
func (s *SQLiteStore) SaveStore(ctx context.Context, st *Store) error {
	entities, err := st.AllEntities()
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM entities`); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO entities (key, type, name, description, attributes, position, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for i, e := range entities {
		attrsJSON, err := json.Marshal(e.Attributes)
		if err != nil {
			return fmt.Errorf("failed to marshal attributes: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, e.Key(), e.Type, e.Name, e.Description, string(attrsJSON), i, now, now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
