package modelstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/axilent/sharrock"
)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLite is a Store keeping each record as a JSON document in one table.
// Records created without an "id" member get a random UUID.
type SQLite struct {
	db    *sql.DB
	table string
}

var _ sharrock.Store = (*SQLite)(nil)

// OpenSQLite opens (or creates) the database at path and ensures the table
// exists. Use ":memory:" for a private in-memory database.
func OpenSQLite(ctx context.Context, path, table string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if path == ":memory:" {
		// Every connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}
	s, err := NewSQLite(ctx, db, table)
	if err != nil {
		//nolint:errcheck,gosec // already failing
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLite uses an already open database.
func NewSQLite(ctx context.Context, db *sql.DB, table string) (*SQLite, error) {
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+table+` (
		id   TEXT PRIMARY KEY,
		data TEXT NOT NULL
	)`)
	if err != nil {
		return nil, fmt.Errorf("create table %s: %w", table, err)
	}
	return &SQLite{db: db, table: table}, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// List returns every record ordered by id.
func (s *SQLite) List(ctx context.Context) ([]map[string]any, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, data FROM `+s.table+` ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []map[string]any{}
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, err
		}
		r, err := decodeRecord(id, data)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Get returns the record.
func (s *SQLite) Get(ctx context.Context, id string) (map[string]any, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM `+s.table+` WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, err
	}
	return decodeRecord(id, data)
}

// Create inserts data and returns its id.
func (s *SQLite) Create(ctx context.Context, data map[string]any) (string, error) {
	id := idOf(data)
	if id == "" {
		id = uuid.NewString()
	}
	doc, err := encodeRecord(id, data)
	if err != nil {
		return "", err
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO `+s.table+` (id, data) VALUES (?, ?)`, id, doc)
	if err != nil && isUniqueConstraintError(err) {
		return "", sharrock.Conflict("record " + id + " already exists")
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

// Update merges data into the stored record.
func (s *SQLite) Update(ctx context.Context, id string, data map[string]any) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	//nolint:errcheck // no-op after commit
	defer tx.Rollback()

	var current string
	err = tx.QueryRowContext(ctx, `SELECT data FROM `+s.table+` WHERE id = ?`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound(id)
	}
	if err != nil {
		return err
	}

	record, err := decodeRecord(id, current)
	if err != nil {
		return err
	}
	for k, v := range data {
		record[k] = v
	}
	doc, err := encodeRecord(id, record)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE `+s.table+` SET data = ? WHERE id = ?`, doc, id); err != nil {
		return err
	}
	return tx.Commit()
}

// Delete removes the record.
func (s *SQLite) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM `+s.table+` WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound(id)
	}
	return nil
}

func encodeRecord(id string, data map[string]any) (string, error) {
	doc := make(map[string]any, len(data)+1)
	for k, v := range data {
		doc[k] = v
	}
	doc["id"] = id
	b, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encode record %s: %w", id, err)
	}
	return string(b), nil
}

func decodeRecord(id, data string) (map[string]any, error) {
	var r map[string]any
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		return nil, fmt.Errorf("decode record %s: %w", id, err)
	}
	return r, nil
}

func isUniqueConstraintError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "constraint failed: UNIQUE")
}
