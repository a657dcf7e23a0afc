// Package storage persists build runs in a local SQLite database so tooling
// can inspect history without re-running the pipeline. The core stages never
// touch the store; only the CLI writes to it.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"mdml/internal/ast"
	"mdml/internal/astjson"
)

type Store struct {
	db *sql.DB
}

// RunInfo summarizes one recorded build.
type RunInfo struct {
	ID            string
	Project       string
	CreatedAt     time.Time
	ParserVersion string
	SchemaVersion string
	Strict        bool
	ErrorCount    int
	WarningCount  int
}

// Open creates or opens the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			project TEXT,
			created_at TIMESTAMP,
			parser_version TEXT,
			schema_version TEXT,
			strict INTEGER,
			error_count INTEGER,
			warning_count INTEGER
		);`,
		`CREATE TABLE IF NOT EXISTS documents (
			run_id TEXT PRIMARY KEY REFERENCES runs(id),
			body JSON
		);`,
		`CREATE TABLE IF NOT EXISTS diagnostics (
			run_id TEXT REFERENCES runs(id),
			code TEXT,
			severity TEXT,
			file TEXT,
			line INTEGER,
			col INTEGER,
			message TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_diagnostics_run ON diagnostics(run_id);`,
	}
	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

// SaveRun records a document and its diagnostics, returning the new run id.
// The document is schema-validated before anything is written.
func (s *Store) SaveRun(ctx context.Context, doc *ast.Document, strict bool) (string, error) {
	body, err := astjson.MarshalValidated(doc)
	if err != nil {
		return "", err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	id := uuid.NewString()
	project := ""
	if doc.Project != nil {
		project = doc.Project.Name
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, project, created_at, parser_version, schema_version, strict, error_count, warning_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, id, project, time.Now().UTC(), doc.ParserVersion, doc.SchemaVersion, strict, len(doc.Errors), len(doc.Warnings))
	if err != nil {
		return "", err
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO documents (run_id, body) VALUES (?, ?)`, id, body); err != nil {
		return "", err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO diagnostics (run_id, code, severity, file, line, col, message)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return "", err
	}
	defer stmt.Close()

	for _, d := range doc.Errors {
		if _, err := stmt.Exec(id, d.Code, d.Severity, d.File, d.Line, d.Column, d.Message); err != nil {
			return "", err
		}
	}
	for _, d := range doc.Warnings {
		if _, err := stmt.Exec(id, d.Code, d.Severity, d.File, d.Line, d.Column, d.Message); err != nil {
			return "", err
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return id, nil
}

// LoadDocument retrieves a stored document by run id.
func (s *Store) LoadDocument(ctx context.Context, runID string) (*ast.Document, error) {
	var body []byte
	row := s.db.QueryRowContext(ctx, `SELECT body FROM documents WHERE run_id = ?`, runID)
	if err := row.Scan(&body); err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	return astjson.Unmarshal(body)
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunInfo, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project, created_at, parser_version, schema_version, strict, error_count, warning_count
		FROM runs ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RunInfo
	for rows.Next() {
		var r RunInfo
		if err := rows.Scan(&r.ID, &r.Project, &r.CreatedAt, &r.ParserVersion, &r.SchemaVersion, &r.Strict, &r.ErrorCount, &r.WarningCount); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
