// Package postgres is the relational document store for résumé records.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver

	"github.com/kailas-cloud/simdex/internal/domain"
	domdoc "github.com/kailas-cloud/simdex/internal/domain/document"
)

// schemaLockID serializes bootstrap DDL across replicas.
const schemaLockID int64 = 2026101701

// Repo stores documents in the resumes table.
type Repo struct {
	db *sql.DB
}

// New creates a repository over an open connection pool.
func New(db *sql.DB) *Repo {
	return &Repo{db: db}
}

// OpenDB opens and pings a pgx-backed pool.
func OpenDB(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

// Ping checks connectivity.
func (r *Repo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// EnsureSchema creates the resumes table if missing.
func (r *Repo) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockID); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS resumes (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	position TEXT NOT NULL DEFAULT '',
	growth_background TEXT NOT NULL DEFAULT '',
	motivation TEXT NOT NULL DEFAULT '',
	career_history TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// Upsert creates or replaces a document. Returns true if created.
func (r *Repo) Upsert(ctx context.Context, doc *domdoc.Document) (bool, error) {
	row := r.db.QueryRowContext(ctx, `
INSERT INTO resumes (id, name, position, growth_background, motivation, career_history, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name,
	position = EXCLUDED.position,
	growth_background = EXCLUDED.growth_background,
	motivation = EXCLUDED.motivation,
	career_history = EXCLUDED.career_history,
	updated_at = EXCLUDED.updated_at
RETURNING (xmax = 0) AS created
`,
		doc.ID(), doc.Name(), doc.Position(),
		doc.Field(domdoc.GrowthBackground), doc.Field(domdoc.Motivation), doc.Field(domdoc.CareerHistory),
		doc.CreatedAt().UTC(), time.Now().UTC(),
	)

	var created bool
	if err := row.Scan(&created); err != nil {
		return false, fmt.Errorf("upsert document %s: %w", doc.ID(), err)
	}
	return created, nil
}

const selectColumns = `SELECT id, name, position, growth_background, motivation, career_history, created_at FROM resumes`

// LoadDocument returns a document by ID.
func (r *Repo) LoadDocument(ctx context.Context, id string) (domdoc.Document, error) {
	row := r.db.QueryRowContext(ctx, selectColumns+` WHERE id = $1`, id)
	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domdoc.Document{}, domain.ErrDocumentNotFound
		}
		return domdoc.Document{}, fmt.Errorf("get document %s: %w", id, err)
	}
	return doc, nil
}

// LoadCorpus returns every stored document ordered by ID.
func (r *Repo) LoadCorpus(ctx context.Context) ([]domdoc.Document, error) {
	rows, err := r.db.QueryContext(ctx, selectColumns+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []domdoc.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return docs, nil
}

// Delete removes a document.
func (r *Repo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM resumes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete document %s: rows affected: %w", id, err)
	}
	if n == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(s scanner) (domdoc.Document, error) {
	var (
		id, name, position         string
		growth, motivation, career string
		createdAt                  time.Time
	)
	if err := s.Scan(&id, &name, &position, &growth, &motivation, &career, &createdAt); err != nil {
		return domdoc.Document{}, err
	}
	fields := map[domdoc.FieldName]string{}
	for f, v := range map[domdoc.FieldName]string{
		domdoc.GrowthBackground: growth,
		domdoc.Motivation:       motivation,
		domdoc.CareerHistory:    career,
	} {
		if v != "" {
			fields[f] = v
		}
	}
	return domdoc.Reconstruct(id, name, position, fields, createdAt), nil
}
