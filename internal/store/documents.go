package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/deskquery/internal/backend"
	"github.com/roach88/deskquery/internal/document"
	"github.com/roach88/deskquery/internal/ir"
)

// ErrNotFound is returned when no document has the requested id.
var ErrNotFound = errors.New("document not found")

// Record is a stored document as returned by Get and Search.
type Record struct {
	ID       string
	URL      string
	IPath    string
	Title    string
	MimeType string
	Day      string
	Time     string
	Size     int64
}

// Put indexes d, replacing any earlier version with the same url and ipath.
// It returns the document id, which is stable across replacements.
//
// New ids are UUIDv7, so id order is indexing order.
func (s *Store) Put(ctx context.Context, d document.Document) (id string, err error) {
	start := time.Now()
	defer func() { s.metrics.RecordStoreOperation("put", err, time.Since(start)) }()

	key := ir.DocumentKey(d.URL, d.IPath)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("put %s: %w", d.URL, err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	err = tx.QueryRowContext(ctx, s.q("SELECT id FROM documents WHERE doc_key = ?"), key).Scan(&id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		u, uerr := uuid.NewV7()
		if uerr != nil {
			err = fmt.Errorf("put %s: %w", d.URL, uerr)
			return "", err
		}
		id = u.String()
		_, err = tx.ExecContext(ctx, s.q(`
			INSERT INTO documents
			(id, doc_key, url, ipath, title, mimetype, date_day, date_time, size_bytes)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`), id, key, d.URL, d.IPath, d.Title, d.MimeType, d.Day(), d.Clock(), d.Size)
	case err != nil:
		return "", fmt.Errorf("put %s: %w", d.URL, err)
	default:
		_, err = tx.ExecContext(ctx, s.q(`
			UPDATE documents
			SET title = ?, mimetype = ?, date_day = ?, date_time = ?, size_bytes = ?
			WHERE id = ?
		`), d.Title, d.MimeType, d.Day(), d.Clock(), d.Size, id)
		if err == nil {
			_, err = tx.ExecContext(ctx, s.q("DELETE FROM postings WHERE doc_id = ?"), id)
		}
	}
	if err != nil {
		return "", fmt.Errorf("put %s: %w", d.URL, err)
	}

	if err = s.writePostings(ctx, tx, id, d); err != nil {
		return "", fmt.Errorf("put %s: %w", d.URL, err)
	}

	if err = tx.Commit(); err != nil {
		return "", fmt.Errorf("put %s: %w", d.URL, err)
	}
	return id, nil
}

func (s *Store) writePostings(ctx context.Context, tx *sql.Tx, id string, d document.Document) error {
	stmt, err := tx.PrepareContext(ctx, s.q(`
		INSERT INTO postings (doc_id, field, term, position, term_cased, term_bare, term_cased_bare)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`))
	if err != nil {
		return fmt.Errorf("prepare postings: %w", err)
	}
	defer stmt.Close()

	for _, p := range d.Postings() {
		f := p.Forms
		if _, err := stmt.ExecContext(ctx, id, p.Field, f[backend.Folded], p.Position,
			f[backend.Cased], f[backend.Bare], f[backend.CasedBare]); err != nil {
			return fmt.Errorf("write posting %s:%s: %w", p.Field, f[backend.Folded], err)
		}
	}
	return nil
}

// Get returns the document with the given id.
func (s *Store) Get(ctx context.Context, id string) (rec Record, err error) {
	start := time.Now()
	defer func() {
		opErr := err
		if errors.Is(err, ErrNotFound) {
			opErr = nil
		}
		s.metrics.RecordStoreOperation("get", opErr, time.Since(start))
	}()

	row := s.db.QueryRowContext(ctx, s.q(`
		SELECT id, url, ipath, title, mimetype, date_day, date_time, size_bytes
		FROM documents WHERE id = ?
	`), id)
	rec, err = scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Record{}, fmt.Errorf("get %s: %w", id, err)
	}
	return rec, nil
}

// Delete removes the document with the given url and ipath together with
// its postings. Deleting a missing document is not an error.
func (s *Store) Delete(ctx context.Context, url, ipath string) (err error) {
	start := time.Now()
	defer func() { s.metrics.RecordStoreOperation("delete", err, time.Since(start)) }()

	key := ir.DocumentKey(url, ipath)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete %s: %w", url, err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, s.q(`
		DELETE FROM postings WHERE doc_id IN (SELECT id FROM documents WHERE doc_key = ?)
	`), key); err != nil {
		return fmt.Errorf("delete %s: %w", url, err)
	}
	if _, err = tx.ExecContext(ctx, s.q("DELETE FROM documents WHERE doc_key = ?"), key); err != nil {
		return fmt.Errorf("delete %s: %w", url, err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("delete %s: %w", url, err)
	}
	return nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (Record, error) {
	var r Record
	err := sc.Scan(&r.ID, &r.URL, &r.IPath, &r.Title, &r.MimeType, &r.Day, &r.Time, &r.Size)
	return r, err
}
