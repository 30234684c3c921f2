package store

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/deskquery/internal/backend"
	"github.com/roach88/deskquery/internal/querysql"
)

// Search returns the documents matching q in id order, at most limit of
// them when limit is positive. The empty query matches nothing.
func (s *Store) Search(ctx context.Context, q backend.Query, limit int) (recs []Record, err error) {
	start := time.Now()
	defer func() { s.metrics.RecordStoreOperation("search", err, time.Since(start)) }()

	if backend.IsEmpty(q) {
		return nil, nil
	}

	c := querysql.NewSQLCompiler(s.dialect)
	c.Limit = limit
	query, args, err := c.Compile(q)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	s.logger.Debug("search", "sql", query, "args", len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("search: scan: %w", err)
		}
		recs = append(recs, rec)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return recs, nil
}

// Count returns the number of documents matching q.
func (s *Store) Count(ctx context.Context, q backend.Query) (n int, err error) {
	start := time.Now()
	defer func() { s.metrics.RecordStoreOperation("count", err, time.Since(start)) }()

	if backend.IsEmpty(q) {
		return 0, nil
	}

	query, args, err := querysql.NewSQLCompiler(s.dialect).CompileCount(q)
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	if err = s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}
