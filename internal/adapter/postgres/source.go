// Package postgres loads phrase records from a PostgreSQL table.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"phrasematch/config"
	"phrasematch/internal/domain"
	"phrasematch/internal/port"
)

type Source struct {
	db  *sql.DB
	cfg config.PostgresConfig
}

// Open connects and pings the database described by cfg.DSN.
func Open(cfg config.PostgresConfig) (*Source, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres dsn is not configured")
	}
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening postgres connection: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return NewSource(db, cfg), nil
}

// NewSource wraps an existing connection pool.
func NewSource(db *sql.DB, cfg config.PostgresConfig) *Source {
	return &Source{db: db, cfg: cfg}
}

func (s *Source) Name() string {
	return "postgres:" + s.cfg.Table
}

func (s *Source) Close() error {
	return s.db.Close()
}

// Records reads every row of the configured table. Positions follow the
// ORDER BY column.
func (s *Source) Records(ctx context.Context) ([]domain.Record, error) {
	query, err := buildQuery(s.cfg)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", s.cfg.Table, err)
	}
	defer rows.Close()

	var records []domain.Record
	for rows.Next() {
		var code, phrase, kind sql.NullString
		if err := rows.Scan(&code, &phrase, &kind); err != nil {
			return nil, fmt.Errorf("scanning %s row: %w", s.cfg.Table, err)
		}
		records = append(records, domain.Record{
			Position: len(records),
			Code:     code.String,
			Phrase:   phrase.String,
			Kind:     strings.ToLower(kind.String),
			Source:   s.Name(),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.cfg.Table, err)
	}
	return records, nil
}

// buildQuery renders the SELECT with every identifier quoted. A missing kind
// column selects NULL so the scan shape stays fixed.
func buildQuery(cfg config.PostgresConfig) (string, error) {
	if cfg.Table == "" || cfg.CodeColumn == "" || cfg.PhraseColumn == "" {
		return "", fmt.Errorf("postgres table, code_column and phrase_column are required")
	}

	kind := "NULL"
	if cfg.KindColumn != "" {
		kind = pq.QuoteIdentifier(cfg.KindColumn)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s, %s, %s FROM %s",
		pq.QuoteIdentifier(cfg.CodeColumn),
		pq.QuoteIdentifier(cfg.PhraseColumn),
		kind,
		quoteTable(cfg.Table),
	)
	if cfg.OrderBy != "" {
		fmt.Fprintf(&b, " ORDER BY %s", pq.QuoteIdentifier(cfg.OrderBy))
	}
	return b.String(), nil
}

// quoteTable quotes each part of a possibly schema-qualified name.
func quoteTable(table string) string {
	parts := strings.Split(table, ".")
	for i, p := range parts {
		parts[i] = pq.QuoteIdentifier(p)
	}
	return strings.Join(parts, ".")
}

var _ port.RecordSource = (*Source)(nil)
