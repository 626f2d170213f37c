package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vitos/signal_copier/internal/domain"
)

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

// rebind rewrites ? placeholders into the dialect's form.
func (d dialect) rebind(query string) string {
	if d != dialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SQLStore is a CorrelationRepository over database/sql. Each correlated id
// is one row keyed by (message_id, leg), so appends never rewrite old rows.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
}

func NewSQLiteStore(dbPath string) (*SQLStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	// single writer
	db.SetMaxOpenConns(1)

	store := &SQLStore{db: db, dialect: dialectSQLite}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLStore) initSchema() error {
	createdAt := "DATETIME"
	if s.dialect == dialectPostgres {
		createdAt = "TIMESTAMP"
	}
	queries := []string{
		`CREATE TABLE IF NOT EXISTS correlations (
			message_id BIGINT NOT NULL,
			leg INTEGER NOT NULL,
			position_id TEXT NOT NULL,
			created_at ` + createdAt + ` NOT NULL,
			PRIMARY KEY (message_id, leg)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_correlations_position ON correlations(position_id);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("failed to exec query %s: %w", q, err)
		}
	}
	return nil
}

// Record appends ids after the message's existing legs in one transaction.
func (s *SQLStore) Record(ctx context.Context, messageID int64, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin record: %w", err)
	}
	defer tx.Rollback()

	var next int
	row := tx.QueryRowContext(ctx,
		s.dialect.rebind(`SELECT COALESCE(MAX(leg)+1, 0) FROM correlations WHERE message_id = ?`), messageID)
	if err := row.Scan(&next); err != nil {
		return fmt.Errorf("next leg for %d: %w", messageID, err)
	}

	query := s.dialect.rebind(`INSERT INTO correlations (message_id, leg, position_id, created_at) VALUES (?, ?, ?, ?)`)
	now := time.Now().UTC()
	for i, id := range ids {
		if _, err := tx.ExecContext(ctx, query, messageID, next+i, id, now); err != nil {
			return fmt.Errorf("insert correlation %d/%s: %w", messageID, id, err)
		}
	}
	return tx.Commit()
}

func (s *SQLStore) Lookup(ctx context.Context, messageID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		s.dialect.rebind(`SELECT position_id FROM correlations WHERE message_id = ? ORDER BY leg`), messageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, domain.ErrCorrelationNotFound
	}
	return ids, nil
}

func (s *SQLStore) List(ctx context.Context) (map[int64][]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT message_id, position_id FROM correlations ORDER BY message_id, leg`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64][]string)
	for rows.Next() {
		var (
			messageID int64
			id        string
		)
		if err := rows.Scan(&messageID, &id); err != nil {
			return nil, err
		}
		out[messageID] = append(out[messageID], id)
	}
	return out, rows.Err()
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
