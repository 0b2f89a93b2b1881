// Package sqlstore serves records from a single SQL table of JSON payloads.
// The same statements run on PostgreSQL (lib/pq) and SQLite (modernc).
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Adithya-Monish-Kumar-K/compliance-search/internal/records"
	"github.com/Adithya-Monish-Kumar-K/compliance-search/pkg/postgres"
)

// Dialect selects placeholder syntax.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

const schema = `CREATE TABLE IF NOT EXISTS records (
	record_type TEXT NOT NULL,
	record_key  TEXT NOT NULL,
	payload     TEXT NOT NULL,
	updated_at  TIMESTAMP NOT NULL,
	PRIMARY KEY (record_type, record_key)
)`

type Store struct {
	db      *sql.DB
	dialect Dialect
	logger  *slog.Logger
}

// New wraps an open database. The caller owns db.
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{
		db:      db,
		dialect: dialect,
		logger:  slog.Default().With("component", "sqlstore", "dialect", string(dialect)),
	}
}

// OpenSQLite opens (creating if needed) a SQLite database file.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	dsn := path
	if strings.Contains(dsn, "?") {
		dsn += "&_pragma=busy_timeout(5000)"
	} else {
		dsn += "?_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite %s: %w", path, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging sqlite %s: %w", path, err)
	}
	return db, nil
}

// Migrate creates the records table.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating records table: %w", err)
	}
	return nil
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (s *Store) rebind(q string) string {
	if s.dialect != DialectPostgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Upsert writes records of one type in a single transaction.
func (s *Store) Upsert(ctx context.Context, rt records.Type, items map[string]any) error {
	q := s.rebind(`INSERT INTO records (record_type, record_key, payload, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (record_type, record_key) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`)
	now := time.Now().UTC()
	return postgres.InTx(ctx, s.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, q)
		if err != nil {
			return fmt.Errorf("preparing upsert: %w", err)
		}
		defer stmt.Close()
		for key, item := range items {
			payload, err := json.Marshal(item)
			if err != nil {
				return fmt.Errorf("encoding %s %s: %w", rt, key, err)
			}
			if _, err := stmt.ExecContext(ctx, string(rt), key, string(payload), now); err != nil {
				return fmt.Errorf("upserting %s %s: %w", rt, key, err)
			}
		}
		return nil
	})
}

// PutTasks upserts tasks keyed by Key.
func (s *Store) PutTasks(ctx context.Context, tasks ...records.Task) error {
	items := make(map[string]any, len(tasks))
	for _, t := range tasks {
		items[t.Key] = t
	}
	return s.Upsert(ctx, records.TypeTask, items)
}

func (s *Store) PutTeamMembers(ctx context.Context, members ...records.TeamMember) error {
	items := make(map[string]any, len(members))
	for _, m := range members {
		items[m.Email] = m
	}
	return s.Upsert(ctx, records.TypeTeam, items)
}

func (s *Store) PutLegislation(ctx context.Context, refs ...records.LegislationReference) error {
	items := make(map[string]any, len(refs))
	for _, l := range refs {
		items[l.Code] = l
	}
	return s.Upsert(ctx, records.TypeLegislation, items)
}

// Delete removes one record.
func (s *Store) Delete(ctx context.Context, rt records.Type, key string) error {
	_, err := s.db.ExecContext(ctx,
		s.rebind(`DELETE FROM records WHERE record_type = ? AND record_key = ?`),
		string(rt), key)
	if err != nil {
		return fmt.Errorf("deleting %s %s: %w", rt, key, err)
	}
	return nil
}

func (s *Store) LoadTasks(ctx context.Context) ([]records.Task, error) {
	return load[records.Task](ctx, s, records.TypeTask)
}

func (s *Store) GetTask(ctx context.Context, key string) (*records.Task, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT payload FROM records WHERE record_type = ? AND record_key = ?`),
		string(records.TypeTask), key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying task %s: %w", key, err)
	}
	var t records.Task
	if err := json.Unmarshal([]byte(payload), &t); err != nil {
		return nil, fmt.Errorf("decoding task %s: %w", key, err)
	}
	return &t, nil
}

func (s *Store) LoadTeamMembers(ctx context.Context) ([]records.TeamMember, error) {
	return load[records.TeamMember](ctx, s, records.TypeTeam)
}

func (s *Store) LoadLegislation(ctx context.Context) ([]records.LegislationReference, error) {
	return load[records.LegislationReference](ctx, s, records.TypeLegislation)
}

// load skips rows whose payload does not decode.
func load[T any](ctx context.Context, s *Store, rt records.Type) ([]T, error) {
	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT record_key, payload FROM records WHERE record_type = ? ORDER BY record_key`),
		string(rt))
	if err != nil {
		return nil, fmt.Errorf("querying %s records: %w", rt, err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		var key, payload string
		if err := rows.Scan(&key, &payload); err != nil {
			return nil, fmt.Errorf("scanning %s record: %w", rt, err)
		}
		var v T
		if err := json.Unmarshal([]byte(payload), &v); err != nil {
			s.logger.Warn("skipping undecodable record", "record_type", rt, "key", key, "error", err)
			continue
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s records: %w", rt, err)
	}
	return out, nil
}
