// Package postgres opens the lib/pq pool behind the SQL record store and
// provides the transaction helper the store writes through.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/compliance-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/compliance-search/pkg/resilience"
)

// connectBackoff covers a database that starts alongside the service.
var connectBackoff = resilience.Backoff{Attempts: 5, Initial: 500 * time.Millisecond, Max: 5 * time.Second}

// Open creates the pool and waits until the server answers a ping.
func Open(ctx context.Context, cfg config.PostgresConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("postgres %s:%d/%s: %w", cfg.Host, cfg.Port, cfg.Database, err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	err = resilience.Retry(ctx, "postgres-connect", connectBackoff, func(ctx context.Context) error {
		pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		return db.PingContext(pctx)
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres %s:%d/%s unreachable: %w", cfg.Host, cfg.Port, cfg.Database, err)
	}
	return db, nil
}

// PoolDetail summarises pool usage for health reports.
func PoolDetail(db *sql.DB) string {
	st := db.Stats()
	return fmt.Sprintf("%d open, %d in use, %d idle", st.OpenConnections, st.InUse, st.Idle)
}

// InTx runs fn in a transaction and commits if it returns nil. Errors and
// panics from fn roll the transaction back.
func InTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rb := tx.Rollback(); rb != nil {
				err = fmt.Errorf("%w (rollback: %v)", err, rb)
			}
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
