// Package postgres mirrors signal output into a PostgreSQL table for runs
// that want queryable results next to the CSV artifacts.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/aepodrez/crosssignals/internal/panel"
)

// Schema is the DDL for the signal output table. The uniqueness constraint
// mirrors the panel key plus the signal name.
const Schema = `
CREATE TABLE IF NOT EXISTS signals (
	signal   TEXT             NOT NULL,
	entity   TEXT             NOT NULL,
	yyyymm   INTEGER          NOT NULL,
	value    DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (signal, entity, yyyymm)
)`

// SignalsRepo writes signal rows through sqlx in bounded batches.
type SignalsRepo struct {
	db        *sqlx.DB
	table     string
	batchSize int
	timeout   time.Duration
}

// NewSignalsRepo creates the repository. batchSize bounds one INSERT's row
// count; zero picks a sensible default.
func NewSignalsRepo(db *sqlx.DB, table string, batchSize int) *SignalsRepo {
	if table == "" {
		table = "signals"
	}
	if batchSize <= 0 {
		batchSize = 500
	}
	return &SignalsRepo{db: db, table: table, batchSize: batchSize, timeout: 30 * time.Second}
}

func (r *SignalsRepo) Name() string { return "postgres" }

// WriteSignal upserts every non-missing cell of the field. Rerunning a
// signal replaces its previous values.
func (r *SignalsRepo) WriteSignal(ctx context.Context, signalName string, t *panel.Table, field string) (written, dropped int, err error) {
	col, err := t.Column(field)
	if err != nil {
		return 0, 0, err
	}
	keys := t.Keys()

	type row struct {
		entity string
		yyyymm int
		value  float64
	}
	batch := make([]row, 0, r.batchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		ctx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()

		tx, err := r.db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin: %w", err)
		}
		stmt, err := tx.PreparexContext(ctx, fmt.Sprintf(
			`INSERT INTO %s (signal, entity, yyyymm, value) VALUES ($1, $2, $3, $4)
			 ON CONFLICT (signal, entity, yyyymm) DO UPDATE SET value = EXCLUDED.value`, r.table))
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("prepare: %w", err)
		}
		for _, b := range batch {
			if _, err := stmt.ExecContext(ctx, signalName, b.entity, b.yyyymm, b.value); err != nil {
				stmt.Close()
				tx.Rollback()
				return fmt.Errorf("insert signal row: %w", err)
			}
		}
		stmt.Close()
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit: %w", err)
		}
		written += len(batch)
		batch = batch[:0]
		return nil
	}

	for i, key := range keys {
		if panel.IsMissing(col[i]) {
			dropped++
			continue
		}
		batch = append(batch, row{entity: string(key.Entity), yyyymm: key.Period.YYYYMM(), value: col[i]})
		if len(batch) >= r.batchSize {
			if err := flush(); err != nil {
				return written, dropped, err
			}
		}
	}
	if err := flush(); err != nil {
		return written, dropped, err
	}
	return written, dropped, nil
}
