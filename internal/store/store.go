// Package store persists fee-schedule records. Each document's lookup and
// writes run inside one transaction.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"github.com/gyeh/feeschedule/internal/db"
	"github.com/gyeh/feeschedule/internal/model"
	"github.com/gyeh/feeschedule/internal/reconcile"
	embedsql "github.com/gyeh/feeschedule/internal/sql"
)

// RecordsTable is the COPY target for new records.
var RecordsTable = pgx.Identifier{"feesched", "fee_schedule_records"}

// Beginner starts transactions. *pgxpool.Pool satisfies it.
type Beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// DB is what the gateway needs from a pool: transactions for document work
// and single statements for the document registry.
type DB interface {
	Beginner
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Writer is the work a document may do inside its transaction. *Unit
// implements it.
type Writer interface {
	Lookup(ctx context.Context, keys []model.Key) (reconcile.Lookup, error)
	Insert(ctx context.Context, recs []model.FeeScheduleRecord) (int64, error)
	Update(ctx context.Context, recs []model.FeeScheduleRecord) (int64, error)
}

// Gateway is the persistence collaborator of the ingest pipeline.
type Gateway struct {
	db  DB
	log zerolog.Logger
}

// New creates a Gateway.
func New(pool DB, log zerolog.Logger) *Gateway {
	return &Gateway{db: pool, log: log}
}

// Document runs fn inside one transaction. The transaction commits when fn
// returns nil and rolls back when fn fails, panics or the context ends, so
// either all of a document's writes land or none do.
func (g *Gateway) Document(ctx context.Context, fn func(ctx context.Context, w Writer) error) (err error) {
	tx, err := g.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}

	committing := false
	defer func() {
		r := recover()
		if !committing {
			if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				g.log.Warn().Err(rbErr).Msg("rollback failed")
			}
		}
		if r != nil {
			err = fmt.Errorf("document unit panicked: %v", r)
		}
	}()

	if err := fn(ctx, &Unit{tx: tx, log: g.log}); err != nil {
		return err
	}

	committing = true
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Unit is one document's transaction.
type Unit struct {
	tx  pgx.Tx
	log zerolog.Logger
}

var _ Writer = (*Unit)(nil)

// Lookup returns the stored non-key values for each key that exists.
// Returned rows that match none of the requested keys are logged and skipped.
func (u *Unit) Lookup(ctx context.Context, keys []model.Key) (reconcile.Lookup, error) {
	found := make(reconcile.Lookup, len(keys))
	if len(keys) == 0 {
		return found, nil
	}

	requested := make(map[model.Key]struct{}, len(keys))
	codes := make([]string, len(keys))
	modifiers := make([]*string, len(keys))
	locations := make([]string, len(keys))
	for i, k := range keys {
		requested[k] = struct{}{}
		codes[i] = k.Code
		modifiers[i] = k.ModifierPtr()
		locations[i] = k.Location
	}

	rows, err := u.tx.Query(ctx, embedsql.LookupRecords, codes, modifiers, locations)
	if err != nil {
		return nil, fmt.Errorf("lookup records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rec model.FeeScheduleRecord
		if err := rows.Scan(
			&rec.Code,
			&rec.Modifier,
			&rec.Location,
			&rec.GlobalSurgeryIndicator,
			&rec.MultipleSurgeryIndicator,
			&rec.PrevailingChargeAmount,
			&rec.FeeScheduleAmount,
			&rec.SiteOfServiceAmount,
		); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		k := rec.Key()
		if _, ok := requested[k]; !ok {
			u.log.Warn().Str("key", k.String()).Msg("stored row does not match a requested key, skipping")
			continue
		}
		found[k] = rec.Values()
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("lookup records: %w", err)
	}
	return found, nil
}

// Insert bulk-loads new records with COPY.
func (u *Unit) Insert(ctx context.Context, recs []model.FeeScheduleRecord) (int64, error) {
	if len(recs) == 0 {
		return 0, nil
	}
	n, err := u.tx.CopyFrom(ctx, RecordsTable, model.Columns(), db.NewRecordSource(recs))
	if err != nil {
		return 0, fmt.Errorf("copy records: %w", err)
	}
	return n, nil
}

// Update overwrites the non-key fields of existing records in one statement
// matched on the natural key.
func (u *Unit) Update(ctx context.Context, recs []model.FeeScheduleRecord) (int64, error) {
	if len(recs) == 0 {
		return 0, nil
	}

	cols := make([][]*string, len(model.AllFields))
	for i := range cols {
		cols[i] = make([]*string, len(recs))
	}
	for i := range recs {
		r := &recs[i]
		code, loc := r.Code, r.Location
		cols[0][i] = &code
		cols[1][i] = r.Modifier
		cols[2][i] = &loc
		cols[3][i] = r.GlobalSurgeryIndicator
		cols[4][i] = r.MultipleSurgeryIndicator
		cols[5][i] = r.PrevailingChargeAmount
		cols[6][i] = r.FeeScheduleAmount
		cols[7][i] = r.SiteOfServiceAmount
	}

	args := make([]any, len(cols))
	for i, c := range cols {
		args[i] = c
	}
	tag, err := u.tx.Exec(ctx, embedsql.UpdateRecords, args...)
	if err != nil {
		return 0, fmt.Errorf("update records: %w", err)
	}
	if n := tag.RowsAffected(); n != int64(len(recs)) {
		u.log.Warn().Int64("updated", n).Int("expected", len(recs)).Msg("update touched an unexpected number of rows")
	}
	return tag.RowsAffected(), nil
}
