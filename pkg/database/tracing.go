package database

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/utafrali/marketplace/pkg/database"

type slowQueryConfig struct {
	threshold time.Duration
	logger    *slog.Logger
}

var slowQuery atomic.Pointer[slowQueryConfig]

// SetSlowQueryLogging logs a warning for every traced query slower than
// threshold. A zero threshold disables it.
func SetSlowQueryLogging(threshold time.Duration, logger *slog.Logger) {
	if threshold <= 0 || logger == nil {
		slowQuery.Store(nil)
		return
	}
	slowQuery.Store(&slowQueryConfig{threshold: threshold, logger: logger})
}

// TraceQuery starts a client span for a store operation. system names the
// backend ("postgresql", "mongodb"). Call the returned func with the
// operation's error when it completes:
//
//	ctx, end := database.TraceQuery(ctx, "postgresql", "orders.Create", q)
//	defer func() { end(err) }()
func TraceQuery(ctx context.Context, system, operation, statement string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := otel.Tracer(tracerName).Start(ctx, "db."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", system),
			attribute.String("db.operation", operation),
			attribute.String("db.statement", statement),
		),
	)

	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()

		cfg := slowQuery.Load()
		if cfg == nil {
			return
		}
		if elapsed := time.Since(start); elapsed >= cfg.threshold {
			attrs := []any{
				slog.String("db_system", system),
				slog.String("operation", operation),
				slog.Duration("duration", elapsed),
			}
			if err != nil {
				attrs = append(attrs, slog.String("error", err.Error()))
			}
			cfg.logger.WarnContext(ctx, "slow query detected", attrs...)
		}
	}
}

// WithTracing wraps db so every Exec, Query and QueryRow runs inside a
// TraceQuery span. Transactions started with Begin are not traced.
func WithTracing(db DBTX, system string) DBTX {
	return &tracedDB{db: db, system: system}
}

type tracedDB struct {
	db     DBTX
	system string
}

func (t *tracedDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	ctx, end := TraceQuery(ctx, t.system, statementVerb(sql), sql)
	tag, err := t.db.Exec(ctx, sql, args...)
	end(err)
	return tag, err
}

func (t *tracedDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	ctx, end := TraceQuery(ctx, t.system, statementVerb(sql), sql)
	rows, err := t.db.Query(ctx, sql, args...)
	end(err)
	return rows, err
}

func (t *tracedDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	ctx, end := TraceQuery(ctx, t.system, statementVerb(sql), sql)
	return &tracedRow{row: t.db.QueryRow(ctx, sql, args...), end: end}
}

func (t *tracedDB) Begin(ctx context.Context) (pgx.Tx, error) {
	return t.db.Begin(ctx)
}

// tracedRow ends its span when scanned, since QueryRow defers errors to Scan.
type tracedRow struct {
	row pgx.Row
	end func(error)
}

func (r *tracedRow) Scan(dest ...any) error {
	err := r.row.Scan(dest...)
	if errors.Is(err, pgx.ErrNoRows) {
		r.end(nil)
	} else {
		r.end(err)
	}
	return err
}

// statementVerb returns the lower-cased first keyword of sql.
func statementVerb(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "query"
	}
	return strings.ToLower(fields[0])
}
