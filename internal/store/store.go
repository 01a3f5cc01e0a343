package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

var (
	storeLatency metric.Float64Histogram
)

// querier is the slice of pgx.Conn the façade needs. Tests substitute a
// recording fake.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store serializes every database operation through one shared
// connection guarded by a mutex, so writes land in the order the
// handlers issue them.
type Store struct {
	mu      sync.Mutex
	conn    querier
	closeFn func(context.Context) error
}

// Connect opens the single shared connection and verifies it.
func Connect(ctx context.Context, dsn string) (*Store, error) {
	var err error

	meter := otel.Meter("store")
	storeLatency, err = meter.Float64Histogram("store.query.latency", metric.WithUnit("ms"))
	if err != nil {
		return nil, fmt.Errorf("failed to create store.query.latency instrument: %w", err)
	}

	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	ctx, span := otel.Tracer("store").Start(ctx, "store.ping")
	defer span.End()
	if err := conn.Ping(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to ping database")
		conn.Close(context.Background())
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	span.SetStatus(codes.Ok, "Database connected successfully")
	return &Store{conn: conn, closeFn: conn.Close}, nil
}

// newWithQuerier wires a Store over an arbitrary querier. Test seam.
func newWithQuerier(q querier) *Store {
	return &Store{conn: q}
}

func (s *Store) Close(ctx context.Context) error {
	if s.closeFn == nil {
		return nil
	}
	return s.closeFn(ctx)
}

func (s *Store) Health(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var one int
	return s.conn.QueryRow(ctx, `SELECT 1`).Scan(&one)
}

// instrument opens a span for one store operation and returns the
// completion callback that records latency and outcome.
func (s *Store) instrument(ctx context.Context, op string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := otel.Tracer("store").Start(ctx, op)
	return ctx, func(err error) {
		if storeLatency != nil {
			storeLatency.Record(ctx, float64(time.Since(start).Milliseconds()), metric.WithAttributes(attribute.String("store.operation", op)))
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, op+" failed")
		}
		span.End()
	}
}
