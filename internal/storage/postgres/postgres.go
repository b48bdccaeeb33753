// internal/storage/postgres/postgres.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"
	"go.uber.org/zap"
)

// DefaultConnectTimeout bounds the start-up retry loop in NewPool.
const DefaultConnectTimeout = 30 * time.Second

// Pool wraps pgxpool.Pool.
type Pool struct {
	*pgxpool.Pool
}

// zapTracer forwards pgx query logs to zap. Queries go to debug, failures to
// error.
type zapTracer struct {
	logger *zap.Logger
}

func (t *zapTracer) Log(_ context.Context, level tracelog.LogLevel, msg string, data map[string]any) {
	fields := make([]zap.Field, 0, len(data))
	for k, v := range data {
		fields = append(fields, zap.Any(k, v))
	}

	switch level {
	case tracelog.LogLevelError:
		t.logger.Error(msg, fields...)
	case tracelog.LogLevelWarn:
		t.logger.Warn(msg, fields...)
	case tracelog.LogLevelInfo:
		t.logger.Info(msg, fields...)
	default:
		t.logger.Debug(msg, fields...)
	}
}

// NewPool connects to dsn, retrying with exponential backoff until the
// database answers a ping or the connect timeout elapses.
func NewPool(ctx context.Context, dsn string, logger *zap.Logger) (*Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}

	if logger != nil {
		level := tracelog.LogLevelWarn
		if logger.Core().Enabled(zap.DebugLevel) {
			level = tracelog.LogLevelDebug
		}
		config.ConnConfig.Tracer = &tracelog.TraceLog{
			Logger:   &zapTracer{logger: logger.Named("pgx")},
			LogLevel: level,
		}
	} else {
		logger = zap.NewNop()
	}
	config.MaxConns = 16
	config.MaxConnLifetime = time.Hour

	attempt := 0
	operation := func() (*pgxpool.Pool, error) {
		attempt++
		pool, err := pgxpool.NewWithConfig(ctx, config)
		if err != nil {
			return nil, fmt.Errorf("create postgres pool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		return pool, nil
	}
	notify := func(err error, next time.Duration) {
		logger.Warn("Postgres not ready, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("next_retry", next),
			zap.Error(err))
	}

	pool, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(DefaultConnectTimeout),
		backoff.WithNotify(notify))
	if err != nil {
		return nil, err
	}
	return &Pool{Pool: pool}, nil
}

func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func isNotFoundError(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
