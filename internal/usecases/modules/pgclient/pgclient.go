// Package pgclient wraps a pgx pool with the statement builder and the
// rollback helper the repo layer expects.
package pgclient

import (
	"context"
	"errors"

	"github.com/Masterminds/squirrel"
	"github.com/chindada/leopard/pkg/log"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultMaxPoolSize = 10

type PGClient interface {
	Pool() *pgxpool.Pool
	Builder() squirrel.StatementBuilderType
	Rollback(ctx context.Context, tx pgx.Tx)
	Close()
}

type Option func(*pgClient)

func MaxPoolSize(size int) Option {
	return func(c *pgClient) {
		if size > 0 {
			c.maxPoolSize = size
		}
	}
}

func AddLogger(logger *log.Log) Option {
	return func(c *pgClient) {
		c.logger = logger
	}
}

type pgClient struct {
	maxPoolSize int
	logger      *log.Log

	pool    *pgxpool.Pool
	builder squirrel.StatementBuilderType
}

func New(ctx context.Context, connString string, opts ...Option) (PGClient, error) {
	c := &pgClient{
		maxPoolSize: defaultMaxPoolSize,
		logger:      log.Get(),
		builder:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
	for _, opt := range opts {
		opt(c)
	}
	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, err
	}
	poolConfig.MaxConns = int32(c.maxPoolSize)
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}
	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	c.pool = pool
	return c, nil
}

func (c *pgClient) Pool() *pgxpool.Pool {
	return c.pool
}

func (c *pgClient) Builder() squirrel.StatementBuilderType {
	return c.builder
}

// Rollback is safe to defer after Commit; a finished transaction is not
// an error worth logging.
func (c *pgClient) Rollback(ctx context.Context, tx pgx.Tx) {
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		c.logger.Warnf("transaction rollback: %v", err)
	}
}

func (c *pgClient) Close() {
	if c.pool != nil {
		c.pool.Close()
	}
}
