package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"

	"geodash/internal/record"
	"geodash/internal/sqlcgen"
)

var errNotConnected = errors.New("database not connected")

type Pool struct {
	pool *pgxpool.Pool
}

func Open(ctx context.Context, databaseURL string) (*Pool, error) {
	p, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	// Verify connectivity early.
	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, err
	}

	return &Pool{pool: p}, nil
}

// Queries returns the table queries bound to the pool.
func (p *Pool) Queries() *sqlcgen.Queries {
	return sqlcgen.New(p.pool)
}

func (p *Pool) Close() {
	if p == nil || p.pool == nil {
		return
	}
	p.pool.Close()
}

func (p *Pool) Ping(ctx context.Context) error {
	if p == nil || p.pool == nil {
		return nil
	}
	return p.pool.Ping(ctx)
}

func (p *Pool) ListTableRows(ctx context.Context, table string, limit int) ([]map[string]any, error) {
	if p == nil || p.pool == nil {
		return nil, errNotConnected
	}
	return p.Queries().ListTableRows(ctx, table, limit)
}

// FetchTable reads up to sqlcgen.MaxRows rows; it lets a Pool feed the loader directly.
func (p *Pool) FetchTable(ctx context.Context, table string) ([]map[string]any, error) {
	return p.ListTableRows(ctx, table, sqlcgen.MaxRows)
}

func (p *Pool) UpdateCoords(ctx context.Context, table string, u record.CoordUpdate) (int64, error) {
	if p == nil || p.pool == nil {
		return 0, errNotConnected
	}
	return p.Queries().UpdateCoords(ctx, table, u)
}

func (p *Pool) ListTableColumns(ctx context.Context, table string) ([]sqlcgen.Column, error) {
	if p == nil || p.pool == nil {
		return nil, errNotConnected
	}
	return p.Queries().ListTableColumns(ctx, table)
}

func (p *Pool) InsertRecord(ctx context.Context, table string, r record.Record) error {
	if p == nil || p.pool == nil {
		return errNotConnected
	}
	return p.Queries().InsertRecord(ctx, table, r)
}
