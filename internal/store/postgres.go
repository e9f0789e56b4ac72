package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS versions (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	shapes     JSONB NOT NULL
)`

// Postgres stores versions in a shared database.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to dsn and ensures the schema exists.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	if dsn == "" {
		return nil, errors.New("postgres: DATABASE_URL is not set")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: schema: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Save(ctx context.Context, v Version) error {
	data, err := encodeShapes(v.Shapes)
	if err != nil {
		return err
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO versions (id, name, created_at, shapes) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, created_at = EXCLUDED.created_at, shapes = EXCLUDED.shapes`,
		v.ID, v.Name, v.Timestamp, data)
	if err != nil {
		return fmt.Errorf("save version: %w", err)
	}
	return nil
}

func (p *Postgres) List(ctx context.Context) ([]Version, error) {
	rows, err := p.pool.Query(ctx, `SELECT id, name, created_at, shapes FROM versions ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	var out []Version
	for rows.Next() {
		v, err := p.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	return out, nil
}

func (p *Postgres) Get(ctx context.Context, id string) (Version, error) {
	row := p.pool.QueryRow(ctx, `SELECT id, name, created_at, shapes FROM versions WHERE id = $1`, id)
	v, err := p.scan(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Version{}, ErrNotFound
	}
	return v, err
}

func (p *Postgres) Delete(ctx context.Context, id string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM versions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete version: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func (p *Postgres) scan(row pgx.Row) (Version, error) {
	var (
		v      Version
		shapes []byte
	)
	if err := row.Scan(&v.ID, &v.Name, &v.Timestamp, &shapes); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Version{}, err
		}
		return Version{}, fmt.Errorf("scan version: %w", err)
	}
	v.Timestamp = v.Timestamp.UTC()
	list, err := decodeShapes(shapes)
	if err != nil {
		return Version{}, err
	}
	v.Shapes = list
	return v, nil
}
