package persistence

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresDocuments stores documents as JSONB rows in the documents table.
type PostgresDocuments struct {
	pool *pgxpool.Pool
}

// NewPostgresDocuments wraps a pool.
func NewPostgresDocuments(pool *pgxpool.Pool) *PostgresDocuments {
	return &PostgresDocuments{pool: pool}
}

func (d *PostgresDocuments) Get(ctx context.Context, collection, key string, out any) error {
	const query = `SELECT body FROM documents WHERE collection=$1 AND key=$2`
	return d.scanOne(ctx, out, query, collection, key)
}

func (d *PostgresDocuments) FindOne(ctx context.Context, collection, field, value string, out any) error {
	const query = `
        SELECT body FROM documents
        WHERE collection=$1 AND body #>> $2::text[] = $3
        ORDER BY created_at LIMIT 1`
	return d.scanOne(ctx, out, query, collection, splitPath(field), value)
}

func (d *PostgresDocuments) Insert(ctx context.Context, collection, key string, doc any) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	const query = `
        INSERT INTO documents (collection, key, body) VALUES ($1,$2,$3::jsonb)
        ON CONFLICT (collection, key) DO NOTHING`
	cmd, err := d.pool.Exec(ctx, query, collection, key, string(body))
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrDuplicateKey
	}
	return nil
}

func (d *PostgresDocuments) Upsert(ctx context.Context, collection, key string, doc any) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	const query = `
        INSERT INTO documents (collection, key, body) VALUES ($1,$2,$3::jsonb)
        ON CONFLICT (collection, key) DO UPDATE SET body=EXCLUDED.body, updated_at=NOW()`
	_, err = d.pool.Exec(ctx, query, collection, key, string(body))
	return err
}

func (d *PostgresDocuments) Delete(ctx context.Context, collection, key string) error {
	const query = `DELETE FROM documents WHERE collection=$1 AND key=$2`
	return d.exec(ctx, query, collection, key)
}

func (d *PostgresDocuments) Set(ctx context.Context, collection, key, path string, value any) error {
	body, err := json.Marshal(value)
	if err != nil {
		return err
	}
	const query = `
        UPDATE documents SET body=jsonb_set(body, $3::text[], $4::jsonb, true), updated_at=NOW()
        WHERE collection=$1 AND key=$2`
	return d.exec(ctx, query, collection, key, splitPath(path), string(body))
}

func (d *PostgresDocuments) Unset(ctx context.Context, collection, key, path string) error {
	const query = `
        UPDATE documents SET body=body #- $3::text[], updated_at=NOW()
        WHERE collection=$1 AND key=$2`
	return d.exec(ctx, query, collection, key, splitPath(path))
}

func (d *PostgresDocuments) Push(ctx context.Context, collection, key, path string, value any) error {
	body, err := json.Marshal(value)
	if err != nil {
		return err
	}
	const query = `
        UPDATE documents SET body=jsonb_set(body, $3::text[],
            (CASE WHEN jsonb_typeof(body #> $3::text[]) = 'array' THEN body #> $3::text[] ELSE '[]'::jsonb END)
                || jsonb_build_array($4::jsonb), true),
            updated_at=NOW()
        WHERE collection=$1 AND key=$2`
	return d.exec(ctx, query, collection, key, splitPath(path), string(body))
}

func (d *PostgresDocuments) Pull(ctx context.Context, collection, key, path string, value any) error {
	body, err := json.Marshal(value)
	if err != nil {
		return err
	}
	const query = `
        UPDATE documents SET body=jsonb_set(body, $3::text[], COALESCE((
            SELECT jsonb_agg(elem) FROM jsonb_array_elements(
                CASE WHEN jsonb_typeof(body #> $3::text[]) = 'array' THEN body #> $3::text[] ELSE '[]'::jsonb END
            ) AS elem
            WHERE elem <> $4::jsonb), '[]'::jsonb), true),
            updated_at=NOW()
        WHERE collection=$1 AND key=$2`
	return d.exec(ctx, query, collection, key, splitPath(path), string(body))
}

func (d *PostgresDocuments) Ping(ctx context.Context) error {
	if d.pool == nil {
		return errors.New("postgres pool not configured")
	}
	return d.pool.Ping(ctx)
}

func (d *PostgresDocuments) scanOne(ctx context.Context, out any, query string, args ...any) error {
	var body []byte
	if err := d.pool.QueryRow(ctx, query, args...).Scan(&body); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNoDocument
		}
		return err
	}
	return json.Unmarshal(body, out)
}

func (d *PostgresDocuments) exec(ctx context.Context, query string, args ...any) error {
	cmd, err := d.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNoDocument
	}
	return nil
}
