package geobase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultPostgresTable holds one row per document key
const DefaultPostgresTable = "geobase_documents"

// PostgresBackend implements Backend on a single key/value table.
// The table is created on the first successful Ping.
type PostgresBackend struct {
	pool  *pgxpool.Pool
	table string

	schemaMu    sync.Mutex
	schemaReady bool
}

// NewPostgresBackend parses dsn and builds a lazily-dialing pool
func NewPostgresBackend(ctx context.Context, dsn, table string) (*PostgresBackend, error) {
	if table == "" {
		table = DefaultPostgresTable
	}
	if !validTableName(table) {
		return nil, WithContext(ErrInvalidConfig, map[string]interface{}{
			"table":  table,
			"reason": "table name must be [a-z0-9_]",
		})
	}

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, WithContext(ErrInvalidConfig, map[string]interface{}{
			"reason": err.Error(),
		})
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	return &PostgresBackend{pool: pool, table: table}, nil
}

func validTableName(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '_') {
			return false
		}
	}
	return true
}

func (b *PostgresBackend) ensureSchema(ctx context.Context) error {
	b.schemaMu.Lock()
	defer b.schemaMu.Unlock()

	if b.schemaReady {
		return nil
	}
	_, err := b.pool.Exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		key  TEXT PRIMARY KEY,
		data BYTEA NOT NULL,
		etag TEXT NOT NULL
	)`, b.table))
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", b.table, err)
	}
	b.schemaReady = true
	return nil
}

func (b *PostgresBackend) Get(ctx context.Context, key string) ([]byte, error) {
	data, _, err := b.GetWithETag(ctx, key)
	return data, err
}

func (b *PostgresBackend) Put(ctx context.Context, key string, data []byte) error {
	_, err := b.pool.Exec(ctx, fmt.Sprintf(
		`INSERT INTO %s (key, data, etag) VALUES ($1, $2, $3)
		 ON CONFLICT (key) DO UPDATE SET data = EXCLUDED.data, etag = EXCLUDED.etag`, b.table),
		key, data, contentETag(data))
	return err
}

func (b *PostgresBackend) Delete(ctx context.Context, key string) error {
	tag, err := b.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE key = $1`, b.table), key)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (b *PostgresBackend) Exists(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := b.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE key = $1)`, b.table), key).Scan(&exists)
	return exists, err
}

func (b *PostgresBackend) GetWithETag(ctx context.Context, key string) ([]byte, string, error) {
	var data []byte
	var etag string
	err := b.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT data, etag FROM %s WHERE key = $1`, b.table), key).Scan(&data, &etag)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, "", ErrNotFound
	}
	if err != nil {
		return nil, "", err
	}
	return data, etag, nil
}

func (b *PostgresBackend) PutIfMatch(ctx context.Context, key string, data []byte, expectedETag string) (string, error) {
	etag := contentETag(data)
	if expectedETag == "" {
		return etag, b.Put(ctx, key, data)
	}

	tag, err := b.pool.Exec(ctx,
		fmt.Sprintf(`UPDATE %s SET data = $2, etag = $3 WHERE key = $1 AND etag = $4`, b.table),
		key, data, etag, expectedETag)
	if err != nil {
		return "", err
	}
	if tag.RowsAffected() == 1 {
		return etag, nil
	}

	exists, err := b.Exists(ctx, key)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", ErrNotFound
	}
	return "", WithContext(ErrConflict, map[string]interface{}{
		"key":      key,
		"expected": expectedETag,
	})
}

func (b *PostgresBackend) List(ctx context.Context, prefix string) ([]string, error) {
	rows, err := b.pool.Query(ctx,
		fmt.Sprintf(`SELECT key FROM %s WHERE key LIKE $1 ESCAPE '\' ORDER BY key COLLATE "C"`, b.table),
		escapeLike(prefix)+"%")
	if err != nil {
		return nil, err
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	if keys == nil {
		keys = []string{}
	}
	return keys, nil
}

// Ping checks the server and makes sure the documents table exists
func (b *PostgresBackend) Ping(ctx context.Context) error {
	if err := b.pool.Ping(ctx); err != nil {
		return err
	}
	return b.ensureSchema(ctx)
}

func (b *PostgresBackend) Close() error {
	b.pool.Close()
	return nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
