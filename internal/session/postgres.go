package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresConfig configures OpenPostgres.
type PostgresConfig struct {
	DSN string
	// Schema, when set, is created if missing and holds the sessions table.
	Schema string
}

// PostgresRepository stores records in Postgres through a pgx pool.
type PostgresRepository struct {
	pool  *pgxpool.Pool
	table string
}

// OpenPostgres connects, verifies the connection and ensures the schema exists.
func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*PostgresRepository, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, errors.New("postgres dsn is empty")
	}
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	table := "sessions"
	if schema := strings.TrimSpace(cfg.Schema); schema != "" {
		ident := pgx.Identifier{schema}.Sanitize()
		if _, err := pool.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+ident); err != nil {
			pool.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
		table = pgx.Identifier{schema, "sessions"}.Sanitize()
	}

	r := &PostgresRepository{pool: pool, table: table}
	if err := r.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return r, nil
}

func (r *PostgresRepository) migrate(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS ` + r.table + ` (
    id               TEXT PRIMARY KEY,
    url              TEXT NOT NULL,
    page_title       TEXT NOT NULL DEFAULT '',
    summary_text     TEXT NOT NULL DEFAULT '',
    voice_text       TEXT NOT NULL DEFAULT '',
    summary_type     TEXT NOT NULL DEFAULT 'brief',
    session_type     TEXT NOT NULL,
    summary_length   INTEGER NOT NULL DEFAULT 0,
    voice_length     INTEGER NOT NULL DEFAULT 0,
    session_duration BIGINT NOT NULL DEFAULT 0,
    tags             TEXT NOT NULL DEFAULT '[]',
    user_agent       TEXT NOT NULL DEFAULT '',
    created_at       BIGINT NOT NULL,
    is_archived      BOOLEAN NOT NULL DEFAULT FALSE
)`
	if _, err := r.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create sessions table: %w", err)
	}
	return nil
}

func postgresPlaceholder(n int) string { return "$" + strconv.Itoa(n) }

// Driver implements Driver.
func (r *PostgresRepository) Driver() string { return "postgres" }

func (r *PostgresRepository) Put(ctx context.Context, rec *Record) error {
	args, err := recordArgs(rec)
	if err != nil {
		return err
	}
	marks := make([]string, len(args))
	for i := range args {
		marks[i] = postgresPlaceholder(i + 1)
	}
	_, err = r.pool.Exec(ctx,
		"INSERT INTO "+r.table+" ("+recordColumns+") VALUES ("+strings.Join(marks, ", ")+")", args...)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*Record, error) {
	row := r.pool.QueryRow(ctx, "SELECT "+recordColumns+" FROM "+r.table+" WHERE id = $1", id)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return rec, nil
}

func (r *PostgresRepository) Query(ctx context.Context, q Query) ([]*Record, error) {
	query, args := buildQuery(r.table, q, postgresPlaceholder)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) DeleteByID(ctx context.Context, id string) (bool, error) {
	tag, err := r.pool.Exec(ctx, "DELETE FROM "+r.table+" WHERE id = $1", id)
	if err != nil {
		return false, fmt.Errorf("delete session: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PostgresRepository) Count(ctx context.Context, f CountFilter) (int, error) {
	query, args := buildCount(r.table, f, postgresPlaceholder)
	var n int64
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return int(n), nil
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}
