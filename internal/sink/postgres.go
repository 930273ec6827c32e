package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/marketpulse/scrape-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool the postgres sink needs. pgxmock
// satisfies it for tests.
type Pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

var postgresColumns = []string{"source", "hash", "url", "data", "scraped_at", "uploaded_at"}

// Postgres upserts records into a table keyed by the content hash. Each
// batch goes through a temp table and a single INSERT ... ON CONFLICT, so
// a batch is one round of COPY plus one statement regardless of size. The
// RETURNING clause splits the result into inserted and updated counts.
type Postgres struct {
	pool    Pool
	table   string
	source  string
	ownPool bool
	now     func() time.Time
}

// NewPostgres connects to connString and targets table (schema-qualified
// names allowed). The pool is closed by Close.
func NewPostgres(ctx context.Context, connString, table, source string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, eris.Wrap(err, "sink: postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "sink: postgres: ping")
	}

	s := NewPostgresWithPool(pool, table, source)
	s.ownPool = true
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresWithPool wraps an existing pool. The caller keeps ownership
// of the pool; Close will not close it.
func NewPostgresWithPool(pool Pool, table, source string) *Postgres {
	if table == "" {
		table = "records"
	}
	return &Postgres{pool: pool, table: table, source: source, now: time.Now}
}

func (s *Postgres) Name() string { return "postgres:" + s.table }

// EnsureSchema creates the target table if it does not exist.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		source       TEXT NOT NULL,
		hash         TEXT PRIMARY KEY,
		url          TEXT,
		data         JSONB NOT NULL,
		scraped_at   TIMESTAMPTZ,
		uploaded_at  TIMESTAMPTZ NOT NULL
	)`, sanitizeTable(s.table))
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return eris.Wrapf(err, "sink: postgres: create table %s", s.table)
	}
	return nil
}

// WriteBatch upserts the records through a temp table. Records without a
// hash are counted as failed and skipped.
func (s *Postgres) WriteBatch(ctx context.Context, records []model.Record) (Result, error) {
	rows, failed, err := s.buildRows(records)
	if err != nil {
		return Result{}, err
	}
	if len(rows) == 0 {
		return Result{Failed: failed}, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Result{Failed: failed}, eris.Wrap(err, "sink: postgres: begin tx")
	}
	defer tx.Rollback(ctx)

	tempTable := fmt.Sprintf("_tmp_upsert_%s", strings.ReplaceAll(s.table, ".", "_"))
	createSQL := fmt.Sprintf(
		"CREATE TEMP TABLE %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP",
		pgx.Identifier{tempTable}.Sanitize(),
		sanitizeTable(s.table),
	)
	if _, err := tx.Exec(ctx, createSQL); err != nil {
		return Result{Failed: failed}, eris.Wrapf(err, "sink: postgres: create temp table for %s", s.table)
	}

	if _, err := tx.CopyFrom(ctx, pgx.Identifier{tempTable}, postgresColumns, pgx.CopyFromRows(rows)); err != nil {
		return Result{Failed: failed}, eris.Wrapf(err, "sink: postgres: COPY into temp table for %s", s.table)
	}

	colList := quoteAndJoin(postgresColumns)
	var setClauses []string
	for _, col := range postgresColumns {
		if col == "hash" {
			continue
		}
		setClauses = append(setClauses, fmt.Sprintf("%s = EXCLUDED.%s",
			pgx.Identifier{col}.Sanitize(), pgx.Identifier{col}.Sanitize()))
	}

	upsertSQL := fmt.Sprintf(
		"INSERT INTO %s (%s) SELECT %s FROM %s ON CONFLICT (hash) DO UPDATE SET %s RETURNING (xmax = 0) AS inserted",
		sanitizeTable(s.table),
		colList,
		colList,
		pgx.Identifier{tempTable}.Sanitize(),
		strings.Join(setClauses, ", "),
	)

	result := Result{Failed: failed}
	resultRows, err := tx.Query(ctx, upsertSQL)
	if err != nil {
		return result, eris.Wrapf(err, "sink: postgres: INSERT ON CONFLICT for %s", s.table)
	}
	for resultRows.Next() {
		var inserted bool
		if err := resultRows.Scan(&inserted); err != nil {
			resultRows.Close()
			return result, eris.Wrap(err, "sink: postgres: scan upsert result")
		}
		if inserted {
			result.Inserted++
		} else {
			result.Updated++
		}
	}
	resultRows.Close()
	if err := resultRows.Err(); err != nil {
		return result, eris.Wrap(err, "sink: postgres: read upsert result")
	}

	if err := tx.Commit(ctx); err != nil {
		return Result{Failed: failed}, eris.Wrap(err, "sink: postgres: commit tx")
	}
	return result, nil
}

// Close releases the pool when this sink created it.
func (s *Postgres) Close(_ context.Context) error {
	if s.ownPool {
		s.pool.Close()
	}
	return nil
}

func (s *Postgres) buildRows(records []model.Record) ([][]any, int, error) {
	var failed int
	rows := make([][]any, 0, len(records))
	uploadedAt := s.now().UTC()

	for _, rec := range records {
		hash, _ := rec[model.FieldHash].(string)
		if hash == "" {
			failed++
			continue
		}

		data, err := json.Marshal(rec)
		if err != nil {
			return nil, failed, eris.Wrap(err, "sink: postgres: marshal record")
		}

		var url any
		if u, ok := rec[model.FieldURL].(string); ok && u != "" {
			url = u
		}
		var scrapedAt any
		if raw, ok := rec[model.FieldScrapedAt].(string); ok {
			if t, err := time.Parse(time.RFC3339, raw); err == nil {
				scrapedAt = t
			}
		}

		rows = append(rows, []any{s.source, hash, url, data, scrapedAt, uploadedAt})
	}
	return rows, failed, nil
}

// sanitizeTable handles schema-qualified table names like "scrape.records".
func sanitizeTable(table string) string {
	parts := strings.SplitN(table, ".", 2)
	if len(parts) == 2 {
		return pgx.Identifier{parts[0], parts[1]}.Sanitize()
	}
	return pgx.Identifier{table}.Sanitize()
}

func quoteAndJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
