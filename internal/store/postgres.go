package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/KaramelBytes/listingloom/internal/model"
)

// Pool is the subset of pgxpool.Pool used by PostgresStore.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	cfg.MaxConns = 10
	cfg.MinConns = 1
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// raw_payload is TEXT rather than JSONB so column order survives.
const postgresMigration = `
CREATE TABLE IF NOT EXISTS records (
	id          BIGSERIAL PRIMARY KEY,
	external_id TEXT NOT NULL UNIQUE,
	raw_payload TEXT NOT NULL,
	search_text TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL DEFAULT 'active',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS usage_counters (
	user_id            TEXT NOT NULL,
	ip_address         TEXT NOT NULL,
	daily_count        INTEGER NOT NULL DEFAULT 0,
	monthly_count      INTEGER NOT NULL DEFAULT 0,
	last_reset_daily   TIMESTAMPTZ NOT NULL,
	last_reset_monthly TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (user_id, ip_address)
);

CREATE INDEX IF NOT EXISTS idx_records_status ON records(status);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Upsert(ctx context.Context, externalID string, payload model.Payload) (*model.Record, bool, error) {
	raw, err := encodePayload(payload)
	if err != nil {
		return nil, false, err
	}
	now := time.Now().UTC()
	rec := model.Record{ExternalID: externalID, Payload: payload.Clone(), UpdatedAt: now}

	var (
		status  string
		created bool
	)
	err = s.pool.QueryRow(ctx,
		`INSERT INTO records (external_id, raw_payload, search_text, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $5)
		 ON CONFLICT (external_id) DO UPDATE SET
		   raw_payload = EXCLUDED.raw_payload,
		   search_text = EXCLUDED.search_text,
		   updated_at = EXCLUDED.updated_at
		 RETURNING id, status, created_at, (xmax = 0)`,
		externalID, raw, payload.SearchText(), string(model.StatusActive), now,
	).Scan(&rec.ID, &status, &rec.CreatedAt, &created)
	if err != nil {
		return nil, false, eris.Wrapf(err, "postgres: upsert record %s", externalID)
	}
	rec.Status = model.Status(status)
	return &rec, created, nil
}

const postgresRecordColumns = `id, external_id, raw_payload, status, created_at, updated_at`

func (s *PostgresStore) Get(ctx context.Context, externalID string) (*model.Record, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+postgresRecordColumns+` FROM records WHERE external_id = $1`, externalID,
	)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get record %s", externalID)
	}
	return rec, nil
}

func (s *PostgresStore) Search(ctx context.Context, keywords []string, fn func(model.Record) error) error {
	if len(keywords) == 0 {
		return nil
	}
	clause, args := keywordClause(keywords, func(i int) string { return fmt.Sprintf("$%d", i) })
	rows, err := s.pool.Query(ctx,
		`SELECT `+postgresRecordColumns+` FROM records WHERE status = 'active' AND `+clause+` ORDER BY id`,
		args...,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: search records")
	}
	defer rows.Close()

	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return eris.Wrap(err, "postgres: scan record")
		}
		stop, err := visit(fn, *rec)
		if stop {
			return err
		}
	}
	return eris.Wrap(rows.Err(), "postgres: iterate records")
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM records`).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "postgres: count records")
	}
	return n, nil
}

func (s *PostgresStore) DeleteAll(ctx context.Context) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: begin delete")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	tag, err := tx.Exec(ctx, `DELETE FROM records`)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete records")
	}
	if _, err := tx.Exec(ctx, `DELETE FROM meta WHERE key = $1`, metaLastSync); err != nil {
		return 0, eris.Wrap(err, "postgres: clear last sync")
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "postgres: commit delete")
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) LastSync(ctx context.Context) (time.Time, error) {
	var v string
	err := s.pool.QueryRow(ctx, `SELECT value FROM meta WHERE key = $1`, metaLastSync).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, eris.Wrap(err, "postgres: get last sync")
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, eris.Wrap(err, "postgres: parse last sync")
	}
	return t, nil
}

func (s *PostgresStore) SetLastSync(ctx context.Context, t time.Time) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO meta (key, value) VALUES ($1, $2) ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
		metaLastSync, t.UTC().Format(time.RFC3339Nano),
	)
	return eris.Wrap(err, "postgres: set last sync")
}

func (s *PostgresStore) GetUsage(ctx context.Context, subject model.Subject) (*model.UsageCounter, error) {
	c := model.UsageCounter{Subject: subject}
	err := s.pool.QueryRow(ctx,
		`SELECT daily_count, monthly_count, last_reset_daily, last_reset_monthly
		 FROM usage_counters WHERE user_id = $1 AND ip_address = $2`,
		subject.UserID, subject.IP,
	).Scan(&c.DailyCount, &c.MonthlyCount, &c.LastResetDaily, &c.LastResetMonthly)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get usage %s/%s", subject.UserID, subject.IP)
	}
	return &c, nil
}

func (s *PostgresStore) SaveUsage(ctx context.Context, c *model.UsageCounter) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO usage_counters (user_id, ip_address, daily_count, monthly_count, last_reset_daily, last_reset_monthly)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (user_id, ip_address) DO UPDATE SET
		   daily_count = EXCLUDED.daily_count,
		   monthly_count = EXCLUDED.monthly_count,
		   last_reset_daily = EXCLUDED.last_reset_daily,
		   last_reset_monthly = EXCLUDED.last_reset_monthly`,
		c.UserID, c.IP, c.DailyCount, c.MonthlyCount, c.LastResetDaily.UTC(), c.LastResetMonthly.UTC(),
	)
	return eris.Wrapf(err, "postgres: save usage %s/%s", c.UserID, c.IP)
}
