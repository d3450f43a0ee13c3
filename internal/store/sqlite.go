package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/KaramelBytes/listingloom/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS records (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	external_id TEXT NOT NULL UNIQUE,
	raw_payload TEXT NOT NULL,
	search_text TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL DEFAULT 'active',
	created_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at  DATETIME NOT NULL DEFAULT (datetime('now'))
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
	last_reset_daily   DATETIME NOT NULL,
	last_reset_monthly DATETIME NOT NULL,
	PRIMARY KEY (user_id, ip_address)
);

CREATE INDEX IF NOT EXISTS idx_records_status ON records(status);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Upsert(ctx context.Context, externalID string, payload model.Payload) (*model.Record, bool, error) {
	raw, err := encodePayload(payload)
	if err != nil {
		return nil, false, err
	}
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, eris.Wrap(err, "sqlite: begin upsert")
	}
	defer tx.Rollback() //nolint:errcheck

	rec := model.Record{ExternalID: externalID, Payload: payload.Clone(), UpdatedAt: now}
	var status string
	err = tx.QueryRowContext(ctx,
		`SELECT id, status, created_at FROM records WHERE external_id = ?`, externalID,
	).Scan(&rec.ID, &status, &rec.CreatedAt)
	created := false
	switch {
	case errors.Is(err, sql.ErrNoRows):
		created = true
		rec.Status = model.StatusActive
		rec.CreatedAt = now
		res, err := tx.ExecContext(ctx,
			`INSERT INTO records (external_id, raw_payload, search_text, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
			externalID, raw, payload.SearchText(), string(rec.Status), now, now,
		)
		if err != nil {
			return nil, false, eris.Wrapf(err, "sqlite: insert record %s", externalID)
		}
		if rec.ID, err = res.LastInsertId(); err != nil {
			return nil, false, eris.Wrap(err, "sqlite: last insert id")
		}
	case err != nil:
		return nil, false, eris.Wrapf(err, "sqlite: lookup record %s", externalID)
	default:
		rec.Status = model.Status(status)
		if _, err := tx.ExecContext(ctx,
			`UPDATE records SET raw_payload = ?, search_text = ?, updated_at = ? WHERE id = ?`,
			raw, payload.SearchText(), now, rec.ID,
		); err != nil {
			return nil, false, eris.Wrapf(err, "sqlite: update record %s", externalID)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, false, eris.Wrap(err, "sqlite: commit upsert")
	}
	return &rec, created, nil
}

const sqliteRecordColumns = `id, external_id, raw_payload, status, created_at, updated_at`

func (s *SQLiteStore) Get(ctx context.Context, externalID string) (*model.Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteRecordColumns+` FROM records WHERE external_id = ?`, externalID,
	)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get record %s", externalID)
	}
	return rec, nil
}

// Search streams active records whose search_text contains any keyword, in id order.
func (s *SQLiteStore) Search(ctx context.Context, keywords []string, fn func(model.Record) error) error {
	if len(keywords) == 0 {
		return nil
	}
	clause, args := keywordClause(keywords, func(int) string { return "?" })
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteRecordColumns+` FROM records WHERE status = 'active' AND `+clause+` ORDER BY id`,
		args...,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: search records")
	}
	defer rows.Close()

	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return eris.Wrap(err, "sqlite: scan record")
		}
		stop, err := visit(fn, *rec)
		if stop {
			return err
		}
	}
	return eris.Wrap(rows.Err(), "sqlite: iterate records")
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "sqlite: count records")
	}
	return n, nil
}

// DeleteAll removes every record and clears the last-sync marker atomically.
func (s *SQLiteStore) DeleteAll(ctx context.Context) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin delete")
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, `DELETE FROM records`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete records")
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM meta WHERE key = ?`, metaLastSync); err != nil {
		return 0, eris.Wrap(err, "sqlite: clear last sync")
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit delete")
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// LastSync returns the zero time when no sync has completed.
func (s *SQLiteStore) LastSync(ctx context.Context) (time.Time, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, metaLastSync).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, eris.Wrap(err, "sqlite: get last sync")
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, eris.Wrap(err, "sqlite: parse last sync")
	}
	return t, nil
}

func (s *SQLiteStore) SetLastSync(ctx context.Context, t time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		metaLastSync, t.UTC().Format(time.RFC3339Nano),
	)
	return eris.Wrap(err, "sqlite: set last sync")
}

// GetUsage returns nil when the subject has no counter yet.
func (s *SQLiteStore) GetUsage(ctx context.Context, subject model.Subject) (*model.UsageCounter, error) {
	c := model.UsageCounter{Subject: subject}
	err := s.db.QueryRowContext(ctx,
		`SELECT daily_count, monthly_count, last_reset_daily, last_reset_monthly
		 FROM usage_counters WHERE user_id = ? AND ip_address = ?`,
		subject.UserID, subject.IP,
	).Scan(&c.DailyCount, &c.MonthlyCount, &c.LastResetDaily, &c.LastResetMonthly)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get usage %s/%s", subject.UserID, subject.IP)
	}
	return &c, nil
}

func (s *SQLiteStore) SaveUsage(ctx context.Context, c *model.UsageCounter) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO usage_counters (user_id, ip_address, daily_count, monthly_count, last_reset_daily, last_reset_monthly)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id, ip_address) DO UPDATE SET
		   daily_count = excluded.daily_count,
		   monthly_count = excluded.monthly_count,
		   last_reset_daily = excluded.last_reset_daily,
		   last_reset_monthly = excluded.last_reset_monthly`,
		c.UserID, c.IP, c.DailyCount, c.MonthlyCount, c.LastResetDaily.UTC(), c.LastResetMonthly.UTC(),
	)
	return eris.Wrapf(err, "sqlite: save usage %s/%s", c.UserID, c.IP)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*model.Record, error) {
	var (
		rec    model.Record
		raw    string
		status string
	)
	if err := row.Scan(&rec.ID, &rec.ExternalID, &raw, &status, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	p, err := decodePayload(raw)
	if err != nil {
		return nil, eris.Wrapf(err, "record %s", rec.ExternalID)
	}
	rec.Payload = p
	rec.Status = model.Status(status)
	return &rec, nil
}
