// Package store persists imported records, the last-sync marker and usage
// counters. Records keep their original row as an ordered JSON payload; the
// only derived column is a lowercased search_text rebuilt on every write.
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/KaramelBytes/listingloom/internal/model"
)

var (
	// ErrNotFound is returned when a record lookup has no match.
	ErrNotFound = eris.New("store: not found")
	// ErrStop may be returned from a Search callback to end the scan early.
	ErrStop = eris.New("store: stop scan")
)

const metaLastSync = "last_sync"

// Store defines the persistence interface for records and usage counters.
type Store interface {
	// Records
	Upsert(ctx context.Context, externalID string, payload model.Payload) (*model.Record, bool, error)
	Get(ctx context.Context, externalID string) (*model.Record, error)
	Search(ctx context.Context, keywords []string, fn func(model.Record) error) error
	Count(ctx context.Context) (int, error)
	DeleteAll(ctx context.Context) (int, error)

	// Sync marker
	LastSync(ctx context.Context) (time.Time, error)
	SetLastSync(ctx context.Context, t time.Time) error

	// Usage counters
	GetUsage(ctx context.Context, subject model.Subject) (*model.UsageCounter, error)
	SaveUsage(ctx context.Context, c *model.UsageCounter) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open returns a migrated store for the given driver ("sqlite" or "postgres").
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	var (
		s   Store
		err error
	)
	switch driver {
	case "", "sqlite":
		s, err = NewSQLite(dsn)
	case "postgres":
		s, err = NewPostgres(ctx, dsn)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// likePattern turns a keyword into a LIKE pattern matching it as a substring.
// Wildcards in the keyword are escaped with a backslash.
func likePattern(kw string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.ToLower(kw)) + "%"
}

// keywordClause builds "(search_text LIKE p1 ESCAPE '\' OR ...)" using the
// placeholder function for each argument position.
func keywordClause(keywords []string, placeholder func(i int) string) (string, []any) {
	parts := make([]string, 0, len(keywords))
	args := make([]any, 0, len(keywords))
	for i, kw := range keywords {
		parts = append(parts, "search_text LIKE "+placeholder(i+1)+` ESCAPE '\'`)
		args = append(args, likePattern(kw))
	}
	return "(" + strings.Join(parts, " OR ") + ")", args
}

// visit runs the Search callback, translating ErrStop into a clean stop.
func visit(fn func(model.Record) error, rec model.Record) (stop bool, err error) {
	if err := fn(rec); err != nil {
		if errors.Is(err, ErrStop) {
			return true, nil
		}
		return true, err
	}
	return false, nil
}

func encodePayload(p model.Payload) (string, error) {
	b, err := p.MarshalJSON()
	if err != nil {
		return "", eris.Wrap(err, "store: marshal payload")
	}
	return string(b), nil
}

func decodePayload(s string) (model.Payload, error) {
	var p model.Payload
	if err := p.UnmarshalJSON([]byte(s)); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal payload")
	}
	return p, nil
}
