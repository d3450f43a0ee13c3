package importer

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/KaramelBytes/listingloom/internal/model"
	"github.com/KaramelBytes/listingloom/internal/parser"
)

// Session defaults.
const (
	DefaultSessionTTL  = 30 * time.Minute
	DefaultMaxSessions = 64
)

var (
	ErrSessionNotFound = eris.New("importer: import session not found or expired")
	ErrBatchInFlight   = eris.New("importer: a batch is already being processed for this session")
	ErrBatchOutOfOrder = eris.New("importer: batch submitted out of order")
	ErrInvalidEdit     = eris.New("importer: edit refers to a row outside the batch")
)

// Session holds a parsed file between preview and the final batch. Rows
// stay server side; callers only send the token, the batch index and
// identifier edits.
type Session struct {
	Token     string
	Headers   []string
	Rows      []model.PreviewRow
	Skipped   int
	BatchSize int

	mu       sync.Mutex
	next     int
	busy     bool
	progress Progress
}

// Batches is the number of batches needed to submit every row.
func (s *Session) Batches() int {
	return BatchCount(len(s.Rows), s.BatchSize)
}

// BatchResult is the outcome of one submitted batch.
type BatchResult struct {
	Results  []RowResult `json:"results"`
	Progress Progress    `json:"progress"`
	Done     bool        `json:"done"`
}

// Sessions tracks open import sessions in an expiring LRU.
type Sessions struct {
	importer  *Importer
	batchSize int
	cache     *expirable.LRU[string, *Session]
}

// NewSessions creates a session registry. Zero values select defaults.
func NewSessions(im *Importer, batchSize, maxSessions int, ttl time.Duration) *Sessions {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Sessions{
		importer:  im,
		batchSize: batchSize,
		cache:     expirable.NewLRU[string, *Session](maxSessions, nil, ttl),
	}
}

// Open stores a parsed file and returns its session.
func (m *Sessions) Open(res *parser.Result) *Session {
	s := &Session{
		Token:     uuid.NewString(),
		Headers:   res.Headers,
		Rows:      res.Rows,
		Skipped:   res.Skipped,
		BatchSize: m.batchSize,
	}
	m.cache.Add(s.Token, s)
	zap.L().Info("importer: session opened",
		zap.String("token", s.Token),
		zap.Int("rows", len(s.Rows)),
		zap.Int("batches", s.Batches()),
	)
	return s
}

// Get returns an open session.
func (m *Sessions) Get(token string) (*Session, bool) {
	return m.cache.Get(token)
}

// Close discards a session.
func (m *Sessions) Close(token string) {
	m.cache.Remove(token)
}

// SubmitBatch imports rows [batch*size, (batch+1)*size) of the session.
// Batches must arrive in order, one at a time. The final batch marks the
// last sync and closes the session.
func (m *Sessions) SubmitBatch(ctx context.Context, token string, batch int, edits map[int]string) (*BatchResult, error) {
	s, ok := m.cache.Get(token)
	if !ok {
		return nil, ErrSessionNotFound
	}

	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return nil, ErrBatchInFlight
	}
	if batch != s.next {
		s.mu.Unlock()
		return nil, eris.Wrapf(ErrBatchOutOfOrder, "importer: got batch %d, want %d", batch, s.next)
	}
	lo, hi := batchBounds(batch, s.BatchSize, len(s.Rows))
	for idx := range edits {
		if idx < lo || idx >= hi {
			s.mu.Unlock()
			return nil, eris.Wrapf(ErrInvalidEdit, "importer: row %d not in [%d,%d)", idx, lo, hi)
		}
	}
	s.busy = true
	rows := RowsFromPreview(s.Rows[lo:hi], edits)
	s.mu.Unlock()

	results := m.importer.ImportBatch(ctx, rows)

	s.mu.Lock()
	s.busy = false
	s.next++
	s.progress.Add(results)
	res := &BatchResult{Results: results, Progress: s.progress, Done: s.next >= s.Batches()}
	s.mu.Unlock()

	if !res.Done {
		// re-adding restarts the TTL
		m.cache.Add(token, s)
		return res, nil
	}

	m.Close(token)
	if err := m.importer.Complete(ctx); err != nil {
		zap.L().Error("importer: import finished but last sync not recorded", zap.Error(err))
	}
	zap.L().Info("importer: session complete",
		zap.String("token", token),
		zap.Int("succeeded", res.Progress.Succeeded),
		zap.Int("failed", res.Progress.Failed),
	)
	return res, nil
}
