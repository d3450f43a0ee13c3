package usage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/listingloom/internal/model"
	"github.com/KaramelBytes/listingloom/internal/store"
)

type memStore struct {
	counters map[model.Subject]model.UsageCounter
	saves    int
}

func newMemStore() *memStore {
	return &memStore{counters: map[model.Subject]model.UsageCounter{}}
}

func (m *memStore) GetUsage(_ context.Context, s model.Subject) (*model.UsageCounter, error) {
	c, ok := m.counters[s]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *memStore) SaveUsage(_ context.Context, c *model.UsageCounter) error {
	m.saves++
	m.counters[c.Subject] = *c
	return nil
}

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

var subj = model.Subject{UserID: "7", IP: "10.0.0.1"}

func TestAllow_CreatesAndIncrements(t *testing.T) {
	ms := newMemStore()
	l := New(ms, 3, 10)
	l.now = fixedClock(time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC))

	c, err := l.Allow(context.Background(), subj)
	require.NoError(t, err)
	assert.Equal(t, 1, c.DailyCount)
	assert.Equal(t, 1, c.MonthlyCount)
	assert.Equal(t, 2, l.RemainingDaily(c))
}

func TestAllow_DailyCeilingLeavesCounterUnchanged(t *testing.T) {
	ms := newMemStore()
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	ms.counters[subj] = model.UsageCounter{Subject: subj, DailyCount: 2, MonthlyCount: 5, LastResetDaily: now, LastResetMonthly: now}
	l := New(ms, 2, 100)
	l.now = fixedClock(now.Add(time.Hour))

	_, err := l.Allow(context.Background(), subj)
	var le *LimitError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, Daily, le.Window)
	assert.Equal(t, 0, ms.saves)
	assert.Equal(t, 2, ms.counters[subj].DailyCount)
	assert.Equal(t, 5, ms.counters[subj].MonthlyCount)
}

func TestAllow_MonthlyCeiling(t *testing.T) {
	ms := newMemStore()
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	ms.counters[subj] = model.UsageCounter{Subject: subj, DailyCount: 0, MonthlyCount: 4, LastResetDaily: now, LastResetMonthly: now}
	l := New(ms, 0, 4)
	l.now = fixedClock(now)

	_, err := l.Allow(context.Background(), subj)
	var le *LimitError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, Monthly, le.Window)
}

func TestAllow_CalendarResets(t *testing.T) {
	ms := newMemStore()
	last := time.Date(2026, 3, 31, 23, 50, 0, 0, time.UTC)
	ms.counters[subj] = model.UsageCounter{Subject: subj, DailyCount: 2, MonthlyCount: 9, LastResetDaily: last, LastResetMonthly: last}
	l := New(ms, 2, 9)

	// next day, next month: both windows reset
	l.now = fixedClock(time.Date(2026, 4, 1, 0, 5, 0, 0, time.UTC))
	c, err := l.Allow(context.Background(), subj)
	require.NoError(t, err)
	assert.Equal(t, 1, c.DailyCount)
	assert.Equal(t, 1, c.MonthlyCount)

	// same month, later day: only daily resets
	ms.counters[subj] = model.UsageCounter{Subject: subj, DailyCount: 2, MonthlyCount: 3,
		LastResetDaily: time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC), LastResetMonthly: time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)}
	l.now = fixedClock(time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC))
	c, err = l.Allow(context.Background(), subj)
	require.NoError(t, err)
	assert.Equal(t, 1, c.DailyCount)
	assert.Equal(t, 4, c.MonthlyCount)
}

func TestAllow_Unlimited(t *testing.T) {
	l := New(newMemStore(), 0, 0)
	for i := 0; i < 20; i++ {
		_, err := l.Allow(context.Background(), subj)
		require.NoError(t, err)
	}
	assert.Equal(t, -1, l.RemainingDaily(nil))
}

func TestStatus_DoesNotSave(t *testing.T) {
	ms := newMemStore()
	l := New(ms, 5, 5)
	c, err := l.Status(context.Background(), subj)
	require.NoError(t, err)
	assert.Equal(t, 0, c.DailyCount)
	assert.Equal(t, 0, ms.saves)
	assert.Equal(t, 5, l.RemainingDaily(c))
}

func TestAllow_SQLite(t *testing.T) {
	ctx := context.Background()
	s, err := store.Open(ctx, "sqlite", filepath.Join(t.TempDir(), "usage.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	l := New(s, 2, 0)
	_, err = l.Allow(ctx, subj)
	require.NoError(t, err)
	_, err = l.Allow(ctx, subj)
	require.NoError(t, err)

	_, err = l.Allow(ctx, subj)
	var le *LimitError
	require.ErrorAs(t, err, &le)

	c, err := s.GetUsage(ctx, subj)
	require.NoError(t, err)
	assert.Equal(t, 2, c.DailyCount)

	// another IP for the same user is a different subject
	_, err = l.Allow(ctx, model.Subject{UserID: "7", IP: "10.0.0.2"})
	assert.NoError(t, err)
}
