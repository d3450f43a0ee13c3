// Package usage enforces per-subject daily and monthly query ceilings.
package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/KaramelBytes/listingloom/internal/model"
)

// Window names a counting period.
type Window string

const (
	Daily   Window = "daily"
	Monthly Window = "monthly"
)

// LimitError reports that a subject reached a ceiling. Nothing was counted.
type LimitError struct {
	Window Window
	Limit  int
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("usage: %s limit of %d queries reached", e.Window, e.Limit)
}

// Store persists usage counters. GetUsage returns nil, nil for an unknown subject.
type Store interface {
	GetUsage(ctx context.Context, subject model.Subject) (*model.UsageCounter, error)
	SaveUsage(ctx context.Context, c *model.UsageCounter) error
}

// Limiter checks and increments counters. A zero limit disables that window.
// Counters are read, modified and written without a transaction; concurrent
// requests for one subject may lose an increment.
type Limiter struct {
	store   Store
	daily   int
	monthly int
	now     func() time.Time
}

// New creates a Limiter.
func New(s Store, daily, monthly int) *Limiter {
	return &Limiter{store: s, daily: daily, monthly: monthly, now: time.Now}
}

// Limits returns the configured daily and monthly ceilings.
func (l *Limiter) Limits() (daily, monthly int) { return l.daily, l.monthly }

// Allow counts one query for subject or returns a *LimitError when a
// ceiling is reached. On rejection the stored counter is left untouched.
func (l *Limiter) Allow(ctx context.Context, subject model.Subject) (*model.UsageCounter, error) {
	c, err := l.load(ctx, subject)
	if err != nil {
		return nil, err
	}
	if l.daily > 0 && c.DailyCount >= l.daily {
		zap.L().Info("usage: rejected", zap.String("user_id", subject.UserID), zap.String("ip", subject.IP), zap.String("window", string(Daily)))
		return c, &LimitError{Window: Daily, Limit: l.daily}
	}
	if l.monthly > 0 && c.MonthlyCount >= l.monthly {
		zap.L().Info("usage: rejected", zap.String("user_id", subject.UserID), zap.String("ip", subject.IP), zap.String("window", string(Monthly)))
		return c, &LimitError{Window: Monthly, Limit: l.monthly}
	}
	c.DailyCount++
	c.MonthlyCount++
	if err := l.store.SaveUsage(ctx, c); err != nil {
		return nil, eris.Wrap(err, "usage: save counter")
	}
	return c, nil
}

// Status returns the subject's counters for the current day and month
// without saving anything.
func (l *Limiter) Status(ctx context.Context, subject model.Subject) (*model.UsageCounter, error) {
	return l.load(ctx, subject)
}

// RemainingDaily is the number of queries left today, or -1 when unlimited.
func (l *Limiter) RemainingDaily(c *model.UsageCounter) int {
	if l.daily <= 0 {
		return -1
	}
	if c == nil {
		return l.daily
	}
	return max(l.daily-c.DailyCount, 0)
}

// load fetches or creates the counter and applies calendar resets in memory.
func (l *Limiter) load(ctx context.Context, subject model.Subject) (*model.UsageCounter, error) {
	now := l.now()
	c, err := l.store.GetUsage(ctx, subject)
	if err != nil {
		return nil, eris.Wrap(err, "usage: load counter")
	}
	if c == nil {
		return &model.UsageCounter{Subject: subject, LastResetDaily: now, LastResetMonthly: now}, nil
	}
	if !sameDay(c.LastResetDaily, now) {
		c.DailyCount = 0
		c.LastResetDaily = now
	}
	if !sameMonth(c.LastResetMonthly, now) {
		c.MonthlyCount = 0
		c.LastResetMonthly = now
	}
	return c, nil
}

func sameDay(a, now time.Time) bool {
	a = a.In(now.Location())
	return a.Year() == now.Year() && a.YearDay() == now.YearDay()
}

func sameMonth(a, now time.Time) bool {
	a = a.In(now.Location())
	return a.Year() == now.Year() && a.Month() == now.Month()
}
