// Package search answers a natural-language question: it checks usage,
// builds the budgeted listing context, calls the model and formats the reply.
package search

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/KaramelBytes/listingloom/internal/ai"
	"github.com/KaramelBytes/listingloom/internal/format"
	"github.com/KaramelBytes/listingloom/internal/model"
	"github.com/KaramelBytes/listingloom/internal/prompt"
	"github.com/KaramelBytes/listingloom/internal/retrieval"
	"github.com/KaramelBytes/listingloom/internal/usage"
	"github.com/KaramelBytes/listingloom/internal/utils"
)

const (
	// DefaultTimeout bounds a single model call.
	DefaultTimeout = 30 * time.Second
	// MaxQueryChars rejects pathological input before any work is done.
	MaxQueryChars = 2000
	// AnonymousUser is the user id used when the caller sends none.
	AnonymousUser = "0"
)

var (
	ErrEmptyQuery   = eris.New("search: query is empty")
	ErrQueryTooLong = eris.New("search: query is too long")
)

var searchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "listingloom_search_total",
	Help: "Search requests by outcome.",
}, []string{"outcome"})

// UpstreamError wraps a failed model call. Its message is the provider's,
// unchanged, and callers may retry.
type UpstreamError struct {
	Err error
}

func (e *UpstreamError) Error() string { return e.Err.Error() }

func (e *UpstreamError) Unwrap() error { return e.Err }

// Retryable is always true; the failure is scoped to one request.
func (e *UpstreamError) Retryable() bool { return true }

// Timeout reports whether the call ran out of time.
func (e *UpstreamError) Timeout() bool { return errors.Is(e.Err, context.DeadlineExceeded) }

// IsInputError reports whether err was caused by the request itself.
func IsInputError(err error) bool {
	return errors.Is(err, ErrEmptyQuery) || errors.Is(err, ErrQueryTooLong)
}

// Limiter counts queries per subject.
type Limiter interface {
	Allow(ctx context.Context, subject model.Subject) (*model.UsageCounter, error)
	RemainingDaily(c *model.UsageCounter) int
}

// Options configure the model call.
type Options struct {
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

type Request struct {
	Query  string
	UserID string
	IP     string
}

type Response struct {
	HTML       string `json:"formatted_html"`
	TokensUsed int    `json:"tokens_used"`
	// RemainingDaily is -1 when no daily limit applies.
	RemainingDaily int `json:"remaining_daily"`
	Matches        int `json:"matches"`
}

// Service runs searches. A nil limiter disables usage limits.
type Service struct {
	limiter   Limiter
	budgeter  *retrieval.Budgeter
	assembler *prompt.Assembler
	runtime   ai.Runtime
	formatter *format.Formatter
	opts      Options
}

func New(l Limiter, b *retrieval.Budgeter, a *prompt.Assembler, rt ai.Runtime, f *format.Formatter, opts Options) *Service {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if a == nil {
		a = prompt.NewAssembler(nil)
	}
	if f == nil {
		f = format.New("", nil)
	}
	return &Service{limiter: l, budgeter: b, assembler: a, runtime: rt, formatter: f, opts: opts}
}

// Run validates the query, charges the subject's usage, then budgets,
// prompts and formats. Policy and input errors return before the store or
// model is touched. Model failures are returned as *UpstreamError.
func (s *Service) Run(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	q := strings.TrimSpace(req.Query)
	if q == "" {
		searchTotal.WithLabelValues("invalid").Inc()
		return nil, ErrEmptyQuery
	}
	if utf8.RuneCountInString(q) > MaxQueryChars {
		searchTotal.WithLabelValues("invalid").Inc()
		return nil, ErrQueryTooLong
	}
	subject := model.Subject{UserID: req.UserID, IP: req.IP}
	if subject.UserID == "" {
		subject.UserID = AnonymousUser
	}

	remaining := -1
	if s.limiter != nil {
		c, err := s.limiter.Allow(ctx, subject)
		var le *usage.LimitError
		if errors.As(err, &le) {
			searchTotal.WithLabelValues("limited").Inc()
			return nil, err
		}
		if err != nil {
			searchTotal.WithLabelValues("error").Inc()
			return nil, eris.Wrap(err, "search: usage check")
		}
		remaining = s.limiter.RemainingDaily(c)
	}

	res, err := s.budgeter.Build(ctx, q)
	if err != nil {
		searchTotal.WithLabelValues("error").Inc()
		return nil, eris.Wrap(err, "search: build context")
	}
	p := s.assembler.Assemble(q, res)

	callCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()
	out, err := s.runtime.Generate(callCtx, ai.GenerateRequest{
		Model: s.opts.Model,
		Messages: []ai.Message{
			{Role: ai.RoleSystem, Content: p.System},
			{Role: ai.RoleUser, Content: p.User},
		},
		MaxTokens:   s.opts.MaxTokens,
		Temperature: s.opts.Temperature,
	})
	if err != nil {
		searchTotal.WithLabelValues("upstream_error").Inc()
		zap.L().Warn("search: model call failed",
			zap.String("model", s.opts.Model),
			zap.Duration("elapsed", time.Since(start)),
			zap.Bool("retryable", ai.Retryable(err)),
			zap.Error(err),
		)
		return nil, &UpstreamError{Err: err}
	}

	text := out.Text()
	tokens := out.Usage.TotalTokens
	if tokens == 0 {
		// provider sent no usage; fall back to the local estimate
		tokens = p.Tokens + utils.CountTokens(text)
	}
	ai.LogCost(s.opts.Model, out.Usage)

	resp := &Response{
		HTML:           s.formatter.Format(text, res.Index),
		TokensUsed:     tokens,
		RemainingDaily: remaining,
		Matches:        res.Payload.RowCount(),
	}
	searchTotal.WithLabelValues("ok").Inc()
	zap.L().Info("search: answered",
		zap.String("user_id", subject.UserID),
		zap.String("ip", subject.IP),
		zap.Int("query_chars", utf8.RuneCountInString(q)),
		zap.Int("matches", resp.Matches),
		zap.Int("context_chars", res.Size),
		zap.Int("tokens", tokens),
		zap.Duration("elapsed", time.Since(start)),
	)
	return resp, nil
}
