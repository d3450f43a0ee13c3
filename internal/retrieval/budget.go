// Package retrieval selects rows matching a query from several sources and
// packs them into a payload whose serialized size stays within a character
// budget. Rows are never split; sources are scanned in priority order.
package retrieval

import (
	"context"
	"errors"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/KaramelBytes/listingloom/internal/model"
	"github.com/KaramelBytes/listingloom/internal/utils"
)

// DefaultBudget is the default serialized-size ceiling in characters.
const DefaultBudget = 12000

var contextChars = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "listingloom_context_chars",
	Help:    "Serialized context payload size in characters.",
	Buckets: prometheus.ExponentialBuckets(250, 2, 8),
})

// ErrStopScan is returned by a scan callback to end a source early.
var ErrStopScan = eris.New("retrieval: stop scan")

// Row is a candidate row from a source. ExternalID may be empty when the
// source has no identifier for the row.
type Row struct {
	ExternalID string
	Fields     model.Payload
}

// Source streams candidate rows. Scan may pre-filter on tokens but the
// budgeter re-checks every row. When fn returns ErrStopScan, Scan returns nil.
type Source interface {
	Name() string
	Scan(ctx context.Context, tokens []string, fn func(Row) error) error
}

// Result is the output of Build.
type Result struct {
	Tokens  []string
	Payload Payload
	// Index maps external ids of admitted rows to their fields.
	Index map[string]model.Payload
	Size  int
}

// Serialized is the payload as sent to the model.
func (r *Result) Serialized() string {
	return r.Payload.String()
}

// Tokenize splits on whitespace, lowercases and drops tokens of two
// characters or fewer. Duplicates are removed, first occurrence wins.
func Tokenize(query string) []string {
	var out []string
	for _, f := range strings.Fields(strings.ToLower(query)) {
		if utf8.RuneCountInString(f) <= 2 || slices.Contains(out, f) {
			continue
		}
		out = append(out, f)
	}
	return out
}

// Matches reports whether the lowercased values of row contain any token.
func Matches(row model.Payload, tokens []string) bool {
	text := row.SearchText()
	for _, t := range tokens {
		if strings.Contains(text, t) {
			return true
		}
	}
	return false
}

// Budgeter builds payloads from an ordered list of sources.
type Budgeter struct {
	budget  int
	sources []Source
}

// NewBudgeter creates a Budgeter. A non-positive budget uses DefaultBudget.
func NewBudgeter(budget int, sources ...Source) *Budgeter {
	if budget <= 0 {
		budget = DefaultBudget
	}
	return &Budgeter{budget: budget, sources: sources}
}

// Budget returns the configured ceiling.
func (b *Budgeter) Budget() int { return b.budget }

// Build selects matching rows for query. An empty or truncated result is not
// an error. A failing source is logged and skipped.
func (b *Budgeter) Build(ctx context.Context, query string) (*Result, error) {
	res := &Result{Tokens: Tokenize(query), Index: map[string]model.Payload{}}
	if len(res.Tokens) == 0 {
		return res, nil
	}

	for _, src := range b.sources {
		if res.Size >= b.budget {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "retrieval: build")
		}
		blk, ids, size, full, err := b.scanSource(ctx, src, res.Tokens, res.Size, len(res.Payload))
		if err != nil {
			if ctx.Err() != nil {
				return nil, eris.Wrap(ctx.Err(), "retrieval: build")
			}
			zap.L().Warn("retrieval: source failed, skipping", zap.String("source", src.Name()), zap.Error(err))
			continue
		}
		// Never exceed the committed total, unless nothing has been committed yet.
		if blk != nil && (res.Size+size <= b.budget || len(res.Payload) == 0) {
			res.Payload = append(res.Payload, *blk)
			res.Size += size
			for i, id := range ids {
				if id != "" {
					res.Index[id] = blk.Rows[i]
				}
			}
		}
		// A rejected row means the budget is reached; later sources are not consulted.
		if full {
			break
		}
	}
	contextChars.Observe(float64(res.Size))
	return res, nil
}

// scanSource admits rows from src while the projected total stays within the
// budget. The first row that would overflow ends the source and sets full.
// It returns the block, the external id per admitted row and the block's
// contribution to the serialized size, separators included.
func (b *Budgeter) scanSource(ctx context.Context, src Source, tokens []string, committed, committedBlocks int) (blk *Block, ids []string, size int, full bool, err error) {
	// opening bracket pair for the first block, a comma for later ones
	sep := 1
	if committedBlocks == 0 {
		sep = 2
	}

	err = src.Scan(ctx, tokens, func(row Row) error {
		if !Matches(row.Fields, tokens) {
			return nil
		}
		enc := encodeRow(row.Fields)
		rowSize := utils.CharCount(enc)

		var projected, growth int
		var cols []string
		if blk == nil {
			cols = row.Fields.Names()
			growth = sep + blockOverhead(src.Name(), cols)
			projected = committed + growth + rowSize
		} else {
			cols = mergeColumns(blk.Columns, row.Fields.Names())
			growth = blockOverhead(src.Name(), cols) - blockOverhead(src.Name(), blk.Columns)
			projected = committed + size + growth + 1 + rowSize
			rowSize++
		}
		if projected > b.budget {
			full = true
			return ErrStopScan
		}
		if blk == nil {
			blk = &Block{Source: src.Name()}
		}
		blk.Columns = cols
		blk.Rows = append(blk.Rows, row.Fields)
		blk.encoded = append(blk.encoded, enc)
		ids = append(ids, row.ExternalID)
		size += growth + rowSize
		return nil
	})
	if err != nil && !errors.Is(err, ErrStopScan) {
		return nil, nil, 0, false, err
	}
	return blk, ids, size, full, nil
}

// mergeColumns appends names not yet present, keeping first-seen order.
func mergeColumns(have, names []string) []string {
	out := have
	for _, n := range names {
		if !slices.Contains(out, n) {
			if len(out) == len(have) {
				out = slices.Clone(have)
			}
			out = append(out, n)
		}
	}
	return out
}
