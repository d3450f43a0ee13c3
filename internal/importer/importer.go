// Package importer upserts reviewed rows into the record store in batches.
package importer

import (
	"context"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/KaramelBytes/listingloom/internal/model"
	"github.com/KaramelBytes/listingloom/internal/parser"
)

// DefaultBatchSize is the number of rows per submitted batch.
const DefaultBatchSize = 20

var importRows = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "listingloom_import_rows_total",
		Help: "Imported rows by outcome.",
	},
	[]string{"outcome"},
)

// Store is the persistence the importer needs.
type Store interface {
	Upsert(ctx context.Context, externalID string, payload model.Payload) (*model.Record, bool, error)
	SetLastSync(ctx context.Context, t time.Time) error
	DeleteAll(ctx context.Context) (int, error)
}

// Row is one reviewed row. Edit, when non-blank, replaces the parser-assigned id.
type Row struct {
	ExternalID string
	Edit       string
	Source     model.Payload
}

// RowResult is the per-row outcome of a batch.
type RowResult struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	ExternalID string `json:"external_id"`
	Created    bool   `json:"created"`
}

// Progress is the running tally across batches.
type Progress struct {
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Add folds batch results into the tally.
func (p *Progress) Add(results []RowResult) {
	for _, r := range results {
		p.Processed++
		if r.Success {
			p.Succeeded++
		} else {
			p.Failed++
		}
	}
}

// Importer writes rows to a Store.
type Importer struct {
	store Store
	now   func() time.Time
}

// New creates an Importer.
func New(s Store) *Importer {
	return &Importer{store: s, now: time.Now}
}

// FinalID picks the identifier a row is stored under: the operator edit, then
// the parser-assigned id, then a freshly derived one.
func FinalID(r Row) string {
	if id := strings.TrimSpace(r.Edit); id != "" {
		return id
	}
	if id := strings.TrimSpace(r.ExternalID); id != "" {
		return id
	}
	return parser.ResolveExternalID(r.Source)
}

// ImportBatch upserts every row and reports a result per row. A failing row
// never aborts the batch. Cancelling ctx does not interrupt a running batch.
func (im *Importer) ImportBatch(ctx context.Context, rows []Row) []RowResult {
	ctx = context.WithoutCancel(ctx)
	out := make([]RowResult, 0, len(rows))
	for _, r := range rows {
		id := FinalID(r)
		rec, created, err := im.store.Upsert(ctx, id, r.Source)
		if err != nil {
			zap.L().Warn("importer: row failed", zap.String("external_id", id), zap.Error(err))
			importRows.WithLabelValues("failed").Inc()
			out = append(out, RowResult{Success: false, Message: err.Error(), ExternalID: id})
			continue
		}
		msg := "updated"
		outcome := "updated"
		if created {
			msg = "created"
			outcome = "created"
		}
		importRows.WithLabelValues(outcome).Inc()
		out = append(out, RowResult{Success: true, Message: msg, ExternalID: rec.ExternalID, Created: created})
	}
	return out
}

// Complete marks the end of a full submission.
func (im *Importer) Complete(ctx context.Context) error {
	return eris.Wrap(im.store.SetLastSync(ctx, im.now()), "importer: mark last sync")
}

// DeleteAll removes every record and clears the last-sync marker.
func (im *Importer) DeleteAll(ctx context.Context) (int, error) {
	n, err := im.store.DeleteAll(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "importer: delete all")
	}
	zap.L().Info("importer: deleted all records", zap.Int("count", n))
	return n, nil
}

// BatchFunc observes progress after each batch.
type BatchFunc func(batch, batches int, results []RowResult, p Progress)

// Run imports rows in sequential batches and marks last sync at the end.
// Cancelling ctx stops before the next batch starts.
func (im *Importer) Run(ctx context.Context, rows []Row, batchSize int, onBatch BatchFunc) (Progress, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	var p Progress
	batches := BatchCount(len(rows), batchSize)
	for b := 0; b < batches; b++ {
		if err := ctx.Err(); err != nil {
			return p, eris.Wrapf(err, "importer: stopped before batch %d", b)
		}
		lo, hi := batchBounds(b, batchSize, len(rows))
		results := im.ImportBatch(ctx, rows[lo:hi])
		p.Add(results)
		if onBatch != nil {
			onBatch(b, batches, results, p)
		}
	}
	if err := im.Complete(ctx); err != nil {
		return p, err
	}
	return p, nil
}

// RowsFromPreview converts parsed rows into importable rows, applying edits
// keyed by row index.
func RowsFromPreview(rows []model.PreviewRow, edits map[int]string) []Row {
	out := make([]Row, len(rows))
	for i, r := range rows {
		out[i] = Row{ExternalID: r.ExternalID, Edit: edits[r.Index], Source: r.Source}
	}
	return out
}

// BatchCount returns the number of batches for n rows. An empty import is a
// single empty batch so that it still completes.
func BatchCount(n, size int) int {
	if n == 0 {
		return 1
	}
	return (n + size - 1) / size
}

func batchBounds(b, size, n int) (int, int) {
	lo := b * size
	hi := lo + size
	if lo > n {
		lo = n
	}
	if hi > n {
		hi = n
	}
	return lo, hi
}
