// Package format turns raw model output into safe HTML: a small Markdown
// subset, hyperlinks for known listing ids, and competitor redaction.
package format

import (
	"html"

	"go.uber.org/zap"

	"github.com/KaramelBytes/listingloom/internal/model"
)

// DefaultDetailPath prefixes record links.
const DefaultDetailPath = "/listings/"

// Formatter runs the Markdown, link and redaction passes in order.
type Formatter struct {
	detailPath string
	redactor   *Redactor
}

// New creates a Formatter. Empty detailPath and nil competitors select defaults.
func New(detailPath string, competitors []Competitor) *Formatter {
	if detailPath == "" {
		detailPath = DefaultDetailPath
	}
	if competitors == nil {
		competitors = DefaultCompetitors
	}
	return &Formatter{detailPath: detailPath, redactor: NewRedactor(competitors)}
}

// Format never panics; on an internal failure it returns the escaped input.
func (f *Formatter) Format(raw string, index map[string]model.Payload) (out string) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("format: recovered from panic", zap.Any("panic", r))
			out = html.EscapeString(raw)
		}
	}()
	ids := make([]string, 0, len(index))
	for id := range index {
		ids = append(ids, id)
	}
	out = ToHTML(raw)
	out = LinkRecords(out, ids, f.detailPath)
	return f.redactor.Redact(out)
}
