// Package parser turns delimited text files into ordered rows with a resolved
// external identifier per row. Parsing is a pure transform: nothing is persisted.
package parser

import (
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// Format describes a delimited text format accepted for import.
type Format interface {
	CanParse(filename string) bool
	Delimiter() rune
}

var registry []Format

// Register adds a format to the registry.
func Register(f Format) {
	registry = append(registry, f)
}

// Supported reports whether any registered format accepts the filename.
func Supported(filename string) bool {
	_, ok := formatFor(filename)
	return ok
}

func formatFor(filename string) (Format, bool) {
	for _, f := range registry {
		if f.CanParse(filename) {
			return f, true
		}
	}
	return nil, false
}

// sniffDelimiter picks the delimiter from the filename. Unknown or missing
// extensions fall back to comma.
func sniffDelimiter(filename string) rune {
	if f, ok := formatFor(filename); ok {
		return f.Delimiter()
	}
	return ','
}

type csvFormat struct{}

func (csvFormat) CanParse(filename string) bool {
	return strings.EqualFold(filepath.Ext(filename), ".csv")
}

func (csvFormat) Delimiter() rune { return ',' }

type tsvFormat struct{}

func (tsvFormat) CanParse(filename string) bool {
	return strings.EqualFold(filepath.Ext(filename), ".tsv")
}

func (tsvFormat) Delimiter() rune { return '\t' }

func init() {
	Register(csvFormat{})
	Register(tsvFormat{})
}

var (
	// ErrEmptyCSV indicates the stream had no header row.
	ErrEmptyCSV = eris.New("parser: empty csv or missing header")
	// ErrUnsupported indicates a file format that is not accepted for import.
	ErrUnsupported = eris.New("parser: unsupported file format")
)
