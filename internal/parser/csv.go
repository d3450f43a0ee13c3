package parser

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/KaramelBytes/listingloom/internal/model"
)

// DefaultPreviewLimit caps the rows returned for operator review.
const DefaultPreviewLimit = 200

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Result is a parsed file. Rows holds every accepted row; use Preview for
// the capped review set.
type Result struct {
	Headers []string
	Rows    []model.PreviewRow
	Skipped int
}

// Preview returns at most limit rows. A non-positive limit uses DefaultPreviewLimit.
func (r *Result) Preview(limit int) []model.PreviewRow {
	if limit <= 0 {
		limit = DefaultPreviewLimit
	}
	if len(r.Rows) <= limit {
		return r.Rows
	}
	return r.Rows[:limit]
}

// RowFunc receives each accepted row of a stream.
type RowFunc func(row model.Payload) error

// Stream reads a delimited stream with a header row and calls fn for every
// row whose column count matches the header and that has at least one
// non-blank cell. Other rows, including rows with a stray quote, are counted
// and returned as skipped. An unterminated quoted field is fatal. Returning
// a non-nil error from fn stops the stream with that error.
func Stream(r io.Reader, delim rune, fn RowFunc) (headers []string, skipped int, err error) {
	cr := csv.NewReader(stripBOM(r))
	cr.Comma = delim
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, 0, ErrEmptyCSV
	}
	if err != nil {
		return nil, 0, eris.Wrap(err, "parser: read header")
	}
	headers = make([]string, len(header))
	blank := true
	for i, h := range header {
		headers[i] = strings.TrimSpace(h)
		if headers[i] != "" {
			blank = false
		}
	}
	if blank {
		return nil, 0, ErrEmptyCSV
	}

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if errors.Is(err, csv.ErrBareQuote) || errors.Is(err, csv.ErrFieldCount) {
			skipped++
			continue
		}
		if err != nil {
			return headers, skipped, eris.Wrap(err, "parser: read row")
		}
		if len(rec) != len(headers) {
			skipped++
			continue
		}
		row := model.NewPayload(headers, rec)
		if row.Blank() {
			skipped++
			continue
		}
		if err := fn(row); err != nil {
			return headers, skipped, err
		}
	}
	return headers, skipped, nil
}

// Parse reads the whole stream and resolves an external identifier per row.
func Parse(r io.Reader, delim rune) (*Result, error) {
	res := &Result{}
	headers, skipped, err := Stream(r, delim, func(row model.Payload) error {
		res.Rows = append(res.Rows, model.PreviewRow{
			Index:      len(res.Rows),
			ExternalID: ResolveExternalID(row),
			Source:     row,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	res.Headers = headers
	res.Skipped = skipped
	return res, nil
}

// ParseNamed parses a stream whose delimiter is chosen from the filename.
func ParseNamed(r io.Reader, filename string) (*Result, error) {
	return Parse(r, sniffDelimiter(filename))
}

// ParseFile parses a file on disk.
func ParseFile(path string) (*Result, error) {
	if !Supported(path) {
		return nil, eris.Wrapf(ErrUnsupported, "parser: %s", path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "parser: open file")
	}
	defer f.Close()
	return Parse(f, sniffDelimiter(path))
}

// StreamFile streams a file on disk, choosing the delimiter from its name.
func StreamFile(path string, fn RowFunc) (headers []string, skipped int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, eris.Wrap(err, "parser: open file")
	}
	defer f.Close()
	return Stream(f, sniffDelimiter(path), fn)
}

func stripBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if b, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(b, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	return br
}
