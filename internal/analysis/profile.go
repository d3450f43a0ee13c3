// Package analysis profiles parsed listing feeds so an operator can judge a
// file before importing it.
package analysis

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/KaramelBytes/listingloom/internal/parser"
)

// Column kinds.
const (
	KindNumeric = "numeric"
	KindDate    = "date"
	KindText    = "text"
	KindEmpty   = "empty"
)

// maxCategories is the most distinct values a column may have for its
// values to be listed.
const maxCategories = 8

// Report summarizes a parsed file.
type Report struct {
	Rows     int
	Skipped  int
	Cols     []ColumnSummary
	Warnings []string
}

// ColumnSummary captures the inferred kind and fill of one column.
type ColumnSummary struct {
	Name    string
	Kind    string
	Filled  int
	Missing int
	Unique  int
	// Numeric columns only.
	Min, Max, Mean float64
	// Set when Unique <= maxCategories, most frequent first.
	TopValues []CategoryCount
}

type CategoryCount struct {
	Value string
	Count int
}

type colAcc struct {
	name   string
	filled int
	numCnt int
	dtCnt  int
	n      int
	mean   float64
	min    float64
	max    float64
	cats   map[string]int
}

// Profile computes per-column statistics and flags identifier problems.
func Profile(res *parser.Result) *Report {
	rep := &Report{Rows: len(res.Rows), Skipped: res.Skipped}
	cols := make([]*colAcc, len(res.Headers))
	index := make(map[string]int, len(res.Headers))
	for i, h := range res.Headers {
		cols[i] = &colAcc{name: h, min: math.Inf(1), max: math.Inf(-1), cats: map[string]int{}}
		index[h] = i
	}

	ids := map[string]int{}
	derived := 0
	for _, row := range res.Rows {
		if id, ok := parser.IdentifierOf(row.Source); ok {
			ids[id]++
		} else {
			derived++
		}
		for _, f := range row.Source {
			i, ok := index[f.Name]
			if !ok {
				continue
			}
			v := strings.TrimSpace(f.Value)
			if v == "" {
				continue
			}
			c := cols[i]
			c.filled++
			c.cats[v]++
			if x, ok := parseNumeric(v); ok {
				c.numCnt++
				c.n++
				c.mean += (x - c.mean) / float64(c.n)
				c.min = math.Min(c.min, x)
				c.max = math.Max(c.max, x)
				continue
			}
			if _, ok := parseTimeMaybe(v); ok {
				c.dtCnt++
			}
		}
	}

	for _, c := range cols {
		s := ColumnSummary{
			Name:    c.name,
			Filled:  c.filled,
			Missing: rep.Rows - c.filled,
			Unique:  len(c.cats),
		}
		switch {
		case c.filled == 0:
			s.Kind = KindEmpty
			rep.Warnings = append(rep.Warnings, fmt.Sprintf("column %q is empty in every row", c.name))
		case c.numCnt == c.filled:
			s.Kind = KindNumeric
			s.Min, s.Max, s.Mean = c.min, c.max, c.mean
		case c.dtCnt == c.filled:
			s.Kind = KindDate
		default:
			s.Kind = KindText
		}
		if s.Unique > 0 && s.Unique <= maxCategories {
			s.TopValues = topValues(c.cats)
		}
		rep.Cols = append(rep.Cols, s)
	}

	var dups []string
	for id, n := range ids {
		if n > 1 {
			dups = append(dups, fmt.Sprintf("%s (x%d)", id, n))
		}
	}
	sort.Strings(dups)
	if len(dups) > 0 {
		rep.Warnings = append(rep.Warnings, "duplicate identifiers, later rows overwrite earlier ones: "+strings.Join(dups, ", "))
	}
	if derived > 0 {
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("%d rows have no identifier column value and get a derived id", derived))
	}
	return rep
}

func topValues(cats map[string]int) []CategoryCount {
	out := make([]CategoryCount, 0, len(cats))
	for v, n := range cats {
		out = append(out, CategoryCount{Value: v, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Value < out[j].Value
	})
	return out
}

// parseNumeric accepts prices and sizes as they appear in listing feeds:
// "$450,000", "1,250 sqft", "2.5".
func parseNumeric(s string) (float64, bool) {
	raw := strings.TrimSpace(s)
	raw = strings.TrimPrefix(raw, "$")
	for _, suffix := range []string{"sqft", "sq ft", "sf", "%"} {
		raw = strings.TrimSpace(strings.TrimSuffix(strings.ToLower(raw), suffix))
	}
	raw = strings.ReplaceAll(raw, ",", "")
	if raw == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func parseTimeMaybe(s string) (time.Time, bool) {
	layouts := []string{
		time.RFC3339, "2006-01-02", "2006/01/02", "01/02/2006", "1/2/2006",
		"2006-01-02 15:04", "2006-01-02 15:04:05", "Jan 2, 2006",
	}
	for _, l := range layouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// String renders the report as plain text for the terminal.
func (r *Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d rows, %d skipped, %d columns\n", r.Rows, r.Skipped, len(r.Cols))
	for _, c := range r.Cols {
		fmt.Fprintf(&b, "- %s [%s] filled %d/%d, %d distinct", c.Name, c.Kind, c.Filled, r.Rows, c.Unique)
		if c.Kind == KindNumeric {
			fmt.Fprintf(&b, ", min %s max %s mean %s", num(c.Min), num(c.Max), num(c.Mean))
		}
		if len(c.TopValues) > 0 {
			parts := make([]string, len(c.TopValues))
			for i, tv := range c.TopValues {
				parts[i] = fmt.Sprintf("%s (%d)", tv.Value, tv.Count)
			}
			fmt.Fprintf(&b, ": %s", strings.Join(parts, ", "))
		}
		b.WriteByte('\n')
	}
	for _, w := range r.Warnings {
		fmt.Fprintf(&b, "⚠ %s\n", w)
	}
	return b.String()
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
