package analysis

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/listingloom/internal/parser"
)

const feed = `MLS #,Price,Listed,Neighborhood,Notes
WL-100,"$450,000",2024-03-01,West Loop,
LP-200,"$1,200,000",2024-03-04,Lincoln Park,
WL-100,"$455,000",2024-03-09,West Loop,
,399000,2024-03-10,Uptown,
`

func TestProfile(t *testing.T) {
	res, err := parser.Parse(strings.NewReader(feed), ',')
	require.NoError(t, err)

	rep := Profile(res)
	assert.Equal(t, 4, rep.Rows)
	require.Len(t, rep.Cols, 5)

	byName := map[string]ColumnSummary{}
	for _, c := range rep.Cols {
		byName[c.Name] = c
	}

	price := byName["Price"]
	assert.Equal(t, KindNumeric, price.Kind)
	assert.Equal(t, 399000.0, price.Min)
	assert.Equal(t, 1200000.0, price.Max)
	assert.InDelta(t, 626000.0, price.Mean, 0.001)

	assert.Equal(t, KindDate, byName["Listed"].Kind)

	hood := byName["Neighborhood"]
	assert.Equal(t, KindText, hood.Kind)
	assert.Equal(t, 3, hood.Unique)
	require.NotEmpty(t, hood.TopValues)
	assert.Equal(t, CategoryCount{Value: "West Loop", Count: 2}, hood.TopValues[0])

	id := byName["MLS #"]
	assert.Equal(t, 3, id.Filled)
	assert.Equal(t, 1, id.Missing)

	assert.Equal(t, KindEmpty, byName["Notes"].Kind)

	warnings := strings.Join(rep.Warnings, "\n")
	assert.Contains(t, warnings, `column "Notes" is empty`)
	assert.Contains(t, warnings, "WL-100 (x2)")
	assert.Contains(t, warnings, "1 rows have no identifier")
}

func TestParseNumeric(t *testing.T) {
	cases := map[string]float64{
		"$450,000":   450000,
		"1,250 sqft": 1250,
		"2.5":        2.5,
		"12%":        12,
	}
	for in, want := range cases {
		got, ok := parseNumeric(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	for _, in := range []string{"", "$", "two", "NaN", "Inf"} {
		_, ok := parseNumeric(in)
		assert.False(t, ok, in)
	}
}

func TestReportString(t *testing.T) {
	res, err := parser.Parse(strings.NewReader(feed), ',')
	require.NoError(t, err)
	out := Profile(res).String()
	assert.Contains(t, out, "4 rows, 0 skipped, 5 columns")
	assert.Contains(t, out, "- Price [numeric] filled 4/4, 4 distinct, min 399000 max 1200000 mean 626000")
	assert.Contains(t, out, "⚠ ")
}
