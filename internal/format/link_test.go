package format

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLinkRecords_LongestFirst(t *testing.T) {
	got := LinkRecords("Check A12 and A1 today", []string{"A1", "A12"}, "/listings/")
	want := `Check <a href="/listings/A12" class="listing-link" data-external-id="A12">A12</a> and ` +
		`<a href="/listings/A1" class="listing-link" data-external-id="A1">A1</a> today`
	assert.Equal(t, want, got)
}

func TestLinkRecords_Idempotent(t *testing.T) {
	in := "<strong>A1</strong> and A1 again, plus B-2"
	once := LinkRecords(in, []string{"A1", "B-2"}, "/listings/")
	twice := LinkRecords(once, []string{"A1", "B-2"}, "/listings/")
	assert.Equal(t, once, twice)
	assert.Contains(t, once, `<strong><a href="/listings/A1" class="listing-link" data-external-id="A1">A1</a></strong> and A1 again`)
}

func TestLinkRecords_SkipsAnchorsAndAttributes(t *testing.T) {
	in := `<a href="/x/A1" title="A1">see</a> then A1`
	got := LinkRecords(in, []string{"A1"}, "/listings/")
	assert.Equal(t, `<a href="/x/A1" title="A1">see</a> then <a href="/listings/A1" class="listing-link" data-external-id="A1">A1</a>`, got)

	inside := `<a href="/x">A1</a>`
	assert.Equal(t, inside, LinkRecords(inside, []string{"A1"}, "/listings/"))
}

func TestLinkRecords_EscapingAndEntities(t *testing.T) {
	got := LinkRecords("Tom &amp; Jerry at 12 Oak &amp; Elm", []string{"amp", "12 Oak & Elm"}, "/homes/")
	assert.Equal(t,
		`Tom &amp; Jerry at <a href="/homes/12%20Oak%20&amp;%20Elm" class="listing-link" data-external-id="12 Oak &amp; Elm">12 Oak &amp; Elm</a>`,
		got)
}

func TestLinkRecords_NoIDs(t *testing.T) {
	assert.Equal(t, "plain", LinkRecords("plain", nil, "/listings/"))
	assert.Equal(t, "plain", LinkRecords("plain", []string{"", "  "}, "/listings/"))
}
