package format

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedact_NoCompetitorNameSurvives(t *testing.T) {
	r := NewRedactor(DefaultCompetitors)
	for _, c := range DefaultCompetitors {
		domain := strings.ReplaceAll(c.Name, " ", "") + ".com"
		display := c.Name
		if c.NeedsTLD {
			display = domain
		}
		for _, text := range []string{
			"try " + domain + " for more",
			"visit https://www." + domain + "/homes/123 now",
			"I used " + display + " yesterday",
			strings.ToUpper(display) + " has more listings.",
			"Check out " + strings.ToUpper(display[:1]) + display[1:] + ", it is great",
		} {
			out := strings.ToLower(r.Redact(text))
			assert.NotContains(t, out, strings.ToLower(display), text)
			assert.NotContains(t, out, domain, text)
		}
	}
}

func TestFormat_CompetitorNameInLinkURL(t *testing.T) {
	f := New("", nil)
	cases := map[string]string{
		"See [this report](https://example.com/zillow-vs-redfin) for more.": "this report",
		"[comps](/trulia/compare)":                                          "comps",
		"[ratings](https://example.com/r?src=Hot%50ads)":                    "ratings",
		"[Redfin data](/market/redfin)":                                     NeutralName,
	}
	for in, keep := range cases {
		out := f.Format(in, nil)
		lower := strings.ToLower(out)
		for _, name := range []string{"zillow", "redfin", "trulia", "hotpads"} {
			assert.NotContains(t, lower, name, in)
		}
		assert.NotContains(t, out, "<a ", in)
		assert.Contains(t, out, keep, in)
	}

	out := f.Format("Read [the guide](https://example.com/buying-guide).", nil)
	assert.Contains(t, out, `<a href="https://example.com/buying-guide"`)
	assert.Contains(t, out, "the guide</a>")
}

func TestRedact_Phrasings(t *testing.T) {
	r := NewRedactor(DefaultCompetitors)
	cases := map[string]string{
		"try Zillow.com for more": "contact a local real estate agent for more",
		"You could also check other popular real estate sites.":       "You could also contact a local real estate agent.",
		"Leading real estate websites like Zillow or Redfin list it.": "a local real estate agent list it.",
		"Zillow and Trulia show similar homes.":                       "a local real estate agent and a local real estate agent show similar homes.",
		"The Redfinch bird is not a site.":                            "The Redfinch bird is not a site.",
		"Browse homes near the lake.":                                 "Browse homes near the lake.",
	}
	for in, want := range cases {
		assert.Equal(t, want, r.Redact(in), in)
	}
}

func TestRedact_Anchors(t *testing.T) {
	r := NewRedactor(DefaultCompetitors)
	assert.Equal(t,
		"See a local real estate agent now",
		r.Redact(`See <a href="https://www.zillow.com/x">this <em>listing</em></a> now`))

	// a non-competitor anchor is kept; only its text is redacted
	assert.Equal(t,
		`<a href="https://example.com">a local real estate agent</a>`,
		r.Redact(`<a href="https://example.com">Zillow</a>`))

	// relative links are never competitor links
	linked := `<a href="/listings/H1" class="listing-link" data-external-id="H1">H1</a>`
	assert.Equal(t, linked, r.Redact(linked))
}

func TestRedact_TagsUntouched(t *testing.T) {
	r := NewRedactor(DefaultCompetitors)
	in := `<img alt="zillow">`
	assert.Equal(t, in, r.Redact(in))
}
