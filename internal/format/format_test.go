package format

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/KaramelBytes/listingloom/internal/model"
)

func TestFormat_Pipeline(t *testing.T) {
	f := New("", nil)
	raw := "**A1** is near Zillow. Visit [our page](/about).\n- A1 again"
	out := f.Format(raw, map[string]model.Payload{"A1": nil})

	assert.Equal(t,
		`<strong><a href="/listings/A1" class="listing-link" data-external-id="A1">A1</a></strong> is near a local real estate agent. `+
			`Visit <a href="/about">our page</a>.<ul><li>A1 again</li></ul>`,
		out)
}

func TestFormat_WestLoopIDLinked(t *testing.T) {
	f := New("/homes/", nil)
	out := f.Format("WL-100 has exposed brick.", map[string]model.Payload{"WL-100": {{Name: "MLS", Value: "WL-100"}}})
	assert.Contains(t, out, `<a href="/homes/WL-100" class="listing-link" data-external-id="WL-100">WL-100</a>`)
}

func TestFormat_EmptyInput(t *testing.T) {
	assert.Equal(t, "", New("", nil).Format("", nil))
}
