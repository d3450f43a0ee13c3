package parser_test

import (
	"strings"
	"testing"

	"github.com/KaramelBytes/listingloom/internal/model"
	"github.com/KaramelBytes/listingloom/internal/parser"
)

func TestSlugify_SaltedUniqueness(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := parser.Slugify("123 Main St")
		if seen[id] {
			t.Fatalf("duplicate derived id %q", id)
		}
		seen[id] = true
	}
}

func TestSlugify_FoldsAndTruncates(t *testing.T) {
	cases := []struct {
		seed, prefix string
	}{
		{"Café Münster Straße 5", "cafe-munster-stra-e-5-"},
		{"  --Unit #4B, Lake Shore Dr.  ", "unit-4b-lake-shore-dr-"},
		{"!!!", "row-"},
		{"", "row-"},
		{strings.Repeat("ab ", 30), strings.TrimSuffix(strings.Repeat("ab-", 13), "-") + "-a-"},
	}
	for _, c := range cases {
		got := parser.Slugify(c.seed)
		if !strings.HasPrefix(got, c.prefix) {
			t.Errorf("Slugify(%q)=%q, want prefix %q", c.seed, got, c.prefix)
		}
		if len(got) != len(c.prefix)+8 {
			t.Errorf("Slugify(%q)=%q has unexpected length", c.seed, got)
		}
	}
}

func TestResolveExternalID_Precedence(t *testing.T) {
	p := model.Payload{{Name: "Address", Value: "9 Pine"}, {Name: "id", Value: "7"}, {Name: "MLS", Value: "M9"}}
	if got := parser.ResolveExternalID(p); got != "M9" {
		t.Fatalf("MLS should win over id, got %q", got)
	}
	if got, ok := parser.IdentifierOf(model.Payload{{Name: "Address", Value: "x"}}); ok || got != "" {
		t.Fatalf("no identifier expected, got %q", got)
	}
}

func TestSupported(t *testing.T) {
	for name, want := range map[string]bool{"a.csv": true, "B.TSV": true, "c.xlsx": false, "d": false} {
		if got := parser.Supported(name); got != want {
			t.Errorf("Supported(%q)=%v", name, got)
		}
	}
}
