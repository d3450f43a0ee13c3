package parser_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/KaramelBytes/listingloom/internal/model"
	"github.com/KaramelBytes/listingloom/internal/parser"
)

func TestParse_AddressSeedScenario(t *testing.T) {
	res, err := parser.Parse(strings.NewReader("Address,Price\n123 Main St,450000\n"), ',')
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(res.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(res.Rows))
	}
	id := res.Rows[0].ExternalID
	if !strings.HasPrefix(id, "123-main-st-") {
		t.Fatalf("expected slug prefix 123-main-st-, got %q", id)
	}
	if len(id) != len("123-main-st-")+8 {
		t.Fatalf("expected 8 hex salt, got %q", id)
	}
	if got, _ := res.Rows[0].Source.Get("Price"); got != "450000" {
		t.Fatalf("source row lost Price: %q", got)
	}
}

func TestParse_IdentifierColumnVerbatim(t *testing.T) {
	csv := "Address,MLS #,Price\n1 Elm,MX-77,10\n2 Elm, ,20\n"
	res, err := parser.Parse(strings.NewReader(csv), ',')
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if res.Rows[0].ExternalID != "MX-77" {
		t.Fatalf("want MX-77, got %q", res.Rows[0].ExternalID)
	}
	if !strings.HasPrefix(res.Rows[1].ExternalID, "2-elm-") {
		t.Fatalf("blank identifier should fall back to address slug, got %q", res.Rows[1].ExternalID)
	}
}

func TestParse_IdentifierColumnsAreCaseSensitive(t *testing.T) {
	res, err := parser.Parse(strings.NewReader("Mls,Street\nX1,Oak Ave\n"), ',')
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !strings.HasPrefix(res.Rows[0].ExternalID, "oak-ave-") {
		t.Fatalf("Mls is not a recognized column; got %q", res.Rows[0].ExternalID)
	}
}

func TestParse_SkipsMismatchedAndBlankRows(t *testing.T) {
	csv := "a,b,c\n1,2,3\n1,2\n , ,\n4,5,6,7\n7,8,9\n"
	res, err := parser.Parse(strings.NewReader(csv), ',')
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(res.Rows) != 2 || res.Skipped != 3 {
		t.Fatalf("rows=%d skipped=%d, want 2/3", len(res.Rows), res.Skipped)
	}
	if res.Rows[1].Index != 1 {
		t.Fatalf("indexes should be contiguous over accepted rows, got %d", res.Rows[1].Index)
	}
}

func TestParse_SkipsRowWithStrayQuote(t *testing.T) {
	csv := "Address,Notes\n123 Main St,ok\n9 Oak Ave,has 10\" tiles\n5 Elm St,fine\n"
	res, err := parser.Parse(strings.NewReader(csv), ',')
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(res.Rows) != 2 || res.Skipped != 1 {
		t.Fatalf("rows=%d skipped=%d, want 2/1", len(res.Rows), res.Skipped)
	}
	for i, want := range []string{"123 Main St", "5 Elm St"} {
		if got, _ := res.Rows[i].Source.Get("Address"); got != want {
			t.Fatalf("row %d address=%q, want %q", i, got, want)
		}
	}
}

func TestParse_ContentHashSeed(t *testing.T) {
	res, err := parser.Parse(strings.NewReader("Beds,Baths\n3,2\n"), ',')
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	id := res.Rows[0].ExternalID
	// 40 hex chars of sha1 + "-" + 8 hex salt
	if len(id) != 49 || id[40] != '-' {
		t.Fatalf("unexpected hash-derived id %q", id)
	}
}

func TestParse_EmptyAndMalformed(t *testing.T) {
	if _, err := parser.Parse(strings.NewReader(""), ','); !errors.Is(err, parser.ErrEmptyCSV) {
		t.Fatalf("want ErrEmptyCSV, got %v", err)
	}
	if _, err := parser.Parse(strings.NewReader(" , \n1,2\n"), ','); !errors.Is(err, parser.ErrEmptyCSV) {
		t.Fatalf("blank header: want ErrEmptyCSV, got %v", err)
	}
	if _, err := parser.Parse(strings.NewReader("a,b\n\"unterminated,2\n"), ','); err == nil {
		t.Fatalf("expected error for malformed quoting")
	}
}

func TestParse_BOMAndTrimmedHeaders(t *testing.T) {
	res, err := parser.Parse(strings.NewReader("\xEF\xBB\xBF MLS ,Price\nA1,5\n"), ',')
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if res.Headers[0] != "MLS" {
		t.Fatalf("header not cleaned: %q", res.Headers[0])
	}
	if res.Rows[0].ExternalID != "A1" {
		t.Fatalf("want A1, got %q", res.Rows[0].ExternalID)
	}
}

func TestPreviewCap(t *testing.T) {
	var b strings.Builder
	b.WriteString("id,v\n")
	for i := 0; i < 250; i++ {
		b.WriteString("x")
		b.WriteString(strings.Repeat("y", i%3))
		b.WriteString(",1\n")
	}
	res, err := parser.Parse(strings.NewReader(b.String()), ',')
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(res.Rows) != 250 {
		t.Fatalf("import set must be uncapped, got %d", len(res.Rows))
	}
	if n := len(res.Preview(0)); n != parser.DefaultPreviewLimit {
		t.Fatalf("preview should cap at %d, got %d", parser.DefaultPreviewLimit, n)
	}
	if n := len(res.Preview(10)); n != 10 {
		t.Fatalf("preview(10)=%d", n)
	}
}

func TestParseFile_TSV(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "homes.tsv")
	if err := os.WriteFile(p, []byte("listing_id\tCity\nL-1\tChicago, IL\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	res, err := parser.ParseFile(p)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got, _ := res.Rows[0].Source.Get("City"); got != "Chicago, IL" {
		t.Fatalf("tab delimiter not applied: %q", got)
	}
}

func TestParseFile_Unsupported(t *testing.T) {
	p := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(p, []byte("a,b\n1,2\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := parser.ParseFile(p); !errors.Is(err, parser.ErrUnsupported) {
		t.Fatalf("want ErrUnsupported, got %v", err)
	}
}

func TestStream_CallbackErrorStops(t *testing.T) {
	stop := errors.New("stop")
	n := 0
	_, _, err := parser.Stream(strings.NewReader("a\n1\n2\n3\n"), ',', func(model.Payload) error {
		n++
		if n == 2 {
			return stop
		}
		return nil
	})
	if !errors.Is(err, stop) || n != 2 {
		t.Fatalf("err=%v n=%d", err, n)
	}
}
