package parser

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/KaramelBytes/listingloom/internal/model"
)

// IdentifierColumns are column names whose value is used verbatim as the
// external identifier. Matching is case-sensitive; the first non-blank wins.
var IdentifierColumns = []string{
	"MLS", "MLS #", "MLS#", "MLS Number", "MLS ID",
	"mls", "mls_number", "mls_id",
	"Listing ID", "ListingID", "listing_id",
	"ID", "id", "external_id",
}

// AddressColumns seed the derived identifier when no identifier column is present.
var AddressColumns = []string{
	"Address", "address", "Street Address", "Property Address", "Full Address", "street", "Street",
}

const slugSeedLen = 40

// IdentifierOf returns the value of the first non-blank identifier column.
func IdentifierOf(p model.Payload) (string, bool) {
	for _, col := range IdentifierColumns {
		if v, ok := p.Get(col); ok {
			if v = strings.TrimSpace(v); v != "" {
				return v, true
			}
		}
	}
	return "", false
}

// ResolveExternalID returns the row's identifier column value, or a salted
// slug derived from its address or, failing that, a hash of the whole row.
// Two calls on an identifier-less row never return the same value.
func ResolveExternalID(p model.Payload) string {
	if id, ok := IdentifierOf(p); ok {
		return id
	}
	return Slugify(seedOf(p))
}

func seedOf(p model.Payload) string {
	for _, col := range AddressColumns {
		if v, ok := p.Get(col); ok {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	sum := sha1.Sum([]byte(strings.Join(p.Values(), "\x1f")))
	return hex.EncodeToString(sum[:])
}

// Slugify folds the first 40 characters of seed to a lowercase, hyphenated
// ASCII slug and appends an 8-hex-character salt of seed plus a random token.
func Slugify(seed string) string {
	head := []rune(seed)
	if len(head) > slugSeedLen {
		head = head[:slugSeedLen]
	}
	slug := slugPart(string(head))
	if slug == "" {
		slug = "row"
	}
	return slug + "-" + salt(seed)
}

var foldMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

func slugPart(s string) string {
	folded, _, err := transform.String(foldMarks, s)
	if err != nil {
		folded = s
	}
	var b strings.Builder
	pendingHyphen := false
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}
	return b.String()
}

func salt(seed string) string {
	sum := sha1.Sum([]byte(seed + uuid.NewString()))
	return hex.EncodeToString(sum[:])[:8]
}
