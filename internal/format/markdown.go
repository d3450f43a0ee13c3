package format

import (
	"html"
	"regexp"
	"strings"
)

var (
	headingLine = regexp.MustCompile(`^(#{1,3})\s+(.+?)\s*$`)
	ulLine      = regexp.MustCompile(`^\s*[-*+]\s+(.*)$`)
	olLine      = regexp.MustCompile(`^\s*\d+[.)]\s+(.*)$`)
)

type listKind int

const (
	noList listKind = iota
	unordered
	ordered
)

// ToHTML escapes s and converts a small Markdown subset: headings (#, ##,
// ###), bold, italics, links, unordered and ordered lists. Remaining
// newlines become <br>, except around block elements.
func ToHTML(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(html.EscapeString(s), "\n")

	var (
		b         strings.Builder
		list      = noList
		prevBlock = true // nothing written yet
	)
	closeList := func() {
		switch list {
		case unordered:
			b.WriteString("</ul>")
		case ordered:
			b.WriteString("</ol>")
		}
		list = noList
	}
	openList := func(k listKind) {
		if list == k {
			return
		}
		closeList()
		if k == unordered {
			b.WriteString("<ul>")
		} else {
			b.WriteString("<ol>")
		}
		list = k
	}

	for _, line := range lines {
		if m := headingLine.FindStringSubmatch(line); m != nil {
			closeList()
			tag := "h" + string(rune('0'+len(m[1])))
			b.WriteString("<" + tag + ">" + inline(m[2]) + "</" + tag + ">")
			prevBlock = true
			continue
		}
		if m := ulLine.FindStringSubmatch(line); m != nil {
			openList(unordered)
			b.WriteString("<li>" + inline(strings.TrimSpace(m[1])) + "</li>")
			prevBlock = true
			continue
		}
		if m := olLine.FindStringSubmatch(line); m != nil {
			openList(ordered)
			b.WriteString("<li>" + inline(strings.TrimSpace(m[1])) + "</li>")
			prevBlock = true
			continue
		}
		if list != noList && strings.TrimSpace(line) == "" {
			// a blank line ends the list without a break of its own
			closeList()
			continue
		}
		closeList()
		if !prevBlock {
			b.WriteString("<br>")
		}
		b.WriteString(inline(line))
		prevBlock = false
	}
	closeList()
	return b.String()
}

func inline(s string) string {
	var b strings.Builder
	renderInline(&b, s)
	return b.String()
}

// renderInline handles links, bold and italics. Emphasis nests; links may
// contain emphasis.
func renderInline(b *strings.Builder, s string) {
	for i := 0; i < len(s); {
		c := s[i]
		if c == '[' {
			if text, href, n, ok := parseLink(s[i:]); ok {
				b.WriteString(`<a href="` + href + `">`)
				renderInline(b, text)
				b.WriteString("</a>")
				i += n
				continue
			}
		}
		if c == '*' || c == '_' {
			if i+1 < len(s) && s[i+1] == c {
				if end, ok := closeDelim(s, i, 2); ok {
					b.WriteString("<strong>")
					renderInline(b, s[i+2:end])
					b.WriteString("</strong>")
					i = end + 2
					continue
				}
			} else if end, ok := closeDelim(s, i, 1); ok {
				b.WriteString("<em>")
				renderInline(b, s[i+1:end])
				b.WriteString("</em>")
				i = end + 1
				continue
			}
		}
		b.WriteByte(c)
		i++
	}
}

// closeDelim finds the closing run of n delimiter characters matching
// s[open]. Content must be non-empty and not padded with spaces. Underscores
// must sit on word boundaries so snake_case stays intact.
func closeDelim(s string, open, n int) (int, bool) {
	c := s[open]
	delim := strings.Repeat(string(c), n)
	if c == '_' && open > 0 && isWordByte(s[open-1]) {
		return 0, false
	}
	start := open + n
	for from := start; from < len(s); {
		rel := strings.Index(s[from:], delim)
		if rel < 0 {
			return 0, false
		}
		end := from + rel
		// a single delimiter must not be half of a double one
		if n == 1 && end+1 < len(s) && s[end+1] == c {
			from = end + 2
			continue
		}
		content := s[start:end]
		if content == "" || content[0] == ' ' || content[len(content)-1] == ' ' {
			return 0, false
		}
		if c == '_' && end+n < len(s) && isWordByte(s[end+n]) {
			from = end + n
			continue
		}
		return end, true
	}
	return 0, false
}

func isWordByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// parseLink parses "[text](url)" at the start of s. The url must be http,
// https, mailto or relative.
func parseLink(s string) (text, href string, n int, ok bool) {
	closeText := strings.Index(s, "](")
	if closeText <= 1 || strings.ContainsAny(s[1:closeText], "[]") {
		return "", "", 0, false
	}
	rest := s[closeText+2:]
	closeURL := strings.IndexByte(rest, ')')
	if closeURL < 0 {
		return "", "", 0, false
	}
	href = strings.TrimSpace(rest[:closeURL])
	if !safeURL(href) {
		return "", "", 0, false
	}
	return s[1:closeText], href, closeText + 2 + closeURL + 1, true
}

func safeURL(u string) bool {
	if u == "" || strings.ContainsAny(u, " \t\n") {
		return false
	}
	lower := strings.ToLower(u)
	for _, p := range []string{"http://", "https://", "mailto:"} {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	colon := strings.IndexByte(u, ':')
	if colon < 0 {
		return true
	}
	// a colon after a path, query or fragment delimiter is not a scheme
	stop := strings.IndexAny(u, "/?#")
	return stop >= 0 && stop < colon
}
