package format

import "strings"

// segment is either a tag ("<...>") or a run of text between tags.
type segment struct {
	s   string
	tag bool
}

// splitHTML cuts s into tags and text. An unterminated "<" is treated as text.
func splitHTML(s string) []segment {
	var out []segment
	for len(s) > 0 {
		i := strings.IndexByte(s, '<')
		if i < 0 {
			out = append(out, segment{s: s})
			break
		}
		if i > 0 {
			out = append(out, segment{s: s[:i]})
		}
		j := strings.IndexByte(s[i:], '>')
		if j < 0 {
			out = append(out, segment{s: s[i:]})
			break
		}
		out = append(out, segment{s: s[i : i+j+1], tag: true})
		s = s[i+j+1:]
	}
	return out
}

func joinSegments(segs []segment) string {
	var b strings.Builder
	for _, sg := range segs {
		b.WriteString(sg.s)
	}
	return b.String()
}

// isOpenAnchor reports whether tag is "<a" followed by space or ">".
func isOpenAnchor(tag string) bool {
	t := strings.ToLower(tag)
	return strings.HasPrefix(t, "<a ") || t == "<a>"
}

func isCloseAnchor(tag string) bool {
	return strings.EqualFold(strings.TrimSpace(tag), "</a>")
}

// attr returns the value of a double-quoted attribute in a tag.
func attr(tag, name string) (string, bool) {
	lower := strings.ToLower(tag)
	key := " " + strings.ToLower(name) + `="`
	i := strings.Index(lower, key)
	if i < 0 {
		return "", false
	}
	start := i + len(key)
	end := strings.IndexByte(tag[start:], '"')
	if end < 0 {
		return "", false
	}
	return tag[start : start+end], true
}

// insideEntity reports whether position p of text falls within a character
// reference such as "&amp;".
func insideEntity(text string, p int) bool {
	amp := strings.LastIndexByte(text[:p], '&')
	if amp < 0 {
		return false
	}
	semi := strings.IndexByte(text[amp:], ';')
	if semi < 0 || semi > 10 {
		return false
	}
	if strings.ContainsAny(text[amp:amp+semi], " \t\n") {
		return false
	}
	return p <= amp+semi
}
