package format

import (
	"html"
	"net/url"
	"sort"
	"strings"
)

// LinkRecords wraps the first occurrence of each external id in an anchor to
// detailPath+id. Occurrences inside anchors or inside tags are ignored and
// ids that already have a record link are skipped, so the pass is idempotent.
// Longer ids are linked first so a short id never splits a longer one.
func LinkRecords(htmlText string, ids []string, detailPath string) string {
	sorted := make([]string, 0, len(ids))
	seen := map[string]bool{}
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" && !seen[id] {
			seen[id] = true
			sorted = append(sorted, id)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if len(sorted[i]) != len(sorted[j]) {
			return len(sorted[i]) > len(sorted[j])
		}
		return sorted[i] < sorted[j]
	})

	for _, id := range sorted {
		htmlText = linkOne(htmlText, id, detailPath)
	}
	return htmlText
}

// recordAnchor renders the link markup for one id.
func recordAnchor(id, detailPath string) string {
	esc := html.EscapeString(id)
	href := html.EscapeString(detailPath + url.PathEscape(id))
	return `<a href="` + href + `" class="listing-link" data-external-id="` + esc + `">` + esc + `</a>`
}

func linkOne(htmlText, id, detailPath string) string {
	esc := html.EscapeString(id)
	if strings.Contains(htmlText, `data-external-id="`+esc+`"`) {
		return htmlText
	}
	segs := splitHTML(htmlText)
	depth := 0
	for i, sg := range segs {
		if sg.tag {
			switch {
			case isOpenAnchor(sg.s):
				depth++
			case isCloseAnchor(sg.s) && depth > 0:
				depth--
			}
			continue
		}
		if depth > 0 {
			continue
		}
		for from := 0; from < len(sg.s); {
			p := strings.Index(sg.s[from:], esc)
			if p < 0 {
				break
			}
			p += from
			if insideEntity(sg.s, p) {
				from = p + 1
				continue
			}
			segs[i].s = sg.s[:p] + recordAnchor(id, detailPath) + sg.s[p+len(esc):]
			return joinSegments(segs)
		}
	}
	return htmlText
}
