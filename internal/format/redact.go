package format

import (
	"html"
	"net/url"
	"regexp"
	"strings"
)

// Replacement phrases used by Redact.
const (
	NeutralAction = "contact a local real estate agent"
	NeutralName   = "a local real estate agent"
)

// Competitor is a third-party listing platform. Generic-word names such as
// "realtor" only match together with their domain suffix.
type Competitor struct {
	Name     string
	NeedsTLD bool
}

// DefaultCompetitors is the built-in platform list.
var DefaultCompetitors = []Competitor{
	{Name: "zillow"},
	{Name: "trulia"},
	{Name: "redfin"},
	{Name: "realtor", NeedsTLD: true},
	{Name: "homes", NeedsTLD: true},
	{Name: "apartments", NeedsTLD: true},
	{Name: "hotpads"},
	{Name: "movoto"},
	{Name: "opendoor"},
	{Name: "offerpad"},
	{Name: "streeteasy"},
	{Name: "loopnet"},
	{Name: "homesnap"},
	{Name: "craigslist"},
	{Name: "estately"},
	{Name: "xome"},
	{Name: "rocket homes"},
}

const (
	genericSites = `(?:(?:other|leading|popular|major|top|big|well-known|online|third[- ]party)\s+)+` +
		`(?:online\s+)?real[- ]estate\s+(?:listing\s+)?(?:sites|websites|web\s+sites|platforms|portals|apps|search\s+engines)\b`
	actionVerbs = `(?:check(?:\s+out)?|visit|try|see|browse|use|search(?:\s+on)?|look\s+(?:at|on)|head\s+(?:over\s+)?to|go\s+to)`
)

// Redactor replaces competitor mentions in HTML text.
type Redactor struct {
	competitors []Competitor
	action      *regexp.Regexp
	generic     *regexp.Regexp
	bare        *regexp.Regexp
}

// NewRedactor compiles patterns for the given platforms.
func NewRedactor(competitors []Competitor) *Redactor {
	alts := make([]string, 0, len(competitors))
	for _, c := range competitors {
		pat := strings.ReplaceAll(regexp.QuoteMeta(strings.ToLower(c.Name)), " ", `\s*`)
		if c.NeedsTLD {
			alts = append(alts, pat+`\.com`)
		} else {
			alts = append(alts, pat+`(?:\.com)?`)
		}
	}
	name := `(?:https?://)?(?:www\.)?(?:` + strings.Join(alts, "|") + `)\b(?:/[^\s<]*[^\s<.,;:!?)])?`
	names := name + `(?:(?:,\s*|\s+)(?:(?:and|or)\s+)?` + name + `)*`
	like := `(?:,?\s+(?:like|such\s+as|including)\s+` + names + `)?`
	target := `(?:(?:sites|websites|platforms|apps)\s+(?:like|such\s+as)\s+)?(?:the\s+)?(?:` + names + `|` + genericSites + like + `)`

	return &Redactor{
		competitors: competitors,
		action:      regexp.MustCompile(`(?i)\b` + actionVerbs + `\s+` + target),
		generic:     regexp.MustCompile(`(?i)\b` + genericSites + like),
		bare:        regexp.MustCompile(`(?i)\b` + name),
	}
}

// Redact replaces anchors pointing at a competitor and unwraps anchors whose
// URL names one, then rewrites action phrases, generic references and bare
// names in text. Other tags are left untouched.
func (r *Redactor) Redact(htmlText string) string {
	segs := splitHTML(r.dropCompetitorAnchors(htmlText))
	for i, sg := range segs {
		if sg.tag {
			continue
		}
		s := r.action.ReplaceAllString(sg.s, NeutralAction)
		s = r.generic.ReplaceAllString(s, NeutralName)
		s = r.bare.ReplaceAllString(s, NeutralName)
		segs[i].s = s
	}
	return joinSegments(segs)
}

func (r *Redactor) competitorHref(href string) bool {
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil || u.Host == "" {
		return false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	for _, c := range r.competitors {
		n := strings.ReplaceAll(strings.ToLower(c.Name), " ", "")
		if host == n+".com" || strings.HasSuffix(host, "."+n+".com") {
			return true
		}
		if !c.NeedsTLD && strings.Contains(host, n) {
			return true
		}
	}
	return false
}

// mentionsCompetitor reports whether an anchor tag names a platform anywhere
// in its attributes, percent-encoded or not.
func (r *Redactor) mentionsCompetitor(tag string) bool {
	raw := html.UnescapeString(tag)
	if r.bare.MatchString(raw) {
		return true
	}
	if dec, err := url.PathUnescape(raw); err == nil && dec != raw {
		return r.bare.MatchString(dec)
	}
	return false
}

// dropCompetitorAnchors replaces each competitor anchor, contents included,
// with NeutralName. Anchors elsewhere whose attributes name a platform are
// unwrapped so only their text remains.
func (r *Redactor) dropCompetitorAnchors(htmlText string) string {
	segs := splitHTML(htmlText)
	out := make([]segment, 0, len(segs))
	depth := 0
	var unwrapped []bool
	for _, sg := range segs {
		if depth > 0 {
			switch {
			case sg.tag && isOpenAnchor(sg.s):
				depth++
			case sg.tag && isCloseAnchor(sg.s):
				depth--
			}
			continue
		}
		switch {
		case sg.tag && isOpenAnchor(sg.s):
			if href, ok := attr(sg.s, "href"); ok && r.competitorHref(href) {
				out = append(out, segment{s: NeutralName})
				depth = 1
				continue
			}
			drop := r.mentionsCompetitor(sg.s)
			unwrapped = append(unwrapped, drop)
			if drop {
				continue
			}
		case sg.tag && isCloseAnchor(sg.s) && len(unwrapped) > 0:
			drop := unwrapped[len(unwrapped)-1]
			unwrapped = unwrapped[:len(unwrapped)-1]
			if drop {
				continue
			}
		}
		out = append(out, sg)
	}
	return joinSegments(out)
}
