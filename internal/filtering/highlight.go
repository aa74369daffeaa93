package filtering

import (
	"html"
	"slices"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

// Segment is one piece of a highlighted title.
type Segment struct {
	Text    string `json:"text"`
	Matched bool   `json:"match"`
}

// Highlight splits title into matched and unmatched segments. The segments
// concatenate back to title exactly. Longer keywords win over shorter ones
// they contain, matched text keeps the title's original case, and only
// adjacent unmatched segments are merged.
func Highlight(title string, keywords []string) []Segment {
	if len(keywords) == 0 {
		return []Segment{{Text: title}}
	}

	patterns := make([][]rune, 0, len(keywords))
	for _, k := range keywords {
		if k == "" {
			continue
		}
		patterns = append(patterns, lowerRunes([]rune(k)))
	}
	slices.SortStableFunc(patterns, func(a, b []rune) int {
		return len(b) - len(a)
	})

	runes := []rune(title)
	lower := lowerRunes(runes)

	var parts []Segment
	for i := 0; i < len(runes); {
		n := 0
		for _, p := range patterns {
			if hasPrefixAt(lower, i, p) {
				n = len(p)
				break
			}
		}
		if n > 0 {
			parts = append(parts, Segment{Text: string(runes[i : i+n]), Matched: true})
			i += n
			continue
		}
		parts = append(parts, Segment{Text: string(runes[i])})
		i++
	}

	merged := make([]Segment, 0, len(parts))
	for _, p := range parts {
		if last := len(merged) - 1; last >= 0 && !p.Matched && !merged[last].Matched {
			merged[last].Text += p.Text
			continue
		}
		merged = append(merged, p)
	}
	if len(merged) == 0 {
		return []Segment{{Text: title}}
	}
	return merged
}

var markPolicy = bluemonday.NewPolicy().AllowElements("mark")

// HighlightHTML renders the segments of Highlight as HTML, wrapping matches
// in <mark>. Title text is escaped and the result sanitised so only <mark>
// survives.
func HighlightHTML(title string, keywords []string) string {
	var b strings.Builder
	for _, s := range Highlight(title, keywords) {
		if s.Matched {
			b.WriteString("<mark>")
			b.WriteString(html.EscapeString(s.Text))
			b.WriteString("</mark>")
			continue
		}
		b.WriteString(html.EscapeString(s.Text))
	}
	return markPolicy.Sanitize(b.String())
}

func lowerRunes(rs []rune) []rune {
	out := make([]rune, len(rs))
	for i, r := range rs {
		out[i] = unicode.ToLower(r)
	}
	return out
}

func hasPrefixAt(s []rune, at int, prefix []rune) bool {
	if len(s)-at < len(prefix) {
		return false
	}
	for j, r := range prefix {
		if s[at+j] != r {
			return false
		}
	}
	return true
}
