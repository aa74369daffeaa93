package filtering

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

func joined(segs []Segment) string {
	var b strings.Builder
	for _, s := range segs {
		b.WriteString(s.Text)
	}
	return b.String()
}

func TestHighlight_NoKeywords(t *testing.T) {
	segs := Highlight("Cloud Security Services", nil)
	if len(segs) != 1 || segs[0].Matched || segs[0].Text != "Cloud Security Services" {
		t.Fatalf("expected single unmatched segment, got %+v", segs)
	}
}

func TestHighlight_LongestKeywordWins(t *testing.T) {
	segs := Highlight("Cloud Security Services", []string{"cloud", "cloud security"})
	want := []Segment{
		{Text: "Cloud Security", Matched: true},
		{Text: " Services", Matched: false},
	}
	if len(segs) != len(want) {
		t.Fatalf("expected %+v, got %+v", want, segs)
	}
	for i := range want {
		if segs[i] != want[i] {
			t.Fatalf("expected %+v, got %+v", want, segs)
		}
	}
}

func TestHighlight_AdjacentMatchesStaySeparate(t *testing.T) {
	segs := Highlight("Cloud Cloud", []string{"cloud"})
	want := []Segment{
		{Text: "Cloud", Matched: true},
		{Text: " ", Matched: false},
		{Text: "Cloud", Matched: true},
	}
	if len(segs) != len(want) {
		t.Fatalf("expected %+v, got %+v", want, segs)
	}
	for i := range want {
		if segs[i] != want[i] {
			t.Fatalf("expected %+v, got %+v", want, segs)
		}
	}

	segs = Highlight("abab", []string{"ab"})
	if len(segs) != 2 || !segs[0].Matched || !segs[1].Matched {
		t.Fatalf("expected two matched segments, got %+v", segs)
	}
}

func TestHighlight_Reconstitutes(t *testing.T) {
	titles := []string{
		"Enterprise IT Modernization (Phase II)",
		"Straße Ünïcode résumé support",
		"",
		"aaaa",
	}
	keywords := []string{"it", "STRASSE", "résumé", "aa", "", "modern"}

	for _, title := range titles {
		segs := Highlight(title, keywords)
		if got := joined(segs); got != title {
			t.Fatalf("segments do not reconstitute %q: %q", title, got)
		}
		for i := 1; i < len(segs); i++ {
			if !segs[i].Matched && !segs[i-1].Matched {
				t.Fatalf("adjacent unmatched segments not merged in %+v", segs)
			}
		}
	}
}

func TestHighlight_PreservesOriginalCase(t *testing.T) {
	segs := Highlight("RÉSUMÉ review", []string{"résumé"})
	if len(segs) != 2 || segs[0].Text != "RÉSUMÉ" || !segs[0].Matched {
		t.Fatalf("expected original-case match, got %+v", segs)
	}
}

func TestHighlightHTML_MarksAndEscapes(t *testing.T) {
	out := HighlightHTML(`Cloud <script>alert(1)</script> & cloud`, []string{"cloud"})

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(out))
	if err != nil {
		t.Fatalf("parse rendered html: %v", err)
	}
	marks := doc.Find("mark")
	if marks.Length() != 2 {
		t.Fatalf("expected 2 marks, got %d in %s", marks.Length(), out)
	}
	if marks.First().Text() != "Cloud" || marks.Last().Text() != "cloud" {
		t.Fatalf("unexpected mark text in %s", out)
	}
	if doc.Find("script").Length() != 0 {
		t.Fatalf("script element survived: %s", out)
	}
}
