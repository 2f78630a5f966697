package speakerid

import (
	"regexp"
	"strings"

	"github.com/kbukum/meetscribe/meeting"
)

var introPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\bmy name is\s+\w+`),
	regexp.MustCompile(`\bi'?m\s+[a-z]+\b`),
	regexp.MustCompile(`\bi am\s+[a-z]+\b`),
	regexp.MustCompile(`\bthis is\s+[a-z]+\s+(speaking|here)\b`),
	regexp.MustCompile(`\bjag heter\s+\w+`),
	regexp.MustCompile(`\bmitt namn [aä]r\s+\w+`),
}

// HasIntro reports whether the segments starting inside window contain a
// self-introduction phrase.
func HasIntro(segs []meeting.AlignedSegment, window float64) bool {
	text := strings.ToLower(introText(segs, window, false))
	for _, p := range introPatterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

// introText joins the segments that start inside window, optionally
// prefixed with their labels.
func introText(segs []meeting.AlignedSegment, window float64, labeled bool) string {
	var b strings.Builder
	for _, s := range segs {
		if s.Start >= window {
			continue
		}
		if labeled {
			b.WriteString("[")
			b.WriteString(s.Label)
			b.WriteString("]: ")
		}
		b.WriteString(s.Text)
		b.WriteString("\n")
	}
	return b.String()
}

// FirstAppearance returns the labels of segs in order of first appearance,
// excluding UNKNOWN.
func FirstAppearance(segs []meeting.AlignedSegment) []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range segs {
		if s.Label == meeting.UnknownLabel || seen[s.Label] {
			continue
		}
		seen[s.Label] = true
		out = append(out, s.Label)
	}
	return out
}
