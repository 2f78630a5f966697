// Package align merges transcription tokens with diarization turns into
// speaker-labeled segments.
//
// Align is pure: it never mutates its inputs and depends on nothing but the
// two interval lists it is given.
package align

import (
	"sort"
	"strings"

	"github.com/kbukum/meetscribe/meeting"
)

// Align assigns a diarization label to every token.
//
// A token covered by a single speaker takes that speaker. A token whose
// interval crosses a change of speaker is split at the boundary and its
// words are shared between the pieces in proportion to their durations; a
// single word cannot be split and goes to the speaker with the most overlap.
// Where turns overlap each other, or overlap is tied, the turn that starts
// earlier wins. Time inside a token that no turn covers belongs to the
// preceding speaker. Tokens that touch no turn at all take the turn
// containing their midpoint, or meeting.UnknownLabel.
//
// Tokens are taken in start order. A token that runs into the next one is
// cut off where the next one starts, so no text moves in time. The result
// is ordered by start time and non-overlapping.
func Align(tokens []meeting.Token, turns []meeting.Turn) []meeting.AlignedSegment {
	toks := make([]meeting.Token, 0, len(tokens))
	for _, t := range tokens {
		if strings.TrimSpace(t.Text) != "" {
			toks = append(toks, t)
		}
	}
	sort.SliceStable(toks, func(i, j int) bool { return toks[i].Start < toks[j].Start })
	trs := append([]meeting.Turn(nil), turns...)
	sort.SliceStable(trs, func(i, j int) bool { return trs[i].Start < trs[j].Start })

	out := make([]meeting.AlignedSegment, 0, len(toks))
	for i, tok := range toks {
		if i+1 < len(toks) && toks[i+1].Start < tok.End {
			tok.End = toks[i+1].Start
		}
		tok.End = max(tok.End, tok.Start)
		out = append(out, alignToken(tok, strings.Fields(tok.Text), trs)...)
	}
	return out
}

// Label returns the speaker of an interval without splitting it: the label
// with the most overlap, else the turn containing the midpoint, else
// meeting.UnknownLabel.
func Label(start, end float64, turns []meeting.Turn) string {
	trs := append([]meeting.Turn(nil), turns...)
	sort.SliceStable(trs, func(i, j int) bool { return trs[i].Start < trs[j].Start })
	tok := meeting.Token{Start: start, End: end}
	if end <= start {
		return containing(start, trs)
	}
	return maxOverlap(tok, trs)
}

// run is a stretch of a token attributed to one label.
type run struct {
	label      string
	start, end float64
}

func alignToken(tok meeting.Token, words []string, turns []meeting.Turn) []meeting.AlignedSegment {
	whole := func(label string) []meeting.AlignedSegment {
		return []meeting.AlignedSegment{{Start: tok.Start, End: tok.End, Text: strings.Join(words, " "), Label: label}}
	}

	if tok.End == tok.Start {
		return whole(containing(tok.Start, turns))
	}

	runs := speakerRuns(tok, turns)
	switch {
	case len(runs) == 0:
		return whole(containing((tok.Start+tok.End)/2, turns))
	case len(runs) == 1:
		return whole(runs[0].label)
	case len(words) == 1:
		return whole(maxOverlap(tok, turns))
	}
	return split(tok, words, runs)
}

// speakerRuns partitions [tok.Start, tok.End] by the label that covers each
// elementary interval. Uncovered time joins the neighboring run.
func speakerRuns(tok meeting.Token, turns []meeting.Turn) []run {
	bounds := []float64{tok.Start, tok.End}
	var hit []meeting.Turn
	for _, t := range turns {
		if t.Start >= tok.End {
			break
		}
		if t.End <= tok.Start {
			continue
		}
		hit = append(hit, t)
		if t.Start > tok.Start {
			bounds = append(bounds, t.Start)
		}
		if t.End < tok.End {
			bounds = append(bounds, t.End)
		}
	}
	if len(hit) == 0 {
		return nil
	}
	sort.Float64s(bounds)

	var runs []run
	for i := 0; i+1 < len(bounds); i++ {
		a, b := bounds[i], bounds[i+1]
		if b <= a {
			continue
		}
		label := ""
		// hit is sorted by start, so the first cover is the earliest turn.
		for _, t := range hit {
			if t.Start <= a && t.End >= b {
				label = t.Label
				break
			}
		}
		runs = appendRun(runs, run{label: label, start: a, end: b})
	}

	// Fill gaps from the left neighbor, a leading gap from the right.
	for i := range runs {
		if runs[i].label != "" {
			continue
		}
		if i > 0 {
			runs[i].label = runs[i-1].label
		} else if len(runs) > 1 {
			runs[i].label = runs[1].label
		}
	}
	merged := runs[:0:0]
	for _, r := range runs {
		merged = appendRun(merged, r)
	}
	return merged
}

func appendRun(runs []run, r run) []run {
	if n := len(runs); n > 0 && runs[n-1].label == r.label {
		runs[n-1].end = r.end
		return runs
	}
	return append(runs, r)
}

// split shares words between runs by cumulative duration. Runs that end up
// with no words are absorbed by the previous piece.
func split(tok meeting.Token, words []string, runs []run) []meeting.AlignedSegment {
	total := tok.End - tok.Start
	var out []meeting.AlignedSegment
	from := 0
	for i, r := range runs {
		to := len(words)
		if i < len(runs)-1 {
			to = int((r.end-tok.Start)/total*float64(len(words)) + 0.5)
		}
		if to <= from {
			if n := len(out); n > 0 {
				out[n-1].End = r.end
			}
			continue
		}
		start := r.start
		if len(out) == 0 {
			start = tok.Start
		}
		out = append(out, meeting.AlignedSegment{
			Start: start,
			End:   r.end,
			Text:  strings.Join(words[from:to], " "),
			Label: r.label,
		})
		from = to
	}
	if n := len(out); n > 0 {
		out[n-1].End = tok.End
	}
	return out
}

// maxOverlap returns the label with the greatest total overlap with tok.
// Ties go to the label whose first overlapping turn starts earlier.
func maxOverlap(tok meeting.Token, turns []meeting.Turn) string {
	overlap := map[string]float64{}
	first := map[string]float64{}
	var order []string
	for _, t := range turns {
		if t.Start >= tok.End {
			break
		}
		ov := min(tok.End, t.End) - max(tok.Start, t.Start)
		if ov <= 0 {
			continue
		}
		if _, seen := overlap[t.Label]; !seen {
			order = append(order, t.Label)
			first[t.Label] = t.Start
		}
		overlap[t.Label] += ov
	}
	best := ""
	for _, l := range order {
		if best == "" || overlap[l] > overlap[best] ||
			(overlap[l] == overlap[best] && first[l] < first[best]) {
			best = l
		}
	}
	if best == "" {
		return containing((tok.Start+tok.End)/2, turns)
	}
	return best
}

func containing(at float64, turns []meeting.Turn) string {
	for _, t := range turns {
		if t.Start > at {
			break
		}
		if at <= t.End {
			return t.Label
		}
	}
	return meeting.UnknownLabel
}
