package speakerid

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kbukum/meetscribe/llm"
	"github.com/kbukum/meetscribe/logger"
	"github.com/kbukum/meetscribe/meeting"
)

// Estimate is the outcome of the speaker-count conversation.
type Estimate struct {
	// Count is the number of people who introduced themselves. Zero means
	// no estimate.
	Count int
	Names []string
	// IntroEnd is the time at which introductions ended, when known.
	IntroEnd *float64
}

// Bounds returns the diarization hints derived from the estimate.
func (e Estimate) Bounds() (minSpeakers, maxSpeakers int) {
	if e.Count <= 0 {
		return 0, 0
	}
	return e.Count, e.Count + 1
}

type estimateReply struct {
	IntroOngoing bool     `json:"intro_ongoing"`
	SpeakerCount int      `json:"speaker_count"`
	Names        []string `json:"names"`
	Reasoning    string   `json:"reasoning"`
}

const estimateSystemPrompt = `You follow the start of a meeting transcript, chunk by chunk.
Count the distinct people who introduce themselves and collect their names.
After each chunk answer with JSON:
{"intro_ongoing": true, "speaker_count": 0, "names": [], "reasoning": ""}
Set intro_ongoing to false once the introductions are over and the meeting has moved on.
Respond with ONLY the JSON object.`

// EstimateSpeakers feeds the transcript to the completion service in fixed
// time chunks until it reports that introductions are over. Failing rounds
// are logged and skipped.
func (i *Identifier) EstimateSpeakers(ctx context.Context, tokens []meeting.Token) (Estimate, error) {
	chunks := chunkTokens(tokens, i.cfg.EstimateChunk.Seconds(), i.cfg.EstimateMaxChunks)
	var (
		est     Estimate
		history []llm.Message
	)
	for n, c := range chunks {
		if err := ctx.Err(); err != nil {
			return est, err
		}
		history = append(history, llm.Message{
			Role:    "user",
			Content: fmt.Sprintf("Chunk %d (%.0fs-%.0fs):\n%s", n+1, c.start, c.end, c.text),
		})
		resp, err := i.llm.Execute(ctx, llm.CompletionRequest{
			SystemPrompt: estimateSystemPrompt,
			Messages:     history,
			JSON:         true,
		})
		if err != nil {
			i.log.Warn("speaker estimate round failed", logger.MergeWithError(logger.Fields("chunk", n+1), err))
			history = history[:len(history)-1]
			continue
		}
		var reply estimateReply
		if err := json.Unmarshal([]byte(llm.ExtractJSON(resp.Content)), &reply); err != nil {
			i.log.Warn("speaker estimate reply malformed", logger.MergeWithError(logger.Fields("chunk", n+1), err))
			history = history[:len(history)-1]
			continue
		}
		history = append(history, llm.Message{Role: "assistant", Content: resp.Content})

		if reply.SpeakerCount > est.Count {
			est.Count = reply.SpeakerCount
		}
		if len(reply.Names) > 0 {
			est.Names = cleanNames(reply.Names)
		}
		if !reply.IntroOngoing {
			est.IntroEnd = meeting.Ptr(c.end)
			break
		}
	}
	if est.Count > 0 {
		i.log.Info("speaker count estimated", logger.Fields("count", est.Count, "names", strings.Join(est.Names, ", ")))
	}
	return est, nil
}

type textChunk struct {
	start, end float64
	text       string
}

func chunkTokens(tokens []meeting.Token, size float64, limit int) []textChunk {
	var (
		out []textChunk
		cur *textChunk
		b   strings.Builder
	)
	flush := func() {
		if cur != nil {
			cur.text = strings.TrimSpace(b.String())
			if cur.text != "" {
				out = append(out, *cur)
			}
			b.Reset()
			cur = nil
		}
	}
	for _, t := range tokens {
		idx := int(t.Start / size)
		start := float64(idx) * size
		if cur != nil && cur.start != start {
			flush()
			if len(out) >= limit {
				return out
			}
		}
		if cur == nil {
			cur = &textChunk{start: start, end: start + size}
		}
		b.WriteString(strings.TrimSpace(t.Text))
		b.WriteString(" ")
	}
	if len(out) < limit {
		flush()
	}
	return out
}

func cleanNames(names []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || seen[strings.ToLower(n)] {
			continue
		}
		seen[strings.ToLower(n)] = true
		out = append(out, n)
	}
	return out
}
