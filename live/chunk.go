package live

import (
	"context"
	"strings"

	"github.com/kbukum/meetscribe/audio"
	"github.com/kbukum/meetscribe/embedding"
	apperrors "github.com/kbukum/meetscribe/errors"
	"github.com/kbukum/meetscribe/logger"
	"github.com/kbukum/meetscribe/meeting"
	"github.com/kbukum/meetscribe/transcription"
)

// chunk outcomes, also used as metric labels
const (
	outcomeTranscribed = "transcribed"
	outcomeSilent      = "silent"
	outcomeDropped     = "dropped"
	outcomeFailed      = "failed"
	outcomeCancelled   = "cancelled"
)

// chunkResult is what the concurrent part of chunk handling hands to the
// ordered part. Times are relative to the chunk.
type chunkResult struct {
	seq      int64
	outcome  string
	duration float64
	start    float64
	end      float64
	text     string
	vec      []float32
}

// handle runs one chunk through decode, transcription and embedding, then
// delivers the result in order.
func (c *Coordinator) handle(s *Session, seq int64, chunk []byte) {
	defer s.inflight.Done()

	select {
	case s.sem <- struct{}{}:
	case <-s.ctx.Done():
		c.deliver(s, chunkResult{seq: seq, outcome: outcomeCancelled})
		return
	}
	res := c.analyze(s, seq, chunk)
	<-s.sem
	c.deliver(s, res)
}

func (c *Coordinator) analyze(s *Session, seq int64, chunk []byte) chunkResult {
	res := chunkResult{seq: seq}
	log := c.log.WithFields(logger.Fields(logger.FieldSessionID, s.ID, logger.FieldSeq, seq))

	ctx, cancel := context.WithTimeout(s.ctx, c.cfg.ChunkTimeout)
	defer cancel()

	pcm, err := c.decoder.DecodeChunk(ctx, chunk)
	if err != nil {
		log.Warn("chunk decode failed", logger.ErrorFields("decode", err))
		res.outcome = outcomeFailed
		return res
	}
	res.duration = audio.Duration(pcm)
	if audio.RMS(pcm) < c.cfg.SilenceRMS {
		res.outcome = outcomeSilent
		return res
	}

	s.emitMu.Lock()
	prompt := s.prompt
	s.emitMu.Unlock()

	wav := audio.EncodeWAV(pcm)
	resp, err := c.transcriber.Transcribe(ctx, transcription.Request{
		Audio:    wav,
		FileName: "chunk.wav",
		Tier:     transcription.TierFast,
		Language: s.language,
		Prompt:   prompt,
	})
	if err != nil {
		log.Warn("chunk transcription failed", logger.ErrorFields("transcribe", apperrors.FromExternal("transcription", err)))
		res.outcome = outcomeFailed
		return res
	}

	res.start, res.end, res.text = chunkText(resp, res.duration)
	if res.text == "" || hallucinated(res.text) {
		res.outcome = outcomeDropped
		res.text = ""
		return res
	}
	res.outcome = outcomeTranscribed

	if c.embedder != nil && res.end-res.start >= c.cfg.MinSegment.Seconds() {
		vec, err := c.embedder.Embed(ctx, embedding.Request{Audio: wav, Start: res.start, End: res.end})
		if err != nil {
			log.Warn("chunk embedding failed", logger.ErrorFields("embed", err))
		} else {
			res.vec = vec
		}
	}
	return res
}

// chunkText joins the tokens of a chunk into one utterance bounded by the
// first and last token.
func chunkText(resp *transcription.Response, duration float64) (start, end float64, text string) {
	if len(resp.Tokens) == 0 {
		return 0, duration, cleanText(resp.Text)
	}
	parts := make([]string, 0, len(resp.Tokens))
	for _, t := range resp.Tokens {
		parts = append(parts, t.Text)
	}
	start, end = resp.Tokens[0].Start, resp.Tokens[len(resp.Tokens)-1].End
	if end > duration && duration > 0 {
		end = duration
	}
	if start > end {
		start = end
	}
	return start, end, cleanText(strings.Join(parts, " "))
}

// deliver hands a result to the sequencer and emits everything that is now
// in order.
func (c *Coordinator) deliver(s *Session, res chunkResult) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	for _, r := range s.seq.Done(res.seq, res) {
		c.emit(s, r)
	}
}

// emit assigns a provisional speaker, stores the segment and publishes it.
// Callers hold emitMu.
func (c *Coordinator) emit(s *Session, r chunkResult) {
	base := s.offset
	s.offset += r.duration
	c.metrics.RecordChunk(s.ctx, r.outcome)
	if r.text == "" {
		return
	}

	var label string
	if r.vec != nil {
		label, _ = s.clusters.Assign(r.vec)
	} else {
		label = s.clusters.Reuse()
	}
	label = s.resolve(label)

	ctx := context.WithoutCancel(s.ctx)
	stored, err := c.store.AppendLiveSegment(ctx, s.MeetingID, meeting.LiveSegment{
		Seq:              r.seq,
		Start:            base + r.start,
		End:              base + r.end,
		Text:             r.text,
		ProvisionalLabel: label,
	})
	if err != nil {
		c.log.Error("store live segment", logger.MergeWithError(
			logger.Fields(logger.FieldSessionID, s.ID, logger.FieldSeq, r.seq), err))
		return
	}
	s.prompt = tailWords(s.prompt+" "+r.text, c.cfg.PromptWords)
	s.emitted++

	ev := meeting.NewEvent(meeting.EventPartialSegment, s.MeetingID)
	ev.Segment = stored
	c.tracker.Publish(ctx, ev)
}

// publish sends a session event after every partial segment released so
// far.
func (c *Coordinator) publish(ctx context.Context, s *Session, ev meeting.Event) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	c.tracker.Publish(ctx, ev)
}
