package live

import (
	"context"
	"math"
	"time"

	"github.com/kbukum/meetscribe/logger"
	"github.com/kbukum/meetscribe/meeting"
)

// polishLoop runs polish passes on the configured schedule until the
// session stops recording.
func (c *Coordinator) polishLoop(s *Session) {
	defer close(s.polishDone)
	for n := 1; ; n++ {
		t := time.NewTimer(c.cfg.polishDelay(n))
		select {
		case <-t.C:
		case <-s.polishStop:
			t.Stop()
			return
		case <-s.ctx.Done():
			t.Stop()
			return
		}
		c.runPolish(s.ctx, s.MeetingID, s, n)
	}
}

// runPolish executes one pass as a polish job. Failures are logged; polish
// never fails a recording.
func (c *Coordinator) runPolish(ctx context.Context, meetingID string, s *Session, pass int) {
	if s != nil {
		s.emitMu.Lock()
		s.polishes = pass
		s.emitMu.Unlock()
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.PolishTimeout)
	defer cancel()

	j := &meeting.Job{MeetingID: meetingID, Type: meeting.JobPolishPass}
	if err := c.store.CreateJob(ctx, j); err != nil {
		c.log.Warn("create polish job", logger.MergeWithError(logger.Fields(logger.FieldMeetingID, meetingID), err))
		return
	}
	if err := c.tracker.Start(ctx, j); err != nil {
		c.log.Warn("start polish job", logger.MergeWithError(logger.Fields(logger.FieldJobID, j.ID), err))
		return
	}
	if _, err := c.Polish(ctx, meetingID, s, pass); err != nil {
		if ferr := c.tracker.Fail(context.WithoutCancel(ctx), j, "polish", err, ""); ferr != nil {
			c.log.Warn("record polish failure", logger.MergeWithError(logger.Fields(logger.FieldJobID, j.ID), ferr))
		}
		return
	}
	if err := c.store.CompleteJob(ctx, j.ID, "done"); err != nil {
		c.log.Warn("complete polish job", logger.MergeWithError(logger.Fields(logger.FieldJobID, j.ID), err))
		return
	}
	c.tracker.Completed(ctx, j.ID)
}

// Polish merges speakers with too few segments into their nearest neighbour
// in time and asks the completion service to name the remaining ones. Only
// speakers without a name from a person or a profile are renamed, and
// segment text is never changed. s is the recording session, if any.
func (c *Coordinator) Polish(ctx context.Context, meetingID string, s *Session, pass int) (*meeting.PolishEntry, error) {
	started := time.Now()
	ev := meeting.NewEvent(meeting.EventPolishStarted, meetingID)
	ev.Pass = pass
	c.announce(ctx, s, ev)

	changes, merged, err := c.mergeSmall(ctx, meetingID, s)
	if err != nil {
		return nil, err
	}
	renamed, err := c.nameSpeakers(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	changes = append(changes, renamed...)
	if len(changes) > 0 {
		ev := meeting.NewEvent(meeting.EventSpeakerReassignment, meetingID)
		ev.Pass = pass
		ev.Speakers = changes
		c.announce(ctx, s, ev)
	}

	speakers, err := c.store.ListSpeakers(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	entry := meeting.PolishEntry{
		Pass:            pass,
		DurationSeconds: time.Since(started).Seconds(),
		SpeakerCount:    len(speakers),
		NamesFound:      len(renamed),
		MergedSegments:  merged,
		Timestamp:       time.Now().UTC(),
	}
	if err := c.store.AppendPolishHistory(ctx, meetingID, entry); err != nil {
		return nil, err
	}

	done := meeting.NewEvent(meeting.EventPolishComplete, meetingID)
	done.Pass = pass
	done.Polish = &entry
	c.announce(ctx, s, done)
	c.log.Info("polish pass finished", logger.Fields(
		logger.FieldMeetingID, meetingID, "pass", pass, "merged_segments", merged, "names_found", len(renamed)))
	return &entry, nil
}

// announce publishes through the session's ordered path when there is one.
func (c *Coordinator) announce(ctx context.Context, s *Session, ev meeting.Event) {
	if s != nil {
		c.publish(ctx, s, ev)
		return
	}
	c.tracker.Publish(ctx, ev)
}

// mergeSmall folds speakers with fewer than PolishMinSegments segments into
// the larger speaker closest in time. Manually named speakers are kept.
func (c *Coordinator) mergeSmall(ctx context.Context, meetingID string, s *Session) ([]meeting.SpeakerChange, int, error) {
	if s != nil {
		// no new segment may land on a speaker while it is merged away
		s.emitMu.Lock()
		defer s.emitMu.Unlock()
	}
	speakers, err := c.store.ListSpeakers(ctx, meetingID)
	if err != nil {
		return nil, 0, err
	}
	segs, err := c.store.ListSegments(ctx, meetingID)
	if err != nil {
		return nil, 0, err
	}

	var small, large []*meeting.Speaker
	for i := range speakers {
		sp := &speakers[i]
		switch {
		case sp.Label == meeting.UnknownLabel:
		case sp.SegmentCount >= c.cfg.PolishMinSegments:
			large = append(large, sp)
		case sp.IdentifiedBy != meeting.IdentifiedManual:
			small = append(small, sp)
		}
	}
	if len(large) == 0 || len(small) == 0 {
		return nil, 0, nil
	}

	var (
		changes []meeting.SpeakerChange
		moved   int
	)
	for _, sp := range small {
		target := nearestSpeaker(sp.ID, large, segs)
		if target == nil {
			continue
		}
		n, err := c.store.MergeSpeakers(ctx, meetingID, sp.ID, target.ID)
		if err != nil {
			return nil, 0, err
		}
		moved += n
		if s != nil {
			s.alias(sp.Label, target.Label)
		}
		changes = append(changes, meeting.SpeakerChange{
			SpeakerID:    sp.ID,
			Label:        sp.Label,
			DisplayName:  target.Name(),
			Color:        target.Color,
			IdentifiedBy: target.IdentifiedBy,
			Confidence:   target.Confidence,
			MergedInto:   target.ID,
		})
	}
	return changes, moved, nil
}

// nearestSpeaker returns the speaker in candidates whose segments are
// closest in time to those of speakerID.
func nearestSpeaker(speakerID string, candidates []*meeting.Speaker, segs []meeting.Segment) *meeting.Speaker {
	ids := make(map[string]*meeting.Speaker, len(candidates))
	for _, sp := range candidates {
		ids[sp.ID] = sp
	}
	var (
		best *meeting.Speaker
		gap  = math.Inf(1)
	)
	for _, a := range segs {
		if a.SpeakerID == nil || *a.SpeakerID != speakerID {
			continue
		}
		for _, b := range segs {
			if b.SpeakerID == nil {
				continue
			}
			sp, ok := ids[*b.SpeakerID]
			if !ok {
				continue
			}
			if d := distance(a, b); d < gap {
				best, gap = sp, d
			}
		}
	}
	return best
}

func distance(a, b meeting.Segment) float64 {
	switch {
	case b.End < a.Start:
		return a.Start - b.End
	case a.End < b.Start:
		return b.Start - a.End
	}
	return 0
}

// nameSpeakers renames speakers that only have a provisional or ordinal
// name. A failing completion service is logged and leaves names unchanged.
func (c *Coordinator) nameSpeakers(ctx context.Context, meetingID string) ([]meeting.SpeakerChange, error) {
	if c.identifier == nil {
		return nil, nil
	}
	speakers, err := c.store.ListSpeakers(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	segs, err := c.store.ListSegments(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*meeting.Speaker, len(speakers))
	taken := map[string]bool{}
	for i := range speakers {
		sp := &speakers[i]
		byID[sp.ID] = sp
		if sp.IdentifiedBy != meeting.IdentifiedNone {
			taken[sp.Name()] = true
		}
	}

	labeled := make([]meeting.AlignedSegment, 0, len(segs))
	for _, seg := range segs {
		label := meeting.UnknownLabel
		if seg.SpeakerID != nil {
			if sp, ok := byID[*seg.SpeakerID]; ok {
				label = sp.Label
			}
		}
		labeled = append(labeled, meeting.AlignedSegment{Start: seg.Start, End: seg.End, Text: seg.Text, Label: label})
	}

	names, err := c.identifier.SuggestNames(ctx, labeled)
	if err != nil {
		c.log.Warn("polish naming skipped", logger.MergeWithError(logger.Fields(logger.FieldMeetingID, meetingID), err))
		return nil, nil
	}

	var changes []meeting.SpeakerChange
	for i := range speakers {
		sp := &speakers[i]
		name, ok := names[sp.Label]
		if !ok || sp.Label == meeting.UnknownLabel || taken[name] || sp.Name() == name {
			continue
		}
		if sp.IdentifiedBy != meeting.IdentifiedNone && sp.IdentifiedBy != meeting.IdentifiedPolishLLM {
			continue
		}
		updated, err := c.store.RenameSpeaker(ctx, sp.ID, name, meeting.IdentifiedPolishLLM, c.cfg.PolishConfidence)
		if err != nil {
			return nil, err
		}
		taken[name] = true
		changes = append(changes, meeting.SpeakerChange{
			SpeakerID:    updated.ID,
			Label:        updated.Label,
			DisplayName:  updated.Name(),
			Color:        updated.Color,
			IdentifiedBy: updated.IdentifiedBy,
			Confidence:   updated.Confidence,
		})
	}
	return changes, nil
}
