package store

import (
	"context"
	"math"
	"sort"

	"gorm.io/gorm"

	"github.com/kbukum/meetscribe/database"
	apperrors "github.com/kbukum/meetscribe/errors"
	"github.com/kbukum/meetscribe/logger"
	"github.com/kbukum/meetscribe/meeting"
)

// Commit is a complete transcript for one meeting.
type Commit struct {
	MeetingID string
	// JobID, when set, is completed in the same transaction.
	JobID      string
	Identities map[string]meeting.Identity
	Segments   []meeting.AlignedSegment
	// Meeting carries extra column updates (duration, language, ...).
	Meeting map[string]any
	// Status is the meeting status after the commit. Defaults to completed.
	Status meeting.Status
}

// Reassignment replaces the speakers of a meeting while keeping every
// segment's time and text.
type Reassignment struct {
	MeetingID  string
	JobID      string
	Identities map[string]meeting.Identity
	// Labels maps segment ID to its new diarization label.
	Labels  map[string]string
	Meeting map[string]any
	Status  meeting.Status
}

// Summary reports what a commit wrote.
type Summary struct {
	Speakers       int
	Segments       int
	EditsPreserved int
}

// CommitTranscript atomically replaces all speakers and segments of a
// meeting. Previously edited segments survive whole with their text; see
// placeEdited.
func (s *Store) CommitTranscript(ctx context.Context, c Commit) (*Summary, error) {
	sum := &Summary{}
	err := s.tx(ctx, func(tx *gorm.DB) error {
		var edited []meeting.Segment
		if err := tx.Where("meeting_id = ? AND is_edited = ?", c.MeetingID, true).
			Order("position").Find(&edited).Error; err != nil {
			return database.FromDatabase(err, "segment", c.MeetingID)
		}
		if err := deleteTranscript(tx, c.MeetingID); err != nil {
			return err
		}

		placed := placeEdited(edited, c.Segments)
		labels := make([]string, 0, len(placed))
		for _, p := range placed {
			labels = append(labels, p.Label)
		}
		byLabel, err := createSpeakers(tx, c.MeetingID, c.Identities, labels)
		if err != nil {
			return err
		}

		segs := make([]meeting.Segment, 0, len(placed))
		for i, p := range placed {
			segs = append(segs, meeting.Segment{
				MeetingID:    c.MeetingID,
				SpeakerID:    meeting.Ptr(byLabel[p.Label].ID),
				Start:        p.Start,
				End:          p.End,
				Text:         p.Text,
				OriginalText: p.original,
				Edited:       p.edited,
				Order:        i,
			})
		}
		sum.EditsPreserved = len(edited)
		if len(segs) > 0 {
			if err := tx.CreateInBatches(segs, 200).Error; err != nil {
				return database.FromDatabase(err, "segment", c.MeetingID)
			}
		}

		sum.Segments = len(segs)
		sum.Speakers = countNamed(byLabel)
		return finishCommit(tx, c.MeetingID, c.JobID, c.Meeting, c.Status)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("transcript committed", logger.Fields(
		logger.FieldMeetingID, c.MeetingID, "segments", sum.Segments,
		"speakers", sum.Speakers, "edits_preserved", sum.EditsPreserved))
	return sum, nil
}

// ReassignSpeakers atomically recreates the speakers of a meeting and
// repoints existing segments. Segment times and text are not modified.
func (s *Store) ReassignSpeakers(ctx context.Context, r Reassignment) (*Summary, error) {
	sum := &Summary{}
	err := s.tx(ctx, func(tx *gorm.DB) error {
		var segs []meeting.Segment
		if err := tx.Where("meeting_id = ?", r.MeetingID).Order("position").Find(&segs).Error; err != nil {
			return database.FromDatabase(err, "segment", r.MeetingID)
		}
		labels := make([]string, len(segs))
		for i, seg := range segs {
			label, ok := r.Labels[seg.ID]
			if !ok {
				label = meeting.UnknownLabel
			}
			labels[i] = label
		}

		if err := tx.Where("meeting_id = ?", r.MeetingID).Delete(&meeting.Speaker{}).Error; err != nil {
			return database.FromDatabase(err, "speaker", r.MeetingID)
		}
		byLabel, err := createSpeakers(tx, r.MeetingID, r.Identities, labels)
		if err != nil {
			return err
		}
		for i, seg := range segs {
			if err := tx.Model(&meeting.Segment{}).Where("id = ?", seg.ID).
				Update("speaker_id", byLabel[labels[i]].ID).Error; err != nil {
				return database.FromDatabase(err, "segment", seg.ID)
			}
		}
		sum.Segments = len(segs)
		sum.Speakers = countNamed(byLabel)
		return finishCommit(tx, r.MeetingID, r.JobID, r.Meeting, r.Status)
	})
	if err != nil {
		return nil, err
	}
	return sum, nil
}

// ListSegments returns a meeting's segments in order.
func (s *Store) ListSegments(ctx context.Context, meetingID string) ([]meeting.Segment, error) {
	var out []meeting.Segment
	if err := s.db.WithContext(ctx).Where("meeting_id = ?", meetingID).Order("position").Find(&out).Error; err != nil {
		return nil, database.FromDatabase(err, "segment", meetingID)
	}
	return out, nil
}

// ListSpeakers returns a meeting's speakers ordered by label.
func (s *Store) ListSpeakers(ctx context.Context, meetingID string) ([]meeting.Speaker, error) {
	var out []meeting.Speaker
	if err := s.db.WithContext(ctx).Where("meeting_id = ?", meetingID).Order("label").Find(&out).Error; err != nil {
		return nil, database.FromDatabase(err, "speaker", meetingID)
	}
	return out, nil
}

// GetSpeaker loads one speaker.
func (s *Store) GetSpeaker(ctx context.Context, id string) (*meeting.Speaker, error) {
	var sp meeting.Speaker
	if err := s.db.WithContext(ctx).First(&sp, "id = ?", id).Error; err != nil {
		return nil, database.FromDatabase(err, "speaker", id)
	}
	return &sp, nil
}

// UpdateSegmentText replaces a segment's text and marks it edited.
func (s *Store) UpdateSegmentText(ctx context.Context, id, text string) (*meeting.Segment, error) {
	var seg meeting.Segment
	err := s.tx(ctx, func(tx *gorm.DB) error {
		res := tx.Model(&meeting.Segment{}).Where("id = ?", id).
			Updates(map[string]any{"text": text, "is_edited": true})
		if res.Error != nil {
			return database.FromDatabase(res.Error, "segment", id)
		}
		if res.RowsAffected == 0 {
			return apperrors.NotFound("segment", id)
		}
		return tx.First(&seg, "id = ?", id).Error
	})
	if err != nil {
		return nil, err
	}
	return &seg, nil
}

// RenameSpeaker sets a speaker's display name and provenance.
func (s *Store) RenameSpeaker(ctx context.Context, id, name string, by meeting.IdentifiedBy, confidence float64) (*meeting.Speaker, error) {
	var sp meeting.Speaker
	err := s.tx(ctx, func(tx *gorm.DB) error {
		res := tx.Model(&meeting.Speaker{}).Where("id = ?", id).Updates(map[string]any{
			"display_name":  name,
			"identified_by": by,
			"confidence":    confidence,
		})
		if res.Error != nil {
			return database.FromDatabase(res.Error, "speaker", id)
		}
		if res.RowsAffected == 0 {
			return apperrors.NotFound("speaker", id)
		}
		return tx.First(&sp, "id = ?", id).Error
	})
	if err != nil {
		return nil, err
	}
	return &sp, nil
}

// LinkProfile points a speaker at a voice profile.
func (s *Store) LinkProfile(ctx context.Context, speakerID, profileID string) error {
	res := s.db.WithContext(ctx).Model(&meeting.Speaker{}).Where("id = ?", speakerID).
		Update("profile_id", profileID)
	if res.Error != nil {
		return database.FromDatabase(res.Error, "speaker", speakerID)
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound("speaker", speakerID)
	}
	return nil
}

// MergeSpeakers moves every segment of source to target and deletes source.
// It returns the number of segments moved.
func (s *Store) MergeSpeakers(ctx context.Context, meetingID, sourceID, targetID string) (int, error) {
	if sourceID == targetID {
		return 0, apperrors.InvalidInput("target_speaker_id", "cannot merge a speaker into itself")
	}
	var moved int
	err := s.tx(ctx, func(tx *gorm.DB) error {
		n, err := mergeSpeakers(tx, meetingID, sourceID, targetID)
		if err != nil {
			return err
		}
		moved = n
		return recomputeStats(tx, meetingID)
	})
	if err != nil {
		return 0, err
	}
	return moved, nil
}

func mergeSpeakers(tx *gorm.DB, meetingID, sourceID, targetID string) (int, error) {
	var count int64
	if err := tx.Model(&meeting.Speaker{}).
		Where("meeting_id = ? AND id IN ?", meetingID, []string{sourceID, targetID}).
		Count(&count).Error; err != nil {
		return 0, database.FromDatabase(err, "speaker", sourceID)
	}
	if count != 2 {
		return 0, apperrors.NotFound("speaker", sourceID+","+targetID)
	}
	res := tx.Model(&meeting.Segment{}).
		Where("meeting_id = ? AND speaker_id = ?", meetingID, sourceID).
		Update("speaker_id", targetID)
	if res.Error != nil {
		return 0, database.FromDatabase(res.Error, "segment", meetingID)
	}
	if err := tx.Delete(&meeting.Speaker{}, "id = ?", sourceID).Error; err != nil {
		return 0, database.FromDatabase(err, "speaker", sourceID)
	}
	return int(res.RowsAffected), nil
}

func deleteTranscript(tx *gorm.DB, meetingID string) error {
	if err := tx.Where("meeting_id = ?", meetingID).Delete(&meeting.Segment{}).Error; err != nil {
		return database.FromDatabase(err, "segment", meetingID)
	}
	if err := tx.Where("meeting_id = ?", meetingID).Delete(&meeting.Speaker{}).Error; err != nil {
		return database.FromDatabase(err, "speaker", meetingID)
	}
	return nil
}

// createSpeakers creates one speaker per distinct label in use. Identified
// labels are created in sorted order and take palette colors by position;
// UNKNOWN always gets its fixed name and color.
func createSpeakers(tx *gorm.DB, meetingID string, ids map[string]meeting.Identity, labels []string) (map[string]*meeting.Speaker, error) {
	inUse := make(map[string]bool, len(ids)+1)
	for _, l := range labels {
		inUse[l] = true
	}
	for l := range ids {
		inUse[l] = true
	}
	sorted := make([]string, 0, len(inUse))
	for l := range inUse {
		if l != meeting.UnknownLabel {
			sorted = append(sorted, l)
		}
	}
	sort.Strings(sorted)

	out := make(map[string]*meeting.Speaker, len(inUse))
	for i, label := range sorted {
		sp := &meeting.Speaker{
			MeetingID:    meetingID,
			Label:        label,
			Color:        meeting.Color(i),
			IdentifiedBy: meeting.IdentifiedNone,
		}
		if id, ok := ids[label]; ok {
			sp.DisplayName = id.DisplayName
			sp.Confidence = id.Confidence
			sp.ProfileID = id.ProfileID
			if id.IdentifiedBy != "" {
				sp.IdentifiedBy = id.IdentifiedBy
			}
		}
		if err := tx.Create(sp).Error; err != nil {
			return nil, database.FromDatabase(err, "speaker", label)
		}
		out[label] = sp
	}

	if segmentsUse(labels, meeting.UnknownLabel) {
		sp := &meeting.Speaker{
			MeetingID:    meetingID,
			Label:        meeting.UnknownLabel,
			DisplayName:  meeting.Ptr(meeting.UnknownName),
			Color:        meeting.UnknownColor,
			IdentifiedBy: meeting.IdentifiedNone,
		}
		if err := tx.Create(sp).Error; err != nil {
			return nil, database.FromDatabase(err, "speaker", meeting.UnknownLabel)
		}
		out[meeting.UnknownLabel] = sp
	}
	return out, nil
}

func segmentsUse(labels []string, label string) bool {
	for _, l := range labels {
		if l == label {
			return true
		}
	}
	return false
}

type placedSegment struct {
	meeting.AlignedSegment
	original string
	edited   bool
}

// placeEdited merges previously edited segments into a new transcript.
// An edited segment takes the boundaries and label of the single new
// segment inside it when both boundaries are within EditTolerance.
// Otherwise it keeps its own boundaries, takes the label that overlaps it
// most, and replaces the new segments inside it. New segments that only
// straddle an edited segment are trimmed to its edges.
func placeEdited(edited []meeting.Segment, fresh []meeting.AlignedSegment) []placedSegment {
	owner := make([]int, len(fresh))
	inside := make([][]int, len(edited))
	for i, a := range fresh {
		owner[i] = -1
		for k := range edited {
			if mostlyInside(a, edited[k]) {
				owner[i] = k
				inside[k] = append(inside[k], i)
				break
			}
		}
	}

	out := make([]placedSegment, 0, len(fresh)+len(edited))
	for k, e := range edited {
		if in := inside[k]; len(in) == 1 && nearBoundaries(fresh[in[0]], e) {
			a := fresh[in[0]]
			out = append(out, placedSegment{
				AlignedSegment: meeting.AlignedSegment{Start: a.Start, End: a.End, Text: e.Text, Label: a.Label},
				original:       a.Text,
				edited:         true,
			})
			continue
		}
		out = append(out, placedSegment{
			AlignedSegment: meeting.AlignedSegment{Start: e.Start, End: e.End, Text: e.Text, Label: dominantLabel(fresh, e)},
			original:       e.OriginalText,
			edited:         true,
		})
	}
	kept := len(out)
	for i, a := range fresh {
		if owner[i] >= 0 {
			continue
		}
		for _, p := range out[:kept] {
			if a.Start < p.End && p.Start < a.End {
				if a.Start < p.Start {
					a.End = p.Start
				} else {
					a.Start = p.End
				}
			}
		}
		a.End = max(a.End, a.Start)
		out = append(out, placedSegment{AlignedSegment: a, original: a.Text})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

// mostlyInside reports whether more than half of a lies within e. A
// zero-length a counts when its start does.
func mostlyInside(a meeting.AlignedSegment, e meeting.Segment) bool {
	if a.End <= a.Start {
		return a.Start >= e.Start && a.Start < e.End
	}
	return 2*overlap(a.Start, a.End, e.Start, e.End) > a.End-a.Start
}

func nearBoundaries(a meeting.AlignedSegment, e meeting.Segment) bool {
	return math.Abs(a.Start-e.Start) < EditTolerance && math.Abs(a.End-e.End) < EditTolerance
}

func dominantLabel(fresh []meeting.AlignedSegment, e meeting.Segment) string {
	label, best := meeting.UnknownLabel, 0.0
	for _, a := range fresh {
		if o := overlap(a.Start, a.End, e.Start, e.End); o > best {
			label, best = a.Label, o
		}
	}
	return label
}

func overlap(s1, e1, s2, e2 float64) float64 {
	return max(0, min(e1, e2)-max(s1, s2))
}

func countNamed(byLabel map[string]*meeting.Speaker) int {
	n := len(byLabel)
	if _, ok := byLabel[meeting.UnknownLabel]; ok {
		n--
	}
	return n
}

func finishCommit(tx *gorm.DB, meetingID, jobID string, extra map[string]any, status meeting.Status) error {
	if err := recomputeStats(tx, meetingID); err != nil {
		return err
	}
	if status == "" {
		status = meeting.StatusCompleted
	}
	updates := map[string]any{"status": status}
	for k, v := range extra {
		updates[k] = v
	}
	if err := updateMeeting(tx, meetingID, updates); err != nil {
		return err
	}
	if jobID != "" {
		return completeJob(tx, jobID, "done")
	}
	return nil
}

type speakerStats struct {
	SpeakerID string
	N         int
	Total     float64
}

// recomputeStats refreshes per-speaker totals and the meeting's counts.
func recomputeStats(tx *gorm.DB, meetingID string) error {
	var stats []speakerStats
	err := tx.Model(&meeting.Segment{}).
		Select("speaker_id, COUNT(*) AS n, COALESCE(SUM(end_time - start_time), 0) AS total").
		Where("meeting_id = ? AND speaker_id IS NOT NULL", meetingID).
		Group("speaker_id").
		Scan(&stats).Error
	if err != nil {
		return database.FromDatabase(err, "segment", meetingID)
	}
	if err := tx.Model(&meeting.Speaker{}).Where("meeting_id = ?", meetingID).
		Updates(map[string]any{"segment_count": 0, "total_speaking_time": 0}).Error; err != nil {
		return database.FromDatabase(err, "speaker", meetingID)
	}
	for _, st := range stats {
		if err := tx.Model(&meeting.Speaker{}).Where("id = ?", st.SpeakerID).
			Updates(map[string]any{"segment_count": st.N, "total_speaking_time": st.Total}).Error; err != nil {
			return database.FromDatabase(err, "speaker", st.SpeakerID)
		}
	}

	var segCount, spkCount int64
	if err := tx.Model(&meeting.Segment{}).Where("meeting_id = ?", meetingID).Count(&segCount).Error; err != nil {
		return database.FromDatabase(err, "segment", meetingID)
	}
	if err := tx.Model(&meeting.Speaker{}).
		Where("meeting_id = ? AND label <> ?", meetingID, meeting.UnknownLabel).
		Count(&spkCount).Error; err != nil {
		return database.FromDatabase(err, "speaker", meetingID)
	}
	return updateMeeting(tx, meetingID, map[string]any{
		"segment_count": segCount,
		"speaker_count": spkCount,
	})
}
