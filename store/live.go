package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/kbukum/meetscribe/database"
	"github.com/kbukum/meetscribe/meeting"
)

// AppendLiveSegment stores a provisional segment at the end of a live
// meeting's transcript. The provisional label is resolved to a speaker of
// the meeting, created on first use. The returned copy carries the stored
// IDs, order and speaker presentation.
func (s *Store) AppendLiveSegment(ctx context.Context, meetingID string, ls meeting.LiveSegment) (*meeting.LiveSegment, error) {
	out := ls
	err := s.tx(ctx, func(tx *gorm.DB) error {
		sp, err := liveSpeaker(tx, meetingID, ls.ProvisionalLabel)
		if err != nil {
			return err
		}

		var next int
		if err := tx.Model(&meeting.Segment{}).
			Select("COALESCE(MAX(position) + 1, 0)").
			Where("meeting_id = ?", meetingID).
			Row().Scan(&next); err != nil {
			return database.FromDatabase(err, "segment", meetingID)
		}

		seg := meeting.Segment{
			MeetingID:    meetingID,
			SpeakerID:    meeting.Ptr(sp.ID),
			Start:        ls.Start,
			End:          ls.End,
			Text:         ls.Text,
			OriginalText: ls.Text,
			Order:        next,
		}
		if err := tx.Create(&seg).Error; err != nil {
			return database.FromDatabase(err, "segment", meetingID)
		}

		if err := tx.Model(&meeting.Speaker{}).Where("id = ?", sp.ID).Updates(map[string]any{
			"segment_count":       gorm.Expr("segment_count + 1"),
			"total_speaking_time": gorm.Expr("total_speaking_time + ?", seg.Duration()),
		}).Error; err != nil {
			return database.FromDatabase(err, "speaker", sp.ID)
		}
		if err := updateMeeting(tx, meetingID, map[string]any{
			"segment_count": gorm.Expr("segment_count + 1"),
			"duration":      gorm.Expr("MAX(duration, ?)", ls.End),
		}); err != nil {
			return err
		}

		out.SegmentID = seg.ID
		out.SpeakerID = sp.ID
		out.SpeakerName = sp.Name()
		out.SpeakerColor = sp.Color
		out.Order = seg.Order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func liveSpeaker(tx *gorm.DB, meetingID, label string) (*meeting.Speaker, error) {
	var sp meeting.Speaker
	err := tx.Where("meeting_id = ? AND label = ?", meetingID, label).Limit(1).Find(&sp).Error
	if err != nil {
		return nil, database.FromDatabase(err, "speaker", label)
	}
	if sp.ID != "" {
		return &sp, nil
	}

	var existing int64
	if err := tx.Model(&meeting.Speaker{}).Where("meeting_id = ?", meetingID).Count(&existing).Error; err != nil {
		return nil, database.FromDatabase(err, "speaker", meetingID)
	}
	sp = meeting.Speaker{
		MeetingID:    meetingID,
		Label:        label,
		DisplayName:  meeting.Ptr(label),
		Color:        meeting.Color(int(existing)),
		IdentifiedBy: meeting.IdentifiedNone,
	}
	if err := tx.Create(&sp).Error; err != nil {
		return nil, database.FromDatabase(err, "speaker", label)
	}
	if err := updateMeeting(tx, meetingID, map[string]any{"speaker_count": existing + 1}); err != nil {
		return nil, err
	}
	return &sp, nil
}
