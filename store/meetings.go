package store

import (
	"context"
	"encoding/json"

	"gorm.io/gorm"

	"github.com/kbukum/meetscribe/database"
	apperrors "github.com/kbukum/meetscribe/errors"
	"github.com/kbukum/meetscribe/meeting"
)

// CreateMeeting inserts m and assigns its ID.
func (s *Store) CreateMeeting(ctx context.Context, m *meeting.Meeting) error {
	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		return database.FromDatabase(err, "meeting", m.ID)
	}
	return nil
}

// GetMeeting loads a meeting by ID.
func (s *Store) GetMeeting(ctx context.Context, id string) (*meeting.Meeting, error) {
	var m meeting.Meeting
	if err := s.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, database.FromDatabase(err, "meeting", id)
	}
	return &m, nil
}

// ListMeetings returns all meetings, newest first.
func (s *Store) ListMeetings(ctx context.Context) ([]meeting.Meeting, error) {
	var out []meeting.Meeting
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, database.FromDatabase(err, "meeting", "")
	}
	return out, nil
}

// UpdateMeeting applies column updates to one meeting.
func (s *Store) UpdateMeeting(ctx context.Context, id string, updates map[string]any) error {
	return updateMeeting(s.db.WithContext(ctx), id, updates)
}

// SetMeetingStatus changes the processing status of a meeting.
func (s *Store) SetMeetingStatus(ctx context.Context, id string, status meeting.Status) error {
	return s.UpdateMeeting(ctx, id, map[string]any{"status": status})
}

// TransitionRecording moves a meeting's live state to `to` only when it is
// currently in one of `from`. Any other current state is a conflict.
func (s *Store) TransitionRecording(ctx context.Context, id string, from []meeting.RecordingStatus, to meeting.RecordingStatus, status meeting.Status) error {
	return s.tx(ctx, func(tx *gorm.DB) error {
		var m meeting.Meeting
		if err := tx.Select("id", "recording_status").First(&m, "id = ?", id).Error; err != nil {
			return database.FromDatabase(err, "meeting", id)
		}
		allowed := false
		for _, f := range from {
			if m.RecordingStatus == f || (f == meeting.RecordingIdle && m.RecordingStatus == "") {
				allowed = true
				break
			}
		}
		if !allowed && m.RecordingStatus == to {
			return apperrors.Conflict("The meeting is already " + string(to) + ".")
		}
		if !allowed {
			return apperrors.InvalidState("recording", string(m.RecordingStatus), string(to))
		}
		updates := map[string]any{"recording_status": to}
		if status != "" {
			updates["status"] = status
		}
		return updateMeeting(tx, id, updates)
	})
}

// DeleteMeeting removes a meeting and everything attached to it.
func (s *Store) DeleteMeeting(ctx context.Context, id string) error {
	return s.tx(ctx, func(tx *gorm.DB) error {
		for _, model := range []interface{}{&meeting.Segment{}, &meeting.Speaker{}, &meeting.Job{}, &Artifact{}} {
			if err := tx.Where("meeting_id = ?", id).Delete(model).Error; err != nil {
				return database.FromDatabase(err, "meeting", id)
			}
		}
		res := tx.Delete(&meeting.Meeting{}, "id = ?", id)
		if res.Error != nil {
			return database.FromDatabase(res.Error, "meeting", id)
		}
		if res.RowsAffected == 0 {
			return apperrors.NotFound("meeting", id)
		}
		return nil
	})
}

// AppendPolishHistory adds one polish pass record to the meeting.
func (s *Store) AppendPolishHistory(ctx context.Context, id string, entry meeting.PolishEntry) error {
	return s.tx(ctx, func(tx *gorm.DB) error {
		var m meeting.Meeting
		if err := tx.Select("id", "polish_history").First(&m, "id = ?", id).Error; err != nil {
			return database.FromDatabase(err, "meeting", id)
		}
		raw, err := json.Marshal(append(m.PolishHistory, entry))
		if err != nil {
			return apperrors.Internal(err)
		}
		return updateMeeting(tx, id, map[string]any{"polish_history": string(raw)})
	})
}

func updateMeeting(db *gorm.DB, id string, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	res := db.Model(&meeting.Meeting{ID: id}).Updates(updates)
	if res.Error != nil {
		return database.FromDatabase(res.Error, "meeting", id)
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound("meeting", id)
	}
	return nil
}
