package store

import (
	"context"
	"time"

	"gorm.io/gorm/clause"

	"github.com/kbukum/meetscribe/database"
	apperrors "github.com/kbukum/meetscribe/errors"
)

// Artifact kinds retained between runs.
const (
	ArtifactTokens      = "tokens"
	ArtifactDiarization = "diarization"
)

// Artifact is an intermediate pipeline result kept for retries and
// reprocessing.
type Artifact struct {
	MeetingID string    `gorm:"primaryKey;size:36"`
	Kind      string    `gorm:"primaryKey;size:32"`
	Data      []byte    `gorm:"not null"`
	UpdatedAt time.Time
}

// TableName names the artifact table.
func (Artifact) TableName() string { return "meeting_artifacts" }

// PutArtifact stores or replaces one artifact.
func (s *Store) PutArtifact(ctx context.Context, meetingID, kind string, data []byte) error {
	a := Artifact{MeetingID: meetingID, Kind: kind, Data: data, UpdatedAt: time.Now().UTC()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "meeting_id"}, {Name: "kind"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
	}).Create(&a).Error
	if err != nil {
		return database.FromDatabase(err, "artifact", meetingID+"/"+kind)
	}
	return nil
}

// GetArtifact loads one artifact, or NOT_FOUND.
func (s *Store) GetArtifact(ctx context.Context, meetingID, kind string) ([]byte, error) {
	var a Artifact
	err := s.db.WithContext(ctx).First(&a, "meeting_id = ? AND kind = ?", meetingID, kind).Error
	if err != nil {
		return nil, database.FromDatabase(err, "artifact", meetingID+"/"+kind)
	}
	return a.Data, nil
}

// DeleteArtifacts removes the named artifacts, or all of them when kinds is empty.
func (s *Store) DeleteArtifacts(ctx context.Context, meetingID string, kinds ...string) error {
	q := s.db.WithContext(ctx).Where("meeting_id = ?", meetingID)
	if len(kinds) > 0 {
		q = q.Where("kind IN ?", kinds)
	}
	if err := q.Delete(&Artifact{}).Error; err != nil {
		return apperrors.DatabaseError(err)
	}
	return nil
}
