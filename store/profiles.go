package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/kbukum/meetscribe/database"
	apperrors "github.com/kbukum/meetscribe/errors"
	"github.com/kbukum/meetscribe/meeting"
)

// CreateProfile inserts a voice profile. p keeps its plaintext embedding.
func (s *Store) CreateProfile(ctx context.Context, p *meeting.VoiceProfile) error {
	row := *p
	sealed, err := s.seal(p.Embedding)
	if err != nil {
		return err
	}
	row.Embedding = sealed
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return database.FromDatabase(err, "voice_profile", p.ID)
	}
	p.ID, p.CreatedAt, p.UpdatedAt = row.ID, row.CreatedAt, row.UpdatedAt
	return nil
}

// GetProfile loads a voice profile.
func (s *Store) GetProfile(ctx context.Context, id string) (*meeting.VoiceProfile, error) {
	var p meeting.VoiceProfile
	if err := s.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, database.FromDatabase(err, "voice_profile", id)
	}
	if err := s.open(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListProfiles returns all voice profiles ordered by name.
func (s *Store) ListProfiles(ctx context.Context) ([]meeting.VoiceProfile, error) {
	var out []meeting.VoiceProfile
	if err := s.db.WithContext(ctx).Order("name").Find(&out).Error; err != nil {
		return nil, database.FromDatabase(err, "voice_profile", "")
	}
	for i := range out {
		if err := s.open(&out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// UpdateProfileEmbedding stores a new embedding and sample count.
func (s *Store) UpdateProfileEmbedding(ctx context.Context, id string, vec []float32, samples int) error {
	sealed, err := s.seal(meeting.EncodeVector(vec))
	if err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Model(&meeting.VoiceProfile{ID: id}).Updates(map[string]any{
		"embedding":    sealed,
		"sample_count": samples,
	})
	if res.Error != nil {
		return database.FromDatabase(res.Error, "voice_profile", id)
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound("voice_profile", id)
	}
	return nil
}

// DeleteProfile removes a voice profile and unlinks speakers from it.
func (s *Store) DeleteProfile(ctx context.Context, id string) error {
	return s.db.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Model(&meeting.Speaker{}).Where("profile_id = ?", id).
			Update("profile_id", nil).Error; err != nil {
			return database.FromDatabase(err, "speaker", id)
		}
		res := tx.Delete(&meeting.VoiceProfile{}, "id = ?", id)
		if res.Error != nil {
			return database.FromDatabase(res.Error, "voice_profile", id)
		}
		if res.RowsAffected == 0 {
			return apperrors.NotFound("voice_profile", id)
		}
		return nil
	})
}

func (s *Store) seal(embedding []byte) ([]byte, error) {
	if s.sealer == nil {
		return embedding, nil
	}
	sealed, err := s.sealer.Seal(embedding)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return sealed, nil
}

// open decrypts p's embedding in place. Profiles written before
// encryption was enabled are read as they are.
func (s *Store) open(p *meeting.VoiceProfile) error {
	if s.sealer == nil {
		return nil
	}
	plain, err := s.sealer.Open(p.Embedding)
	if err != nil {
		return apperrors.Internal(err).WithDetail("profile_id", p.ID)
	}
	p.Embedding = plain
	return nil
}
