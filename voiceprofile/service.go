package voiceprofile

import (
	"context"
	"strings"

	"github.com/kbukum/meetscribe/embedding"
	apperrors "github.com/kbukum/meetscribe/errors"
	"github.com/kbukum/meetscribe/logger"
	"github.com/kbukum/meetscribe/meeting"
	"github.com/kbukum/meetscribe/storage"
)

// Store is the persistence the service needs.
type Store interface {
	GetMeeting(ctx context.Context, id string) (*meeting.Meeting, error)
	GetSpeaker(ctx context.Context, id string) (*meeting.Speaker, error)
	ListSegments(ctx context.Context, meetingID string) ([]meeting.Segment, error)
	RenameSpeaker(ctx context.Context, id, name string, by meeting.IdentifiedBy, confidence float64) (*meeting.Speaker, error)
	LinkProfile(ctx context.Context, speakerID, profileID string) error

	ListProfiles(ctx context.Context) ([]meeting.VoiceProfile, error)
	GetProfile(ctx context.Context, id string) (*meeting.VoiceProfile, error)
	CreateProfile(ctx context.Context, p *meeting.VoiceProfile) error
	UpdateProfileEmbedding(ctx context.Context, id string, vec []float32, samples int) error
	DeleteProfile(ctx context.Context, id string) error
}

// Service saves speakers as voice profiles.
type Service struct {
	store    Store
	blobs    storage.Storage
	embedder embedding.Provider
	samples  int
	log      *logger.Logger
}

// NewService creates a Service. samples bounds how many segments are
// embedded per save.
func NewService(st Store, blobs storage.Storage, e embedding.Provider, samples int, log *logger.Logger) *Service {
	if samples <= 0 {
		samples = 3
	}
	return &Service{store: st, blobs: blobs, embedder: e, samples: samples, log: log.WithComponent("voiceprofile")}
}

// Save embeds a speaker's voice and stores it under name. An existing
// profile, either linked to the speaker or carrying the same name, is
// refined by a running average; otherwise a new profile is created. The
// speaker is renamed and linked to the profile.
func (s *Service) Save(ctx context.Context, speakerID, name string) (*meeting.VoiceProfile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.InvalidInput("name", "must not be empty")
	}
	sp, err := s.store.GetSpeaker(ctx, speakerID)
	if err != nil {
		return nil, err
	}
	m, err := s.store.GetMeeting(ctx, sp.MeetingID)
	if err != nil {
		return nil, err
	}
	if m.NormalizedRef == "" {
		return nil, apperrors.InvalidInput("meeting", "has no normalized audio")
	}

	segs, err := s.store.ListSegments(ctx, m.ID)
	if err != nil {
		return nil, err
	}
	var spans []Span
	for _, seg := range segs {
		if seg.SpeakerID != nil && *seg.SpeakerID == sp.ID {
			spans = append(spans, Span{Start: seg.Start, End: seg.End})
		}
	}

	audio, err := storage.GetBytes(ctx, s.blobs, m.NormalizedRef)
	if err != nil {
		return nil, storage.FromStorage(err, "download", m.NormalizedRef)
	}
	vec, err := Embed(ctx, s.embedder, audio, spans, s.samples)
	if err != nil {
		return nil, apperrors.FromExternal("embedding", err)
	}
	if vec == nil {
		return nil, apperrors.InvalidInput("speaker", "no segment long enough to embed")
	}

	p, err := s.existing(ctx, sp, name)
	if err != nil {
		return nil, err
	}
	if p == nil {
		p = &meeting.VoiceProfile{Name: name, SampleCount: 1}
		p.SetVector(vec)
		if err := s.store.CreateProfile(ctx, p); err != nil {
			return nil, err
		}
		s.log.Info("voice profile created", logger.Fields("profile_id", p.ID, "name", name))
	} else {
		mean := embedding.RunningMean(p.Vector(), vec, p.SampleCount)
		if err := s.store.UpdateProfileEmbedding(ctx, p.ID, mean, p.SampleCount+1); err != nil {
			return nil, err
		}
		p.SetVector(mean)
		p.SampleCount++
		s.log.Info("voice profile updated", logger.Fields("profile_id", p.ID, "samples", p.SampleCount))
	}

	if err := s.store.LinkProfile(ctx, sp.ID, p.ID); err != nil {
		return nil, err
	}
	if _, err := s.store.RenameSpeaker(ctx, sp.ID, name, meeting.IdentifiedManual, 1); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) existing(ctx context.Context, sp *meeting.Speaker, name string) (*meeting.VoiceProfile, error) {
	if sp.ProfileID != nil {
		p, err := s.store.GetProfile(ctx, *sp.ProfileID)
		if err == nil {
			return p, nil
		}
		if !apperrors.IsNotFound(err) {
			return nil, err
		}
	}
	all, err := s.store.ListProfiles(ctx)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if strings.EqualFold(all[i].Name, name) {
			return &all[i], nil
		}
	}
	return nil, nil
}

// List returns all profiles.
func (s *Service) List(ctx context.Context) ([]meeting.VoiceProfile, error) {
	return s.store.ListProfiles(ctx)
}

// Delete removes a profile. Speakers linked to it keep their names.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteProfile(ctx, id); err != nil {
		return err
	}
	s.log.Info("voice profile deleted", logger.Fields("profile_id", id))
	return nil
}
