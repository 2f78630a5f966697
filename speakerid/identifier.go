package speakerid

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/kbukum/meetscribe/embedding"
	apperrors "github.com/kbukum/meetscribe/errors"
	"github.com/kbukum/meetscribe/llm"
	"github.com/kbukum/meetscribe/logger"
	"github.com/kbukum/meetscribe/meeting"
	"github.com/kbukum/meetscribe/provider"
	"github.com/kbukum/meetscribe/voiceprofile"
)

// Completer is the text-completion capability used for naming.
type Completer = provider.RequestResponse[llm.CompletionRequest, llm.CompletionResponse]

// ProfileSource lists stored voice profiles.
type ProfileSource interface {
	ListProfiles(ctx context.Context) ([]meeting.VoiceProfile, error)
}

// Identifier resolves diarization labels to names.
type Identifier struct {
	cfg      Config
	llm      Completer
	embedder embedding.Provider
	profiles ProfileSource
	log      *logger.Logger
}

// Option configures an Identifier.
type Option func(*Identifier)

// WithProfiles enables voice-profile matching with the given embedder and source.
func WithProfiles(e embedding.Provider, src ProfileSource) Option {
	return func(i *Identifier) {
		i.embedder = e
		i.profiles = src
	}
}

// New creates an Identifier.
func New(cfg Config, completer Completer, log *logger.Logger, opts ...Option) *Identifier {
	cfg.ApplyDefaults()
	i := &Identifier{cfg: cfg, llm: completer, log: log.WithComponent("speakerid")}
	for _, o := range opts {
		o(i)
	}
	return i
}

// Input is what identification needs from the pipeline.
type Input struct {
	Segments []meeting.AlignedSegment
	// Audio is the normalized WAV, used for profile matching.
	Audio []byte
}

// Identify returns an identity for every label in the transcript except
// UNKNOWN. Completion or embedding failures are returned as errors.
func (i *Identifier) Identify(ctx context.Context, in Input) (map[string]meeting.Identity, error) {
	labels := FirstAppearance(in.Segments)
	known := make(map[string]bool, len(labels))
	for _, l := range labels {
		known[l] = true
	}

	window := i.cfg.IntroWindow.Seconds()
	out := make(map[string]meeting.Identity, len(labels))

	if !i.cfg.RequireIntroPattern || HasIntro(in.Segments, window) {
		names, err := i.introNames(ctx, introText(in.Segments, window, true))
		if err != nil {
			return nil, err
		}
		for label, name := range names {
			if !known[label] {
				continue
			}
			out[label] = meeting.Identity{
				Label:        label,
				DisplayName:  meeting.Ptr(name),
				IdentifiedBy: meeting.IdentifiedIntroLLM,
				Confidence:   i.cfg.IntroConfidence,
			}
		}
	}

	if i.cfg.ProfilesEnabled && i.embedder != nil && i.profiles != nil && len(out) > 0 {
		if err := i.preferProfiles(ctx, in, out); err != nil {
			return nil, err
		}
	}

	offset := len(out)
	n := 0
	for _, label := range labels {
		if _, ok := out[label]; ok {
			continue
		}
		n++
		out[label] = meeting.Identity{
			Label:        label,
			DisplayName:  meeting.Ptr(fmt.Sprintf("%s %d", i.cfg.FallbackPrefix, offset+n)),
			IdentifiedBy: meeting.IdentifiedNone,
			Confidence:   0,
		}
	}

	i.log.Info("speakers identified", logger.Fields("speakers", len(labels), "named", offset))
	return out, nil
}

type nameMapping struct {
	Speakers []struct {
		Label string `json:"label"`
		Name  string `json:"name"`
	} `json:"speakers"`
}

const introSystemPrompt = `You analyze the opening of a meeting transcript.
Identify the people who introduce themselves and map each name to the speaker label in brackets.
Only use names a speaker says about themselves. Answer with JSON:
{"speakers": [{"label": "SPEAKER_00", "name": "First Last"}]}
If nobody introduces themselves, answer {"speakers": []}.`

func (i *Identifier) introNames(ctx context.Context, transcript string) (map[string]string, error) {
	if strings.TrimSpace(transcript) == "" {
		return nil, nil
	}
	return i.askNames(ctx, introSystemPrompt, "Transcript:\n"+transcript)
}

// SuggestNames asks the completion service to name speakers from a labeled
// transcript. It is used by the live polish pass.
func (i *Identifier) SuggestNames(ctx context.Context, segs []meeting.AlignedSegment) (map[string]string, error) {
	transcript := introText(segs, i.cfg.IntroWindow.Seconds(), true)
	if strings.TrimSpace(transcript) == "" {
		return nil, nil
	}
	return i.askNames(ctx, introSystemPrompt, "Transcript:\n"+transcript)
}

func (i *Identifier) askNames(ctx context.Context, system, user string) (map[string]string, error) {
	var resp nameMapping
	if err := llm.CompleteStructured(ctx, i.llm, system, user, &resp); err != nil {
		if _, ok := apperrors.AsAppError(err); ok {
			return nil, err
		}
		return nil, apperrors.MalformedOutput("llm", err)
	}

	out := make(map[string]string, len(resp.Speakers))
	used := map[string]bool{}
	for _, s := range resp.Speakers {
		label, name := strings.TrimSpace(s.Label), strings.TrimSpace(s.Name)
		if label == "" || name == "" || used[strings.ToLower(name)] {
			continue
		}
		used[strings.ToLower(name)] = true
		out[label] = name
	}
	return out, nil
}

// preferProfiles replaces extracted names with stored profile names when a
// speaker's voice matches a profile and no other speaker already has that name.
func (i *Identifier) preferProfiles(ctx context.Context, in Input, ids map[string]meeting.Identity) error {
	profiles, err := i.profiles.ListProfiles(ctx)
	if err != nil {
		return err
	}
	if len(profiles) == 0 {
		return nil
	}

	labels := make([]string, 0, len(ids))
	for l := range ids {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	for _, label := range labels {
		vec, err := i.SpeakerEmbedding(ctx, in.Audio, in.Segments, label)
		if err != nil {
			return err
		}
		if vec == nil {
			continue
		}
		p, sim, ok := voiceprofile.Match(vec, profiles, i.cfg.ProfileThreshold)
		if !ok {
			continue
		}
		if nameTaken(ids, label, p.Name) {
			i.log.Debug("profile name already used", logger.Fields("label", label, "profile", p.Name))
			continue
		}
		ids[label] = meeting.Identity{
			Label:        label,
			DisplayName:  meeting.Ptr(p.Name),
			IdentifiedBy: meeting.IdentifiedVoiceProfile,
			Confidence:   sim,
			ProfileID:    meeting.Ptr(p.ID),
		}
	}
	return nil
}

// SpeakerEmbedding returns the mean embedding of a label's longest segments,
// or nil when none is long enough.
func (i *Identifier) SpeakerEmbedding(ctx context.Context, audio []byte, segs []meeting.AlignedSegment, label string) ([]float32, error) {
	if i.embedder == nil {
		return nil, nil
	}
	var spans []voiceprofile.Span
	for _, s := range segs {
		if s.Label == label {
			spans = append(spans, voiceprofile.Span{Start: s.Start, End: s.End})
		}
	}
	return voiceprofile.Embed(ctx, i.embedder, audio, spans, i.cfg.ProfileSamples)
}

func nameTaken(ids map[string]meeting.Identity, self, name string) bool {
	for label, id := range ids {
		if label != self && id.DisplayName != nil && strings.EqualFold(*id.DisplayName, name) {
			return true
		}
	}
	return false
}
