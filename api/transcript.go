package api

import (
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "github.com/kbukum/meetscribe/errors"
	"github.com/kbukum/meetscribe/logger"
	"github.com/kbukum/meetscribe/meeting"
	"github.com/kbukum/meetscribe/server"
)

type editSegmentRequest struct {
	Text string `json:"text" validate:"required,max=10000"`
}

type renameSpeakerRequest struct {
	DisplayName string `json:"display_name" validate:"required,max=100"`
}

type mergeSpeakersRequest struct {
	SourceID string `json:"source_id" validate:"required"`
	TargetID string `json:"target_id" validate:"required"`
}

type saveProfileRequest struct {
	Name string `json:"name" validate:"omitempty,max=100"`
}

type mergeResult struct {
	MovedSegments int               `json:"moved_segments"`
	Speakers      []meeting.Speaker `json:"speakers"`
}

func (h *Handler) listSegments(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	if _, err := h.store.GetMeeting(ctx, id); err != nil {
		server.RespondWithError(c, err)
		return
	}
	segs, err := h.store.ListSegments(ctx, id)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOKWithMeta(c, segs, &server.Meta{Total: len(segs)})
}

func (h *Handler) listSpeakers(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	if _, err := h.store.GetMeeting(ctx, id); err != nil {
		server.RespondWithError(c, err)
		return
	}
	speakers, err := h.store.ListSpeakers(ctx, id)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOKWithMeta(c, speakers, &server.Meta{Total: len(speakers)})
}

// editSegment replaces a segment's text. Edited segments survive
// reprocessing.
func (h *Handler) editSegment(c *gin.Context) {
	var req editSegmentRequest
	if !bindJSON(c, &req) {
		return
	}
	seg, err := h.store.UpdateSegmentText(c.Request.Context(), c.Param("id"), req.Text)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOK(c, seg)
}

// renameSpeaker sets a display name chosen by a person. Manual names are
// never overwritten by automatic identification.
func (h *Handler) renameSpeaker(c *gin.Context) {
	var req renameSpeakerRequest
	if !bindJSON(c, &req) {
		return
	}
	name := strings.TrimSpace(req.DisplayName)
	if name == "" {
		server.RespondWithError(c, apperrors.InvalidInput("display_name", "must not be empty"))
		return
	}
	sp, err := h.store.RenameSpeaker(c.Request.Context(), c.Param("id"), name, meeting.IdentifiedManual, 1)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOK(c, sp)
}

// mergeSpeakers moves every segment of one speaker to another. It is
// refused while the meeting is recording, when provisional labels still
// map to the source speaker.
func (h *Handler) mergeSpeakers(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	var req mergeSpeakersRequest
	if !bindJSON(c, &req) {
		return
	}
	if h.live != nil {
		if _, ok := h.live.ForMeeting(id); ok {
			server.RespondWithError(c, apperrors.InvalidState("meeting", string(meeting.RecordingActive), "merged"))
			return
		}
	}
	moved, err := h.store.MergeSpeakers(ctx, id, req.SourceID, req.TargetID)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	speakers, err := h.store.ListSpeakers(ctx, id)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	h.log.Info("speakers merged", logger.Fields(logger.FieldMeetingID, id, "source", req.SourceID, "target", req.TargetID, "moved", moved))
	server.RespondOK(c, mergeResult{MovedSegments: moved, Speakers: speakers})
}

// saveProfile stores a speaker's voice under a name so later meetings can
// recognise it. Without a name the speaker's current name is used.
func (h *Handler) saveProfile(c *gin.Context) {
	if h.profiles == nil {
		server.RespondWithError(c, apperrors.ServiceUnavailable("voice profile service"))
		return
	}
	ctx := c.Request.Context()
	var req saveProfileRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}
	id := c.Param("id")
	name := strings.TrimSpace(req.Name)
	if name == "" {
		sp, err := h.store.GetSpeaker(ctx, id)
		if err != nil {
			server.RespondWithError(c, err)
			return
		}
		name = sp.Name()
	}
	p, err := h.profiles.Save(ctx, id, name)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondCreated(c, p)
}

func (h *Handler) listProfiles(c *gin.Context) {
	if h.profiles == nil {
		server.RespondWithError(c, apperrors.ServiceUnavailable("voice profile service"))
		return
	}
	profiles, err := h.profiles.List(c.Request.Context())
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOKWithMeta(c, profiles, &server.Meta{Total: len(profiles)})
}

func (h *Handler) deleteProfile(c *gin.Context) {
	if h.profiles == nil {
		server.RespondWithError(c, apperrors.ServiceUnavailable("voice profile service"))
		return
	}
	if err := h.profiles.Delete(c.Request.Context(), c.Param("id")); err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondNoContent(c)
}
