package api

import (
	"io"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/meetscribe/audio"
	apperrors "github.com/kbukum/meetscribe/errors"
	"github.com/kbukum/meetscribe/logger"
	"github.com/kbukum/meetscribe/meeting"
	"github.com/kbukum/meetscribe/server"
	"github.com/kbukum/meetscribe/storage"
	"github.com/kbukum/meetscribe/validation"
)

var unsafeFilename = regexp.MustCompile(`[^\w.\-]`)

type uploadRequest struct {
	Title       string `form:"title" validate:"required,max=200"`
	Language    string `form:"language" validate:"omitempty,len=2"`
	Vocabulary  string `form:"vocabulary" validate:"max=2000"`
	MinSpeakers *int   `form:"min_speakers" validate:"omitempty,min=1,max=20"`
	MaxSpeakers *int   `form:"max_speakers" validate:"omitempty,min=1,max=20"`
}

type liveRequest struct {
	Title      string `json:"title" validate:"required,max=200"`
	Language   string `json:"language" validate:"omitempty,len=2"`
	Vocabulary string `json:"vocabulary" validate:"max=2000"`
}

type updateMeetingRequest struct {
	Title      *string `json:"title" validate:"omitempty,min=1,max=200"`
	Vocabulary *string `json:"vocabulary" validate:"omitempty,max=2000"`
}

// meetingDetail is a meeting with its transcript.
type meetingDetail struct {
	*meeting.Meeting
	Segments []meeting.Segment `json:"segments"`
	Speakers []meeting.Speaker `json:"speakers"`
}

func (h *Handler) listMeetings(c *gin.Context) {
	meetings, err := h.store.ListMeetings(c.Request.Context())
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOKWithMeta(c, meetings, &server.Meta{Total: len(meetings)})
}

// uploadMeeting stores an uploaded audio file as a new meeting. Processing
// is started separately.
func (h *Handler) uploadMeeting(c *gin.Context) {
	ctx := c.Request.Context()
	var req uploadRequest
	if err := c.ShouldBind(&req); err != nil {
		server.RespondWithError(c, apperrors.Validation("invalid form: "+err.Error()))
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if err := validation.Validate(req); err != nil {
		server.RespondWithError(c, err)
		return
	}
	v := validation.New()
	if req.MinSpeakers != nil && req.MaxSpeakers != nil {
		v.Custom(*req.MinSpeakers <= *req.MaxSpeakers, "max_speakers", "must not be less than min_speakers")
	}
	if err := v.Err(); err != nil {
		server.RespondWithError(c, err)
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		server.RespondWithError(c, apperrors.InvalidInput("file", "an audio file is required"))
		return
	}
	f, err := fh.Open()
	if err != nil {
		server.RespondWithError(c, apperrors.InvalidInput("file", "unreadable upload").WithCause(err))
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		server.RespondWithError(c, apperrors.InvalidInput("file", "unreadable upload").WithCause(err))
		return
	}
	ext, err := audio.Validate(data)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}

	m := &meeting.Meeting{
		Title:            req.Title,
		Mode:             meeting.ModeUpload,
		Status:           meeting.StatusUploading,
		OriginalFilename: unsafeFilename.ReplaceAllString(filepath.Base(fh.Filename), "_"),
		Language:         req.Language,
		Vocabulary:       req.Vocabulary,
		MinSpeakers:      req.MinSpeakers,
		MaxSpeakers:      req.MaxSpeakers,
	}
	if err := h.store.CreateMeeting(ctx, m); err != nil {
		server.RespondWithError(c, err)
		return
	}
	key := audio.RawKey(m.ID, ext)
	if err := storage.PutBytes(ctx, h.blobs, key, data); err != nil {
		h.log.Error("store upload", logger.MergeWithError(logger.Fields(logger.FieldMeetingID, m.ID), err))
		if derr := h.store.DeleteMeeting(ctx, m.ID); derr != nil {
			h.log.Warn("discard meeting", logger.MergeWithError(logger.Fields(logger.FieldMeetingID, m.ID), derr))
		}
		server.RespondWithError(c, apperrors.StorageError("upload", err))
		return
	}
	if err := h.store.UpdateMeeting(ctx, m.ID, map[string]any{
		"audio_ref": key,
		"status":    meeting.StatusUploaded,
	}); err != nil {
		server.RespondWithError(c, err)
		return
	}
	m.AudioRef, m.Status = key, meeting.StatusUploaded

	h.log.Info("meeting uploaded", logger.Fields(logger.FieldMeetingID, m.ID, "bytes", len(data), "format", ext))
	server.RespondCreated(c, m)
}

func (h *Handler) createLiveMeeting(c *gin.Context) {
	var req liveRequest
	if !bindJSON(c, &req) {
		return
	}
	m := &meeting.Meeting{
		Title:           strings.TrimSpace(req.Title),
		Mode:            meeting.ModeLive,
		Status:          meeting.StatusRecording,
		RecordingStatus: meeting.RecordingIdle,
		Language:        req.Language,
		Vocabulary:      req.Vocabulary,
	}
	if err := h.store.CreateMeeting(c.Request.Context(), m); err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondCreated(c, m)
}

func (h *Handler) getMeeting(c *gin.Context) {
	ctx := c.Request.Context()
	m, err := h.store.GetMeeting(ctx, c.Param("id"))
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	segs, err := h.store.ListSegments(ctx, m.ID)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	speakers, err := h.store.ListSpeakers(ctx, m.ID)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOK(c, meetingDetail{Meeting: m, Segments: segs, Speakers: speakers})
}

func (h *Handler) updateMeeting(c *gin.Context) {
	ctx := c.Request.Context()
	var req updateMeetingRequest
	if !bindJSON(c, &req) {
		return
	}
	updates := map[string]any{}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			server.RespondWithError(c, apperrors.InvalidInput("title", "must not be empty"))
			return
		}
		updates["title"] = title
	}
	if req.Vocabulary != nil {
		updates["vocabulary"] = *req.Vocabulary
	}
	id := c.Param("id")
	if _, err := h.store.GetMeeting(ctx, id); err != nil {
		server.RespondWithError(c, err)
		return
	}
	if err := h.store.UpdateMeeting(ctx, id, updates); err != nil {
		server.RespondWithError(c, err)
		return
	}
	m, err := h.store.GetMeeting(ctx, id)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOK(c, m)
}

// deleteMeeting removes a meeting and its stored audio. Meetings with a
// running job or an open live session cannot be deleted.
func (h *Handler) deleteMeeting(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	if h.live != nil {
		if _, ok := h.live.ForMeeting(id); ok {
			server.RespondWithError(c, apperrors.Conflict("The meeting is recording."))
			return
		}
	}
	if _, err := h.store.ActiveJob(ctx, id); err == nil {
		server.RespondWithError(c, apperrors.Conflict("The meeting is being processed."))
		return
	} else if !apperrors.IsNotFound(err) {
		server.RespondWithError(c, err)
		return
	}
	if err := h.store.DeleteMeeting(ctx, id); err != nil {
		server.RespondWithError(c, err)
		return
	}

	files, err := h.blobs.List(ctx, audio.MeetingPrefix(id))
	if err != nil {
		h.log.Warn("list meeting audio", logger.MergeWithError(logger.Fields(logger.FieldMeetingID, id), err))
	}
	for _, f := range files {
		if err := h.blobs.Delete(ctx, f.Path); err != nil {
			h.log.Warn("delete meeting audio", logger.MergeWithError(logger.Fields(logger.FieldMeetingID, id, "path", f.Path), err))
		}
	}
	h.log.Info("meeting deleted", logger.Fields(logger.FieldMeetingID, id, "files", len(files)))
	server.RespondNoContent(c)
}

// bindJSON decodes and validates a JSON body, answering 400 on failure.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		server.RespondWithError(c, apperrors.Validation("invalid request body: "+err.Error()))
		return false
	}
	if err := validation.Validate(dst); err != nil {
		server.RespondWithError(c, err)
		return false
	}
	return true
}
