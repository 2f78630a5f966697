package api

import (
	"github.com/gin-gonic/gin"

	apperrors "github.com/kbukum/meetscribe/errors"
	"github.com/kbukum/meetscribe/meeting"
	"github.com/kbukum/meetscribe/server"
)

type reprocessRequest struct {
	Scope string `json:"scope" validate:"omitempty,oneof=full diarization-only speaker-id-only"`
}

func (h *Handler) process(c *gin.Context) {
	j, err := h.pipeline.Process(c.Request.Context(), c.Param("id"))
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondAccepted(c, j)
}

// reprocess repeats the stages selected by scope. An empty body means a
// full run.
func (h *Handler) reprocess(c *gin.Context) {
	var req reprocessRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}
	scope := meeting.ScopeFull
	if req.Scope != "" {
		s, ok := meeting.ParseScope(req.Scope)
		if !ok {
			server.RespondWithError(c, apperrors.InvalidInput("scope", "unknown scope "+req.Scope))
			return
		}
		scope = s
	}
	j, err := h.pipeline.Reprocess(c.Request.Context(), c.Param("id"), scope)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondAccepted(c, j)
}

func (h *Handler) listJobs(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	if _, err := h.store.GetMeeting(ctx, id); err != nil {
		server.RespondWithError(c, err)
		return
	}
	jobs, err := h.store.ListJobs(ctx, id)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOKWithMeta(c, jobs, &server.Meta{Total: len(jobs)})
}

func (h *Handler) getJob(c *gin.Context) {
	j, err := h.store.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOK(c, j)
}
