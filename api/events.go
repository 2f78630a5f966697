package api

import (
	"github.com/gin-gonic/gin"

	apperrors "github.com/kbukum/meetscribe/errors"
	"github.com/kbukum/meetscribe/server"
	"github.com/kbukum/meetscribe/sse"
)

// events streams a meeting's progress, segment and polish events as
// server-sent events.
func (h *Handler) events(c *gin.Context) {
	if h.hub == nil {
		server.RespondWithError(c, apperrors.ServiceUnavailable("event stream"))
		return
	}
	id := c.Param("id")
	if _, err := h.store.GetMeeting(c.Request.Context(), id); err != nil {
		server.RespondWithError(c, err)
		return
	}
	sse.ServeSSE(h.hub, c.Writer, c.Request, sse.MeetingClientID(id), sse.WithMetadata("meeting_id", id))
}
