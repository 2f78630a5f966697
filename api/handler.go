package api

import (
	"context"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/kbukum/meetscribe/authz"
	"github.com/kbukum/meetscribe/live"
	"github.com/kbukum/meetscribe/logger"
	"github.com/kbukum/meetscribe/meeting"
	"github.com/kbukum/meetscribe/server/middleware"
	"github.com/kbukum/meetscribe/sse"
	"github.com/kbukum/meetscribe/storage"
	"github.com/kbukum/meetscribe/store"
)

// Pipeline starts batch processing runs.
type Pipeline interface {
	Process(ctx context.Context, meetingID string) (*meeting.Job, error)
	Reprocess(ctx context.Context, meetingID string, scope meeting.Scope) (*meeting.Job, error)
}

// Recorder runs live sessions.
type Recorder interface {
	Start(ctx context.Context, meetingID string) (*live.Session, error)
	ForMeeting(meetingID string) (*live.Session, bool)
	Ingest(ctx context.Context, sessionID string, chunk []byte) error
	Stop(ctx context.Context, sessionID string) error
}

// Profiles manages voice profiles.
type Profiles interface {
	Save(ctx context.Context, speakerID, name string) (*meeting.VoiceProfile, error)
	List(ctx context.Context) ([]meeting.VoiceProfile, error)
	Delete(ctx context.Context, id string) error
}

// Deps are the collaborators of a Handler. Live, Profiles and Hub are
// optional; their routes answer 503 when missing.
type Deps struct {
	Store    *store.Store
	Blobs    storage.Storage
	Pipeline Pipeline
	Live     Recorder
	Profiles Profiles
	Hub      *sse.Hub
}

// Handler serves the meetscribe HTTP API.
type Handler struct {
	cfg      Config
	store    *store.Store
	blobs    storage.Storage
	pipeline Pipeline
	live     Recorder
	profiles Profiles
	hub      *sse.Hub
	upgrader websocket.Upgrader
	log      *logger.Logger
}

// New creates a Handler.
func New(cfg Config, deps Deps, log *logger.Logger) (*Handler, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	h := &Handler{
		cfg:      cfg,
		store:    deps.Store,
		blobs:    deps.Blobs,
		pipeline: deps.Pipeline,
		live:     deps.Live,
		profiles: deps.Profiles,
		hub:      deps.Hub,
		log:      log.WithComponent("api"),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  32 << 10,
		WriteBufferSize: 32 << 10,
		CheckOrigin:     originChecker(cfg.AllowedOrigins),
	}
	return h, nil
}

// Register mounts every route under /api.
func (h *Handler) Register(r gin.IRouter) {
	api := r.Group("/api")
	meetingScope := middleware.RequireScope(authz.Meetings)
	profileScope := middleware.RequireScope(authz.Profiles)

	meetings := api.Group("/meetings", meetingScope)
	meetings.GET("", h.listMeetings)
	meetings.POST("", h.uploadMeeting)
	meetings.POST("/live", h.createLiveMeeting)
	meetings.GET("/:id", h.getMeeting)
	meetings.PATCH("/:id", h.updateMeeting)
	meetings.DELETE("/:id", h.deleteMeeting)
	meetings.POST("/:id/process", h.process)
	meetings.POST("/:id/reprocess", h.reprocess)
	meetings.GET("/:id/jobs", h.listJobs)
	meetings.GET("/:id/segments", h.listSegments)
	meetings.GET("/:id/speakers", h.listSpeakers)
	meetings.POST("/:id/speakers/merge", h.mergeSpeakers)
	meetings.GET("/:id/events", h.events)
	meetings.GET("/:id/live", middleware.Require(authz.Permission(authz.Meetings, authz.Record)), h.liveSocket)

	api.GET("/jobs/:id", meetingScope, h.getJob)
	api.PUT("/segments/:id", meetingScope, h.editSegment)
	api.PUT("/speakers/:id", meetingScope, h.renameSpeaker)
	api.POST("/speakers/:id/profile", profileScope, h.saveProfile)

	profiles := api.Group("/profiles", profileScope)
	profiles.GET("", h.listProfiles)
	profiles.DELETE("/:id", h.deleteProfile)
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return nil
	}
	if slices.Contains(allowed, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		return slices.Contains(allowed, r.Header.Get("Origin"))
	}
}
