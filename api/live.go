package api

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	apperrors "github.com/kbukum/meetscribe/errors"
	"github.com/kbukum/meetscribe/live"
	"github.com/kbukum/meetscribe/logger"
	"github.com/kbukum/meetscribe/meeting"
	"github.com/kbukum/meetscribe/server"
	"github.com/kbukum/meetscribe/sse"
)

// Websocket message types written by the server. Meeting events are relayed
// with their own types.
const (
	msgSessionStarted = "session_started"
	msgPong           = "pong"
	msgError          = "error"
)

// Commands a client may send as text frames.
const (
	cmdStopRecording = "stop_recording"
	cmdPing          = "ping"
)

type command struct {
	Type string `json:"type"`
}

type socketMessage struct {
	Type    string              `json:"type"`
	Session *live.Info          `json:"session,omitempty"`
	Code    apperrors.ErrorCode `json:"code,omitempty"`
	Error   string              `json:"error,omitempty"`
}

// socket serializes writes to one websocket connection.
type socket struct {
	conn    *websocket.Conn
	timeout time.Duration
	mu      sync.Mutex
}

func (s *socket) write(typ int, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(s.timeout))
	return s.conn.WriteMessage(typ, data)
}

func (s *socket) send(msg socketMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return s.write(websocket.TextMessage, data)
}

func (s *socket) sendError(err error) error {
	msg := socketMessage{Type: msgError, Code: apperrors.ErrCodeInternal, Error: err.Error()}
	if appErr, ok := apperrors.AsAppError(err); ok {
		msg.Code, msg.Error = appErr.Code, appErr.Message
	}
	return s.send(msg)
}

func (s *socket) ping() error {
	return s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.timeout))
}

// liveSocket records a live meeting over a websocket. It attaches to the
// meeting's open session or starts one. Closing the socket does not stop
// the recording; a client may reconnect, and idle sessions are stopped by
// the coordinator.
func (h *Handler) liveSocket(c *gin.Context) {
	if h.live == nil {
		server.RespondWithError(c, apperrors.ServiceUnavailable("live recording"))
		return
	}
	id := c.Param("id")
	m, err := h.store.GetMeeting(c.Request.Context(), id)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	if m.Mode != meeting.ModeLive {
		server.RespondWithError(c, apperrors.InvalidState("meeting", string(m.Mode), string(meeting.ModeLive)))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", logger.MergeWithError(logger.Fields(logger.FieldMeetingID, id), err))
		return
	}
	defer conn.Close()
	ws := &socket{conn: conn, timeout: h.cfg.WriteTimeout}

	ctx, cancel := context.WithCancel(context.WithoutCancel(c.Request.Context()))
	defer cancel()

	s, ok := h.live.ForMeeting(id)
	if !ok {
		if s, err = h.live.Start(ctx, id); err != nil {
			_ = ws.sendError(err)
			return
		}
	}
	log := h.log.WithFields(logger.Fields(logger.FieldMeetingID, id, logger.FieldSessionID, s.ID))

	var relay *sse.Client
	if h.hub != nil {
		relay = sse.NewClient(sse.MeetingClientID(id), sse.WithMetadata("session_id", s.ID))
		h.hub.Register(relay)
		defer h.hub.Unregister(relay)
	}
	info := s.Info()
	if err := ws.send(socketMessage{Type: msgSessionStarted, Session: &info}); err != nil {
		return
	}
	// events published since the relay registered wait in its buffer
	done := make(chan struct{})
	defer close(done)
	go h.pump(ws, relay, done, log)
	log.Info("live socket attached")

	conn.SetReadLimit(h.cfg.MaxChunkBytes)
	_ = conn.SetReadDeadline(time.Now().Add(h.cfg.pongWait()))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.cfg.pongWait()))
	})

	for {
		typ, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn("live socket closed", logger.ErrorFields("read", err))
			}
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(h.cfg.pongWait()))

		switch typ {
		case websocket.BinaryMessage:
			if err := h.live.Ingest(ctx, s.ID, data); err != nil {
				if ws.sendError(err) != nil {
					return
				}
			}
		case websocket.TextMessage:
			if err := h.command(ctx, ws, s, data); err != nil {
				return
			}
		}
	}
	log.Info("live socket detached")
}

// command runs one text command. Only a failed write is returned.
func (h *Handler) command(ctx context.Context, ws *socket, s *live.Session, data []byte) error {
	var cmd command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return ws.sendError(apperrors.InvalidInput("command", "malformed JSON"))
	}
	switch cmd.Type {
	case cmdPing:
		return ws.send(socketMessage{Type: msgPong})
	case cmdStopRecording:
		if err := h.live.Stop(ctx, s.ID); err != nil {
			return ws.sendError(err)
		}
		return nil
	default:
		return ws.sendError(apperrors.InvalidInput("command", "unknown command "+cmd.Type))
	}
}

// pump relays meeting events to the socket and keeps it alive with pings.
func (h *Handler) pump(ws *socket, relay *sse.Client, done <-chan struct{}, log *logger.Logger) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()

	var events <-chan []byte
	if relay != nil {
		events = relay.Events()
	}
	for {
		select {
		case <-done:
			return
		case data, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if err := ws.write(websocket.TextMessage, data); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					log.Debug("relay write failed", logger.ErrorFields("relay", err))
				}
				return
			}
		case <-ticker.C:
			if err := ws.ping(); err != nil {
				return
			}
		}
	}
}
