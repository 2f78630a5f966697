package live

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kbukum/meetscribe/cluster"
	"github.com/kbukum/meetscribe/meeting"
)

// Session is one live recording of a meeting.
type Session struct {
	ID        string
	MeetingID string
	StartedAt time.Time

	language string

	mu       sync.Mutex
	state    meeting.RecordingStatus
	nextSeq  int64
	lastSeen time.Time

	// partial path
	ctx      context.Context
	cancel   context.CancelFunc
	inflight sync.WaitGroup
	sem      chan struct{}

	// emitMu orders everything published for the session and guards the
	// fields below.
	emitMu   sync.Mutex
	seq      *sequencer[chunkResult]
	offset   float64
	prompt   string
	clusters *cluster.Tracker
	aliases  map[string]string
	emitted  int
	polishes int

	polishStop chan struct{}
	polishDone chan struct{}
}

// Info is a snapshot of a session.
type Info struct {
	ID        string                  `json:"session_id"`
	MeetingID string                  `json:"meeting_id"`
	State     meeting.RecordingStatus `json:"state"`
	Chunks    int64                   `json:"chunks"`
	StartedAt time.Time               `json:"started_at"`
}

func newSession(m *meeting.Meeting, cfg Config, base context.Context, nextSeq int64) *Session {
	now := time.Now()
	ctx, cancel := context.WithCancel(base)
	return &Session{
		ID:         uuid.NewString(),
		MeetingID:  m.ID,
		StartedAt:  now,
		language:   m.Language,
		state:      meeting.RecordingActive,
		nextSeq:    nextSeq,
		lastSeen:   now,
		ctx:        ctx,
		cancel:     cancel,
		sem:        make(chan struct{}, cfg.ChunkConcurrency),
		seq:        newSequencer[chunkResult](),
		clusters:   cluster.New(cfg.Cluster),
		aliases:    map[string]string{},
		polishStop: make(chan struct{}),
		polishDone: make(chan struct{}),
	}
}

// State returns the current recording state.
func (s *Session) State() meeting.RecordingStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Info returns a snapshot of the session.
func (s *Session) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Info{ID: s.ID, MeetingID: s.MeetingID, State: s.state, Chunks: s.nextSeq, StartedAt: s.StartedAt}
}

func (s *Session) setState(st meeting.RecordingStatus) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// idleSince reports whether the session is recording and has not received a
// chunk since before t.
func (s *Session) idleSince(t time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == meeting.RecordingActive && s.lastSeen.Before(t)
}

// resolve maps a cluster label through the merges done by polish passes.
// Callers hold emitMu.
func (s *Session) resolve(label string) string {
	if to, ok := s.aliases[label]; ok {
		return to
	}
	return label
}

// alias records that label was merged into target. Callers hold emitMu.
func (s *Session) alias(label, target string) {
	for from, to := range s.aliases {
		if to == label {
			s.aliases[from] = target
		}
	}
	s.aliases[label] = target
}
