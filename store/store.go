package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/kbukum/meetscribe/database"
	"github.com/kbukum/meetscribe/encryption"
	"github.com/kbukum/meetscribe/logger"
	"github.com/kbukum/meetscribe/meeting"
)

// EditTolerance is how far, in seconds, a new segment's start and end may
// drift from an edited segment and still inherit its text.
const EditTolerance = 1.5

// Store is the gorm-backed repository for all meeting data.
type Store struct {
	db     *database.DB
	sealer encryption.Sealer
	log    *logger.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithSealer encrypts voice-profile embeddings at rest.
func WithSealer(s encryption.Sealer) Option {
	return func(st *Store) { st.sealer = s }
}

// New creates a Store on an open database.
func New(db *database.DB, log *logger.Logger, opts ...Option) *Store {
	s := &Store{db: db, log: log.WithComponent("store")}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Models returns the models to auto-migrate.
func Models() []interface{} {
	return []interface{}{
		&meeting.Meeting{},
		&meeting.Speaker{},
		&meeting.Segment{},
		&meeting.Job{},
		&meeting.VoiceProfile{},
		&Artifact{},
	}
}

// EnsureIndexes creates indexes gorm tags cannot express.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	stmt := fmt.Sprintf(
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_jobs_active ON jobs(meeting_id) WHERE status IN (%s) AND type IN (%s)",
		quoteList(activeStatuses()), quoteList(processingTypes()))
	if err := s.db.WithContext(ctx).Exec(stmt).Error; err != nil {
		return fmt.Errorf("store: create active job index: %w", err)
	}
	return nil
}

func (s *Store) tx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return s.db.WithTransaction(ctx, fn)
}

func activeStatuses() []string {
	out := make([]string, len(meeting.ActiveJobStatuses))
	for i, st := range meeting.ActiveJobStatuses {
		out[i] = string(st)
	}
	return out
}

func processingTypes() []string {
	out := make([]string, len(meeting.ProcessingTypes))
	for i, t := range meeting.ProcessingTypes {
		out[i] = string(t)
	}
	return out
}

func quoteList(vals []string) string {
	s := ""
	for i, v := range vals {
		if i > 0 {
			s += ","
		}
		s += "'" + v + "'"
	}
	return s
}
