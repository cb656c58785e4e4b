package notify

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Tracker opens read-state sessions against a Store.
type Tracker struct {
	store  Store
	logger zerolog.Logger
	now    func() time.Time
}

// NewTracker constructs a tracker over the given store.
func NewTracker(store Store, logger zerolog.Logger) *Tracker {
	return &Tracker{
		store:  store,
		logger: logger.With().Str("component", "notify_tracker").Logger(),
		now:    time.Now,
	}
}

// Session is one opened notification panel. The read position is
// snapshotted at open time: items stay marked new for the whole session
// even though the stored position already advanced.
type Session struct {
	tracker  *Tracker
	userID   uint
	panel    string
	lastRead time.Time
	visited  map[string]bool
}

// Open loads the read state for the user and panel, snapshots it for the
// session and advances the stored position to now. Opening the panel is the
// acknowledgement; there is no separate mark-read call.
func (t *Tracker) Open(ctx context.Context, userID uint, panel string) (*Session, error) {
	state, err := t.store.Load(ctx, userID, panel)
	if err != nil {
		return nil, err
	}

	session := &Session{
		tracker:  t,
		userID:   userID,
		panel:    panel,
		lastRead: state.LastCheck,
		visited:  make(map[string]bool, len(state.VisitedIDs)),
	}
	for _, id := range state.VisitedIDs {
		session.visited[id] = true
	}

	state.LastCheck = t.now()
	if err := t.store.Save(ctx, userID, panel, state); err != nil {
		return nil, err
	}

	return session, nil
}

// Item is the minimal view of a feed entry the tracker needs.
type Item struct {
	Key       string
	CreatedAt time.Time
}

// IsNew reports whether an item created at the given time postdates the
// session's snapshot. Stable for the lifetime of the session.
func (s *Session) IsNew(createdAt time.Time) bool {
	return createdAt.After(s.lastRead)
}

// Unread counts items that are both new for this session and not yet
// visited.
func (s *Session) Unread(items []Item) int {
	count := 0
	for _, item := range items {
		if s.IsNew(item.CreatedAt) && !s.visited[item.Key] {
			count++
		}
	}
	return count
}

// IsVisited reports whether the entity key was clicked through before.
func (s *Session) IsVisited(key string) bool {
	return s.visited[key]
}

// Visit records a click-through on an entity key and persists it. The
// stored LastCheck is preserved, only the visited set grows. The session
// marks the key only after the store accepted it, so a failed persist
// leaves the item retryable instead of silently dropping it.
func (s *Session) Visit(ctx context.Context, key string) error {
	if s.visited[key] {
		return nil
	}

	state, err := s.tracker.store.Load(ctx, s.userID, s.panel)
	if err != nil {
		return err
	}

	for _, id := range state.VisitedIDs {
		if id == key {
			s.visited[key] = true
			return nil
		}
	}
	state.VisitedIDs = append(state.VisitedIDs, key)

	if err := s.tracker.store.Save(ctx, s.userID, s.panel, state); err != nil {
		return err
	}
	s.visited[key] = true

	return nil
}
