package composer

import (
	"context"
	"sync"
	"time"

	"github.com/debemdeboas/the-feed/internal/cache"
	"github.com/google/uuid"
)

// Sessions holds one composer per browser session.
type Sessions struct {
	composers *cache.Cache[SessionID, *Composer]

	previews *PreviewStore
	create   CreationOperation
	opts     Options
	notifier func(SessionID, Event)

	inflight sync.WaitGroup
}

func NewSessions(previews *PreviewStore, create CreationOperation, opts Options) *Sessions {
	return &Sessions{
		composers: cache.NewCache[SessionID, *Composer](),
		previews:  previews,
		create:    create,
		opts:      opts,
	}
}

// SetResultNotifier sets the notifier handed to every composer created afterwards.
func (s *Sessions) SetResultNotifier(notifier func(SessionID, Event)) {
	s.notifier = notifier
}

func (s *Sessions) Create() *Composer {
	c := New(SessionID(uuid.NewString()), s.previews, s.create, s.opts)
	c.SetResultNotifier(s.notifier)
	c.inflight = &s.inflight
	s.composers.Set(c.ID(), c)
	return c
}

func (s *Sessions) Get(id SessionID) (*Composer, bool) {
	if id == "" {
		return nil, false
	}
	return s.composers.Get(id)
}

func (s *Sessions) Delete(id SessionID) {
	if c, ok := s.composers.Pop(id); ok {
		c.Close()
	}
}

func (s *Sessions) Len() int {
	return s.composers.Len()
}

// Sweep closes and forgets sessions idle for longer than maxIdle. Sessions
// with a submission in flight are kept until it resolves.
func (s *Sessions) Sweep(maxIdle time.Duration) int {
	now := time.Now()
	removed := s.composers.DeleteFunc(func(_ SessionID, c *Composer) bool {
		idle, busy := c.idleSince(now)
		return !busy && idle > maxIdle
	})
	for _, c := range removed {
		c.Close()
	}
	if len(removed) > 0 {
		composerLogger.Info().Int("sessions", len(removed)).Msg("Swept idle composer sessions")
	}
	return len(removed)
}

func (s *Sessions) RunSweeper(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(maxIdle)
		}
	}
}

// Wait blocks until every submission started by these sessions has resolved,
// or ctx is done.
func (s *Sessions) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
