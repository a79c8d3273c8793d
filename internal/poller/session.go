package poller

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Magnec/chatspace/internal/chat"
	"github.com/Magnec/chatspace/internal/presence"
	"go.uber.org/zap"
)

// Cadences for the non-adaptive loops.
const (
	RosterInterval    = 2 * time.Second
	HeartbeatInterval = 5 * time.Second
	TypingSweep       = 3 * time.Second
)

// Backend is the room-scoped server API a session polls. A Backend is
// bound to one room and one authenticated user.
type Backend interface {
	Messages(ctx context.Context, since int64) ([]chat.MessageView, error)
	Users(ctx context.Context) ([]presence.RoomUser, presence.Stats, error)
	Typing(ctx context.Context) ([]string, error)
	Heartbeat(ctx context.Context) error
	SetTyping(ctx context.Context, typing bool) error
}

// Sink receives session updates. Callbacks run on the session's
// goroutines; implementations must not block.
type Sink interface {
	OnMessages(batch []chat.MessageView)
	OnRoster(users []presence.RoomUser, stats presence.Stats)
	OnTyping(names []string)
}

// Session drives polling for one room. Four loops run concurrently:
// messages at the adaptive interval, roster and typing reads every
// RosterInterval, heartbeats every HeartbeatInterval, and a typing
// sweep every TypingSweep. Per-loop busy flags drop a tick instead of
// stacking requests behind a slow server.
type Session struct {
	backend Backend
	sink    Sink
	logger  *zap.Logger
	now     func() time.Time

	mu      sync.Mutex
	backoff *Backoff
	cursor  int64

	busyMessages atomic.Bool
	busyRoster   atomic.Bool

	// wake pokes the message loop when the computed interval changes
	// out of band (visibility flips). Buffered so signals coalesce.
	wake chan struct{}

	typingMu  sync.Mutex
	typing    bool
	lastKeyed time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewSession(backend Backend, sink Sink, logger *zap.Logger) *Session {
	return &Session{
		backend: backend,
		sink:    sink,
		logger:  logger,
		now:     time.Now,
		backoff: NewBackoff(time.Now()),
		wake:    make(chan struct{}, 1),
	}
}

// Start launches the polling loops. Call Close to stop them.
func (s *Session) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(4)
	go s.messageLoop(ctx)
	go s.rosterLoop(ctx)
	go s.heartbeatLoop(ctx)
	go s.typingLoop(ctx)
}

// Close stops all loops and waits for in-flight requests to return.
func (s *Session) Close() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// SetVisible switches between foreground and background polling. The
// message timer is rescheduled immediately; without the wake a hidden
// tab would keep one more fast poll, and a revealed one would sit out
// the rest of a background interval.
func (s *Session) SetVisible(visible bool) {
	s.mu.Lock()
	s.backoff.SetVisible(visible)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// UserTyped records a keystroke. The first keystroke announces typing
// to the server; the sweep loop retracts it after TypingSweep of
// silence.
func (s *Session) UserTyped(ctx context.Context) {
	s.typingMu.Lock()
	wasTyping := s.typing
	s.typing = true
	s.lastKeyed = s.now()
	s.typingMu.Unlock()

	if !wasTyping {
		if err := s.backend.SetTyping(ctx, true); err != nil {
			s.logger.Warn("typing start failed", zap.Error(err))
		}
	}
}

// Cursor returns the highest message id delivered so far.
func (s *Session) Cursor() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

func (s *Session) messageLoop(ctx context.Context) {
	defer s.wg.Done()

	s.mu.Lock()
	interval := s.backoff.Interval()
	s.mu.Unlock()

	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.wake:
			// Tear down the scheduled fire and restart at the newly
			// computed interval.
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			s.mu.Lock()
			timer.Reset(s.backoff.Interval())
			s.mu.Unlock()
		case <-timer.C:
			s.pollMessages(ctx)
			s.mu.Lock()
			timer.Reset(s.backoff.Interval())
			s.mu.Unlock()
		}
	}
}

// pollMessages fetches past the cursor, drops anything at or below it,
// and advances. The cursor never moves backward, so a slow duplicate
// response cannot re-deliver messages.
func (s *Session) pollMessages(ctx context.Context) {
	if !s.busyMessages.CompareAndSwap(false, true) {
		return
	}
	defer s.busyMessages.Store(false)

	s.mu.Lock()
	since := s.cursor
	s.mu.Unlock()

	batch, err := s.backend.Messages(ctx, since)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn("message poll failed", zap.Error(err))
			// A failed poll counts as an empty one, so transient server
			// trouble widens the interval instead of hammering.
			s.mu.Lock()
			s.backoff.Observe(false, s.now())
			s.mu.Unlock()
		}
		return
	}

	s.mu.Lock()
	fresh := batch[:0]
	for _, m := range batch {
		if m.MessageID > s.cursor {
			fresh = append(fresh, m)
			s.cursor = m.MessageID
		}
	}
	s.backoff.Observe(len(fresh) > 0, s.now())
	s.mu.Unlock()

	if len(fresh) > 0 {
		s.sink.OnMessages(fresh)
	}
}

func (s *Session) rosterLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(RosterInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.pollRoster(ctx)
		}
	}
}

func (s *Session) pollRoster(ctx context.Context) {
	if !s.busyRoster.CompareAndSwap(false, true) {
		return
	}
	defer s.busyRoster.Store(false)

	users, stats, err := s.backend.Users(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn("roster poll failed", zap.Error(err))
		}
	} else {
		s.sink.OnRoster(users, stats)
	}

	names, err := s.backend.Typing(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn("typing poll failed", zap.Error(err))
		}
		return
	}
	s.sink.OnTyping(names)
}

func (s *Session) heartbeatLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.backend.Heartbeat(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn("heartbeat failed", zap.Error(err))
			}
		}
	}
}

// typingLoop retracts the typing flag after TypingSweep of keyboard
// silence. The server expires typing entries on its own; the sweep
// just makes the retraction prompt.
func (s *Session) typingLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(TypingSweep)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepTyping(ctx)
		}
	}
}

func (s *Session) sweepTyping(ctx context.Context) {
	s.typingMu.Lock()
	stale := s.typing && s.now().Sub(s.lastKeyed) >= TypingSweep
	if stale {
		s.typing = false
	}
	s.typingMu.Unlock()

	if stale {
		if err := s.backend.SetTyping(ctx, false); err != nil && ctx.Err() == nil {
			s.logger.Warn("typing stop failed", zap.Error(err))
		}
	}
}
