package ratelimit

import (
	"context"
	"sync"
	"time"

	list "github.com/bahlo/generic-list-go"
)

// SlidingWindow is an in-memory per-client sliding-window limiter.
//
// The map lock is only held to find or create a client entry; the
// prune/check/append sequence runs under the entry's own mutex so that
// requests from different clients never wait on each other.
type SlidingWindow struct {
	cfg   Config
	clock func() time.Time

	mu      sync.Mutex
	clients map[string]*clientWindow
}

// clientWindow holds one client's request timestamps, oldest at the front.
type clientWindow struct {
	mu      sync.Mutex
	stamps  *list.List[time.Time]
	evicted bool
}

// Option customises a SlidingWindow.
type Option func(*SlidingWindow)

// WithClock overrides the time source used by Allow.
func WithClock(clock func() time.Time) Option {
	return func(s *SlidingWindow) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewSlidingWindow builds an in-memory limiter.
func NewSlidingWindow(cfg Config, opts ...Option) *SlidingWindow {
	s := &SlidingWindow{
		cfg:     cfg.withDefaults(),
		clock:   time.Now,
		clients: make(map[string]*clientWindow),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Limit returns the maximum number of requests per window.
func (s *SlidingWindow) Limit() int { return s.cfg.MaxRequests }

// Window returns the trailing window length.
func (s *SlidingWindow) Window() time.Duration { return s.cfg.Window }

// Allow implements Limiter using the configured clock. It never fails.
func (s *SlidingWindow) Allow(ctx context.Context, key string) (Decision, error) {
	return s.AllowAt(key, s.clock()), nil
}

// AllowAt prunes the client's timestamps older than now-window and admits the
// request iff fewer than MaxRequests remain, recording now only on admission.
func (s *SlidingWindow) AllowAt(key string, now time.Time) Decision {
	for {
		cw := s.entry(key)

		cw.mu.Lock()
		if cw.evicted {
			// Swept between lookup and lock; the map no longer points at it.
			cw.mu.Unlock()
			continue
		}

		cw.prune(now.Add(-s.cfg.Window))
		count := cw.stamps.Len()
		if count >= s.cfg.MaxRequests {
			retry := cw.stamps.Front().Value.Add(s.cfg.Window).Sub(now)
			cw.mu.Unlock()
			if retry < 0 {
				retry = 0
			}
			return Decision{
				Allowed:    false,
				Limit:      s.cfg.MaxRequests,
				Remaining:  0,
				RetryAfter: retry,
			}
		}

		cw.record(now)
		cw.mu.Unlock()
		return Decision{
			Allowed:   true,
			Limit:     s.cfg.MaxRequests,
			Remaining: s.cfg.MaxRequests - count - 1,
		}
	}
}

func (s *SlidingWindow) entry(key string) *clientWindow {
	s.mu.Lock()
	defer s.mu.Unlock()

	cw, ok := s.clients[key]
	if !ok {
		cw = &clientWindow{stamps: list.New[time.Time]()}
		s.clients[key] = cw
	}
	return cw
}

// record inserts now keeping the deque non-decreasing. A caller that read the
// clock before a concurrent request took the lock can arrive slightly late;
// its stamp goes behind the newer ones instead of blocking prune. Caller
// holds cw.mu.
func (cw *clientWindow) record(now time.Time) {
	for e := cw.stamps.Back(); e != nil; e = e.Prev() {
		if !e.Value.After(now) {
			cw.stamps.InsertAfter(now, e)
			return
		}
	}
	cw.stamps.PushFront(now)
}

// prune drops timestamps at or before cutoff. Caller holds cw.mu.
func (cw *clientWindow) prune(cutoff time.Time) {
	for e := cw.stamps.Front(); e != nil; e = cw.stamps.Front() {
		if e.Value.After(cutoff) {
			return
		}
		cw.stamps.Remove(e)
	}
}

// Sweep prunes every client window against now and forgets clients whose
// window became empty. It returns the number of evicted clients.
func (s *SlidingWindow) Sweep(now time.Time) int {
	cutoff := now.Add(-s.cfg.Window)

	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for key, cw := range s.clients {
		cw.mu.Lock()
		cw.prune(cutoff)
		if cw.stamps.Len() == 0 {
			cw.evicted = true
			delete(s.clients, key)
			evicted++
		}
		cw.mu.Unlock()
	}
	return evicted
}

// Len reports how many clients currently hold state.
func (s *SlidingWindow) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// StartJanitor sweeps idle clients every CleanupInterval until ctx is done.
// onSweep, when non-nil, receives the eviction count and remaining size.
func (s *SlidingWindow) StartJanitor(ctx context.Context, onSweep func(evicted, tracked int)) {
	t := time.NewTicker(s.cfg.CleanupInterval)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				evicted := s.Sweep(s.clock())
				if onSweep != nil {
					onSweep(evicted, s.Len())
				}
			}
		}
	}()
}
