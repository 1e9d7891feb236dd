package ratelimit

import (
	"context"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func TestSlidingWindowAdmitsUpToLimit(t *testing.T) {
	limiter := NewSlidingWindow(Config{MaxRequests: 10, Window: time.Minute})

	for i := 0; i < 10; i++ {
		d := limiter.AllowAt("10.0.0.1", epoch.Add(time.Duration(i)*time.Second))
		require.True(t, d.Allowed, "request %d should be allowed", i+1)
		assert.Equal(t, 10-i-1, d.Remaining)
	}

	d := limiter.AllowAt("10.0.0.1", epoch.Add(10*time.Second))
	require.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	assert.Equal(t, 10, d.Limit)
	assert.Equal(t, 50*time.Second, d.RetryAfter)
}

func TestSlidingWindowDeniedRequestIsNotRecorded(t *testing.T) {
	limiter := NewSlidingWindow(Config{MaxRequests: 1, Window: time.Minute})

	require.True(t, limiter.AllowAt("c", epoch).Allowed)
	for i := 1; i <= 5; i++ {
		require.False(t, limiter.AllowAt("c", epoch.Add(time.Duration(i)*time.Second)).Allowed)
	}

	// Only the first stamp counts, so the window frees one minute after it.
	assert.True(t, limiter.AllowAt("c", epoch.Add(time.Minute)).Allowed)
}

func TestSlidingWindowResetsAfterWindow(t *testing.T) {
	limiter := NewSlidingWindow(Config{MaxRequests: 3, Window: time.Minute})

	for i := 0; i < 3; i++ {
		require.True(t, limiter.AllowAt("c", epoch).Allowed)
	}
	require.False(t, limiter.AllowAt("c", epoch.Add(59*time.Second)).Allowed)

	later := epoch.Add(time.Minute + time.Millisecond)
	for i := 0; i < 3; i++ {
		require.True(t, limiter.AllowAt("c", later).Allowed, "new window request %d", i+1)
	}
	require.False(t, limiter.AllowAt("c", later).Allowed)
}

func TestSlidingWindowLateStampKeepsOrder(t *testing.T) {
	limiter := NewSlidingWindow(Config{MaxRequests: 2, Window: time.Minute})

	require.True(t, limiter.AllowAt("k", epoch.Add(time.Second)).Allowed)
	require.True(t, limiter.AllowAt("k", epoch).Allowed)

	cw := limiter.entry("k")
	cw.mu.Lock()
	var stamps []time.Time
	for e := cw.stamps.Front(); e != nil; e = e.Next() {
		stamps = append(stamps, e.Value)
	}
	cw.mu.Unlock()
	assert.Equal(t, []time.Time{epoch, epoch.Add(time.Second)}, stamps)

	// The epoch stamp has expired; only the one-second stamp still counts.
	d := limiter.AllowAt("k", epoch.Add(60*time.Second+500*time.Millisecond))
	require.True(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
}

func TestSlidingWindowSlidesRatherThanResettingBuckets(t *testing.T) {
	limiter := NewSlidingWindow(Config{MaxRequests: 2, Window: 10 * time.Second})

	require.True(t, limiter.AllowAt("c", epoch).Allowed)
	require.True(t, limiter.AllowAt("c", epoch.Add(5*time.Second)).Allowed)
	require.False(t, limiter.AllowAt("c", epoch.Add(9*time.Second)).Allowed)

	// First stamp ages out at +10s; the +5s stamp is still counted.
	require.True(t, limiter.AllowAt("c", epoch.Add(10*time.Second)).Allowed)
	require.False(t, limiter.AllowAt("c", epoch.Add(14*time.Second)).Allowed)
}

func TestSlidingWindowKeysAreIndependent(t *testing.T) {
	limiter := NewSlidingWindow(Config{MaxRequests: 2, Window: time.Minute})

	require.True(t, limiter.AllowAt("a", epoch).Allowed)
	require.True(t, limiter.AllowAt("a", epoch).Allowed)
	require.False(t, limiter.AllowAt("a", epoch).Allowed)

	d := limiter.AllowAt("b", epoch)
	require.True(t, d.Allowed)
	assert.Equal(t, 1, d.Remaining)
}

func TestSlidingWindowConcurrentLastSlot(t *testing.T) {
	for round := 0; round < 50; round++ {
		limiter := NewSlidingWindow(Config{MaxRequests: 5, Window: time.Minute})
		for i := 0; i < 4; i++ {
			require.True(t, limiter.AllowAt("c", epoch).Allowed)
		}

		var (
			wg      sync.WaitGroup
			start   = make(chan struct{})
			results = make(chan bool, 2)
		)
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				results <- limiter.AllowAt("c", epoch.Add(time.Second)).Allowed
			}()
		}
		close(start)
		wg.Wait()
		close(results)

		allowed := 0
		for ok := range results {
			if ok {
				allowed++
			}
		}
		require.Equal(t, 1, allowed, "round %d admitted %d requests for one slot", round, allowed)
	}
}

func TestSlidingWindowConcurrentNeverOverAdmits(t *testing.T) {
	limiter := NewSlidingWindow(Config{MaxRequests: 10, Window: time.Minute},
		WithClock(func() time.Time { return epoch }))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed = map[string]int{}
	)
	for _, key := range []string{"a", "b", "c"} {
		for i := 0; i < 100; i++ {
			wg.Add(1)
			go func(key string) {
				defer wg.Done()
				d, err := limiter.Allow(context.Background(), key)
				if err == nil && d.Allowed {
					mu.Lock()
					allowed[key]++
					mu.Unlock()
				}
			}(key)
		}
	}
	wg.Wait()

	for _, key := range []string{"a", "b", "c"} {
		assert.Equal(t, 10, allowed[key], "key %s", key)
	}
}

func TestSlidingWindowSweepEvictsIdleClients(t *testing.T) {
	limiter := NewSlidingWindow(Config{MaxRequests: 5, Window: time.Minute})

	limiter.AllowAt("old", epoch)
	limiter.AllowAt("fresh", epoch.Add(50*time.Second))
	require.Equal(t, 2, limiter.Len())

	evicted := limiter.Sweep(epoch.Add(90 * time.Second))
	assert.Equal(t, 1, evicted)
	assert.Equal(t, 1, limiter.Len())

	evicted = limiter.Sweep(epoch.Add(3 * time.Minute))
	assert.Equal(t, 1, evicted)
	assert.Equal(t, 0, limiter.Len())
}

func TestSlidingWindowAllowAfterSweepStartsFresh(t *testing.T) {
	limiter := NewSlidingWindow(Config{MaxRequests: 1, Window: time.Minute})

	require.True(t, limiter.AllowAt("c", epoch).Allowed)
	limiter.Sweep(epoch.Add(2 * time.Minute))
	require.True(t, limiter.AllowAt("c", epoch.Add(2*time.Minute)).Allowed)
	require.False(t, limiter.AllowAt("c", epoch.Add(2*time.Minute)).Allowed)
}

func TestSlidingWindowConcurrentSweepKeepsCounts(t *testing.T) {
	limiter := NewSlidingWindow(Config{MaxRequests: 50, Window: time.Minute})

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0

	stop := make(chan struct{})
	go func() {
		for {
			select {
			case <-stop:
				return
			default:
				limiter.Sweep(epoch)
			}
		}
	}()

	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if limiter.AllowAt("c", epoch).Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	close(stop)

	assert.Equal(t, 50, allowed)
}

func TestSlidingWindowJanitorStopsWithContext(t *testing.T) {
	now := epoch
	var clockMu sync.Mutex
	limiter := NewSlidingWindow(
		Config{MaxRequests: 1, Window: time.Second, CleanupInterval: 5 * time.Millisecond},
		WithClock(func() time.Time {
			clockMu.Lock()
			defer clockMu.Unlock()
			return now
		}),
	)
	_, _ = limiter.Allow(context.Background(), "c")
	require.Equal(t, 1, limiter.Len())

	clockMu.Lock()
	now = epoch.Add(time.Hour)
	clockMu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	swept := make(chan int, 16)
	limiter.StartJanitor(ctx, func(evicted, tracked int) {
		select {
		case swept <- tracked:
		default:
		}
	})

	select {
	case tracked := <-swept:
		assert.Equal(t, 0, tracked)
	case <-time.After(2 * time.Second):
		t.Fatal("janitor never swept")
	}
}

func TestConfigDefaults(t *testing.T) {
	limiter := NewSlidingWindow(Config{})
	assert.Equal(t, DefaultMaxRequests, limiter.Limit())
	assert.Equal(t, DefaultWindow, limiter.Window())
}

func TestClientIPKeyFunc(t *testing.T) {
	cases := []struct {
		name       string
		trust      bool
		remoteAddr string
		xff        string
		want       string
	}{
		{"remote addr host", false, "192.0.2.1:5555", "", "192.0.2.1"},
		{"ignores xff when untrusted", false, "192.0.2.1:5555", "203.0.113.9", "192.0.2.1"},
		{"first xff hop when trusted", true, "192.0.2.1:5555", "203.0.113.9, 10.0.0.1", "203.0.113.9"},
		{"blank xff falls back", true, "192.0.2.1:5555", " , ", "192.0.2.1"},
		{"addr without port", false, "192.0.2.7", "", "192.0.2.7"},
		{"empty", false, "", "", "unknown"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/generate-post", nil)
			req.RemoteAddr = tc.remoteAddr
			if tc.xff != "" {
				req.Header.Set("X-Forwarded-For", tc.xff)
			}
			assert.Equal(t, tc.want, ClientIPKeyFunc(tc.trust)(req))
		})
	}
}
