package rest

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/thejerf/abtime"
)

const rateLimiterSweepInterval = 5 * time.Minute

// rateLimiterSweepTicker identifies the sweep ticker to abtime.ManualTime.
const rateLimiterSweepTicker = 1

// RateLimiter counts attempts per key in fixed windows.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) RateDecision
	Close()
}

type RateDecision struct {
	Allowed   bool
	Count     int
	WindowEnd time.Time
}

type memoryRateLimiter struct {
	mu      sync.Mutex
	clock   abtime.AbstractTime
	entries map[string]rateState
	stopCh  chan struct{}
	once    sync.Once
	ticker  abtime.Ticker
	// swept, when set, receives a value after every sweep.
	swept chan struct{}
}

type rateState struct {
	count     int
	windowEnd time.Time
}

// NewMemoryRateLimiter keeps counters in process memory. Counters are not
// shared between replicas; use NewRedisRateLimiter for that.
func NewMemoryRateLimiter(clock abtime.AbstractTime) RateLimiter {
	return newMemoryRateLimiter(clock, nil)
}

func newMemoryRateLimiter(clock abtime.AbstractTime, swept chan struct{}) *memoryRateLimiter {
	rl := &memoryRateLimiter{
		clock:   clock,
		entries: make(map[string]rateState),
		stopCh:  make(chan struct{}),
		ticker:  clock.NewTicker(rateLimiterSweepInterval, rateLimiterSweepTicker),
		swept:   swept,
	}
	go rl.sweepLoop()
	return rl
}

func (rl *memoryRateLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) RateDecision {
	if limit <= 0 {
		return RateDecision{Allowed: true}
	}
	if window <= 0 {
		window = time.Minute
	}
	now := rl.clock.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	state, ok := rl.entries[key]
	if !ok || !now.Before(state.windowEnd) {
		state = rateState{count: 1, windowEnd: now.Add(window)}
		rl.entries[key] = state
		return RateDecision{Allowed: true, Count: state.count, WindowEnd: state.windowEnd}
	}
	if state.count >= limit {
		return RateDecision{Allowed: false, Count: state.count, WindowEnd: state.windowEnd}
	}
	state.count++
	rl.entries[key] = state
	return RateDecision{Allowed: true, Count: state.count, WindowEnd: state.windowEnd}
}

func (rl *memoryRateLimiter) sweepLoop() {
	defer rl.ticker.Stop()
	for {
		select {
		case <-rl.ticker.Channel():
			rl.cleanup(rl.clock.Now())
			if rl.swept != nil {
				rl.swept <- struct{}{}
			}
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *memoryRateLimiter) cleanup(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, state := range rl.entries {
		if !now.Before(state.windowEnd) {
			delete(rl.entries, key)
		}
	}
}

func (rl *memoryRateLimiter) Close() {
	rl.once.Do(func() {
		close(rl.stopCh)
	})
}

// clientIP relies on middleware.RealIP having rewritten RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if host == "" {
		host = "unknown"
	}
	return host
}
