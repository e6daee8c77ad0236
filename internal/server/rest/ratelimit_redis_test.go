package rest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/anoncommunity/internal/logging"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRedis answers INCR, TTL and EXPIRE from memory through a client hook,
// so no server is contacted.
type fakeRedis struct {
	mu          sync.Mutex
	counters    map[string]int64
	ttls        map[string]time.Duration
	failExpires int
}

func newFakeRedisClient(f *fakeRedis) *redis.Client {
	f.counters = map[string]int64{}
	f.ttls = map[string]time.Duration{}
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	client.AddHook(f)
	return client
}

func (f *fakeRedis) DialHook(next redis.DialHook) redis.DialHook { return next }

func (f *fakeRedis) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func (f *fakeRedis) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		f.mu.Lock()
		defer f.mu.Unlock()

		key, _ := cmd.Args()[1].(string)
		switch c := cmd.(type) {
		case *redis.IntCmd:
			f.counters[key]++
			c.SetVal(f.counters[key])
		case *redis.DurationCmd:
			switch ttl, ok := f.ttls[key]; {
			case ok:
				c.SetVal(ttl)
			case f.counters[key] > 0:
				c.SetVal(-1)
			default:
				c.SetVal(-2)
			}
		case *redis.BoolCmd:
			if f.failExpires > 0 {
				f.failExpires--
				err := errors.New("expire failed")
				c.SetErr(err)
				return err
			}
			secs, _ := cmd.Args()[2].(int64)
			f.ttls[key] = time.Duration(secs) * time.Second
			c.SetVal(true)
		default:
			return next(ctx, cmd)
		}
		return nil
	}
}

// elapse drops every key that carries an expiry.
func (f *fakeRedis) elapse() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key := range f.ttls {
		delete(f.ttls, key)
		delete(f.counters, key)
	}
}

func TestRedisRateLimiter_WindowResets(t *testing.T) {
	f := &fakeRedis{}
	rl := newRedisRateLimiter(newFakeRedisClient(f), logging.NopLogger{})
	defer rl.Close()
	ctx := context.Background()

	assert.True(t, rl.Allow(ctx, "login:1.2.3.4", 2, time.Minute).Allowed)
	assert.True(t, rl.Allow(ctx, "login:1.2.3.4", 2, time.Minute).Allowed)
	d := rl.Allow(ctx, "login:1.2.3.4", 2, time.Minute)
	assert.False(t, d.Allowed)
	assert.Equal(t, 3, d.Count)

	f.elapse()
	assert.True(t, rl.Allow(ctx, "login:1.2.3.4", 2, time.Minute).Allowed)
}

func TestRedisRateLimiter_FailedExpireIsRetried(t *testing.T) {
	f := &fakeRedis{failExpires: 1}
	rl := newRedisRateLimiter(newFakeRedisClient(f), logging.NopLogger{})
	defer rl.Close()
	ctx := context.Background()

	require.True(t, rl.Allow(ctx, "login:5.6.7.8", 2, time.Minute).Allowed)
	f.mu.Lock()
	_, hasTTL := f.ttls[rl.prefix+"login:5.6.7.8"]
	f.mu.Unlock()
	require.False(t, hasTTL, "first EXPIRE should have failed")

	require.True(t, rl.Allow(ctx, "login:5.6.7.8", 2, time.Minute).Allowed)
	assert.False(t, rl.Allow(ctx, "login:5.6.7.8", 2, time.Minute).Allowed)

	f.mu.Lock()
	assert.Equal(t, time.Minute, f.ttls[rl.prefix+"login:5.6.7.8"])
	f.mu.Unlock()

	f.elapse()
	assert.True(t, rl.Allow(ctx, "login:5.6.7.8", 2, time.Minute).Allowed, "the counter must reset once the window passes")
}
