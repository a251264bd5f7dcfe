package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestLimiter(limit int, ttl time.Duration) (*Limiter, *time.Time) {
	l := New(limit, ttl)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	return l, &now
}

func TestLimitedEnforcesQuota(t *testing.T) {
	l, _ := newTestLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		assert.False(t, l.Limited("100"), "call %d should be accepted", i+1)
	}
	assert.True(t, l.Limited("100"), "call over quota should be rejected")
}

func TestWindowSlides(t *testing.T) {
	l, now := newTestLimiter(2, time.Minute)

	assert.False(t, l.Limited("100"))
	assert.False(t, l.Limited("100"))
	assert.True(t, l.Limited("100"))

	// 61 seconds after the first call the whole window has expired.
	*now = now.Add(61 * time.Second)
	assert.False(t, l.Limited("100"))
}

func TestRejectedCallsAreNotRecorded(t *testing.T) {
	l, now := newTestLimiter(1, time.Minute)

	assert.False(t, l.Limited("100"))
	// Hammering while rejected must not extend the penalty.
	for i := 0; i < 10; i++ {
		assert.True(t, l.Limited("100"))
	}

	*now = now.Add(61 * time.Second)
	assert.False(t, l.Limited("100"), "rejected attempts must not count toward the next window")
}

func TestSourcesAreIsolated(t *testing.T) {
	l, _ := newTestLimiter(1, time.Minute)

	assert.False(t, l.Limited("100"))
	assert.True(t, l.Limited("100"))
	assert.False(t, l.Limited("200"), "another source has its own window")
}

func TestConcurrentCallsNeverExceedQuota(t *testing.T) {
	const limit = 10
	l := New(limit, time.Minute)

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !l.Limited("100") {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, limit, accepted)
}

func TestEvictIdleWindows(t *testing.T) {
	l, now := newTestLimiter(5, time.Minute)

	l.Limited("100")
	l.Limited("200")
	assert.Equal(t, 2, l.Tracked())

	*now = now.Add(30 * time.Second)
	l.Limited("200")

	*now = now.Add(45 * time.Second)
	l.evictIdle()

	// "100" was idle for 75s, "200" only for 45s.
	assert.Equal(t, 1, l.Tracked())
}
