// ABOUTME: Tests for the dedupe seen-set used for realtime rows and request ids.
// ABOUTME: Validates TTL expiry with a fake clock, size eviction, sweeping, and races.

package dedupe

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func newTestCache(t *testing.T, ttl time.Duration, size int) (*Cache[string], *fakeClock) {
	clock := newFakeClock()
	c := New[string](ttl, size, WithClock[string](clock.Now))
	t.Cleanup(c.Close)
	return c, clock
}

func TestCache_SeenAfterMark(t *testing.T) {
	c, _ := newTestCache(t, time.Minute, 10)

	assert.False(t, c.Seen("row-1"))
	c.Mark("row-1")
	assert.True(t, c.Seen("row-1"))
	assert.False(t, c.Seen("row-2"))
}

func TestCache_Expires(t *testing.T) {
	c, clock := newTestCache(t, time.Minute, 10)

	c.Mark("row-1")
	clock.Advance(59 * time.Second)
	assert.True(t, c.Seen("row-1"))

	clock.Advance(2 * time.Second)
	assert.False(t, c.Seen("row-1"))
}

func TestCache_MarkRefreshes(t *testing.T) {
	c, clock := newTestCache(t, time.Minute, 10)

	c.Mark("row-1")
	clock.Advance(40 * time.Second)
	c.Mark("row-1")
	clock.Advance(40 * time.Second)

	assert.True(t, c.Seen("row-1"), "second mark should extend the ttl")
}

func TestCache_MarkIfNew(t *testing.T) {
	c, clock := newTestCache(t, time.Minute, 10)

	assert.True(t, c.MarkIfNew("req-1"), "first sighting is new")
	assert.False(t, c.MarkIfNew("req-1"), "second sighting is a duplicate")

	clock.Advance(2 * time.Minute)
	assert.True(t, c.MarkIfNew("req-1"), "expired keys are new again")
}

func TestCache_Forget(t *testing.T) {
	c, _ := newTestCache(t, time.Minute, 10)

	c.Mark("req-1")
	c.Forget("req-1")
	assert.False(t, c.Seen("req-1"))
	assert.Equal(t, 0, c.Len())

	c.Forget("never-marked")
}

func TestCache_EvictsLeastRecentlyMarked(t *testing.T) {
	c, _ := newTestCache(t, time.Minute, 3)

	c.Mark("a")
	c.Mark("b")
	c.Mark("c")
	c.Mark("a") // a becomes most recent
	c.Mark("d") // evicts b

	assert.True(t, c.Seen("a"))
	assert.False(t, c.Seen("b"))
	assert.True(t, c.Seen("c"))
	assert.True(t, c.Seen("d"))
	assert.Equal(t, 3, c.Len())
}

func TestCache_SweepRemovesExpired(t *testing.T) {
	c, clock := newTestCache(t, time.Minute, 10)

	c.Mark("old-1")
	c.Mark("old-2")
	clock.Advance(30 * time.Second)
	c.Mark("fresh")
	clock.Advance(45 * time.Second)

	c.sweep()

	assert.Equal(t, 1, c.Len())
	assert.True(t, c.Seen("fresh"))
}

func TestCache_IntKeys(t *testing.T) {
	c := New[int64](time.Minute, 10)
	defer c.Close()

	assert.True(t, c.MarkIfNew(42))
	assert.False(t, c.MarkIfNew(42))
}

func TestCache_MarkIfNew_SingleWinner(t *testing.T) {
	c, _ := newTestCache(t, time.Minute, 100)

	const goroutines = 100
	var winners int32
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			if c.MarkIfNew("contested") {
				atomic.AddInt32(&winners, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), winners)
}

func TestCache_CloseIsIdempotent(t *testing.T) {
	c := New[string](time.Minute, 10)
	c.Close()
	c.Close()
}
