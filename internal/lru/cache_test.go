package lru

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type eviction struct {
	key    string
	val    int
	reason EvictReason
}

func newRecorded(capacity int, ttl time.Duration, clk *clock) (*Cache[string, int], *[]eviction) {
	var (
		mu  sync.Mutex
		out []eviction
	)
	c := New(Options[string, int]{
		Capacity: capacity,
		IdleTTL:  ttl,
		Now:      clk.Now,
		OnEvict: func(k string, v int, r EvictReason) {
			mu.Lock()
			out = append(out, eviction{k, v, r})
			mu.Unlock()
		},
	})
	return c, &out
}

func TestCache_GetPut(t *testing.T) {
	c := New(Options[string, int]{Capacity: 2})
	c.Put("a", 1)
	c.Put("b", 2)

	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	c.Put("a", 10)
	v, _ = c.Get("a")
	assert.Equal(t, 10, v)
	assert.Equal(t, 2, c.Len())

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestCache_CapacityEviction(t *testing.T) {
	clk := &clock{now: time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)}
	c, evicted := newRecorded(2, 0, clk)

	c.Put("a", 1)
	c.Put("b", 2)
	c.Get("a")
	c.Put("c", 3)

	require.Len(t, *evicted, 1)
	assert.Equal(t, eviction{"b", 2, EvictedCapacity}, (*evicted)[0])
	assert.Equal(t, []string{"c", "a"}, c.Keys())
}

func TestCache_IdleExpiryOnGet(t *testing.T) {
	clk := &clock{now: time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)}
	c, evicted := newRecorded(4, time.Hour, clk)

	c.Put("a", 1)
	clk.Advance(59 * time.Minute)
	_, ok := c.Get("a")
	require.True(t, ok, "access refreshes the idle clock")

	clk.Advance(61 * time.Minute)
	_, ok = c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
	require.Len(t, *evicted, 1)
	assert.Equal(t, EvictedIdle, (*evicted)[0].reason)
	assert.Equal(t, "idle", EvictedIdle.String())
}

func TestCache_Sweep(t *testing.T) {
	clk := &clock{now: time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)}
	c, evicted := newRecorded(8, time.Hour, clk)

	c.Put("old1", 1)
	c.Put("old2", 2)
	clk.Advance(50 * time.Minute)
	c.Put("fresh", 3)
	clk.Advance(20 * time.Minute)

	assert.Equal(t, 2, c.Sweep())
	assert.Equal(t, []string{"fresh"}, c.Keys())
	assert.Len(t, *evicted, 2)
}

func TestCache_SweepWithoutTTL(t *testing.T) {
	c := New(Options[string, int]{Capacity: 1})
	c.Put("a", 1)
	assert.Equal(t, 0, c.Sweep())
}

func TestCache_DeleteSkipsCallback(t *testing.T) {
	clk := &clock{now: time.Now()}
	c, evicted := newRecorded(2, 0, clk)
	c.Put("a", 1)
	assert.True(t, c.Delete("a"))
	assert.False(t, c.Delete("a"))
	assert.Empty(t, *evicted)
}

func TestCache_Janitor(t *testing.T) {
	clk := &clock{now: time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)}
	c, _ := newRecorded(4, time.Minute, clk)
	c.Put("a", 1)
	clk.Advance(2 * time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	c.StartJanitor(ctx, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return c.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	c.Wait()
}

func TestCache_Concurrent(t *testing.T) {
	c := New(Options[string, int]{Capacity: 16})
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("k%d", (g*7+i)%32)
				c.Put(key, i)
				c.Get(key)
			}
		}(g)
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Len(), 16)
}

func TestNew_PanicsOnZeroCapacity(t *testing.T) {
	assert.Panics(t, func() { New(Options[string, int]{}) })
}
