package query

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyString(t *testing.T) {
	assert.Equal(t, "students|page=1|search=am", Key{"students", "page=1", "search=am"}.String())
	assert.Equal(t, "students|", Key{"students"}.String())
	assert.Equal(t, "students", Key{"students", "x"}.Resource())
}

func caches(t *testing.T) map[string]Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return map[string]Cache{
		"memory": NewMemoryCache(),
		"redis":  NewRedisCache(rdb),
	}
}

func TestCacheDeletePrefix(t *testing.T) {
	for name, c := range caches(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, c.Set(ctx, "students|page=1", []byte("a"), time.Minute))
			require.NoError(t, c.Set(ctx, "students|page=2", []byte("b"), time.Minute))
			require.NoError(t, c.Set(ctx, "parents|page=1", []byte("c"), time.Minute))

			require.NoError(t, c.DeletePrefix(ctx, "students|"))

			_, ok, err := c.Get(ctx, "students|page=1")
			require.NoError(t, err)
			assert.False(t, ok)
			v, ok, err := c.Get(ctx, "parents|page=1")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "c", string(v))
		})
	}
}

func TestMemoryCacheExpires(t *testing.T) {
	c := NewMemoryCache()
	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k|", []byte("v"), 5*time.Second))
	_, ok, _ := c.Get(ctx, "k|")
	assert.True(t, ok)

	now = now.Add(5 * time.Second)
	_, ok, _ = c.Get(ctx, "k|")
	assert.False(t, ok)
}

func TestMemoryCacheSweepsUnreadEntries(t *testing.T) {
	c := NewMemoryCache()
	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	for _, term := range []string{"a", "am", "ami", "amin"} {
		require.NoError(t, c.Set(ctx, "students|search="+term, []byte("{}"), 5*time.Second))
	}
	assert.Equal(t, 4, len(c.items))

	now = now.Add(10 * time.Second)
	require.NoError(t, c.Set(ctx, "students|search=amina", []byte("{}"), 5*time.Second))
	assert.Equal(t, 5, len(c.items), "no sweep before the interval")

	now = now.Add(sweepInterval)
	require.NoError(t, c.Set(ctx, "branches|", []byte("[]"), 5*time.Second))
	assert.Equal(t, 1, len(c.items), "expired entries are dropped without being read")
}

type page struct {
	Count int `json:"count"`
}

func TestFetchCachesUntilInvalidated(t *testing.T) {
	c := NewClient(NewMemoryCache(), time.Minute, nil)
	ctx := context.Background()
	calls := 0
	fn := func(context.Context) (page, error) {
		calls++
		return page{Count: calls}, nil
	}
	key := Key{"students", "page=1"}

	p, err := Fetch(ctx, c, key, fn)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Count)

	p, err = Fetch(ctx, c, key, fn)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Count, "served from cache")

	c.Invalidate(ctx, "students")
	p, err = Fetch(ctx, c, key, fn)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Count, "refetched after invalidation")
	assert.Equal(t, 2, calls)
}

func TestFetchDoesNotCacheErrors(t *testing.T) {
	c := NewClient(NewMemoryCache(), time.Minute, nil)
	ctx := context.Background()
	boom := errors.New("boom")
	_, err := Fetch(ctx, c, Key{"devices"}, func(context.Context) (page, error) { return page{}, boom })
	assert.ErrorIs(t, err, boom)

	p, err := Fetch(ctx, c, Key{"devices"}, func(context.Context) (page, error) { return page{Count: 3}, nil })
	require.NoError(t, err)
	assert.Equal(t, 3, p.Count)
}

func TestSequencerRejectsSupersededTickets(t *testing.T) {
	s := NewSequencer()
	first := s.Begin("attendance|search")
	second := s.Begin("attendance|search")
	other := s.Begin("students|search")

	assert.False(t, s.Commit(first))
	assert.True(t, s.Commit(second))
	assert.True(t, s.Commit(other))
}

func TestDebouncerDeliversLastValueOfBurst(t *testing.T) {
	var mu sync.Mutex
	var got []string
	d := NewDebouncer(30*time.Millisecond, func(v string) {
		mu.Lock()
		got = append(got, v)
		mu.Unlock()
	})
	for _, v := range []string{"a", "am", "ami", "amin"} {
		d.Trigger(v)
		time.Sleep(5 * time.Millisecond)
	}
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, time.Second, 10*time.Millisecond)
	time.Sleep(60 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"amin"}, got)
}

func TestDebouncerStop(t *testing.T) {
	var fired atomic.Int32
	d := NewDebouncer(20*time.Millisecond, func(string) { fired.Add(1) })
	d.Trigger("x")
	d.Stop()
	d.Trigger("y")
	time.Sleep(60 * time.Millisecond)
	assert.Zero(t, fired.Load())
}

func TestSearchSessionDropsSlowStaleAnswer(t *testing.T) {
	reg := NewRegistry(10*time.Millisecond, nil)
	release := make(chan struct{})
	s := reg.Open(context.Background(), "sess-1", func(ctx context.Context, term string) (any, error) {
		if term == "slow" {
			<-release
		}
		return "results for " + term, nil
	})
	defer reg.Close(s)

	s.Input("slow")
	time.Sleep(40 * time.Millisecond) // "slow" is now in flight
	s.Input("fast")

	select {
	case res := <-s.Results():
		assert.Equal(t, "fast", res.Term)
		assert.Equal(t, "results for fast", res.Data)
	case <-time.After(time.Second):
		t.Fatal("no result")
	}

	close(release)
	select {
	case res := <-s.Results():
		t.Fatalf("stale answer delivered: %+v", res)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRegistryCloseEndsSession(t *testing.T) {
	reg := NewRegistry(10*time.Millisecond, nil)
	s := reg.Open(context.Background(), "sess-2", func(context.Context, string) (any, error) { return nil, nil })
	_, ok := reg.Get("sess-2")
	require.True(t, ok)

	reg.Close(s)
	_, ok = reg.Get("sess-2")
	assert.False(t, ok)
	select {
	case <-s.Done():
	default:
		t.Fatal("session context still alive")
	}
}
