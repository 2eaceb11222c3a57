package cache

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	config "example.com/postfeed/internal/init"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2021, 4, 3, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

//
// --- Memory backend ---
//

func TestMemory_Expiry(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	m := NewMemory(clock.Now)

	require.NoError(t, m.Set(ctx, "k", []byte("v"), 20*time.Second))

	got, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), got)

	clock.Advance(19 * time.Second)
	_, ok, _ = m.Get(ctx, "k")
	assert.True(t, ok, "entry must survive until the TTL elapses")

	clock.Advance(time.Second)
	_, ok, _ = m.Get(ctx, "k")
	assert.False(t, ok, "entry must expire at the TTL")
	assert.Zero(t, m.Len())
}

func TestMemory_ClearAndMiss(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(nil)

	_, ok, err := m.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Set(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, m.Set(ctx, "b", []byte("2"), time.Minute))
	assert.Equal(t, 2, m.Len())

	require.NoError(t, m.Clear(ctx))
	assert.Zero(t, m.Len())
}

func TestMemory_SetSweepsExpiredEntries(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	m := NewMemory(clock.Now)
	m.MaxEntries = 0

	for i := 0; i < 500; i++ {
		require.NoError(t, m.Set(ctx, fmt.Sprintf("index_page:/?x=%d:", i), []byte("v"), 20*time.Second))
	}
	assert.Equal(t, 500, m.Len())

	clock.Advance(time.Hour)
	require.NoError(t, m.Set(ctx, "index_page:/:", []byte("v"), 20*time.Second))
	assert.Equal(t, 1, m.Len())
}

func TestMemory_CullsWhenFull(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(newFakeClock().Now)
	m.MaxEntries = 9

	for i := 0; i < 9; i++ {
		require.NoError(t, m.Set(ctx, fmt.Sprint(i), []byte("v"), time.Minute))
	}
	assert.Equal(t, 9, m.Len())

	require.NoError(t, m.Set(ctx, "new", []byte("v"), time.Minute))
	assert.Equal(t, 7, m.Len(), "a third is evicted before the new entry goes in")
	_, ok, _ := m.Get(ctx, "new")
	assert.True(t, ok)

	// overwriting an existing key never evicts
	require.NoError(t, m.Set(ctx, "new", []byte("w"), time.Minute))
	assert.Equal(t, 7, m.Len())

	for i := 0; i < 100; i++ {
		require.NoError(t, m.Set(ctx, fmt.Sprintf("k%d", i), []byte("v"), time.Minute))
		assert.LessOrEqual(t, m.Len(), m.MaxEntries)
	}
}

func TestMemory_NonPositiveTTLIsNotStored(t *testing.T) {
	m := NewMemory(nil)
	require.NoError(t, m.Set(context.Background(), "k", []byte("v"), 0))
	assert.Zero(t, m.Len())
}

func TestMemory_ValuesAreCopied(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(nil)

	buf := []byte("abc")
	require.NoError(t, m.Set(ctx, "k", buf, time.Minute))
	buf[0] = 'x'

	got, _, _ := m.Get(ctx, "k")
	assert.Equal(t, "abc", string(got))
	got[1] = 'y'

	again, _, _ := m.Get(ctx, "k")
	assert.Equal(t, "abc", string(again))
}

func TestMemory_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", i%5)
			_ = m.Set(ctx, key, []byte("v"), time.Minute)
			_, _, _ = m.Get(ctx, key)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 5, m.Len())
}

func TestTTLSeconds(t *testing.T) {
	assert.Equal(t, 0, ttlSeconds(0))
	assert.Equal(t, 1, ttlSeconds(200*time.Millisecond))
	assert.Equal(t, 20, ttlSeconds(20*time.Second))
	assert.Equal(t, 21, ttlSeconds(20*time.Second+time.Millisecond))
}

//
// --- Page middleware ---
//

func counterHandler(status int) (http.Handler, *int) {
	calls := 0
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		fmt.Fprintf(w, "render #%d", calls)
	}), &calls
}

func serve(h http.Handler, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestPage_ServesCachedBodyWithinTTL(t *testing.T) {
	clock := newFakeClock()
	c := NewMemory(clock.Now)
	next, calls := counterHandler(http.StatusOK)
	h := Page(c, "index_page", 20*time.Second, nil)(next)

	first := serve(h, http.MethodGet, "/")
	second := serve(h, http.MethodGet, "/")

	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "text/html; charset=utf-8", second.Header().Get("Content-Type"))
	assert.Equal(t, 1, *calls)

	clock.Advance(20 * time.Second)
	third := serve(h, http.MethodGet, "/")
	assert.Equal(t, "render #2", third.Body.String())
}

func TestPage_ClearForcesRerender(t *testing.T) {
	c := NewMemory(nil)
	next, calls := counterHandler(http.StatusOK)
	h := Page(c, "index_page", time.Minute, nil)(next)

	serve(h, http.MethodGet, "/")
	require.NoError(t, c.Clear(context.Background()))
	rec := serve(h, http.MethodGet, "/")

	assert.Equal(t, "render #2", rec.Body.String())
	assert.Equal(t, 2, *calls)
}

func TestPage_KeyIncludesQueryAndViewer(t *testing.T) {
	c := NewMemory(nil)
	next, calls := counterHandler(http.StatusOK)
	viewer := "guest"
	h := Page(c, "index_page", time.Minute, func(*http.Request) string { return viewer })(next)

	serve(h, http.MethodGet, "/")
	serve(h, http.MethodGet, "/?page=2")
	viewer = "user:7"
	serve(h, http.MethodGet, "/")

	assert.Equal(t, 3, *calls)
	assert.Equal(t, 3, c.Len())
}

func TestPage_SkipsNonOKAndNonGET(t *testing.T) {
	c := NewMemory(nil)

	failing, _ := counterHandler(http.StatusInternalServerError)
	serve(Page(c, "index_page", time.Minute, nil)(failing), http.MethodGet, "/")
	assert.Zero(t, c.Len(), "error responses must not be cached")

	ok, calls := counterHandler(http.StatusOK)
	h := Page(c, "index_page", time.Minute, nil)(ok)
	serve(h, http.MethodPost, "/")
	serve(h, http.MethodPost, "/")
	assert.Equal(t, 2, *calls)
	assert.Zero(t, c.Len())
}

func TestPageKey(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?page=3", nil)
	assert.Equal(t, "index_page:/?page=3", PageKey("index_page", r, nil))
	assert.Equal(t, "index_page:/?page=3:u1", PageKey("index_page", r, func(*http.Request) string { return "u1" }))
}

//
// --- Cassandra backend (requires a running cluster) ---
//

func TestCassandra_RoundTrip(t *testing.T) {
	host := os.Getenv("CASSANDRA_TEST_HOST")
	if host == "" {
		t.Skip("CASSANDRA_TEST_HOST not set")
	}

	c, err := NewCassandra(&config.Config{
		CassandraHost:     host,
		CassandraKeyspace: "postfeed_test",
		CassandraTimeout:  10 * time.Second,
	})
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	require.NoError(t, c.Clear(ctx))
	require.NoError(t, c.Set(ctx, "k", []byte("v"), 20*time.Second))

	got, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), got)

	require.NoError(t, c.Clear(ctx))
	_, ok, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}
