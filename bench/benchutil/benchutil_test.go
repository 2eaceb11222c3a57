package benchutil

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"example.com/postfeed/cmd/server"
	"example.com/postfeed/internal/cache"
	"example.com/postfeed/internal/middleware"
	"example.com/postfeed/internal/render"
	"example.com/postfeed/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*httptest.Server, *store.MockStore) {
	t.Helper()
	html, err := render.New()
	require.NoError(t, err)

	st := store.NewMock()
	s := server.New(server.Deps{
		Store:    st,
		Cache:    cache.NewMemory(nil),
		CacheTTL: 20 * time.Second,
		Renderer: html,
		Auth:     middleware.NewAuth("bench-secret", time.Hour),
	})
	ts := httptest.NewServer(s.Routes())
	t.Cleanup(ts.Close)
	return ts, st
}

func TestSignupAndAuthorizedPost(t *testing.T) {
	ts, st := newTestServer(t)
	client, err := NewClient("", "", false)
	require.NoError(t, err)

	token, err := Signup(client, ts.URL, "bench-user", "bench-password")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	req, err := NewRequest(http.MethodPost, ts.URL+"/new/", token, url.Values{"text": {"load test post"}})
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Len(t, st.Posts, 1)
}

func TestSignup_RejectedIsError(t *testing.T) {
	ts, _ := newTestServer(t)
	client, err := NewClient("", "", false)
	require.NoError(t, err)

	_, err = Signup(client, ts.URL, "user", "short")
	assert.Error(t, err)
}

func TestNewClient_MissingCert(t *testing.T) {
	_, err := NewClient("missing.pem", "missing-key.pem", false)
	assert.Error(t, err)
}

func TestStats(t *testing.T) {
	data := []float64{5, 1, 4, 2, 3}
	assert.InDelta(t, 3.0, TrimmedMean(data, 0), 1e-9)
	assert.Equal(t, []float64{1, 2, 3, 4, 5}, data, "sorted in place")

	assert.InDelta(t, 3.0, Percentile(data, 50), 1e-9)
	assert.InDelta(t, 4.6, Percentile(data, 90), 1e-9)
	assert.InDelta(t, 5.0, Percentile(data, 100), 1e-9)
	assert.InDelta(t, 3.0, TrimmedMean([]float64{100, 3, 3, 3, -100}, 20), 1e-9)
	assert.InDelta(t, 3.0, TrimmedPercentile([]float64{100, 3, 3, 3, -100}, 99, 20), 1e-9)

	assert.Zero(t, TrimmedMean(nil, 1))
	assert.Zero(t, Percentile(nil, 50))
	assert.InDelta(t, 7.0, TrimmedMean([]float64{7}, 50), 1e-9)
}

func TestWriteCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lat.csv")
	require.NoError(t, WriteCSV(path, []float64{1.5, 2}))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"latency_ms", "1.500", "2.000"}, strings.Fields(string(b)))
}
