package cache

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"
)

// pageEntry is a cached HTTP response.
type pageEntry struct {
	Status int         `json:"status"`
	Header http.Header `json:"header"`
	Body   []byte      `json:"body"`
}

// KeyFunc derives the viewer-specific part of a cache key.
type KeyFunc func(r *http.Request) string

// PageKey joins the prefix, request URI and viewer identity.
func PageKey(prefix string, r *http.Request, vary KeyFunc) string {
	key := prefix + ":" + r.URL.RequestURI()
	if vary != nil {
		key += ":" + vary(r)
	}
	return key
}

// Page caches successful GET responses of next for ttl.
// Cache failures are logged and the request is served uncached.
func Page(c Cache, prefix string, ttl time.Duration, vary KeyFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				next.ServeHTTP(w, r)
				return
			}

			key := PageKey(prefix, r, vary)
			if raw, ok, err := c.Get(r.Context(), key); err == nil && ok {
				var e pageEntry
				if err := json.Unmarshal(raw, &e); err == nil {
					writeEntry(w, e)
					return
				}
				logg.Warn("cache", "Dropping undecodable page entry")
			}

			rec := &recorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			if rec.status != http.StatusOK {
				return
			}
			raw, err := json.Marshal(pageEntry{
				Status: rec.status,
				Header: w.Header().Clone(),
				Body:   rec.body.Bytes(),
			})
			if err != nil {
				logg.Error("cache", "Failed to encode page entry", err)
				return
			}
			if err := c.Set(r.Context(), key, raw, ttl); err != nil {
				logg.Error("cache", "Failed to store page entry", err)
			}
		})
	}
}

func writeEntry(w http.ResponseWriter, e pageEntry) {
	for k, vs := range e.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(e.Status)
	_, _ = w.Write(e.Body)
}

// recorder passes the response through while keeping a copy of it.
type recorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

func (r *recorder) WriteHeader(code int) {
	if r.wroteHeader {
		return
	}
	r.wroteHeader = true
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *recorder) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}
