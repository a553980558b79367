package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"sync"
	"time"
)

// IdempotencyStore caches responses to mutating requests carrying an
// Idempotency-Key header so that retries replay the original response
// instead of re-executing the handler.
type IdempotencyStore struct {
	mu      sync.Mutex
	entries map[string]*cachedResponse
	ttl     time.Duration
	stopCh  chan struct{}
}

type cachedResponse struct {
	status    int
	header    http.Header
	body      []byte
	expiresAt time.Time
	done      chan struct{} // closed once the first request finishes
}

// IdempotencyConfig holds configuration for the idempotency store. Zero
// values default to a 24h TTL with hourly cleanup.
type IdempotencyConfig struct {
	TTL     time.Duration
	Cleanup time.Duration
}

// NewIdempotencyStore creates a store and starts its cleanup sweep
func NewIdempotencyStore(cfg IdempotencyConfig) *IdempotencyStore {
	if cfg.TTL == 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.Cleanup == 0 {
		cfg.Cleanup = time.Hour
	}

	s := &IdempotencyStore{
		entries: make(map[string]*cachedResponse),
		ttl:     cfg.TTL,
		stopCh:  make(chan struct{}),
	}
	go s.sweep(cfg.Cleanup)
	return s
}

// Stop terminates the cleanup goroutine
func (s *IdempotencyStore) Stop() {
	close(s.stopCh)
}

func (s *IdempotencyStore) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.mu.Lock()
			now := time.Now()
			for key, e := range s.entries {
				if !e.expiresAt.IsZero() && e.expiresAt.Before(now) {
					delete(s.entries, key)
				}
			}
			s.mu.Unlock()
		case <-s.stopCh:
			return
		}
	}
}

// begin registers intent to execute the request. When a completed or
// in-flight entry exists it is returned with fresh=false; the caller must
// wait on done before reading the cached fields of an in-flight entry.
func (s *IdempotencyStore) begin(key string) (entry *cachedResponse, fresh bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[key]; ok {
		if e.expiresAt.IsZero() || e.expiresAt.After(time.Now()) {
			return e, false
		}
	}

	e := &cachedResponse{done: make(chan struct{})}
	s.entries[key] = e
	return e, true
}

// complete stores the response and wakes any waiters
func (s *IdempotencyStore) complete(e *cachedResponse, status int, header http.Header, body []byte) {
	s.mu.Lock()
	e.status = status
	e.header = header.Clone()
	e.body = body
	e.expiresAt = time.Now().Add(s.ttl)
	s.mu.Unlock()
	close(e.done)
}

// requestKey fingerprints the caller, key, and request so the same key used
// with a different body is treated as a distinct request.
func requestKey(userID, idempotencyKey, method, path string, body []byte) string {
	h := sha256.New()
	for _, part := range []string{userID, idempotencyKey, method, path} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

func replay(w http.ResponseWriter, e *cachedResponse) {
	for k, vals := range e.header {
		for _, v := range vals {
			w.Header().Add(k, v)
		}
	}
	w.Header().Set("X-Idempotency-Replayed", "true")
	w.WriteHeader(e.status)
	_, _ = w.Write(e.body)
}

// Idempotency replays cached responses for POST and PATCH requests that
// carry an Idempotency-Key header. Requests without the header pass through
// untouched.
func Idempotency(store *IdempotencyStore) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost && r.Method != http.MethodPatch {
				next.ServeHTTP(w, r)
				return
			}

			idempotencyKey := r.Header.Get("Idempotency-Key")
			if idempotencyKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			userID := GetUserID(r.Context())
			if userID == "" {
				userID = clientIP(r)
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			key := requestKey(userID, idempotencyKey, r.Method, r.URL.Path, body)

			entry, fresh := store.begin(key)
			if !fresh {
				<-entry.done
				replay(w, entry)
				return
			}

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			var captured bytes.Buffer
			tee := &teeWriter{statusRecorder: rec, buf: &captured}

			next.ServeHTTP(tee, r)

			store.complete(entry, rec.status, rec.Header(), captured.Bytes())
		})
	}
}

// teeWriter duplicates the response body into a buffer for caching
type teeWriter struct {
	*statusRecorder
	buf *bytes.Buffer
}

func (t *teeWriter) Write(b []byte) (int, error) {
	t.buf.Write(b)
	return t.statusRecorder.Write(b)
}
