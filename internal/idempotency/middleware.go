package idempotency

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"commitvault/internal/logger"
)

const (
	HeaderKey      = "X-Idempotency-Key"
	HeaderReplayed = "Idempotent-Replayed"

	maxBody = 1 << 20
)

// Guard replays the stored response for a repeated X-Idempotency-Key.
// Requests without the header pass through untouched. A key reused with a
// different body, or reused while its first request is still running, is
// answered with 409. Server errors and 401s are not stored so the client may
// retry them; 502 is the exception, it reports a submission whose outcome is
// unknown and is replayed like any other answer.
type Guard struct {
	store Store
	ttl   time.Duration
	now   func() time.Time

	mu       sync.Mutex
	inflight map[string]struct{}
}

func NewGuard(store Store, ttl time.Duration) *Guard {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Guard{
		store:    store,
		ttl:      ttl,
		now:      time.Now,
		inflight: make(map[string]struct{}),
	}
}

func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimSpace(r.Header.Get(HeaderKey))
		if key == "" {
			next.ServeHTTP(w, r)
			return
		}
		log := logger.FromRequest(r)
		ctx := r.Context()

		body, err := io.ReadAll(io.LimitReader(r.Body, maxBody+1))
		if err != nil || len(body) > maxBody {
			writeError(w, http.StatusBadRequest, "InvalidArgument", "invalid request body")
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
		fp := Fingerprint(r.Method, r.URL.Path, body)

		if !g.acquire(key) {
			writeError(w, http.StatusConflict, "Conflict", "request with this idempotency key is in progress")
			return
		}
		defer g.release(key)

		existing, err := g.store.Get(ctx, key)
		if err != nil {
			log.Error().Err(err).Str("key", key).Msg("idempotency lookup failed")
			writeError(w, http.StatusInternalServerError, "Internal", "internal error")
			return
		}
		if existing != nil {
			if existing.Fingerprint != fp {
				writeError(w, http.StatusConflict, "Conflict", "idempotency key reused with a different request")
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set(HeaderReplayed, "true")
			w.WriteHeader(existing.StatusCode)
			_, _ = w.Write(existing.Response)
			return
		}

		rec := &capture{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		if !storable(rec.status) {
			return
		}

		now := g.now()
		err = g.store.Save(ctx, key, Record{
			Fingerprint: fp,
			StatusCode:  rec.status,
			Response:    rec.buf.Bytes(),
			CreatedAt:   now,
			ExpiresAt:   now.Add(g.ttl),
		})
		if err != nil {
			log.Warn().Err(err).Str("key", key).Msg("idempotency save failed")
		}
	})
}

func storable(status int) bool {
	switch {
	case status == http.StatusBadGateway:
		return true
	case status == http.StatusUnauthorized:
		return false
	default:
		return status < http.StatusInternalServerError
	}
}

func (g *Guard) acquire(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.inflight[key]; busy {
		return false
	}
	g.inflight[key] = struct{}{}
	return true
}

func (g *Guard) release(key string) {
	g.mu.Lock()
	delete(g.inflight, key)
	g.mu.Unlock()
}

// capture tees the response so it can be stored after the handler returns.
type capture struct {
	http.ResponseWriter
	status      int
	buf         bytes.Buffer
	wroteHeader bool
}

func (c *capture) WriteHeader(code int) {
	if !c.wroteHeader {
		c.status = code
		c.wroteHeader = true
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *capture) Write(b []byte) (int, error) {
	if !c.wroteHeader {
		c.WriteHeader(http.StatusOK)
	}
	c.buf.Write(b)
	return c.ResponseWriter.Write(b)
}

func writeError(w http.ResponseWriter, status int, kind, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{"kind": kind, "message": msg},
	})
}
