package server

import (
	"bytes"
	"log"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	// idempotencyHeader carries the client-chosen key.
	idempotencyHeader = "Idempotency-Key"

	// idempotencyTTL is how long cached responses are replayed.
	idempotencyTTL = 24 * time.Hour

	// lockTimeout bounds the per-key lock so a crashed request cannot
	// wedge its key forever.
	lockTimeout = 10 * time.Second

	idempotencyKeyPrefix = "idempotency:"
	lockKeyPrefix        = "idempotency-lock:"
)

// responseRecorder captures status and body so successful responses
// can be cached for replay.
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       bytes.Buffer
}

func (rw *responseRecorder) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseRecorder) Write(b []byte) (int, error) {
	rw.body.Write(b)
	return rw.ResponseWriter.Write(b)
}

// Idempotency replays cached responses for repeated Idempotency-Key
// values and rejects concurrent duplicates with 409. Requests without
// the header pass straight through.
func Idempotency(rdb *redis.Client) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(idempotencyHeader)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			cacheKey := idempotencyKeyPrefix + key
			lockKey := lockKeyPrefix + key

			if cached, err := rdb.Get(ctx, cacheKey).Result(); err == nil {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("X-Idempotency-Hit", "true")
				w.Write([]byte(cached))
				return
			}

			acquired, err := rdb.SetNX(ctx, lockKey, "processing", lockTimeout).Result()
			if err != nil {
				log.Printf("server: idempotency lock: %v", err)
				writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "service temporarily unavailable"})
				return
			}
			if !acquired {
				writeJSON(w, http.StatusConflict, map[string]string{
					"error":   "conflict",
					"message": "a request with this idempotency key is being processed",
				})
				return
			}
			defer func() {
				if err := rdb.Del(ctx, lockKey).Err(); err != nil {
					log.Printf("server: idempotency unlock: %v", err)
				}
			}()

			rec := &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rec, r)

			// Only successful outcomes are replayable; failures may be retried.
			if rec.statusCode >= 200 && rec.statusCode < 300 {
				if err := rdb.Set(ctx, cacheKey, rec.body.String(), idempotencyTTL).Err(); err != nil {
					log.Printf("server: idempotency cache: %v", err)
				}
			}
		})
	}
}
