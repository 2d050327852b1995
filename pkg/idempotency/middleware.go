// Package idempotency guards mutating HTTP endpoints against duplicate
// submissions via an Idempotency-Key header backed by redis.
package idempotency

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

type Store struct {
	log *slog.Logger
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(log *slog.Logger, rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{log: log, rdb: rdb, ttl: ttl}
}

func (s *Store) Key(method, path, key string) string {
	return fmt.Sprintf("idem:%s:%s:%s", method, path, key)
}

// Seen records the key and reports whether it was already present.
func (s *Store) Seen(ctx context.Context, key string) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, key, "1", s.ttl).Result()
	if err != nil {
		return false, err
	}
	return !ok, nil
}

// Middleware rejects a request whose Idempotency-Key was already accepted
// with 409. Requests without the header pass through, as do all requests
// when redis is unreachable (fail open, logged).
func (s *Store) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("Idempotency-Key")
		if key == "" {
			next.ServeHTTP(w, r)
			return
		}

		seen, err := s.Seen(r.Context(), s.Key(r.Method, r.URL.Path, key))
		if err != nil {
			s.log.Error("idempotency check failed", "err", err)
			next.ServeHTTP(w, r)
			return
		}
		if seen {
			s.log.Info("duplicate request rejected", "key", key, "path", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusConflict)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "duplicate request"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
