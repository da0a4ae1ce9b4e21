package middleware

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/jodise/jodise-backend/api/responses"
	pkgerrors "github.com/jodise/jodise-backend/pkg/errors"
	"github.com/jodise/jodise-backend/pkg/logger"
)

const (
	rateLimitPerSecond = 20
	rateLimitBurst     = 40
	limiterIdleEvict   = 10 * time.Minute
)

type actorLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimit applies a token-bucket limit per authenticated user, falling back
// to the remote address for unauthenticated requests. Idle buckets are evicted
// lazily so the map does not grow unbounded.
func RateLimit() func(http.Handler) http.Handler {
	var (
		mu        sync.Mutex
		limiters  = make(map[string]*actorLimiter)
		lastSweep = time.Now()
	)

	lookup := func(key string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()

		now := time.Now()
		if now.Sub(lastSweep) > limiterIdleEvict {
			for k, v := range limiters {
				if now.Sub(v.lastSeen) > limiterIdleEvict {
					delete(limiters, k)
				}
			}
			lastSweep = now
		}

		entry, ok := limiters[key]
		if !ok {
			entry = &actorLimiter{limiter: rate.NewLimiter(rateLimitPerSecond, rateLimitBurst)}
			limiters[key] = entry
		}
		entry.lastSeen = now
		return entry.limiter
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := UserIDFromContext(r.Context())
			if key == "" {
				if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
					key = host
				} else {
					key = r.RemoteAddr
				}
			}

			if !lookup(key).Allow() {
				responses.WriteError(r.Context(), nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

const (
	webhookWindowLimit = 120
	webhookWindow      = time.Minute
)

// WindowStore counts hits against a shared fixed window.
type WindowStore interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// WebhookRateLimit throttles gateway callbacks with a Redis fixed window
// shared across instances, ahead of signature verification. The limiter fails
// open when the store is absent or erroring: dropping a legitimate callback
// costs more than absorbing a burst.
func WebhookRateLimit(store WindowStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if store == nil {
				next.ServeHTTP(w, r)
				return
			}
			allowed, hits, err := store.FixedWindowAllow(r.Context(), "webhooks", webhookWindowLimit, webhookWindow)
			if err != nil {
				if logg != nil {
					logg.Warn(r.Context(), "webhook rate limit check failed: "+err.Error())
				}
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				if logg != nil {
					logg.Warn(logg.WithField(r.Context(), "hits", hits), "webhook rate limit exceeded")
				}
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
