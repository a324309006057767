package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type visitor struct {
	limiter *rate.Limiter
	seen    time.Time
}

// RateLimit gives every client IP a token bucket holding limit requests that
// refills completely over per. A non-positive limit disables limiting.
// Expensive routes (batch launches, regenerations, exports) mount it.
func RateLimit(limit int, per time.Duration) func(http.Handler) http.Handler {
	return rateLimit(limit, per, time.Now)
}

func rateLimit(limit int, per time.Duration, now func() time.Time) func(http.Handler) http.Handler {
	if limit <= 0 || per <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	every := rate.Every(per / time.Duration(limit))

	var (
		mu        sync.Mutex
		visitors  = make(map[string]*visitor)
		lastSweep time.Time
	)
	// reserve takes a token for ip and returns how long the caller must wait
	// for it; a waiting reservation is cancelled.
	reserve := func(ip string, t time.Time) time.Duration {
		mu.Lock()
		defer mu.Unlock()
		if t.Sub(lastSweep) > per {
			for key, v := range visitors {
				if t.Sub(v.seen) > per {
					delete(visitors, key)
				}
			}
			lastSweep = t
		}
		v, ok := visitors[ip]
		if !ok {
			v = &visitor{limiter: rate.NewLimiter(every, limit)}
			visitors[ip] = v
		}
		v.seen = t
		res := v.limiter.ReserveN(t, 1)
		delay := res.DelayFrom(t)
		if delay > 0 {
			res.CancelAt(t)
		}
		return delay
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if wait := reserve(ClientIP(r), now()); wait > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":{"code":"rate_limited","message":"too many requests"}}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
