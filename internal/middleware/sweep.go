package middleware

import (
	"net/http"
	"time"
)

// Sweeper evicts expired state when enough time has passed.
type Sweeper interface {
	MaybeSweep(now time.Time) int
}

// Sweep runs an opportunistic expiry sweep before every request. The sweeper
// throttles itself, so most calls return immediately.
func Sweep(s Sweeper) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s.MaybeSweep(time.Now())
			next.ServeHTTP(w, r)
		})
	}
}
