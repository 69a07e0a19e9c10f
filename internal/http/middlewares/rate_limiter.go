package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

type window struct {
	count int
	start time.Time
}

// RateLimiter allows limit requests per client IP in each fixed window.
// Rejected requests get 429 with Retry-After set to the rest of the window.
func RateLimiter(limit int, size time.Duration) echo.MiddlewareFunc {
	var (
		mu      sync.Mutex
		windows = make(map[string]*window)
		swept   = time.Now()
	)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			now := time.Now()
			key := c.RealIP()

			mu.Lock()
			if now.Sub(swept) > size {
				for k, w := range windows {
					if now.Sub(w.start) > size {
						delete(windows, k)
					}
				}
				swept = now
			}

			w, ok := windows[key]
			if !ok || now.Sub(w.start) > size {
				w = &window{start: now}
				windows[key] = w
			}

			if w.count >= limit {
				retry := size - now.Sub(w.start)
				mu.Unlock()
				c.Response().Header().Set("Retry-After", strconv.Itoa(int(retry.Seconds())+1))
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}

			w.count++
			mu.Unlock()

			return next(c)
		}
	}
}
