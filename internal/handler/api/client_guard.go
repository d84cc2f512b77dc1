package api

import (
	"net/http"
	"sync"
	"time"

	"OptionPulse/internal/service/ratelimit"
	xhttp "OptionPulse/pkg/http"

	"github.com/labstack/echo/v4"
)

// clientGuard caps query requests per remote address. Independent of the
// engine's signal budget; this only protects the read API from polling abuse.
type clientGuard struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	clients map[string]*ratelimit.SlidingWindow
}

func newClientGuard(limit int, window time.Duration) *clientGuard {
	return &clientGuard{
		limit:   limit,
		window:  window,
		clients: make(map[string]*ratelimit.SlidingWindow),
	}
}

func (g *clientGuard) Middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		now := time.Now()
		ip := c.RealIP()

		g.mu.Lock()
		w, ok := g.clients[ip]
		if !ok {
			if len(g.clients) >= 4096 {
				g.prune(now)
			}
			w = ratelimit.NewSlidingWindow(g.limit, g.window)
			g.clients[ip] = w
		}
		admitted := w.Admit(now)
		g.mu.Unlock()

		if !admitted {
			return xhttp.DataResponse(c, http.StatusTooManyRequests, "rate limit exceeded")
		}
		return next(c)
	}
}

// prune drops idle clients; caller holds the mutex.
func (g *clientGuard) prune(now time.Time) {
	for ip, w := range g.clients {
		if w.Count(now) == 0 {
			delete(g.clients, ip)
		}
	}
}
