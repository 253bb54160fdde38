package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"finca/internal/auth"
	applog "finca/internal/log"
	"finca/internal/metrics"
	"finca/internal/services"
)

// SessionCookie carries the session token for browser clients.
const SessionCookie = "finca_session"

// ReadinessCheck is one dependency checked by /readyz.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Deps wires a Server. Metrics and Checks are optional.
type Deps struct {
	Ledger             *services.LedgerService
	Attachments        *services.AttachmentService
	Provider           *auth.Provider
	Metrics            *metrics.Metrics
	Logger             *applog.Logger
	Checks             []ReadinessCheck
	RateLimitPerMinute int
}

type Server struct {
	http.Server
	ledger      *services.LedgerService
	attachments *services.AttachmentService
	provider    *auth.Provider
	metrics     *metrics.Metrics
	logger      *applog.Logger
	httpLog     *applog.StructuredLogger
	checks      []ReadinessCheck
	rateLimiter *rateLimiter

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, d Deps) *Server {
	if d.Logger == nil {
		d.Logger = applog.New(applog.DefaultConfig())
	}
	if d.RateLimitPerMinute <= 0 {
		d.RateLimitPerMinute = 60
	}
	logger := d.Logger.WithComponent(applog.ComponentHTTP)

	s := &Server{
		ledger:      d.Ledger,
		attachments: d.Attachments,
		provider:    d.Provider,
		metrics:     d.Metrics,
		logger:      logger,
		httpLog:     applog.NewStructuredLogger(logger),
		checks:      d.Checks,
		rateLimiter: newRateLimiter(d.RateLimitPerMinute),
	}

	mux := http.NewServeMux()
	s.handle(mux, "GET /healthz", handleHealth)
	s.handle(mux, "GET /readyz", s.handleReady)
	if d.Metrics != nil {
		mux.Handle("GET /metrics", d.Metrics.Handler())
	}

	s.handle(mux, "GET /api/contributors", s.handleContributors)
	s.handle(mux, "GET /api/dashboard", s.handleDashboard)
	s.handle(mux, "POST /api/refresh", s.handleRefresh)

	s.handle(mux, "GET /api/expenses", s.handleListExpenses)
	s.handle(mux, "POST /api/expenses", s.handleCreateExpense)
	s.handle(mux, "DELETE /api/expenses/{id}", s.handleDeleteExpense)
	s.handle(mux, "POST /api/expenses/{id}/attachments", s.handleAttach)

	s.handle(mux, "GET /api/contributions", s.handleListContributions)
	s.handle(mux, "POST /api/contributions", s.handleCreateContribution)
	s.handle(mux, "DELETE /api/contributions/{id}", s.handleDeleteContribution)

	s.handle(mux, "POST /auth/logout", s.handleLogout)

	var h http.Handler = mux
	h = s.withSession(h)
	h = s.withSecurity(h)
	h = applog.RequestIDMiddleware(requestIDFrom)(h)
	h = applog.Middleware(logger)(h)
	h = withRequestID(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}
	return s
}

func (s *Server) handle(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.Handle(pattern, s.instrument(pattern, h))
}

// Shutdown stops the rate limiter sweep and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
