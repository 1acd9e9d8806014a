// Package http exposes the CRM over a JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"crm/internal/cache"
	crmlog "crm/internal/log"
	"crm/internal/metrics"
	"crm/internal/middleware/ratelimit"
	"crm/internal/middleware/security"
	"crm/internal/middleware/trace"
	"crm/internal/services"
)

type Options struct {
	// Now is the clock handlers read; defaults to time.Now.
	Now       func() time.Time
	Logger    *crmlog.Logger
	RateLimit ratelimit.Config
	CacheSize int
	CacheTTL  time.Duration
	// EventDuration is the length of exported calendar events.
	EventDuration time.Duration
}

type Server struct {
	http.Server
	crm        *services.CRMService
	reports    *services.ReportService
	now        func() time.Time
	started    time.Time
	logger     *crmlog.Logger
	structured *crmlog.StructuredLogger

	detector    *security.Detector
	rateLimiter *ratelimit.Limiter

	// views holds encoded dashboard, report and calendar responses. Any
	// successful write purges it.
	views        *cache.LRUCache[[]byte]
	cacheManager *cache.Manager

	eventDuration time.Duration
	shutdownOnce  sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run server.
func NewServer(addr string, crm *services.CRMService, reports *services.ReportService, opts Options) *Server {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = crmlog.New(crmlog.DefaultConfig())
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 256
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = time.Minute
	}
	if opts.EventDuration <= 0 {
		opts.EventDuration = time.Hour
	}

	logger := opts.Logger.WithComponent(crmlog.ComponentHTTP)
	s := &Server{
		crm:           crm,
		reports:       reports,
		now:           opts.Now,
		started:       opts.Now(),
		logger:        logger,
		structured:    crmlog.NewStructuredLogger(logger),
		detector:      security.NewDetector(),
		rateLimiter:   ratelimit.NewLimiter(opts.RateLimit),
		views:         cache.NewLRUCache[[]byte](opts.CacheSize, opts.CacheTTL),
		cacheManager:  cache.NewManager(),
		eventDuration: opts.EventDuration,
	}
	s.cacheManager.Register(s.views)
	s.cacheManager.StartCleanup(opts.CacheTTL)

	mux := http.NewServeMux()
	s.routes(mux)

	tracer := trace.NewMiddleware(logger, s.detector.ClientIP)
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	limit := s.rateLimiter.Middleware(s.detector.ClientIP, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusTooManyRequests, apiError{Error: "rate limit exceeded, please try again later"})
	})

	var handler http.Handler = mux
	handler = limit(handler)
	handler = headers.Middleware(handler)
	handler = s.detector.Middleware(handler)
	handler = tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("GET /api/customers", s.handleListCustomers)
	mux.HandleFunc("POST /api/customers", s.handleCreateCustomer)
	mux.HandleFunc("GET /api/customers/{id}", s.handleGetCustomer)
	mux.HandleFunc("PUT /api/customers/{id}", s.handleUpdateCustomer)
	mux.HandleFunc("DELETE /api/customers/{id}", s.handleDeleteCustomer)

	mux.HandleFunc("GET /api/leads", s.handleListLeads)
	mux.HandleFunc("POST /api/leads", s.handleCreateLead)
	mux.HandleFunc("GET /api/leads/{id}", s.handleGetLead)
	mux.HandleFunc("PUT /api/leads/{id}", s.handleUpdateLead)
	mux.HandleFunc("DELETE /api/leads/{id}", s.handleDeleteLead)

	mux.HandleFunc("GET /api/projects", s.handleListProjects)
	mux.HandleFunc("POST /api/projects", s.handleCreateProject)
	mux.HandleFunc("GET /api/projects/{id}", s.handleGetProject)
	mux.HandleFunc("PUT /api/projects/{id}", s.handleUpdateProject)
	mux.HandleFunc("DELETE /api/projects/{id}", s.handleDeleteProject)

	mux.HandleFunc("GET /api/appointments", s.handleListAppointments)
	mux.HandleFunc("POST /api/appointments", s.handleCreateAppointment)
	mux.HandleFunc("GET /api/appointments/{id}", s.handleGetAppointment)
	mux.HandleFunc("PUT /api/appointments/{id}", s.handleUpdateAppointment)
	mux.HandleFunc("DELETE /api/appointments/{id}", s.handleDeleteAppointment)

	mux.HandleFunc("GET /api/dashboard-stats", s.handleDashboardStats)
	mux.HandleFunc("GET /api/recent-leads", s.handleRecentLeads)
	mux.HandleFunc("GET /api/upcoming-appointments", s.handleUpcomingAppointments)
	mux.HandleFunc("GET /api/reports/lead-stats", s.handleLeadStats)
	mux.HandleFunc("GET /api/reports/project-stats", s.handleProjectStats)
	mux.HandleFunc("GET /api/reports/customer-stats", s.handleCustomerStats)
	mux.HandleFunc("GET /api/calendar", s.handleCalendar)
	mux.HandleFunc("GET /api/calendar.ics", s.handleCalendarICS)
}

// Shutdown stops background goroutines and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		s.cacheManager.Stop()
	})
	return s.Server.Shutdown(ctx)
}

// changed drops cached views after a successful write and logs it.
func (s *Server) changed(r *http.Request, entity, op string, id int64) {
	s.views.Purge()
	s.structured.LogEntityChanged(r.Context(), entity, op, id)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"uptime":    s.now().Sub(s.started).Round(time.Second).String(),
	})
}

// handleReady checks the store within a short deadline.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status, code := "ready", http.StatusOK
	checks := map[string]any{
		"cache":        map[string]any{"entries": s.views.Size(), "status": "ok"},
		"rate_limiter": map[string]any{"active_clients": s.rateLimiter.ActiveClients(), "status": "ok"},
	}
	if err := s.crm.Ping(ctx); err != nil {
		checks["store"] = "failed: " + err.Error()
		status, code = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["store"] = "ok"
	}

	writeJSON(w, code, map[string]any{
		"status":    status,
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"checks":    checks,
	})
}
