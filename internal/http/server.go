// Package http exposes the REST API: token auth, the transaction
// ledger, category management and the report endpoints.
package http

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"fintrack/internal/cache"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/trace"
	"fintrack/internal/services"
)

// Config carries the server's tunables.
type Config struct {
	Addr              string
	JWTSecret         string
	TokenLifetime     time.Duration
	RequestsPerMinute int
	ReportCacheSize   int
	ReportCacheTTL    time.Duration
}

type Server struct {
	http.Server

	cfg     Config
	users   *services.UserService
	cats    *services.CategoryService
	ledger  *services.LedgerService
	reports *services.ReportService

	limiter *ratelimit.Limiter

	// Cached report payloads, keyed by user and query shape. Any write
	// by a user drops that user's entries.
	reportCache *cache.LRUCache[[]byte]
	cacheMgr    *cache.Manager

	shutdownOnce sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(cfg Config, store services.Store, bcryptCost int) *Server {
	s := &Server{
		cfg:         cfg,
		users:       services.NewUserService(store, bcryptCost),
		cats:        services.NewCategoryService(store),
		ledger:      services.NewLedgerService(store, store),
		reports:     services.NewReportService(store),
		limiter:     ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RequestsPerMinute}),
		reportCache: cache.NewLRUCache[[]byte](cfg.ReportCacheSize, cfg.ReportCacheTTL),
		cacheMgr:    cache.NewManager(),
	}
	s.cacheMgr.Register(s.reportCache)
	s.cacheMgr.StartCleanup(10 * time.Minute)

	r := mux.NewRouter()
	tracer := trace.NewMiddleware(extractClientIP)
	r.Use(tracer.Middleware)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/auth/register", s.handleRegister).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost)
	api.Handle("/auth/me", s.authenticated(s.handleMe)).Methods(http.MethodGet)

	limited := s.limiter.Middleware(extractClientIP, nil)

	api.Handle("/transactions", s.authenticated(s.handleListTransactions)).Methods(http.MethodGet)
	api.Handle("/transactions", limited(s.authenticated(s.handleWriteTransaction))).Methods(http.MethodPost)
	api.Handle("/transactions/statistics", s.authenticated(s.handleStatistics)).Methods(http.MethodGet)
	api.Handle("/transactions/{id:[0-9]+}", s.authenticated(s.handleGetTransaction)).Methods(http.MethodGet)
	api.Handle("/transactions/{id:[0-9]+}", limited(s.authenticated(s.handleUpdateTransaction))).Methods(http.MethodPut)
	api.Handle("/transactions/{id:[0-9]+}", limited(s.authenticated(s.handleDeleteTransaction))).Methods(http.MethodDelete)

	api.Handle("/categories", s.authenticated(s.handleListCategories)).Methods(http.MethodGet)
	api.Handle("/categories", limited(s.authenticated(s.handleCreateCategory))).Methods(http.MethodPost)
	api.Handle("/categories/{id:[0-9]+}", s.authenticated(s.handleGetCategory)).Methods(http.MethodGet)
	api.Handle("/categories/{id:[0-9]+}", limited(s.authenticated(s.handleUpdateCategory))).Methods(http.MethodPut)
	api.Handle("/categories/{id:[0-9]+}", limited(s.authenticated(s.handleDeleteCategory))).Methods(http.MethodDelete)

	api.Handle("/reports/summary", s.authenticated(s.handleReportSummary)).Methods(http.MethodGet)
	api.Handle("/reports/by-category", s.authenticated(s.handleReportByCategory)).Methods(http.MethodGet)
	api.Handle("/reports/monthly", s.authenticated(s.handleReportMonthly)).Methods(http.MethodGet)
	api.Handle("/reports/trends", s.authenticated(s.handleReportTrends)).Methods(http.MethodGet)

	s.Server = http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Shutdown stops the HTTP server and the background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		s.cacheMgr.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// extractClientIP prefers the first X-Forwarded-For hop, falling back
// to the socket address.
func extractClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if idx := strings.Index(fwd, ","); idx >= 0 {
			fwd = fwd[:idx]
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
