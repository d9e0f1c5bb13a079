package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/ashita-ai/beacon/internal/auth"
	"github.com/ashita-ai/beacon/internal/ctxutil"
	"github.com/ashita-ai/beacon/internal/model"
	"github.com/ashita-ai/beacon/internal/ratelimit"
	"github.com/ashita-ai/beacon/internal/registry"
	"github.com/ashita-ai/beacon/internal/service/detection"
)

// Server is the beacon HTTP server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	logger     *slog.Logger
}

// Handler returns the root HTTP handler for use in tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ServerConfig holds all dependencies and configuration for creating a Server.
// Limiter and MCPServer may be nil.
type ServerConfig struct {
	Detection *detection.Service
	Registry  *registry.Loader
	JWTMgr    *auth.JWTManager
	Clients   *auth.Clients
	Logger    *slog.Logger

	Limiter   ratelimit.Limiter
	RateLimit float64
	MCPServer *mcpserver.MCPServer

	// Storage names the situation backend for /health.
	Storage string

	Port                int
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	Version             string
	MaxRequestBodyBytes int64

	// Middlewares wrap the whole handler chain. The first entry is outermost.
	Middlewares []func(http.Handler) http.Handler
}

// New creates a new HTTP server with all routes configured.
func New(cfg ServerConfig) *Server {
	if cfg.MaxRequestBodyBytes <= 0 {
		cfg.MaxRequestBodyBytes = 1 << 20
	}
	h := &Handlers{
		detection:   cfg.Detection,
		registry:    cfg.Registry,
		jwtMgr:      cfg.JWTMgr,
		clients:     cfg.Clients,
		logger:      cfg.Logger,
		storage:     cfg.Storage,
		version:     cfg.Version,
		maxBodySize: cfg.MaxRequestBodyBytes,
		startedAt:   time.Now(),
	}

	reqIDFunc := func(r *http.Request) string { return ctxutil.RequestID(r.Context()) }
	clientRL := ratelimit.Middleware(cfg.Limiter, cfg.RateLimit, clientKeyFunc, reqIDFunc, cfg.Logger)
	authRL := ratelimit.Middleware(cfg.Limiter, cfg.RateLimit, ipKeyFunc, reqIDFunc, cfg.Logger)

	viewer := requireRole(model.RoleViewer)
	analyst := requireRole(model.RoleAnalyst)
	admin := requireRole(model.RoleAdmin)

	mux := http.NewServeMux()

	mux.Handle("POST /auth/token", authRL(http.HandlerFunc(h.HandleAuthToken)))

	mux.Handle("POST /v1/situations/detect", clientRL(analyst(http.HandlerFunc(h.HandleDetect))))
	mux.Handle("GET /v1/situations", clientRL(viewer(http.HandlerFunc(h.HandleListSituations))))
	mux.Handle("GET /v1/situations/{id}", clientRL(viewer(http.HandlerFunc(h.HandleGetSituation))))
	mux.Handle("POST /v1/situations/{id}/decisions", clientRL(analyst(http.HandlerFunc(h.HandleDecision))))

	mux.Handle("GET /v1/principals/resolve", clientRL(viewer(http.HandlerFunc(h.HandleResolve))))
	mux.Handle("POST /v1/kpis/select", clientRL(viewer(http.HandlerFunc(h.HandleSelectKPIs))))

	mux.Handle("GET /v1/registry", viewer(http.HandlerFunc(h.HandleRegistryStatus)))
	mux.Handle("POST /v1/registry/reload", admin(http.HandlerFunc(h.HandleRegistryReload)))

	// Tools enforce their own role checks; viewers can reach read-only ones.
	if cfg.MCPServer != nil {
		mux.Handle("/mcp", clientRL(viewer(mcpserver.NewStreamableHTTPServer(cfg.MCPServer))))
	}

	mux.HandleFunc("GET /health", h.HandleHealth)

	// Outermost first: request ID, security headers, tracing, logging, auth,
	// recovery, mux.
	var handler http.Handler = mux
	handler = recoveryMiddleware(cfg.Logger, handler)
	handler = authMiddleware(cfg.JWTMgr, handler)
	handler = loggingMiddleware(cfg.Logger, handler)
	handler = tracingMiddleware(newHTTPMetrics(), mux, handler)
	handler = securityHeadersMiddleware(handler)
	handler = requestIDMiddleware(handler)
	for i := len(cfg.Middlewares) - 1; i >= 0; i-- {
		handler = cfg.Middlewares[i](handler)
	}

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           handler,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      cfg.WriteTimeout,
		},
		handler: handler,
		logger:  cfg.Logger,
	}
}

// clientKeyFunc buckets requests by client id. Admins are not limited.
func clientKeyFunc(r *http.Request) string {
	claims := ctxutil.ClaimsFromContext(r.Context())
	if claims == nil || model.RoleAtLeast(claims.Role, model.RoleAdmin) {
		return ""
	}
	return "client:" + claims.ClientID
}

// ipKeyFunc buckets unauthenticated requests by RemoteAddr. X-Forwarded-For
// is ignored because any caller can set it.
func ipKeyFunc(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
