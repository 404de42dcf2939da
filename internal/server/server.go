// Package server exposes the monitoring and administration HTTP API.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/omnivault/omnivault/internal/crypto"
	"github.com/omnivault/omnivault/internal/server/handler"
	"github.com/omnivault/omnivault/internal/server/middleware"
	"github.com/omnivault/omnivault/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled

	// AdminHMAC, when non-nil, requires signed requests on the /api/admin
	// routes on top of the API key.
	AdminHMAC *crypto.HMACAuth
}

// Handlers aggregates all HTTP handlers that the server needs to register.
// Nil fields are skipped, so each node mode exposes only the surface it
// actually serves.
type Handlers struct {
	Health    *handler.HealthHandler
	Vault     *handler.VaultHandler
	Children  *handler.ChildrenHandler
	Rebalance *handler.RebalanceHandler
	Admin     *handler.AdminHandler
	Messages  *handler.MessagesHandler
}

// Server is the HTTP + WebSocket API server for a vault node.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// It wires up middleware (logging, CORS, auth) and attaches the WebSocket hub.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Liveness check (no auth required beyond the shared middleware).
	if handlers.Health != nil {
		mux.HandleFunc("GET /api/health", handlers.Health.Liveness)
		mux.HandleFunc("GET /api/health/report", handlers.Health.Report)
		mux.HandleFunc("GET /api/health/confirmations", handlers.Health.Confirmations)
		mux.HandleFunc("GET /api/health/failed-operations", handlers.Health.FailedOperations)
		mux.HandleFunc("POST /api/health/failed-operations", handlers.Health.ReportFailure)
	}

	// Share accounting.
	if handlers.Vault != nil {
		mux.HandleFunc("GET /api/vault/state", handlers.Vault.GetState)
		mux.HandleFunc("POST /api/vault/deposit", handlers.Vault.Deposit)
		mux.HandleFunc("POST /api/vault/withdraw", handlers.Vault.Withdraw)
	}

	// Child allocations.
	if handlers.Children != nil {
		mux.HandleFunc("GET /api/children", handlers.Children.List)
		mux.HandleFunc("POST /api/children", handlers.Children.Onboard)
		mux.HandleFunc("GET /api/children/{chainID}", handlers.Children.Get)
		mux.HandleFunc("DELETE /api/children/{chainID}", handlers.Children.Deactivate)
		mux.HandleFunc("POST /api/children/{chainID}/deploy", handlers.Children.Deploy)
		mux.HandleFunc("GET /api/children/{chainID}/snapshots", handlers.Children.Snapshots)
	}

	// Rebalancing.
	if handlers.Rebalance != nil {
		mux.HandleFunc("GET /api/rebalance/preview", handlers.Rebalance.Preview)
		mux.HandleFunc("POST /api/rebalance/execute", handlers.Rebalance.Execute)
		mux.HandleFunc("POST /api/rebalance/emergency", handlers.Rebalance.EmergencyExecute)
	}

	// Governance and emergency controls. These routes additionally require a
	// request signature when an admin HMAC pair is configured.
	if handlers.Admin != nil {
		signed := middleware.HMAC(cfg.AdminHMAC)
		admin := func(pattern string, fn http.HandlerFunc) {
			mux.Handle(pattern, signed(fn))
		}
		admin("POST /api/admin/fee/propose", handlers.Admin.ProposeFee)
		admin("POST /api/admin/fee/execute", handlers.Admin.ExecuteFee)
		admin("POST /api/admin/pause", handlers.Admin.Pause)
		admin("POST /api/admin/unpause", handlers.Admin.Unpause)
		admin("POST /api/admin/emergency-withdraw", handlers.Admin.EmergencyWithdrawAll)
		admin("GET /api/admin/audit", handlers.Admin.AuditLog)
	}

	// Inbound relayed messages from peer nodes.
	if handlers.Messages != nil {
		mux.HandleFunc("POST /api/messages", handlers.Messages.Receive)
	}

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain.
	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey)(h)
	h = middleware.Logging(logger)(h)
	h = corsMiddleware(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

// corsMiddleware returns middleware that sets CORS headers for the allowed
// origins. If no origins are specified, it defaults to allowing all origins.
func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if origin != "" {
				allowed := len(allowedOrigins) == 0 // allow all if none specified
				for _, o := range allowedOrigins {
					if strings.EqualFold(o, "*") || strings.EqualFold(o, origin) {
						allowed = true
						break
					}
				}

				if allowed {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
					w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key, X-Vault-Caller")
					w.Header().Set("Access-Control-Max-Age", "86400")
				}
			}

			// Handle preflight requests.
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
