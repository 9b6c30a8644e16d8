package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"

	"github.com/shaharia-lab/timemcp/observability"
)

// HTTPServerConfig configures the HTTP transport.
type HTTPServerConfig struct {
	Address string
	// RateLimit is the sustained request rate allowed across all clients;
	// RateBurst is the instantaneous burst. Zero disables limiting.
	RateLimit float64
	RateBurst int
}

// HTTPServer serves the protocol over HTTP. Each POST endpoint accepts one
// full JSON-RPC envelope per request and answers with the matching envelope,
// so many requests can be in flight concurrently without their responses
// being crossed: routing is per-request, keyed by a fresh client ID.
type HTTPServer struct {
	*BaseServer
	authManager *AuthManager
	address     string
	limiter     *rate.Limiter

	pending      map[string]chan Response
	pendingMutex sync.RWMutex
}

// NewHTTPServer creates a new HTTPServer.
func NewHTTPServer(baseServer *BaseServer, authManager *AuthManager, cfg HTTPServerConfig) *HTTPServer {
	s := &HTTPServer{
		BaseServer:  baseServer,
		authManager: authManager,
		address:     cfg.Address,
		pending:     make(map[string]chan Response),
	}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = int(cfg.RateLimit)
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	// Set the concrete send methods for HTTPServer.
	s.sendResp = s.sendResponse
	s.sendErr = s.sendError
	s.sendNoti = s.sendNotification

	return s
}

func (s *HTTPServer) sendResponse(clientID string, id *json.RawMessage, result interface{}, err *Error) {
	s.deliver(clientID, Response{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Result:  result,
		Error:   err,
	})
}

func (s *HTTPServer) sendError(clientID string, id *json.RawMessage, code int, message string, data interface{}) {
	s.deliver(clientID, *NewErrorResponse(id, code, message, data))
}

// sendNotification is a no-op over plain HTTP: there is no standing client
// connection to push to.
func (s *HTTPServer) sendNotification(clientID string, method string, params interface{}) {
	s.logger.WithFields(map[string]interface{}{
		"method": method,
	}).Debug("Dropping notification, HTTP transport has no push channel")
}

func (s *HTTPServer) deliver(clientID string, response Response) {
	s.pendingMutex.RLock()
	responseChan, ok := s.pending[clientID]
	s.pendingMutex.RUnlock()

	if !ok {
		s.logger.WithFields(map[string]interface{}{
			"clientID": clientID,
		}).Warn("No pending request for response")
		return
	}

	select {
	case responseChan <- response:
	default:
		s.logger.WithFields(map[string]interface{}{
			"clientID": clientID,
		}).Warn("Response channel full, dropping response")
	}
}

// dispatch runs one validated request through the shared dispatcher and
// collects its response. The channel is buffered and handlers answer
// synchronously, so the receive never blocks for long.
func (s *HTTPServer) dispatch(ctx context.Context, request *Request) Response {
	clientID := uuid.NewString()
	responseChan := make(chan Response, 1)

	s.pendingMutex.Lock()
	s.pending[clientID] = responseChan
	s.pendingMutex.Unlock()

	defer func() {
		s.pendingMutex.Lock()
		delete(s.pending, clientID)
		s.pendingMutex.Unlock()
	}()

	s.handleRequest(ctx, clientID, request)

	select {
	case response := <-responseChan:
		return response
	case <-ctx.Done():
		return *NewErrorResponse(request.ID, ErrorCodeInternal, "Internal error", nil)
	}
}

func (s *HTTPServer) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.WithErr(err).Error("Failed to write response body")
	}
}

// authorize runs the bearer-token gate and writes the failure response
// itself. It reports whether the request may proceed.
func (s *HTTPServer) authorize(w http.ResponseWriter, r *http.Request) bool {
	_, err := s.authManager.Authorize(r.Header.Get("Authorization"))
	if err == nil {
		return true
	}

	s.logger.WithFields(map[string]interface{}{
		"path": r.URL.Path,
	}).WithErr(err).Warn("Rejected request")

	if errors.Is(err, ErrUnauthorized) {
		s.writeJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
		return false
	}

	w.Header().Set("WWW-Authenticate", `Bearer realm="mcp"`)
	s.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	return false
}

// handleEnvelope is the shared body of the three JSON-RPC POST endpoints.
// Envelope faults are HTTP 400 with the protocol error as body; anything
// that reaches the dispatcher is HTTP 200 with a JSON-RPC response, even
// when that response is an error envelope.
func (s *HTTPServer) handleEnvelope(w http.ResponseWriter, r *http.Request) {
	ctx, span := observability.StartSpan(r.Context(), "HTTPServer.handleEnvelope")
	defer span.End()

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.authorize(w, r) {
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.logger.WithErr(err).Error("Error reading request body")
		s.writeJSON(w, http.StatusBadRequest, NewErrorResponse(nil, ErrorCodeParseError, "Parse error", nil))
		return
	}
	defer r.Body.Close()

	request, decodeErr := DecodeRequest(body)
	if decodeErr != nil {
		span.SetStatus(codes.Error, decodeErr.Message)
		s.writeJSON(w, http.StatusBadRequest, NewErrorResponse(nil, decodeErr.Code, decodeErr.Message, decodeErr.Data))
		return
	}

	if request.IsNotification() {
		s.handleNotification(ctx, "", &Notification{
			JSONRPC: request.JSONRPC,
			Method:  request.Method,
			Params:  request.Params,
		})
		w.WriteHeader(http.StatusAccepted)
		return
	}

	response := s.dispatch(ctx, request)
	s.writeJSON(w, http.StatusOK, response)
}

// handleHealth answers liveness probes. Never gated.
func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"name":      s.ServerInfo.Name,
		"version":   s.ServerInfo.Version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleCapabilities exposes the capability snapshot for discovery. Never
// gated, so clients can learn what the server offers before authenticating.
func (s *HTTPServer) handleCapabilities(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, http.StatusOK, InitializeResult{
		ProtocolVersion: s.protocolVersion,
		Capabilities:    s.CapabilitiesSnapshot(),
		ServerInfo:      s.ServerInfo,
	})
}

// Handler builds the HTTP routing table.
func (s *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/mcp/capabilities", s.handleCapabilities)
	mux.HandleFunc("/mcp/tools/call", s.handleEnvelope)
	mux.HandleFunc("/mcp/resources/read", s.handleEnvelope)
	mux.HandleFunc("/mcp/prompts/get", s.handleEnvelope)

	return s.rateLimitMiddleware(mux)
}

func (s *HTTPServer) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			s.logger.WithFields(map[string]interface{}{
				"path": r.URL.Path,
			}).Warn("Rate limit exceeded")
			http.Error(w, "Too many requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Run starts the HTTPServer, listening for incoming connections until the
// context is cancelled, then shuts down gracefully.
func (s *HTTPServer) Run(ctx context.Context) error {
	ctx, span := observability.StartSpan(ctx, "HTTPServer.Run")
	defer span.End()

	var err error
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	s.markStarted()

	server := &http.Server{
		BaseContext: func(listener net.Listener) context.Context {
			return ctx
		},
		Addr:    s.address,
		Handler: s.Handler(),
	}

	s.logger.WithFields(map[string]interface{}{
		"address":      s.address,
		"auth_enabled": s.authManager.Enabled(),
	}).Info("Starting HTTP server")

	errChan := make(chan error, 1)
	go func() {
		if serveErr := server.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errChan <- serveErr
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Warn("Context cancelled. Shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err = server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("error during server shutdown: %w", err)
		}

		s.logger.Info("Server gracefully shut down.")
		return ctx.Err()
	case err = <-errChan:
		return fmt.Errorf("server error: %w", err)
	}
}
