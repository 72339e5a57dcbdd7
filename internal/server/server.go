// Package server provides the HTTP server for the demo security token
// service.
//
// The server exposes a minimal STS surface:
//
//   - POST /issue    - Issue a signed assertion for a JSON-described subject
//   - POST /validate - Validate an assertion and return its claims as JSON
//   - GET  /health   - Liveness probe
//
// The token handler is constructed once and treated as immutable; requests
// share it concurrently.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/sirosfoundation/go-saml2/internal/config"
	"github.com/sirosfoundation/go-saml2/internal/keystore"
	"github.com/sirosfoundation/go-saml2/pkg/claims"
	"github.com/sirosfoundation/go-saml2/pkg/token"
)

// Server is the STS HTTP server
type Server struct {
	config   *config.Config
	handler  *token.Handler
	provider keystore.Provider
	logger   *slog.Logger

	httpServer *http.Server
}

// New creates a server from the configuration
func New(cfg *config.Config, provider keystore.Provider, logger *slog.Logger) (*Server, error) {
	handler, err := token.NewHandler(token.HandlerConfig{
		MaxTokenSize: cfg.Validation.MaxTokenSize,
	})
	if err != nil {
		return nil, fmt.Errorf("creating token handler: %w", err)
	}

	s := &Server{
		config:   cfg,
		handler:  handler,
		provider: provider,
		logger:   logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /issue", s.handleIssue)
	mux.HandleFunc("POST /validate", s.handleValidate)
	mux.HandleFunc("GET /health", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Server.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s, nil
}

// Start runs the HTTP server until the context is canceled
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("starting token service",
		"addr", s.httpServer.Addr,
		"issuer", s.config.Issuer.Name,
		"tls", s.config.Server.TLS.Enabled)

	errCh := make(chan error, 1)
	go func() {
		var err error
		if s.config.Server.TLS.Enabled {
			err = s.httpServer.ListenAndServeTLS(s.config.Server.TLS.CertFile, s.config.Server.TLS.KeyFile)
		} else {
			err = s.httpServer.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

// issueRequest is the JSON body of POST /issue
type issueRequest struct {
	// Subject is the name identifier of the authenticated principal
	Subject string `json:"subject"`

	// Audience restricts the issued assertion
	Audience string `json:"audience,omitempty"`

	// Claims are additional claim type/value pairs
	Claims map[string][]string `json:"claims,omitempty"`
}

// claimJSON is the JSON rendering of one claim
type claimJSON struct {
	Type           string `json:"type"`
	Value          string `json:"value"`
	ValueType      string `json:"valueType,omitempty"`
	Issuer         string `json:"issuer,omitempty"`
	OriginalIssuer string `json:"originalIssuer,omitempty"`
}

func (s *Server) handleIssue(w http.ResponseWriter, r *http.Request) {
	var req issueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Subject == "" {
		s.writeError(w, http.StatusBadRequest, "subject is required", nil)
		return
	}

	creds, err := s.provider.Credentials(r.Context(), s.config.Issuer.Name, s.config.Issuer.KeyID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "signing key unavailable", err)
		return
	}

	identity := claims.NewIdentity()
	identity.AddClaim(claims.Claim{
		Type:      claims.ClaimTypeNameIdentifier,
		Value:     req.Subject,
		ValueType: claims.ValueTypeString,
		Issuer:    s.config.Issuer.Name,
	})
	for claimType, values := range req.Claims {
		for _, value := range values {
			identity.AddClaim(claims.Claim{
				Type:      claimType,
				Value:     value,
				ValueType: claims.ValueTypeString,
				Issuer:    s.config.Issuer.Name,
			})
		}
	}

	now := time.Now().UTC()
	expires := now.Add(s.config.Issuer.TokenLifetime)
	tok, err := s.handler.CreateToken(&token.Descriptor{
		Issuer:             s.config.Issuer.Name,
		Subject:            identity,
		NotBefore:          &now,
		Expires:            &expires,
		Audience:           req.Audience,
		SigningCredentials: creds,
	})
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "token creation failed", err)
		return
	}

	out, err := s.handler.WriteToken(tok)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "token signing failed", err)
		return
	}

	s.logger.Info("issued assertion",
		"subject", req.Subject,
		"audience", req.Audience,
		"expires", expires)

	w.Header().Set("Content-Type", "application/samlassertion+xml")
	w.WriteHeader(http.StatusOK)
	w.Write(out)
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, int64(s.handler.MaxTokenSize())+1))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "reading request body", err)
		return
	}

	params := token.NewValidationParameters()
	params.ClockSkew = s.config.Validation.ClockSkew
	params.ValidIssuer = s.config.Issuer.Name
	params.ValidIssuers = s.config.Validation.ValidIssuers
	params.ValidAudiences = s.config.Validation.ValidAudiences

	keys, err := s.provider.VerificationKeys(r.Context(), s.config.Issuer.Name)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "verification keys unavailable", err)
		return
	}
	params.IssuerSigningKeys = keys

	identity, _, err := s.handler.ValidateToken(body, params)
	if err != nil {
		s.logger.Debug("token validation failed", "error", err)
		s.writeError(w, http.StatusUnauthorized, "token validation failed", err)
		return
	}

	out := make([]claimJSON, 0, len(identity.Claims))
	for _, c := range identity.Claims {
		out = append(out, claimJSON{
			Type:           c.Type,
			Value:          c.Value,
			ValueType:      c.ValueType,
			Issuer:         c.Issuer,
			OriginalIssuer: c.OriginalIssuer,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"claims": out})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string, err error) {
	if err != nil {
		s.logger.Error(message, "error", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
