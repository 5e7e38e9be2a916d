// Package handler exposes the CAS flows over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"cas/internal/cas/protocol"
	"cas/internal/cas/service"
	"cas/internal/platform/config"
	"cas/internal/securecontext"
	dErrors "cas/pkg/domain-errors"
	"cas/pkg/platform/httputil"
	"cas/pkg/requestcontext"
)

// Service is the CAS flow surface used by the handlers.
type Service interface {
	RequestLogin(ctx context.Context, sc *securecontext.SecureContext, serviceURL string) (string, error)
	Authenticate(ctx context.Context, serviceURL string, req service.LoginRequest) (*service.LoginResult, error)
	Validate(ctx context.Context, ticket, serviceURL string) (protocol.Response, error)
	ForwardAuth(ctx context.Context, sc *securecontext.SecureContext, fwd service.ForwardedRequest) (service.Decision, error)
	Logout(ctx context.Context, serviceURL string) (string, error)
}

// Handler serves the CAS endpoints. Routes expect the secure-context
// middleware to have run.
type Handler struct {
	service Service
	cookie  config.CookieConfig
	logger  *slog.Logger
}

// New builds the CAS handler.
func New(svc Service, cookie config.CookieConfig, logger *slog.Logger) *Handler {
	return &Handler{service: svc, cookie: cookie, logger: logger}
}

// ForwardAuthPath is polled by the reverse proxy for every protected request.
const ForwardAuthPath = "/api/forward-auth"

// Register wires the CAS routes.
func (h *Handler) Register(r chi.Router) {
	r.Get("/cas/login", h.handleRequestLogin)
	r.Post("/cas/login", h.handleAuthenticate)
	r.Get("/cas/logout", h.handleLogout)
	for _, path := range []string{
		"/cas/validate",
		"/cas/serviceValidate",
		"/cas/p3/serviceValidate",
		"/cas/proxyValidate",
		"/cas/p3/proxyValidate",
	} {
		r.Get(path, h.handleValidate)
	}
	r.HandleFunc(ForwardAuthPath, h.handleForwardAuth)
}

func (h *Handler) handleRequestLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sc, _ := securecontext.FromContext(ctx)

	location, err := h.service.RequestLogin(ctx, sc, r.URL.Query().Get(securecontext.ServiceParam))
	if err != nil {
		h.internalError(w, r, "login redirect failed", err)
		return
	}
	http.Redirect(w, r, location, http.StatusFound)
}

type loginResponse struct {
	Location string `json:"location"`
}

func (h *Handler) handleAuthenticate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req service.LoginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid login request body"))
		return
	}

	result, err := h.service.Authenticate(ctx, r.URL.Query().Get(securecontext.ServiceParam), req)
	switch {
	case err == nil:
	case errors.Is(err, service.ErrUnknownService):
		httputil.WriteJSON(w, http.StatusNotFound, map[string]string{"error": protocol.CodeMissingService})
		return
	case errors.Is(err, service.ErrBadCredentials):
		httputil.WriteStatus(w, http.StatusForbidden)
		return
	case errors.Is(err, service.ErrSecondFactor):
		httputil.WriteStatus(w, http.StatusConflict)
		return
	default:
		h.internalError(w, r, "login failed", err)
		return
	}

	http.SetCookie(w, h.sessionCookie(result.SessionToken))
	httputil.WriteJSON(w, http.StatusOK, loginResponse{Location: result.Location})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	location, err := h.service.Logout(r.Context(), r.URL.Query().Get(securecontext.ServiceParam))
	if err != nil {
		h.internalError(w, r, "logout failed", err)
		return
	}
	expired := h.sessionCookie("")
	expired.MaxAge = -1
	http.SetCookie(w, expired)
	http.Redirect(w, r, location, http.StatusFound)
}

func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	resp, err := h.service.Validate(ctx, q.Get("ticket"), q.Get(securecontext.ServiceParam))
	if err != nil {
		h.internalError(w, r, "ticket validation failed", err)
		return
	}
	if err := protocol.Write(w, protocol.NegotiateFormat(r), resp); err != nil {
		h.logger.ErrorContext(ctx, "failed to write validation response",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
}

func (h *Handler) handleForwardAuth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sc, _ := securecontext.FromContext(ctx)

	decision, err := h.service.ForwardAuth(ctx, sc, service.ForwardedRequest{
		Proto: r.Header.Get("X-Forwarded-Proto"),
		Host:  r.Header.Get("X-Forwarded-Host"),
		URI:   r.Header.Get("X-Forwarded-Uri"),
	})
	if err != nil {
		h.internalError(w, r, "forward auth failed", err)
		return
	}
	if decision.Allowed {
		w.WriteHeader(http.StatusOK)
		return
	}
	w.Header().Set("Location", decision.Location)
	w.WriteHeader(http.StatusFound)
}

func (h *Handler) sessionCookie(value string) *http.Cookie {
	return &http.Cookie{
		Name:     h.cookie.Name,
		Value:    value,
		Path:     h.cookie.Path,
		Domain:   h.cookie.Domain,
		MaxAge:   h.cookie.MaxAge,
		Secure:   h.cookie.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	h.logger.ErrorContext(r.Context(), msg,
		"request_id", requestcontext.RequestID(r.Context()),
		"error", err,
	)
	httputil.WriteError(w, err)
}
