// Package handler exposes sign-in, session and account endpoints.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"luwei/internal/auth/models"
	"luwei/internal/auth/service"
	id "luwei/pkg/domain"
	dErrors "luwei/pkg/domain-errors"
	"luwei/pkg/platform/httputil"
	"luwei/pkg/requestcontext"
)

// Service is the auth service as seen by the transport.
type Service interface {
	Login(ctx context.Context, req service.LoginRequest) (*service.LoginResult, error)
	ExchangeSession(ctx context.Context, token string) (time.Time, error)
	CurrentAccount(ctx context.Context, accountID id.AccountID) (*models.Account, error)
	IsOperator(ctx context.Context, accountID id.AccountID) (bool, error)
	Logout(ctx context.Context, accountID id.AccountID, jti string, expiresAt time.Time) error
}

type Middleware = func(http.Handler) http.Handler

// Handler serves /auth routes.
type Handler struct {
	auth           Service
	logger         *slog.Logger
	cookie         CookieConfig
	requireSession Middleware
	loginLimit     Middleware
}

type Option func(*Handler)

// WithLoginLimit throttles the identity token exchange.
func WithLoginLimit(mw Middleware) Option {
	return func(h *Handler) {
		h.loginLimit = mw
	}
}

// New creates a Handler. requireSession guards /auth/me and /auth/logout.
func New(auth Service, logger *slog.Logger, cookie CookieConfig, requireSession Middleware, opts ...Option) *Handler {
	h := &Handler{
		auth:           auth,
		logger:         logger,
		cookie:         cookie,
		requireSession: requireSession,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register registers the auth routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if h.loginLimit != nil {
				r.Use(h.loginLimit)
			}
			r.Post("/google/callback", h.HandleGoogleCallback)
		})
		r.Post("/session", h.HandleSession)

		r.Group(func(r chi.Router) {
			r.Use(h.requireSession)
			r.Get("/me", h.HandleMe)
			r.Post("/logout", h.HandleLogout)
		})
	})
}

// HandleGoogleCallback exchanges an identity token for a session. The credential
// is set as a cookie and also returned in the body for clients that cannot keep
// cross-site cookies.
func (h *Handler) HandleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[LoginRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	res, err := h.auth.Login(ctx, service.LoginRequest{
		IdentityToken: req.IdentityToken,
		RedirectHint:  req.RedirectHint,
		UserAgent:     requestcontext.UserAgent(ctx),
	})
	if err != nil {
		h.logger.WarnContext(ctx, "login failed",
			"error", err,
			"request_id", requestID,
		)
		httputil.WriteError(w, err)
		return
	}

	http.SetCookie(w, h.cookie.session(res.SessionToken, res.ExpiresAt, requestcontext.Now(ctx)))
	httputil.WriteJSON(w, http.StatusOK, LoginResponse{
		SessionCredential: res.SessionToken,
		RedirectURL:       res.RedirectURL,
		ExpiresAt:         res.ExpiresAt,
		CookieFallback:    res.CookieFallback,
	})
}

// HandleSession sets a credential obtained from the callback body as a
// first-party cookie.
func (h *Handler) HandleSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[SessionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	expiresAt, err := h.auth.ExchangeSession(ctx, req.SessionCredential)
	if err != nil {
		h.logger.WarnContext(ctx, "session exchange rejected",
			"error", err,
			"request_id", requestID,
		)
		httputil.WriteError(w, err)
		return
	}

	http.SetCookie(w, h.cookie.session(req.SessionCredential, expiresAt, requestcontext.Now(ctx)))
	httputil.WriteJSON(w, http.StatusCreated, SessionResponse{ExpiresAt: expiresAt})
}

func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	accountID := requestcontext.AccountID(ctx)
	if accountID.IsNil() {
		h.logger.ErrorContext(ctx, "account missing from context despite session middleware",
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	account, err := h.auth.CurrentAccount(ctx, accountID)
	if err != nil {
		h.logWriteError(ctx, w, "failed to load account", err)
		return
	}
	isOperator, err := h.auth.IsOperator(ctx, accountID)
	if err != nil {
		h.logWriteError(ctx, w, "failed to check operator", err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, AccountResponse{
		ID:            account.ID.String(),
		Email:         account.Email,
		Name:          account.Name,
		EmailVerified: account.EmailVerified,
		IsOperator:    isOperator,
		CreatedAt:     account.CreatedAt,
	})
}

// HandleLogout revokes the presented session and clears the cookie.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	err := h.auth.Logout(ctx,
		requestcontext.AccountID(ctx),
		requestcontext.SessionJTI(ctx),
		requestcontext.SessionExpiry(ctx),
	)
	if err != nil {
		h.logWriteError(ctx, w, "failed to revoke session", err)
		return
	}
	http.SetCookie(w, h.cookie.cleared())
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "signed_out"})
}

func (h *Handler) logWriteError(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg, "error", err, "request_id", requestcontext.RequestID(ctx))
	} else {
		h.logger.WarnContext(ctx, msg, "error", err, "request_id", requestcontext.RequestID(ctx))
	}
	httputil.WriteError(w, err)
}
