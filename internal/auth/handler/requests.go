package handler

import (
	"strings"
	"time"

	dErrors "luwei/pkg/domain-errors"
)

// LoginRequest accepts both the current field names and the ones sent by the
// Google Identity Services button (credential, redirect_uri).
type LoginRequest struct {
	IdentityToken string `json:"identityToken"`
	Credential    string `json:"credential"`
	RedirectHint  string `json:"redirectHint"`
	RedirectURI   string `json:"redirect_uri"`
}

func (r *LoginRequest) Validate() error {
	r.IdentityToken = strings.TrimSpace(r.IdentityToken)
	if r.IdentityToken == "" {
		r.IdentityToken = strings.TrimSpace(r.Credential)
	}
	r.RedirectHint = strings.TrimSpace(r.RedirectHint)
	if r.RedirectHint == "" {
		r.RedirectHint = strings.TrimSpace(r.RedirectURI)
	}
	if r.IdentityToken == "" {
		return dErrors.New(dErrors.CodeBadRequest, "identityToken is required")
	}
	return nil
}

type LoginResponse struct {
	SessionCredential string    `json:"sessionCredential"`
	RedirectURL       string    `json:"redirectUrl"`
	ExpiresAt         time.Time `json:"expiresAt"`
	CookieFallback    bool      `json:"cookieFallback"`
}

// SessionRequest carries a credential returned by the login response.
type SessionRequest struct {
	SessionCredential string `json:"sessionCredential"`
}

func (r *SessionRequest) Validate() error {
	r.SessionCredential = strings.TrimSpace(r.SessionCredential)
	if r.SessionCredential == "" {
		return dErrors.New(dErrors.CodeBadRequest, "sessionCredential is required")
	}
	return nil
}

type SessionResponse struct {
	ExpiresAt time.Time `json:"expiresAt"`
}

type AccountResponse struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	EmailVerified bool      `json:"emailVerified"`
	IsOperator    bool      `json:"isOperator"`
	CreatedAt     time.Time `json:"createdAt"`
}
