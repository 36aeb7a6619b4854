package session

import (
	authmw "luwei/pkg/platform/middleware/auth"
)

// ToMiddlewareClaims converts validated claims to the authenticator's view.
func ToMiddlewareClaims(claims *Claims) *authmw.SessionClaims {
	return &authmw.SessionClaims{
		AccountID: claims.AccountID,
		JTI:       claims.JTI,
		ExpiresAt: claims.ExpiresAt,
	}
}

// MiddlewareAdapter lets the session Service back the authenticator middleware.
type MiddlewareAdapter struct {
	service *Service
}

func NewMiddlewareAdapter(service *Service) *MiddlewareAdapter {
	return &MiddlewareAdapter{service: service}
}

func (a *MiddlewareAdapter) ValidateToken(tokenString string) (*authmw.SessionClaims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return ToMiddlewareClaims(claims), nil
}
