package jwttoken

import "mutualpool/pkg/platform/middleware/auth"

// JWTServiceAdapter exposes JWTService to the auth middleware.
type JWTServiceAdapter struct {
	service *JWTService
}

func NewJWTServiceAdapter(service *JWTService) *JWTServiceAdapter {
	return &JWTServiceAdapter{service: service}
}

func (a *JWTServiceAdapter) ValidateToken(tokenString string) (*auth.JWTClaims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return &auth.JWTClaims{Subject: claims.Subject, JTI: claims.ID}, nil
}
