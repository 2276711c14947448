package jwttoken

import (
	"context"

	authmw "donorlink/pkg/platform/middleware/auth"
)

func ToIdentity(claims *Claims) *authmw.Identity {
	return &authmw.Identity{
		UserID:      claims.Subject,
		PhoneNumber: claims.PhoneNumber,
	}
}

// Verifier adapts JWTService to the auth middleware.
type Verifier struct {
	service *JWTService
}

func NewVerifier(service *JWTService) *Verifier {
	return &Verifier{service: service}
}

func (v *Verifier) Verify(ctx context.Context, token string) (*authmw.Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	claims, err := v.service.ValidateToken(token)
	if err != nil {
		return nil, err
	}
	return ToIdentity(claims), nil
}
