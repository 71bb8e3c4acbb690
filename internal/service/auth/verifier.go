// Package auth turns the identity a request claims into a verified
// Identity. The ordering engine only ever sees the verified form.
package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/taskmaster-hq/taskmaster-api/internal/config"
	"github.com/taskmaster-hq/taskmaster-api/internal/domain"
)

// Claim is the identity material presented with a request. Email comes from
// the query string or body; Token from the Authorization header.
type Claim struct {
	Email string
	Token string
}

// Identity is a verified caller. Email is the owner ID of the caller's tasks.
type Identity struct {
	Email string
}

// Verifier checks a Claim.
type Verifier interface {
	Verify(ctx context.Context, claim Claim) (Identity, error)
}

// EmailVerifier accepts any well-formed email as the caller's identity.
type EmailVerifier struct{}

var _ Verifier = EmailVerifier{}

// Verify implements Verifier.
func (EmailVerifier) Verify(_ context.Context, claim Claim) (Identity, error) {
	email := strings.TrimSpace(claim.Email)
	if email == "" {
		return Identity{}, ErrMissingIdentity
	}
	if err := (&domain.User{Email: email}).Validate(); err != nil {
		return Identity{}, err
	}
	return Identity{Email: email}, nil
}

// JWTVerifier requires a bearer token issued by JWTService. An email in the
// request, when present, must match the token subject.
type JWTVerifier struct {
	tokens JWTService
}

// NewJWTVerifier creates a JWTVerifier.
func NewJWTVerifier(tokens JWTService) *JWTVerifier {
	return &JWTVerifier{tokens: tokens}
}

var _ Verifier = (*JWTVerifier)(nil)

// Verify implements Verifier.
func (v *JWTVerifier) Verify(ctx context.Context, claim Claim) (Identity, error) {
	if claim.Token == "" {
		return Identity{}, ErrMissingToken
	}

	claims, err := v.tokens.ValidateToken(ctx, claim.Token)
	if err != nil {
		return Identity{}, err
	}

	if email := strings.TrimSpace(claim.Email); email != "" && email != claims.Email {
		return Identity{}, ErrIdentityMismatch
	}
	return Identity{Email: claims.Email}, nil
}

// NewVerifier builds the Verifier selected by cfg.Mode. The JWTService is
// nil in email mode.
func NewVerifier(cfg config.AuthConfig) (Verifier, JWTService, error) {
	switch cfg.Mode {
	case "email":
		return EmailVerifier{}, nil, nil
	case "jwt":
		tokens, err := NewJWTService(cfg)
		if err != nil {
			return nil, nil, err
		}
		return NewJWTVerifier(tokens), tokens, nil
	default:
		return nil, nil, fmt.Errorf("unknown auth mode %q", cfg.Mode)
	}
}
