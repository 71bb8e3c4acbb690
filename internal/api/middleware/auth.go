package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/taskmaster-hq/taskmaster-api/internal/api/shared"
	"github.com/taskmaster-hq/taskmaster-api/internal/service/auth"
)

type tokenKey struct{}

// ExtractBearerToken returns the token of an "Authorization: Bearer <token>"
// header. A missing header yields auth.ErrMissingToken and any other scheme
// or shape yields auth.ErrInvalidToken.
func ExtractBearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", auth.ErrMissingToken
	}

	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", auth.ErrInvalidToken
	}
	return parts[1], nil
}

// BearerToken stores the request's bearer token, if any, in the context so
// handlers can present it to an auth.Verifier alongside the email they were
// given. Requests without an Authorization header pass through untouched;
// a malformed header is rejected with 401.
func BearerToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := ExtractBearerToken(r)
		switch err {
		case nil:
			r = r.WithContext(context.WithValue(r.Context(), tokenKey{}, token))
		case auth.ErrMissingToken:
		default:
			shared.RespondWithErrorAndLog(w, r, http.StatusUnauthorized,
				"Invalid authorization format", err, shared.WithElevatedLogLevel())
			return
		}
		next.ServeHTTP(w, r)
	})
}

// TokenFromContext returns the token stored by BearerToken, or "".
func TokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}
