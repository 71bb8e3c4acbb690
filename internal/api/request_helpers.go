package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/taskmaster-hq/taskmaster-api/internal/api/middleware"
	"github.com/taskmaster-hq/taskmaster-api/internal/api/shared"
	"github.com/taskmaster-hq/taskmaster-api/internal/domain"
	"github.com/taskmaster-hq/taskmaster-api/internal/service/auth"
)

// pathParam returns the trimmed chi URL parameter, or a validation error
// when it is blank.
func pathParam(r *http.Request, name string) (string, error) {
	value := strings.TrimSpace(chi.URLParam(r, name))
	if value == "" {
		return "", domain.NewValidationError(name, "is required", domain.ErrInvalidID)
	}
	return value, nil
}

// decodeAndValidate strictly decodes the body into v and validates it. On
// failure it writes the error response and returns false.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := shared.DecodeJSON(w, r, v); err != nil {
		HandleAPIError(w, r, invalidBody(err), "")
		return false
	}
	if err := shared.ValidateRequest(v); err != nil {
		HandleAPIError(w, r, err, "")
		return false
	}
	return true
}

// invalidBody marks a JSON decoding failure as a validation error so it
// maps to 400 without echoing decoder internals to the client.
func invalidBody(err error) error {
	if err == shared.ErrEmptyBody {
		return err
	}
	return domain.NewValidationError("", "request body is not valid JSON for this endpoint", err)
}

// identify verifies the caller named by email, presenting the bearer token
// stored by middleware.BearerToken when there is one. On failure it writes
// the error response and returns false.
func identify(
	w http.ResponseWriter,
	r *http.Request,
	verifier auth.Verifier,
	email string,
) (auth.Identity, bool) {
	id, err := verifier.Verify(r.Context(), auth.Claim{
		Email: email,
		Token: middleware.TokenFromContext(r.Context()),
	})
	if err != nil {
		HandleAPIError(w, r, err, "")
		return auth.Identity{}, false
	}
	return id, true
}
