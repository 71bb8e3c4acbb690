package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/taskmaster-hq/taskmaster-api/internal/api/shared"
	"github.com/taskmaster-hq/taskmaster-api/internal/platform/logger"
	"github.com/taskmaster-hq/taskmaster-api/internal/service"
	"github.com/taskmaster-hq/taskmaster-api/internal/service/auth"
)

// AuthHandler issues access tokens for registered users. It is only mounted
// when the server runs in jwt auth mode.
type AuthHandler struct {
	users    service.UserService
	tokens   auth.JWTService
	lifetime time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewAuthHandler creates a new AuthHandler with the given dependencies.
func NewAuthHandler(
	users service.UserService,
	tokens auth.JWTService,
	lifetime time.Duration,
	log *slog.Logger,
) *AuthHandler {
	if log == nil {
		log = slog.Default()
	}
	return &AuthHandler{
		users:    users,
		tokens:   tokens,
		lifetime: lifetime,
		logger:   log.With(slog.String("component", "auth_handler")),
		now:      time.Now,
	}
}

// IssueToken handles POST /auth/token. Unknown emails get 404.
func (h *AuthHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	user, err := h.users.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	issuedAt := h.now()
	token, err := h.tokens.GenerateToken(r.Context(), user.Email)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	logger.FromContextOrDefault(r.Context(), h.logger).Debug("issued access token")
	shared.RespondWithJSON(w, r, http.StatusOK, TokenResponse{
		Token:     token,
		ExpiresAt: issuedAt.Add(h.lifetime).UTC().Format(time.RFC3339),
	})
}
