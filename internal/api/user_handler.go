package api

import (
	"log/slog"
	"net/http"

	"github.com/taskmaster-hq/taskmaster-api/internal/api/shared"
	"github.com/taskmaster-hq/taskmaster-api/internal/platform/logger"
	"github.com/taskmaster-hq/taskmaster-api/internal/service"
)

// UserHandler serves user registration.
type UserHandler struct {
	users  service.UserService
	logger *slog.Logger
}

// NewUserHandler creates a UserHandler.
func NewUserHandler(users service.UserService, log *slog.Logger) *UserHandler {
	if log == nil {
		log = slog.Default()
	}
	return &UserHandler{
		users:  users,
		logger: log.With(slog.String("component", "user_handler")),
	}
}

// CreateUser handles POST /users. Registering an email twice is not an
// error: the second call answers 200 with the stored user.
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	user, created, err := h.users.CreateUser(r.Context(), req.Email, req.Name, req.Image, req.IsAdmin)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	if !created {
		logger.FromContextOrDefault(r.Context(), h.logger).Debug("user already registered")
		shared.RespondWithJSON(w, r, http.StatusOK, UserMutationResponse{
			Message: "User already exists",
			User:    toUserResponse(user),
		})
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, UserMutationResponse{
		Message: "User added successfully",
		User:    toUserResponse(user),
	})
}
