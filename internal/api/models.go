package api

import (
	"time"

	"github.com/taskmaster-hq/taskmaster-api/internal/domain"
)

// CreateTaskRequest defines the payload for POST /tasks.
type CreateTaskRequest struct {
	Title       string `json:"title"       validate:"required"`
	Description string `json:"description"`
	Category    string `json:"category"    validate:"required"`
	Email       string `json:"email"       validate:"required,email"`
}

// UpdateTaskRequest defines the payload for PUT /tasks/{id}. Email proves
// ownership and is never written; absent fields are left unchanged.
type UpdateTaskRequest struct {
	Email       string  `json:"email"       validate:"required,email"`
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Category    *string `json:"category"`
	Order       *int    `json:"order"`
}

// ToDomain converts the request into a field patch.
func (r UpdateTaskRequest) ToDomain() domain.TaskUpdate {
	return domain.TaskUpdate{
		Title:       r.Title,
		Description: r.Description,
		Category:    r.Category,
		Order:       r.Order,
	}
}

// DeleteTaskRequest is the optional body of DELETE /tasks/{id}. The email may
// be given as a query parameter instead.
type DeleteTaskRequest struct {
	Email string `json:"email"`
}

// ReorderItemRequest is one element of the PUT /tasks/reorder body.
type ReorderItemRequest struct {
	ID       string `json:"_id"      validate:"required"`
	Category string `json:"category"`
	Order    int    `json:"order"    validate:"required,gt=0"`
}

// CreateUserRequest defines the payload for POST /users.
type CreateUserRequest struct {
	Email   string `json:"email"   validate:"required,email"`
	Name    string `json:"name"`
	Image   string `json:"image"`
	IsAdmin bool   `json:"isAdmin"`
}

// TokenRequest defines the payload for POST /auth/token.
type TokenRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// TaskResponse is the wire form of a task. The store-assigned identity is
// always rendered as a string under _id.
type TaskResponse struct {
	ID          string    `json:"_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Email       string    `json:"email"`
	Order       int       `json:"order"`
	CreatedAt   time.Time `json:"createdAt"`
}

// TaskMutationResponse acknowledges an insert or update and returns the task
// as stored afterwards.
type TaskMutationResponse struct {
	Message string       `json:"message"`
	Task    TaskResponse `json:"task"`
}

// ReorderResponse reports the outcome of a bulk reorder.
type ReorderResponse struct {
	Message string `json:"message"`
	*domain.ReorderResult
}

// UserResponse is the wire form of a user.
type UserResponse struct {
	ID        string    `json:"_id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Image     string    `json:"image"`
	IsAdmin   bool      `json:"isAdmin"`
	CreatedAt time.Time `json:"createdAt"`
}

// UserMutationResponse acknowledges a user registration.
type UserMutationResponse struct {
	Message string       `json:"message"`
	User    UserResponse `json:"user"`
}

// TokenResponse carries an issued access token.
type TokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

func toTaskResponse(t *domain.Task) TaskResponse {
	return TaskResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Category:    t.Category,
		Email:       t.OwnerID,
		Order:       t.Order,
		CreatedAt:   t.CreatedAt,
	}
}

func toTaskResponses(tasks []*domain.Task) []TaskResponse {
	out := make([]TaskResponse, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, toTaskResponse(t))
	}
	return out
}

func toUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Image:     u.Image,
		IsAdmin:   u.IsAdmin,
		CreatedAt: u.CreatedAt,
	}
}

func toReorderItems(reqs []ReorderItemRequest) []domain.ReorderItem {
	items := make([]domain.ReorderItem, len(reqs))
	for i, r := range reqs {
		items[i] = domain.ReorderItem{ID: r.ID, Category: r.Category, Order: r.Order}
	}
	return items
}
