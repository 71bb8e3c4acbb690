package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/taskmaster-hq/taskmaster-api/internal/api/middleware"
	"github.com/taskmaster-hq/taskmaster-api/internal/domain"
	"github.com/taskmaster-hq/taskmaster-api/internal/mocks"
	"github.com/taskmaster-hq/taskmaster-api/internal/service/auth"
)

var testNow = time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC)

// newTaskRouter mounts the task routes the way the server does.
func newTaskRouter(svc *mocks.MockTaskService, verifier auth.Verifier) http.Handler {
	h := NewTaskHandler(svc, verifier, nil)

	r := chi.NewRouter()
	r.Use(middleware.BearerToken)
	r.Route("/tasks", func(r chi.Router) {
		r.Get("/", h.ListTasks)
		r.Post("/", h.CreateTask)
		r.Put("/reorder", h.ReorderTasks)
		r.Get("/{id}", h.ListTasksByOwner)
		r.Put("/{id}", h.UpdateTask)
		r.Delete("/{id}", h.DeleteTask)
	})
	return r
}

func doRequest(t *testing.T, h http.Handler, method, target string, body interface{}, header ...string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, target, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func sampleTask(id, owner, category string, order int) *domain.Task {
	return &domain.Task{
		ID:        id,
		OwnerID:   owner,
		Category:  category,
		Title:     "task " + id,
		Order:     order,
		CreatedAt: testNow,
	}
}
