package shared

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type decodeTarget struct {
	Title string `json:"title" validate:"required"`
	Email string `json:"email" validate:"required,email"`
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid", `{"title":"a","email":"a@b.co"}`, false},
		{"unknown field", `{"title":"a","email":"a@b.co","owner":"x"}`, true},
		{"malformed", `{"title":`, true},
		{"trailing value", `{"title":"a"} {"title":"b"}`, true},
		{"wrong type", `{"title":7}`, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body))
			var v decodeTarget
			err := DecodeJSON(httptest.NewRecorder(), req, &v)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "a", v.Title)
		})
	}
}

func TestDecodeJSON_EmptyBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	var v decodeTarget
	assert.ErrorIs(t, DecodeJSON(httptest.NewRecorder(), req, &v), ErrEmptyBody)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader("  "))
	assert.ErrorIs(t, DecodeJSON(httptest.NewRecorder(), req, &v), ErrEmptyBody)
}

func TestDecodeJSON_TooLarge(t *testing.T) {
	body := `{"title":"` + strings.Repeat("x", MaxBodyBytes) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	var v decodeTarget
	assert.Error(t, DecodeJSON(httptest.NewRecorder(), req, &v))
}

type selfValidating struct{ ok bool }

func (s selfValidating) Validate() error {
	if !s.ok {
		return errors.New("not ok")
	}
	return nil
}

func TestValidateRequest(t *testing.T) {
	assert.NoError(t, ValidateRequest(&decodeTarget{Title: "a", Email: "a@b.co"}))
	assert.Error(t, ValidateRequest(&decodeTarget{Title: "a", Email: "nope"}))
	assert.Error(t, ValidateRequest(&decodeTarget{Email: "a@b.co"}))

	assert.NoError(t, ValidateRequest(selfValidating{ok: true}))
	assert.Error(t, ValidateRequest(selfValidating{}))
}

func TestValidateRequestReportsJSONNames(t *testing.T) {
	type item struct {
		ID string `json:"_id" validate:"required"`
	}
	err := ValidateRequest(&item{})
	var verrs validator.ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.Equal(t, "_id", verrs[0].Field())
}
