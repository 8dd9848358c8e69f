package user

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commboard/service/internal/middleware"
)

type stubReader map[int64]*User

func (s stubReader) GetByID(_ context.Context, id int64) (*User, error) {
	if id == 500 {
		return nil, errors.New("connection refused")
	}
	u, ok := s[id]
	if !ok {
		return nil, ErrNotFound
	}
	return u, nil
}

func TestGetMe(t *testing.T) {
	url := "http://cdn.test/profile/7/a.png"
	h := NewHandler(NewService(stubReader{
		7: {ID: 7, Email: "kim@board.test", Nickname: "kim", Role: "USER", ProfileImageURL: &url},
	}))

	tests := []struct {
		name     string
		caller   int64
		wantCode int
	}{
		{"anonymous", 0, http.StatusUnauthorized},
		{"found", 7, http.StatusOK},
		{"deleted account", 8, http.StatusNotFound},
		{"database down", 500, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
			if tt.caller != 0 {
				req = req.WithContext(middleware.WithIdentity(req.Context(), tt.caller))
			}
			rec := httptest.NewRecorder()
			h.GetMe(rec, req)
			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
	req = req.WithContext(middleware.WithIdentity(req.Context(), 7))
	rec := httptest.NewRecorder()
	h.GetMe(rec, req)

	var env struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, url, env.Data["profileImageUrl"])
	assert.Equal(t, "kim", env.Data["nickname"])
}
