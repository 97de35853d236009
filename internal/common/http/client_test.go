package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "visa-portal/internal/common/errors"
)

type recordingObserver struct {
	mu       sync.Mutex
	statuses []string
}

func (o *recordingObserver) RecordBackendCall(_ context.Context, _ string, _ time.Duration, status string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.statuses = append(o.statuses, status)
}

func TestDoJSON_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/auth/login", r.URL.Path)
		assert.Equal(t, "x", r.URL.Query().Get("q"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "a@b.c", body["email"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"token":"t-1"}`))
	}))
	defer server.Close()

	observer := &recordingObserver{}
	client := NewClient(server.URL+"/", time.Second).WithObserver(observer)

	var out struct {
		Token string `json:"token"`
	}
	err := client.DoJSON(context.Background(), Request{
		Method: http.MethodPost,
		Path:   "/auth/login",
		Query:  url.Values{"q": {"x"}},
		Token:  "tok",
		Body:   map[string]string{"email": "a@b.c"},
	}, &out)

	require.NoError(t, err)
	assert.Equal(t, "t-1", out.Token)
	assert.Equal(t, []string{"200"}, observer.statuses)
}

func TestDoJSON_ErrorMapping(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantCode  apperrors.ErrorCode
		retryable bool
	}{
		{"unauthorized", http.StatusUnauthorized, "", apperrors.ErrCodeBackendUnauthorized, false},
		{"forbidden", http.StatusForbidden, "", apperrors.ErrCodeBackendUnauthorized, false},
		{"bad request", http.StatusBadRequest, `{"error":"nope"}`, apperrors.ErrCodeBackendRequestFailed, false},
		{"server error", http.StatusInternalServerError, "boom", apperrors.ErrCodeBackendRequestFailed, true},
		{"undecodable body", http.StatusOK, "not json", apperrors.ErrCodeBackendRequestFailed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			var out map[string]interface{}
			err := NewClient(server.URL, time.Second).DoJSON(context.Background(), Request{Method: http.MethodGet, Path: "/x"}, &out)

			require.Error(t, err)
			stdErr, ok := apperrors.AsStandardError(err)
			require.True(t, ok)
			assert.Equal(t, tt.wantCode, stdErr.Code)
			assert.Equal(t, tt.retryable, stdErr.Retryable)
		})
	}
}

func TestDoJSON_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close()

	err := NewClient(server.URL, time.Second).DoJSON(context.Background(), Request{Method: http.MethodGet, Path: "/x"}, nil)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeBackendUnavailable))
}

func TestDoJSON_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewClient(server.URL, time.Second).DoJSON(ctx, Request{Method: http.MethodGet, Path: "/x"}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDoJSON_EmptyBodyIsSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	var out map[string]interface{}
	err := NewClient(server.URL, time.Second).DoJSON(context.Background(), Request{Method: http.MethodPut, Path: "/x"}, &out)
	assert.NoError(t, err)
}
