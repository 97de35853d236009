package api

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	apperrors "visa-portal/internal/common/errors"
	"visa-portal/internal/common/logger"
	"visa-portal/internal/storage"
)

// SessionHeader carries the id every persisted key is scoped by.
const SessionHeader = "X-Session-ID"

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{8,64}$`)

type sessionKey struct{}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// RequestLogger logs one line per request.
func RequestLogger(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			log.Info("http request", map[string]interface{}{
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     sw.status,
				"durationMs": time.Since(start).Milliseconds(),
			})
		})
	}
}

// Recovery turns a handler panic into a 500 response.
func Recovery(errh *apperrors.ErrorHandler, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.Error("handler panicked", map[string]interface{}{
						"panic": fmt.Sprint(rec),
						"stack": string(debug.Stack()),
					})
					errh.HandleHTTPError(w, r, apperrors.NewInternalError(fmt.Errorf("panic: %v", rec)))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// Sessions binds a storage.Session to the request. A missing or malformed
// session id is replaced by a fresh one, echoed back in the response header.
func Sessions(store storage.KVStore, prefix string, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(SessionHeader)
			if !sessionIDPattern.MatchString(id) {
				id = uuid.NewString()
			}
			w.Header().Set(SessionHeader, id)
			session := storage.NewSession(store, prefix, id, log)
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, session)))
		})
	}
}

func sessionFrom(r *http.Request) *storage.Session {
	s, _ := r.Context().Value(sessionKey{}).(*storage.Session)
	return s
}
