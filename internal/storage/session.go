package storage

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	apperrors "visa-portal/internal/common/errors"
	"visa-portal/internal/common/logger"
	"visa-portal/internal/common/metrics"
)

// SchemaVersion is written into every envelope; other versions read as absent.
const SchemaVersion = 1

// Fixed keys under which the wizard persists its state.
const (
	KeyToken                  = "token"
	KeyUser                   = "user"
	KeyVisaApplication        = "visa_application"
	KeySelectedUniversity     = "selected_university"
	KeySelectedAgency         = "selected_agency"
	KeyApplicationFormAnswers = "application_form_answers"
	KeyApplicationProgress    = "application_progress"
	KeyAgencyFormDrafts       = "agency_form_drafts"
)

type envelope struct {
	Version int             `json:"version"`
	Value   json.RawMessage `json:"value"`
}

// Session is the typed, versioned view of one session's keys.
type Session struct {
	store  KVStore
	prefix string
	id     string
	logger logger.Logger
}

func NewSession(store KVStore, prefix, sessionID string, log logger.Logger) *Session {
	return &Session{
		store:  store,
		prefix: prefix,
		id:     sessionID,
		logger: log.WithFields(map[string]interface{}{"component": "storage", "sessionId": sessionID}),
	}
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) fullKey(key string) string {
	parts := make([]string, 0, 3)
	if s.prefix != "" {
		parts = append(parts, s.prefix)
	}
	return strings.Join(append(parts, s.id, key), ":")
}

// Load decodes the value stored under key into out and reports whether it did.
// Read failures, corrupt data and foreign versions are logged and read as absent.
func (s *Session) Load(ctx context.Context, key string, out interface{}) bool {
	raw, err := s.store.Get(ctx, s.fullKey(key))
	if errors.Is(err, ErrNotFound) {
		return false
	}
	if err != nil {
		s.fallback(key, "read_error", apperrors.NewStorageReadFailedError(key, err))
		return false
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		s.fallback(key, "corrupt", err)
		return false
	}
	if env.Version != SchemaVersion {
		s.fallback(key, "version_mismatch", nil)
		return false
	}
	if len(env.Value) == 0 || string(env.Value) == "null" {
		return false
	}
	if err := json.Unmarshal(env.Value, out); err != nil {
		s.fallback(key, "corrupt", err)
		return false
	}
	return true
}

func (s *Session) fallback(key, reason string, err error) {
	metrics.StorageReadFallbacks.WithLabelValues(reason).Inc()
	fields := map[string]interface{}{"key": key, "reason": reason}
	if err != nil {
		fields["error"] = err.Error()
	}
	s.logger.Warn("persisted value treated as absent", fields)
}

// Save writes value under key, replacing what was there.
func (s *Session) Save(ctx context.Context, key string, value interface{}) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return apperrors.NewStorageWriteFailedError(key, err)
	}
	data, err := json.Marshal(envelope{Version: SchemaVersion, Value: payload})
	if err != nil {
		return apperrors.NewStorageWriteFailedError(key, err)
	}
	if err := s.store.Set(ctx, s.fullKey(key), data); err != nil {
		return apperrors.NewStorageWriteFailedError(key, err)
	}
	return nil
}

// Clear deletes the given keys.
func (s *Session) Clear(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.fullKey(k)
	}
	if err := s.store.Delete(ctx, full...); err != nil {
		return apperrors.NewStorageWriteFailedError(strings.Join(keys, ","), err)
	}
	return nil
}
