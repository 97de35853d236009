package storage

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"visa-portal/internal/models"
)

// Token returns the stored bearer token. An expired JWT reads as absent; opaque
// tokens are returned as stored.
func (s *Session) Token(ctx context.Context) (string, bool) {
	var token string
	if !s.Load(ctx, KeyToken, &token) || token == "" {
		return "", false
	}
	if tokenExpired(token, time.Now()) {
		s.logger.Info("stored token expired", nil)
		return "", false
	}
	return token, true
}

func tokenExpired(token string, now time.Time) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !exp.After(now)
}

// SetAuth stores the login result.
func (s *Session) SetAuth(ctx context.Context, token string, user models.User) error {
	if err := s.Save(ctx, KeyToken, token); err != nil {
		return err
	}
	return s.Save(ctx, KeyUser, user)
}

func (s *Session) User(ctx context.Context) (*models.User, bool) {
	var u models.User
	if !s.Load(ctx, KeyUser, &u) {
		return nil, false
	}
	return &u, true
}

// Logout removes the credentials only.
func (s *Session) Logout(ctx context.Context) error {
	return s.Clear(ctx, KeyToken, KeyUser)
}

func (s *Session) VisaApplication(ctx context.Context) (*models.VisaApplication, bool) {
	var v models.VisaApplication
	if !s.Load(ctx, KeyVisaApplication, &v) {
		return nil, false
	}
	return &v, true
}

func (s *Session) SetVisaApplication(ctx context.Context, v models.VisaApplication) error {
	return s.Save(ctx, KeyVisaApplication, v)
}

func (s *Session) SelectedUniversity(ctx context.Context) (string, bool) {
	var name string
	if !s.Load(ctx, KeySelectedUniversity, &name) || name == "" {
		return "", false
	}
	return name, true
}

func (s *Session) SetSelectedUniversity(ctx context.Context, name string) error {
	return s.Save(ctx, KeySelectedUniversity, name)
}

func (s *Session) SelectedAgency(ctx context.Context) (*models.Agency, bool) {
	var a models.Agency
	if !s.Load(ctx, KeySelectedAgency, &a) {
		return nil, false
	}
	return &a, true
}

func (s *Session) SetSelectedAgency(ctx context.Context, a models.Agency) error {
	return s.Save(ctx, KeySelectedAgency, a)
}

func (s *Session) FormAnswers(ctx context.Context) models.FormAnswers {
	answers := models.FormAnswers{}
	if !s.Load(ctx, KeyApplicationFormAnswers, &answers) {
		return models.FormAnswers{}
	}
	return answers
}

func (s *Session) SetFormAnswers(ctx context.Context, answers models.FormAnswers) error {
	return s.Save(ctx, KeyApplicationFormAnswers, answers)
}

// ClearSelection drops everything the wizard collected except the credentials.
func (s *Session) ClearSelection(ctx context.Context) error {
	return s.Clear(ctx,
		KeyVisaApplication,
		KeySelectedUniversity,
		KeySelectedAgency,
		KeyApplicationFormAnswers,
	)
}
