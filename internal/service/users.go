package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pbaille/readai/internal/domain"
	"github.com/pbaille/readai/internal/store"
	"github.com/ternarybob/arbor"
)

// SeedRequest holds the default user's credentials.
type SeedRequest struct {
	Username string `json:"username" validate:"notblank,max=64"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// UserService owns the default user that anonymous documents and
// highlights belong to.
type UserService struct {
	store    store.Store
	logger   arbor.ILogger
	validate *validator.Validate
}

// NewUserService creates a UserService.
func NewUserService(s store.Store, logger arbor.ILogger) *UserService {
	return &UserService{store: s, logger: logger, validate: newValidator()}
}

// Seed validates the credentials and creates the default user. Nothing is
// written when validation fails.
func (s *UserService) Seed(ctx context.Context, req SeedRequest) (domain.User, error) {
	req.Username = strings.TrimSpace(req.Username)
	if err := check(s.validate, req); err != nil {
		return domain.User{}, err
	}

	u, err := s.store.Seed(ctx, domain.NewUser{Username: req.Username, Password: req.Password})
	if err != nil {
		return domain.User{}, err
	}

	s.logger.Info().
		Int64("user_id", u.ID).
		Str("username", u.Username).
		Msg("Default user seeded")
	return u, nil
}
