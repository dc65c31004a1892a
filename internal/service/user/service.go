// Package user implements the user directory.
package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jwalitptl/clinic-portal/internal/model"
	"github.com/jwalitptl/clinic-portal/internal/repository"
	apperrors "github.com/jwalitptl/clinic-portal/pkg/errors"
	"github.com/jwalitptl/clinic-portal/pkg/event"
	"github.com/jwalitptl/clinic-portal/pkg/security"
	"github.com/jwalitptl/clinic-portal/pkg/validator"
)

type Service struct {
	repo      repository.UserRepository
	hasher    security.PasswordHasher
	publisher event.Publisher
	now       func() time.Time

	dummyOnce sync.Once
	dummy     string
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithPublisher(p event.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func NewService(repo repository.UserRepository, hasher security.PasswordHasher, opts ...Option) *Service {
	s := &Service{
		repo:      repo,
		hasher:    hasher,
		publisher: event.Nop{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func translate(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFound("User", nil)
	case errors.Is(err, repository.ErrConflict):
		return apperrors.NewConflict("Email is already registered", nil)
	}
	return apperrors.NewInternal(err)
}

func (s *Service) GetByID(ctx context.Context, id int64) (*model.User, error) {
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	return user, nil
}

func (s *Service) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	user, err := s.repo.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, translate(err)
	}
	return user, nil
}

func (s *Service) GetAll(ctx context.Context) ([]*model.User, error) {
	users, err := s.repo.List(ctx, "")
	if err != nil {
		return nil, apperrors.NewInternal(fmt.Errorf("failed to list users: %w", err))
	}
	return users, nil
}

func (s *Service) GetDoctors(ctx context.Context) ([]*model.User, error) {
	doctors, err := s.repo.List(ctx, model.RoleDoctor)
	if err != nil {
		return nil, apperrors.NewInternal(fmt.Errorf("failed to list doctors: %w", err))
	}
	return doctors, nil
}

// Register adds a patient. Doctors are provisioned out of band, so the role
// is always patient regardless of input.
func (s *Service) Register(ctx context.Context, req *model.RegisterRequest) (*model.User, error) {
	if err := validateRegistration(req); err != nil {
		return nil, err
	}

	hash, err := s.hashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Email:        strings.TrimSpace(req.Email),
		PasswordHash: hash,
		Name:         strings.TrimSpace(req.Name),
		Phone:        strings.TrimSpace(req.Phone),
		Role:         model.RolePatient,
		CreatedAt:    s.now(),
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, translate(err)
	}

	if err := s.publisher.Publish(ctx, model.EventUserRegistered, user); err != nil {
		return nil, apperrors.NewInternal(err)
	}
	return user, nil
}

// Authenticate verifies email, password and role together. Every mismatch
// yields the same error.
func (s *Service) Authenticate(ctx context.Context, email, password string, role model.Role) (*model.User, error) {
	user, err := s.repo.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewInternal(err)
	}
	// Unknown emails and wrong roles still cost one hash comparison.
	if err != nil || user.Role != role {
		_ = s.hasher.Compare(s.dummyHash(), password)
		return nil, apperrors.InvalidCredentials()
	}
	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		return nil, apperrors.InvalidCredentials()
	}
	return user, nil
}

func (s *Service) dummyHash() string {
	s.dummyOnce.Do(func() {
		s.dummy, _ = s.hasher.Hash("clinic-portal-unknown-account")
	})
	return s.dummy
}

func (s *Service) hashPassword(password string) (string, error) {
	hash, err := s.hasher.Hash(password)
	switch {
	case errors.Is(err, security.ErrPasswordTooShort):
		return "", apperrors.NewValidation(passwordTooShort)
	case errors.Is(err, security.ErrPasswordTooLong):
		return "", apperrors.NewValidation(passwordTooLong)
	case err != nil:
		return "", apperrors.NewInternal(fmt.Errorf("failed to hash password: %w", err))
	}
	return hash, nil
}

// Update merges the non-nil fields of req into the stored user. Id, role and
// creation time never change.
func (s *Service) Update(ctx context.Context, id int64, req *model.UpdateUserRequest) (*model.User, error) {
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, translate(err)
	}

	if req.Email != nil {
		email := strings.TrimSpace(*req.Email)
		if !validator.ValidEmail(email) {
			return nil, apperrors.NewValidation("Email is invalid")
		}
		user.Email = email
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, apperrors.NewValidation("Name is required")
		}
		user.Name = name
	}
	if req.Phone != nil {
		phone := strings.TrimSpace(*req.Phone)
		if phone == "" {
			return nil, apperrors.NewValidation("Phone is required")
		}
		user.Phone = phone
	}
	if req.Specialization != nil && user.IsDoctor() {
		user.Specialization = strings.TrimSpace(*req.Specialization)
	}
	if req.Password != nil {
		hash, err := s.hashPassword(*req.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, translate(err)
	}
	return user, nil
}

var (
	passwordTooShort = fmt.Sprintf("Password must be at least %d characters", security.MinPasswordLen)
	passwordTooLong  = fmt.Sprintf("Password must be at most %d bytes", security.MaxPasswordLen)
)

func validateRegistration(req *model.RegisterRequest) error {
	var problems []string
	if !validator.ValidEmail(strings.TrimSpace(req.Email)) {
		problems = append(problems, "Email is invalid")
	}
	if len(req.Password) < security.MinPasswordLen {
		problems = append(problems, passwordTooShort)
	}
	if len(req.Password) > security.MaxPasswordLen {
		problems = append(problems, passwordTooLong)
	}
	if strings.TrimSpace(req.Name) == "" {
		problems = append(problems, "Name is required")
	}
	if strings.TrimSpace(req.Phone) == "" {
		problems = append(problems, "Phone is required")
	}
	if len(problems) > 0 {
		return apperrors.NewValidation(strings.Join(problems, "; "))
	}
	return nil
}
