package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrymomot/clinickit/internal/domain"
	"github.com/dmitrymomot/clinickit/internal/store"
	"github.com/dmitrymomot/clinickit/pkg/audit"
	"github.com/dmitrymomot/clinickit/pkg/email"
	"github.com/dmitrymomot/clinickit/pkg/limits"
	"github.com/dmitrymomot/clinickit/pkg/logger"
	"github.com/dmitrymomot/clinickit/pkg/scope"
)

// MinPasswordLength is the shortest password Create accepts.
const MinPasswordLength = 8

// UserRepository is implemented by *store.UserStore.
type UserRepository interface {
	Create(ctx context.Context, u *domain.User) error
	Get(ctx context.Context, id uuid.UUID, opts ...scope.Option) (domain.User, error)
	List(ctx context.Context, v scope.Visibility, limit, offset int) ([]domain.User, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
	Restore(ctx context.Context, id uuid.UUID) error
}

// UserService manages the users of the tenant in context.
type UserService struct {
	repo   UserRepository
	limits LimitChecker
	audit  AuditLog
	logger *slog.Logger
	cost   int
}

// UserOption configures a UserService.
type UserOption func(*UserService)

// WithUserAudit records user lifecycle events.
func WithUserAudit(a AuditLog) UserOption {
	return func(s *UserService) {
		if a != nil {
			s.audit = a
		}
	}
}

// WithUserLogger sets the service logger.
func WithUserLogger(l *slog.Logger) UserOption {
	return func(s *UserService) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithBcryptCost overrides the hashing cost; tests use bcrypt.MinCost.
func WithBcryptCost(cost int) UserOption {
	return func(s *UserService) { s.cost = cost }
}

// NewUserService creates a UserService.
func NewUserService(repo UserRepository, lc LimitChecker, opts ...UserOption) *UserService {
	s := &UserService{
		repo:   repo,
		limits: lc,
		audit:  nopAudit{},
		logger: logger.Nop(),
		cost:   bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateUserInput is the body of a new user.
type CreateUserInput struct {
	Email    string      `json:"email"`
	Name     string      `json:"name"`
	Role     domain.Role `json:"role"`
	Phone    string      `json:"phone,omitempty"`
	Password string      `json:"password"`
}

func (in CreateUserInput) validate() error {
	var errs []error
	if !email.ValidAddress(strings.TrimSpace(in.Email)) {
		errs = append(errs, errors.New("email is invalid"))
	}
	if strings.TrimSpace(in.Name) == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if !in.Role.Valid() {
		errs = append(errs, fmt.Errorf("unknown role %q", in.Role))
	}
	if len(errs) > 0 {
		return errors.Join(append([]error{ErrInvalidInput}, errs...)...)
	}
	if len(in.Password) < MinPasswordLength {
		return ErrPasswordPolicy
	}
	return nil
}

// Create adds a user to the current tenant if its user limit allows one
// more.
func (s *UserService) Create(ctx context.Context, in CreateUserInput) (domain.User, error) {
	t, err := currentTenant(ctx)
	if err != nil {
		return domain.User{}, err
	}
	if err := in.validate(); err != nil {
		return domain.User{}, err
	}
	if _, err := s.limits.Check(ctx, t, limits.ResourceUsers, 1); err != nil {
		return domain.User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return domain.User{}, err
	}
	u := domain.User{
		Email:        in.Email,
		Name:         strings.TrimSpace(in.Name),
		Role:         in.Role,
		Phone:        in.Phone,
		PasswordHash: string(hash),
	}
	if err := s.repo.Create(ctx, &u); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return domain.User{}, ErrEmailTaken
		}
		return domain.User{}, err
	}
	s.limits.Invalidate(ctx, t.ID, limits.ResourceUsers)

	s.logger.LogAttrs(ctx, slog.LevelInfo, "user created", logger.UserID(u.ID), slog.String("role", string(u.Role)))
	_ = s.audit.Info(ctx, "user.created", u.Email, audit.WithExtra("user_id", u.ID.String()))
	return u, nil
}

// Get returns a user; soft-deleted ones only when withDeleted is set.
func (s *UserService) Get(ctx context.Context, id uuid.UUID, withDeleted bool) (domain.User, error) {
	var opts []scope.Option
	if withDeleted {
		opts = append(opts, scope.WithDeleted())
	}
	u, err := s.repo.Get(ctx, id, opts...)
	if errors.Is(err, store.ErrNotFound) {
		return u, ErrNotFound
	}
	return u, err
}

// List returns users of the current tenant ordered by name.
func (s *UserService) List(ctx context.Context, v scope.Visibility, limit, offset int) ([]domain.User, error) {
	return s.repo.List(ctx, v, limit, offset)
}

// Deactivate soft-deletes a user, freeing a seat.
func (s *UserService) Deactivate(ctx context.Context, id uuid.UUID) error {
	t, err := currentTenant(ctx)
	if err != nil {
		return err
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	s.limits.Invalidate(ctx, t.ID, limits.ResourceUsers)
	_ = s.audit.Info(ctx, "user.deactivated", id.String(), audit.WithExtra("user_id", id.String()))
	return nil
}

// Restore brings a deactivated user back if a seat is available.
func (s *UserService) Restore(ctx context.Context, id uuid.UUID) error {
	t, err := currentTenant(ctx)
	if err != nil {
		return err
	}
	if _, err := s.limits.Check(ctx, t, limits.ResourceUsers, 1); err != nil {
		return err
	}
	if err := s.repo.Restore(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	s.limits.Invalidate(ctx, t.ID, limits.ResourceUsers)
	return nil
}
