package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrymomot/clinickit/internal/domain"
	"github.com/dmitrymomot/clinickit/internal/store"
	"github.com/dmitrymomot/clinickit/pkg/audit"
	"github.com/dmitrymomot/clinickit/pkg/jwt"
	"github.com/dmitrymomot/clinickit/pkg/logger"
)

// CredentialStore looks up live users of the tenant in context.
type CredentialStore interface {
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	TouchLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}

// TokenIssuer signs access tokens.
type TokenIssuer interface {
	Issue(tenantID, userID uuid.UUID, role string) (string, jwt.Claims, error)
}

// AuthService signs tenant users in with email and password.
type AuthService struct {
	users  CredentialStore
	tokens TokenIssuer
	audit  AuditLog
	logger *slog.Logger
	now    func() time.Time
	dummy  []byte
}

// AuthOption configures an AuthService.
type AuthOption func(*AuthService)

// WithAuthAudit records logins and failed attempts.
func WithAuthAudit(a AuditLog) AuthOption {
	return func(s *AuthService) {
		if a != nil {
			s.audit = a
		}
	}
}

// WithAuthLogger sets the service logger.
func WithAuthLogger(l *slog.Logger) AuthOption {
	return func(s *AuthService) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithAuthBcryptCost sets the cost of the hash compared for unknown
// emails. Match the cost user passwords are hashed with.
func WithAuthBcryptCost(cost int) AuthOption {
	return func(s *AuthService) {
		if hash, err := bcrypt.GenerateFromPassword([]byte("clinickit-unknown-user"), cost); err == nil {
			s.dummy = hash
		}
	}
}

// NewAuthService creates an AuthService issuing tokens with tokens.
func NewAuthService(users CredentialStore, tokens TokenIssuer, opts ...AuthOption) *AuthService {
	s := &AuthService{
		users:  users,
		tokens: tokens,
		audit:  nopAudit{},
		logger: logger.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.dummy == nil {
		WithAuthBcryptCost(bcrypt.DefaultCost)(s)
	}
	return s
}

// LoginInput is the body of a login request.
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Session is an issued access token and its owner.
type Session struct {
	Token     string      `json:"token"`
	TokenType string      `json:"token_type"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      domain.User `json:"user"`
}

// Login checks the credentials against the users of the current tenant and
// issues a token bound to that tenant. Unknown emails, deactivated users and
// wrong passwords all yield ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (Session, error) {
	t, err := currentTenant(ctx)
	if err != nil {
		return Session{}, err
	}
	addr := strings.ToLower(strings.TrimSpace(in.Email))
	if addr == "" || in.Password == "" {
		return Session{}, ErrInvalidCredentials
	}

	u, err := s.users.GetByEmail(ctx, addr)
	switch {
	case errors.Is(err, store.ErrNotFound):
		// Same work as a real comparison so timing does not reveal accounts.
		_ = bcrypt.CompareHashAndPassword(s.dummy, []byte(in.Password))
		return Session{}, s.failed(ctx, addr, "unknown email")
	case err != nil:
		return Session{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(in.Password)); err != nil {
		return Session{}, s.failed(ctx, addr, "wrong password", audit.WithUser(u.ID))
	}

	token, claims, err := s.tokens.Issue(t.ID, u.ID, string(u.Role))
	if err != nil {
		return Session{}, err
	}

	now := s.now().UTC()
	if err := s.users.TouchLogin(ctx, u.ID, now); err != nil {
		s.logger.LogAttrs(ctx, slog.LevelWarn, "failed to record login time", logger.UserID(u.ID), logger.Error(err))
	} else {
		u.LastLoginAt = &now
	}
	_ = s.audit.Info(ctx, "user.login", u.Email, audit.WithUser(u.ID))

	return Session{
		Token:     token,
		TokenType: "Bearer",
		ExpiresAt: claims.ExpiresAt.Time,
		User:      u,
	}, nil
}

func (s *AuthService) failed(ctx context.Context, addr, reason string, opts ...audit.EntryOption) error {
	s.logger.LogAttrs(ctx, slog.LevelInfo, "login failed", slog.String("reason", reason))
	_ = s.audit.Warning(ctx, "user.login_failed", addr, append(opts, audit.WithExtra("reason", reason))...)
	return ErrInvalidCredentials
}
