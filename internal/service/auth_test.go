package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrymomot/clinickit/internal/domain"
	"github.com/dmitrymomot/clinickit/internal/service"
	"github.com/dmitrymomot/clinickit/internal/store"
	"github.com/dmitrymomot/clinickit/pkg/jwt"
	"github.com/dmitrymomot/clinickit/pkg/tenant"
)

func TestAuthService_Login(t *testing.T) {
	t.Parallel()

	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	require.NoError(t, err)
	tokens, err := jwt.NewFromString("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)

	newService := func(users *mockCredentials, a *mockAudit) *service.AuthService {
		return service.NewAuthService(users, tokens,
			service.WithAuthBcryptCost(bcrypt.MinCost), service.WithAuthAudit(a))
	}

	t.Run("issues a token bound to the tenant", func(t *testing.T) {
		t.Parallel()
		tn := clinic(5, 100)
		u := domain.User{ID: uuid.New(), TenantID: tn.ID, Email: "ana@example.com", Role: domain.RoleTherapist, PasswordHash: string(hash)}
		users := &mockCredentials{}
		users.On("GetByEmail", mock.Anything, "ana@example.com").Return(u, nil)
		users.On("TouchLogin", mock.Anything, u.ID, mock.Anything).Return(nil)
		a := &mockAudit{}
		a.On("Info", mock.Anything, "user.login", "ana@example.com").Return(nil)

		ctx := tenant.WithTenant(context.Background(), tn)
		sess, err := newService(users, a).Login(ctx, service.LoginInput{Email: " Ana@Example.com ", Password: "correct-horse"})
		require.NoError(t, err)
		assert.Equal(t, "Bearer", sess.TokenType)
		assert.NotNil(t, sess.User.LastLoginAt)
		assert.False(t, sess.ExpiresAt.IsZero())

		claims, err := tokens.Parse(sess.Token)
		require.NoError(t, err)
		assert.Equal(t, tn.ID, claims.TenantID)
		assert.Equal(t, u.ID, claims.UserID)
		assert.Equal(t, "therapist", claims.Role)
		users.AssertExpectations(t)
		a.AssertExpectations(t)
	})

	t.Run("wrong password", func(t *testing.T) {
		t.Parallel()
		u := domain.User{ID: uuid.New(), Email: "ana@example.com", Role: domain.RoleAdmin, PasswordHash: string(hash)}
		users := &mockCredentials{}
		users.On("GetByEmail", mock.Anything, "ana@example.com").Return(u, nil)
		a := &mockAudit{}
		a.On("Warning", mock.Anything, "user.login_failed", "ana@example.com").Return(nil)

		ctx := tenant.WithTenant(context.Background(), clinic(5, 100))
		_, err := newService(users, a).Login(ctx, service.LoginInput{Email: "ana@example.com", Password: "battery-staple"})
		require.ErrorIs(t, err, service.ErrInvalidCredentials)
		users.AssertNotCalled(t, "TouchLogin", mock.Anything, mock.Anything, mock.Anything)
		a.AssertExpectations(t)
	})

	t.Run("unknown email", func(t *testing.T) {
		t.Parallel()
		users := &mockCredentials{}
		users.On("GetByEmail", mock.Anything, "ghost@example.com").Return(domain.User{}, store.ErrNotFound)
		a := &mockAudit{}
		a.On("Warning", mock.Anything, "user.login_failed", "ghost@example.com").Return(nil)

		ctx := tenant.WithTenant(context.Background(), clinic(5, 100))
		_, err := newService(users, a).Login(ctx, service.LoginInput{Email: "ghost@example.com", Password: "whatever"})
		require.ErrorIs(t, err, service.ErrInvalidCredentials)
	})

	t.Run("empty credentials", func(t *testing.T) {
		t.Parallel()
		users := &mockCredentials{}
		ctx := tenant.WithTenant(context.Background(), clinic(5, 100))
		_, err := newService(users, &mockAudit{}).Login(ctx, service.LoginInput{Email: "ana@example.com"})
		require.ErrorIs(t, err, service.ErrInvalidCredentials)
		users.AssertNotCalled(t, "GetByEmail", mock.Anything, mock.Anything)
	})

	t.Run("storage error is not masked", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("connection reset")
		users := &mockCredentials{}
		users.On("GetByEmail", mock.Anything, "ana@example.com").Return(domain.User{}, boom)

		ctx := tenant.WithTenant(context.Background(), clinic(5, 100))
		_, err := newService(users, &mockAudit{}).Login(ctx, service.LoginInput{Email: "ana@example.com", Password: "x"})
		require.ErrorIs(t, err, boom)
	})

	t.Run("requires a tenant", func(t *testing.T) {
		t.Parallel()
		_, err := newService(&mockCredentials{}, &mockAudit{}).Login(context.Background(), service.LoginInput{Email: "a@b.c", Password: "x"})
		require.ErrorIs(t, err, tenant.ErrNoTenantInContext)
	})
}
