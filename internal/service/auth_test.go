package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/rifthq/smartstats/internal/apperr"
	"github.com/rifthq/smartstats/internal/domain"
	"github.com/rifthq/smartstats/internal/security"
)

func newAuthService(users *MockUserRepository, tokens *MockRefreshTokenRepository) *AuthService {
	jwtManager := security.NewJWTManager("test-secret-key-with-32-chars!!", 15*time.Minute)
	return NewAuthService(users, tokens, jwtManager, 30*24*time.Hour)
}

func TestAuthService_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		users := new(MockUserRepository)
		users.On("EmailExists", ctx, "new@example.com").Return(false, nil)
		users.On("Create", ctx, mock.MatchedBy(func(u *domain.User) bool {
			return u.Email == "new@example.com" && u.Nickname == "faker" && u.PasswordHash != "hunter22pass"
		})).Return(nil)

		tokens := new(MockRefreshTokenRepository)
		tokens.On("Create", ctx, mock.AnythingOfType("*domain.RefreshToken")).Return(nil)

		svc := newAuthService(users, tokens)
		result, err := svc.Register(ctx, domain.UserCreate{
			Email: "new@example.com", Password: "hunter22pass", Nickname: "faker",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, result.Tokens.AccessToken)
		assert.NotEmpty(t, result.Tokens.RefreshToken)
		assert.Contains(t, result.User.ID, "u_")
		users.AssertExpectations(t)
	})

	t.Run("duplicate email conflicts", func(t *testing.T) {
		users := new(MockUserRepository)
		users.On("EmailExists", ctx, "dup@example.com").Return(true, nil)

		svc := newAuthService(users, new(MockRefreshTokenRepository))
		_, err := svc.Register(ctx, domain.UserCreate{Email: "dup@example.com", Password: "hunter22pass"})
		require.Error(t, err)
		assert.Equal(t, apperr.CodeConflict, apperr.From(err).Code)
	})

	t.Run("nickname defaults to email", func(t *testing.T) {
		users := new(MockUserRepository)
		users.On("EmailExists", ctx, "a@b.co").Return(false, nil)
		users.On("Create", ctx, mock.MatchedBy(func(u *domain.User) bool {
			return u.Nickname == "a@b.co"
		})).Return(nil)

		tokens := new(MockRefreshTokenRepository)
		tokens.On("Create", ctx, mock.Anything).Return(nil)

		svc := newAuthService(users, tokens)
		_, err := svc.Register(ctx, domain.UserCreate{Email: "a@b.co", Password: "hunter22pass"})
		require.NoError(t, err)
		users.AssertExpectations(t)
	})
}

func TestAuthService_Login(t *testing.T) {
	ctx := context.Background()
	hash, _ := bcrypt.GenerateFromPassword([]byte("hunter22pass"), bcrypt.MinCost)
	user := &domain.User{ID: "u_1", Email: "a@b.co", PasswordHash: string(hash)}

	t.Run("success", func(t *testing.T) {
		users := new(MockUserRepository)
		users.On("GetByEmail", ctx, "a@b.co").Return(user, nil)

		tokens := new(MockRefreshTokenRepository)
		tokens.On("Create", ctx, mock.MatchedBy(func(rt *domain.RefreshToken) bool {
			return rt.UserID == "u_1" && rt.ExpiresAt.After(time.Now())
		})).Return(nil)

		svc := newAuthService(users, tokens)
		result, err := svc.Login(ctx, domain.UserLogin{Email: "a@b.co", Password: "hunter22pass"})
		require.NoError(t, err)
		assert.Equal(t, "u_1", result.User.ID)
		tokens.AssertExpectations(t)
	})

	t.Run("wrong password", func(t *testing.T) {
		users := new(MockUserRepository)
		users.On("GetByEmail", ctx, "a@b.co").Return(user, nil)

		svc := newAuthService(users, new(MockRefreshTokenRepository))
		_, err := svc.Login(ctx, domain.UserLogin{Email: "a@b.co", Password: "wrong"})
		require.Error(t, err)
		assert.Equal(t, apperr.CodeUnauthorized, apperr.From(err).Code)
	})

	t.Run("unknown email", func(t *testing.T) {
		users := new(MockUserRepository)
		users.On("GetByEmail", ctx, "nobody@b.co").Return(nil, nil)

		svc := newAuthService(users, new(MockRefreshTokenRepository))
		_, err := svc.Login(ctx, domain.UserLogin{Email: "nobody@b.co", Password: "hunter22pass"})
		require.Error(t, err)
		assert.Equal(t, apperr.CodeUnauthorized, apperr.From(err).Code)
	})
}

func TestAuthService_Refresh(t *testing.T) {
	ctx := context.Background()
	user := &domain.User{ID: "u_1", Email: "a@b.co"}

	t.Run("rotates the token", func(t *testing.T) {
		users := new(MockUserRepository)
		users.On("GetByID", ctx, "u_1").Return(user, nil)

		tokens := new(MockRefreshTokenRepository)
		tokens.On("Get", ctx, "old-token").Return(&domain.RefreshToken{
			Token: "old-token", UserID: "u_1", ExpiresAt: time.Now().Add(time.Hour),
		}, nil)
		tokens.On("Revoke", ctx, "old-token").Return(nil)
		tokens.On("Create", ctx, mock.MatchedBy(func(rt *domain.RefreshToken) bool {
			return rt.Token != "old-token" && rt.UserID == "u_1"
		})).Return(nil)

		svc := newAuthService(users, tokens)
		pair, err := svc.Refresh(ctx, "old-token")
		require.NoError(t, err)
		assert.NotEqual(t, "old-token", pair.RefreshToken)
		tokens.AssertExpectations(t)
	})

	t.Run("revoked token is rejected", func(t *testing.T) {
		tokens := new(MockRefreshTokenRepository)
		tokens.On("Get", ctx, "revoked").Return(&domain.RefreshToken{
			Token: "revoked", UserID: "u_1", Revoked: true, ExpiresAt: time.Now().Add(time.Hour),
		}, nil)

		svc := newAuthService(new(MockUserRepository), tokens)
		_, err := svc.Refresh(ctx, "revoked")
		require.Error(t, err)
		assert.Equal(t, apperr.CodeUnauthorized, apperr.From(err).Code)
	})

	t.Run("expired token is rejected", func(t *testing.T) {
		tokens := new(MockRefreshTokenRepository)
		tokens.On("Get", ctx, "expired").Return(&domain.RefreshToken{
			Token: "expired", UserID: "u_1", ExpiresAt: time.Now().Add(-time.Hour),
		}, nil)

		svc := newAuthService(new(MockUserRepository), tokens)
		_, err := svc.Refresh(ctx, "expired")
		require.Error(t, err)
		assert.Equal(t, apperr.CodeUnauthorized, apperr.From(err).Code)
	})

	t.Run("unknown token is rejected", func(t *testing.T) {
		tokens := new(MockRefreshTokenRepository)
		tokens.On("Get", ctx, "missing").Return(nil, nil)

		svc := newAuthService(new(MockUserRepository), tokens)
		_, err := svc.Refresh(ctx, "missing")
		require.Error(t, err)
		assert.Equal(t, apperr.CodeUnauthorized, apperr.From(err).Code)
	})
}

func TestAuthService_Logout(t *testing.T) {
	ctx := context.Background()

	tokens := new(MockRefreshTokenRepository)
	tokens.On("Revoke", ctx, "tok").Return(nil)

	svc := newAuthService(new(MockUserRepository), tokens)
	require.NoError(t, svc.Logout(ctx, "tok"))
	require.NoError(t, svc.Logout(ctx, ""))
	tokens.AssertNumberOfCalls(t, "Revoke", 1)
}
