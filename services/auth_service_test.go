package services

import (
	"context"
	"log/slog"
	"testing"

	"chat-sessions/errors"
	"chat-sessions/mocks"
	"chat-sessions/repository"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestAuthService_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("should register and log in", func(t *testing.T) {
		req := require.New(t)
		svc := NewAuthService(repository.NewInMemoryUserRepo(), slog.New(slog.DiscardHandler), testConfig())

		user, err := svc.Register(ctx, RegisterRequest{Username: "alice", Password: "secret123"})
		req.NoError(err)
		req.NotEqual("secret123", user.Password)

		token, logged, err := svc.Login(ctx, "alice", "secret123")
		req.NoError(err)
		req.Equal(user.ID, logged.ID)

		identity, err := svc.ParseToken(token)
		req.NoError(err)
		req.Equal(user.ID, identity.UserID)
		req.Equal("alice", identity.Username)
	})

	t.Run("should fail validation without touching the store", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		users := mocks.NewMockUserRepository(ctrl)
		users.EXPECT().Create(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
		svc := NewAuthService(users, slog.New(slog.DiscardHandler), testConfig())

		_, err := svc.Register(ctx, RegisterRequest{Username: "al", Password: "secret123"})
		req.ErrorIs(err, errors.ErrInvalidOperation)
		_, err = svc.Register(ctx, RegisterRequest{Username: "alice", Password: "123"})
		req.ErrorIs(err, errors.ErrInvalidOperation)
		_, err = svc.Register(ctx, RegisterRequest{Username: "bad name", Password: "secret123"})
		req.ErrorIs(err, errors.ErrInvalidOperation)
	})

	t.Run("should refuse a taken username", func(t *testing.T) {
		req := require.New(t)
		svc := NewAuthService(repository.NewInMemoryUserRepo(), slog.New(slog.DiscardHandler), testConfig())

		_, err := svc.Register(ctx, RegisterRequest{Username: "alice", Password: "secret123"})
		req.NoError(err)
		_, err = svc.Register(ctx, RegisterRequest{Username: "alice", Password: "secret456"})
		req.ErrorIs(err, errors.ErrUserAlreadyExists)
	})
}

func TestAuthService_Login(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	svc := NewAuthService(repository.NewInMemoryUserRepo(), slog.New(slog.DiscardHandler), testConfig())
	_, err := svc.Register(ctx, RegisterRequest{Username: "alice", Password: "secret123"})
	req.NoError(err)

	_, _, err = svc.Login(ctx, "alice", "wrong-password")
	req.ErrorIs(err, errors.ErrInvalidCredentials)
	_, _, err = svc.Login(ctx, "nobody", "secret123")
	req.ErrorIs(err, errors.ErrInvalidCredentials)
	_, _, err = svc.Login(ctx, "", "")
	req.ErrorIs(err, errors.ErrInvalidOperation)

	_, err = svc.ParseToken("garbage")
	req.ErrorIs(err, errors.ErrInvalidToken)
}
