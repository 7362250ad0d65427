package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"

	"chat-sessions/config"
	"chat-sessions/errors"
	"chat-sessions/models"
	"chat-sessions/repository"
	"chat-sessions/utils"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
)

type AuthService struct {
	users    repository.UserRepository
	config   *config.Config
	log      *slog.Logger
	validate *validator.Validate
}

func NewAuthService(userRepo repository.UserRepository, log *slog.Logger, cfg *config.Config) *AuthService {
	return &AuthService{users: userRepo, config: cfg, log: log, validate: validator.New()}
}

type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=20,alphanum"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*models.User, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidOperation, err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.StoreTimeout)
	defer cancel()

	u, err := s.users.Create(ctx, req.Username, string(hashed))
	if err != nil {
		if stderrors.Is(err, errors.ErrUserAlreadyExists) {
			return nil, err
		}
		return nil, storeErr(err)
	}
	s.log.Info("User registered", "user_id", u.ID, "username", u.Username)
	return u, nil
}

func (s *AuthService) Login(ctx context.Context, username, password string) (string, *models.User, error) {
	if username == "" || password == "" {
		return "", nil, fmt.Errorf("%w: username and password are required", errors.ErrInvalidOperation)
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.StoreTimeout)
	defer cancel()

	u, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if stderrors.Is(err, errors.ErrNotFound) {
			return "", nil, errors.ErrInvalidCredentials
		}
		return "", nil, storeErr(err)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) != nil {
		return "", nil, errors.ErrInvalidCredentials
	}
	token, err := s.CreateToken(u.ID, u.Username)
	return token, u, err
}

func (s *AuthService) CreateToken(userID int, username string) (string, error) {
	return utils.GenerateJWT(s.config.JWTSecret, userID, username, s.config.TokenTTL())
}

func (s *AuthService) ParseToken(token string) (models.Identity, error) {
	uid, uname, err := utils.ParseJWT(s.config.JWTSecret, token)
	if err != nil {
		return models.Identity{}, err
	}
	return models.Identity{UserID: uid, Username: uname}, nil
}
