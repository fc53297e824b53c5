package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	appErrors "github.com/trinity-shop/trinity-platform/internal/errors"
	"github.com/trinity-shop/trinity-platform/internal/models"
	"github.com/trinity-shop/trinity-platform/internal/repositories"
	"golang.org/x/crypto/bcrypt"
)

const tokenTTL = 24 * time.Hour

type UserService interface {
	Register(ctx context.Context, req *models.RegisterRequest) (*models.User, error)
	Login(ctx context.Context, req *models.LoginRequest) (*models.LoginResponse, error)
	GetProfile(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type userService struct {
	userRepo  repository.UserRepository
	rateLimit repository.RateLimitRepository
	jwtKey    []byte
	logger    *slog.Logger
}

func NewUserService(userRepo repository.UserRepository, rateLimit repository.RateLimitRepository, jwtKey string, logger *slog.Logger) UserService {
	return &userService{
		userRepo:  userRepo,
		rateLimit: rateLimit,
		jwtKey:    []byte(jwtKey),
		logger:    logger,
	}
}

func (s *userService) Register(ctx context.Context, req *models.RegisterRequest) (*models.User, error) {
	if _, err := s.userRepo.GetUserByEmail(ctx, req.Email); err == nil {
		return nil, appErrors.DuplicateEntryError("An account with this email already exists")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.DatabaseError("Failed to check existing user").WithError(err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.InternalError("Failed to hash password").WithError(err)
	}

	user := &models.User{
		ID:        uuid.New(),
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      models.RoleCustomer,
		Password:  string(hash),
	}

	if err := s.userRepo.CreateUser(ctx, user); err != nil {
		return nil, appErrors.DatabaseError("Failed to create user").WithError(err)
	}

	s.logger.Info("user registered", slog.String("userId", user.ID.String()))

	return user, nil
}

func (s *userService) Login(ctx context.Context, req *models.LoginRequest) (*models.LoginResponse, error) {
	allowed, remaining, retryAfter, err := s.rateLimit.CheckLoginRateLimit(ctx, req.Email)
	if err != nil {
		return nil, appErrors.InternalError("Failed to check rate limit").WithError(err)
	}

	if !allowed {
		return &models.LoginResponse{
			Success:    false,
			RetryAfter: retryAfter,
			Message:    "Too many login attempts. Please try again later.",
		}, appErrors.TooManyRequestsError("Too many login attempts")
	}

	user, err := s.userRepo.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &models.LoginResponse{
				Success:        false,
				RemainingTries: remaining,
				Message:        "Invalid email or password",
			}, appErrors.UnauthorizedError("Invalid email or password")
		}

		return nil, appErrors.DatabaseError("Failed to fetch user").WithError(err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return &models.LoginResponse{
			Success:        false,
			RemainingTries: remaining,
			Message:        "Invalid email or password",
		}, appErrors.UnauthorizedError("Invalid email or password")
	}

	token, err := s.issueToken(user)
	if err != nil {
		return nil, appErrors.InternalError("Failed to issue token").WithError(err)
	}

	return &models.LoginResponse{
		Success:   true,
		Token:     token,
		ExpiresIn: int(tokenTTL.Seconds()),
	}, nil
}

func (s *userService) GetProfile(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.userRepo.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NotFoundError("User not found")
		}

		return nil, appErrors.DatabaseError("Failed to fetch user").WithError(err)
	}

	return user, nil
}

func (s *userService) issueToken(user *models.User) (string, error) {
	now := time.Now()
	claims := &models.Claims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtKey)
}
