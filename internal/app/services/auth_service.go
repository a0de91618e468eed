package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/schoollib/library/internal/app/models"
	"github.com/schoollib/library/internal/app/models/dto"
	"github.com/schoollib/library/internal/pkg/apperrors"
	"github.com/schoollib/library/internal/pkg/auth"
)

// AuthService handles login and resolves the caller behind a token
type AuthService interface {
	Login(ctx context.Context, req *dto.LoginRequest) (*dto.AuthResponse, error)
	ValidateToken(token string) (*auth.Claims, error)
	ResolveScope(ctx context.Context, userID int64) (models.Scope, error)
}

type authServiceImpl struct {
	userRepo   UserStore
	jwtService *auth.JWTService
	logger     zerolog.Logger
	now        func() time.Time
}

// NewAuthService creates a new AuthService
func NewAuthService(userRepo UserStore, jwtService *auth.JWTService, logger zerolog.Logger) AuthService {
	return &authServiceImpl{
		userRepo:   userRepo,
		jwtService: jwtService,
		logger:     logger,
		now:        time.Now,
	}
}

// Login checks the credentials and issues an access token
func (s *authServiceImpl) Login(ctx context.Context, req *dto.LoginRequest) (*dto.AuthResponse, error) {
	user, err := s.userRepo.GetByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("error loading user: %w", err)
	}

	if !auth.CheckPassword(user.Password, req.Password) {
		s.logger.Info().Str("username", req.Username).Msg("Failed login attempt")
		return nil, apperrors.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, apperrors.ErrAccountDisabled
	}

	token, expiresIn, err := s.jwtService.GenerateAccessToken(user.ID, user.Username)
	if err != nil {
		return nil, fmt.Errorf("error generating access token: %w", err)
	}

	if err := s.userRepo.UpdateLastLogin(ctx, user.ID, s.now()); err != nil {
		s.logger.Warn().Err(err).Int64("userId", user.ID).Msg("Could not record last login")
	}

	return &dto.AuthResponse{
		Token: dto.TokenResponse{
			AccessToken: token,
			TokenType:   "Bearer",
			ExpiresIn:   expiresIn,
		},
		User: dto.NewUserResponse(user),
	}, nil
}

// ValidateToken maps JWT failures onto the application's auth errors
func (s *authServiceImpl) ValidateToken(token string) (*auth.Claims, error) {
	claims, err := s.jwtService.ValidateAndExtractClaims(token)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) {
			return nil, apperrors.ErrTokenExpired
		}
		return nil, apperrors.ErrTokenInvalid
	}
	return claims, nil
}

// ResolveScope loads the account and turns its profile into a request scope
func (s *authServiceImpl) ResolveScope(ctx context.Context, userID int64) (models.Scope, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			return models.Scope{}, apperrors.ErrTokenInvalid
		}
		return models.Scope{}, fmt.Errorf("error loading user: %w", err)
	}
	if !user.IsActive {
		return models.Scope{}, apperrors.ErrAccountDisabled
	}

	scope := models.Scope{UserID: user.ID, IsSuperuser: user.IsSuperuser}
	if user.Profile != nil {
		scope.SchoolID = user.Profile.SchoolID
		scope.IsLibrarian = user.Profile.IsLibrarian
	}
	return scope, nil
}
