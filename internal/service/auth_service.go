package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aurumhq/aurum-api/internal/domain"
	"github.com/aurumhq/aurum-api/internal/rbac"
	"github.com/aurumhq/aurum-api/internal/service/auth"
	"github.com/aurumhq/aurum-api/internal/store"
)

// AuthResult is a successful login or refresh: the authenticated user and a
// fresh token pair.
type AuthResult struct {
	User         *domain.User
	AccessToken  string
	RefreshToken string
}

// AuthService handles registration, login, and token refresh.
type AuthService interface {
	// Register creates a new user with the given role.
	// Returns rbac.ErrUnknownRole for a role outside the role table and
	// store.ErrEmailExists when the email is taken.
	Register(ctx context.Context, email, password, role string) (*domain.User, error)

	// Login verifies the credentials and issues a token pair.
	// Returns ErrInvalidCredentials when the email is unknown or the
	// password does not match; the two are indistinguishable.
	Login(ctx context.Context, email, password string) (*AuthResult, error)

	// Refresh redeems a refresh token for a new token pair. The user's role
	// is re-read from the store, so role changes take effect here.
	// Returns auth.ErrExpiredRefreshToken or auth.ErrInvalidRefreshToken
	// for bad tokens, including tokens of deleted users.
	Refresh(ctx context.Context, refreshToken string) (*AuthResult, error)
}

// authServiceImpl implements the AuthService interface.
type authServiceImpl struct {
	userStore        store.UserStore
	jwtService       auth.JWTService
	passwordVerifier auth.PasswordVerifier
	authorizer       *rbac.Authorizer
	logger           *slog.Logger
}

// NewAuthService creates a new AuthService.
func NewAuthService(
	userStore store.UserStore,
	jwtService auth.JWTService,
	passwordVerifier auth.PasswordVerifier,
	authorizer *rbac.Authorizer,
	logger *slog.Logger,
) (AuthService, error) {
	if userStore == nil {
		return nil, domain.NewValidationError("userStore", "cannot be nil", domain.ErrValidation)
	}
	if jwtService == nil {
		return nil, domain.NewValidationError("jwtService", "cannot be nil", domain.ErrValidation)
	}
	if passwordVerifier == nil {
		return nil, domain.NewValidationError("passwordVerifier", "cannot be nil", domain.ErrValidation)
	}
	if authorizer == nil {
		return nil, domain.NewValidationError("authorizer", "cannot be nil", domain.ErrValidation)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &authServiceImpl{
		userStore:        userStore,
		jwtService:       jwtService,
		passwordVerifier: passwordVerifier,
		authorizer:       authorizer,
		logger:           logger.With("component", "auth_service"),
	}, nil
}

func (s *authServiceImpl) Register(
	ctx context.Context,
	email, password, role string,
) (*domain.User, error) {
	if err := s.authorizer.VerifyRole(role); err != nil {
		return nil, fmt.Errorf("failed to register user: %w", err)
	}

	user, err := domain.NewUser(email, password, role)
	if err != nil {
		return nil, fmt.Errorf("invalid user: %w", err)
	}

	// The store hashes the plaintext password before writing.
	if err := s.userStore.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.InfoContext(ctx, "user registered",
		"user_id", user.ID,
		"role", user.Role)
	return user, nil
}

func (s *authServiceImpl) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.userStore.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to retrieve user: %w", err)
	}

	if err := s.passwordVerifier.Compare(user.HashedPassword, password); err != nil {
		s.logger.DebugContext(ctx, "password mismatch on login", "user_id", user.ID)
		return nil, ErrInvalidCredentials
	}

	result, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "user logged in", "user_id", user.ID, "role", user.Role)
	return result, nil
}

func (s *authServiceImpl) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	claims, err := s.jwtService.ValidateRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	user, err := s.userStore.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			// The account disappeared after the token was issued; the token
			// is as good as invalid.
			return nil, auth.ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("failed to retrieve user: %w", err)
	}

	result, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, err
	}

	s.logger.DebugContext(ctx, "token pair refreshed", "user_id", user.ID)
	return result, nil
}

// issueTokens mints a fresh access and refresh token pair for the user.
func (s *authServiceImpl) issueTokens(ctx context.Context, user *domain.User) (*AuthResult, error) {
	accessToken, err := s.jwtService.GenerateToken(ctx, user.ID, user.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, err := s.jwtService.GenerateRefreshToken(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	return &AuthResult{
		User:         user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}
