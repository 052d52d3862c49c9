package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"libraryhub/internal/adapters/persistence/models"
	"libraryhub/internal/adapters/persistence/repositories"
	"libraryhub/internal/config"
	"libraryhub/internal/core/domain"
	"libraryhub/internal/pkg/jwt"
	"libraryhub/internal/pkg/password"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuthService handles registration, credential checks and token issuance
type AuthService struct {
	userRepo         repositories.UserRepository
	refreshTokenRepo repositories.RefreshTokenRepository
	jwtCfg           config.JWTConfig
	clock            Clock
	logger           *slog.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(
	userRepo repositories.UserRepository,
	refreshTokenRepo repositories.RefreshTokenRepository,
	jwtCfg config.JWTConfig,
	clock Clock,
	logger *slog.Logger,
) *AuthService {
	if clock == nil {
		clock = time.Now
	}
	return &AuthService{
		userRepo:         userRepo,
		refreshTokenRepo: refreshTokenRepo,
		jwtCfg:           jwtCfg,
		clock:            clock,
		logger:           logger,
	}
}

// RegisterInput represents registration input
type RegisterInput struct {
	Username        string `json:"username" form:"username"`
	Email           string `json:"email" form:"email"`
	Password        string `json:"password" form:"password"`
	ConfirmPassword string `json:"confirm_password" form:"confirm_password"`
}

// TokenResponse is the body returned by the token endpoints
type TokenResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
	Email   string `json:"email"`
}

// Register creates a MEMBER account
func (s *AuthService) Register(ctx context.Context, input *RegisterInput) (*models.User, error) {
	// 1. Passwords must match
	if input.Password != input.ConfirmPassword {
		return nil, domain.ErrPasswordMismatch
	}

	// 2. Create user (uniqueness checked inside)
	user, err := createUser(ctx, s.userRepo, s.clock, &CreateUserInput{
		Username: input.Username,
		Email:    input.Email,
		Password: input.Password,
		Role:     string(domain.RoleMember),
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "✅ User registered", slog.String("username", user.Username))
	return user, nil
}

// Authenticate checks an email and password and returns the active user
func (s *AuthService) Authenticate(ctx context.Context, email, pass string) (*models.User, error) {
	// 1. Find user by email
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	// 2. Verify password
	if !password.Verify(pass, user.Password) {
		return nil, domain.ErrInvalidCredentials
	}

	// 3. Check if user is active
	if !user.IsActive {
		return nil, domain.ErrUserInactive
	}

	return user, nil
}

// ObtainToken exchanges credentials for an access and refresh token pair
func (s *AuthService) ObtainToken(ctx context.Context, email, pass string) (*TokenResponse, error) {
	user, err := s.Authenticate(ctx, email, pass)
	if err != nil {
		return nil, err
	}

	tokens, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "✅ Token issued", slog.String("username", user.Username))
	return tokens, nil
}

// RefreshToken rotates a refresh token: the presented one is revoked and a
// new pair is issued
func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	// 1. Validate refresh token JWT
	claims, err := jwt.ValidateRefreshToken(refreshToken, s.jwtCfg.RefreshSecret)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.ErrTokenExpired
		}
		return nil, domain.ErrTokenInvalid
	}

	// 2. Find token in DB by hash
	storedToken, err := s.refreshTokenRepo.GetByTokenHash(ctx, password.HashToken(refreshToken))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrTokenInvalid
		}
		return nil, err
	}

	// 3. Check if token is revoked or expired
	if storedToken.IsRevoked() {
		return nil, domain.ErrTokenRevoked
	}
	if storedToken.IsExpired(s.clock()) {
		return nil, domain.ErrTokenExpired
	}

	// 4. Get user and check it is still active
	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrTokenInvalid
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, domain.ErrUserInactive
	}

	// 5. Revoke old refresh token (token rotation). Losing the race to a
	// concurrent refresh counts as presenting a revoked token.
	revoked, err := s.refreshTokenRepo.Revoke(ctx, storedToken.ID)
	if err != nil {
		return nil, err
	}
	if !revoked {
		return nil, domain.ErrTokenRevoked
	}

	// 6. Issue new pair
	return s.issueTokens(ctx, user)
}

// Revoke revokes a refresh token (API logout)
func (s *AuthService) Revoke(ctx context.Context, refreshToken string) error {
	revoked, err := s.refreshTokenRepo.RevokeByTokenHash(ctx, password.HashToken(refreshToken))
	if err != nil {
		return err
	}
	if !revoked {
		return domain.ErrTokenInvalid
	}
	return nil
}

// RevokeAll revokes all refresh tokens for a user
func (s *AuthService) RevokeAll(ctx context.Context, userID uint) error {
	if err := s.refreshTokenRepo.RevokeAllByUserID(ctx, userID); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "all sessions revoked", slog.Uint64("user_id", uint64(userID)))
	return nil
}

// ValidateAccessToken validates an access token
func (s *AuthService) ValidateAccessToken(accessToken string) (*jwt.Claims, error) {
	return jwt.ValidateAccessToken(accessToken, s.jwtCfg.Secret)
}

// CleanupExpiredTokens deletes refresh tokens past their expiry
func (s *AuthService) CleanupExpiredTokens(ctx context.Context) (int64, error) {
	return s.refreshTokenRepo.DeleteExpired(ctx, s.clock().UTC())
}

// issueTokens generates a token pair and stores the refresh token hash
func (s *AuthService) issueTokens(ctx context.Context, user *models.User) (*TokenResponse, error) {
	accessToken, err := jwt.GenerateAccessToken(jwt.AccessSubject{
		UserID:   user.ID,
		Username: user.Username,
		Email:    user.Email,
		Role:     string(user.Role),
	}, s.jwtCfg.Secret, s.jwtCfg.AccessTokenMins)
	if err != nil {
		return nil, err
	}

	refreshToken, err := jwt.GenerateRefreshToken(
		user.ID,
		uuid.New().String(),
		s.jwtCfg.RefreshSecret,
		s.jwtCfg.RefreshTokenDays,
	)
	if err != nil {
		return nil, err
	}

	token := &models.RefreshToken{
		UserID:    user.ID,
		TokenHash: password.HashToken(refreshToken),
		ExpiresAt: jwt.GetExpiryTime(s.jwtCfg.RefreshTokenDays).UTC(),
	}
	if err := s.refreshTokenRepo.Create(ctx, token); err != nil {
		return nil, err
	}

	return &TokenResponse{
		Access:  accessToken,
		Refresh: refreshToken,
		Email:   user.Email,
	}, nil
}
