package services

import (
	"errors"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/stockwatch/backend/internal/apperrors"
	"github.com/stockwatch/backend/internal/config"
	"github.com/stockwatch/backend/internal/models"
)

// MinPasswordLength is the minimum accepted password size at registration.
const MinPasswordLength = 8

// AuthService defines the interface for authentication operations
type AuthService interface {
	Register(req models.RegisterRequest) (models.User, error)
	Authenticate(username, password string) (models.User, error)
	GenerateTokenPair(user models.User) (models.TokenPairResponse, error)
	Refresh(refreshToken string) (models.TokenPairResponse, error)
}

// authService implements the AuthService interface
type authService struct {
	db  *gorm.DB
	cfg config.JWTConfig
}

// NewAuthService creates a new authentication service
func NewAuthService(db *gorm.DB, cfg config.JWTConfig) AuthService {
	return &authService{
		db:  db,
		cfg: cfg,
	}
}

// Register validates the request and creates a user with a bcrypt-hashed
// password. Every failing field is reported, not just the first. The
// uniqueness pre-checks give field-level messages; the database constraint
// remains the arbiter when two registrations race.
func (s *authService) Register(req models.RegisterRequest) (models.User, error) {
	verr := apperrors.NewValidationError()

	username := strings.TrimSpace(req.Username)
	email := strings.TrimSpace(req.Email)

	if username == "" {
		verr.Add("username", "this field is required")
	}
	if email == "" {
		verr.Add("email", "this field is required")
	} else if !strings.Contains(email, "@") {
		verr.Add("email", "enter a valid email address")
	}
	if len(req.Password) < MinPasswordLength {
		verr.Add("password", "must be at least 8 characters")
	}

	if username != "" {
		var count int64
		if err := s.db.Model(&models.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
			return models.User{}, err
		}
		if count > 0 {
			verr.Add("username", "already taken")
		}
	}
	if email != "" {
		var count int64
		if err := s.db.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
			return models.User{}, err
		}
		if count > 0 {
			verr.Add("email", "already taken")
		}
	}

	if verr.HasErrors() {
		return models.User{}, verr
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, err
	}

	user := models.User{
		Username:       username,
		Email:          email,
		HashedPassword: string(hashedPassword),
		IsActive:       true,
	}
	if err := s.db.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// A racing registration won; the driver does not say which
			// unique column collided, so stay neutral
			verr.Add("non_field_errors", "username or email already taken")
			return models.User{}, verr
		}
		return models.User{}, err
	}

	return user, nil
}

// Authenticate verifies user credentials and returns the user if valid
func (s *authService) Authenticate(username, password string) (models.User, error) {
	var user models.User
	result := s.db.Where("username = ?", username).First(&user)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return models.User{}, apperrors.ErrInvalidCredentials
		}
		return models.User{}, result.Error
	}

	if !user.IsActive {
		return models.User{}, apperrors.ErrInvalidCredentials
	}

	// Check password
	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(password)); err != nil {
		return models.User{}, apperrors.ErrInvalidCredentials
	}

	return user, nil
}

// GenerateTokenPair creates a short-lived access token and a longer-lived
// refresh token for the user.
func (s *authService) GenerateTokenPair(user models.User) (models.TokenPairResponse, error) {
	accessToken, err := s.signToken(user, models.TokenTypeAccess, s.cfg.AccessTTL)
	if err != nil {
		return models.TokenPairResponse{}, err
	}

	refreshToken, err := s.signToken(user, models.TokenTypeRefresh, s.cfg.RefreshTTL)
	if err != nil {
		return models.TokenPairResponse{}, err
	}

	return models.TokenPairResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "bearer",
	}, nil
}

// Refresh validates a refresh token and issues a new access token without
// requiring the password again.
func (s *authService) Refresh(refreshToken string) (models.TokenPairResponse, error) {
	claims := &models.Claims{}
	token, err := jwt.ParseWithClaims(refreshToken, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, apperrors.ErrTokenInvalid
		}
		return s.cfg.SecretKey, nil
	})
	if err != nil || !token.Valid || claims.TokenType != models.TokenTypeRefresh {
		return models.TokenPairResponse{}, apperrors.ErrTokenInvalid
	}

	// The user must still exist and be active
	var user models.User
	if err := s.db.Where("username = ?", claims.Username).First(&user).Error; err != nil {
		return models.TokenPairResponse{}, apperrors.ErrTokenInvalid
	}
	if !user.IsActive {
		return models.TokenPairResponse{}, apperrors.ErrTokenInvalid
	}

	accessToken, err := s.signToken(user, models.TokenTypeAccess, s.cfg.AccessTTL)
	if err != nil {
		return models.TokenPairResponse{}, err
	}

	return models.TokenPairResponse{
		AccessToken: accessToken,
		TokenType:   "bearer",
	}, nil
}

// signToken creates a signed JWT for the user with the given type and lifetime
func (s *authService) signToken(user models.User, tokenType string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &models.Claims{
		Username:  user.Username,
		TokenType: tokenType,
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: now.Add(ttl).Unix(),
			IssuedAt:  now.Unix(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.cfg.SecretKey)
}
