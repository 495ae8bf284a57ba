package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	apperrors "walknav/backend/internal/errors"
	"walknav/backend/internal/model"
	"walknav/backend/internal/repository"
)

var authValidationCodes = map[string]string{
	"Email":    "invalid_email",
	"Password": "invalid_password",
}

// ProfileInitializer seeds per-user state right after registration.
type ProfileInitializer interface {
	InitProfile(ctx context.Context, userID string)
}

type AuthService struct {
	userRepo  *repository.UserRepository
	profiles  ProfileInitializer
	validate  *validator.Validate
	jwtSecret []byte
	tokenTTL  time.Duration
}

func NewAuthService(
	userRepo *repository.UserRepository,
	profiles ProfileInitializer,
	jwtSecret string,
	tokenTTL time.Duration,
) *AuthService {
	return &AuthService{
		userRepo:  userRepo,
		profiles:  profiles,
		validate:  validator.New(),
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
	}
}

type AuthResult struct {
	Token string     `json:"token"`
	User  model.User `json:"user"`
}

type registerInput struct {
	Email    string `validate:"required,email,max=254"`
	Password string `validate:"min=6,max=72"`
}

type loginInput struct {
	Email    string `validate:"required"`
	Password string `validate:"required"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *AuthService) Register(ctx context.Context, email, password string) (*AuthResult, *apperrors.APIError) {
	input := registerInput{Email: normalizeEmail(email), Password: password}
	if err := s.validate.Struct(input); err != nil {
		return nil, apperrors.Validation(err, authValidationCodes)
	}

	_, err := s.userRepo.GetByEmail(ctx, input.Email)
	if err == nil {
		return nil, apperrors.Conflict("email_exists", "email already registered", nil)
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.Internal("failed to query user")
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperrors.Internal("failed to secure password")
	}

	now := time.Now().UTC()
	user := model.User{
		ID:           uuid.NewString(),
		Email:        input.Email,
		PasswordHash: string(passwordHash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, &user); err != nil {
		// Lost a race with a concurrent registration for the same email.
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, apperrors.Conflict("email_exists", "email already registered", nil)
		}
		return nil, apperrors.Internal("failed to create user")
	}

	s.profiles.InitProfile(ctx, user.ID)

	return s.authResult(user)
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, *apperrors.APIError) {
	input := loginInput{Email: normalizeEmail(email), Password: password}
	if err := s.validate.Struct(input); err != nil {
		return nil, apperrors.BadRequest("invalid_credentials", "email and password are required")
	}

	user, err := s.userRepo.GetByEmail(ctx, input.Email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.Unauthorized("invalid email or password")
	}
	if err != nil {
		return nil, apperrors.Internal("failed to query user")
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)) != nil {
		return nil, apperrors.Unauthorized("invalid email or password")
	}

	return s.authResult(*user)
}

// CurrentUser returns the account behind an authenticated request. A token
// whose user has since disappeared is treated as unauthorized.
func (s *AuthService) CurrentUser(ctx context.Context, userID string) (*model.User, *apperrors.APIError) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.Unauthorized("user no longer exists")
	}
	if err != nil {
		return nil, apperrors.Internal("failed to query user")
	}
	user.PasswordHash = ""
	return user, nil
}

func (s *AuthService) ParseToken(tokenString string) (string, *apperrors.APIError) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return "", apperrors.Unauthorized("invalid token")
	}

	if claims.Subject == "" {
		return "", apperrors.Unauthorized("invalid token subject")
	}
	return claims.Subject, nil
}

func (s *AuthService) authResult(user model.User) (*AuthResult, *apperrors.APIError) {
	token, apiErr := s.issueToken(user)
	if apiErr != nil {
		return nil, apiErr
	}

	user.PasswordHash = ""
	return &AuthResult{Token: token, User: user}, nil
}

func (s *AuthService) issueToken(user model.User) (string, *apperrors.APIError) {
	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   user.ID,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return "", apperrors.Internal("failed to sign token")
	}
	return signed, nil
}
