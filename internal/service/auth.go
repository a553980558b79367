package service

import (
	"context"
	"regexp"
	"strings"

	"github.com/civicfix/api/internal/model"
	"golang.org/x/crypto/bcrypt"
)

const (
	// bcrypt cost factor (10-14 recommended for production)
	bcryptCost = 12

	minUsernameLength = 3
	minPasswordLength = 6
)

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// UserRepository defines the interface for user storage
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
}

// FieldViolation describes a single invalid registration field
type FieldViolation struct {
	Field   string
	Message string
}

// ValidationError aggregates every field violation found in a request so the
// caller sees the full list in one response.
type ValidationError struct {
	Violations []FieldViolation
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		msgs = append(msgs, v.Message)
	}
	return strings.Join(msgs, ", ")
}

// AuthService handles registration, login, and session resolution
type AuthService struct {
	userRepo UserRepository
	sessions SessionStore
}

// AuthServiceConfig holds configuration for the auth service
type AuthServiceConfig struct {
	UserRepo UserRepository
	Sessions SessionStore
}

// NewAuthService creates a new auth service
func NewAuthService(cfg AuthServiceConfig) *AuthService {
	return &AuthService{
		userRepo: cfg.UserRepo,
		sessions: cfg.Sessions,
	}
}

// RegisterRequest represents a registration request
type RegisterRequest struct {
	Username string
	Email    string
	Password string
}

// RegisterResult carries the new user and their first session token
type RegisterResult struct {
	User  *model.User
	Token string
}

// Register creates a new user account and starts a session for it. Field
// validation failures are collected into a single ValidationError rather
// than reported one at a time.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.TrimSpace(strings.ToLower(req.Email))

	var violations []FieldViolation
	if len(username) < minUsernameLength {
		violations = append(violations, FieldViolation{Field: "username", Message: ErrUsernameTooShort.Error()})
	}
	if !emailRegex.MatchString(email) {
		violations = append(violations, FieldViolation{Field: "email", Message: ErrInvalidEmail.Error()})
	}
	if len(req.Password) < minPasswordLength {
		violations = append(violations, FieldViolation{Field: "password", Message: ErrPasswordTooShort.Error()})
	}
	if len(violations) > 0 {
		return nil, &ValidationError{Violations: violations}
	}

	existing, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrUsernameExists
	}

	existing, err = s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Username: username,
		Email:    email,
		Hash:     string(hash),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	token, err := s.sessions.Create(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	return &RegisterResult{User: user, Token: token}, nil
}

// LoginResult carries the authenticated user and their new session token
type LoginResult struct {
	User  *model.User
	Token string
}

// Login verifies a username/password pair and issues a session token.
// Unknown usernames and wrong passwords return the same error so callers
// cannot probe for account existence.
func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	user, err := s.userRepo.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Hash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := s.sessions.Create(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	return &LoginResult{User: user, Token: token}, nil
}

// Logout invalidates a session token. Unknown tokens are ignored.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	return s.sessions.Delete(ctx, token)
}

// CurrentUser resolves a session token to its user.
func (s *AuthService) CurrentUser(ctx context.Context, token string) (*model.User, error) {
	userID, err := s.sessions.Get(ctx, token)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}
