package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"formintake/internal/errorz"
	"formintake/internal/model"
	"formintake/internal/repository"

	"golang.org/x/crypto/bcrypt"
)

// DTOs for Request validation
type CreateUserRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Role     string `json:"role" binding:"required"`
}

type LoginUserRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type TokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
	Username  string `json:"username"`
	Role      string `json:"role"`
}

// DTO for returning User without exposing sensitive data (e.g. password)
type UserResponse struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at"`
}

var ErrInvalidCredentials = errors.New("invalid email or password")

// TokenIssuer signs access tokens. Implemented by *middleware.Auth.
type TokenIssuer interface {
	IssueToken(identity, role string, ttl time.Duration) (string, error)
}

// UserService defines the interface for business logic related to User
type UserService interface {
	CreateUser(ctx context.Context, req CreateUserRequest) (*UserResponse, error)
	Login(ctx context.Context, req LoginUserRequest) (*TokenResponse, error)
	EnsureAdmin(ctx context.Context, username, email, password string) error
	ListReviewers(ctx context.Context) ([]UserResponse, error)
}

type userService struct {
	repo   repository.UserRepository
	issuer TokenIssuer
	ttl    time.Duration
}

// NewUserService returns a new instance of UserService
func NewUserService(repo repository.UserRepository, issuer TokenIssuer, ttl time.Duration) UserService {
	return &userService{repo: repo, issuer: issuer, ttl: ttl}
}

func mapToResponse(user *model.User) *UserResponse {
	return &UserResponse{
		ID:        user.ID.String(),
		Username:  user.Username,
		Email:     user.Email,
		Role:      user.Role,
		CreatedAt: user.CreatedAt.Format(time.RFC3339),
	}
}

func (s *userService) CreateUser(ctx context.Context, req CreateUserRequest) (*UserResponse, error) {
	if !model.ValidRole(req.Role) {
		return nil, fmt.Errorf("%w: role must be submitter, reviewer or admin", errorz.ErrInvalidInput)
	}
	username := strings.TrimSpace(req.Username)
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if _, err := s.repo.GetByUsername(ctx, username); err == nil {
		return nil, fmt.Errorf("%w: username already exists", errorz.ErrInvalidInput)
	}
	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("%w: email already exists", errorz.ErrInvalidInput)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.New("failed to hash password")
	}

	user := &model.User{
		Username: username,
		Email:    email,
		Password: string(hashedPassword),
		Role:     req.Role,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return mapToResponse(user), nil
}

// Login issues a token whose subject is the username, the identity carried on submissions.
func (s *userService) Login(ctx context.Context, req LoginUserRequest) (*TokenResponse, error) {
	user, err := s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := s.issuer.IssueToken(user.Username, user.Role, s.ttl)
	if err != nil {
		return nil, errors.New("failed to generate token")
	}

	return &TokenResponse{
		Token:     token,
		ExpiresIn: int64(s.ttl.Seconds()),
		Username:  user.Username,
		Role:      user.Role,
	}, nil
}

// EnsureAdmin creates the bootstrap admin unless the email is already registered.
func (s *userService) EnsureAdmin(ctx context.Context, username, email, password string) error {
	if _, err := s.repo.GetByEmail(ctx, strings.ToLower(email)); err == nil {
		return nil
	} else if !errors.Is(err, errorz.ErrNotFound) {
		return err
	}
	_, err := s.CreateUser(ctx, CreateUserRequest{Username: username, Email: email, Password: password, Role: model.RoleAdmin})
	return err
}

func (s *userService) ListReviewers(ctx context.Context) ([]UserResponse, error) {
	var out []UserResponse
	for _, role := range []string{model.RoleReviewer, model.RoleAdmin} {
		users, err := s.repo.ListByRole(ctx, role)
		if err != nil {
			return nil, fmt.Errorf("failed to list users: %w", err)
		}
		for i := range users {
			out = append(out, *mapToResponse(&users[i]))
		}
	}
	if out == nil {
		out = []UserResponse{}
	}
	return out, nil
}
