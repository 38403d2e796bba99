package service

import (
	"context"
	"testing"
	"time"

	"formintake/internal/errorz"
	"formintake/internal/middleware"
	"formintake/internal/model"
	"formintake/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUserFixture(t *testing.T) (UserService, *middleware.Auth) {
	t.Helper()
	auth := middleware.NewAuth("test-secret", false)
	repo := repository.NewUserRepository(newTestDB(t))
	return NewUserService(repo, auth, time.Hour), auth
}

func TestCreateUserAndLogin(t *testing.T) {
	svc, auth := newUserFixture(t)
	ctx := context.Background()

	created, err := svc.CreateUser(ctx, CreateUserRequest{
		Username: "alice",
		Email:    "Alice@Example.com",
		Password: "s3cret!",
		Role:     model.RoleSubmitter,
	})
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", created.Email)

	tok, err := svc.Login(ctx, LoginUserRequest{Email: "alice@example.com", Password: "s3cret!"})
	require.NoError(t, err)
	assert.Equal(t, "alice", tok.Username)
	assert.EqualValues(t, 3600, tok.ExpiresIn)

	claims := jwt.MapClaims{}
	_, err = jwt.ParseWithClaims(tok.Token, claims, func(*jwt.Token) (interface{}, error) { return auth.Secret(), nil })
	require.NoError(t, err)
	assert.Equal(t, "alice", claims["sub"])
	assert.Equal(t, model.RoleSubmitter, claims["role"])

	_, err = svc.Login(ctx, LoginUserRequest{Email: "alice@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(ctx, LoginUserRequest{Email: "nobody@example.com", Password: "s3cret!"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestCreateUser_Rejects(t *testing.T) {
	svc, _ := newUserFixture(t)
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, CreateUserRequest{Username: "x", Email: "x@example.com", Password: "123456", Role: "owner"})
	assert.ErrorIs(t, err, errorz.ErrInvalidInput)

	_, err = svc.CreateUser(ctx, CreateUserRequest{Username: "bob", Email: "bob@example.com", Password: "123456", Role: model.RoleReviewer})
	require.NoError(t, err)

	_, err = svc.CreateUser(ctx, CreateUserRequest{Username: "bob", Email: "other@example.com", Password: "123456", Role: model.RoleReviewer})
	assert.ErrorIs(t, err, errorz.ErrInvalidInput)
	_, err = svc.CreateUser(ctx, CreateUserRequest{Username: "bobby", Email: "bob@example.com", Password: "123456", Role: model.RoleReviewer})
	assert.ErrorIs(t, err, errorz.ErrInvalidInput)
}

func TestEnsureAdminIsIdempotent(t *testing.T) {
	svc, _ := newUserFixture(t)
	ctx := context.Background()

	require.NoError(t, svc.EnsureAdmin(ctx, "admin", "admin@example.com", "changeme"))
	require.NoError(t, svc.EnsureAdmin(ctx, "admin", "admin@example.com", "changeme"))

	_, err := svc.CreateUser(ctx, CreateUserRequest{Username: "rev", Email: "rev@example.com", Password: "123456", Role: model.RoleReviewer})
	require.NoError(t, err)
	_, err = svc.CreateUser(ctx, CreateUserRequest{Username: "sub", Email: "sub@example.com", Password: "123456", Role: model.RoleSubmitter})
	require.NoError(t, err)

	reviewers, err := svc.ListReviewers(ctx)
	require.NoError(t, err)
	names := make([]string, 0, len(reviewers))
	for _, u := range reviewers {
		names = append(names, u.Username)
	}
	assert.Equal(t, []string{"rev", "admin"}, names)
}
