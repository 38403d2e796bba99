package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(a *Auth, roles ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/private", a.RequireRole(roles...), func(c *gin.Context) {
		c.String(http.StatusOK, Identity(c)+"|"+Role(c))
	})
	return r
}

func do(r *gin.Engine, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireRoleAcceptsIssuedToken(t *testing.T) {
	a := NewAuth("s3cret", false)
	token, err := a.IssueToken("alice", "reviewer", time.Hour)
	require.NoError(t, err)

	w := do(newRouter(a, "reviewer", "admin"), "Bearer "+token)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice|reviewer", w.Body.String())
}

func TestRequireRoleRejects(t *testing.T) {
	a := NewAuth("s3cret", false)
	r := newRouter(a, "admin")

	submitter, _ := a.IssueToken("bob", "submitter", time.Hour)
	expired, _ := a.IssueToken("bob", "admin", -time.Minute)
	foreign, _ := NewAuth("other", false).IssueToken("bob", "admin", time.Hour)
	noSub, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"role": "admin"}).SignedString([]byte("s3cret"))

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"garbage", "Bearer abc", http.StatusUnauthorized},
		{"expired", "Bearer " + expired, http.StatusUnauthorized},
		{"other secret", "Bearer " + foreign, http.StatusUnauthorized},
		{"no identity", "Bearer " + noSub, http.StatusUnauthorized},
		{"role not allowed", "Bearer " + submitter, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, do(r, tc.header).Code)
		})
	}
}

func TestRequireRoleReadsCookie(t *testing.T) {
	a := NewAuth("s3cret", false)
	token, _ := a.IssueToken("carol", "admin", time.Hour)

	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	req.AddCookie(&http.Cookie{Name: "access_token", Value: token})
	w := httptest.NewRecorder()
	newRouter(a, "admin").ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}
