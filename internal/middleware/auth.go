package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"formintake/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	ContextUserID   = "userID"
	ContextUserRole = "userRole"

	accessTokenCookie = "access_token"
)

// Auth validates HS256 tokens whose sub claim is the caller's identity.
type Auth struct {
	secret       []byte
	secureCookie bool
}

func NewAuth(secret string, secureCookie bool) *Auth {
	return &Auth{secret: []byte(secret), secureCookie: secureCookie}
}

func (a *Auth) Secret() []byte {
	return a.secret
}

// IssueToken signs a token for identity with the given role.
func (a *Auth) IssueToken(identity, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  identity,
		"role": role,
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	})
	return token.SignedString(a.secret)
}

// SetTokenCookie stores the access token as an HttpOnly cookie.
func (a *Auth) SetTokenCookie(c *gin.Context, token string, ttl time.Duration) {
	sameSite := http.SameSiteLaxMode
	if a.secureCookie {
		sameSite = http.SameSiteNoneMode
	}
	c.SetSameSite(sameSite)
	c.SetCookie(accessTokenCookie, token, int(ttl.Seconds()), "/", "", a.secureCookie, true)
}

func bearerToken(c *gin.Context) (string, error) {
	if tokenString, err := c.Cookie(accessTokenCookie); err == nil && tokenString != "" {
		return tokenString, nil
	}

	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", errors.New("Authorization is missing")
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", errors.New("Invalid authorization format. Expected 'Bearer <token>'")
	}
	return parts[1], nil
}

// RequireRole validates the JWT and checks the role claim against allowedRoles.
func (a *Auth) RequireRole(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := bearerToken(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, err.Error()))
			return
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return a.secret, nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid token"))
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid token claims"))
			return
		}

		identity, _ := claims["sub"].(string)
		if identity == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Identity not found in token"))
			return
		}

		userRole, ok := claims["role"].(string)
		if !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Role not found in token"))
			return
		}

		roleAllowed := false
		for _, role := range allowedRoles {
			if userRole == role {
				roleAllowed = true
				break
			}
		}
		if !roleAllowed {
			c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied: insufficient permissions"))
			return
		}

		c.Set(ContextUserID, identity)
		c.Set(ContextUserRole, userRole)

		c.Next()
	}
}

// Identity returns the authenticated caller set by RequireRole.
func Identity(c *gin.Context) string {
	return c.GetString(ContextUserID)
}

func Role(c *gin.Context) string {
	return c.GetString(ContextUserRole)
}
