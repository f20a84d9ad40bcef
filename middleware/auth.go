package middleware

import (
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// ReviewerRole lets a user correct scores of tastings they do not host
const ReviewerRole = "reviewer"

const userContextKey = "user"

var errNoUser = errors.New("no authenticated user")

// Claims is the access token payload. The subject is the user id.
type Claims struct {
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// User is the identity extracted from a valid token
type User struct {
	ID    string
	Roles []string
}

// HasRole reports whether the token granted role
func (u *User) HasRole(role string) bool {
	return slices.Contains(u.Roles, role)
}

// IssueToken signs an HS256 token for userID. Tokens are normally issued by
// the account service; this exists for tooling and tests.
func IssueToken(secret, userID string, roles []string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// tokenFromRequest reads the bearer token, or the token query parameter
// browsers use for websocket upgrades.
func tokenFromRequest(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return c.Query("token")
}

func parseUser(secret, raw string) (*User, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !tok.Valid || claims.Subject == "" {
		return nil, errNoUser
	}
	return &User{ID: claims.Subject, Roles: claims.Roles}, nil
}

// AuthMiddleware rejects requests without a valid token
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := tokenFromRequest(c)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing bearer token"})
			return
		}
		user, err := parseUser(secret, raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}
		c.Set(userContextKey, user)
		c.Next()
	}
}

// SetUserIdMiddleware attaches the user when a valid token is present and
// lets anonymous requests through
func SetUserIdMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw := tokenFromRequest(c); raw != "" {
			if user, err := parseUser(secret, raw); err == nil {
				c.Set(userContextKey, user)
			}
		}
		c.Next()
	}
}

// GetUserFromRequest returns the authenticated user. When there is none it
// writes a 401 response and returns an error; the handler should just return.
func GetUserFromRequest(c *gin.Context) (*User, error) {
	if user, ok := UserFromContext(c); ok {
		return user, nil
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
	return nil, errNoUser
}

// UserFromContext returns the user attached by one of the auth middlewares
func UserFromContext(c *gin.Context) (*User, bool) {
	v, ok := c.Get(userContextKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*User)
	return user, ok
}
