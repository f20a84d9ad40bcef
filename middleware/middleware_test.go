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
	"github.com/viberl/BlindTasting-sub000/config"
)

const secret = "middleware-test-secret"

func newRouter(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw...)
	r.GET("/whoami", func(c *gin.Context) {
		user, ok := UserFromContext(c)
		if !ok {
			c.JSON(http.StatusOK, gin.H{"user": ""})
			return
		}
		c.JSON(http.StatusOK, gin.H{"user": user.ID, "reviewer": user.HasRole(ReviewerRole)})
	})
	r.GET("/strict", func(c *gin.Context) {
		user, err := GetUserFromRequest(c)
		if err != nil {
			return
		}
		c.String(http.StatusOK, user.ID)
	})
	return r
}

func get(r http.Handler, target, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	r := newRouter(AuthMiddleware(secret))

	valid, err := IssueToken(secret, "user-1", []string{ReviewerRole}, time.Hour)
	require.NoError(t, err)
	expired, err := IssueToken(secret, "user-1", nil, -time.Minute)
	require.NoError(t, err)
	wrongSecret, err := IssueToken("other", "user-1", nil, time.Hour)
	require.NoError(t, err)
	noSubject, err := IssueToken(secret, "", nil, time.Hour)
	require.NoError(t, err)
	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{"sub": "user-1"}).SignedString([]byte(secret))
	require.NoError(t, err)

	tests := []struct {
		name   string
		target string
		header string
		status int
	}{
		{"bearer header", "/whoami", "Bearer " + valid, http.StatusOK},
		{"query token", "/whoami?token=" + valid, "", http.StatusOK},
		{"missing", "/whoami", "", http.StatusUnauthorized},
		{"not bearer", "/whoami", "Basic " + valid, http.StatusUnauthorized},
		{"expired", "/whoami", "Bearer " + expired, http.StatusUnauthorized},
		{"wrong secret", "/whoami", "Bearer " + wrongSecret, http.StatusUnauthorized},
		{"no subject", "/whoami", "Bearer " + noSubject, http.StatusUnauthorized},
		{"unexpected algorithm", "/whoami", "Bearer " + hs512, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(r, tt.target, tt.header)
			assert.Equal(t, tt.status, w.Code)
		})
	}

	w := get(r, "/whoami", "Bearer "+valid)
	assert.JSONEq(t, `{"user":"user-1","reviewer":true}`, w.Body.String())
}

func TestSetUserIdMiddleware(t *testing.T) {
	r := newRouter(SetUserIdMiddleware(secret))

	w := get(r, "/whoami", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user":""}`, w.Body.String())

	w = get(r, "/whoami", "Bearer garbage")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user":""}`, w.Body.String())

	tok, err := IssueToken(secret, "user-2", nil, time.Hour)
	require.NoError(t, err)
	w = get(r, "/whoami", "Bearer "+tok)
	assert.JSONEq(t, `{"user":"user-2","reviewer":false}`, w.Body.String())

	w = get(r, "/strict", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = get(r, "/strict", "Bearer "+tok)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user-2", w.Body.String())
}

func TestRateLimiter(t *testing.T) {
	now := time.Date(2024, 9, 14, 19, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(config.RateLimitConfig{RequestsPerSecond: 1, Burst: 2})
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"), "burst exhausted")
	assert.True(t, rl.Allow("10.0.0.2"), "buckets are per ip")

	now = now.Add(time.Second)
	assert.True(t, rl.Allow("10.0.0.1"), "one token refilled")
	assert.False(t, rl.Allow("10.0.0.1"))

	now = now.Add(visitorTTL + time.Second)
	assert.Equal(t, 2, rl.Cleanup())
	assert.Equal(t, 0, rl.Cleanup())
}

func TestRateLimiterMiddleware(t *testing.T) {
	rl := NewRateLimiter(config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 1})
	r := newRouter(RateLimiterMiddleware(rl))

	assert.Equal(t, http.StatusOK, get(r, "/whoami", "").Code)
	w := get(r, "/whoami", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "Too many requests")
}

func TestMetricsMiddleware(t *testing.T) {
	r := newRouter(MetricsMiddleware())
	assert.Equal(t, http.StatusOK, get(r, "/whoami", "").Code)
	assert.Equal(t, http.StatusNotFound, get(r, "/nowhere", "").Code)

	RecordSystemMetrics()
}
