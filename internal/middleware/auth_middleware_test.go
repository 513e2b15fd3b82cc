package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"taskboard/internal/auth"
	"taskboard/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key"

func setupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	protected := r.Group("/projects")
	protected.Use(middleware.JWTAuthMiddleware(auth.NewTokenIssuer(testSecret, time.Hour)))
	protected.GET("", func(c *gin.Context) {
		userID, ok := middleware.CurrentUserID(c)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "no caller"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"caller": userID})
	})
	return r
}

func signed(t *testing.T, claims jwt.MapClaims, secret string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestJWTAuthMiddleware(t *testing.T) {
	userID := uuid.New()
	valid, err := auth.NewTokenIssuer(testSecret, time.Hour).GenerateToken(userID)
	require.NoError(t, err)

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantBody   string
	}{
		{
			name:       "valid token",
			header:     "Bearer " + valid,
			wantStatus: http.StatusOK,
			wantBody:   userID.String(),
		},
		{
			name:       "scheme is case-insensitive",
			header:     "bearer " + valid,
			wantStatus: http.StatusOK,
			wantBody:   userID.String(),
		},
		{
			name:       "no header",
			wantStatus: http.StatusUnauthorized,
			wantBody:   "Authorization header is required",
		},
		{
			name:       "wrong scheme",
			header:     "Basic abc123",
			wantStatus: http.StatusUnauthorized,
			wantBody:   "Authorization header format must be Bearer {token}",
		},
		{
			name:       "scheme without token",
			header:     "Bearer ",
			wantStatus: http.StatusUnauthorized,
			wantBody:   "Authorization header format must be Bearer {token}",
		},
		{
			name:       "garbage token",
			header:     "Bearer not-a-jwt",
			wantStatus: http.StatusUnauthorized,
			wantBody:   "Invalid or expired token",
		},
		{
			name: "expired token",
			header: "Bearer " + signed(t, jwt.MapClaims{
				"user_id": userID.String(),
				"exp":     jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			}, testSecret),
			wantStatus: http.StatusUnauthorized,
			wantBody:   "Invalid or expired token",
		},
		{
			name: "signed with another secret",
			header: "Bearer " + signed(t, jwt.MapClaims{
				"user_id": userID.String(),
				"exp":     jwt.NewNumericDate(time.Now().Add(time.Hour)),
			}, "someone-else"),
			wantStatus: http.StatusUnauthorized,
			wantBody:   "Invalid or expired token",
		},
		{
			name: "user id is not a uuid",
			header: "Bearer " + signed(t, jwt.MapClaims{
				"user_id": "not-a-valid-uuid",
				"exp":     jwt.NewNumericDate(time.Now().Add(time.Hour)),
			}, testSecret),
			wantStatus: http.StatusUnauthorized,
			wantBody:   "Invalid user ID in token",
		},
	}

	router := setupRouter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/projects", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp := httptest.NewRecorder()

			router.ServeHTTP(resp, req)

			assert.Equal(t, tt.wantStatus, resp.Code)
			assert.Contains(t, resp.Body.String(), tt.wantBody)
		})
	}
}

func TestCurrentUserID_Missing(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	_, ok := middleware.CurrentUserID(c)

	assert.False(t, ok)
}
