package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func guardedRouter(apiKey string) *gin.Engine {
	router := gin.New()
	router.Use(NewAdminMiddleware(apiKey).RequireAdminAuth())
	router.GET("/guarded", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return router
}

func TestRequireAdminAuth(t *testing.T) {
	tests := []struct {
		name           string
		apiKey         string
		headers        map[string]string
		expectedStatus int
	}{
		{
			name:           "valid bearer token",
			apiKey:         "secret-key",
			headers:        map[string]string{"Authorization": "Bearer secret-key"},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "valid x-api-key header",
			apiKey:         "secret-key",
			headers:        map[string]string{"X-API-Key": "secret-key"},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "wrong bearer token",
			apiKey:         "secret-key",
			headers:        map[string]string{"Authorization": "Bearer wrong"},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "malformed authorization header",
			apiKey:         "secret-key",
			headers:        map[string]string{"Authorization": "secret-key"},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "missing credentials",
			apiKey:         "secret-key",
			headers:        nil,
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "empty key disables the guard",
			apiKey:         "",
			headers:        nil,
			expectedStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := guardedRouter(tt.apiKey)

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}
