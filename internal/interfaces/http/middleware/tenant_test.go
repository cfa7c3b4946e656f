package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func newTenantTestRouter(cfg TenantMiddlewareConfig) (*gin.Engine, *string) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(TenantMiddlewareWithConfig(cfg))

	var seenTenantID string
	handler := func(c *gin.Context) {
		seenTenantID = GetTenantID(c)
		c.Status(http.StatusOK)
	}
	router.GET("/documents", handler)
	router.GET("/health", handler)

	return router, &seenTenantID
}

func TestTenantMiddleware(t *testing.T) {
	t.Run("accepts a valid tenant header", func(t *testing.T) {
		router, seen := newTenantTestRouter(DefaultTenantConfig())
		tenantID := uuid.NewString()

		req, _ := http.NewRequest(http.MethodGet, "/documents", nil)
		req.Header.Set(TenantHeaderKey, tenantID)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, tenantID, *seen)
	})

	t.Run("rejects a missing tenant header when required", func(t *testing.T) {
		router, _ := newTenantTestRouter(DefaultTenantConfig())

		req, _ := http.NewRequest(http.MethodGet, "/documents", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("rejects a malformed tenant id", func(t *testing.T) {
		router, _ := newTenantTestRouter(DefaultTenantConfig())

		req, _ := http.NewRequest(http.MethodGet, "/documents", nil)
		req.Header.Set(TenantHeaderKey, "not-a-uuid")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("skips configured paths", func(t *testing.T) {
		router, _ := newTenantTestRouter(DefaultTenantConfig())

		req, _ := http.NewRequest(http.MethodGet, "/health", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("optional middleware lets requests through without tenant", func(t *testing.T) {
		cfg := DefaultTenantConfig()
		cfg.Required = false
		router, seen := newTenantTestRouter(cfg)

		req, _ := http.NewRequest(http.MethodGet, "/documents", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, *seen)
	})
}

func TestGetTenantUUID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("parses the stored tenant id", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		tenantID := uuid.New()
		c.Set(TenantIDKey, tenantID.String())

		got, err := GetTenantUUID(c)
		assert.NoError(t, err)
		assert.Equal(t, tenantID, got)
	})

	t.Run("returns Nil without a tenant", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())

		got, err := GetTenantUUID(c)
		assert.NoError(t, err)
		assert.Equal(t, uuid.Nil, got)
	})
}
