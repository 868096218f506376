package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/SergeiKhy/timewatch-admin/internal/middleware"
	"github.com/SergeiKhy/timewatch-admin/internal/models"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func ok(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func do(router http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// TestRateLimiter_Middleware проверяет работу rate limiter middleware
func TestRateLimiter_Middleware(t *testing.T) {
	rl := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		RequestsPerSecond: 5,
		BurstSize:         5,
		CleanupInterval:   time.Minute,
	})
	t.Cleanup(rl.Stop)

	router := gin.New()
	router.Use(rl.Middleware())
	router.GET("/test", ok)

	// Первые 5 запросов должны пройти (в пределах burst лимита)
	for i := 0; i < 5; i++ {
		w := do(router, httptest.NewRequest(http.MethodGet, "/test", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}

	w := do(router, httptest.NewRequest(http.MethodGet, "/test", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "rate_limit_exceeded", body["error"])
	assert.Equal(t, 1.0, body["retry_after"])
}

// TestRateLimiter_MiddlewareWithKey: у каждого API ключа свой bucket
func TestRateLimiter_MiddlewareWithKey(t *testing.T) {
	rl := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		RequestsPerSecond: 2,
		BurstSize:         2,
		CleanupInterval:   time.Minute,
	})
	t.Cleanup(rl.Stop)

	router := gin.New()
	router.Use(middleware.OptionalAPIKey(map[string]string{"k1": "cron", "k2": "ops"}))
	router.Use(rl.MiddlewareWithKey(middleware.APIKeyName))
	router.GET("/test", ok)

	withKey := func(key string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("X-API-Key", key)
		return req
	}

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, do(router, withKey("k1")).Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, do(router, withKey("k1")).Code)
	assert.Equal(t, http.StatusOK, do(router, withKey("k2")).Code)
}

func TestRateLimiter_StopIsIdempotent(t *testing.T) {
	rl := middleware.NewRateLimiter(middleware.RateLimiterConfig{RequestsPerSecond: 1, BurstSize: 1})
	assert.NotPanics(t, func() {
		rl.Stop()
		rl.Stop()
	})
}

// TestAPIKey_Middleware проверяет аутентификацию по API ключу
func TestAPIKey_Middleware(t *testing.T) {
	router := gin.New()
	router.Use(middleware.RequireAPIKey(map[string]string{"test-key-1": "Test Key 1"}))
	router.GET("/test", ok)

	assert.Equal(t, http.StatusUnauthorized, do(router, httptest.NewRequest(http.MethodGet, "/test", nil)).Code)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("X-API-Key", "invalid-key")
	w := do(router, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_api_key")

	req = httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("X-API-Key", "test-key-1")
	assert.Equal(t, http.StatusOK, do(router, req).Code)
}

func TestAPIKey_Middleware_Sources(t *testing.T) {
	router := gin.New()
	router.Use(middleware.RequireAPIKey(map[string]string{"test-key-1": "Test Key 1"}))
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"name": middleware.APIKeyName(c)})
	})

	tests := []struct {
		name  string
		setup func(r *http.Request)
		path  string
	}{
		{name: "query", path: "/test?api_key=test-key-1", setup: func(r *http.Request) {}},
		{name: "bearer", path: "/test", setup: func(r *http.Request) { r.Header.Set("Authorization", "Bearer test-key-1") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			tt.setup(req)
			w := do(router, req)
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Contains(t, w.Body.String(), `"name":"Test Key 1"`)
		})
	}
}

// TestAPIKey_Middleware_Optional проверяет опциональную аутентификацию
func TestAPIKey_Middleware_Optional(t *testing.T) {
	router := gin.New()
	router.Use(middleware.OptionalAPIKey(map[string]string{"test-key-1": "Test Key 1"}))
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"validated": middleware.IsAPIKeyValidated(c)})
	})

	w := do(router, httptest.NewRequest(http.MethodGet, "/test", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"validated":false`)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("X-API-Key", "test-key-1")
	w = do(router, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"validated":true`)
}

// adminRouter: /login?role=... кладёт пользователя в сессию, /guarded закрыт RequireAdmin
func adminRouter(status int, body func(string) gin.H, skip bool) *gin.Engine {
	router := gin.New()
	router.Use(sessions.Sessions(middleware.SessionName, cookie.NewStore([]byte("test-secret"))))
	router.Use(middleware.OptionalAPIKey(map[string]string{"auto-key": "automation"}))
	router.GET("/login", func(c *gin.Context) {
		user := &models.User{ID: primitive.NewObjectID(), Username: "admin", Role: c.Query("role")}
		if err := middleware.SaveSessionUser(c, user); err != nil {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Status(http.StatusOK)
	})
	router.GET("/logout", func(c *gin.Context) {
		_ = middleware.ClearSession(c)
		c.Status(http.StatusOK)
	})
	router.GET("/guarded", middleware.RequireAdmin(status, body, skip), func(c *gin.Context) {
		user, _ := middleware.GetSessionUser(c)
		c.JSON(http.StatusOK, gin.H{"user": user})
	})
	return router
}

func loginCookie(t *testing.T, router http.Handler, role string) *http.Cookie {
	t.Helper()
	w := do(router, httptest.NewRequest(http.MethodGet, "/login?role="+role, nil))
	require.Equal(t, http.StatusOK, w.Code)
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)
	return cookies[0]
}

func TestRequireAdmin(t *testing.T) {
	router := adminRouter(http.StatusForbidden, middleware.ErrorDenied, false)

	w := do(router, httptest.NewRequest(http.MethodGet, "/guarded", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.JSONEq(t, `{"error":"관리자 권한이 필요합니다."}`, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
	req.AddCookie(loginCookie(t, router, "user"))
	assert.Equal(t, http.StatusForbidden, do(router, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/guarded", nil)
	req.AddCookie(loginCookie(t, router, models.RoleAdmin))
	w = do(router, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"username":"admin"`)
}

func TestRequireAdmin_EventsShape(t *testing.T) {
	router := adminRouter(http.StatusUnauthorized, middleware.EventsDenied, false)

	w := do(router, httptest.NewRequest(http.MethodGet, "/guarded", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"success":false,"message":"관리자 권한이 필요합니다."}`, w.Body.String())
}

func TestRequireAdmin_APIKeyAndSkip(t *testing.T) {
	router := adminRouter(http.StatusForbidden, middleware.ErrorDenied, false)
	req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
	req.Header.Set("X-API-Key", "auto-key")
	assert.Equal(t, http.StatusOK, do(router, req).Code)

	dev := adminRouter(http.StatusUnauthorized, middleware.EventsDenied, true)
	assert.Equal(t, http.StatusOK, do(dev, httptest.NewRequest(http.MethodGet, "/guarded", nil)).Code)
}

func TestRequestID(t *testing.T) {
	router := gin.New()
	router.Use(middleware.RequestID())
	router.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, middleware.GetRequestID(c))
	})

	w := do(router, httptest.NewRequest(http.MethodGet, "/test", nil))
	generated := w.Header().Get(middleware.RequestIDHeader)
	assert.Len(t, generated, 36)
	assert.Equal(t, generated, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(middleware.RequestIDHeader, "abc-123")
	w = do(router, req)
	assert.Equal(t, "abc-123", w.Header().Get(middleware.RequestIDHeader))
}

func TestLogger_LevelByStatus(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)

	router := gin.New()
	router.Use(middleware.RequestID(), middleware.Logger(zap.New(core)))
	router.GET("/ok", ok)
	router.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	do(router, httptest.NewRequest(http.MethodGet, "/ok", nil))
	do(router, httptest.NewRequest(http.MethodGet, "/boom", nil))
	do(router, httptest.NewRequest(http.MethodGet, "/missing", nil))

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, zap.InfoLevel, entries[0].Level)
	assert.Equal(t, zap.ErrorLevel, entries[1].Level)
	assert.Equal(t, zap.WarnLevel, entries[2].Level)
	assert.NotEmpty(t, entries[0].ContextMap()["request_id"])
}
