package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-portal/internal/model"
	apperrors "github.com/jwalitptl/clinic-portal/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubResolver map[string]*model.Session

func (s stubResolver) Resolve(_ context.Context, token string) (*model.Session, error) {
	if session, ok := s[token]; ok {
		return session, nil
	}
	return nil, apperrors.Unauthorized(nil)
}

func serve(t *testing.T, engine *gin.Engine, req *http.Request) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	var body map[string]interface{}
	if w.Body.Len() > 0 && strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	}
	return w, body
}

func authed(method, path, token string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestAuthMiddleware(t *testing.T) {
	auth := NewAuthMiddleware(stubResolver{
		"doc":   {UserID: 1, Role: model.RoleDoctor},
		"pat":   {UserID: 2, Role: model.RolePatient},
		"guest": {Role: model.RolePatient, Guest: true},
	})

	engine := gin.New()
	ok := func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"user": SessionFrom(c).UserID}) }
	engine.GET("/open", auth.Authenticate(), ok)
	engine.GET("/members", auth.Authenticate(), auth.DenyGuest(), ok)
	engine.GET("/doctors", auth.Authenticate(), auth.RequireRole(model.RoleDoctor), ok)

	tests := []struct {
		path, token string
		want        int
	}{
		{"/open", "", http.StatusUnauthorized},
		{"/open", "bogus", http.StatusUnauthorized},
		{"/open", "guest", http.StatusOK},
		{"/members", "guest", http.StatusForbidden},
		{"/members", "pat", http.StatusOK},
		{"/doctors", "pat", http.StatusForbidden},
		{"/doctors", "guest", http.StatusForbidden},
		{"/doctors", "doc", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.path+"/"+tt.token, func(t *testing.T) {
			w, body := serve(t, engine, authed(http.MethodGet, tt.path, tt.token))
			assert.Equal(t, tt.want, w.Code)
			if tt.want != http.StatusOK {
				assert.Equal(t, "error", body["status"])
			}
		})
	}
}

func TestBearerToken(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	c.Request.Header.Set("Authorization", "bearer abc")
	token, ok := BearerToken(c)
	assert.True(t, ok)
	assert.Equal(t, "abc", token)

	c.Request.Header.Set("Authorization", "Basic abc")
	_, ok = BearerToken(c)
	assert.False(t, ok)
}

func TestRateLimit(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{RPS: 0.001, Burst: 2})
	engine := gin.New()
	engine.Use(rl.RateLimit())
	engine.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 2; i++ {
		w, _ := serve(t, engine, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
	w, _ := serve(t, engine, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	other := httptest.NewRequest(http.MethodGet, "/", nil)
	other.RemoteAddr = "10.0.0.9:1234"
	w, _ = serve(t, engine, other)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTimeout(t *testing.T) {
	engine := gin.New()
	engine.Use(Timeout(TimeoutConfig{Duration: 10 * time.Millisecond}))
	engine.GET("/slow", func(c *gin.Context) {
		<-c.Request.Context().Done()
	})

	w, body := serve(t, engine, httptest.NewRequest(http.MethodGet, "/slow", nil))
	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
	assert.Equal(t, "Request timeout", body["message"])
}

func TestRequestIDAndRecovery(t *testing.T) {
	engine := gin.New()
	engine.Use(RequestID(), Recovery())
	engine.GET("/panic", func(c *gin.Context) { panic("boom") })

	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	req.Header.Set(HeaderXRequestID, "abc-123")
	w, body := serve(t, engine, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "abc-123", w.Header().Get(HeaderXRequestID))
	assert.Equal(t, "Internal server error", body["message"])

	w, _ = serve(t, engine, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Len(t, w.Header().Get(HeaderXRequestID), 36)
}

func TestSizeLimit(t *testing.T) {
	engine := gin.New()
	engine.Use(SizeLimit(SizeLimitConfig{MaxBodySize: 8, MaxUploadSize: 64}))
	engine.POST("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w, _ := serve(t, engine, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"a":"0123456789"}`)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	upload := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("x", 32)))
	upload.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	w, _ = serve(t, engine, upload)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRegisterValidatorsIsIdempotent(t *testing.T) {
	require.NoError(t, RegisterValidators())
	require.NoError(t, RegisterValidators())
}
