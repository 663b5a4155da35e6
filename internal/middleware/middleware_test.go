package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/estimate-export-api/internal/models"
	"github.com/noah-isme/estimate-export-api/internal/service"
	"github.com/noah-isme/estimate-export-api/pkg/logger"
	"github.com/noah-isme/estimate-export-api/pkg/ratelimit"
)

type validatorStub struct {
	claims *models.JWTClaims
	calls  int
}

func (v *validatorStub) ValidateToken(token string) (*models.JWTClaims, error) {
	v.calls++
	if token != "good" {
		return nil, errors.New("bad token")
	}
	return v.claims, nil
}

type limiterStub struct {
	result ratelimit.Result
	err    error
	ids    []string
}

func (l *limiterStub) Check(ctx context.Context, identifier, category string) (ratelimit.Result, error) {
	l.ids = append(l.ids, identifier+"/"+category)
	return l.result, l.err
}

func newRouter(v TokenValidator, limiter ratelimit.Limiter, reached *bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(JWT(v), RateLimit(limiter, ratelimit.CategoryAPI, service.NewMetricsService(), nil))
	r.POST("/api/estimate/export", func(c *gin.Context) {
		*reached = true
		c.JSON(http.StatusOK, gin.H{"user": c.GetString(logger.UserIDKey)})
	})
	return r
}

func doRequest(r http.Handler, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/estimate/export", nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTRejectsMissingAndInvalidTokens(t *testing.T) {
	v := &validatorStub{claims: &models.JWTClaims{UserID: "user-1"}}
	limiter := &limiterStub{result: ratelimit.Result{Success: true, Limit: 60, Remaining: 59}}
	reached := false
	r := newRouter(v, limiter, &reached)

	for _, auth := range []string{"", "Basic abc", "Bearer ", "Bearer nope"} {
		w := doRequest(r, auth)
		assert.Equal(t, http.StatusUnauthorized, w.Code, auth)
		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "Unauthorized", body["error"])
	}
	assert.False(t, reached)
	assert.Empty(t, limiter.ids)
}

func TestJWTAndRateLimitPassThrough(t *testing.T) {
	v := &validatorStub{claims: &models.JWTClaims{UserID: "user-1"}}
	reset := time.Now().Add(30 * time.Second).UnixMilli()
	limiter := &limiterStub{result: ratelimit.Result{Success: true, Limit: 60, Remaining: 59, Reset: reset}}
	reached := false
	r := newRouter(v, limiter, &reached)

	w := doRequest(r, "Bearer good")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, reached)
	assert.JSONEq(t, `{"user":"user-1"}`, w.Body.String())
	assert.Equal(t, []string{"user-1/API"}, limiter.ids)
	assert.Equal(t, "60", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "59", w.Header().Get("X-RateLimit-Remaining"))
	assert.Empty(t, w.Header().Get("Retry-After"))
}

func TestRateLimitExceeded(t *testing.T) {
	v := &validatorStub{claims: &models.JWTClaims{UserID: "user-1"}}
	reset := time.Now().Add(20 * time.Second).UnixMilli()
	limiter := &limiterStub{result: ratelimit.Result{Success: false, Limit: 60, Remaining: 0, Reset: reset}}
	reached := false
	r := newRouter(v, limiter, &reached)

	w := doRequest(r, "Bearer good")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.False(t, reached)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Rate limit exceeded", body["error"])
	assert.NotEmpty(t, body["message"])
	assert.Equal(t, float64(60), body["limit"])
	assert.Equal(t, float64(0), body["remaining"])
	assert.Equal(t, float64(reset), body["reset"])
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestRateLimitWithMemoryLimiter(t *testing.T) {
	v := &validatorStub{claims: &models.JWTClaims{UserID: "user-1"}}
	limiter := ratelimit.NewMemoryLimiter(ratelimit.Rules{ratelimit.CategoryAPI: {Requests: 2, Window: time.Minute}}, nil)
	reached := false
	r := newRouter(v, limiter, &reached)

	assert.Equal(t, http.StatusOK, doRequest(r, "Bearer good").Code)
	assert.Equal(t, http.StatusOK, doRequest(r, "Bearer good").Code)
	w := doRequest(r, "Bearer good")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
}

func TestRateLimitFailureIsInternalError(t *testing.T) {
	v := &validatorStub{claims: &models.JWTClaims{UserID: "user-1"}}
	limiter := &limiterStub{err: errors.New("redis unavailable")}
	reached := false
	r := newRouter(v, limiter, &reached)

	w := doRequest(r, "Bearer good")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.False(t, reached)
}

func TestMetricsMiddlewareUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	r := gin.New()
	r.Use(Metrics(metrics))
	r.GET("/api/estimate/exports/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/estimate/exports/abc", nil))
	require.Equal(t, http.StatusNoContent, w.Code)

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), `path="/api/estimate/exports/:id"`)
	assert.NotContains(t, rec.Body.String(), `path="/api/estimate/exports/abc"`)
}
