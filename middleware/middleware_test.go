package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devarispbrown/gtsd/config"
	"github.com/devarispbrown/gtsd/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
	config.Set(config.AppConfig{JWTSecret: "test-secret"})
}

func echoUser(ctx *gin.Context) {
	id, ok := CurrentUserID(ctx)
	if !ok {
		ctx.Status(http.StatusTeapot)
		return
	}
	ctx.String(http.StatusOK, utils.FormatID(id))
}

func TestAuthRequired(t *testing.T) {
	r := gin.New()
	r.GET("/me", AuthRequired(), echoUser)

	token, err := utils.GenerateToken(21, "mo", time.Hour)
	require.NoError(t, err)
	expired, err := utils.GenerateToken(21, "mo", -time.Minute)
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
		status int
	}{
		{name: "valid", header: "Bearer " + token, status: http.StatusOK},
		{name: "missing", header: "", status: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic " + token, status: http.StatusUnauthorized},
		{name: "expired", header: "Bearer " + expired, status: http.StatusUnauthorized},
		{name: "garbage", header: "Bearer abc.def.ghi", status: http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code)
			if tc.status == http.StatusOK {
				assert.Equal(t, "21", w.Body.String())
			}
		})
	}
}

func TestServiceTokenRequired(t *testing.T) {
	r := gin.New()
	r.POST("/internal", ServiceTokenRequired("s3cret"), func(ctx *gin.Context) { ctx.Status(http.StatusNoContent) })

	for token, want := range map[string]int{
		"s3cret": http.StatusNoContent,
		"nope":   http.StatusUnauthorized,
		"":       http.StatusUnauthorized,
	} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/internal", nil)
		if token != "" {
			req.Header.Set(ServiceTokenHeader, token)
		}
		r.ServeHTTP(w, req)
		assert.Equal(t, want, w.Code, token)
	}

	closed := gin.New()
	closed.POST("/internal", ServiceTokenRequired(""), func(ctx *gin.Context) { ctx.Status(http.StatusNoContent) })
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/internal", nil)
	req.Header.Set(ServiceTokenHeader, "anything")
	closed.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRateLimitPerClient(t *testing.T) {
	store := newLimiterStore(4)
	now := time.Now()

	allowed := 0
	for i := 0; i < 5; i++ {
		if store.allow("1.2.3.4", now) {
			allowed++
		}
	}
	assert.Equal(t, 2, allowed)
	assert.True(t, store.allow("5.6.7.8", now))
	assert.True(t, store.allow("1.2.3.4", now.Add(15*time.Second)))
}

func TestRateLimitEvictsIdleClientsPeriodically(t *testing.T) {
	store := newLimiterStore(60)
	t0 := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	assert.True(t, store.allow("a", t0))
	assert.True(t, store.allow("b", t0.Add(4*time.Minute+30*time.Second)))
	assert.Equal(t, 2, store.size())

	// a is idle past its TTL, but the last sweep was under a period ago.
	assert.True(t, store.allow("c", t0.Add(5*time.Minute+10*time.Second)))
	assert.Equal(t, 3, store.size())

	assert.True(t, store.allow("c", t0.Add(5*time.Minute+40*time.Second)))
	assert.Equal(t, 2, store.size())
	_, kept := store.limiters["b"]
	assert.True(t, kept)
}

func TestRateLimitMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(RateLimit(2))
	r.GET("/", func(ctx *gin.Context) { ctx.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests, http.StatusTooManyRequests}, codes)
}
