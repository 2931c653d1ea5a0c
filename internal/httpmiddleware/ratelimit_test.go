package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newLimitedRouter(capacity, perMinute int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(NewSimpleTokenBucket(capacity, perMinute).GinMiddleware())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func get(r *gin.Engine, ip string) int {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = ip + ":12345"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestLimiterAllowsWithinCapacity(t *testing.T) {
	r := newLimitedRouter(3, 3)
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, get(r, "10.0.0.1"))
	}
}

func TestLimiterRejectsBeyondCapacity(t *testing.T) {
	r := newLimitedRouter(2, 2)
	assert.Equal(t, http.StatusOK, get(r, "10.0.0.1"))
	assert.Equal(t, http.StatusOK, get(r, "10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, get(r, "10.0.0.1"))
}

func TestLimiterIsPerIP(t *testing.T) {
	r := newLimitedRouter(1, 1)
	assert.Equal(t, http.StatusOK, get(r, "10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, get(r, "10.0.0.1"))
	assert.Equal(t, http.StatusOK, get(r, "10.0.0.2"))
}
