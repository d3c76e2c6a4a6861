package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func setupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(AllowAllCORS())
	router.POST("/local", OnlyAllowLocal, func(c *gin.Context) { c.Status(http.StatusOK) })
	return router
}

func TestOnlyAllowLocal(t *testing.T) {
	router := setupRouter()

	cases := []struct {
		remote string
		status int
	}{
		{"127.0.0.1:5000", http.StatusOK},
		{"[::1]:5000", http.StatusOK},
		{"192.168.1.20:5000", http.StatusForbidden},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/local", nil)
		req.RemoteAddr = tc.remote
		router.ServeHTTP(w, req)
		assert.Equal(t, tc.status, w.Code, tc.remote)
	}
}

func TestAllowAllCORSPreflight(t *testing.T) {
	router := setupRouter()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/local", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
