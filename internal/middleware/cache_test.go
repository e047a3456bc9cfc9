package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestCacheHeaders(t *testing.T) {
	r := gin.New()
	r.GET("/definition", CacheControl(300), func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/session", NoStore(), func(c *gin.Context) { c.Status(http.StatusOK) })

	tests := map[string]string{
		"/definition": "private, max-age=300",
		"/session":    "no-store",
	}
	for path, want := range tests {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if got := w.Header().Get("Cache-Control"); got != want {
			t.Errorf("%s Cache-Control = %q, want %q", path, got, want)
		}
	}
}
