package logger

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-gateway/internal/response"
)

func TestRequestLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	zerolog.SetGlobalLevel(zerolog.DebugLevel)

	var buf bytes.Buffer
	r := gin.New()
	r.Use(response.RequestIDMiddleware(), RequestLogger(zerolog.New(&buf)))
	r.GET("/exams/:exam_id", func(c *gin.Context) { c.Status(http.StatusBadGateway) })

	req := httptest.NewRequest(http.MethodGet, "/exams/kimia-uts", nil)
	req.Header.Set("X-Request-ID", "req-9")
	r.ServeHTTP(httptest.NewRecorder(), req)

	var line struct {
		Level     string `json:"level"`
		Route     string `json:"route"`
		Status    int    `json:"status"`
		RequestID string `json:"request_id"`
		Component string `json:"component"`
	}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	if line.Level != "error" || line.Status != http.StatusBadGateway {
		t.Errorf("level/status = %s/%d", line.Level, line.Status)
	}
	if line.Route != "/exams/:exam_id" || line.RequestID != "req-9" || line.Component != "http" {
		t.Errorf("line = %+v", line)
	}
}
