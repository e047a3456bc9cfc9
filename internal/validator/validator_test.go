package validator

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

type toggleBody struct {
	Option string `json:"option" binding:"required,option_key"`
}

func bindBody(t *testing.T, body string) map[string]string {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	var dst toggleBody
	return Bind(c, &dst)
}

func TestBindOptionKey(t *testing.T) {
	gin.SetMode(gin.TestMode)
	Setup()

	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"single letter", `{"option":"A"}`, false},
		{"two letters", `{"option":"AB"}`, false},
		{"lowercase", `{"option":"a"}`, true},
		{"too long", `{"option":"ABC"}`, true},
		{"missing", `{}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := bindBody(t, tt.body)
			if (fields != nil) != tt.wantErr {
				t.Fatalf("fields = %v, wantErr %v", fields, tt.wantErr)
			}
			if tt.wantErr {
				if _, ok := fields["option"]; !ok {
					t.Errorf("error not keyed by json name: %v", fields)
				}
			}
		})
	}
}

func TestBindMalformedJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)
	Setup()

	fields := bindBody(t, `{"option":`)
	if fields["detail"] == "" {
		t.Errorf("fields = %v, want detail", fields)
	}
}
