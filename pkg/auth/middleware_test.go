package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func newAuthRouter(secret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/cron/publish", CronAuthMiddleware(secret), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r
}

func TestCronAuthMiddlewareMissingHeader(t *testing.T) {
	r := newAuthRouter("s3cret")

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/cron/publish", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestCronAuthMiddlewareWrongSecret(t *testing.T) {
	r := newAuthRouter("s3cret")

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/cron/publish", nil)
	req.Header.Set("Authorization", "Bearer nope")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestCronAuthMiddlewareValidSecret(t *testing.T) {
	r := newAuthRouter("s3cret")

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/cron/publish", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestValidateCronSecret(t *testing.T) {
	if err := ValidateCronSecret("", "x"); err != ErrMissingCronSecret {
		t.Fatalf("expected ErrMissingCronSecret, got %v", err)
	}
	if err := ValidateCronSecret("y", "x"); err != ErrInvalidCronSecret {
		t.Fatalf("expected ErrInvalidCronSecret, got %v", err)
	}
	if err := ValidateCronSecret("x", "x"); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}
