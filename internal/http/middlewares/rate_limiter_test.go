package middlewares_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/taskhub/taskhub/internal/http/middlewares"
)

func limitedRouter(limit int, window time.Duration) *gin.Engine {
	rl := middlewares.NewRateLimiter(limit, window)

	r := gin.New()
	r.GET("/ping", rl.Middleware(middlewares.KeyByIP), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	return r
}

func TestRateLimiter(t *testing.T) {
	r := limitedRouter(2, time.Minute)

	codes := make([]int, 0, 3)

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = "10.0.0.1:1234"

		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)

		if w.Code == http.StatusTooManyRequests && w.Header().Get("Retry-After") == "" {
			t.Error("429 must carry Retry-After")
		}
	}

	want := []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}

	for i := range want {
		if codes[i] != want[i] {
			t.Fatalf("request %d: got %d, want %d (all: %v)", i+1, codes[i], want[i], codes)
		}
	}
}

func TestRateLimiter_SeparateKeys(t *testing.T) {
	r := limitedRouter(1, time.Minute)

	for _, addr := range []string{"10.0.0.1:1234", "10.0.0.2:1234"} {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = addr

		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("first request from %s: got %d, want 200", addr, w.Code)
		}
	}
}

func TestRateLimiter_WindowResets(t *testing.T) {
	r := limitedRouter(1, 30*time.Millisecond)

	send := func() int {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = "10.0.0.1:1234"

		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	if got := send(); got != http.StatusOK {
		t.Fatalf("first request: got %d", got)
	}

	if got := send(); got != http.StatusTooManyRequests {
		t.Fatalf("second request: got %d, want 429", got)
	}

	time.Sleep(50 * time.Millisecond)

	if got := send(); got != http.StatusOK {
		t.Fatalf("after window: got %d, want 200", got)
	}
}
