package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/taskhub/taskhub/internal/http/handlers"
)

func etagRouter() *gin.Engine {
	r := gin.New()
	r.GET("/resource", func(c *gin.Context) {
		handlers.RespondJSONWithETag(c, http.StatusOK, gin.H{"value": 42})
	})
	return r
}

func TestRespondJSONWithETag(t *testing.T) {
	r := etagRouter()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/resource", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d", w.Code)
	}

	etag := w.Header().Get("ETag")

	if etag == "" {
		t.Fatal("expected an ETag header")
	}

	// the same representation revalidates to 304
	req := httptest.NewRequest(http.MethodGet, "/resource", nil)
	req.Header.Set("If-None-Match", etag)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotModified {
		t.Fatalf("got status %d, want 304", w.Code)
	}

	if w.Body.Len() != 0 {
		t.Error("304 must not carry a body")
	}
}

func TestRespondJSONWithETag_NoMatch(t *testing.T) {
	r := etagRouter()

	req := httptest.NewRequest(http.MethodGet, "/resource", nil)
	req.Header.Set("If-None-Match", `"deadbeef"`)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", w.Code)
	}
}

func TestRespondJSONWithETag_WeakValidator(t *testing.T) {
	r := etagRouter()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/resource", nil))

	req := httptest.NewRequest(http.MethodGet, "/resource", nil)
	req.Header.Set("If-None-Match", "W/"+w.Header().Get("ETag"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotModified {
		t.Fatalf("got status %d, want 304", w.Code)
	}
}
