package middlewares_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/taskhub/taskhub/internal/auth"
	"github.com/taskhub/taskhub/internal/http/middlewares"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeVerifier struct {
	claims *auth.Claims
	err    error
}

func (f *fakeVerifier) VerifyAccessToken(token string) (*auth.Claims, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.claims, nil
}

func protectedRouter(v middlewares.TokenVerifier) (*gin.Engine, *string, *string) {
	var gotUserID, gotRole string

	r := gin.New()
	r.GET("/protected", middlewares.NewAuthMiddleware(v).RequireAuth(), func(c *gin.Context) {
		gotUserID, _ = middlewares.UserIDFromContext(c)
		gotRole, _ = middlewares.RoleFromContext(c)
		c.Status(http.StatusOK)
	})

	return r, &gotUserID, &gotRole
}

func TestRequireAuth(t *testing.T) {
	okClaims := &auth.Claims{UserID: "user-123", Email: "ada@example.com", Role: "user"}

	tests := []struct {
		name           string
		header         string
		verifier       *fakeVerifier
		wantStatusCode int
		wantUserID     string
	}{
		{
			name:           "valid_token",
			header:         "Bearer good-token",
			verifier:       &fakeVerifier{claims: okClaims},
			wantStatusCode: http.StatusOK,
			wantUserID:     "user-123",
		},
		{
			name:           "missing_header",
			header:         "",
			verifier:       &fakeVerifier{claims: okClaims},
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "not_bearer",
			header:         "Basic dXNlcjpwdw==",
			verifier:       &fakeVerifier{claims: okClaims},
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "empty_bearer",
			header:         "Bearer ",
			verifier:       &fakeVerifier{claims: okClaims},
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "rejected_token",
			header:         "Bearer bad-token",
			verifier:       &fakeVerifier{err: errors.New("token is expired")},
			wantStatusCode: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, gotUserID, gotRole := protectedRouter(tt.verifier)

			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}

			if tt.wantUserID != "" {
				if *gotUserID != tt.wantUserID {
					t.Errorf("user id in context = %q, want %q", *gotUserID, tt.wantUserID)
				}
				if *gotRole != "user" {
					t.Errorf("role in context = %q, want %q", *gotRole, "user")
				}
			}
		})
	}
}

func TestRequireAuth_RealTokens(t *testing.T) {
	mgr := auth.NewManager("test-secret-0123456789", time.Hour)

	token, err := mgr.GenerateAccessToken("user-123", "ada@example.com", "user")

	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	r, gotUserID, _ := protectedRouter(mgr)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
	}

	if *gotUserID != "user-123" {
		t.Errorf("user id in context = %q, want %q", *gotUserID, "user-123")
	}
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name           string
		role           string
		wantStatusCode int
	}{
		{"admin_allowed", "admin", http.StatusOK},
		{"user_forbidden", "user", http.StatusForbidden},
		{"missing_role_unauthorized", "", http.StatusUnauthorized},
	}

	mw := middlewares.NewAuthMiddleware(&fakeVerifier{})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/admin", func(c *gin.Context) {
				if tt.role != "" {
					c.Set(middlewares.CtxRole, tt.role)
				}
				c.Next()
			}, mw.RequireRole("admin"), func(c *gin.Context) {
				c.Status(http.StatusOK)
			})

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin", nil))

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d", w.Code, tt.wantStatusCode)
			}
		})
	}
}
