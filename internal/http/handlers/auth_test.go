package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/taskhub/taskhub/internal/auth"
	"github.com/taskhub/taskhub/internal/domain/user"
	"github.com/taskhub/taskhub/internal/http/handlers"
	"github.com/taskhub/taskhub/internal/repo/postgres"
	"github.com/taskhub/taskhub/internal/security"
)

type fakeUserStore struct {
	getByEmailFn func(ctx context.Context, email string) (user.User, error)
	createFn     func(ctx context.Context, email, passwordHash, name, role string) (user.User, error)
}

func (f *fakeUserStore) GetByEmail(ctx context.Context, email string) (user.User, error) {
	if f.getByEmailFn != nil {
		return f.getByEmailFn(ctx, email)
	}
	return user.User{}, user.ErrNotFound
}

func (f *fakeUserStore) Create(ctx context.Context, email, passwordHash, name, role string) (user.User, error) {
	if f.createFn != nil {
		return f.createFn(ctx, email, passwordHash, name, role)
	}
	return user.User{
		ID:           newUUID(),
		Email:        email,
		PasswordHash: passwordHash,
		Name:         name,
		Role:         role,
	}, nil
}

func newTestJWT(t *testing.T) *auth.Manager {
	t.Helper()
	return auth.NewManager("test-secret-0123456789", 24*time.Hour)
}

func setupAuthRouter(path string, h gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.POST(path, h)
	return r
}

func TestRegisterHandler(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		storeSetup     func(*fakeUserStore)
		wantStatusCode int
		wantErrCode    string
	}{
		{
			name:           "success",
			body:           `{"name":"Ada","email":"ada@example.com","password":"correct horse"}`,
			wantStatusCode: http.StatusCreated,
		},
		{
			name: "duplicate_email",
			body: `{"name":"Ada","email":"ada@example.com","password":"correct horse"}`,
			storeSetup: func(f *fakeUserStore) {
				f.createFn = func(ctx context.Context, email, passwordHash, name, role string) (user.User, error) {
					return user.User{}, postgres.ErrEmailAlreadyUsed
				}
			},
			wantStatusCode: http.StatusBadRequest,
			wantErrCode:    "email_taken",
		},
		{
			name:           "missing_name",
			body:           `{"email":"ada@example.com","password":"correct horse"}`,
			wantStatusCode: http.StatusBadRequest,
			wantErrCode:    "invalid_request",
		},
		{
			name:           "short_password",
			body:           `{"name":"Ada","email":"ada@example.com","password":"pw"}`,
			wantStatusCode: http.StatusBadRequest,
			wantErrCode:    "invalid_request",
		},
		{
			name:           "malformed_email",
			body:           `{"name":"Ada","email":"not-an-email","password":"correct horse"}`,
			wantStatusCode: http.StatusBadRequest,
			wantErrCode:    "invalid_request",
		},
		{
			name:           "malformed_json",
			body:           `{"name":`,
			wantStatusCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeUserStore{}

			if tt.storeSetup != nil {
				tt.storeSetup(store)
			}

			h := handlers.NewAuthHandler(store, store, newTestJWT(t))
			r := setupAuthRouter("/auth/register", h.Register)

			req := httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}

			if tt.wantStatusCode == http.StatusCreated {
				var resp struct {
					Token string `json:"token"`
					User  struct {
						Email        string `json:"email"`
						Role         string `json:"role"`
						PasswordHash string `json:"passwordHash"`
					} `json:"user"`
				}
				if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
					t.Fatalf("failed to unmarshal response: %v", err)
				}
				if resp.Token == "" {
					t.Error("expected a token in the response")
				}
				if resp.User.Role != "user" {
					t.Errorf("role = %q, want %q", resp.User.Role, "user")
				}
				if resp.User.PasswordHash != "" {
					t.Error("password hash must never be serialized")
				}
			}

			if tt.wantErrCode != "" {
				var resp struct {
					Error struct {
						Code string `json:"code"`
					} `json:"error"`
				}
				if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
					t.Fatalf("failed to unmarshal error response: %v", err)
				}
				if resp.Error.Code != tt.wantErrCode {
					t.Errorf("error code = %q, want %q", resp.Error.Code, tt.wantErrCode)
				}
			}
		})
	}
}

func TestRegisterHashesPassword(t *testing.T) {
	var storedHash string

	store := &fakeUserStore{
		createFn: func(ctx context.Context, email, passwordHash, name, role string) (user.User, error) {
			storedHash = passwordHash
			return user.User{ID: newUUID(), Email: email, Name: name, Role: role}, nil
		},
	}

	h := handlers.NewAuthHandler(store, store, newTestJWT(t))
	r := setupAuthRouter("/auth/register", h.Register)

	body := `{"name":"Ada","email":"ada@example.com","password":"correct horse"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
	}

	if storedHash == "" || storedHash == "correct horse" {
		t.Fatal("password must be stored as a hash")
	}

	if err := security.CheckPassword(storedHash, "correct horse"); err != nil {
		t.Fatalf("stored hash does not verify: %v", err)
	}
}

func TestLoginHandler(t *testing.T) {
	password := "correct horse"
	hash, err := security.HashPassword(password)

	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	known := user.User{
		ID:           newUUID(),
		Email:        "ada@example.com",
		PasswordHash: hash,
		Name:         "Ada",
		Role:         "user",
	}

	tests := []struct {
		name           string
		body           string
		storeSetup     func(*fakeUserStore)
		wantStatusCode int
		wantErrCode    string
	}{
		{
			name: "success",
			body: `{"email":"ada@example.com","password":"correct horse"}`,
			storeSetup: func(f *fakeUserStore) {
				f.getByEmailFn = func(ctx context.Context, email string) (user.User, error) {
					return known, nil
				}
			},
			wantStatusCode: http.StatusOK,
		},
		{
			// unknown email and bad password must be indistinguishable
			name:           "unknown_email",
			body:           `{"email":"nobody@example.com","password":"correct horse"}`,
			wantStatusCode: http.StatusBadRequest,
			wantErrCode:    "invalid_credentials",
		},
		{
			name: "wrong_password",
			body: `{"email":"ada@example.com","password":"incorrect horse"}`,
			storeSetup: func(f *fakeUserStore) {
				f.getByEmailFn = func(ctx context.Context, email string) (user.User, error) {
					return known, nil
				}
			},
			wantStatusCode: http.StatusBadRequest,
			wantErrCode:    "invalid_credentials",
		},
		{
			name:           "missing_password",
			body:           `{"email":"ada@example.com"}`,
			wantStatusCode: http.StatusBadRequest,
			wantErrCode:    "invalid_request",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeUserStore{}

			if tt.storeSetup != nil {
				tt.storeSetup(store)
			}

			h := handlers.NewAuthHandler(store, store, newTestJWT(t))
			r := setupAuthRouter("/auth/login", h.Login)

			req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}

			if tt.wantErrCode != "" {
				var resp struct {
					Error struct {
						Code string `json:"code"`
					} `json:"error"`
				}
				if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
					t.Fatalf("failed to unmarshal error response: %v", err)
				}
				if resp.Error.Code != tt.wantErrCode {
					t.Errorf("error code = %q, want %q", resp.Error.Code, tt.wantErrCode)
				}
			}
		})
	}
}

func TestLoginReturnsUsableToken(t *testing.T) {
	password := "correct horse"
	hash, err := security.HashPassword(password)

	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	known := user.User{ID: newUUID(), Email: "ada@example.com", PasswordHash: hash, Role: "user"}

	store := &fakeUserStore{
		getByEmailFn: func(ctx context.Context, email string) (user.User, error) {
			return known, nil
		},
	}

	mgr := newTestJWT(t)
	h := handlers.NewAuthHandler(store, store, mgr)
	r := setupAuthRouter("/auth/login", h.Login)

	body := `{"email":"ada@example.com","password":"correct horse"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
	}

	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}

	claims, err := mgr.VerifyAccessToken(resp.Token)

	if err != nil {
		t.Fatalf("token does not verify: %v", err)
	}

	if claims.UserID != known.ID {
		t.Errorf("subject = %q, want %q", claims.UserID, known.ID)
	}
}
