package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

func TestInitSessionStore_EmptyKey(t *testing.T) {
	if err := InitSessionStore("", "", false, zap.NewNop()); err == nil {
		t.Fatal("expected error for empty session key")
	}
}

func TestRequireSignedIn_NoUser(t *testing.T) {
	called := false
	h := RequireSignedIn(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/account", nil))

	if called {
		t.Error("handler ran without a signed-in user")
	}
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRequireSignedIn_WithUser(t *testing.T) {
	called := false
	h := RequireSignedIn(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := WithTestUser(httptest.NewRequest(http.MethodGet, "/account", nil), &SessionUser{
		ID: "abc", Name: "Ahmad", Role: "current-jamaah",
	})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if !called {
		t.Error("handler did not run for a signed-in user")
	}
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name     string
		user     *SessionUser
		allowed  []string
		wantCode int
	}{
		{"not signed in", nil, []string{"admin"}, http.StatusUnauthorized},
		{"wrong role", &SessionUser{ID: "x", Role: "current-jamaah"}, []string{"admin"}, http.StatusForbidden},
		{"allowed role", &SessionUser{ID: "x", Role: "admin"}, []string{"admin"}, http.StatusOK},
		{"case-insensitive", &SessionUser{ID: "x", Role: "Admin"}, []string{"admin"}, http.StatusOK},
		{"one of several", &SessionUser{ID: "x", Role: "supervisor"}, []string{"admin", "supervisor", "direktur"}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := RequireRole(tt.allowed...)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tt.user != nil {
				req = WithTestUser(req, tt.user)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
		})
	}
}
