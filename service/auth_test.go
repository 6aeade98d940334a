package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
)

func TestLoginSuccessPersistsIdentity(t *testing.T) {
	store := newTestStore(t)
	api := newTestClient(t, store, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/users/login" || r.Method != http.MethodPost {
			t.Errorf("unexpected call: %s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode login body: %v", err)
		}
		if body["email"] != "me@example.com" || body["password"] != "hunter2" {
			t.Errorf("unexpected credentials: %v", body)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data": map[string]any{
				"access_token": "token-abc",
				"token_type":   "bearer",
				"user": map[string]any{
					"id":       int64(7),
					"username": "me",
					"email":    "me@example.com",
				},
			},
		})
	})

	auth := NewAuth(api, store)
	user, err := auth.Login(context.Background(), "me@example.com", "hunter2")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if user.ID != 7 || user.Username != "me" {
		t.Errorf("unexpected user: %+v", user)
	}
	if got := store.Token(); got != "token-abc" {
		t.Errorf("token not persisted, got %q", got)
	}
	if current := store.CurrentUser(); current == nil || current.ID != 7 {
		t.Errorf("user snapshot not persisted, got %+v", current)
	}
	if !auth.IsAuthenticated() {
		t.Error("expected authenticated after login")
	}
}

func TestLoginRejectedMapsToInvalidCredentials(t *testing.T) {
	store := newTestStore(t)
	api := newTestClient(t, store, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"message": "Invalid credentials",
		})
	})

	auth := NewAuth(api, store)
	_, err := auth.Login(context.Background(), "me@example.com", "wrong")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if store.CurrentUser() != nil {
		t.Error("failed login must not persist a user")
	}
	if auth.IsAuthenticated() {
		t.Error("must stay unauthenticated after rejected login")
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	store := newTestStore(t)
	api := newTestClient(t, store, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"message": "Email already exists",
		})
	})

	auth := NewAuth(api, store)
	_, err := auth.Register(context.Background(), "taken@example.com", "hunter2")
	if !errors.Is(err, ErrEmailExists) {
		t.Fatalf("expected ErrEmailExists, got %v", err)
	}
}

func TestRegisterSignsNewUserIn(t *testing.T) {
	store := newTestStore(t)
	api := newTestClient(t, store, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data": map[string]any{
				"id":       int64(12),
				"username": "fresh",
				"email":    "fresh@example.com",
			},
		})
	})

	auth := NewAuth(api, store)
	user, err := auth.Register(context.Background(), "fresh@example.com", "hunter2")
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if user.ID != 12 {
		t.Errorf("unexpected user: %+v", user)
	}
	if current := store.CurrentUser(); current == nil || current.ID != 12 {
		t.Errorf("new user not signed in, got %+v", current)
	}
}

func TestVerifyEmailUnknownAddress(t *testing.T) {
	store := newTestStore(t)
	api := newTestClient(t, store, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/users/verify-email" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "Email not found"})
	})

	auth := NewAuth(api, store)
	err := auth.VerifyEmail(context.Background(), "nobody@example.com")
	if !errors.Is(err, ErrEmailNotFound) {
		t.Fatalf("expected ErrEmailNotFound, got %v", err)
	}
}

func TestResetPasswordSendsNewPassword(t *testing.T) {
	store := newTestStore(t)
	api := newTestClient(t, store, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/users/reset-password" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode reset body: %v", err)
		}
		if body["newPassword"] != "s3cret" {
			t.Errorf("unexpected body: %v", body)
		}
		json.NewEncoder(w).Encode(map[string]any{"success": true})
	})

	auth := NewAuth(api, store)
	if err := auth.ResetPassword(context.Background(), "me@example.com", "s3cret"); err != nil {
		t.Fatalf("reset failed: %v", err)
	}
}

func TestLogoutClearsIdentity(t *testing.T) {
	store := newTestStore(t)
	signIn(t, store, 7)
	auth := NewAuth(nil, store)

	auth.Logout()
	if auth.CurrentUser() != nil {
		t.Error("expected no user after logout")
	}
	if auth.IsAuthenticated() {
		t.Error("expected unauthenticated after logout")
	}
}
