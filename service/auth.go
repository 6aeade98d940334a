// Package service implements the feature services sitting between the
// views and the backend: authentication, track catalog, favorites and
// uploads. Views never talk to the gateway client directly.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"streamfm/client"
	"streamfm/logger"
	"streamfm/model"
	"streamfm/session"
)

// Sentinel errors the views translate into user-facing wording.
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailExists        = errors.New("email already in use")
	ErrEmailNotFound      = errors.New("email not found")
	ErrNotAuthenticated   = errors.New("not authenticated")
)

// Auth wraps the user service endpoints and the session store.
type Auth struct {
	api   *client.Client
	store *session.Store
}

// NewAuth creates the auth service.
func NewAuth(api *client.Client, store *session.Store) *Auth {
	return &Auth{api: api, store: store}
}

// Login authenticates and persists the credential plus user snapshot.
// A 401 maps to ErrInvalidCredentials.
func (a *Auth) Login(ctx context.Context, email, password string) (*model.User, error) {
	resp, err := a.api.Post(ctx, "/api/users/login", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("login failed: %w", err)
	}

	var data model.LoginData
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to decode login response: %w", err)
	}
	if data.User == nil {
		return nil, fmt.Errorf("login response carried no user")
	}

	if data.AccessToken != "" {
		if err := a.store.SetToken(data.AccessToken); err != nil {
			logger.Warn("failed to persist access token", logger.ErrorField(err))
		}
	}
	if err := a.store.SetCurrentUser(data.User); err != nil {
		logger.Warn("failed to persist user snapshot", logger.ErrorField(err))
	}

	logger.Info("user logged in", logger.Int64("userId", data.User.ID))
	return data.User, nil
}

// Register creates an account and signs the new user in. A 400 with the
// backend's duplicate-email message maps to ErrEmailExists.
func (a *Auth) Register(ctx context.Context, email, password string) (*model.User, error) {
	resp, err := a.api.Post(ctx, "/api/users", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusBadRequest &&
			apiErr.Message == "Email already exists" {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("registration failed: %w", err)
	}

	var user model.User
	if err := json.Unmarshal(resp.Data, &user); err != nil {
		return nil, fmt.Errorf("failed to decode registration response: %w", err)
	}
	if err := a.store.SetCurrentUser(&user); err != nil {
		logger.Warn("failed to persist user snapshot", logger.ErrorField(err))
	}
	return &user, nil
}

// Logout clears the persisted identity.
func (a *Auth) Logout() {
	a.store.Logout()
}

// IsAuthenticated reports whether a signed-in user is present.
func (a *Auth) IsAuthenticated() bool {
	return a.store.IsAuthenticated()
}

// CurrentUser returns the signed-in user snapshot, nil when logged out.
func (a *Auth) CurrentUser() *model.User {
	return a.store.CurrentUser()
}

// VerifyEmail checks that an account exists for the password-reset flow.
// A 404 maps to ErrEmailNotFound.
func (a *Auth) VerifyEmail(ctx context.Context, email string) error {
	_, err := a.api.Post(ctx, "/api/users/verify-email", map[string]string{"email": email})
	if err != nil {
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			return ErrEmailNotFound
		}
		return fmt.Errorf("email verification failed: %w", err)
	}
	return nil
}

// ResetPassword sets a new password for a verified email.
func (a *Auth) ResetPassword(ctx context.Context, email, newPassword string) error {
	_, err := a.api.Post(ctx, "/api/users/reset-password", map[string]string{
		"email":       email,
		"newPassword": newPassword,
	})
	if err != nil {
		return fmt.Errorf("password reset failed: %w", err)
	}
	return nil
}
