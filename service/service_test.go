package service

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"streamfm/client"
	"streamfm/model"
	"streamfm/session"
)

func newTestStore(t *testing.T) *session.Store {
	t.Helper()
	store, err := session.Open(filepath.Join(t.TempDir(), "session.db"))
	if err != nil {
		t.Fatalf("failed to open session store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func newTestClient(t *testing.T, store *session.Store, handler http.HandlerFunc) *client.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	var tokens client.TokenSource
	if store != nil {
		tokens = store
	}
	return client.New(server.URL, nil, tokens, 0)
}

func signIn(t *testing.T, store *session.Store, id int64) *model.User {
	t.Helper()
	user := &model.User{ID: id, Username: "listener", Email: "listener@example.com"}
	if err := store.SetCurrentUser(user); err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	return user
}
