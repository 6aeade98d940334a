package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"streamfm/client"
	"streamfm/core/stream"
	"streamfm/logger"
	"streamfm/session"
)

// Favorites caches the signed-in user's liked track IDs and keeps a
// broadcast stream of the set. The cache mutates only after the server
// confirmed the mutation.
type Favorites struct {
	api   *client.Client
	store *session.Store

	mu  sync.Mutex
	ids map[int64]bool

	idsS *stream.Subject[[]int64]
}

// NewFavorites creates the favorites service.
func NewFavorites(api *client.Client, store *session.Store) *Favorites {
	return &Favorites{
		api:   api,
		store: store,
		ids:   make(map[int64]bool),
		idsS:  stream.NewWithValue([]int64(nil)),
	}
}

// Stream is the favorites-set stream; values are sorted ID slices.
func (f *Favorites) Stream() *stream.Subject[[]int64] { return f.idsS }

// Load rehydrates the cache from the backend.
func (f *Favorites) Load(ctx context.Context) error {
	user := f.store.CurrentUser()
	if user == nil {
		return ErrNotAuthenticated
	}

	resp, err := f.api.Get(ctx, fmt.Sprintf("/api/favorites/user/%d", user.ID))
	if err != nil {
		// Degrade to an empty set; the views show unmarked tracks.
		logger.Error("failed to load favorites", logger.ErrorField(err))
		f.replace(nil)
		return fmt.Errorf("failed to load favorites: %w", err)
	}

	var entries []struct {
		SongID int64 `json:"song_id"`
	}
	if err := json.Unmarshal(resp.Data, &entries); err != nil {
		logger.Warn("favorites payload in unexpected shape", logger.ErrorField(err))
		f.replace(nil)
		return nil
	}

	ids := make([]int64, 0, len(entries))
	for _, entry := range entries {
		ids = append(ids, entry.SongID)
	}
	f.replace(ids)
	return nil
}

// IsFavorite answers from the local cache.
func (f *Favorites) IsFavorite(songID int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ids[songID]
}

// Add marks a track as favorite on the server, then in the cache.
func (f *Favorites) Add(ctx context.Context, songID int64) error {
	user := f.store.CurrentUser()
	if user == nil {
		return ErrNotAuthenticated
	}

	_, err := f.api.Post(ctx, fmt.Sprintf("/api/favorites/user/%d/song/%d", user.ID, songID), nil)
	if err != nil {
		return fmt.Errorf("failed to add favorite: %w", err)
	}

	f.mu.Lock()
	f.ids[songID] = true
	f.mu.Unlock()
	f.publish()
	return nil
}

// Remove unmarks a track on the server, then in the cache.
func (f *Favorites) Remove(ctx context.Context, songID int64) error {
	user := f.store.CurrentUser()
	if user == nil {
		return ErrNotAuthenticated
	}

	_, err := f.api.Delete(ctx, fmt.Sprintf("/api/favorites/user/%d/song/%d", user.ID, songID))
	if err != nil {
		return fmt.Errorf("failed to remove favorite: %w", err)
	}

	f.mu.Lock()
	delete(f.ids, songID)
	f.mu.Unlock()
	f.publish()
	return nil
}

// Toggle flips a track's favorite status, returning the new one:
// true when the track was added, false when removed.
func (f *Favorites) Toggle(ctx context.Context, songID int64) (bool, error) {
	if f.IsFavorite(songID) {
		if err := f.Remove(ctx, songID); err != nil {
			return true, err
		}
		return false, nil
	}
	if err := f.Add(ctx, songID); err != nil {
		return false, err
	}
	return true, nil
}

// CheckStatus asks the server whether a track is a favorite, bypassing
// the cache.
func (f *Favorites) CheckStatus(ctx context.Context, songID int64) (bool, error) {
	user := f.store.CurrentUser()
	if user == nil {
		return false, ErrNotAuthenticated
	}

	resp, err := f.api.Get(ctx, fmt.Sprintf("/api/favorites/user/%d/song/%d/check", user.ID, songID))
	if err != nil {
		return false, fmt.Errorf("failed to check favorite status: %w", err)
	}

	var data struct {
		IsFavorite bool `json:"is_favorite"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return false, fmt.Errorf("failed to decode favorite status: %w", err)
	}
	return data.IsFavorite, nil
}

func (f *Favorites) replace(ids []int64) {
	f.mu.Lock()
	f.ids = make(map[int64]bool, len(ids))
	for _, id := range ids {
		f.ids[id] = true
	}
	f.mu.Unlock()
	f.publish()
}

func (f *Favorites) publish() {
	f.mu.Lock()
	ids := make([]int64, 0, len(f.ids))
	for id := range f.ids {
		ids = append(ids, id)
	}
	f.mu.Unlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	f.idsS.Publish(ids)
}
