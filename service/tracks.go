package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"streamfm/client"
	"streamfm/core/stream"
	"streamfm/logger"
	"streamfm/model"
)

// minQueryLength is the shortest search term the catalog accepts.
const minQueryLength = 2

// SearchParams are the server-side search criteria; each term is used
// only when it still has at least minQueryLength characters after trimming.
type SearchParams struct {
	Query  string
	Title  string
	Artist string
}

// Tracks wraps the music catalog endpoints.
type Tracks struct {
	api      *client.Client
	refreshS *stream.Subject[bool]
}

// NewTracks creates the catalog service.
func NewTracks(api *client.Client) *Tracks {
	return &Tracks{
		api:      api,
		refreshS: stream.New[bool](),
	}
}

// Refresh notifies subscribed views that the catalog changed, typically
// after an upload, edit or delete.
func (t *Tracks) Refresh() {
	logger.Debug("broadcasting catalog refresh")
	t.refreshS.Publish(true)
}

// RefreshStream is the catalog-changed notification stream.
func (t *Tracks) RefreshStream() *stream.Subject[bool] { return t.refreshS }

// All fetches the full catalog, normalized into typed tracks.
func (t *Tracks) All(ctx context.Context) ([]model.Track, error) {
	resp, err := t.api.Get(ctx, "/api/music/songs")
	if err != nil {
		return nil, fmt.Errorf("failed to list songs: %w", err)
	}
	return decodeTracks(resp)
}

// ByID fetches a single track.
func (t *Tracks) ByID(ctx context.Context, id int64) (model.Track, error) {
	resp, err := t.api.Get(ctx, fmt.Sprintf("/api/music/songs/%d", id))
	if err != nil {
		return model.Track{}, fmt.Errorf("failed to fetch song %d: %w", id, err)
	}
	var raw map[string]any
	if err := json.Unmarshal(resp.Data, &raw); err != nil {
		return model.Track{}, fmt.Errorf("failed to decode song %d: %w", id, err)
	}
	return model.NormalizeTrack(raw), nil
}

// Search runs a server-side catalog search. With no usable criteria it
// returns an empty result without calling the backend.
func (t *Tracks) Search(ctx context.Context, params SearchParams) ([]model.Track, error) {
	values := url.Values{}
	for key, term := range map[string]string{
		"q":      params.Query,
		"title":  params.Title,
		"artist": params.Artist,
	} {
		term = strings.TrimSpace(term)
		if len(term) >= minQueryLength {
			values.Set(key, term)
		}
	}
	if len(values) == 0 {
		logger.Warn("search skipped, no usable criteria")
		return nil, nil
	}

	resp, err := t.api.Get(ctx, "/api/music/songs/search?"+values.Encode())
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	return decodeTracks(resp)
}

// ByArtist lists the catalog entries of one artist.
func (t *Tracks) ByArtist(ctx context.Context, artist string) ([]model.Track, error) {
	resp, err := t.api.Get(ctx, "/api/music/songs/by-artist/"+url.PathEscape(artist))
	if err != nil {
		return nil, fmt.Errorf("failed to list songs by artist: %w", err)
	}
	return decodeTracks(resp)
}

// CreateTrack is the payload for registering a catalog entry whose media
// already lives at a URL.
type CreateTrack struct {
	Title    string  `json:"title"`
	Artist   string  `json:"artist"`
	Album    string  `json:"album,omitempty"`
	URL      string  `json:"file_path"`
	Duration float64 `json:"duration,omitempty"`
	CoverURL string  `json:"cover_url,omitempty"`
}

// Create registers a create-by-URL catalog entry.
func (t *Tracks) Create(ctx context.Context, entry CreateTrack) (model.Track, error) {
	resp, err := t.api.Post(ctx, "/api/music/songs", entry)
	if err != nil {
		return model.Track{}, fmt.Errorf("failed to create song: %w", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(resp.Data, &raw); err != nil {
		return model.Track{}, fmt.Errorf("failed to decode created song: %w", err)
	}
	t.Refresh()
	return model.NormalizeTrack(raw), nil
}

// decodeTracks unwraps whichever list shape the backend chose and
// normalizes every entry.
func decodeTracks(resp *client.Response) ([]model.Track, error) {
	var payload any
	if err := json.Unmarshal(resp.Data, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode song list: %w", err)
	}
	songs, err := model.ExtractSongs(payload)
	if err != nil {
		logger.Warn("song list payload in unexpected shape", logger.ErrorField(err))
		return nil, nil
	}

	tracks := make([]model.Track, 0, len(songs))
	for _, raw := range songs {
		tracks = append(tracks, model.NormalizeTrack(raw))
	}
	return tracks, nil
}
