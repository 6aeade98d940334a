package model

import (
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// Track represents a playable song in the catalog.
type Track struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Artist    string    `json:"artist"`
	Album     string    `json:"album"`
	CoverURL  string    `json:"coverUrl"`
	URL       string    `json:"url"` // Absolute HTTP(S) locator of the playable media
	Duration  float64   `json:"duration"` // Duration in seconds, 0 until reported by the backend
	CreatedAt time.Time `json:"createdAt"`
	Explicit  bool      `json:"explicit"`
}

// HasPlayableURL reports whether the track carries an absolute HTTP(S)
// media locator. Playback must not be attempted without one.
func (t *Track) HasPlayableURL() bool {
	if t.URL == "" {
		return false
	}
	u, err := url.Parse(t.URL)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Default values applied when the backend omits a field.
const (
	DefaultTitle  = "Unknown title"
	DefaultArtist = "Unknown artist"
	DefaultAlbum  = "Unknown album"
	DefaultCover  = "assets/img/default-cover.png"
)

// NormalizeTrack coalesces the loosely shaped song payloads the catalog
// service returns into a fully typed Track. Field precedence:
//
//	id:    id > _id > fabricated local id
//	title: title > name
//	cover: cover_url > image_url > cover
//	url:   file_path > url
//
// Fabricated ids are negative so they can never collide with a
// server-assigned one.
func NormalizeTrack(raw map[string]any) Track {
	id := pickInt(raw, "id", "_id")
	if id == 0 {
		id = -int64(uuid.New().ID())
	}

	createdAt := time.Now()
	if s := pickString(raw, "created_at"); s != "" {
		if ts, err := time.Parse(time.RFC3339, s); err == nil {
			createdAt = ts
		}
	}

	return Track{
		ID:        id,
		Title:     pickStringDefault(raw, DefaultTitle, "title", "name"),
		Artist:    pickStringDefault(raw, DefaultArtist, "artist"),
		Album:     pickStringDefault(raw, DefaultAlbum, "album"),
		CoverURL:  pickStringDefault(raw, DefaultCover, "cover_url", "image_url", "cover"),
		URL:       pickString(raw, "file_path", "url"),
		Duration:  pickFloat(raw, "duration"),
		CreatedAt: createdAt,
		Explicit:  pickBool(raw, "explicit"),
	}
}

// ExtractSongs pulls the song list out of a catalog response. The
// backend is inconsistent about the envelope: it may send {data: [...]},
// {songs: [...]} or a bare array.
func ExtractSongs(payload any) ([]map[string]any, error) {
	switch v := payload.(type) {
	case []any:
		return toObjectList(v)
	case map[string]any:
		for _, key := range []string{"data", "songs"} {
			if list, ok := v[key].([]any); ok {
				return toObjectList(list)
			}
		}
	}
	return nil, fmt.Errorf("unrecognized song list payload %T", payload)
}

func toObjectList(list []any) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(list))
	for i, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("song entry %d is %T, not an object", i, item)
		}
		out = append(out, obj)
	}
	return out, nil
}

func pickString(raw map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := raw[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func pickStringDefault(raw map[string]any, fallback string, keys ...string) string {
	if s := pickString(raw, keys...); s != "" {
		return s
	}
	return fallback
}

func pickInt(raw map[string]any, keys ...string) int64 {
	for _, key := range keys {
		switch v := raw[key].(type) {
		case float64:
			if v != 0 {
				return int64(v)
			}
		case int64:
			if v != 0 {
				return v
			}
		}
	}
	return 0
}

func pickFloat(raw map[string]any, keys ...string) float64 {
	for _, key := range keys {
		if f, ok := raw[key].(float64); ok {
			return f
		}
	}
	return 0
}

func pickBool(raw map[string]any, keys ...string) bool {
	for _, key := range keys {
		if b, ok := raw[key].(bool); ok {
			return b
		}
	}
	return false
}
