package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"streamfm/client"
	"streamfm/core/stream"
	"streamfm/logger"
	"streamfm/model"
)

// maxUploadSize caps audio uploads at 50MB, matching the backend limit.
const maxUploadSize = 50 * 1024 * 1024

// Upload status values published with progress.
const (
	StatusUploading  = "uploading"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusError      = "error"
)

// Validation errors, surfaced inline by the upload view.
var (
	ErrUnsupportedFormat = errors.New("unsupported audio format, use MP3, WAV, OGG, M4A or AAC")
	ErrFileTooLarge      = errors.New("file too large, maximum is 50MB")
)

var allowedExtensions = map[string]bool{
	".mp3": true,
	".wav": true,
	".ogg": true,
	".m4a": true,
	".aac": true,
}

// UploadProgress is one step of an upload, published to subscribers.
type UploadProgress struct {
	Percentage int
	Status     string
	Message    string
}

// SongUpload describes a new song to push to the catalog.
type SongUpload struct {
	Title          string
	Artist         string
	Album          string
	Duration       float64
	FilePath       string
	CoverURL       string
	ArtistNickname string
	Nationality    string
}

// Upload wraps the multipart upload endpoints and publishes progress.
type Upload struct {
	api        *client.Client
	progressS  *stream.Subject[*UploadProgress]
	uploadingS *stream.Subject[bool]
}

// NewUpload creates the upload service.
func NewUpload(api *client.Client) *Upload {
	return &Upload{
		api:        api,
		progressS:  stream.NewWithValue[*UploadProgress](nil),
		uploadingS: stream.NewWithValue(false),
	}
}

// Progress is the upload-progress stream; nil means idle.
func (u *Upload) Progress() *stream.Subject[*UploadProgress] { return u.progressS }

// Uploading is the upload-in-flight flag stream.
func (u *Upload) Uploading() *stream.Subject[bool] { return u.uploadingS }

// ValidateAudioFile rejects unsupported extensions and oversized files.
func ValidateAudioFile(name string, size int64) error {
	if !allowedExtensions[strings.ToLower(filepath.Ext(name))] {
		return ErrUnsupportedFormat
	}
	if size > maxUploadSize {
		return ErrFileTooLarge
	}
	return nil
}

// UploadSong validates and pushes a new song, reporting progress on the
// progress stream throughout.
func (u *Upload) UploadSong(ctx context.Context, song SongUpload) (model.Track, error) {
	info, err := os.Stat(song.FilePath)
	if err != nil {
		return model.Track{}, fmt.Errorf("failed to stat upload file: %w", err)
	}
	if err := ValidateAudioFile(song.FilePath, info.Size()); err != nil {
		u.failProgress(err.Error())
		return model.Track{}, err
	}

	file, err := os.Open(song.FilePath)
	if err != nil {
		return model.Track{}, fmt.Errorf("failed to open upload file: %w", err)
	}
	defer file.Close()

	fields := map[string]string{
		"title":       song.Title,
		"artist":      song.Artist,
		"artist_name": song.Artist,
	}
	if song.Album != "" {
		fields["album"] = song.Album
	}
	if song.Duration > 0 {
		fields["duration"] = strconv.FormatFloat(song.Duration, 'f', -1, 64)
	}
	if song.CoverURL != "" {
		fields["cover_url"] = song.CoverURL
	}
	if song.ArtistNickname != "" {
		fields["artist_nickname"] = song.ArtistNickname
	}
	if song.Nationality != "" {
		fields["nationality"] = song.Nationality
	}

	logger.Info("uploading song",
		logger.String("title", song.Title),
		logger.String("artist", song.Artist),
		logger.Int64("size", info.Size()))

	u.uploadingS.Publish(true)
	u.progressS.Publish(&UploadProgress{Status: StatusUploading, Message: "Starting upload"})

	resp, err := u.api.PostMultipart(ctx, "/api/music/upload", fields,
		"file", filepath.Base(song.FilePath), file,
		func(pct int) {
			u.progressS.Publish(&UploadProgress{
				Percentage: pct,
				Status:     StatusUploading,
				Message:    fmt.Sprintf("Uploading file... %d%%", pct),
			})
		})

	u.uploadingS.Publish(false)
	if err != nil {
		u.failProgress(err.Error())
		return model.Track{}, fmt.Errorf("upload failed: %w", err)
	}

	u.progressS.Publish(&UploadProgress{
		Percentage: 100,
		Status:     StatusCompleted,
		Message:    "Song uploaded successfully",
	})

	var raw map[string]any
	if err := json.Unmarshal(resp.Data, &raw); err != nil {
		// The upload succeeded even if the echo payload is odd.
		logger.Warn("uploaded song payload in unexpected shape", logger.ErrorField(err))
		return model.Track{Title: song.Title, Artist: song.Artist}, nil
	}
	if nested, ok := raw["song"].(map[string]any); ok {
		raw = nested
	}
	return model.NormalizeTrack(raw), nil
}

// UpdateSong edits an existing song's metadata.
func (u *Upload) UpdateSong(ctx context.Context, songID int64, fields map[string]string) error {
	body := make(map[string]any, len(fields))
	for key, value := range fields {
		body[key] = value
	}
	if _, err := u.api.Put(ctx, fmt.Sprintf("/api/music/songs/%d", songID), body); err != nil {
		return fmt.Errorf("failed to update song %d: %w", songID, err)
	}
	return nil
}

// DeleteSong removes a song from the catalog.
func (u *Upload) DeleteSong(ctx context.Context, songID int64) error {
	if _, err := u.api.Delete(ctx, fmt.Sprintf("/api/music/songs/%d", songID)); err != nil {
		return fmt.Errorf("failed to delete song %d: %w", songID, err)
	}
	return nil
}

// ClearState resets the progress streams to idle.
func (u *Upload) ClearState() {
	u.progressS.Publish(nil)
	u.uploadingS.Publish(false)
}

func (u *Upload) failProgress(message string) {
	u.progressS.Publish(&UploadProgress{Status: StatusError, Message: message})
}
