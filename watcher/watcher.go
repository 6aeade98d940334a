// Package watcher auto-uploads audio files dropped into a watched
// directory. Files are picked up only once their size has settled, so a
// copy still in progress is never uploaded half-written.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"streamfm/logger"
	"streamfm/model"
	"streamfm/service"
)

// Uploader pushes a validated file to the catalog.
type Uploader interface {
	UploadSong(ctx context.Context, song service.SongUpload) (model.Track, error)
}

const (
	defaultSettle = time.Second
	defaultPoll   = 500 * time.Millisecond
)

type pendingFile struct {
	lastEvent time.Time
	lastSize  int64
}

// Watcher observes one drop directory.
type Watcher struct {
	dir     string
	uploads Uploader
	settle  time.Duration
	poll    time.Duration
}

// New creates a watcher over dir.
func New(dir string, uploads Uploader) *Watcher {
	return &Watcher{dir: dir, uploads: uploads, settle: defaultSettle, poll: defaultPoll}
}

// Run watches the directory until ctx is canceled. Files already in the
// directory at startup are queued as well.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fsw.Close()

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create watch directory: %w", err)
	}
	if err := fsw.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}
	logger.Info("watching drop directory", logger.String("dir", w.dir))

	pending := make(map[string]*pendingFile)
	processed := make(map[string]bool)

	entries, err := os.ReadDir(w.dir)
	if err == nil {
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			path := filepath.Join(w.dir, entry.Name())
			if isAudioFile(path) {
				pending[path] = &pendingFile{lastEvent: time.Now(), lastSize: -1}
			}
		}
	}

	ticker := time.NewTicker(w.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) != 0 && isAudioFile(event.Name) {
				if entry, exists := pending[event.Name]; exists {
					entry.lastEvent = time.Now()
				} else if !processed[event.Name] {
					pending[event.Name] = &pendingFile{lastEvent: time.Now(), lastSize: -1}
				}
			}
			if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				delete(pending, event.Name)
				delete(processed, event.Name)
			}

		case <-ticker.C:
			now := time.Now()
			for path, entry := range pending {
				if now.Sub(entry.lastEvent) < w.settle {
					continue
				}
				info, err := os.Stat(path)
				if err != nil {
					delete(pending, path)
					continue
				}
				if info.Size() != entry.lastSize {
					// Still growing, keep waiting.
					entry.lastSize = info.Size()
					continue
				}

				delete(pending, path)
				processed[path] = true
				w.uploadFile(ctx, path, info.Size())
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("file watcher error", logger.ErrorField(err))
		}
	}
}

func (w *Watcher) uploadFile(ctx context.Context, path string, size int64) {
	jobID := uuid.New().String()

	if err := service.ValidateAudioFile(path, size); err != nil {
		logger.Warn("skipping file",
			logger.String("jobId", jobID),
			logger.String("file", filepath.Base(path)),
			logger.ErrorField(err))
		return
	}

	title, artist := splitArtistTitle(path)
	logger.Info("auto-uploading file",
		logger.String("jobId", jobID),
		logger.String("file", filepath.Base(path)),
		logger.String("title", title),
		logger.String("artist", artist))

	track, err := w.uploads.UploadSong(ctx, service.SongUpload{
		Title:    title,
		Artist:   artist,
		FilePath: path,
	})
	if err != nil {
		logger.Error("auto-upload failed",
			logger.String("jobId", jobID),
			logger.String("file", filepath.Base(path)),
			logger.ErrorField(err))
		return
	}
	logger.Info("auto-upload complete",
		logger.String("jobId", jobID),
		logger.Int64("songId", track.ID))
}

func isAudioFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3", ".wav", ".ogg", ".m4a", ".aac":
		return true
	}
	return false
}

// splitArtistTitle derives metadata from an "Artist - Title.ext" file
// name, falling back to the bare name as title.
func splitArtistTitle(path string) (title, artist string) {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if before, after, found := strings.Cut(base, " - "); found {
		artist = strings.TrimSpace(before)
		title = strings.TrimSpace(after)
		if title != "" && artist != "" {
			return title, artist
		}
	}
	return base, model.DefaultArtist
}
