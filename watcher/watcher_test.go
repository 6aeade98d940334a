package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"streamfm/model"
	"streamfm/service"
)

type fakeUploader struct {
	mu    sync.Mutex
	songs []service.SongUpload
}

func (f *fakeUploader) UploadSong(_ context.Context, song service.SongUpload) (model.Track, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.songs = append(f.songs, song)
	return model.Track{ID: int64(len(f.songs))}, nil
}

func (f *fakeUploader) uploaded() []service.SongUpload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]service.SongUpload(nil), f.songs...)
}

func newTestWatcher(dir string, uploads Uploader) *Watcher {
	w := New(dir, uploads)
	w.settle = 50 * time.Millisecond
	w.poll = 10 * time.Millisecond
	return w
}

func awaitUploads(t *testing.T, uploads *fakeUploader, want int) []service.SongUpload {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if songs := uploads.uploaded(); len(songs) >= want {
			return songs
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d uploads, saw %d", want, len(uploads.uploaded()))
	return nil
}

func TestUploadsDroppedAudioFile(t *testing.T) {
	dir := t.TempDir()
	uploads := &fakeUploader{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go newTestWatcher(dir, uploads).Run(ctx)

	time.Sleep(50 * time.Millisecond)
	path := filepath.Join(dir, "The Band - First Light.mp3")
	if err := os.WriteFile(path, []byte("audio"), 0o644); err != nil {
		t.Fatalf("failed to drop file: %v", err)
	}

	songs := awaitUploads(t, uploads, 1)
	if songs[0].Title != "First Light" || songs[0].Artist != "The Band" {
		t.Errorf("unexpected metadata: %+v", songs[0])
	}
	if songs[0].FilePath != path {
		t.Errorf("unexpected path: %s", songs[0].FilePath)
	}
}

func TestIgnoresNonAudioFiles(t *testing.T) {
	dir := t.TempDir()
	uploads := &fakeUploader{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go newTestWatcher(dir, uploads).Run(ctx)

	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("text"), 0o644); err != nil {
		t.Fatalf("failed to drop file: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "take.wav"), []byte("audio"), 0o644); err != nil {
		t.Fatalf("failed to drop file: %v", err)
	}

	songs := awaitUploads(t, uploads, 1)
	time.Sleep(200 * time.Millisecond)
	songs = uploads.uploaded()
	if len(songs) != 1 {
		t.Fatalf("expected one upload, got %d", len(songs))
	}
	if songs[0].Title != "take" {
		t.Errorf("expected bare-name title, got %q", songs[0].Title)
	}
	if songs[0].Artist != model.DefaultArtist {
		t.Errorf("expected default artist, got %q", songs[0].Artist)
	}
}

func TestWaitsForFileToSettle(t *testing.T) {
	dir := t.TempDir()
	uploads := &fakeUploader{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go newTestWatcher(dir, uploads).Run(ctx)

	time.Sleep(50 * time.Millisecond)
	path := filepath.Join(dir, "growing.mp3")
	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create file: %v", err)
	}
	for i := 0; i < 5; i++ {
		if _, err := file.Write([]byte("chunk")); err != nil {
			t.Fatalf("failed to write chunk: %v", err)
		}
		if len(uploads.uploaded()) != 0 {
			t.Fatal("file uploaded while still being written")
		}
		time.Sleep(30 * time.Millisecond)
	}
	file.Close()

	songs := awaitUploads(t, uploads, 1)
	if songs[0].Title != "growing" {
		t.Errorf("unexpected title: %q", songs[0].Title)
	}
}

func TestPicksUpPreexistingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "already-here.m4a")
	if err := os.WriteFile(path, []byte("audio"), 0o644); err != nil {
		t.Fatalf("failed to seed file: %v", err)
	}

	uploads := &fakeUploader{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go newTestWatcher(dir, uploads).Run(ctx)

	songs := awaitUploads(t, uploads, 1)
	if songs[0].FilePath != path {
		t.Errorf("unexpected path: %s", songs[0].FilePath)
	}
}

func TestUploadsEachFileOnce(t *testing.T) {
	dir := t.TempDir()
	uploads := &fakeUploader{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go newTestWatcher(dir, uploads).Run(ctx)

	time.Sleep(50 * time.Millisecond)
	path := filepath.Join(dir, "single.mp3")
	if err := os.WriteFile(path, []byte("audio"), 0o644); err != nil {
		t.Fatalf("failed to drop file: %v", err)
	}
	awaitUploads(t, uploads, 1)

	// Touching the already-processed file must not re-upload it.
	if err := os.Chtimes(path, time.Now(), time.Now()); err != nil {
		t.Fatalf("failed to touch file: %v", err)
	}
	time.Sleep(200 * time.Millisecond)
	if songs := uploads.uploaded(); len(songs) != 1 {
		t.Errorf("expected exactly one upload, got %d", len(songs))
	}
}
