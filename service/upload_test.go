package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestValidateAudioFile(t *testing.T) {
	cases := []struct {
		name string
		file string
		size int64
		want error
	}{
		{"mp3 accepted", "song.mp3", 1024, nil},
		{"wav accepted", "song.wav", 1024, nil},
		{"uppercase extension accepted", "SONG.MP3", 1024, nil},
		{"aac accepted", "song.aac", 1024, nil},
		{"flac rejected", "song.flac", 1024, ErrUnsupportedFormat},
		{"no extension rejected", "song", 1024, ErrUnsupportedFormat},
		{"at size cap accepted", "song.mp3", maxUploadSize, nil},
		{"over size cap rejected", "song.mp3", maxUploadSize + 1, ErrFileTooLarge},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ValidateAudioFile(tc.file, tc.size); !errors.Is(got, tc.want) {
				t.Errorf("ValidateAudioFile(%q, %d) = %v, want %v", tc.file, tc.size, got, tc.want)
			}
		})
	}
}

func TestUploadSongSendsMultipartAndReportsProgress(t *testing.T) {
	path := filepath.Join(t.TempDir(), "demo.mp3")
	if err := os.WriteFile(path, bytes.Repeat([]byte("a"), 4096), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	api := newTestClient(t, nil, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/music/upload" || r.Method != http.MethodPost {
			t.Errorf("unexpected call: %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("failed to parse multipart form: %v", err)
		}
		if got := r.FormValue("title"); got != "Demo" {
			t.Errorf("expected title field, got %q", got)
		}
		if got := r.FormValue("artist"); got != "Tester" {
			t.Errorf("expected artist field, got %q", got)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("missing file part: %v", err)
		}
		defer file.Close()
		if header.Filename != "demo.mp3" {
			t.Errorf("unexpected file name %q", header.Filename)
		}
		if content, _ := io.ReadAll(file); len(content) != 4096 {
			t.Errorf("expected 4096 file bytes, got %d", len(content))
		}
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data": map[string]any{
				"song": map[string]any{
					"id": 21, "title": "Demo", "artist": "Tester",
					"file_path": "http://cdn/demo.mp3",
				},
			},
		})
	})

	svc := NewUpload(api)
	progress, cancel := svc.Progress().Subscribe()
	defer cancel()

	track, err := svc.UploadSong(context.Background(), SongUpload{
		Title:    "Demo",
		Artist:   "Tester",
		FilePath: path,
	})
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	if track.ID != 21 || track.URL != "http://cdn/demo.mp3" {
		t.Errorf("unexpected track: %+v", track)
	}

	var sawUploading, sawCompleted bool
	deadline := time.After(2 * time.Second)
	for !sawCompleted {
		select {
		case step := <-progress:
			if step == nil {
				continue
			}
			switch step.Status {
			case StatusUploading:
				sawUploading = true
			case StatusCompleted:
				sawCompleted = true
				if step.Percentage != 100 {
					t.Errorf("completion must report 100%%, got %d", step.Percentage)
				}
			case StatusError:
				t.Fatalf("unexpected error step: %s", step.Message)
			}
		case <-deadline:
			t.Fatal("never saw the completed progress step")
		}
	}
	if !sawUploading {
		t.Error("expected at least one uploading progress step")
	}
	if uploading, _ := svc.Uploading().Value(); uploading {
		t.Error("uploading flag must be false after completion")
	}
}

func TestUploadSongRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("not audio"), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	svc := NewUpload(nil)
	_, err := svc.UploadSong(context.Background(), SongUpload{
		Title:    "Notes",
		Artist:   "Tester",
		FilePath: path,
	})
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
	if step, _ := svc.Progress().Value(); step == nil || step.Status != StatusError {
		t.Errorf("expected an error progress step, got %+v", step)
	}
}

func TestUploadSongPublishesErrorOnServerFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "demo.mp3")
	if err := os.WriteFile(path, []byte("audio"), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	api := newTestClient(t, nil, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "storage offline"})
	})

	svc := NewUpload(api)
	_, err := svc.UploadSong(context.Background(), SongUpload{
		Title:    "Demo",
		Artist:   "Tester",
		FilePath: path,
	})
	if err == nil {
		t.Fatal("expected the upload to fail")
	}
	if step, _ := svc.Progress().Value(); step == nil || step.Status != StatusError {
		t.Errorf("expected an error progress step, got %+v", step)
	}
	if uploading, _ := svc.Uploading().Value(); uploading {
		t.Error("uploading flag must reset after failure")
	}
}

func TestUpdateAndDeleteSong(t *testing.T) {
	var sawPut, sawDelete bool
	api := newTestClient(t, nil, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/api/music/songs/21":
			sawPut = true
			var body map[string]any
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode update body: %v", err)
			}
			if body["title"] != "Renamed" {
				t.Errorf("unexpected update body: %v", body)
			}
		case r.Method == http.MethodDelete && r.URL.Path == "/api/music/songs/21":
			sawDelete = true
		default:
			t.Errorf("unexpected call: %s %s", r.Method, r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{"success": true})
	})

	svc := NewUpload(api)
	if err := svc.UpdateSong(context.Background(), 21, map[string]string{"title": "Renamed"}); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if err := svc.DeleteSong(context.Background(), 21); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if !sawPut || !sawDelete {
		t.Error("expected both the update and the delete call")
	}
}

func TestClearStateResetsProgress(t *testing.T) {
	svc := NewUpload(nil)
	svc.progressS.Publish(&UploadProgress{Status: StatusCompleted, Percentage: 100})
	svc.ClearState()
	if step, _ := svc.Progress().Value(); step != nil {
		t.Error("expected idle progress after clear")
	}
	if uploading, _ := svc.Uploading().Value(); uploading {
		t.Error("expected uploading flag reset after clear")
	}
}
