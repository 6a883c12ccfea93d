package sarvam

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func writeWav(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sample.wav")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestTranscribeSuccess(t *testing.T) {
	var gotKey, gotModel, gotFilename string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("api-subscription-key")
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parsing multipart: %v", err)
		}
		gotModel = r.FormValue("model")
		if _, header, err := r.FormFile("file"); err == nil {
			gotFilename = header.Filename
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"transcript":"someone is at the door"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret-key", "saaras:v2", nil)
	got := c.Transcribe(context.Background(), writeWav(t, []byte("RIFFdata")))

	if got != "someone is at the door" {
		t.Errorf("transcript = %q, want %q", got, "someone is at the door")
	}
	if gotKey != "secret-key" {
		t.Errorf("api-subscription-key = %q, want secret-key", gotKey)
	}
	if gotModel != "saaras:v2" {
		t.Errorf("model field = %q, want saaras:v2", gotModel)
	}
	if gotFilename != "sample.wav" {
		t.Errorf("file part name = %q, want sample.wav", gotFilename)
	}
}

func TestTranscribeNon2xxReturnsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", "saaras:v2", nil)
	if got := c.Transcribe(context.Background(), writeWav(t, []byte("RIFFdata"))); got != "" {
		t.Errorf("transcript = %q, want empty", got)
	}
}

func TestTranscribeMalformedBodyReturnsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", "saaras:v2", nil)
	if got := c.Transcribe(context.Background(), writeWav(t, []byte("RIFFdata"))); got != "" {
		t.Errorf("transcript = %q, want empty", got)
	}
}

func TestTranscribeMissingFileReturnsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("server should not be called for a missing file")
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", "saaras:v2", nil)
	if got := c.Transcribe(context.Background(), filepath.Join(t.TempDir(), "nope.wav")); got != "" {
		t.Errorf("transcript = %q, want empty", got)
	}
}

func TestTranscribeEmptyFileReturnsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("server should not be called for an empty file")
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", "saaras:v2", nil)
	if got := c.Transcribe(context.Background(), writeWav(t, nil)); got != "" {
		t.Errorf("transcript = %q, want empty", got)
	}
}

func TestTranscribeUnreachableEndpointReturnsEmpty(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "key", "saaras:v2", nil)
	if got := c.Transcribe(context.Background(), writeWav(t, []byte("RIFFdata"))); got != "" {
		t.Errorf("transcript = %q, want empty", got)
	}
}
