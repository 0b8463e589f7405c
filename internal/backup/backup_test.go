package backup

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

// blobServer is a minimal in-memory remote for gateway tests.
type blobServer struct {
	mu    sync.Mutex
	blobs map[string][]byte
	auth  string
}

func newBlobServer(auth string) *blobServer {
	return &blobServer{blobs: make(map[string][]byte), auth: auth}
}

func (s *blobServer) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.auth != "" && r.Header.Get("Authorization") != "Bearer "+s.auth {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		name := r.URL.Path

		s.mu.Lock()
		defer s.mu.Unlock()
		switch r.Method {
		case http.MethodPut:
			body, err := io.ReadAll(r.Body)
			if err != nil {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			s.blobs[name] = body
			w.WriteHeader(http.StatusCreated)
		case http.MethodGet:
			blob, ok := s.blobs[name]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Write(blob)
		case http.MethodDelete:
			if _, ok := s.blobs[name]; !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			delete(s.blobs, name)
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
}

func newTestGateway(t *testing.T, srv *blobServer, token string) (*HTTPGateway, *httptest.Server) {
	t.Helper()
	ts := httptest.NewServer(srv.handler())
	t.Cleanup(ts.Close)
	return NewHTTPGateway(Credentials{Endpoint: ts.URL, Account: "tester"}, token), ts
}

func TestUploadDownloadRoundTrip(t *testing.T) {
	srv := newBlobServer("tok")
	gw, _ := newTestGateway(t, srv, "tok")

	dir := t.TempDir()
	local := filepath.Join(dir, "vault.db")
	content := []byte("opaque vault bytes \x00\x01\x02")
	if err := os.WriteFile(local, content, 0600); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	if err := gw.Upload(ctx, local, "vault.db.BAK"); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	fetched := filepath.Join(dir, "fetched.db")
	if err := gw.Download(ctx, "vault.db.BAK", fetched); err != nil {
		t.Fatalf("Download failed: %v", err)
	}

	got, err := os.ReadFile(fetched)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(content) {
		t.Errorf("downloaded blob differs from uploaded: %q vs %q", got, content)
	}
}

func TestDownloadMissingBlob(t *testing.T) {
	srv := newBlobServer("")
	gw, _ := newTestGateway(t, srv, "")

	dest := filepath.Join(t.TempDir(), "missing.db")
	err := gw.Download(context.Background(), "never-uploaded", dest)
	if !errors.Is(err, ErrRemoteNotFound) {
		t.Fatalf("Download missing blob = %v, want ErrRemoteNotFound", err)
	}
	if _, statErr := os.Stat(dest); statErr == nil {
		t.Error("failed download left a destination file")
	}
}

func TestDownloadLeavesNoPartialFile(t *testing.T) {
	srv := newBlobServer("")
	gw, _ := newTestGateway(t, srv, "")

	dest := filepath.Join(t.TempDir(), "missing.db")
	gw.Download(context.Background(), "never-uploaded", dest)
	if _, err := os.Stat(dest + ".partial"); err == nil {
		t.Error("partial file left behind after failed download")
	}
}

func TestDelete(t *testing.T) {
	srv := newBlobServer("")
	gw, _ := newTestGateway(t, srv, "")

	dir := t.TempDir()
	local := filepath.Join(dir, "vault.db")
	if err := os.WriteFile(local, []byte("data"), 0600); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	if err := gw.Upload(ctx, local, "vault.db.BAK"); err != nil {
		t.Fatal(err)
	}
	if err := gw.Delete(ctx, "vault.db.BAK"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := gw.Download(ctx, "vault.db.BAK", filepath.Join(dir, "gone.db")); !errors.Is(err, ErrRemoteNotFound) {
		t.Errorf("blob survived delete: err = %v", err)
	}
}

func TestBadTokenFailsUpload(t *testing.T) {
	srv := newBlobServer("real-token")
	gw, _ := newTestGateway(t, srv, "stolen")

	local := filepath.Join(t.TempDir(), "vault.db")
	if err := os.WriteFile(local, []byte("data"), 0600); err != nil {
		t.Fatal(err)
	}

	err := gw.Upload(context.Background(), local, "vault.db.BAK")
	if err == nil {
		t.Fatal("Upload with bad token succeeded")
	}
	var te *TransportError
	if !errors.As(err, &te) {
		t.Errorf("Upload error = %T, want *TransportError", err)
	}
}

func TestParseCredentials(t *testing.T) {
	tests := []struct {
		name    string
		blob    string
		wantErr bool
	}{
		{"valid", `{"endpoint":"https://backup.example.com","account":"me"}`, false},
		{"missing endpoint", `{"account":"me"}`, true},
		{"not json", "endpoint=https://backup.example.com", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := ParseCredentials(tt.blob)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseCredentials(%q) err = %v, wantErr %v", tt.blob, err, tt.wantErr)
			}
			if err == nil && c.Endpoint == "" {
				t.Error("parsed credentials missing endpoint")
			}
		})
	}
}

func TestCredentialsEncodeRoundTrip(t *testing.T) {
	orig := Credentials{Endpoint: "https://backup.example.com", Account: "me"}
	blob, err := orig.Encode()
	if err != nil {
		t.Fatal(err)
	}
	parsed, err := ParseCredentials(blob)
	if err != nil {
		t.Fatal(err)
	}
	if parsed != orig {
		t.Errorf("round-trip = %+v, want %+v", parsed, orig)
	}
}
