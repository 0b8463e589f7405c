package backup

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/chainguard-dev/clog"
)

var client = &http.Client{
	Timeout: 30 * time.Second,
	Transport: &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		IdleConnTimeout:       90 * time.Second,
	},
}

// HTTPGateway talks to a remote blob store over HTTP. Blobs live under
// <endpoint>/blobs/<name>; the token is sent as a bearer credential.
type HTTPGateway struct {
	creds Credentials
	token string
}

// NewHTTPGateway builds a gateway from stored credentials and an opaque
// token. The token is passed through unmodified.
func NewHTTPGateway(creds Credentials, token string) *HTTPGateway {
	return &HTTPGateway{creds: creds, token: token}
}

func (g *HTTPGateway) blobURL(remoteName string) string {
	return strings.TrimRight(g.creds.Endpoint, "/") + "/blobs/" + url.PathEscape(remoteName)
}

// Upload sends the local file to the remote store under remoteName.
func (g *HTTPGateway) Upload(ctx context.Context, localPath, remoteName string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("cannot read backup source: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("cannot stat backup source: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, g.blobURL(remoteName), f)
	if err != nil {
		return &TransportError{Op: "upload", Err: err}
	}
	req.ContentLength = info.Size()
	req.Header.Set("Content-Type", "application/octet-stream")
	g.authorize(req)

	clog.FromContext(ctx).Debugf("uploading %d bytes to %s", info.Size(), remoteName)

	resp, err := client.Do(req)
	if err != nil {
		return &TransportError{Op: "upload", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return &TransportError{Op: "upload", Err: fmt.Errorf("server returned %s", resp.Status)}
	}
	return nil
}

// Download fetches remoteName into localPath. The file is written to a
// temporary name first and renamed into place so a failed transfer never
// leaves a truncated candidate behind.
func (g *HTTPGateway) Download(ctx context.Context, remoteName, localPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.blobURL(remoteName), nil)
	if err != nil {
		return &TransportError{Op: "download", Err: err}
	}
	g.authorize(req)

	resp, err := client.Do(req)
	if err != nil {
		return &TransportError{Op: "download", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrRemoteNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return &TransportError{Op: "download", Err: fmt.Errorf("server returned %s", resp.Status)}
	}

	tmpPath := localPath + ".partial"
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("cannot create download target: %w", err)
	}

	n, err := io.Copy(f, resp.Body)
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return &TransportError{Op: "download", Err: err}
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("cannot finish download target: %w", err)
	}
	if err := os.Rename(tmpPath, localPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("cannot place download target: %w", err)
	}

	clog.FromContext(ctx).Debugf("downloaded %d bytes from %s", n, remoteName)
	return nil
}

// Delete removes remoteName from the remote store.
func (g *HTTPGateway) Delete(ctx context.Context, remoteName string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, g.blobURL(remoteName), nil)
	if err != nil {
		return &TransportError{Op: "delete", Err: err}
	}
	g.authorize(req)

	resp, err := client.Do(req)
	if err != nil {
		return &TransportError{Op: "delete", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrRemoteNotFound
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return &TransportError{Op: "delete", Err: fmt.Errorf("server returned %s", resp.Status)}
	}
	return nil
}

func (g *HTTPGateway) authorize(req *http.Request) {
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}
	if g.creds.Account != "" {
		req.Header.Set("X-Account", g.creds.Account)
	}
}
