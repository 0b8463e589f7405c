package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrRemoteNotFound = errors.New("remote backup not found")
	ErrBadCredentials = errors.New("invalid cloud credentials")
)

// Gateway is the remote blob store the vault file is backed up to. The
// remote side only ever sees the encrypted vault file; it is treated as
// untrusted transport. Implementations must not retry silently.
type Gateway interface {
	Upload(ctx context.Context, localPath, remoteName string) error
	Download(ctx context.Context, remoteName, localPath string) error
	Delete(ctx context.Context, remoteName string) error
}

// TransportError wraps any failure talking to the remote side. The local
// vault state is never affected by a failed remote operation.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("backup %s failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Credentials identify the remote blob endpoint. They are stored
// encrypted inside the vault and passed through to the gateway
// unmodified.
type Credentials struct {
	Endpoint string `json:"endpoint"`
	Account  string `json:"account,omitempty"`
}

// ParseCredentials decodes and validates a stored credentials blob.
// Malformed input is rejected, never coerced.
func ParseCredentials(blob string) (Credentials, error) {
	var c Credentials
	if err := json.Unmarshal([]byte(blob), &c); err != nil {
		return c, fmt.Errorf("%w: %v", ErrBadCredentials, err)
	}
	if c.Endpoint == "" {
		return c, fmt.Errorf("%w: endpoint is required", ErrBadCredentials)
	}
	return c, nil
}

// Encode serializes credentials for storage inside the vault.
func (c Credentials) Encode() (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to encode credentials: %w", err)
	}
	return string(data), nil
}
