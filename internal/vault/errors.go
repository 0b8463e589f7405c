package vault

import (
	"errors"
	"fmt"
)

var (
	ErrNotInitialized = errors.New("vault not initialized")
	ErrAlreadyExists  = errors.New("vault already exists")
	ErrWrongPassword  = errors.New("cannot unlock vault")
	ErrNotFound       = errors.New("container not found")
	ErrCorrupt        = errors.New("vault file is corrupt")
	ErrNoCredentials  = errors.New("cloud credentials not set")
)

// IntegrityError reports a single container whose MAC failed verification
// under an otherwise-correct key. The vault remains usable; only the named
// container is affected.
type IntegrityError struct {
	ID int
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity check failed for container %d", e.ID)
}

// ContainerCheck is the verification outcome for one persisted record.
type ContainerCheck struct {
	ID int
	OK bool
}

// IntegrityReport is the result of verifying every persisted record
// against the current key.
type IntegrityReport struct {
	Containers []ContainerCheck
	Reserved   map[string]bool // reserved records (cloud credential/token)
	MACOK      bool            // whole-vault MAC matched
}

// OK reports whether every record verified and the vault MAC matched.
func (r *IntegrityReport) OK() bool {
	if !r.MACOK {
		return false
	}
	for _, c := range r.Containers {
		if !c.OK {
			return false
		}
	}
	for _, ok := range r.Reserved {
		if !ok {
			return false
		}
	}
	return true
}

// Failed returns the ids of containers that did not verify.
func (r *IntegrityReport) Failed() []int {
	var ids []int
	for _, c := range r.Containers {
		if !c.OK {
			ids = append(ids, c.ID)
		}
	}
	return ids
}
