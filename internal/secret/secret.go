// Package secret holds the gate's shared HMAC key for the lifetime of the
// process. The key lives in a frozen memguard buffer: mlocked, guarded by
// canaries and read-only once loaded.
package secret

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/awnumar/memguard"
)

// SuggestedLength is the number of random bytes in a suggested secret.
const SuggestedLength = 32

// ErrEmpty is returned when a secret source yields no key material.
var ErrEmpty = errors.New("empty secret")

// Secret is an immutable HMAC key. The zero value and nil are valid and
// represent an unconfigured secret, for which Bytes returns nil.
type Secret struct {
	buf *memguard.LockedBuffer
}

// FromString moves s into protected memory. Surrounding whitespace is
// trimmed. An empty string yields an empty Secret rather than an error so
// that a missing secret degrades into denied requests, not a crash.
func FromString(s string) *Secret {
	s = strings.TrimSpace(s)
	if s == "" {
		return &Secret{}
	}
	return fromBytes([]byte(s))
}

// FromFile reads a secret from path, trimming surrounding whitespace.
func FromFile(path string) (*Secret, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading secret file: %w", err)
	}
	k := strings.TrimSpace(string(b))
	clear(b)
	if k == "" {
		return nil, fmt.Errorf("%s: %w", path, ErrEmpty)
	}
	return fromBytes([]byte(k)), nil
}

func fromBytes(b []byte) *Secret {
	// NewBufferFromBytes wipes b after copying it.
	buf := memguard.NewBufferFromBytes(b)
	buf.Freeze()
	return &Secret{buf: buf}
}

// Bytes returns the key material. The slice is backed by read-only memory
// and must not be modified or retained past Destroy.
func (s *Secret) Bytes() []byte {
	if s == nil || s.buf == nil || !s.buf.IsAlive() {
		return nil
	}
	return s.buf.Bytes()
}

// Empty reports whether no key material is available.
func (s *Secret) Empty() bool {
	return len(s.Bytes()) == 0
}

// Destroy wipes the key material. It is safe to call more than once.
func (s *Secret) Destroy() {
	if s == nil || s.buf == nil {
		return
	}
	s.buf.Destroy()
}

// Suggest returns a freshly generated hex-encoded secret suitable for
// EVENTGATE_SECRET.
func Suggest() string {
	buf := memguard.NewBufferRandom(SuggestedLength)
	defer buf.Destroy()
	return hex.EncodeToString(buf.Bytes())
}
