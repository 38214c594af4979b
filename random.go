package cryptic

import (
	"crypto/rand"
	"fmt"
	"io"
	"runtime"
	"sync"
)

// RandomSource supplies the salt and IV bytes for new containers. The
// default is crypto/rand.Reader; tests substitute a seeded reader.
type RandomSource interface {
	io.Reader
}

// lockedSource serializes reads from a source that is not safe for
// concurrent use
type lockedSource struct {
	mu  sync.Mutex
	src io.Reader
}

// NewLockedSource wraps r so that an Encrypter using it can be shared
// between goroutines
func NewLockedSource(r io.Reader) RandomSource {
	return &lockedSource{src: r}
}

func (l *lockedSource) Read(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.src.Read(p)
}

func defaultRandomSource() RandomSource {
	return rand.Reader
}

// randomBytes reads n fresh bytes from src
func randomBytes(src io.Reader, n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(src, b); err != nil {
		return nil, fmt.Errorf("failed to read %d random bytes: %w", n, err)
	}
	return b, nil
}

// zeroBytes overwrites a byte slice with zeros
func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
	runtime.KeepAlive(b)
}
