package checksum

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/spf13/afero"
)

const bufferSize = 64 * 1024 // 64KB buffer

// DefaultPrefixSize is how many leading bytes the partial digest covers.
const DefaultPrefixSize = 64 * 1024

// ErrSizeChanged is returned when a file yields a different number of bytes
// than its recorded size.
var ErrSizeChanged = errors.New("file changed during scan")

var bufferPool = sync.Pool{
	New: func() any {
		b := make([]byte, bufferSize)
		return &b
	},
}

// Algorithm names a digest used for both hashing phases.
type Algorithm string

const (
	SHA256 Algorithm = "sha256"
	XXHash Algorithm = "xxhash"
)

// ParseAlgorithm validates a configured algorithm name.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch a := Algorithm(strings.ToLower(strings.TrimSpace(name))); a {
	case SHA256, XXHash:
		return a, nil
	default:
		return "", fmt.Errorf("unsupported hash algorithm: %q", name)
	}
}

// New returns a fresh digest for the algorithm.
func (a Algorithm) New() hash.Hash {
	if a == XXHash {
		return xxhash.New()
	}
	return sha256.New()
}

// Sum is a raw digest. It encodes as lowercase hex.
type Sum []byte

func (s Sum) String() string {
	return hex.EncodeToString(s)
}

// Short returns the first 12 hex characters, for human-readable reasons.
func (s Sum) Short() string {
	str := s.String()
	if len(str) > 12 {
		return str[:12]
	}
	return str
}

func (s Sum) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Prefix digests the first min(size, limit) bytes of path. It reports
// complete=true when that covers the whole file, in which case the returned
// sum is also the full-file digest.
func (a Algorithm) Prefix(ctx context.Context, fsys afero.Fs, path string, size, limit int64) (sum Sum, complete bool, err error) {
	if size <= limit {
		sum, err = a.digest(ctx, fsys, path, size, true)
		return sum, err == nil, err
	}
	sum, err = a.digest(ctx, fsys, path, limit, false)
	return sum, false, err
}

// File digests the whole of path, which must be exactly size bytes long.
func (a Algorithm) File(ctx context.Context, fsys afero.Fs, path string, size int64) (Sum, error) {
	return a.digest(ctx, fsys, path, size, true)
}

// digest hashes the first n bytes of path. With exact set, the file must end
// right after them.
func (a Algorithm) digest(ctx context.Context, fsys afero.Fs, path string, n int64, exact bool) (Sum, error) {
	file, err := fsys.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	bufPtr := bufferPool.Get().(*[]byte)
	defer bufferPool.Put(bufPtr)

	limit := n
	if exact {
		// one byte past n tells a grown file apart from an intact one
		limit = n + 1
	}

	h := a.New()
	read, err := io.CopyBuffer(h, io.LimitReader(&ctxReader{ctx: ctx, r: file}, limit), *bufPtr)
	if err != nil {
		return nil, err
	}
	if read != n {
		return nil, ErrSizeChanged
	}
	return Sum(h.Sum(nil)), nil
}

// ctxReader abandons a read as soon as its context is cancelled.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
