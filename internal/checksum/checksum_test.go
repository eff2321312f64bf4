package checksum

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const helloSHA256 = "dffd6021bb2bd5b0af676290809ec3a53191dd81c7f70a4b28688a362182986f"

func newTestFs(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()
	fsys := afero.NewMemMapFs()
	for path, content := range files {
		require.NoError(t, afero.WriteFile(fsys, path, []byte(content), 0o644))
	}
	return fsys
}

func TestFile(t *testing.T) {
	fsys := newTestFs(t, map[string]string{
		"/data/hello.txt": "Hello, World!",
		"/data/empty.txt": "",
	})
	ctx := context.Background()

	tests := []struct {
		name    string
		path    string
		size    int64
		want    string
		wantErr error
	}{
		{name: "hello world file", path: "/data/hello.txt", size: 13, want: helloSHA256},
		{name: "empty file", path: "/data/empty.txt", size: 0, want: "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"},
		{name: "file grew since stat", path: "/data/hello.txt", size: 5, wantErr: ErrSizeChanged},
		{name: "file shrank since stat", path: "/data/hello.txt", size: 20, wantErr: ErrSizeChanged},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SHA256.File(ctx, fsys, tt.path, tt.size)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}

	_, err := SHA256.File(ctx, fsys, "/data/missing.txt", 1)
	assert.Error(t, err)
}

func TestPrefixShortCircuitsSmallFiles(t *testing.T) {
	fsys := newTestFs(t, map[string]string{"/hello.txt": "Hello, World!"})

	sum, complete, err := SHA256.Prefix(context.Background(), fsys, "/hello.txt", 13, DefaultPrefixSize)
	require.NoError(t, err)
	assert.True(t, complete)
	assert.Equal(t, helloSHA256, sum.String())
}

func TestPrefixCoversOnlyLeadingBytes(t *testing.T) {
	fsys := newTestFs(t, map[string]string{
		"/a.bin": "AAAA-tail-one",
		"/b.bin": "AAAA-tail-two",
	})
	ctx := context.Background()

	a, complete, err := SHA256.Prefix(ctx, fsys, "/a.bin", 13, 4)
	require.NoError(t, err)
	assert.False(t, complete)

	b, _, err := SHA256.Prefix(ctx, fsys, "/b.bin", 13, 4)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	want := sha256.Sum256([]byte("AAAA"))
	assert.Equal(t, hex.EncodeToString(want[:]), a.String())
	assert.Equal(t, hex.EncodeToString(want[:])[:12], a.Short())
}

func TestXXHash(t *testing.T) {
	fsys := newTestFs(t, map[string]string{
		"/one.txt":   "same content",
		"/two.txt":   "same content",
		"/other.txt": "other conten",
	})
	ctx := context.Background()

	one, err := XXHash.File(ctx, fsys, "/one.txt", 12)
	require.NoError(t, err)
	two, err := XXHash.File(ctx, fsys, "/two.txt", 12)
	require.NoError(t, err)
	other, err := XXHash.File(ctx, fsys, "/other.txt", 12)
	require.NoError(t, err)

	assert.Len(t, one, 8)
	assert.Equal(t, one, two)
	assert.NotEqual(t, one, other)
}

func TestCancelledRead(t *testing.T) {
	fsys := newTestFs(t, map[string]string{"/hello.txt": "Hello, World!"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := SHA256.File(ctx, fsys, "/hello.txt", 13)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseAlgorithm(t *testing.T) {
	a, err := ParseAlgorithm(" SHA256 ")
	require.NoError(t, err)
	assert.Equal(t, SHA256, a)

	a, err = ParseAlgorithm("xxhash")
	require.NoError(t, err)
	assert.Equal(t, XXHash, a)

	_, err = ParseAlgorithm("md5")
	assert.Error(t, err)
}

func TestSumMarshalText(t *testing.T) {
	text, err := Sum{0xde, 0xad, 0xbe, 0xef}.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "deadbeef", string(text))
	assert.Equal(t, "deadbeef", Sum{0xde, 0xad, 0xbe, 0xef}.Short())
}
