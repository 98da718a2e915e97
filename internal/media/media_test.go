package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewKey(t *testing.T) {
	key, err := NewKey(KindImage, "user-1", "Proof.JPG")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "submissions/user-1/images/"))
	assert.True(t, strings.HasSuffix(key, ".jpg"))

	_, err = NewKey(KindImage, "user-1", "clip.mp4")
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, err = NewKey(KindVideo, "user-1", "clip.mp4")
	assert.NoError(t, err)
}

func TestLocalStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	ref, err := store.Save(ctx, "submissions/u/images/a.png", "image/png", strings.NewReader("png-bytes"))
	require.NoError(t, err)

	data, err := store.Load(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))

	_, err = store.Load(ctx, "submissions/u/images/missing.png")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.Load(ctx, "../../etc/passwd")
	assert.ErrorIs(t, err, ErrNotFound)
}

type failingReader struct{ err error }

func (r failingReader) Read([]byte) (int, error) { return 0, r.err }

func TestLocalStoreFailedWriteLeavesNoFile(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	store, err := NewLocalStore(root)
	require.NoError(t, err)

	_, err = store.Save(ctx, "submissions/u/images/b.png", "image/png", failingReader{err: errors.New("connection reset")})
	require.Error(t, err)

	_, err = os.Stat(filepath.Join(root, "submissions", "u", "images", "b.png"))
	assert.True(t, os.IsNotExist(err), "partial upload is removed")
}

func TestLocalStoreDelete(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	ref, err := store.Save(ctx, "submissions/u/videos/c.mp4", "video/mp4", strings.NewReader("mp4"))
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, ref))

	_, err = store.Load(ctx, ref)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, store.Delete(ctx, ref), "deleting twice is fine")
	assert.ErrorIs(t, store.Delete(ctx, "../outside.png"), ErrNotFound)
}
