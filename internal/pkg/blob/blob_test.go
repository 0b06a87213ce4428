package blob

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storageopts "github.com/kart-io/moktashif/pkg/options/storage"
)

func TestLocal_PutGet(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, "u1_c1_1700000000.5_scan.txt", strings.NewReader("open port 22")))
	rc, err := store.Get(ctx, "u1_c1_1700000000.5_scan.txt")
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "open port 22", string(data))
}

func TestLocal_Missing(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	_, err = store.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestValidateKey(t *testing.T) {
	for _, key := range []string{"", "../etc/passwd", "a/b", `a\b`} {
		assert.Error(t, ValidateKey(key), key)
	}
	assert.NoError(t, ValidateKey("u_c_1.2_report.pdf"))
}

func TestNew(t *testing.T) {
	opts := storageopts.NewOptions()
	opts.Dir = t.TempDir()
	store, err := New(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, storageopts.BackendLocal, store.Name())

	opts.Backend = "ftp"
	_, err = New(context.Background(), opts)
	assert.Error(t, err)

	opts.Backend = storageopts.BackendS3
	opts.S3.Bucket = ""
	_, err = New(context.Background(), opts)
	assert.Error(t, err)
}
