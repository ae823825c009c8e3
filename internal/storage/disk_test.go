package storage

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeFileName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"report.pdf", "report.pdf"},
		{"quarterly report.pdf", "quarterly_report.pdf"},
		{"  spaced\tout\nname.txt", "_spaced_out_name.txt"},
		{"résumé (final).docx", "rsum_final.docx"},
		{"../../etc/passwd", "....etcpasswd"},
		{"UPPER-lower_1.2.tar.gz", "UPPER-lower_1.2.tar.gz"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, SanitizeFileName(tc.in), "input %q", tc.in)
	}
}

func TestObjectKey(t *testing.T) {
	ts := time.UnixMilli(1700000000000)
	key := ObjectKey("11111111-2222-3333-4444-555555555555", ts, "my report.pdf")
	assert.Equal(t, "11111111-2222-3333-4444-555555555555/1700000000000-my_report.pdf", key)
}

func TestDiskStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewDiskStore(t.TempDir(), "http://localhost:8080/")
	require.NoError(t, err)

	key := "req-1/1700000000000-report.pdf"
	require.NoError(t, store.Put(ctx, key, strings.NewReader("hello")))

	ok, err := store.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	rc, err := store.Open(ctx, key)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "hello", string(data))

	assert.Equal(t, "http://localhost:8080/files/"+key, store.PublicURL(key))

	require.NoError(t, store.Delete(ctx, key))

	ok, err = store.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = store.Open(ctx, key)
	assert.ErrorIs(t, err, ErrBlobNotFound)
	assert.ErrorIs(t, store.Delete(ctx, key), ErrBlobNotFound)
}

func TestDiskStoreRejectsEscapingKey(t *testing.T) {
	ctx := context.Background()
	store, err := NewDiskStore(t.TempDir(), "http://localhost:8080")
	require.NoError(t, err)

	err = store.Put(ctx, "../outside.txt", strings.NewReader("x"))
	assert.Error(t, err)

	_, err = store.Open(ctx, "../../etc/passwd")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrBlobNotFound)
}
