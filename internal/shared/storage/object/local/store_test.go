package local

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lca-companion/internal/shared/storage/object"
)

func TestPutThenOpen(t *testing.T) {
	store := New(t.TempDir())
	ctx := context.Background()

	n, err := store.Put(ctx, object.ResultKey("job-1"), "application/json", strings.NewReader(`{"co2_kg":1}`))
	require.NoError(t, err)
	assert.EqualValues(t, 12, n)

	rc, err := store.Open(ctx, "results/job-1.json")
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, `{"co2_kg":1}`, string(body))
}

func TestPutOverwrites(t *testing.T) {
	store := New(t.TempDir())
	ctx := context.Background()

	_, err := store.Put(ctx, "results/a.json", "application/json", strings.NewReader("first"))
	require.NoError(t, err)
	_, err = store.Put(ctx, "results/a.json", "application/json", strings.NewReader("second"))
	require.NoError(t, err)

	rc, err := store.Open(ctx, "results/a.json")
	require.NoError(t, err)
	defer rc.Close()
	body, _ := io.ReadAll(rc)
	assert.Equal(t, "second", string(body))
}

func TestOpenMissingReturnsNotFound(t *testing.T) {
	_, err := New(t.TempDir()).Open(context.Background(), "results/none.json")
	assert.ErrorIs(t, err, object.ErrNotFound)
}

func TestRejectsEscapingKeys(t *testing.T) {
	store := New(t.TempDir())
	for _, key := range []string{"../etc/passwd", "/abs/path", "."} {
		_, err := store.Put(context.Background(), key, "text/plain", strings.NewReader("x"))
		assert.Error(t, err, key)
	}
}
