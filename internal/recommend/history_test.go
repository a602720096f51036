package recommend_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s100fed/fedroute/internal/recommend"
)

func TestLoadMemoryHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
mariner-7:
  - product_type: S102
    service_type: WMS
    access_count: 15
    last_access: 2026-02-20T08:00:00Z
  - product_type: S101
    service_type: WFS
    access_count: 5
`), 0o600))

	h, err := recommend.LoadMemoryHistory(path)
	require.NoError(t, err)

	recs, err := h.History(context.Background(), "mariner-7")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "S102", recs[0].ProductType)
	assert.Equal(t, 15, recs[0].AccessCount)
	assert.Equal(t, time.Date(2026, 2, 20, 8, 0, 0, 0, time.UTC), recs[0].LastAccess)

	unknown, err := h.History(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, unknown)
}

func TestLoadMemoryHistory_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := recommend.LoadMemoryHistory(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("u:\n  - access_count: -2\n"), 0o600))
	_, err = recommend.LoadMemoryHistory(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "negative access_count")
}

func TestMemoryHistory_Record(t *testing.T) {
	ctx := context.Background()
	h := recommend.NewMemoryHistory(nil)
	t1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, h.Record(ctx, "u1", "S102", "WMS", t1))
	require.NoError(t, h.Record(ctx, "u1", "S102", "WMS", t1.Add(time.Hour)))
	require.NoError(t, h.Record(ctx, "u1", "S101", "WFS", t1))

	recs, err := h.History(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, 2, recs[0].AccessCount)
	assert.Equal(t, t1.Add(time.Hour), recs[0].LastAccess)
	assert.Equal(t, 1, recs[1].AccessCount)

	// History returns a copy.
	recs[0].AccessCount = 99
	again, err := h.History(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, again[0].AccessCount)
}

func TestMemoryHistory_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	h := recommend.NewMemoryHistory(map[string][]recommend.AccessRecord{"u": {{ProductType: "S101"}}})
	_, err := h.History(ctx, "u")
	require.ErrorIs(t, err, context.Canceled)
	require.ErrorIs(t, h.Record(ctx, "u", "S101", "WMS", time.Now()), context.Canceled)
}

func TestNoHistory(t *testing.T) {
	recs, err := recommend.NoHistory.History(context.Background(), "anyone")
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestNewPostgresHistory_RequiresDB(t *testing.T) {
	_, err := recommend.NewPostgresHistory(nil)
	require.Error(t, err)
}
