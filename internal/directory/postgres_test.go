package directory

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s100fed/fedroute/internal/federation"
)

// TestPostgresStore_Integration runs against a disposable database named by
// FEDROUTE_TEST_DATABASE_URL.
func TestPostgresStore_Integration(t *testing.T) {
	dsn := os.Getenv("FEDROUTE_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("FEDROUTE_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	db, err := OpenPostgres(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = Migrate(db)
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, `
DELETE FROM capabilities; DELETE FROM datasets; DELETE FROM nodes;
INSERT INTO nodes (id, name, level, health_status, coverage, is_active) VALUES
  ('root', 'Root', 0, 'HEALTHY', '-180,-90,180,90', true);
INSERT INTO nodes (id, name, level, health_status, is_active, parent_id) VALUES
  ('leaf', 'Leaf', 3, 'WARNING', true, 'root');
INSERT INTO datasets (id, node_id, name, product_type, status, published_at) VALUES
  ('ds', 'root', 'Bathy', 'S102', 'PUBLISHED', now()),
  ('draft', 'root', 'Draft', 'S102', 'PROCESSING', NULL);
INSERT INTO capabilities (id, node_id, product_type, service_type, is_enabled, endpoint, version, dataset_id) VALUES
  ('c1', 'root', 'S102', 'WMS', true, 'https://root/wms', '1.3', 'ds'),
  ('c2', 'leaf', 'S102', 'WMS', true, 'https://leaf/wms', '', NULL),
  ('c3', 'root', 'S102', 'WCS', true, 'https://root/wcs', '', 'draft');`)
	require.NoError(t, err)

	store, err := NewPostgresStore(db)
	require.NoError(t, err)

	cands, err := store.FindCandidates(ctx, Filter{ProductTypes: []string{"S102"}})
	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.Equal(t, "c1", cands[0].ID())
	assert.Equal(t, "1.3.0", cands[0].Capability.Version)
	assert.True(t, cands[0].Node.Coverage.Defined())
	require.NotNil(t, cands[0].Dataset)
	assert.NotNil(t, cands[0].Dataset.PublishedAt)

	cands, err = store.FindCandidates(ctx, Filter{ServiceTypes: []string{"WMS"}, HealthThreshold: federation.HealthWarning})
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c2"}, ids(cands))
}

func TestNewPostgresStore_NilDB(t *testing.T) {
	_, err := NewPostgresStore(nil)
	require.Error(t, err)

	_, err = OpenPostgres(context.Background(), "")
	require.Error(t, err)
}
