package identity

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wikidat.dev/loader"
)

// newTestFinalizer wires a Finalizer against a TabularLoader with no live
// database connection, the same fixture loader's own tests use: every
// flush's LOAD DATA call fails and the batch is quarantined to dir, letting
// the test assert on what would have been loaded without a MySQL server.
func newTestFinalizer(t *testing.T) (*Finalizer, string) {
	t.Helper()
	dir := t.TempDir()
	tl := loader.NewTabularLoader(nil, 1000, dir, nil)
	return NewFinalizer(tl, nil), dir
}

func quarantinedContents(t *testing.T, dir, table string) string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".tsv" && strings.Contains(e.Name(), table) {
			data, err := os.ReadFile(filepath.Join(dir, e.Name()))
			require.NoError(t, err)
			return string(data)
		}
	}
	t.Fatalf("no quarantined batch found for table %q in %v", table, entries)
	return ""
}

func TestFinalize_WritesSpecialUserRows(t *testing.T) {
	f, dir := newTestFinalizer(t)
	svc := NewService(nil, nil)

	require.NoError(t, f.Finalize(context.Background(), svc, "enwiki", 1000))

	data := quarantinedContents(t, dir, "user")
	assert.Contains(t, data, "0\tAnonymous user")
	assert.Contains(t, data, "-1\tNA")
	assert.Contains(t, data, "-2\tMissing ID")
}

func TestFinalize_BulkLoadsEachPartitionThroughTheSameLoader(t *testing.T) {
	f, dir := newTestFinalizer(t)
	svc := NewService(nil, nil)
	ctx := context.Background()

	name := "Alice"
	require.NoError(t, svc.RecordUser(ctx, "enwiki", 7, &name))
	require.NoError(t, svc.RecordAnon(ctx, "enwiki", 100, "10.0.0.1"))
	require.NoError(t, svc.RecordMissing(ctx, "enwiki", 200, "Weird"))

	require.NoError(t, f.Finalize(ctx, svc, "enwiki", 1000))

	anonData := quarantinedContents(t, dir, "revision_IP")
	assert.Contains(t, anonData, "100\t167772161")

	zeroData := quarantinedContents(t, dir, "revision_user_zero")
	assert.Contains(t, zeroData, "200\tWeird")
}

func TestFinalize_SkipsEmptyPartitions(t *testing.T) {
	f, dir := newTestFinalizer(t)
	svc := NewService(nil, nil)

	require.NoError(t, f.Finalize(context.Background(), svc, "enwiki", 1000))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), "revision_IP", "no anon revisions recorded, so no batch for that table")
		assert.NotContains(t, e.Name(), "revision_user_zero", "no missing-id revisions recorded, so no batch for that table")
	}
}

func TestFinalize_SurfacesDegradedCacheAsWarningNotError(t *testing.T) {
	f, _ := newTestFinalizer(t)
	svc := NewService(nil, nil)
	svc.markDegraded("RecordUser", assert.AnError)

	err := f.Finalize(context.Background(), svc, "enwiki", 1000)
	require.NoError(t, err, "a degraded cache is a warning, not a Finalize failure")
}

func TestFinalize_BatchesPartitionsBySize(t *testing.T) {
	f, dir := newTestFinalizer(t)
	svc := NewService(nil, nil)
	ctx := context.Background()

	for i := int64(1); i <= 5; i++ {
		require.NoError(t, svc.RecordAnon(ctx, "enwiki", i, "10.0.0.1"))
	}

	require.NoError(t, f.Finalize(ctx, svc, "enwiki", 2))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	anonBatches := 0
	for _, e := range entries {
		if strings.Contains(e.Name(), "revision_IP") {
			anonBatches++
		}
	}
	assert.Equal(t, 3, anonBatches, "5 rows at batch size 2 yields three quarantined batches")
}
