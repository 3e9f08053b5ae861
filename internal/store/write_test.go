package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/aqlengine/internal/record"
	"github.com/roach88/aqlengine/internal/testutil"
)

func TestImport_Counts(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	stats, err := s.Import(ctx, testutil.LoadFixture(t, "minimal.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ImportStats{EHRs: 3, Compositions: 6}, stats)

	ehrs, comps, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, ehrs)
	assert.Equal(t, 6, comps)
}

func TestImport_Idempotent(t *testing.T) {
	s, ds := loadFixtureStore(t)
	ctx := context.Background()

	stats, err := s.Import(ctx, ds)
	require.NoError(t, err)
	assert.Equal(t, ImportStats{}, stats, "second import inserts nothing")

	ehrs, comps, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, ehrs)
	assert.Equal(t, 6, comps)
}

func TestImport_Appends(t *testing.T) {
	s, _ := loadFixtureStore(t)
	ctx := context.Background()

	extra := testutil.Dataset(testutil.EHR("e-extra",
		testutil.Composition("c-extra", testutil.MinimalComposition)))
	stats, err := s.Import(ctx, extra)
	require.NoError(t, err)
	assert.Equal(t, ImportStats{EHRs: 1, Compositions: 1}, stats)

	ehrs, err := s.EHRs(ctx)
	require.NoError(t, err)
	require.Len(t, ehrs, 4)
	assert.Equal(t, "e-extra", ehrs[3].ID, "later imports sort after earlier ones")
}

func TestImport_Conflicts(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	original := testutil.Dataset(testutil.EHR("e-1",
		testutil.Composition("c-1", testutil.MinimalComposition)))
	_, err := s.Import(ctx, original)
	require.NoError(t, err)

	stats, err := s.Import(ctx, original)
	require.NoError(t, err)
	assert.Equal(t, ImportStats{}, stats, "identical content is not a conflict")

	changed := testutil.Dataset(testutil.EHR("e-1",
		testutil.Composition("c-1", "openEHR-EHR-COMPOSITION.other.v1")))
	stats, err = s.Import(ctx, changed)
	require.NoError(t, err)
	assert.Equal(t, ImportStats{Conflicts: 1}, stats)

	comps, err := s.Compositions(ctx, "e-1", "")
	require.NoError(t, err)
	require.Len(t, comps, 1)
	assert.Equal(t, testutil.MinimalComposition, comps[0].ArchetypeNodeID, "the stored version is kept")
}

func TestImport_RollsBackOnError(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	rec := testutil.EHR("e-1", testutil.Composition("c-1", testutil.MinimalComposition))
	orphan := record.NewComposition("no-such-ehr", testutil.Composition("c-2", testutil.MinimalComposition))
	rec.Compositions = append(rec.Compositions, orphan)

	_, err := s.Import(ctx, testutil.Dataset(rec))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "composition c-2")

	ehrs, comps, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, ehrs, "the transaction rolled back")
	assert.Zero(t, comps)
}

func TestImport_Nil(t *testing.T) {
	s := createTestStore(t)

	stats, err := s.Import(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, ImportStats{}, stats)
}

func TestImport_CancelledContext(t *testing.T) {
	s := createTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Import(ctx, testutil.LoadFixture(t, "minimal.yaml"))
	assert.Error(t, err)
}
