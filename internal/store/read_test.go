package store

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/aqlengine/internal/engine"
	"github.com/roach88/aqlengine/internal/ir"
	"github.com/roach88/aqlengine/internal/record"
	"github.com/roach88/aqlengine/internal/testutil"
)

func canonical(t *testing.T, v ir.Value) string {
	t.Helper()
	data, err := ir.MarshalValue(v)
	require.NoError(t, err)
	return string(data)
}

func TestEHRs_DeclaredOrder(t *testing.T) {
	s, ds := loadFixtureStore(t)

	ehrs, err := s.EHRs(context.Background())
	require.NoError(t, err)

	require.Len(t, ehrs, len(ds.Records))
	for i, rec := range ds.Records {
		assert.Equal(t, rec.EHR.ID, ehrs[i].ID)
		assert.Equal(t, rec.EHR.SystemID, ehrs[i].SystemID)
		assert.Equal(t, rec.EHR.TimeCreated, ehrs[i].TimeCreated)
		assert.Equal(t, canonical(t, rec.EHR.Body), canonical(t, ehrs[i].Body))
	}
}

func TestEHRs_Empty(t *testing.T) {
	s := createTestStore(t)

	ehrs, err := s.EHRs(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, ehrs)
	assert.Empty(t, ehrs)
}

func TestCompositions_RoundTrip(t *testing.T) {
	s, ds := loadFixtureStore(t)
	ctx := context.Background()

	for _, rec := range ds.Records {
		comps, err := s.Compositions(ctx, rec.EHR.ID, "")
		require.NoError(t, err)
		require.Len(t, comps, len(rec.Compositions))

		for i, want := range rec.Compositions {
			got := comps[i]
			assert.Equal(t, want.UID, got.UID)
			assert.Equal(t, want.EHRID, got.EHRID)
			assert.Equal(t, want.ArchetypeNodeID, got.ArchetypeNodeID)
			assert.Equal(t, want.TemplateID, got.TemplateID)
			assert.Equal(t, canonical(t, want.Body), canonical(t, got.Body))
		}
	}
}

func TestCompositions_ArchetypeFilter(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	ds := testutil.Dataset(testutil.EHR("e-1",
		testutil.Composition("c-1", testutil.MinimalComposition),
		testutil.Composition("c-2", "openEHR-EHR-COMPOSITION.other.v1"),
		testutil.Composition("c-3", testutil.MinimalComposition),
	))
	_, err := s.Import(ctx, ds)
	require.NoError(t, err)

	comps, err := s.Compositions(ctx, "e-1", testutil.MinimalComposition)
	require.NoError(t, err)
	require.Len(t, comps, 2)
	assert.Equal(t, "c-1", comps[0].UID)
	assert.Equal(t, "c-3", comps[1].UID)

	comps, err = s.Compositions(ctx, "e-1", "openEHR-EHR-COMPOSITION.absent.v1")
	require.NoError(t, err)
	assert.Empty(t, comps, "a filter that matches nothing is not an error")
}

func TestCompositions_UnknownEHR(t *testing.T) {
	s, _ := loadFixtureStore(t)

	_, err := s.Compositions(context.Background(), "no-such-ehr", "")
	assert.ErrorIs(t, err, record.ErrNotFound)

	comps, err := s.Compositions(context.Background(), testutil.FixtureEHR3, "")
	require.NoError(t, err, "an EHR without compositions is not missing")
	assert.Empty(t, comps)
}

func TestEntries_Walk(t *testing.T) {
	s := createTestStore(t)
	obs := testutil.Observation(testutil.MinimalObservation, testutil.Text("v"))
	comp := testutil.Composition("c-1", testutil.MinimalComposition, obs)

	got, err := s.Entries(context.Background(), comp, "OBSERVATION", "")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, testutil.MinimalObservation, got[0].Text("archetype_node_id"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Entries(ctx, comp, "OBSERVATION", "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStore_MatchesSnapshot(t *testing.T) {
	s, ds := loadFixtureStore(t)
	snap := record.NewSnapshot(ds)

	queries := []string{
		"SELECT e/ehr_id/value, c/uid/value FROM EHR e CONTAINS COMPOSITION c",
		"SELECT c/uid/value FROM EHR e CONTAINS COMPOSITION c [openEHR-EHR-COMPOSITION.minimal.v1]",
		"SELECT o/data[at0001]/events[at0002]/data[at0003]/items[at0004]/value FROM OBSERVATION o",
		"SELECT s/is_queryable FROM EHR e CONTAINS EHR_STATUS s",
		"SELECT a/ism_transition/current_state/value FROM EHR e CONTAINS ACTION a",
		"SELECT c/uid/value AS uid FROM COMPOSITION c ORDER BY uid DESC LIMIT 3 OFFSET 1",
	}

	for _, q := range queries {
		t.Run(q, func(t *testing.T) {
			fromStore, err := engine.New(s, engine.WithWorkers(4)).Execute(context.Background(), engine.Request{Query: q})
			require.NoError(t, err)
			fromSnapshot, err := engine.New(snap).Execute(context.Background(), engine.Request{Query: q})
			require.NoError(t, err)

			a, err := json.Marshal(fromStore)
			require.NoError(t, err)
			b, err := json.Marshal(fromSnapshot)
			require.NoError(t, err)
			assert.JSONEq(t, string(b), string(a))
			assert.NotEmpty(t, fromStore.Rows)
		})
	}
}

func TestStore_ExactNumbers(t *testing.T) {
	s, _ := loadFixtureStore(t)

	res, err := engine.New(s).Execute(context.Background(), engine.Request{
		Query: "SELECT v/data[at0001]/items[at0002]/value/magnitude AS m FROM EVALUATION v",
	})
	require.NoError(t, err)

	data, err := json.Marshal(res)
	require.NoError(t, err)
	assert.Contains(t, string(data), "37.50")
}
