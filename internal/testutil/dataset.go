package testutil

import (
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/aqlengine/internal/ir"
	"github.com/roach88/aqlengine/internal/record"
)

// Identifiers used by the shared fixture.
const (
	FixtureEHR1 = "dd616472-9432-4004-ad85-fd47affb1cc8"
	FixtureEHR2 = "4f7c1a52-5a8e-4b9c-9d0e-2c6b8e3f1a77"
	FixtureEHR3 = "b2e4d6f8-1357-4a9b-8c0d-e1f2a3b4c5d6"

	MinimalComposition = "openEHR-EHR-COMPOSITION.minimal.v1"
	MinimalObservation = "openEHR-EHR-OBSERVATION.minimal.v1"
)

// RepoPath resolves a path relative to the module root.
func RepoPath(elem ...string) string {
	_, file, _, _ := runtime.Caller(0)
	root := filepath.Join(filepath.Dir(file), "..", "..")
	return filepath.Join(append([]string{root}, elem...)...)
}

// LoadFixture decodes a dataset from testdata/datasets.
func LoadFixture(t testing.TB, name string) *record.Dataset {
	t.Helper()
	ds, err := record.LoadDataset(RepoPath("testdata", "datasets", name), nil)
	require.NoError(t, err)
	return ds
}

// Dataset groups records into a dataset.
func Dataset(records ...record.Record) *record.Dataset {
	return &record.Dataset{Records: records}
}

// EHR builds a record with the given compositions.
func EHR(id string, compositions ...ir.Object) record.Record {
	status := ir.NewObject(
		ir.O("_type", ir.String("EHR_STATUS")),
		ir.O("archetype_node_id", ir.String("openEHR-EHR-EHR_STATUS.generic.v1")),
		ir.O("is_queryable", ir.Bool(true)),
	)
	rec := record.Record{EHR: record.EHR{
		ID:       id,
		SystemID: "local.test",
		Body:     record.NewEHRBody(id, "local.test", "", status),
	}}
	for _, body := range compositions {
		rec.Compositions = append(rec.Compositions, record.NewComposition(id, body))
	}
	return rec
}

// EmptyEHRs builds n records without compositions, ids from gen.
func EmptyEHRs(gen *SequentialIDs, n int) []record.Record {
	out := make([]record.Record, n)
	for i := range out {
		out[i] = EHR(gen.Next())
	}
	return out
}

// Composition builds a COMPOSITION body holding content entries.
func Composition(uid, archetypeID string, content ...ir.Object) ir.Object {
	items := make(ir.List, len(content))
	for i, c := range content {
		items[i] = c
	}
	return ir.NewObject(
		ir.O("_type", ir.String("COMPOSITION")),
		ir.O("uid", ir.NewObject(ir.O("_type", ir.String("OBJECT_VERSION_ID")), ir.O("value", ir.String(uid)))),
		ir.O("archetype_node_id", ir.String(archetypeID)),
		ir.O("name", Text("Minimal")),
		ir.O("content", items),
	)
}

// Observation builds a minimal OBSERVATION whose single element holds value
// at data[at0001]/events[at0002]/data[at0003]/items[at0004]/value.
func Observation(archetypeID string, value ir.Value) ir.Object {
	element := ir.NewObject(
		ir.O("_type", ir.String("ELEMENT")),
		ir.O("archetype_node_id", ir.String("at0004")),
		ir.O("value", value),
	)
	tree := ir.NewObject(
		ir.O("_type", ir.String("ITEM_TREE")),
		ir.O("archetype_node_id", ir.String("at0003")),
		ir.O("items", ir.NewList(element)),
	)
	event := ir.NewObject(
		ir.O("_type", ir.String("POINT_EVENT")),
		ir.O("archetype_node_id", ir.String("at0002")),
		ir.O("data", tree),
	)
	history := ir.NewObject(
		ir.O("_type", ir.String("HISTORY")),
		ir.O("archetype_node_id", ir.String("at0001")),
		ir.O("events", ir.NewList(event)),
	)
	return ir.NewObject(
		ir.O("_type", ir.String("OBSERVATION")),
		ir.O("archetype_node_id", ir.String(archetypeID)),
		ir.O("name", Text("Minimal")),
		ir.O("data", history),
	)
}

// Text builds a DV_TEXT.
func Text(s string) ir.Object {
	return ir.NewObject(ir.O("_type", ir.String("DV_TEXT")), ir.O("value", ir.String(s)))
}

// Quantity builds a DV_QUANTITY.
func Quantity(magnitude, units string) ir.Object {
	return ir.NewObject(
		ir.O("_type", ir.String("DV_QUANTITY")),
		ir.O("magnitude", ir.MustNumber(magnitude)),
		ir.O("units", ir.String(units)),
	)
}
