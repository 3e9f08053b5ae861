package record

import (
	"context"
	"errors"

	"github.com/roach88/aqlengine/internal/ir"
)

// ErrNotFound is returned when a requested EHR does not exist.
var ErrNotFound = errors.New("record: not found")

// EHR is the typed view of one electronic health record.
//
// Body is the object paths navigate from an EHR variable:
//
//	{"_type": "EHR", "ehr_id": {"value": ...}, "system_id": {"value": ...},
//	 "time_created": {"value": ...}, "ehr_status": {...}}
type EHR struct {
	ID          string
	SystemID    string
	TimeCreated string
	Body        ir.Object
}

// Status returns the EHR_STATUS object, or nil when the EHR carries none.
func (e EHR) Status() ir.Object {
	status, _ := e.Body["ehr_status"].(ir.Object)
	return status
}

// Composition is the typed view of one composition. Body holds the
// composition in canonical openEHR JSON shape, including its content tree.
type Composition struct {
	UID             string
	EHRID           string
	ArchetypeNodeID string
	TemplateID      string
	Body            ir.Object
}

// Source is read access to an immutable record snapshot.
//
// Filters match archetype_node_id exactly; "" means no filter. A filter that
// matches nothing yields an empty slice, never an error. Results are in
// declared order. Implementations must be safe for concurrent use.
type Source interface {
	// EHRs lists every EHR.
	EHRs(ctx context.Context) ([]EHR, error)

	// Compositions lists the compositions of one EHR.
	Compositions(ctx context.Context, ehrID, archetypeID string) ([]Composition, error)

	// Entries lists nodes of the given RM type beneath parent, in pre-order.
	Entries(ctx context.Context, parent ir.Object, rmType, archetypeID string) ([]ir.Object, error)
}

// NewEHRBody builds the navigable object for an EHR from its identity fields.
func NewEHRBody(id, systemID, timeCreated string, status ir.Object) ir.Object {
	body := ir.NewObject(
		ir.O("_type", ir.String("EHR")),
		ir.O("ehr_id", ir.NewObject(ir.O("_type", ir.String("HIER_OBJECT_ID")), ir.O("value", ir.String(id)))),
		ir.O("system_id", ir.NewObject(ir.O("_type", ir.String("HIER_OBJECT_ID")), ir.O("value", ir.String(systemID)))),
	)
	if timeCreated != "" {
		body["time_created"] = ir.NewObject(ir.O("_type", ir.String("DV_DATE_TIME")), ir.O("value", ir.String(timeCreated)))
	}
	if status != nil {
		body["ehr_status"] = status
	}
	return body
}

// NewComposition derives the typed view from a composition body.
func NewComposition(ehrID string, body ir.Object) Composition {
	return Composition{
		UID:             body.DigText("uid", "value"),
		EHRID:           ehrID,
		ArchetypeNodeID: body.Text("archetype_node_id"),
		TemplateID:      body.DigText("archetype_details", "template_id", "value"),
		Body:            body,
	}
}
