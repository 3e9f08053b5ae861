package record

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/aqlengine/internal/ir"
)

// Dataset is a decoded record fixture: EHRs with their compositions, in
// file order.
type Dataset struct {
	Records []Record
}

// Record groups one EHR with its compositions.
type Record struct {
	EHR          EHR
	Compositions []Composition
}

// IDFunc generates identifiers for EHRs and compositions that lack one.
type IDFunc func() string

// datasetFile is the on-disk shape. JSON files decode through the same path
// since JSON is valid YAML.
//
// Example:
//
//	ehrs:
//	  - ehr_id: dd616472-9432-4004-ad85-fd47affb1cc8
//	    system_id: local.aqlengine
//	    time_created: "2024-03-01T10:00:00Z"
//	    ehr_status: {_type: EHR_STATUS, is_queryable: true}
//	    compositions:
//	      - _type: COMPOSITION
//	        archetype_node_id: openEHR-EHR-COMPOSITION.minimal.v1
//	        ...
type datasetFile struct {
	EHRs []ehrDoc `yaml:"ehrs"`
}

type ehrDoc struct {
	EHRID        string      `yaml:"ehr_id"`
	SystemID     string      `yaml:"system_id"`
	TimeCreated  string      `yaml:"time_created"`
	Status       yaml.Node   `yaml:"ehr_status"`
	Compositions []yaml.Node `yaml:"compositions"`
}

// LoadDataset reads a dataset file. See Decode.
func LoadDataset(path string, newID IDFunc) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	ds, err := Decode(f, newID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ds, nil
}

// Decode reads a YAML or JSON dataset.
//
// Numbers keep their exact decimal text. Unknown top-level or EHR fields are
// rejected. EHRs without ehr_id and compositions without uid get identifiers
// from newID; with a nil newID they are an error.
func Decode(r io.Reader, newID IDFunc) (*Dataset, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var file datasetFile
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return &Dataset{}, nil
		}
		return nil, fmt.Errorf("decode dataset: %w", err)
	}

	ds := &Dataset{Records: make([]Record, 0, len(file.EHRs))}
	seen := make(map[string]bool)
	for i, doc := range file.EHRs {
		rec, err := buildRecord(doc, newID)
		if err != nil {
			return nil, fmt.Errorf("ehr %d: %w", i, err)
		}
		if seen[rec.EHR.ID] {
			return nil, fmt.Errorf("ehr %d: duplicate ehr_id %s", i, rec.EHR.ID)
		}
		seen[rec.EHR.ID] = true
		ds.Records = append(ds.Records, rec)
	}
	return ds, nil
}

func buildRecord(doc ehrDoc, newID IDFunc) (Record, error) {
	id := doc.EHRID
	if id == "" {
		if newID == nil {
			return Record{}, errors.New("missing ehr_id")
		}
		id = newID()
	}

	var status ir.Object
	if doc.Status.Kind != 0 {
		v, err := ValueFromNode(&doc.Status)
		if err != nil {
			return Record{}, fmt.Errorf("ehr_status: %w", err)
		}
		obj, ok := v.(ir.Object)
		if !ok {
			return Record{}, fmt.Errorf("ehr_status: expected mapping, got %s", ir.KindOf(v))
		}
		if _, typed := obj["_type"]; !typed {
			obj["_type"] = ir.String("EHR_STATUS")
		}
		status = obj
	}

	rec := Record{EHR: EHR{
		ID:          id,
		SystemID:    doc.SystemID,
		TimeCreated: doc.TimeCreated,
		Body:        NewEHRBody(id, doc.SystemID, doc.TimeCreated, status),
	}}

	for j := range doc.Compositions {
		body, err := compositionBody(&doc.Compositions[j], newID)
		if err != nil {
			return Record{}, fmt.Errorf("composition %d: %w", j, err)
		}
		rec.Compositions = append(rec.Compositions, NewComposition(id, body))
	}
	return rec, nil
}

func compositionBody(node *yaml.Node, newID IDFunc) (ir.Object, error) {
	v, err := ValueFromNode(node)
	if err != nil {
		return nil, err
	}
	body, ok := v.(ir.Object)
	if !ok {
		return nil, fmt.Errorf("expected mapping, got %s", ir.KindOf(v))
	}
	switch t := body.Text("_type"); t {
	case "":
		body["_type"] = ir.String("COMPOSITION")
	case "COMPOSITION":
	default:
		return nil, fmt.Errorf("_type must be COMPOSITION, got %s", t)
	}
	if body.DigText("uid", "value") == "" {
		if newID == nil {
			return nil, errors.New("missing uid/value")
		}
		body["uid"] = ir.NewObject(
			ir.O("_type", ir.String("OBJECT_VERSION_ID")),
			ir.O("value", ir.String(newID()+"::aqlengine::1")),
		)
	}
	return body, nil
}

// ValueFromNode converts a YAML node tree to an ir.Value. Integer and float
// scalars become exact Numbers; timestamps and other tagged scalars stay
// strings.
func ValueFromNode(n *yaml.Node) (ir.Value, error) {
	switch n.Kind {
	case 0:
		return ir.Null{}, nil
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return ir.Null{}, nil
		}
		return ValueFromNode(n.Content[0])
	case yaml.AliasNode:
		return ValueFromNode(n.Alias)
	case yaml.MappingNode:
		obj := make(ir.Object, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			key := n.Content[i]
			if key.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("line %d: mapping key must be a scalar", key.Line)
			}
			v, err := ValueFromNode(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			obj[key.Value] = v
		}
		return obj, nil
	case yaml.SequenceNode:
		list := make(ir.List, 0, len(n.Content))
		for _, item := range n.Content {
			v, err := ValueFromNode(item)
			if err != nil {
				return nil, err
			}
			list = append(list, v)
		}
		return list, nil
	case yaml.ScalarNode:
		return scalarValue(n)
	default:
		return nil, fmt.Errorf("line %d: unsupported YAML node kind %d", n.Line, n.Kind)
	}
}

func scalarValue(n *yaml.Node) (ir.Value, error) {
	switch n.ShortTag() {
	case "!!null":
		return ir.Null{}, nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return ir.Bool(b), nil
	case "!!int", "!!float":
		num, err := ir.NewNumber(n.Value)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return num, nil
	default:
		return ir.String(n.Value), nil
	}
}
