package store

import (
	"fmt"

	"github.com/roach88/aqlengine/internal/ir"
)

// marshalBody converts a record body to JSON TEXT for storage.
// Keys are sorted in RFC 8785 order. Numbers keep the scale they were written
// with, so this is not MarshalCanonical, which reduces 37.50 to 37.5.
func marshalBody(body ir.Object) (string, error) {
	if body == nil {
		body = ir.Object{}
	}
	data, err := ir.MarshalValue(body)
	if err != nil {
		return "", fmt.Errorf("marshal body: %w", err)
	}
	return string(data), nil
}

// unmarshalBody parses stored JSON TEXT to an Object.
// Numbers decode through json.Number so their exact decimal text survives.
func unmarshalBody(data string) (ir.Object, error) {
	if data == "" || data == "{}" {
		return ir.Object{}, nil
	}
	v, err := ir.UnmarshalValue([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal body: %w", err)
	}
	obj, ok := v.(ir.Object)
	if !ok {
		return nil, fmt.Errorf("unmarshal body: expected object, got %s", ir.KindOf(v))
	}
	return obj, nil
}
