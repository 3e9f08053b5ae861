package archetype

import (
	"fmt"
	"regexp"
)

// ID is a parsed archetype identifier such as
// openEHR-EHR-OBSERVATION.blood_pressure.v2.
type ID struct {
	Publisher string // openEHR
	Package   string // EHR
	RMType    string // OBSERVATION
	Concept   string // blood_pressure
	Version   string // v2
}

var idPattern = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9_]*)-([A-Za-z][A-Za-z0-9_]*)-([A-Z][A-Z0-9_]*)\.([A-Za-z0-9_][A-Za-z0-9_-]*)\.(v\d+(?:\.\d+)*)$`)

// ParseID splits an archetype id into its parts.
func ParseID(s string) (ID, error) {
	m := idPattern.FindStringSubmatch(s)
	if m == nil {
		return ID{}, fmt.Errorf("invalid archetype id %q", s)
	}
	return ID{Publisher: m[1], Package: m[2], RMType: m[3], Concept: m[4], Version: m[5]}, nil
}

func (id ID) String() string {
	return fmt.Sprintf("%s-%s-%s.%s.%s", id.Publisher, id.Package, id.RMType, id.Concept, id.Version)
}
