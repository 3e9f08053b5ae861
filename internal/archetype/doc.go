// Package archetype loads archetype definitions from CUE files and answers the
// questions query validation asks of them.
//
// A definition file declares archetypes under the top-level archetype
// struct, keyed by archetype id:
//
//	archetype: "openEHR-EHR-OBSERVATION.minimal.v1": {
//		rm_type: "OBSERVATION"
//		concept: "Minimal"
//		nodes: {
//			at0001: {name: "Event Series", rm_type: "HISTORY"}
//			at0004: {name: "Text", rm_type: "ELEMENT"}
//		}
//	}
//
// Files are compiled independently, so a directory may mix CUE packages.
// An id declared in two files is a load error.
//
// Repository implements queryir.Schema. It is immutable after Load and safe
// for concurrent use.
package archetype
