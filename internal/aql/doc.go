// Package aql parses Archetype Query Language text into a queryir.Query.
//
// Supported surface:
//
//	SELECT c/uid/value AS uid, o/data[at0001]/events[at0002]/data[at0003]/items[at0004]/value/value
//	FROM EHR e [ehr_id/value=$ehr_id]
//	  CONTAINS COMPOSITION c [openEHR-EHR-COMPOSITION.minimal.v1]
//	  CONTAINS OBSERVATION o [$archetype]
//	WHERE o/.../value/value matches {'a', 'b'} AND NOT uid = 'x'
//	ORDER BY uid DESC
//	LIMIT 10 OFFSET 20
//
// Keywords are case-insensitive. Whitespace, including newlines, only
// separates tokens. Parse never evaluates anything: parameters stay as
// *queryir.Param operands and are bound by the engine.
package aql
