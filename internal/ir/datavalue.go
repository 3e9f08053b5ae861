package ir

import (
	"regexp"
	"strings"
	"time"

	"github.com/cockroachdb/apd/v3"
)

// leafField maps openEHR data value types to the field that carries their
// comparable leaf. Types not listed compare structurally.
var leafField = map[string]string{
	"DV_TEXT":       "value",
	"DV_CODED_TEXT": "value",
	"DV_DATE_TIME":  "value",
	"DV_DATE":       "value",
	"DV_TIME":       "value",
	"DV_DURATION":   "value",
	"DV_URI":        "value",
	"DV_EHR_URI":    "value",
	"DV_BOOLEAN":    "value",
	"DV_ORDINAL":    "value",
	"DV_SCALE":      "value",
	"DV_QUANTITY":   "magnitude",
	"DV_COUNT":      "magnitude",
	"DV_PROPORTION": "numerator",
	"DV_IDENTIFIER": "id",
	"DV_PARSABLE":   "value",
	"DV_STATE":      "value",
	"DV_INTERVAL":   "",
	"DV_MULTIMEDIA": "",
	"DV_PARAGRAPH":  "",
}

// DataValueType returns the `_type` of v when v is an openEHR data value
// object (DV_*), or "".
func DataValueType(v Value) string {
	obj, ok := v.(Object)
	if !ok {
		return ""
	}
	t := obj.Text("_type")
	if !strings.HasPrefix(t, "DV_") {
		return ""
	}
	return t
}

// Leaf reduces a data value object to the scalar it is compared by:
// DV_QUANTITY to its magnitude, DV_CODED_TEXT to its value and so on.
// Any other value is returned unchanged.
func Leaf(v Value) Value {
	t := DataValueType(v)
	if t == "" {
		return OrNull(v)
	}
	field, ok := leafField[t]
	if !ok || field == "" {
		return v
	}
	inner, ok := v.(Object)[field]
	if !ok {
		return Null{}
	}
	switch inner.(type) {
	case Object, List:
		return v
	}
	return OrNull(inner)
}

// temporalLayouts are the ISO 8601 shapes recognized for chronological
// comparison. Zone-less values are read as UTC.
var temporalLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
	"20060102T150405.999999999Z0700",
	"20060102T150405.999999999",
	"2006-01-02",
	"2006-01",
	"15:04:05.999999999Z07:00",
	"15:04:05.999999999",
	"15:04",
}

// ParseTemporal parses an ISO 8601 date, time or date-time.
func ParseTemporal(s string) (time.Time, bool) {
	if len(s) < 5 || !isDigit(s[0]) {
		return time.Time{}, false
	}
	for _, layout := range temporalLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

var durationPattern = regexp.MustCompile(
	`^(-)?P(?:(\d+(?:[.,]\d+)?)Y)?(?:(\d+(?:[.,]\d+)?)M)?(?:(\d+(?:[.,]\d+)?)W)?(?:(\d+(?:[.,]\d+)?)D)?` +
		`(?:T(?:(\d+(?:[.,]\d+)?)H)?(?:(\d+(?:[.,]\d+)?)M)?(?:(\d+(?:[.,]\d+)?)S)?)?$`)

// Nominal lengths in seconds for year, month, week, day, hour, minute, second.
// Years and months use the Gregorian averages so durations order sensibly.
var durationUnits = []int64{31556952, 2629746, 604800, 86400, 3600, 60, 1}

var durationContext = apd.BaseContext.WithPrecision(34)

// ParseDuration parses an ISO 8601 duration ("PT1H", "P1Y2M", "-P3D") into
// its nominal length in seconds.
func ParseDuration(s string) (*apd.Decimal, bool) {
	m := durationPattern.FindStringSubmatch(s)
	if m == nil || strings.HasSuffix(s, "T") || s == "P" || s == "-P" {
		return nil, false
	}

	total := new(apd.Decimal)
	seen := false
	for i, unit := range durationUnits {
		part := m[i+2]
		if part == "" {
			continue
		}
		seen = true
		n, _, err := apd.NewFromString(strings.Replace(part, ",", ".", 1))
		if err != nil {
			return nil, false
		}
		var scaled apd.Decimal
		if _, err := durationContext.Mul(&scaled, n, apd.New(unit, 0)); err != nil {
			return nil, false
		}
		if _, err := durationContext.Add(total, total, &scaled); err != nil {
			return nil, false
		}
	}
	if !seen {
		return nil, false
	}
	if m[1] == "-" {
		total.Neg(total)
	}
	return total, true
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
