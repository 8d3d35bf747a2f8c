package normalize

import "strings"

// sentinels are cell values meaning "not applicable". Matching is
// case-sensitive and happens after trimming.
var sentinels = map[string]struct{}{
	"X":   {},
	"":    {},
	"N/A": {},
	"-":   {},
}

// Value trims a raw cell and converts sentinel markers to nil. Any other
// value is returned trimmed and otherwise untouched; amounts stay strings so
// the source formatting survives.
func Value(raw string) *string {
	s := strings.TrimSpace(raw)
	if _, ok := sentinels[s]; ok {
		return nil
	}
	return &s
}

// IsSentinel reports whether raw normalizes to an absent value.
func IsSentinel(raw string) bool {
	_, ok := sentinels[strings.TrimSpace(raw)]
	return ok
}
