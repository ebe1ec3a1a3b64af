package util

import "strings"

// Temporal default keywords understood by the server.
const (
	DefaultToday = "TODAY"
	DefaultNow   = "NOW"
)

var temporalDefaults = map[string]string{
	"TODAY":     DefaultToday,
	"NOW":       DefaultNow,
	"NOW()":     DefaultNow,
	"CURDATE()": DefaultToday,
}

// TemporalDefault reports whether raw is a dynamic date default and returns
// its canonical keyword.
func TemporalDefault(raw string) (string, bool) {
	kw, ok := temporalDefaults[strings.ToUpper(strings.TrimSpace(raw))]
	return kw, ok
}
