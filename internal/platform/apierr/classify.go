package apierr

import "strings"

// Category groups failures for observability. It is a label, not an HTTP status.
type Category string

const (
	CategoryValidation Category = "validation"
	CategoryUpstream   Category = "upstream"
	CategoryInternal   Category = "internal"
	// CategoryAuth is only assigned explicitly on the 401 path; Classify never returns it.
	CategoryAuth Category = "auth"
)

func (c Category) String() string { return string(c) }

var (
	validationMarkers = []string{"validation", "required", "invalid"}
	upstreamMarkers   = []string{"timeout", "network", "upstream"}
)

// Classify maps an arbitrary failure to a category by matching its message.
// Values that are not errors are always internal. The match is a heuristic;
// validation markers win over upstream ones.
func Classify(v any) Category {
	err, ok := v.(error)
	if !ok || err == nil {
		return CategoryInternal
	}
	msg := strings.ToLower(err.Error())
	if containsAny(msg, validationMarkers) {
		return CategoryValidation
	}
	if containsAny(msg, upstreamMarkers) {
		return CategoryUpstream
	}
	return CategoryInternal
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
