package capture

import (
	"bytes"
	"encoding/json"
	"math"
	"time"
)

type TimestampKind int

const (
	TimestampUnknown TimestampKind = iota
	// TimestampEpoch is a bare number of epoch milliseconds.
	TimestampEpoch
	// TimestampProvider is a document-store timestamp object
	// ({"seconds","nanoseconds"} or {"_seconds","_nanoseconds"}) or an RFC 3339 string.
	TimestampProvider
)

func (k TimestampKind) String() string {
	switch k {
	case TimestampEpoch:
		return "epoch"
	case TimestampProvider:
		return "provider"
	default:
		return "unknown"
	}
}

// Timestamp is a created_at value in any of the shapes stored captures carry.
type Timestamp struct {
	Kind   TimestampKind
	Millis int64
}

type providerTimestamp struct {
	Seconds      *int64 `json:"seconds"`
	Nanoseconds  int64  `json:"nanoseconds"`
	USeconds     *int64 `json:"_seconds"`
	UNanoseconds int64  `json:"_nanoseconds"`
}

// UnmarshalJSON never fails; shapes it does not recognize become TimestampUnknown.
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	*t = ParseTimestamp(b)
	return nil
}

func ParseTimestamp(raw json.RawMessage) Timestamp {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return Timestamp{}
	}

	switch raw[0] {
	case '{':
		var p providerTimestamp
		if err := json.Unmarshal(raw, &p); err != nil {
			return Timestamp{}
		}
		switch {
		case p.Seconds != nil:
			return Timestamp{Kind: TimestampProvider, Millis: *p.Seconds*1000 + p.Nanoseconds/int64(time.Millisecond)}
		case p.USeconds != nil:
			return Timestamp{Kind: TimestampProvider, Millis: *p.USeconds*1000 + p.UNanoseconds/int64(time.Millisecond)}
		}
		return Timestamp{}
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Timestamp{}
		}
		ts, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return Timestamp{}
		}
		return Timestamp{Kind: TimestampProvider, Millis: ts.UnixMilli()}
	default:
		var f float64
		if err := json.Unmarshal(raw, &f); err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return Timestamp{}
		}
		return Timestamp{Kind: TimestampEpoch, Millis: int64(f)}
	}
}

// Resolve returns the epoch milliseconds, or now and false when the kind is unknown.
func (t Timestamp) Resolve(now time.Time) (int64, bool) {
	if t.Kind == TimestampUnknown {
		return now.UnixMilli(), false
	}
	return t.Millis, true
}
