package stream

import (
	"fmt"
	"math/big"
	"strings"
	"time"
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// Compare orders two replication-key values. Values that both parse as
// timestamps compare chronologically, values that both parse as numbers
// compare numerically, and anything else compares as text.
func Compare(a, b interface{}) int {
	as, bs := text(a), text(b)

	if ta, ok := parseTime(as); ok {
		if tb, ok := parseTime(bs); ok {
			return ta.Compare(tb)
		}
	}

	if na, ok := new(big.Float).SetString(as); ok {
		if nb, ok := new(big.Float).SetString(bs); ok {
			return na.Cmp(nb)
		}
	}

	return strings.Compare(as, bs)
}

func text(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

func parseTime(s string) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Watermark tracks the highest replication-key value seen in a run. It
// never moves backwards.
type Watermark struct {
	value interface{}
}

// NewWatermark starts at the resolved starting value, which may be nil.
func NewWatermark(start interface{}) *Watermark {
	if s, ok := start.(string); ok && s == "" {
		start = nil
	}
	return &Watermark{value: start}
}

// Observe advances the watermark to v if v is greater. Nil and empty
// values are ignored. It reports whether the watermark moved.
func (w *Watermark) Observe(v interface{}) bool {
	if v == nil {
		return false
	}
	if s, ok := v.(string); ok && s == "" {
		return false
	}
	if w.value == nil || Compare(v, w.value) > 0 {
		w.value = v
		return true
	}
	return false
}

// Value returns the current watermark, nil when unbound.
func (w *Watermark) Value() interface{} {
	return w.value
}

// AsTime interprets a replication-key value as a timestamp.
func AsTime(v interface{}) (time.Time, bool) {
	if v == nil {
		return time.Time{}, false
	}
	return parseTime(text(v))
}
