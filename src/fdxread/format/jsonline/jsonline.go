// Package jsonline renders decoded events as one JSON object per line,
// with the class name carried as a "class" field alongside the
// measurements.
package jsonline

import (
	"encoding/json"

	"github.com/lkarsten/fdxread/src/fdxread/event"
)

// Formatter renders events as JSON lines. It holds no state between
// calls; every event is encoded independently.
type Formatter struct{}

// New returns a stateless JSON-line Formatter.
func New() *Formatter { return &Formatter{} }

// line is the on-wire shape: the class name plus every measurement
// keyed by its Measurement.Key, each value already knowing how to
// marshal its own NaN sentinel as JSON null (event.Value.MarshalJSON).
type line struct {
	Class  string                 `json:"class"`
	Values map[string]event.Value `json:"-"`
}

func (l line) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(l.Values)+1)
	out["class"] = l.Class
	for k, v := range l.Values {
		out[k] = v
	}
	return json.Marshal(out)
}

// Format renders ev as a single line of JSON, without a trailing
// newline (the caller appends one per its own line-writing policy).
func (f *Formatter) Format(ev event.Event) ([]byte, error) {
	l := line{Class: ev.Class, Values: ev.Map()}
	return json.Marshal(l)
}
