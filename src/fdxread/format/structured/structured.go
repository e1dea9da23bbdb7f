// Package structured renders decoded events as SignalK-style delta
// documents: dotted hierarchical keys ("environment.wind.angleApparent",
// "navigation.position.latitude") carrying SI units (radians, meters,
// m/s, Kelvin, Pa).
package structured

import (
	"encoding/json"
	"math"

	"github.com/lkarsten/fdxread/src/fdxread/event"
)

// PathValue is one SignalK-style delta update: a dotted path and its
// SI-unit value. A measurement that is a NaN sentinel (no reading)
// produces no PathValue at all -- its path is omitted from the delta.
type PathValue struct {
	Path  string      `json:"path"`
	Value interface{} `json:"value"`
}

// Delta is a minimal SignalK delta document: one update batch holding
// every non-NaN path this event produced.
type Delta struct {
	Values []PathValue `json:"values"`
}

func (d Delta) MarshalJSON() ([]byte, error) {
	type update struct {
		Values []PathValue `json:"values"`
	}
	return json.Marshal(struct {
		Updates []update `json:"updates"`
	}{Updates: []update{{Values: d.Values}}})
}

// Formatter renders events as structured deltas. It holds no state:
// every event is mapped independently, unlike format/sentence which
// must accumulate gps_time/gps_position across events.
type Formatter struct{}

// New returns a stateless structured-delta Formatter.
func New() *Formatter { return &Formatter{} }

// Format renders ev as a Delta. ok is false when the class has no
// known path mapping (an unrecognized class) or when every mapped
// measurement is a NaN sentinel, leaving no path to report. A valid
// gps_time maps to navigation.datetime.
func (f *Formatter) Format(ev event.Event) (Delta, bool) {
	var out []PathValue
	add := func(path string, v event.Value, conv func(event.Value) float64) {
		if v == nil || v.IsNaN() {
			return
		}
		out = append(out, PathValue{Path: path, Value: conv(v)})
	}

	switch ev.Class {
	case "wind_apparent":
		aws, _ := ev.Get("aws")
		awa, _ := ev.Get("awa")
		add("environment.wind.speedApparent", aws, speedMPS)
		add("environment.wind.angleApparent", awa, angleRad)

	case "depth":
		depth, _ := ev.Get("depth")
		stw, _ := ev.Get("stw")
		add("environment.depth.belowTransducer", depth, scalarFloat)
		add("navigation.speedThroughWater", stw, speedMPS)

	case "gps_position":
		pos, ok := ev.Get("position")
		if ok && !pos.IsNaN() {
			p := pos.(event.Position)
			out = append(out,
				PathValue{Path: "navigation.position.latitude", Value: p.LatDegrees},
				PathValue{Path: "navigation.position.longitude", Value: p.LonDegrees})
		}
		elev, _ := ev.Get("elevation")
		add("navigation.gnss.antennaAltitude", elev, scalarFloat)

	case "gps_cog_sog":
		sog, _ := ev.Get("sog")
		cog, _ := ev.Get("cog")
		add("navigation.speedOverGround", sog, speedMPS)
		add("navigation.courseOverGroundTrue", cog, angleRad)

	case "gps_time":
		if v, ok := ev.Get("utctime"); ok {
			if inst, ok := v.(event.Instant); ok && inst.Valid {
				out = append(out, PathValue{Path: "navigation.datetime", Value: inst.Time})
			}
		}

	case "environment":
		pressure, _ := ev.Get("airpressure")
		temp, _ := ev.Get("temp_c")
		add("environment.outside.pressure", pressure, pressurePa)
		add("environment.outside.temperature", temp, tempKelvin)
	}

	if len(out) == 0 {
		return Delta{}, false
	}
	return Delta{Values: out}, true
}

func speedMPS(v event.Value) float64 {
	s := v.(event.Speed)
	return s.MetersPerSecond()
}

func angleRad(v event.Value) float64 {
	a := v.(event.Angle)
	return a.Radians()
}

func pressurePa(v event.Value) float64 {
	p := v.(event.Pressure)
	return p.Pascals()
}

func tempKelvin(v event.Value) float64 {
	t := v.(event.Temperature)
	return t.Kelvin()
}

func scalarFloat(v event.Value) float64 {
	switch t := v.(type) {
	case event.Distance:
		return float64(t)
	case event.Scalar:
		return float64(t)
	default:
		return math.NaN()
	}
}
