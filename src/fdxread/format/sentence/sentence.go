// Package sentence renders decoded events as maritime ASCII sentences
// (an NMEA0183-like wire format): "$" payload "*" XOR checksum, with
// the composite $GPRMC/$GPHDT pair assembled only once a gps_time and
// a gps_position have both been observed.
package sentence

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/lkarsten/fdxread/src/fdxread/event"
)

// Formatter accumulates the latest GPS time and position so it can
// compose $GPRMC/$GPHDT once both are known. It is not safe for
// concurrent use.
type Formatter struct {
	gpsTime  time.Time
	haveTime bool
	lat, lon float64
	haveFix  bool
}

// New returns a Formatter with no session state yet accumulated.
func New() *Formatter { return &Formatter{} }

// Format renders ev as zero or more "$...*hh" sentences joined by
// "\r\n". ok is false when the event produces no sentence at all (a
// bare gps_time or gps_position update only feeds session state).
func (f *Formatter) Format(ev event.Event) (string, bool) {
	var sentences []string

	switch ev.Class {
	case "depth":
		depth, _ := ev.Get("depth")
		stw, _ := ev.Get("stw")
		sentences = append(sentences,
			fmt.Sprintf("$SDDBT,,f,%s,m,,F", formatFixed(depth, 2)),
			fmt.Sprintf("$SDVHW,0.0,T,0.0,M,%s,N,0.0,K", formatFixed(stw, 2)),
		)

	case "gps_time":
		if v, ok := ev.Get("utctime"); ok {
			if inst, ok := v.(event.Instant); ok && inst.Valid {
				f.gpsTime = inst.Time
				f.haveTime = true
			}
		}

	case "gps_position":
		if v, ok := ev.Get("position"); ok {
			if pos, ok := v.(event.Position); ok && !pos.IsNaN() {
				f.lat, f.lon = pos.LatDegrees, pos.LonDegrees
				f.haveFix = true
			}
		}

	case "gps_cog_sog":
		if f.haveTime && f.haveFix {
			sog, _ := ev.Get("sog")
			cog, _ := ev.Get("cog")
			latStr, latHemi, lonStr, lonHemi := nmeaPosition(f.lat, f.lon)
			sentences = append(sentences,
				fmt.Sprintf("$GPRMC,%s,A,%s,%s,%s,%s,%s,%s,%s,0.0,E",
					f.gpsTime.Format("150405"), latStr, latHemi, lonStr, lonHemi,
					formatFixed(sog, 2), formatFixed(cog, 2), f.gpsTime.Format("020106")),
				fmt.Sprintf("$GPHDT,%s,T", formatFixed(cog, 2)),
			)
		}

	case "wind_apparent":
		awa, _ := ev.Get("awa")
		aws, _ := ev.Get("aws")
		sentences = append(sentences,
			fmt.Sprintf("$FVMWV,%s,R,%s,K,A", formatFixed(awa, 2), formatFixed(aws, 2)))

	case "environment":
		pressure, _ := ev.Get("airpressure")
		temp, _ := ev.Get("temp_c")
		sentences = append(sentences,
			fmt.Sprintf("$ZZXDR,P,%s,B,Barometer", formatFixed(pressure, 5)),
			fmt.Sprintf("$ZZXDR,C,%s,C,TempDir", formatFixed(temp, 2)))
	}

	if len(sentences) == 0 {
		return "", false
	}
	for i, s := range sentences {
		sentences[i] = checksum(s)
	}
	return strings.Join(sentences, "\r\n"), true
}

// nmeaPosition formats a signed lat/lon pair as NMEA
// degrees-plus-decimal-minutes, zero-padded to a 5-character minute
// field.
func nmeaPosition(lat, lon float64) (latStr, latHemi, lonStr, lonHemi string) {
	latHemi, lonHemi = "N", "E"
	if lat < 0 {
		latHemi = "S"
	}
	if lon < 0 {
		lonHemi = "W"
	}
	latStr = degreesDecimalMinutes(math.Abs(lat))
	lonStr = degreesDecimalMinutes(math.Abs(lon))
	return
}

func degreesDecimalMinutes(v float64) string {
	deg := math.Trunc(v)
	min := (v - deg) * 60
	return fmt.Sprintf("%d%05.2f", int(deg), min)
}

// checksum appends NMEA's "*hh" XOR checksum of everything after the
// leading '$'.
func checksum(sentence string) string {
	var c byte
	for i := 1; i < len(sentence); i++ {
		c ^= sentence[i]
	}
	return fmt.Sprintf("%s*%02X", sentence, c)
}

func formatFixed(v event.Value, prec int) string {
	f := valueFloat(v)
	if math.IsNaN(f) {
		return "0.0"
	}
	return fmt.Sprintf("%.*f", prec, f)
}

func valueFloat(v event.Value) float64 {
	switch t := v.(type) {
	case event.Scalar:
		return float64(t)
	case event.Distance:
		return float64(t)
	case event.Pressure:
		return float64(t)
	case event.Angle:
		return t.Degrees()
	case event.Speed:
		return t.Value
	case event.Temperature:
		return t.Celsius()
	default:
		return math.NaN()
	}
}
