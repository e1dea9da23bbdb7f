package decode

import (
	"math"
	"time"

	"github.com/lkarsten/fdxread/src/fdxread/event"
)

// classDef is one row of the static message-class table: the type
// code's declared total frame length (type + payload + trailer) and
// the pure function that turns a payload into an Event, a suppression
// decision, or an Error.
type classDef struct {
	name     string
	length   int
	decodeFn func(payload []byte) (event.Event, bool, *Error)
}

// classTable is keyed by the 24-bit type code read big-endian from a
// frame's first three bytes (e.g. "01 04 05" -> 0x010405).
var classTable = map[uint32]classDef{
	// --- physically meaningful classes -------------------------------

	0x010405: {"wind_apparent", 9, decodeWindApparent},
	0x070304: {"depth", 8, decodeDepth},
	0x200828: {"gps_position", 13, decodeGPSPosition},
	0x210425: {"gps_cog_sog", 9, decodeGPSCOGSOG},
	0x240723: {"gps_time", 12, decodeGPSTime},
	0x1a041e: {"environment", 9, decodeEnvironment},

	// --- known static heartbeats ------------------------------------

	0x170512: {"static2s_two", 10, decodeStaticHeartbeat([]byte{0x00, 0x80, 0xFF, 0xFF, 0xFF, 0x7F})},
	0x230526: {"static2s", 10, decodeStaticHeartbeat([]byte{0xFF, 0xFF, 0x00, 0x00, 0x80, 0x80})},

	// --- classes with a documented constant-field assumption ---------

	0x030102: {"gnd10msg4", 6, decodeAssumeZero},
	0x090108: {"windsignal", 6, decodeAssumeSpacerPair},

	// --- known-but-unused classes: recognized, always suppressed -----

	0x000202: {"emptymsg0", 7, decodeSuppressed},
	0x020301: {"dst200depth2", 8, decodeSuppressed},
	0x080109: {"static1s", 6, decodeSuppressed},
	0x110213: {"windstale", 7, decodeSuppressed},
	0x120416: {"winddup", 9, decodeSuppressed},
	0x130211: {"gpsping", 7, decodeSuppressed},
	0x150411: {"gnd10msg2", 9, decodeSuppressed},
	0x1c031f: {"wind40s", 8, decodeSuppressed},
	0x2c022e: {"dst200msg0", 7, decodeSuppressed},
	0x2d0528: {"service0", 10, decodeSuppressed},
	0x310938: {"windmsg7", 14, decodeSuppressed},
	0x350336: {"windmsg8", 8, decodeSuppressed},
	0x700373: {"windmsg3", 8, decodeSuppressed},
}

// decodeSuppressed backs every known-but-unused class: recognized by
// the table (so the framer can use its declared length) but carrying
// no measurement the rest of the system cares about.
func decodeSuppressed(payload []byte) (event.Event, bool, *Error) {
	return event.Event{}, true, nil
}

// decodeAssumeZero backs gnd10msg4 (0x030102), whose two-byte payload
// has only ever been observed all-zero. A violation is surfaced
// rather than silently decoded.
func decodeAssumeZero(payload []byte) (event.Event, bool, *Error) {
	if !allZero(payload) {
		return event.Event{}, false, &Error{Kind: AssumptionViolation, Detail: "expected zero payload"}
	}
	return event.Event{}, true, nil
}

// decodeAssumeSpacerPair backs windsignal (0x090108), whose two-byte
// payload is always a repeated byte (a spacer pair).
func decodeAssumeSpacerPair(payload []byte) (event.Event, bool, *Error) {
	if len(payload) != 2 || payload[0] != payload[1] {
		return event.Event{}, false, &Error{Kind: AssumptionViolation, Detail: "expected matching spacer pair"}
	}
	return event.Event{}, true, nil
}

// decodeStaticHeartbeat builds a decoder for one of the two static
// heartbeat classes: suppressed when the body exactly matches its
// known-idle constant, otherwise emitted as a first-class Event
// carrying the unexpected body as a fault annotation for
// observability.
func decodeStaticHeartbeat(idle []byte) func([]byte) (event.Event, bool, *Error) {
	return func(payload []byte) (event.Event, bool, *Error) {
		if allBytesEqual(payload, idle) {
			return event.Event{}, true, nil
		}
		ev := event.Event{Measurements: []event.Measurement{
			{Key: "fault", Value: event.Raw(append([]byte(nil), payload...))},
		}}
		return ev, false, nil
	}
}

func decodeWindApparent(payload []byte) (event.Event, bool, *Error) {
	aws := centi(leU16(payload, 0))
	awa := degree360over65536(leU16(payload, 2))
	ev := event.Event{Measurements: []event.Measurement{
		{Key: "aws", Value: event.Speed{Value: aws, Unit: event.Knots}},
		{Key: "awa", Value: event.Angle{Value: awa, Unit: event.Degrees}},
	}}
	return ev, false, nil
}

func decodeDepth(payload []byte) (event.Event, bool, *Error) {
	depth := centi(leU16(payload, 0))
	// Field identification is uncertain: a single raw byte, unscaled,
	// immediately following the depth field.
	stw := float64(payload[2])
	ev := event.Event{Measurements: []event.Measurement{
		{Key: "depth", Value: event.Distance(depth)},
		{Key: "stw", Value: event.Speed{Value: stw, Unit: event.Knots}},
	}}
	return ev, false, nil
}

func decodeGPSPosition(payload []byte) (event.Event, bool, *Error) {
	var lat, lon float64
	if allZero(payload[:6]) {
		lat, lon = math.NaN(), math.NaN()
	} else {
		latDeg := float64(payload[0])
		latMin := float64(leU16(payload, 1)) * 0.001
		lat = latDeg + latMin/60.0

		lonDeg := float64(payload[3])
		lonMin := float64(leU16(payload, 4)) * 0.001
		lon = lonDeg + lonMin/60.0
	}
	elevationFeet := float64(payload[8])
	elevation := elevationFeet * 0.3048

	ev := event.Event{Measurements: []event.Measurement{
		{Key: "position", Value: event.Position{LatDegrees: lat, LonDegrees: lon}},
		{Key: "elevation", Value: event.Distance(elevation)},
	}}
	return ev, false, nil
}

func decodeGPSCOGSOG(payload []byte) (event.Event, bool, *Error) {
	sog := centi(leU16(payload, 0))
	cog := degree360over255(payload[3])
	ev := event.Event{Measurements: []event.Measurement{
		{Key: "sog", Value: event.Speed{Value: sog, Unit: event.Knots}},
		{Key: "cog", Value: event.Angle{Value: cog, Unit: event.Degrees}},
	}}
	return ev, false, nil
}

func decodeGPSTime(payload []byte) (event.Event, bool, *Error) {
	if allBytesEqual(payload[:7], []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}) {
		ev := event.Event{Measurements: []event.Measurement{
			{Key: "utctime", Value: event.Instant{Valid: false}},
		}}
		return ev, false, nil
	}

	hour, minute, second := int(payload[0]), int(payload[1]), int(payload[2])
	day, month := int(payload[3]), int(payload[4])
	year := 1992 + int(leU16(payload, 5))

	// time.Date silently normalizes out-of-range components, so bounds
	// are checked up front; a nonsense date decodes to the NaN instant.
	var instant event.Instant
	if year > 1992 && year < 2150 &&
		month >= 1 && month <= 12 && day >= 1 && day <= 31 &&
		hour < 24 && minute < 60 && second < 60 {
		instant = event.Instant{
			Time:  time.Date(year, time.Month(month), day, hour, minute, second, 0, time.UTC),
			Valid: true,
		}
	}
	ev := event.Event{Measurements: []event.Measurement{
		{Key: "utctime", Value: instant},
	}}
	return ev, false, nil
}

func decodeEnvironment(payload []byte) (event.Event, bool, *Error) {
	if allBytesEqual(payload, []byte{0xFF, 0xFF, 0xFF, 0x40, 0xBF}) {
		return event.Event{}, true, nil
	}
	pressure := centi(leU16(payload, 0))
	tempF := float64(payload[4])
	ev := event.Event{Measurements: []event.Measurement{
		{Key: "airpressure", Value: event.Pressure(pressure)},
		{Key: "temp_c", Value: event.Temperature{Value: event.FahrenheitToCelsius(tempF), Unit: event.Celsius}},
	}}
	return ev, false, nil
}
