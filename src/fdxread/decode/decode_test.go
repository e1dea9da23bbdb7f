package decode

import (
	"testing"
	"time"

	"github.com/lkarsten/fdxread/src/fdxread/event"
)

func TestDecodeGPSTime(t *testing.T) {
	frame := []byte{0x24, 0x07, 0x23, 0x0F, 0x1B, 0x17, 0x11, 0x08, 0x18, 0x00, 0x02, 0x81}
	res := Decode(frame)
	if res.Kind != ResultEvent {
		t.Fatalf("want ResultEvent, got %v (err=%v)", res.Kind, res.Err)
	}
	v, ok := res.Event.Get("utctime")
	if !ok {
		t.Fatalf("missing utctime measurement")
	}
	if v.IsNaN() {
		t.Fatalf("expected a valid timestamp")
	}
}

func TestDecodeGPSTime_Sentinel(t *testing.T) {
	frame := []byte{0x24, 0x07, 0x23, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x81}
	res := Decode(frame)
	if res.Kind != ResultEvent {
		t.Fatalf("want ResultEvent, got %v (err=%v)", res.Kind, res.Err)
	}
	v, _ := res.Event.Get("utctime")
	if !v.IsNaN() {
		t.Fatalf("expected NaN timestamp for all-FF sentinel")
	}
}

// packGPSTime builds a gps_time frame from its components, inverting
// the class's field packing.
func packGPSTime(hour, minute, second, day, month, year int) []byte {
	y := uint16(year - 1992)
	return []byte{0x24, 0x07, 0x23,
		byte(hour), byte(minute), byte(second), byte(day), byte(month),
		byte(y), byte(y >> 8), 0x02, 0x81}
}

func TestDecodeGPSTimeRoundTrip(t *testing.T) {
	cases := []struct{ h, m, s, d, mo, y int }{
		{15, 27, 23, 17, 8, 2016},
		{0, 0, 0, 1, 1, 1993},
		{23, 59, 59, 31, 12, 2149},
	}
	for _, c := range cases {
		res := Decode(packGPSTime(c.h, c.m, c.s, c.d, c.mo, c.y))
		if res.Kind != ResultEvent {
			t.Fatalf("%+v: want ResultEvent, got %v (err=%v)", c, res.Kind, res.Err)
		}
		v, _ := res.Event.Get("utctime")
		inst, ok := v.(event.Instant)
		if !ok || !inst.Valid {
			t.Fatalf("%+v: expected a valid instant, got %#v", c, v)
		}
		want := time.Date(c.y, time.Month(c.mo), c.d, c.h, c.m, c.s, 0, time.UTC)
		if !inst.Time.Equal(want) {
			t.Fatalf("round trip mismatch: got %v want %v", inst.Time, want)
		}
	}
}

func TestDecodeGPSTimeRejectsOutOfRangeYear(t *testing.T) {
	res := Decode(packGPSTime(12, 0, 0, 1, 6, 2200))
	if res.Kind != ResultEvent {
		t.Fatalf("want ResultEvent, got %v (err=%v)", res.Kind, res.Err)
	}
	v, _ := res.Event.Get("utctime")
	if !v.IsNaN() {
		t.Fatalf("expected NaN instant for year outside the sanity bound")
	}
}

func TestDecodeGPSPosition(t *testing.T) {
	frame := []byte{0x20, 0x08, 0x28, 0x3B, 0x21, 0xC3, 0x0A, 0xFF, 0x8E, 0xE0, 0x00, 0x42, 0x81}
	res := Decode(frame)
	if res.Kind != ResultEvent {
		t.Fatalf("want ResultEvent, got %v (err=%v)", res.Kind, res.Err)
	}
	v, ok := res.Event.Get("position")
	if !ok || v.IsNaN() {
		t.Fatalf("expected a valid position, got %#v", v)
	}
	elev, ok := res.Event.Get("elevation")
	if !ok || elev.IsNaN() {
		t.Fatalf("expected a valid elevation")
	}
}

func TestDecodeGPSPosition_NoFix(t *testing.T) {
	frame := []byte{0x20, 0x08, 0x28, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x10, 0x00, 0x10, 0x81}
	res := Decode(frame)
	if res.Kind != ResultEvent {
		t.Fatalf("want ResultEvent, got %v (err=%v)", res.Kind, res.Err)
	}
	v, _ := res.Event.Get("position")
	if !v.IsNaN() {
		t.Fatalf("expected NaN position for all-zero fix bytes")
	}
}

func TestDecodeGPSCOGSOG(t *testing.T) {
	frame := []byte{0x21, 0x04, 0x25, 0x0C, 0x01, 0x66, 0x7E, 0x15, 0x81}
	res := Decode(frame)
	if res.Kind != ResultEvent {
		t.Fatalf("want ResultEvent, got %v (err=%v)", res.Kind, res.Err)
	}
	sog, _ := res.Event.Get("sog")
	if sog.IsNaN() {
		t.Fatalf("expected a valid sog")
	}
	cog, _ := res.Event.Get("cog")
	if cog.IsNaN() {
		t.Fatalf("expected a valid cog")
	}
}

func TestDecodeGPSCOGSOG_NoLock(t *testing.T) {
	frame := []byte{0x21, 0x04, 0x25, 0xFF, 0xFF, 0x00, 0x00, 0x00, 0x81}
	res := Decode(frame)
	if res.Kind != ResultEvent {
		t.Fatalf("want ResultEvent, got %v (err=%v)", res.Kind, res.Err)
	}
	sog, _ := res.Event.Get("sog")
	if !sog.IsNaN() {
		t.Fatalf("expected NaN sog for no-lock sentinel")
	}
	cog, _ := res.Event.Get("cog")
	if !cog.IsNaN() {
		t.Fatalf("expected NaN cog for no-lock sentinel")
	}
}

func TestDecodeWindApparent(t *testing.T) {
	frame := []byte{0x01, 0x04, 0x05, 0xBE, 0x00, 0x96, 0xB9, 0x91, 0x81}
	res := Decode(frame)
	if res.Kind != ResultEvent {
		t.Fatalf("want ResultEvent, got %v (err=%v)", res.Kind, res.Err)
	}
	aws, _ := res.Event.Get("aws")
	awa, _ := res.Event.Get("awa")
	if aws.IsNaN() || awa.IsNaN() {
		t.Fatalf("expected finite aws/awa, got aws=%#v awa=%#v", aws, awa)
	}
}

func TestDecodeWindApparent_NoData(t *testing.T) {
	frame := []byte{0x01, 0x04, 0x05, 0xFF, 0xFF, 0x00, 0x00, 0x00, 0x81}
	res := Decode(frame)
	if res.Kind != ResultEvent {
		t.Fatalf("want ResultEvent, got %v (err=%v)", res.Kind, res.Err)
	}
	aws, _ := res.Event.Get("aws")
	if !aws.IsNaN() {
		t.Fatalf("expected NaN aws for 0xFFFF sentinel")
	}
}

func TestDecodeDepth(t *testing.T) {
	frame := []byte{0x07, 0x03, 0x04, 0x0F, 0x02, 0x00, 0x0D, 0x81}
	res := Decode(frame)
	if res.Kind != ResultEvent {
		t.Fatalf("want ResultEvent, got %v (err=%v)", res.Kind, res.Err)
	}
	depth, ok := res.Event.Get("depth")
	if !ok || depth.IsNaN() {
		t.Fatalf("expected a valid depth reading")
	}
}

func TestDecodeUnhandledClass(t *testing.T) {
	frame := []byte{0xAB, 0xCD, 0xEF, 0x01, 0x81}
	res := Decode(frame)
	if res.Kind != ResultError || res.Err.Kind != UnhandledClass {
		t.Fatalf("want UnhandledClass error, got %v", res)
	}
}

func TestDecodeShortFrame(t *testing.T) {
	for _, frame := range [][]byte{{0x81}, {0x81, 0x81}} {
		res := Decode(frame)
		if res.Kind != ResultError || res.Err.Kind != ShortFrame {
			t.Fatalf("frame %v: want ShortFrame error, got %v", frame, res)
		}
	}
}

func TestDecodeLengthMismatch(t *testing.T) {
	frame := []byte{0x07, 0x03, 0x04, 0x0F, 0x02, 0x81} // depth declares length 8, this is 6
	res := Decode(frame)
	if res.Kind != ResultError || res.Err.Kind != LengthError {
		t.Fatalf("want LengthError, got %v", res)
	}
}

func TestDecodeHeartbeatSuppressedAndFault(t *testing.T) {
	idle := []byte{0x17, 0x05, 0x12, 0x00, 0x80, 0xFF, 0xFF, 0xFF, 0x7F, 0x81}
	res := Decode(idle)
	if res.Kind != ResultSuppressed {
		t.Fatalf("want suppressed heartbeat, got %v", res)
	}

	unexpected := []byte{0x17, 0x05, 0x12, 0x01, 0x80, 0xFF, 0xFF, 0xFF, 0x7F, 0x81}
	res = Decode(unexpected)
	if res.Kind != ResultEvent {
		t.Fatalf("want an Event carrying a fault annotation, got %v", res)
	}
	if _, ok := res.Event.Get("fault"); !ok {
		t.Fatalf("expected a fault measurement")
	}
}

func TestDecodeAssumptionViolation(t *testing.T) {
	frame := []byte{0x03, 0x01, 0x02, 0x01, 0x00, 0x81} // gnd10msg4 asserts zero payload
	res := Decode(frame)
	if res.Kind != ResultError || res.Err.Kind != AssumptionViolation {
		t.Fatalf("want AssumptionViolation, got %v", res)
	}
}

func TestDecodeKnownButUnusedIsSuppressed(t *testing.T) {
	for _, frame := range [][]byte{
		{0x00, 0x02, 0x02, 0xFF, 0xFF, 0x00, 0x81},             // emptymsg0
		{0x02, 0x03, 0x01, 0xFF, 0xFF, 0x00, 0x00, 0x81},       // dst200depth2
		{0x12, 0x04, 0x16, 0xBE, 0x00, 0x96, 0xB9, 0x91, 0x81}, // winddup
	} {
		res := Decode(frame)
		if res.Kind != ResultSuppressed {
			t.Fatalf("frame %x: want ResultSuppressed, got %v", frame, res)
		}
	}
}

func TestFrameLength(t *testing.T) {
	length, known := FrameLength(0x010405)
	if !known || length != 9 {
		t.Fatalf("want known length 9, got known=%v length=%d", known, length)
	}
	if _, known := FrameLength(0xFFFFFF); known {
		t.Fatalf("expected unknown type code to report unknown")
	}
}
