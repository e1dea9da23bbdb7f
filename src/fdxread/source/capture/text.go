// Package capture implements byte sources that replay previously
// captured FDX traffic instead of reading a live serial port: a text
// hexdump format ("#" comments, "ts len hex" records, possibly
// several frames per read, differential timestamps) and a raw binary
// format (a byte-for-byte dump of the gateway's output).
package capture

import (
	"bufio"
	"context"
	"encoding/hex"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lkarsten/fdxread/src/fdxread/source"
)

// TextOptions configures a text-capture replay source.
type TextOptions struct {
	// Seek skips this many bytes into the file before reading.
	Seek int64
	// Pace is the replay rate in frames per second. Zero means replay
	// as fast as the file can be read, with no pacing sleep.
	Pace float64
}

// TextCapture replays a text hexdump capture file.
type TextCapture struct {
	f       *os.File
	scanner *bufio.Scanner
	opts    TextOptions
	log     *logrus.Entry

	pending []source.Chunk // remaining frames from the current line
	clock   time.Time      // replay cursor for differential timestamps
	closed  bool
}

// NewText opens a text capture file for replay.
func NewText(log *logrus.Entry, path string, opts TextOptions) (*TextCapture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if opts.Seek > 0 {
		if _, err := f.Seek(opts.Seek, io.SeekStart); err != nil {
			f.Close()
			return nil, err
		}
	}
	return &TextCapture{
		f:       f,
		scanner: bufio.NewScanner(f),
		opts:    opts,
		log:     log,
	}, nil
}

// Next returns the next frame's raw bytes (including the trailing
// 0x81), reading and splitting lines as needed.
func (c *TextCapture) Next(ctx context.Context) (source.Chunk, error) {
	for {
		if c.closed {
			return source.Chunk{}, source.ErrClosed
		}
		if ctx.Err() != nil {
			return source.Chunk{}, ctx.Err()
		}

		if len(c.pending) == 0 {
			if !c.advanceLine() {
				c.closed = true
				return source.Chunk{}, source.ErrClosed
			}
			continue
		}

		chunk := c.pending[0]
		c.pending = c.pending[1:]

		if c.opts.Pace > 0 {
			time.Sleep(time.Duration(float64(time.Second) / c.opts.Pace))
		}
		return chunk, nil
	}
}

// advanceLine reads the next non-comment, non-blank line and splits
// its payload into one or more frames, queuing them in c.pending. It
// returns false once the file is exhausted.
func (c *TextCapture) advanceLine() bool {
	for c.scanner.Scan() {
		line := c.scanner.Text()
		if strings.HasPrefix(line, "#") || strings.TrimSpace(line) == "" {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 3 {
			c.log.WithField("line", line).Warn("skipping malformed capture line")
			continue
		}

		when := c.lineTime(fields[0])
		_ = fields[1] // declared length, informational only — the split below is authoritative

		raw, err := hex.DecodeString(strings.Join(fields[2:], ""))
		if err != nil {
			c.log.WithField("line", line).WithField("error", err).Warn("skipping unparsable capture line")
			continue
		}

		// One read may hold several frames; split on the trailer byte
		// (the capture was written pre-framed, so the naive split is
		// correct here). The first frame carries the line's timestamp,
		// the rest arrived without delay and share it.
		var frames []source.Chunk
		start := 0
		for i, b := range raw {
			if b != 0x81 {
				continue
			}
			frames = append(frames, source.Chunk{Timestamp: when, Bytes: raw[start : i+1]})
			start = i + 1
		}
		if start < len(raw) {
			c.log.WithField("line", line).Debug("dropping trailing bytes with no frame terminator")
		}
		if len(frames) == 0 {
			continue
		}
		c.pending = frames
		return true
	}
	return false
}

// lineTime interprets a record's timestamp field: values below 2.0 are
// deltas relative to the previous record, anything else is absolute
// seconds since the epoch.
func (c *TextCapture) lineTime(field string) time.Time {
	ts, err := strconv.ParseFloat(field, 64)
	if err != nil {
		c.log.WithField("timestamp", field).Warn("unparsable capture timestamp")
		return c.clock
	}
	if ts >= 2.0 {
		sec := int64(ts)
		c.clock = time.Unix(sec, int64((ts-float64(sec))*float64(time.Second)))
		return c.clock
	}
	if c.clock.IsZero() {
		c.clock = time.Now()
	}
	c.clock = c.clock.Add(time.Duration(ts * float64(time.Second)))
	return c.clock
}

// Close releases the underlying file.
func (c *TextCapture) Close() error {
	c.closed = true
	return c.f.Close()
}
