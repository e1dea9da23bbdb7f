// Package serial implements the live, USB-attached serial byte source:
// open-with-retry, a bounded read timeout, excessive-empty-read reset,
// an optional mode-change write on open, and auto-detection of the
// gateway's serial port when no explicit path is given.
package serial

import (
	"context"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/sirupsen/logrus"
	goserial "go.bug.st/serial"
	"go.bug.st/serial/enumerator"

	"github.com/lkarsten/fdxread/src/fdxread/source"
)

const (
	defaultBaudRate = 9600
	readTimeout     = 300 * time.Millisecond
	reopenDelay     = 2 * time.Second
	maxEmptyReads   = 4
	modeChangeCmd   = "$PSILFDX,,R\r\n"
)

// portOpener is the subset of go.bug.st/serial's package-level API this
// source depends on; a test-mode fake satisfies it without a real port.
type portOpener func(portName string, mode *goserial.Mode) (goserial.Port, error)

// Options configures the live serial source.
type Options struct {
	// PortName pins the device path (e.g. "/dev/ttyUSB0"). Empty means
	// auto-detect: the first enumerated serial port is used, optionally
	// narrowed by VendorID.
	PortName string
	// BaudRate overrides the default (9600, matching the gateway's
	// documented GND10 serial configuration). Zero means default.
	BaudRate int
	// SendModeChange writes the FDX mode-change command once per
	// successful open, asking the gateway to start streaming.
	SendModeChange bool
	// VendorID narrows auto-detect to ports reporting this USB vendor
	// ID (case-insensitive hex, e.g. "16C0"). Empty accepts any port.
	VendorID string
}

// Source is a live serial byte source implementing source.Source.
// It is not safe for concurrent use from multiple goroutines.
type Source struct {
	opts Options
	log  *logrus.Entry

	open portOpener
	list func() ([]*enumerator.PortDetails, error)

	port       goserial.Port
	emptyReads int
	closed     bool
}

// New constructs a live serial source. opts.PortName may be left empty
// to auto-detect.
func New(log *logrus.Entry, opts Options) *Source {
	return &Source{
		opts: opts,
		log:  log,
		open: goserial.Open,
		list: enumerator.GetDetailedPortsList,
	}
}

func (s *Source) baudRate() int {
	if s.opts.BaudRate > 0 {
		return s.opts.BaudRate
	}
	return defaultBaudRate
}

// Next blocks until a chunk of bytes is available, ctx is cancelled,
// or the source has been closed. Transient serial errors and closed
// gateways are retried internally with backoff; they are never
// returned to the caller as a terminal error.
func (s *Source) Next(ctx context.Context) (source.Chunk, error) {
	for {
		if s.closed {
			return source.Chunk{}, source.ErrClosed
		}
		if ctx.Err() != nil {
			return source.Chunk{}, ctx.Err()
		}

		if s.port == nil {
			if err := s.openWithRetry(ctx); err != nil {
				return source.Chunk{}, err
			}
			continue
		}

		buf := make([]byte, 1024)
		n, err := s.port.Read(buf)
		if err != nil {
			s.handleReadError(err)
			continue
		}
		if n == 0 {
			s.emptyReads++
			if s.emptyReads >= maxEmptyReads {
				s.log.Info("excessive empty reads, resetting serial port")
				s.closePort()
			}
			continue
		}
		s.emptyReads = 0
		return source.Chunk{Timestamp: time.Now(), Bytes: buf[:n]}, nil
	}
}

// openWithRetry blocks, retrying at a constant interval, until a port
// opens successfully or ctx is cancelled.
func (s *Source) openWithRetry(ctx context.Context) error {
	b := backoff.WithContext(backoff.NewConstantBackOff(reopenDelay), ctx)
	return backoff.Retry(func() error {
		portName := s.opts.PortName
		if portName == "" {
			detected, err := s.autoDetect()
			if err != nil {
				s.log.WithField("error", err).Debug("could not enumerate serial ports")
				return err
			}
			portName = detected
		}

		mode := &goserial.Mode{BaudRate: s.baudRate()}
		port, err := s.open(portName, mode)
		if err != nil {
			if !retryable(err) {
				s.log.WithField("port", portName).WithField("error", err).Error("unrecoverable serial open failure")
				return backoff.Permanent(err)
			}
			s.log.WithField("port", portName).WithField("error", err).Debug("failed to open serial port, will retry")
			return err
		}

		if err := port.SetReadTimeout(readTimeout); err != nil {
			s.log.WithField("error", err).Warn("failed to set serial read timeout")
		}
		_ = port.ResetInputBuffer()

		if s.opts.SendModeChange {
			if _, werr := port.Write([]byte(modeChangeCmd)); werr != nil {
				s.log.WithField("error", werr).Warn("failed to write mode-change command")
			}
		}

		s.port = port
		s.emptyReads = 0
		s.log.WithField("port", portName).Info("opened serial port")
		return nil
	}, b)
}

// autoDetect picks the first enumerated port, optionally filtered by
// VendorID.
func (s *Source) autoDetect() (string, error) {
	ports, err := s.list()
	if err != nil {
		return "", err
	}
	want := strings.ToUpper(s.opts.VendorID)
	for _, port := range ports {
		if want != "" && !strings.EqualFold(port.VID, want) {
			continue
		}
		s.log.WithField("name", port.Name).WithField("vendor", port.VID).Debug("auto-detected candidate serial port")
		return port.Name, nil
	}
	return "", errNoPortFound
}

func (s *Source) handleReadError(err error) {
	s.log.WithField("error", err).Info("serial read error, resetting port")
	s.closePort()
}

func (s *Source) closePort() {
	if s.port != nil {
		_ = s.port.Close()
		s.port = nil
	}
}

// Close releases the underlying port and marks the source exhausted;
// subsequent Next calls return source.ErrClosed.
func (s *Source) Close() error {
	s.closed = true
	s.closePort()
	return nil
}
