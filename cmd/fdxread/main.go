// Command fdxread reads the FDX marine instrumentation protocol from
// a live serial gateway or a capture file and emits decoded
// measurements as maritime sentences, JSON lines, or a structured
// delta form.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/lkarsten/fdxread/src/fdxread/event"
	"github.com/lkarsten/fdxread/src/fdxread/format/jsonline"
	"github.com/lkarsten/fdxread/src/fdxread/format/sentence"
	"github.com/lkarsten/fdxread/src/fdxread/format/structured"
	"github.com/lkarsten/fdxread/src/fdxread/pipeline"
	"github.com/lkarsten/fdxread/src/fdxread/server"
	"github.com/lkarsten/fdxread/src/fdxread/source"
	"github.com/lkarsten/fdxread/src/fdxread/source/capture"
	serialsrc "github.com/lkarsten/fdxread/src/fdxread/source/serial"
)

const (
	exitOK          = 0
	exitUsageError  = 1
	exitOpenFailure = 2
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	flags := flag.NewFlagSet("fdxread", flag.ContinueOnError)
	output := flags.String("output", "sentences", "output format: sentences|json|structured|raw")
	verbose := flags.Bool("verbose", false, "debug logging")
	seek := flags.Int64("seek", 0, "byte offset into a capture file")
	pace := flags.Float64("pace", 0, "max frames/sec when replaying a text capture; max 64-byte reads/sec for a binary capture")
	serve := flags.String("serve", "", `optional "host:port" to also serve decoded events over a websocket endpoint`)
	modechange := flags.Bool("modechange", false, "send the optional $PSILFDX,,R startup sequence")
	vendorID := flags.String("vendor", "", "restrict serial auto-detect to this USB vendor ID")

	if err := flags.Parse(args); err != nil {
		return exitUsageError
	}
	if flags.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: fdxread [flags] <port-or-capture-file>")
		flags.PrintDefaults()
		return exitUsageError
	}
	input := flags.Arg(0)

	log := logrus.New()
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	entry := logrus.NewEntry(log)

	formatter, err := newFormatter(*output)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fdxread:", err)
		return exitUsageError
	}

	src, err := openSource(entry, input, *seek, *pace, *modechange, *vendorID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fdxread: could not open %s: %v\n", input, err)
		return exitOpenFailure
	}
	defer src.Close()

	ctx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		entry.Info("received shutdown signal")
		cancel()
	}()

	drv := pipeline.New(src, entry)

	var httpServer *http.Server
	if *serve != "" {
		handle := server.New(drv, entry)
		mux := http.NewServeMux()
		mux.Handle("/events", handle)
		httpServer = &http.Server{Addr: *serve, Handler: mux}
		go func() {
			entry.WithField("addr", *serve).Info("serving live event feed")
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				entry.WithError(err).Error("websocket server stopped")
			}
		}()
	}

	// Subscribe before starting the pipeline goroutine so the consumer
	// is registered with the broker before the first frame can be
	// decoded and published.
	sub := drv.Broker().Sub(pipeline.EventsTopic)
	runErrCh := make(chan error, 1)
	go func() { runErrCh <- drv.Run(ctx) }()

	out := bufio.NewWriter(os.Stdout)

	if *serve != "" {
		stopMonitor := server.StartMonitor(entry)
		defer stopMonitor()
	}

	consume(sub, formatter, out)
	out.Flush()

	runErr := <-runErrCh
	if httpServer != nil {
		httpServer.Close()
	}
	if runErr != nil {
		entry.WithError(runErr).Error("pipeline stopped with error")
		return exitOpenFailure
	}

	stats := drv.Stats()
	entry.WithField("n_msg", stats.Msg).WithField("n_errors", stats.Errors).Info("done")
	return exitOK
}

// openSource picks the right byte source for input: a character
// device (or a path that does not exist at all) is treated as a live
// serial port; any other existing path is sniffed as a text or
// binary capture.
func openSource(log *logrus.Entry, input string, seek int64, pace float64, modechange bool, vendorID string) (source.Source, error) {
	info, err := os.Stat(input)
	if err != nil {
		if os.IsNotExist(err) {
			// Not an existing path: treat it as a serial device name
			// that may not have been created yet (or an auto-detected
			// live port if input is empty).
			return serialsrc.New(log, serialsrc.Options{
				PortName:       input,
				SendModeChange: modechange,
				VendorID:       vendorID,
			}), nil
		}
		return nil, err
	}

	if info.Mode()&os.ModeCharDevice != 0 {
		return serialsrc.New(log, serialsrc.Options{
			PortName:       input,
			SendModeChange: modechange,
			VendorID:       vendorID,
		}), nil
	}

	isText, err := looksLikeTextCapture(input)
	if err != nil {
		return nil, err
	}
	if isText {
		return capture.NewText(log, input, capture.TextOptions{Seek: seek, Pace: pace})
	}
	return capture.NewBinary(input, seek, pace)
}

// looksLikeTextCapture sniffs a capture file's first bytes: a text
// capture is comment/whitespace-delimited printable ASCII; a binary
// (.nxb) capture is raw frame bytes and
// will contain control bytes (type codes, little-endian fields) well
// below the printable range almost immediately.
func looksLikeTextCapture(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	buf := make([]byte, 512)
	n, err := f.Read(buf)
	if err != nil && n == 0 {
		return true, nil // empty file: harmless either way, default to text
	}
	for _, b := range buf[:n] {
		if b == '\n' || b == '\t' || b == '\r' {
			continue
		}
		if b < 0x20 || b > 0x7e {
			return false, nil
		}
	}
	return true, nil
}

// lineFormatter renders one decoded event as a line of output text.
// ok is false when the event produces nothing to print (e.g. a
// session-only gps_time update the sentence formatter only caches).
type lineFormatter interface {
	Format(ev event.Event) (line string, ok bool)
}

func newFormatter(output string) (lineFormatter, error) {
	switch output {
	case "sentences":
		return sentenceFormatter{sentence.New()}, nil
	case "json":
		return jsonFormatter{jsonline.New()}, nil
	case "structured":
		return structuredFormatter{structured.New()}, nil
	case "raw":
		return rawFormatter{}, nil
	default:
		return nil, fmt.Errorf("unknown --output %q (want sentences|json|structured|raw)", output)
	}
}

type sentenceFormatter struct{ f *sentence.Formatter }

func (s sentenceFormatter) Format(ev event.Event) (string, bool) { return s.f.Format(ev) }

type jsonFormatter struct{ f *jsonline.Formatter }

func (j jsonFormatter) Format(ev event.Event) (string, bool) {
	b, err := j.f.Format(ev)
	if err != nil {
		return "", false
	}
	return string(b), true
}

type structuredFormatter struct{ f *structured.Formatter }

func (s structuredFormatter) Format(ev event.Event) (string, bool) {
	delta, ok := s.f.Format(ev)
	if !ok {
		return "", false
	}
	b, err := json.Marshal(delta)
	if err != nil {
		return "", false
	}
	return string(b), true
}

type rawFormatter struct{}

func (rawFormatter) Format(ev event.Event) (string, bool) {
	return fmt.Sprintf("%+v", ev), true
}

// consume reads decoded events off sub and writes every formatted
// line to out, flushing after each one so pipe consumers see output
// promptly. It returns once sub is closed (the pipeline stopped and
// shut down its broker).
func consume(sub chan interface{}, f lineFormatter, out *bufio.Writer) {
	for v := range sub {
		ev, ok := v.(event.Event)
		if !ok {
			continue
		}
		line, ok := f.Format(ev)
		if !ok {
			continue
		}
		fmt.Fprintln(out, line)
		out.Flush()
	}
}
