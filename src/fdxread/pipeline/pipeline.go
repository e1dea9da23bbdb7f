// Package pipeline orchestrates source -> framer -> decoder -> broker:
// it pulls chunks from a byte source, feeds them to a frame.Framer,
// decodes every complete frame, and publishes decoded events to a
// broker topic so one or more consumers (an output formatter, the
// optional websocket server) can attach without the pipeline knowing
// how many of them exist.
package pipeline

import (
	"context"
	"errors"
	"sync"

	"github.com/cskr/pubsub"
	"github.com/sirupsen/logrus"

	"github.com/lkarsten/fdxread/src/fdxread/decode"
	"github.com/lkarsten/fdxread/src/fdxread/event"
	"github.com/lkarsten/fdxread/src/fdxread/frame"
	"github.com/lkarsten/fdxread/src/fdxread/source"
)

// EventsTopic is the single pubsub topic decoded events are published
// on. Callers Sub to it to receive event.Event values.
const EventsTopic = "events"

// Stats is a snapshot of the pipeline's running counters.
type Stats struct {
	Msg    uint64
	Errors uint64
}

// Driver owns the framer and the pipeline's small session state: the
// most recent gps_time and gps_position events, which the decoder
// itself never caches.
type Driver struct {
	src    source.Source
	framer *frame.Framer
	log    *logrus.Entry
	broker *pubsub.PubSub

	mu       sync.Mutex
	stats    Stats
	lastTime *event.Event
	lastFix  *event.Event
}

// New constructs a Driver reading from src and publishing decoded
// events on its own broker. log may be nil.
func New(src source.Source, log *logrus.Entry) *Driver {
	if log == nil {
		log = logrus.NewEntry(logrus.New())
	}
	return &Driver{
		src:    src,
		framer: frame.New(log),
		log:    log,
		broker: pubsub.New(64),
	}
}

// Broker exposes the pubsub instance events are published on, so a
// caller can Sub(pipeline.EventsTopic) for as many consumers as it
// likes (the CLI's chosen output formatter, and optionally the
// websocket server).
func (d *Driver) Broker() *pubsub.PubSub { return d.broker }

// Stats returns a snapshot of the running counters.
func (d *Driver) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

// Session returns the most recently observed gps_time and
// gps_position events, for formatters that compose a combined
// positional sentence. Either may be nil if no such event has been
// seen yet.
func (d *Driver) Session() (gpsTime, gpsPosition *event.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastTime, d.lastFix
}

// Run pulls from the source until ctx is cancelled or the source is
// permanently exhausted (source.ErrClosed, e.g. clean EOF on a capture
// file), publishing every decoded event and counting every decode
// error. It returns nil on clean exhaustion or cancellation, and
// shuts down the broker before returning so subscribers see their
// channel close.
func (d *Driver) Run(ctx context.Context) error {
	defer d.broker.Shutdown()

	for {
		chunk, err := d.src.Next(ctx)
		if err != nil {
			if errors.Is(err, source.ErrClosed) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}

		for _, f := range d.framer.Push(chunk.Bytes) {
			d.handleFrame(f)
		}
	}
}

func (d *Driver) handleFrame(f frame.Frame) {
	res := decode.Decode(f.Bytes)
	switch res.Kind {
	case decode.ResultEvent:
		d.mu.Lock()
		d.stats.Msg++
		ev := res.Event
		switch ev.Class {
		case "gps_time":
			e := ev
			d.lastTime = &e
		case "gps_position":
			e := ev
			d.lastFix = &e
		}
		d.mu.Unlock()
		d.broker.TryPub(ev, EventsTopic)
	case decode.ResultSuppressed:
		// no-op
	case decode.ResultError:
		d.mu.Lock()
		d.stats.Errors++
		d.mu.Unlock()
		d.logError(res.Err)
	}
}

func (d *Driver) logError(err *decode.Error) {
	entry := d.log.WithField("kind", err.Kind.String()).WithField("type", err.TypeCode)
	if err.Kind == decode.ShortFrame {
		entry.Debug(err.Error())
		return
	}
	entry.Warn(err.Error())
}
