// Package server implements the optional live-feed websocket endpoint:
// a read-only broadcast of the decoded event stream, for a second
// consumer (a chart or plotter) to attach to without re-reading the
// serial port. There is no inbound command channel — the process has
// exactly one fixed input source configured at start.
package server

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/cskr/pubsub"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/lkarsten/fdxread/src/fdxread/event"
	"github.com/lkarsten/fdxread/src/fdxread/pipeline"
)

const writeDeadline = 50 * time.Millisecond

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Handle serves the live event feed over a websocket. Subscribers
// receive the events the pipeline publishes, JSON-encoded one
// message per event, until they disconnect or the pipeline stops.
// The pipeline publishes without blocking, so an event that arrives
// while a subscriber's buffer is full is dropped for that subscriber.
type Handle struct {
	Broker *pubsub.PubSub
	Log    *logrus.Entry
}

// New constructs a Handle reading from the given pipeline's broker.
func New(p *pipeline.Driver, log *logrus.Entry) *Handle {
	return &Handle{Broker: p.Broker(), Log: log}
}

// ServeHTTP upgrades the request to a websocket and streams decoded
// events as JSON text messages until the client disconnects.
func (h *Handle) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := h.Log.WithField("clientAddress", r.RemoteAddr)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Error("could not upgrade connection to websocket")
		http.Error(w, "websocket upgrade error", http.StatusBadRequest)
		return
	}
	log.Info("websocket connection opened")

	rx := h.Broker.Sub(pipeline.EventsTopic)
	var writeMu sync.Mutex
	done := make(chan struct{})

	send := func(ev event.Event) error {
		data, err := json.Marshal(eventJSON{Class: ev.Class, Values: ev.Map()})
		if err != nil {
			return err
		}
		writeMu.Lock()
		defer writeMu.Unlock()
		conn.SetWriteDeadline(time.Now().Add(writeDeadline))
		return conn.WriteMessage(websocket.TextMessage, data)
	}

	go func() {
		defer close(done)
		for v := range rx {
			ev, ok := v.(event.Event)
			if !ok {
				continue
			}
			if err := send(ev); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.WithError(err).Warn("websocket write error")
				}
				return
			}
		}
	}()

	// The read loop exists only to notice the peer closing the
	// connection; this endpoint accepts no incoming commands.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.Broker.Unsub(rx)
	<-done
	conn.Close()
	log.Info("websocket connection closed")
}

type eventJSON struct {
	Class  string                 `json:"class"`
	Values map[string]event.Value `json:"-"`
}

func (e eventJSON) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(e.Values)+1)
	out["class"] = e.Class
	for k, v := range e.Values {
		out[k] = v
	}
	return json.Marshal(out)
}

// StartMonitor logs runtime memory/goroutine stats on a fixed
// interval, for diagnosing a long-running unattended process. Returns
// a stop function; call it to end the ticker.
func StartMonitor(log *logrus.Entry) (stop func()) {
	ticker := time.NewTicker(30 * time.Second)
	done := make(chan struct{})
	go func() {
		var m runtime.MemStats
		for {
			select {
			case <-ticker.C:
				runtime.ReadMemStats(&m)
				log.WithField("sysMem", m.Sys/1024).WithField("routines", runtime.NumGoroutine()).Info("monitoring runtime")
			case <-done:
				return
			}
		}
	}()
	return func() {
		ticker.Stop()
		close(done)
	}
}
