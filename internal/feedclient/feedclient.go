// Package feedclient keeps one monitoring console attached to the event
// feed across network interruption.
//
// A Session owns at most one live websocket at a time and drives the
// reconnect loop from a single goroutine, so two handshake attempts can
// never race. Transport failure of any sort degrades to a fixed-delay
// retry, never to an error surfaced to the console.
package feedclient

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Raje0906/Tourist-Safety-sub001/internal/feed"
)

// DefaultBackoff is the fixed delay between reconnect attempts.
const DefaultBackoff = 3 * time.Second

const (
	writeWait   = 10 * time.Second
	eventBuffer = 32
)

// Options configures a Session. The zero value is usable.
type Options struct {
	// Backoff overrides DefaultBackoff. The delay is constant; retries
	// continue indefinitely until Stop.
	Backoff time.Duration
	// Token, when set, is passed as the ?token= query parameter on the
	// handshake request.
	Token  string
	Logger *slog.Logger
}

// Session is a console's logical attachment to the feed, spanning many
// physical connections across reconnects.
type Session struct {
	url     string
	backoff time.Duration
	logger  *slog.Logger
	dialer  *websocket.Dialer

	mu        sync.Mutex
	ws        *websocket.Conn
	connected bool
	last      *feed.Envelope
	started   bool

	events   chan feed.Envelope
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// New returns a Session for the feed at url (ws:// or wss://). The session
// does nothing until Start.
func New(url string, opts Options) *Session {
	if opts.Backoff <= 0 {
		opts.Backoff = DefaultBackoff
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	u := url
	if opts.Token != "" {
		u += "?token=" + opts.Token
	}
	return &Session{
		url:     u,
		backoff: opts.Backoff,
		logger:  opts.Logger,
		dialer:  websocket.DefaultDialer,
		events:  make(chan feed.Envelope, eventBuffer),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start launches the connect loop. Calling Start more than once is a no-op.
func (s *Session) Start() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()
	go s.run()
}

// Stop ends the session: it cancels any pending reconnect, closes the live
// transport if there is one, and waits for the loop to exit. No reconnect
// can occur after Stop returns.
func (s *Session) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })

	s.mu.Lock()
	started := s.started
	if s.ws != nil {
		s.ws.Close()
	}
	s.mu.Unlock()

	if started {
		<-s.done
	}
}

// Connected reports whether the current physical connection is open.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// LastEnvelope returns the most recently decoded envelope, or nil.
func (s *Session) LastEnvelope() *feed.Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Events streams decoded envelopes to the console. The channel is closed
// when the session stops. A console that falls behind loses older events;
// LastEnvelope stays authoritative.
func (s *Session) Events() <-chan feed.Envelope {
	return s.events
}

// Send writes payload as a JSON text frame on the live connection. While
// disconnected it is a no-op: the message is dropped with a warning, never
// queued. It reports whether a transport write was attempted.
func (s *Session) Send(payload any) bool {
	s.mu.Lock()
	ws, open := s.ws, s.connected
	s.mu.Unlock()
	if !open || ws == nil {
		s.logger.Warn("feed send while disconnected; message dropped")
		return false
	}
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn("feed send: marshal failed", "err", err)
		return false
	}
	ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
		s.logger.Debug("feed send failed", "err", err)
		return false
	}
	return true
}

// run is the reconnect loop: connecting -> open -> backoff-wait, repeated
// until stop. Exactly one run goroutine exists per session.
func (s *Session) run() {
	defer close(s.done)
	defer close(s.events)
	for {
		select {
		case <-s.stop:
			return
		default:
		}

		ws, resp, err := s.dialer.Dial(s.url, http.Header{})
		if err != nil {
			if resp != nil {
				resp.Body.Close()
			}
			s.logger.Debug("feed dial failed", "err", err)
			if !s.waitBackoff() {
				return
			}
			continue
		}

		if !s.setOpen(ws) {
			return
		}
		s.logger.Info("feed connected")
		s.readLoop(ws)
		s.setClosed()
		s.logger.Info("feed disconnected")

		if !s.waitBackoff() {
			return
		}
	}
}

// waitBackoff sleeps for the fixed backoff interval. It returns false when
// the session was stopped during the wait, which cancels the reconnect.
func (s *Session) waitBackoff() bool {
	t := time.NewTimer(s.backoff)
	defer t.Stop()
	select {
	case <-s.stop:
		return false
	case <-t.C:
		return true
	}
}

// setOpen installs the new transport unless the session was stopped while
// the handshake was in flight, in which case the socket is closed and the
// loop must exit.
func (s *Session) setOpen(ws *websocket.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.stop:
		ws.Close()
		return false
	default:
	}
	s.ws = ws
	s.connected = true
	return true
}

func (s *Session) setClosed() {
	s.mu.Lock()
	if s.ws != nil {
		s.ws.Close()
		s.ws = nil
	}
	s.connected = false
	s.mu.Unlock()
}

// readLoop decodes inbound frames until the transport closes. A frame that
// fails to decode is dropped; it never closes the connection.
func (s *Session) readLoop(ws *websocket.Conn) {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		env, err := feed.Decode(data)
		if err != nil {
			s.logger.Debug("feed: dropped undecodable message", "err", err)
			continue
		}
		s.mu.Lock()
		s.last = &env
		s.mu.Unlock()
		select {
		case s.events <- env:
		default:
			s.logger.Debug("feed: console behind, event not queued", "kind", env.Kind)
		}
	}
}
