package whatsapp

import (
	"log/slog"
	"sync"
	"time"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/types/events"
)

// SessionState is the connection state of the WhatsApp socket.
type SessionState string

const (
	// StateDisconnected means no socket is open.
	StateDisconnected SessionState = "disconnected"
	// StateConnecting means a connection attempt is in flight.
	StateConnecting SessionState = "connecting"
	// StateConnected means the socket is open and authenticated.
	StateConnected SessionState = "connected"
)

// connectStuckTimeout bounds how long a session may sit in connecting before
// the guard is force-reset. A crashed connect attempt must not block every
// later reconnect.
const connectStuckTimeout = 2 * time.Minute

// session tracks the socket state machine behind one mutex. The busy flag
// rejects overlapping connect attempts; the stuck timer clears it if an
// attempt never finishes.
type session struct {
	mu      sync.Mutex
	current SessionState
	busy    bool
	stuck   *time.Timer
}

func newSession() *session {
	return &session{current: StateDisconnected}
}

func (s *session) state() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// beginConnect claims the connect guard and moves to connecting. It returns
// false when another attempt is already in flight.
func (s *session) beginConnect() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		slog.Warn("WhatsApp session connect rejected, attempt already in progress")
		return false
	}
	s.busy = true
	s.current = StateConnecting
	s.stuck = time.AfterFunc(connectStuckTimeout, s.forceReset)
	return true
}

// finishConnect releases the guard and records the attempt outcome.
func (s *session) finishConnect(ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stuck != nil {
		s.stuck.Stop()
		s.stuck = nil
	}
	s.busy = false
	if ok {
		s.current = StateConnected
	} else {
		s.current = StateDisconnected
	}
	slog.Debug("WhatsApp session connect finished", "state", s.current)
}

// forceReset clears a stuck connecting state so future attempts can proceed.
func (s *session) forceReset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != StateConnecting {
		return
	}
	slog.Warn("WhatsApp session stuck in connecting, forcing reset", "timeout", connectStuckTimeout)
	s.busy = false
	s.stuck = nil
	s.current = StateDisconnected
}

// markConnected records a server-side connected event.
func (s *session) markConnected() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = StateConnected
}

// markDisconnected records a server-side disconnect.
func (s *session) markDisconnected() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = StateDisconnected
}

// trackEvents keeps the state machine in sync with socket events.
func (s *session) trackEvents(client *whatsmeow.Client) {
	client.AddEventHandler(func(evt interface{}) {
		switch evt.(type) {
		case *events.Connected:
			s.markConnected()
			slog.Info("WhatsApp session connected")
		case *events.Disconnected:
			s.markDisconnected()
			slog.Warn("WhatsApp session disconnected")
		case *events.LoggedOut:
			s.markDisconnected()
			slog.Error("WhatsApp session logged out, relogin required")
		}
	})
}
