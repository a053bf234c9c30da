package net

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tradegate/server/internal/wire"
	"go.uber.org/zap"
)

const (
	// pongWait is how long we tolerate silence before declaring the
	// connection stale; pingPeriod must be shorter.
	pongWait   = 60 * time.Second
	pingPeriod = 25 * time.Second
)

// Session represents a single client connection. Network I/O runs in
// dedicated goroutines; coordination state is accessed only under the
// coordinator lock.
type Session struct {
	ID   uint64
	conn *websocket.Conn

	state atomic.Int32 // wire.UserState stored as int32

	// UserID is set on authenticate and cleared on logOut/disconnect.
	// Guarded by the coordinator lock, same as all world state.
	UserID string

	InQueue  chan []byte // coordinator reads frames from here
	OutQueue chan []byte // writer goroutine reads from here

	IP string

	writeTimeout time.Duration

	closeCh   chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool

	// Per-second event rate limiter (readLoop goroutine only, no lock needed)
	evtPerSec  int   // max events/sec (0 = unlimited)
	evtCount   int   // events received this second
	evtResetAt int64 // unix second of last counter reset

	log *zap.Logger
}

func NewSession(conn *websocket.Conn, id uint64, inSize, outSize, evtPerSec int, writeTimeout time.Duration, log *zap.Logger) *Session {
	s := &Session{
		ID:           id,
		conn:         conn,
		InQueue:      make(chan []byte, inSize),
		OutQueue:     make(chan []byte, outSize),
		IP:           conn.RemoteAddr().String(),
		writeTimeout: writeTimeout,
		closeCh:      make(chan struct{}),
		evtPerSec:    evtPerSec,
		log:          log.With(zap.Uint64("session", id)),
	}
	s.state.Store(int32(wire.StateNoUserID))
	return s
}

func (s *Session) State() wire.UserState {
	return wire.UserState(s.state.Load())
}

func (s *Session) SetState(st wire.UserState) {
	s.state.Store(int32(st))
}

// Start launches the reader and writer goroutines.
func (s *Session) Start() {
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go s.readLoop()
	go s.writeLoop()
}

// Send enqueues a message for the writer goroutine. Non-blocking: if the
// out queue is full the client is not keeping up and the session is closed
// (backpressure).
func (s *Session) Send(data []byte) {
	if s.closed.Load() {
		return
	}
	select {
	case s.OutQueue <- data:
	default:
		s.log.Warn("輸出佇列已滿，斷開慢速連線")
		s.Close()
	}
}

// Close gracefully shuts down the session.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.closeCh)
		s.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		s.conn.Close()
	})
}

func (s *Session) IsClosed() bool {
	return s.closed.Load()
}

// Done is closed when the session shuts down. The coordinator selects on it
// to run disconnect cleanup.
func (s *Session) Done() <-chan struct{} {
	return s.closeCh
}

// readLoop runs in its own goroutine. It reads text messages from the
// websocket and pushes them onto InQueue for the coordinator to consume.
func (s *Session) readLoop() {
	defer s.Close()

	for {
		select {
		case <-s.closeCh:
			return
		default:
		}

		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if !s.closed.Load() {
				s.log.Debug("讀取錯誤", zap.Error(err))
			}
			return
		}

		// Per-second event rate limiter
		if s.evtPerSec > 0 {
			now := time.Now().Unix()
			if now != s.evtResetAt {
				s.evtCount = 0
				s.evtResetAt = now
			}
			s.evtCount++
			if s.evtCount > s.evtPerSec {
				s.log.Warn("事件速率超限，斷開連線", zap.Int("eps", s.evtCount))
				return
			}
		}

		// Block until InQueue has space or the session closes. The readLoop
		// goroutine is per-session, so blocking here only stalls this client.
		select {
		case s.InQueue <- data:
		case <-s.closeCh:
			return
		}
	}
}

// writeLoop runs in its own goroutine. It drains OutQueue onto the websocket
// and keeps the connection alive with periodic pings.
func (s *Session) writeLoop() {
	defer s.Close()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case data := <-s.OutQueue:
			if !s.writeOne(data) {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				if !s.closed.Load() {
					s.log.Debug("ping 發送失敗", zap.Error(err))
				}
				return
			}
		case <-s.closeCh:
			return
		}
	}
}

// writeOne writes a single text message to the websocket. Returns true on success.
func (s *Session) writeOne(data []byte) bool {
	s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		if !s.closed.Load() {
			s.log.Debug("寫入錯誤", zap.Error(err))
		}
		return false
	}
	return true
}
