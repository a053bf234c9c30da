package net

import (
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Server accepts websocket connections and creates Sessions.
// New sessions are handed to the coordinator via a channel.
type Server struct {
	listener     net.Listener
	httpSrv      *http.Server
	upgrader     websocket.Upgrader
	nextID       atomic.Uint64
	newConns     chan *Session
	inSize       int
	outSize      int
	evtPerSec    int
	writeTimeout time.Duration
	log          *zap.Logger
	closeCh      chan struct{}
}

func NewServer(bindAddr string, inSize, outSize, evtPerSec int, writeTimeout time.Duration, log *zap.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", bindAddr)
	if err != nil {
		return nil, err
	}
	s := &Server{
		listener: ln,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: 10 * time.Second,
			// Browser clients connect from arbitrary origins; auth happens
			// in-band via the authenticate event, not via the Origin header.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		newConns:     make(chan *Session, 64),
		inSize:       inSize,
		outSize:      outSize,
		evtPerSec:    evtPerSec,
		writeTimeout: writeTimeout,
		log:          log,
		closeCh:      make(chan struct{}),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleUpgrade)
	s.httpSrv = &http.Server{Handler: mux}
	return s, nil
}

// Serve runs the HTTP accept loop in the calling goroutine until Shutdown.
func (s *Server) Serve() {
	if err := s.httpSrv.Serve(s.listener); err != nil && err != http.ErrServerClosed {
		select {
		case <-s.closeCh:
		default:
			s.log.Error("伺服器意外停止", zap.Error(err))
		}
	}
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("websocket 升級失敗", zap.Error(err))
		return
	}

	id := s.nextID.Add(1)
	sess := NewSession(conn, id, s.inSize, s.outSize, s.evtPerSec, s.writeTimeout, s.log)
	sess.Start()

	s.log.Info(fmt.Sprintf("玩家連線  session=%d  ip=%s", id, sess.IP))

	select {
	case s.newConns <- sess:
	default:
		s.log.Warn("連線佇列已滿，拒絕新連線")
		sess.Close()
	}
}

// NewSessions returns the channel of newly connected sessions.
func (s *Server) NewSessions() <-chan *Session {
	return s.newConns
}

// Shutdown stops accepting new connections.
func (s *Server) Shutdown() {
	close(s.closeCh)
	s.httpSrv.Close()
}

// Addr returns the listener's address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}
