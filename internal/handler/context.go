package handler

import (
	"encoding/json"
	"sync"

	"github.com/tradegate/server/internal/auth"
	"github.com/tradegate/server/internal/config"
	"github.com/tradegate/server/internal/data"
	"github.com/tradegate/server/internal/net"
	"github.com/tradegate/server/internal/persist"
	"github.com/tradegate/server/internal/scripting"
	"github.com/tradegate/server/internal/settle"
	"github.com/tradegate/server/internal/wire"
	"github.com/tradegate/server/internal/world"
	"go.uber.org/zap"
)

// Deps holds shared dependencies injected into the coordinator. Settler,
// TradeLog, Items and Scripting are optional (nil disables the feature).
type Deps struct {
	Config    *config.Config
	Log       *zap.Logger
	World     *world.State
	Verifier  *auth.Verifier
	Settler   *settle.Client
	TradeLog  *persist.TradeLogRepo
	Items     *data.ItemTable
	Scripting *scripting.Engine
}

// Coordinator is the session coordination layer. It owns the connection
// registry and every UserState transition, gates inbound actions by state,
// and translates manager callbacks into peer notifications. All of that
// happens under a single mutex: actions are short and never block on I/O,
// so one lock is simpler than per-pair locking and just as correct.
type Coordinator struct {
	deps    *Deps
	reg     *wire.Registry
	invites *world.InviteManager
	trades  *world.TradeManager

	mu sync.Mutex // guards registry state, invite graph and trade pairs
}

func NewCoordinator(deps *Deps) *Coordinator {
	c := &Coordinator{
		deps: deps,
		reg:  wire.NewRegistry(deps.Log),
	}
	c.invites = world.NewInviteManager(c.inviteCallbacks(), deps.Log)
	c.trades = world.NewTradeManager(c.tradeCallbacks(), deps.Log)
	c.registerAll()
	return c
}

// registerAll maps every client event to its handler with the states the
// action is legal in. This table is the single source of truth; handlers
// never re-check.
func (c *Coordinator) registerAll() {
	lobby := []wire.UserState{wire.StateInLobby}

	c.reg.Register(wire.EventAuthenticate,
		[]wire.UserState{wire.StateNoUserID},
		func(sess any, d json.RawMessage) error {
			return c.handleAuthenticate(sess.(*net.Session), d)
		},
	)
	c.reg.Register(wire.EventLogOut, lobby,
		func(sess any, d json.RawMessage) error {
			return c.handleLogOut(sess.(*net.Session), d)
		},
	)

	// Invites. acceptInvite is deliberately lobby-only: accepting while an
	// own outbound invite is pending would cancel it implicitly, which we
	// don't do — the user cancels first.
	c.reg.Register(wire.EventSendInvite, lobby,
		func(sess any, d json.RawMessage) error {
			return c.handleSendInvite(sess.(*net.Session), d)
		},
	)
	c.reg.Register(wire.EventCancelInvite,
		[]wire.UserState{wire.StateSentInvite},
		func(sess any, d json.RawMessage) error {
			return c.handleCancelInvite(sess.(*net.Session), d)
		},
	)
	c.reg.Register(wire.EventAcceptInvite, lobby,
		func(sess any, d json.RawMessage) error {
			return c.handleAcceptInvite(sess.(*net.Session), d)
		},
	)
	c.reg.Register(wire.EventRejectInvite,
		[]wire.UserState{wire.StateInLobby, wire.StateSentInvite},
		func(sess any, d json.RawMessage) error {
			return c.handleRejectInvite(sess.(*net.Session), d)
		},
	)

	// Trade
	inTrade := []wire.UserState{wire.StateInTrade}
	lockedIn := []wire.UserState{wire.StateLockedIn}

	c.reg.Register(wire.EventUpdateInventory, inTrade,
		func(sess any, d json.RawMessage) error {
			return c.handleUpdateInventory(sess.(*net.Session), d)
		},
	)
	c.reg.Register(wire.EventLockIn, inTrade,
		func(sess any, d json.RawMessage) error {
			return c.handleLockIn(sess.(*net.Session), d)
		},
	)
	c.reg.Register(wire.EventUnlock, lockedIn,
		func(sess any, d json.RawMessage) error {
			return c.handleUnlock(sess.(*net.Session), d)
		},
	)
	c.reg.Register(wire.EventCancelTrade, inTrade,
		func(sess any, d json.RawMessage) error {
			return c.handleCancelTrade(sess.(*net.Session), d)
		},
	)
	c.reg.Register(wire.EventCompleteTrade, lockedIn,
		func(sess any, d json.RawMessage) error {
			return c.handleCompleteTrade(sess.(*net.Session), d)
		},
	)
}

// Run consumes new sessions from the server and serves each in its own
// goroutine until the server shuts down.
func (c *Coordinator) Run(srv *net.Server) {
	for sess := range srv.NewSessions() {
		go c.ServeSession(sess)
	}
}

// ServeSession is the per-connection event loop: frames are processed one
// at a time in arrival order, each acked exactly once. When the session
// dies, the disconnect path runs through the same cleanup as an explicit
// logOut.
func (c *Coordinator) ServeSession(sess *net.Session) {
	for {
		select {
		case raw := <-sess.InQueue:
			c.handleFrame(sess, raw)
		case <-sess.Done():
			c.mu.Lock()
			c.logOutLocked(sess)
			c.mu.Unlock()
			return
		}
	}
}

// handleFrame decodes one client frame, dispatches it under the coordinator
// lock, and acks it. Peer notifications are enqueued inside the handler, so
// the ack is never observed before them.
func (c *Coordinator) handleFrame(sess *net.Session, raw []byte) {
	f, err := wire.DecodeFrame(raw)
	if err != nil {
		// Not a protocol frame at all; drop the connection.
		c.deps.Log.Debug("無法解析的訊息，斷開連線",
			zap.Uint64("session", sess.ID),
			zap.Error(err),
		)
		sess.Close()
		return
	}

	c.mu.Lock()
	err = c.reg.Dispatch(sess, sess.State(), f)
	c.mu.Unlock()

	if err != nil && wire.AsUserError(err) == nil {
		c.deps.Log.Error("內部錯誤",
			zap.Uint64("session", sess.ID),
			zap.String("event", f.Event),
			zap.Error(err),
		)
	}

	sess.Send(wire.EncodeAck(f.ID, err))
}
