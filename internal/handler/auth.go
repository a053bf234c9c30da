package handler

import (
	"encoding/json"
	"fmt"

	"github.com/tradegate/server/internal/net"
	"github.com/tradegate/server/internal/wire"
)

// handleAuthenticate verifies the credential token, registers the session
// under its user id, and replays invites that arrived while the user was
// offline. A user id may only be bound to one live connection.
func (c *Coordinator) handleAuthenticate(sess *net.Session, data json.RawMessage) error {
	var d wire.AuthenticateData
	if err := json.Unmarshal(data, &d); err != nil {
		return wire.ErrAuth("malformed authenticate payload")
	}

	userID, err := c.deps.Verifier.VerifyToken(d.Token)
	if err != nil {
		return err
	}

	if c.deps.World.Get(userID) != nil {
		return wire.ErrUserAlreadyAuthenticated(userID)
	}

	sess.UserID = userID
	c.deps.World.Add(userID, sess)
	sess.SetState(wire.StateInLobby)

	// Replays deferred inviteReceived notifications to this session.
	c.invites.UserConnected(userID)

	c.deps.Log.Info(fmt.Sprintf("登入成功  玩家=%s  session=%d  ip=%s", userID, sess.ID, sess.IP))
	return nil
}

// handleLogOut is the explicit form of the disconnect path; the connection
// stays open in NoUserId state and may authenticate again.
func (c *Coordinator) handleLogOut(sess *net.Session, _ json.RawMessage) error {
	c.logOutLocked(sess)
	return nil
}

// logOutLocked tears down a user's presence: outstanding invites are
// cancelled (as sender) and rejected (as recipient), any active trade is
// cancelled, and the registry entry is removed. Caller holds c.mu.
func (c *Coordinator) logOutLocked(sess *net.Session) {
	userID := sess.UserID
	if userID == "" {
		return
	}
	if c.deps.World.Get(userID) != sess {
		// A stale session that already lost its registry entry.
		sess.UserID = ""
		return
	}

	c.invites.UserDisconnected(userID)
	c.trades.UserDisconnected(userID)

	c.deps.World.Remove(userID, sess)
	sess.UserID = ""
	sess.SetState(wire.StateNoUserID)

	c.deps.Log.Info(fmt.Sprintf("玩家離線  玩家=%s  session=%d", userID, sess.ID))
}
