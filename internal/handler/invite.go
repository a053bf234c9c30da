package handler

import (
	"encoding/json"

	"github.com/tradegate/server/internal/net"
	"github.com/tradegate/server/internal/wire"
)

// handleSendInvite proposes a trade to another user. The target does not
// need to be online — the notification is deferred until they connect.
func (c *Coordinator) handleSendInvite(sess *net.Session, data json.RawMessage) error {
	var d wire.SendInviteData
	if err := json.Unmarshal(data, &d); err != nil || d.To == "" {
		return wire.ErrInvalidInvite(sess.UserID, d.To)
	}
	return c.invites.SendInvite(sess.UserID, d.To)
}

// handleCancelInvite withdraws the caller's outbound invite.
func (c *Coordinator) handleCancelInvite(sess *net.Session, _ json.RawMessage) error {
	return c.invites.CancelInvite(sess.UserID)
}

// handleAcceptInvite accepts an inbound invite and starts the trade pair.
// The invite graph mutation and the pair creation happen under the same
// lock acquisition, so no event can observe the gap between them.
func (c *Coordinator) handleAcceptInvite(sess *net.Session, data json.RawMessage) error {
	var d wire.InviteRefData
	if err := json.Unmarshal(data, &d); err != nil || d.From == "" {
		return wire.ErrInvalidInvite(d.From, sess.UserID)
	}
	if err := c.invites.AcceptInvite(d.From, sess.UserID); err != nil {
		return err
	}
	return c.trades.StartTrade(d.From, sess.UserID)
}

// handleRejectInvite declines an inbound invite.
func (c *Coordinator) handleRejectInvite(sess *net.Session, data json.RawMessage) error {
	var d wire.InviteRefData
	if err := json.Unmarshal(data, &d); err != nil || d.From == "" {
		return wire.ErrInvalidInvite(d.From, sess.UserID)
	}
	return c.invites.RejectInvite(d.From, sess.UserID)
}
