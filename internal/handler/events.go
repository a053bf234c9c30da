package handler

import (
	"context"
	"fmt"
	"time"

	"github.com/tradegate/server/internal/persist"
	"github.com/tradegate/server/internal/wire"
	"github.com/tradegate/server/internal/world"
	"go.uber.org/zap"
)

// emit sends a server event to a user's session, if they still have one.
// Notifications are never retried: a missing session means the user already
// went through disconnect cleanup and the event is simply discarded.
func (c *Coordinator) emit(userID, event string, payload any) {
	sess := c.deps.World.Get(userID)
	if sess == nil {
		return
	}
	sess.Send(wire.EncodeEvent(event, payload))
}

// setState transitions a connected user's state. The coordinator is the
// only writer of UserState; managers report what happened and this is where
// it lands.
func (c *Coordinator) setState(userID string, st wire.UserState) {
	if sess := c.deps.World.Get(userID); sess != nil {
		sess.SetState(st)
	}
}

// inviteCallbacks wires invite graph mutations to state transitions and
// peer notifications. All callbacks run under the coordinator lock.
func (c *Coordinator) inviteCallbacks() world.InviteCallbacks {
	return world.InviteCallbacks{
		InviteSent: func(from, to string) {
			c.setState(from, wire.StateSentInvite)
			c.emit(to, wire.EventInviteReceived, wire.FromData{From: from})
		},
		InviteCancelled: func(from, to string) {
			c.setState(from, wire.StateInLobby)
			c.emit(to, wire.EventInviteCancelled, wire.FromData{From: from})
		},
		InviteAccepted: func(from, to string) {
			// The sender's state is set by TradeStarted right after.
			c.emit(from, wire.EventInviteAccepted, wire.ToData{To: to})
		},
		InviteRejected: func(from, to string) {
			c.setState(from, wire.StateInLobby)
			c.emit(from, wire.EventInviteRejected, wire.ToData{To: to})
		},
	}
}

// tradeCallbacks wires trade pair mutations to state transitions and peer
// notifications. All callbacks run under the coordinator lock except the
// settlement/audit work, which finalizeTrade pushes onto a goroutine.
func (c *Coordinator) tradeCallbacks() world.TradeCallbacks {
	return world.TradeCallbacks{
		TradeStarted: func(u1, u2 string) {
			c.setState(u1, wire.StateInTrade)
			c.setState(u2, wire.StateInTrade)
			c.emit(u1, wire.EventTradeStarted, wire.PeerData{Peer: u2})
			c.emit(u2, wire.EventTradeStarted, wire.PeerData{Peer: u1})
		},
		InventoryUpdated: func(peer string, inventory []string) {
			c.emit(peer, wire.EventInventoryUpdated, wire.InventoryData{Inventory: inventory})
		},
		LockedIn: func(self, peer string, selfInv, otherInv []string) {
			c.setState(self, wire.StateLockedIn)
			c.emit(peer, wire.EventLockedIn, wire.LockedInData{
				Inventory:      selfInv,
				OtherInventory: otherInv,
			})
		},
		Unlocked: func(unlocked, notify string) {
			c.setState(unlocked, wire.StateInTrade)
			c.emit(notify, wire.EventUnlocked, nil)
		},
		TradeCancelled: func(self, peer string) {
			c.setState(self, wire.StateInLobby)
			c.setState(peer, wire.StateInLobby)
			c.emit(peer, wire.EventTradeCancelled, nil)
		},
		TradeCompleted: func(pair *world.TradePair) {
			u1 := pair.Users[0].UserID
			u2 := pair.Users[1].UserID
			c.setState(u1, wire.StateInLobby)
			c.setState(u2, wire.StateInLobby)
			c.emit(u1, wire.EventTradeCompleted, nil)
			c.emit(u2, wire.EventTradeCompleted, nil)

			c.deps.Log.Info(fmt.Sprintf("交易完成  trade=%s  玩家1=%s  玩家2=%s", pair.ID, u1, u2))

			c.finalizeTrade(pair)
		},
	}
}

// finalizeTrade runs the post-completion work — audit log, operator hook,
// settlement — on its own goroutine. The pair is already removed and both
// users notified; nothing here holds the coordinator lock or can undo the
// trade, failures are logged and that is all.
func (c *Coordinator) finalizeTrade(pair *world.TradePair) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if c.deps.TradeLog != nil {
			a, b := pair.Users[0], pair.Users[1]
			entries := []persist.TradeLogEntry{
				{TradeID: pair.ID, FromUser: a.UserID, ToUser: b.UserID, Inventory: a.Inventory},
				{TradeID: pair.ID, FromUser: b.UserID, ToUser: a.UserID, Inventory: b.Inventory},
			}
			if err := c.deps.TradeLog.Record(ctx, entries); err != nil {
				c.deps.Log.Error("交易紀錄寫入失敗",
					zap.String("trade", pair.ID.String()),
					zap.Error(err),
				)
			}
		}

		if c.deps.Scripting != nil {
			c.deps.Scripting.OnTradeCompleted(pair.Users[0].UserID, pair.Users[1].UserID)
		}

		if c.deps.Settler != nil {
			if err := c.deps.Settler.PerformTrade(ctx, pair); err != nil {
				c.deps.Log.Error("交易結算失敗",
					zap.String("trade", pair.ID.String()),
					zap.Error(err),
				)
			}
		}
	}()
}
