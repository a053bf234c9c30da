package handler

import (
	"encoding/json"
	"fmt"

	"github.com/tradegate/server/internal/net"
	"github.com/tradegate/server/internal/wire"
)

// handleUpdateInventory replaces the caller's proposed item list. Items
// marked non-tradeable in the catalog are refused up front; ownership is
// the settlement backend's problem, not ours.
func (c *Coordinator) handleUpdateInventory(sess *net.Session, data json.RawMessage) error {
	var d wire.UpdateInventoryData
	if err := json.Unmarshal(data, &d); err != nil {
		return fmt.Errorf("malformed updateInventory payload: %w", err)
	}

	if c.deps.Items != nil {
		if id := c.deps.Items.FirstNonTradeable(d.Inventory); id != "" {
			return wire.ErrItemNotTradable(id)
		}
	}

	return c.trades.UpdateInventory(sess.UserID, d.Inventory)
}

// handleLockIn commits the caller to the inventory snapshot they submit.
// The claims are compared as multisets, so any permutation of the same
// items locks identically.
func (c *Coordinator) handleLockIn(sess *net.Session, data json.RawMessage) error {
	var d wire.LockInData
	if err := json.Unmarshal(data, &d); err != nil {
		return fmt.Errorf("malformed lockIn payload: %w", err)
	}
	return c.trades.LockIn(sess.UserID, d.Inventory, d.OtherInventory)
}

func (c *Coordinator) handleUnlock(sess *net.Session, _ json.RawMessage) error {
	return c.trades.Unlock(sess.UserID)
}

func (c *Coordinator) handleCancelTrade(sess *net.Session, _ json.RawMessage) error {
	return c.trades.CancelTrade(sess.UserID)
}

func (c *Coordinator) handleCompleteTrade(sess *net.Session, _ json.RawMessage) error {
	return c.trades.CompleteTrade(sess.UserID)
}
