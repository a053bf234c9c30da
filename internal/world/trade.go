package world

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/tradegate/server/internal/wire"
	"go.uber.org/zap"
)

// UserTradeInfo is one user's side of a trade pair.
type UserTradeInfo struct {
	UserID    string   `json:"userId"`
	Inventory []string `json:"inventory"`
	LockedIn  bool     `json:"lockedIn"`
	Accepted  bool     `json:"accepted"`
}

// TradePair is the mutual session created when an invite is accepted.
// Both participants map to the same pair in the manager.
type TradePair struct {
	ID        uuid.UUID
	Users     [2]*UserTradeInfo
	StartedAt time.Time
}

// Info returns (self, other) for the given participant.
func (p *TradePair) Info(userID string) (self, other *UserTradeInfo) {
	if p.Users[0].UserID == userID {
		return p.Users[0], p.Users[1]
	}
	return p.Users[1], p.Users[0]
}

// TradeCallbacks are injected at construction. For Unlocked, unlocked is the
// side whose lock cleared (its state drops back to InTrade) and notify is the
// non-acting participant to be told about it: the peer on an explicit unlock,
// the updater's partner on an auto-unlock.
type TradeCallbacks struct {
	TradeStarted     func(u1, u2 string)
	InventoryUpdated func(peer string, inventory []string)
	LockedIn         func(self, peer string, selfInv, otherInv []string)
	Unlocked         func(unlocked, notify string)
	TradeCancelled   func(self, peer string)
	TradeCompleted   func(pair *TradePair)
}

// TradeManager owns the active trade pairs. Accessed only under the
// coordinator lock. Invariants: a user is in at most one pair; both
// participants map to the same pair; accepted implies locked in.
type TradeManager struct {
	trades map[string]*TradePair
	cb     TradeCallbacks
	log    *zap.Logger
}

func NewTradeManager(cb TradeCallbacks, log *zap.Logger) *TradeManager {
	return &TradeManager{
		trades: make(map[string]*TradePair),
		cb:     cb,
		log:    log,
	}
}

// StartTrade allocates a fresh pair for two users, both sides empty and
// unlocked, and registers it under both ids.
func (m *TradeManager) StartTrade(u1, u2 string) error {
	if m.trades[u1] != nil || m.trades[u2] != nil {
		return fmt.Errorf("cannot start trade %q/%q: a participant is already trading", u1, u2)
	}
	pair := &TradePair{
		ID: uuid.New(),
		Users: [2]*UserTradeInfo{
			{UserID: u1, Inventory: []string{}},
			{UserID: u2, Inventory: []string{}},
		},
		StartedAt: time.Now(),
	}
	m.trades[u1] = pair
	m.trades[u2] = pair

	m.log.Debug("trade started",
		zap.String("trade", pair.ID.String()),
		zap.String("user1", u1),
		zap.String("user2", u2),
	)

	m.cb.TradeStarted(u1, u2)
	return nil
}

// UpdateInventory replaces the caller's proposed inventory. Any existing
// lock on either side is invalidated: the locks encode agreement over a
// specific inventory snapshot, so both are cleared and reported before the
// peer is told about the new inventory.
func (m *TradeManager) UpdateInventory(userID string, inventory []string) error {
	pair := m.trades[userID]
	if pair == nil {
		return fmt.Errorf("user %q not in a trade", userID)
	}
	self, other := pair.Info(userID)
	self.Inventory = slices.Clone(inventory)

	for _, side := range []*UserTradeInfo{self, other} {
		if side.LockedIn {
			side.LockedIn = false
			side.Accepted = false
			m.cb.Unlocked(side.UserID, other.UserID)
		}
	}

	m.cb.InventoryUpdated(other.UserID, slices.Clone(self.Inventory))
	return nil
}

// LockIn commits the caller to the (self, other) inventory snapshot they
// submit. Both claims must match the stored inventories as multisets.
func (m *TradeManager) LockIn(userID string, selfClaim, otherClaim []string) error {
	pair := m.trades[userID]
	if pair == nil {
		return fmt.Errorf("user %q not in a trade", userID)
	}
	self, other := pair.Info(userID)
	if !SameItems(selfClaim, self.Inventory) || !SameItems(otherClaim, other.Inventory) {
		return wire.ErrInventoryMismatch()
	}

	self.LockedIn = true
	m.cb.LockedIn(userID, other.UserID, slices.Clone(self.Inventory), slices.Clone(other.Inventory))
	return nil
}

// Unlock voluntarily releases the caller's lock.
func (m *TradeManager) Unlock(userID string) error {
	pair := m.trades[userID]
	if pair == nil {
		return fmt.Errorf("user %q not in a trade", userID)
	}
	self, other := pair.Info(userID)
	self.LockedIn = false
	self.Accepted = false
	m.cb.Unlocked(userID, other.UserID)
	return nil
}

// CancelTrade tears the pair down from either side.
func (m *TradeManager) CancelTrade(userID string) error {
	pair := m.trades[userID]
	if pair == nil {
		return fmt.Errorf("user %q not in a trade", userID)
	}
	self, other := pair.Info(userID)
	delete(m.trades, self.UserID)
	delete(m.trades, other.UserID)

	m.log.Debug("trade cancelled",
		zap.String("trade", pair.ID.String()),
		zap.String("by", userID),
	)

	m.cb.TradeCancelled(self.UserID, other.UserID)
	return nil
}

// CompleteTrade records the caller's acceptance. The first acceptance just
// waits; the second removes the pair and reports completion.
func (m *TradeManager) CompleteTrade(userID string) error {
	pair := m.trades[userID]
	if pair == nil {
		return fmt.Errorf("user %q not in a trade", userID)
	}
	self, other := pair.Info(userID)
	if !self.LockedIn || !other.LockedIn {
		return wire.ErrCantCompleteEitherUnlocked()
	}

	self.Accepted = true
	if !other.Accepted {
		return nil // two-phase: wait for the peer's completeTrade
	}

	delete(m.trades, self.UserID)
	delete(m.trades, other.UserID)

	m.log.Debug("trade completed",
		zap.String("trade", pair.ID.String()),
		zap.String("user1", pair.Users[0].UserID),
		zap.String("user2", pair.Users[1].UserID),
	)

	m.cb.TradeCompleted(pair)
	return nil
}

// UserDisconnected cancels any active trade the user is in. Connection loss
// is the only cancellation mechanism besides an explicit cancelTrade.
func (m *TradeManager) UserDisconnected(userID string) {
	if m.trades[userID] == nil {
		return
	}
	m.CancelTrade(userID)
}

// InTrade reports whether the user is a participant in an active pair.
func (m *TradeManager) InTrade(userID string) bool {
	return m.trades[userID] != nil
}

// Pair returns the user's active pair, or nil.
func (m *TradeManager) Pair(userID string) *TradePair {
	return m.trades[userID]
}

// SameItems reports multiset equality over item ids: equal length and equal
// sorted contents, independent of order.
func SameItems(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := slices.Clone(a)
	bs := slices.Clone(b)
	slices.Sort(as)
	slices.Sort(bs)
	return slices.Equal(as, bs)
}
