package world

import (
	"fmt"
	"sort"

	"github.com/tradegate/server/internal/wire"
	"go.uber.org/zap"
)

// InviteInfo holds the invite graph node for one user. Lazily materialized
// on first touch; lives for the process lifetime (small, bounded per user).
type InviteInfo struct {
	// InviteSentTo is the target of this user's single outbound invite
	// ("" = none).
	InviteSentTo string

	// PendingInvites is the authoritative set of inbound invites (sender ids).
	PendingInvites map[string]struct{}

	// PendingNotifications is the subset of PendingInvites that arrived while
	// this user was offline; replayed and cleared on connect.
	PendingNotifications map[string]struct{}

	Connected bool
}

// InviteCallbacks are injected at construction. The manager reports every
// invite graph mutation through them and never touches sessions or user
// states itself.
type InviteCallbacks struct {
	InviteSent      func(from, to string)
	InviteCancelled func(from, to string)
	InviteAccepted  func(from, to string)
	InviteRejected  func(from, to string)
}

// InviteManager owns the invite graph. Invariant: from.InviteSentTo == to
// exactly when from is in to.PendingInvites; every mutation keeps the two
// sides paired within a single operation.
type InviteManager struct {
	infos map[string]*InviteInfo
	cb    InviteCallbacks
	log   *zap.Logger
}

func NewInviteManager(cb InviteCallbacks, log *zap.Logger) *InviteManager {
	return &InviteManager{
		infos: make(map[string]*InviteInfo),
		cb:    cb,
		log:   log,
	}
}

// info materializes the invite node for a user.
func (m *InviteManager) info(userID string) *InviteInfo {
	in, ok := m.infos[userID]
	if !ok {
		in = &InviteInfo{
			PendingInvites:       make(map[string]struct{}),
			PendingNotifications: make(map[string]struct{}),
		}
		m.infos[userID] = in
	}
	return in
}

// UserConnected marks the user online and replays invites that arrived while
// they were offline. The authoritative PendingInvites set is untouched; only
// the replay queue is drained.
func (m *InviteManager) UserConnected(userID string) {
	in := m.info(userID)
	in.Connected = true

	if len(in.PendingNotifications) == 0 {
		return
	}
	senders := make([]string, 0, len(in.PendingNotifications))
	for from := range in.PendingNotifications {
		senders = append(senders, from)
	}
	sort.Strings(senders) // stable replay order
	in.PendingNotifications = make(map[string]struct{})

	for _, from := range senders {
		m.cb.InviteSent(from, userID)
	}
}

// UserDisconnected cancels the user's outbound invite (same path as an
// explicit cancel) and rejects all inbound invites from the senders' side,
// then marks the user offline.
func (m *InviteManager) UserDisconnected(userID string) {
	in := m.info(userID)

	if to := in.InviteSentTo; to != "" {
		m.removePairing(userID, to)
		m.cb.InviteCancelled(userID, to)
	}

	if len(in.PendingInvites) > 0 {
		senders := make([]string, 0, len(in.PendingInvites))
		for from := range in.PendingInvites {
			senders = append(senders, from)
		}
		sort.Strings(senders)
		for _, from := range senders {
			m.removePairing(from, userID)
			m.cb.InviteRejected(from, userID)
		}
	}

	in.Connected = false
}

// SendInvite records from → to. If the recipient is offline the notification
// is queued for replay; the InviteSent callback still fires so the sender's
// state transition happens immediately.
func (m *InviteManager) SendInvite(from, to string) error {
	if from == to {
		return wire.ErrSelfInvite()
	}
	fromInfo := m.info(from)
	if fromInfo.InviteSentTo != "" {
		// The state gate admits sendInvite only from InLobby, so an existing
		// outbound invite here is a server bug.
		return fmt.Errorf("user %q already has an outbound invite to %q", from, fromInfo.InviteSentTo)
	}

	toInfo := m.info(to)
	fromInfo.InviteSentTo = to
	toInfo.PendingInvites[from] = struct{}{}
	if !toInfo.Connected {
		toInfo.PendingNotifications[from] = struct{}{}
		m.log.Debug("invite deferred, recipient offline",
			zap.String("from", from),
			zap.String("to", to),
		)
	}

	m.cb.InviteSent(from, to)
	return nil
}

// CancelInvite withdraws the user's outbound invite.
func (m *InviteManager) CancelInvite(from string) error {
	to := m.info(from).InviteSentTo
	if to == "" {
		return wire.ErrInvalidInvite(from, "")
	}
	m.removePairing(from, to)
	m.cb.InviteCancelled(from, to)
	return nil
}

// AcceptInvite removes the from → to pairing and reports acceptance. The
// coordinator starts the trade; the manager only maintains the graph.
func (m *InviteManager) AcceptInvite(from, to string) error {
	if m.info(from).InviteSentTo != to {
		return wire.ErrInvalidInvite(from, to)
	}
	m.removePairing(from, to)
	m.cb.InviteAccepted(from, to)
	return nil
}

// RejectInvite removes the from → to pairing and reports rejection.
func (m *InviteManager) RejectInvite(from, to string) error {
	if m.info(from).InviteSentTo != to {
		return wire.ErrInvalidInvite(from, to)
	}
	m.removePairing(from, to)
	m.cb.InviteRejected(from, to)
	return nil
}

// removePairing clears both sides of an invite atomically with respect to
// the coordinator lock.
func (m *InviteManager) removePairing(from, to string) {
	m.info(from).InviteSentTo = ""
	toInfo := m.info(to)
	delete(toInfo.PendingInvites, from)
	delete(toInfo.PendingNotifications, from)
}

// OutboundInvite returns the target of the user's outbound invite, if any.
func (m *InviteManager) OutboundInvite(userID string) (string, bool) {
	to := m.info(userID).InviteSentTo
	return to, to != ""
}

// HasPendingInvite reports whether to has an inbound invite from from.
func (m *InviteManager) HasPendingInvite(to, from string) bool {
	_, ok := m.info(to).PendingInvites[from]
	return ok
}
