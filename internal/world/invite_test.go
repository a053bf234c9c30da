package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tradegate/server/internal/wire"
	"go.uber.org/zap"
)

type inviteEvent struct {
	kind string // "sent", "cancelled", "accepted", "rejected"
	from string
	to   string
}

// newInviteRecorder builds a manager whose callbacks append to a shared log,
// so tests can assert on both graph state and emitted notifications.
func newInviteRecorder() (*InviteManager, *[]inviteEvent) {
	events := &[]inviteEvent{}
	record := func(kind string) func(from, to string) {
		return func(from, to string) {
			*events = append(*events, inviteEvent{kind, from, to})
		}
	}
	m := NewInviteManager(InviteCallbacks{
		InviteSent:      record("sent"),
		InviteCancelled: record("cancelled"),
		InviteAccepted:  record("accepted"),
		InviteRejected:  record("rejected"),
	}, zap.NewNop())
	return m, events
}

func TestSendInvite(t *testing.T) {
	m, events := newInviteRecorder()
	m.UserConnected("alice")
	m.UserConnected("bob")

	require.NoError(t, m.SendInvite("alice", "bob"))

	to, ok := m.OutboundInvite("alice")
	require.True(t, ok)
	assert.Equal(t, "bob", to)
	assert.True(t, m.HasPendingInvite("bob", "alice"))
	assert.Equal(t, []inviteEvent{{"sent", "alice", "bob"}}, *events)
}

func TestSendInvite_Self(t *testing.T) {
	m, _ := newInviteRecorder()
	m.UserConnected("alice")

	err := m.SendInvite("alice", "alice")
	require.Error(t, err)
	ue := wire.AsUserError(err)
	require.NotNil(t, ue)
	assert.Equal(t, "SelfInviteError", ue.Name)
}

func TestSendInvite_SecondOutboundIsInternal(t *testing.T) {
	m, _ := newInviteRecorder()
	m.UserConnected("alice")
	m.UserConnected("bob")
	m.UserConnected("carol")

	require.NoError(t, m.SendInvite("alice", "bob"))

	// The state gate prevents this; reaching the manager is a server bug,
	// so the error must not be classified.
	err := m.SendInvite("alice", "carol")
	require.Error(t, err)
	assert.Nil(t, wire.AsUserError(err))
}

func TestSendThenCancel_IsNoOp(t *testing.T) {
	m, _ := newInviteRecorder()
	m.UserConnected("alice")
	m.UserConnected("bob")

	require.NoError(t, m.SendInvite("alice", "bob"))
	require.NoError(t, m.CancelInvite("alice"))

	_, ok := m.OutboundInvite("alice")
	assert.False(t, ok)
	assert.False(t, m.HasPendingInvite("bob", "alice"))
}

func TestCancelInvite_NoneOutstanding(t *testing.T) {
	m, _ := newInviteRecorder()
	m.UserConnected("alice")

	err := m.CancelInvite("alice")
	require.Error(t, err)
	ue := wire.AsUserError(err)
	require.NotNil(t, ue)
	assert.Equal(t, "InvalidInviteError", ue.Name)
}

func TestAcceptInvite(t *testing.T) {
	m, events := newInviteRecorder()
	m.UserConnected("alice")
	m.UserConnected("bob")

	require.NoError(t, m.SendInvite("alice", "bob"))
	require.NoError(t, m.AcceptInvite("alice", "bob"))

	_, ok := m.OutboundInvite("alice")
	assert.False(t, ok)
	assert.False(t, m.HasPendingInvite("bob", "alice"))
	assert.Equal(t, inviteEvent{"accepted", "alice", "bob"}, (*events)[len(*events)-1])
}

func TestAcceptInvite_WrongSender(t *testing.T) {
	m, _ := newInviteRecorder()
	m.UserConnected("alice")
	m.UserConnected("bob")

	require.NoError(t, m.SendInvite("alice", "bob"))

	err := m.AcceptInvite("carol", "bob")
	require.Error(t, err)
	ue := wire.AsUserError(err)
	require.NotNil(t, ue)
	assert.Equal(t, "InvalidInviteError", ue.Name)

	// The real invite survives an invalid accept.
	assert.True(t, m.HasPendingInvite("bob", "alice"))
}

func TestRejectInvite(t *testing.T) {
	m, events := newInviteRecorder()
	m.UserConnected("alice")
	m.UserConnected("bob")

	require.NoError(t, m.SendInvite("alice", "bob"))
	require.NoError(t, m.RejectInvite("alice", "bob"))

	_, ok := m.OutboundInvite("alice")
	assert.False(t, ok)
	assert.False(t, m.HasPendingInvite("bob", "alice"))
	assert.Equal(t, inviteEvent{"rejected", "alice", "bob"}, (*events)[len(*events)-1])
}

func TestOfflineInviteDeferral(t *testing.T) {
	m, events := newInviteRecorder()
	m.UserConnected("alice")

	// bob has never connected: the invite is recorded and the sender-side
	// callback still fires, but the replay happens on connect.
	require.NoError(t, m.SendInvite("alice", "bob"))
	assert.True(t, m.HasPendingInvite("bob", "alice"))
	assert.Equal(t, []inviteEvent{{"sent", "alice", "bob"}}, *events)

	m.UserConnected("bob")
	assert.Equal(t, []inviteEvent{
		{"sent", "alice", "bob"},
		{"sent", "alice", "bob"}, // replayed for the recipient
	}, *events)

	// The replay queue drains once; reconnecting must not replay again.
	m.UserDisconnected("bob")
	*events = nil
	m.UserConnected("bob")
	assert.Empty(t, *events)
}

func TestUserDisconnected_CancelsOutbound(t *testing.T) {
	m, events := newInviteRecorder()
	m.UserConnected("alice")
	m.UserConnected("bob")

	require.NoError(t, m.SendInvite("alice", "bob"))
	*events = nil

	m.UserDisconnected("alice")

	_, ok := m.OutboundInvite("alice")
	assert.False(t, ok)
	assert.False(t, m.HasPendingInvite("bob", "alice"))
	assert.Equal(t, []inviteEvent{{"cancelled", "alice", "bob"}}, *events)
}

func TestUserDisconnected_RejectsInbound(t *testing.T) {
	m, events := newInviteRecorder()
	m.UserConnected("alice")
	m.UserConnected("bob")
	m.UserConnected("carol")

	require.NoError(t, m.SendInvite("alice", "carol"))
	require.NoError(t, m.SendInvite("bob", "carol"))
	*events = nil

	m.UserDisconnected("carol")

	// Both senders get their invite back, in deterministic order.
	assert.Equal(t, []inviteEvent{
		{"rejected", "alice", "carol"},
		{"rejected", "bob", "carol"},
	}, *events)
	_, ok := m.OutboundInvite("alice")
	assert.False(t, ok)
	_, ok = m.OutboundInvite("bob")
	assert.False(t, ok)
}
