package wire

import "fmt"

// UserState represents a connection's current phase in the trade protocol.
// It is owned exclusively by the session coordinator; managers never set it.
type UserState int

const (
	StateNoUserID  UserState = iota // connected, not authenticated
	StateInLobby                    // authenticated, idle
	StateSentInvite                 // one outbound invite outstanding
	StateInTrade                    // in an active trade pair, not locked
	StateLockedIn                   // in an active trade pair, locked
)

func (s UserState) String() string {
	switch s {
	case StateNoUserID:
		return "NoUserId"
	case StateInLobby:
		return "InLobby"
	case StateSentInvite:
		return "SentInvite"
	case StateInTrade:
		return "InTrade"
	case StateLockedIn:
		return "LockedIn"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}
