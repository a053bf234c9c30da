package wire

import (
	"encoding/json"
	"fmt"
)

// Client → server event names. Each client frame carries a correlation id
// and is acknowledged exactly once.
const (
	EventAuthenticate    = "authenticate"
	EventLogOut          = "logOut"
	EventSendInvite      = "sendInvite"
	EventCancelInvite    = "cancelInvite"
	EventAcceptInvite    = "acceptInvite"
	EventRejectInvite    = "rejectInvite"
	EventUpdateInventory = "updateInventory"
	EventLockIn          = "lockIn"
	EventUnlock          = "unlock"
	EventCancelTrade     = "cancelTrade"
	EventCompleteTrade   = "completeTrade"
)

// Server → client event names.
const (
	EventInviteReceived   = "inviteReceived"
	EventInviteCancelled  = "inviteCancelled"
	EventInviteAccepted   = "inviteAccepted"
	EventInviteRejected   = "inviteRejected"
	EventTradeStarted     = "tradeStarted"
	EventInventoryUpdated = "inventoryUpdated"
	EventLockedIn         = "lockedIn"
	EventUnlocked         = "unlocked"
	EventTradeCancelled   = "tradeCancelled"
	EventTradeCompleted   = "tradeCompleted"
	EventError            = "error"
)

// Frame is a client → server message: {"id": 7, "event": "sendInvite", "data": {...}}.
type Frame struct {
	ID    int64           `json:"id"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Ack is the server's response to a client frame, matched by id.
type Ack struct {
	ID    int64      `json:"id"`
	OK    bool       `json:"ok"`
	Error *UserError `json:"error,omitempty"`
}

// ServerEvent is an unsolicited server → client notification.
type ServerEvent struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// --- client frame payloads ---

type AuthenticateData struct {
	Token string `json:"token"`
}

type SendInviteData struct {
	To string `json:"to"`
}

type InviteRefData struct {
	From string `json:"from"`
}

type UpdateInventoryData struct {
	Inventory []string `json:"inventory"`
}

type LockInData struct {
	Inventory      []string `json:"inventory"`
	OtherInventory []string `json:"otherInventory"`
}

// --- server event payloads ---

type FromData struct {
	From string `json:"from"`
}

type ToData struct {
	To string `json:"to"`
}

type PeerData struct {
	Peer string `json:"peer"`
}

type InventoryData struct {
	Inventory []string `json:"inventory"`
}

type LockedInData struct {
	Inventory      []string `json:"inventory"`
	OtherInventory []string `json:"otherInventory"`
}

// DecodeFrame parses a raw websocket text message into a Frame.
func DecodeFrame(data []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	if f.Event == "" {
		return nil, fmt.Errorf("decode frame: missing event name")
	}
	return &f, nil
}

// EncodeAck builds the ack bytes for a frame id. A *UserError becomes the
// classified error body; any other non-nil error is masked as an internal
// error (details stay in the server log).
func EncodeAck(id int64, err error) []byte {
	ack := Ack{ID: id, OK: err == nil}
	if err != nil {
		if ue := AsUserError(err); ue != nil {
			ack.Error = ue
		} else {
			ack.Error = &UserError{Name: "InternalError", Message: "internal server error"}
		}
	}
	data, _ := json.Marshal(ack)
	return data
}

// EncodeEvent builds the bytes for a server → client event.
func EncodeEvent(event string, data any) []byte {
	out, _ := json.Marshal(ServerEvent{Event: event, Data: data})
	return out
}
