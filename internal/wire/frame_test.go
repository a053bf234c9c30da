package wire

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeFrame(t *testing.T) {
	f, err := DecodeFrame([]byte(`{"id":7,"event":"sendInvite","data":{"to":"bob"}}`))
	require.NoError(t, err)
	assert.Equal(t, int64(7), f.ID)
	assert.Equal(t, "sendInvite", f.Event)

	var d SendInviteData
	require.NoError(t, json.Unmarshal(f.Data, &d))
	assert.Equal(t, "bob", d.To)
}

func TestDecodeFrame_Invalid(t *testing.T) {
	_, err := DecodeFrame([]byte(`not json`))
	assert.Error(t, err)

	_, err = DecodeFrame([]byte(`{"id":1,"data":{}}`))
	assert.Error(t, err, "missing event name must be rejected")
}

func TestEncodeAck(t *testing.T) {
	var ack Ack

	require.NoError(t, json.Unmarshal(EncodeAck(3, nil), &ack))
	assert.Equal(t, Ack{ID: 3, OK: true}, ack)

	require.NoError(t, json.Unmarshal(EncodeAck(4, ErrSelfInvite()), &ack))
	assert.Equal(t, int64(4), ack.ID)
	assert.False(t, ack.OK)
	require.NotNil(t, ack.Error)
	assert.Equal(t, "SelfInviteError", ack.Error.Name)
}

func TestEncodeAck_MasksInternalErrors(t *testing.T) {
	raw := EncodeAck(5, assert.AnError)

	var ack Ack
	require.NoError(t, json.Unmarshal(raw, &ack))
	require.NotNil(t, ack.Error)
	assert.Equal(t, "InternalError", ack.Error.Name)
	assert.Equal(t, "internal server error", ack.Error.Message)
	assert.NotContains(t, string(raw), assert.AnError.Error())
}

func TestEncodeEvent(t *testing.T) {
	raw := EncodeEvent(EventInviteReceived, FromData{From: "alice"})
	assert.JSONEq(t, `{"event":"inviteReceived","data":{"from":"alice"}}`, string(raw))

	raw = EncodeEvent(EventUnlocked, nil)
	assert.JSONEq(t, `{"event":"unlocked"}`, string(raw))
}
