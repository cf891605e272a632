package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func TestDecodeFrame_Dispatches_On_Type(t *testing.T) {
	req := require.New(t)

	frame, err := DecodeFrame([]byte(`{"type":"register","userId":"alice"}`))
	req.NoError(err)
	req.Equal(RegisterFrame{UserID: "alice"}, frame)

	frame, err = DecodeFrame([]byte(`{"type":"join","userId":"alice","sessionId":"s1","otherUserId":"bob"}`))
	req.NoError(err)
	req.Equal(JoinFrame{UserID: "alice", SessionID: "s1", OtherUserID: "bob"}, frame)

	frame, err = DecodeFrame([]byte(`{"type":"message","content":"hello"}`))
	req.NoError(err)
	req.Equal(MessageFrame{Content: "hello"}, frame)

	frame, err = DecodeFrame([]byte(`{"type":"message","content":"hello","replyTo":"m42"}`))
	req.NoError(err)
	req.Equal(MessageFrame{Content: "hello", ReplyTo: lo.ToPtr("m42")}, frame)

	frame, err = DecodeFrame([]byte(`{"type":"ping"}`))
	req.NoError(err)
	req.Equal(PingFrame{}, frame)
}

func TestDecodeFrame_Unknown_Type_Is_Dropped_Without_Error(t *testing.T) {
	req := require.New(t)

	frame, err := DecodeFrame([]byte(`{"type":"dance"}`))
	req.NoError(err)
	req.Nil(frame)
}

func TestDecodeFrame_Invalid_JSON_Is_The_Only_Error(t *testing.T) {
	req := require.New(t)

	frame, err := DecodeFrame([]byte(`{"type":`))
	req.Error(err)
	req.Nil(frame)
}

func TestEventFrame_Serializes_Missing_ReplyTo_As_Null(t *testing.T) {
	req := require.New(t)
	at := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

	data := EncodeFrame(NewMessageEvent("alice", "hello", nil, at))
	req.JSONEq(`{
		"type": "message",
		"from": "alice",
		"content": "hello",
		"replyTo": null,
		"timestamp": "2026-03-14T09:26:53Z"
	}`, string(data))
}

func TestNotification_Carries_The_Same_Payload_Shape(t *testing.T) {
	req := require.New(t)
	at := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

	data := EncodeFrame(NewNotification("alice", "hello", lo.ToPtr("m1"), at))

	var decoded EventFrame
	req.NoError(json.Unmarshal(data, &decoded))
	req.Equal(FrameNotification, decoded.Type)
	req.Equal("alice", decoded.From)
	req.Equal("m1", *decoded.ReplyTo)
	req.True(at.Equal(decoded.Timestamp))
}
