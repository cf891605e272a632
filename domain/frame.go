package domain

import (
	"encoding/json"
	"time"
)

// Frame is the closed set of client-initiated frames. Dispatch on the concrete
// type is exhaustive; there is no field-presence sniffing past decoding.
type Frame interface {
	frameKind() string
}

type RegisterFrame struct {
	UserID string
}

type JoinFrame struct {
	UserID      string
	SessionID   string
	OtherUserID string
}

type MessageFrame struct {
	Content string
	ReplyTo *string
}

type PingFrame struct{}

func (RegisterFrame) frameKind() string { return "register" }
func (JoinFrame) frameKind() string     { return "join" }
func (MessageFrame) frameKind() string  { return "message" }
func (PingFrame) frameKind() string     { return "ping" }

// envelope is the raw shape of every inbound frame before dispatch.
type envelope struct {
	Type        string  `json:"type"`
	UserID      string  `json:"userId"`
	SessionID   string  `json:"sessionId"`
	OtherUserID string  `json:"otherUserId"`
	Content     string  `json:"content"`
	ReplyTo     *string `json:"replyTo"`
}

// DecodeFrame parses one inbound frame.
// A JSON parse failure is the only error; an unknown frame type decodes to a
// nil Frame with no error and the caller drops it silently. This asymmetry is
// part of the protocol: only unparseable input gets an error reply.
func DecodeFrame(data []byte) (Frame, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	switch env.Type {
	case "register":
		return RegisterFrame{UserID: env.UserID}, nil
	case "join":
		return JoinFrame{UserID: env.UserID, SessionID: env.SessionID, OtherUserID: env.OtherUserID}, nil
	case "message":
		return MessageFrame{Content: env.Content, ReplyTo: env.ReplyTo}, nil
	case "ping":
		return PingFrame{}, nil
	default:
		return nil, nil
	}
}

// Server-to-client frames. ReplyTo intentionally has no omitempty so a message
// without a parent serializes as "replyTo":null.

type RegisteredFrame struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
}

type JoinedFrame struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
}

type EventFrame struct {
	Type      string    `json:"type"`
	From      string    `json:"from"`
	Content   string    `json:"content"`
	ReplyTo   *string   `json:"replyTo"`
	Timestamp time.Time `json:"timestamp"`
}

type PongFrame struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

type ErrorFrame struct {
	Error string `json:"error"`
}

const (
	FrameRegistered   = "registered"
	FrameJoined       = "joined"
	FrameMessage      = "message"
	FrameNotification = "notification"
	FramePong         = "pong"
)

func NewRegistered(userID string) RegisteredFrame {
	return RegisteredFrame{Type: FrameRegistered, UserID: userID}
}

func NewJoined(sessionID string) JoinedFrame {
	return JoinedFrame{Type: FrameJoined, SessionID: sessionID}
}

func NewMessageEvent(from, content string, replyTo *string, at time.Time) EventFrame {
	return EventFrame{Type: FrameMessage, From: from, Content: content, ReplyTo: replyTo, Timestamp: at}
}

// NewNotification carries the same payload as the fan-out frame but on the
// out-of-conversation side channel.
func NewNotification(from, content string, replyTo *string, at time.Time) EventFrame {
	return EventFrame{Type: FrameNotification, From: from, Content: content, ReplyTo: replyTo, Timestamp: at}
}

func NewPong(at time.Time) PongFrame {
	return PongFrame{Type: FramePong, Timestamp: at}
}

// EncodeFrame marshals a server frame. The frame structs contain nothing that
// can fail to marshal, so a failure is a programming error and yields nil,
// which TrySend treats as a no-op.
func EncodeFrame(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}
