package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	ProtocolVersion = 1

	InboundTypeSend     = "message:send"
	InboundTypeTyping   = "conversation:typing"
	InboundTypeStatus   = "user:status-change"
	InboundTypeRead     = "message:read"
	InboundTypeActivity = "user:activity"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventBuddyOnline       = "buddy:online"
	EventBuddyOffline      = "buddy:offline"
	EventBuddyStatusChange = "buddy:status-change"
	EventMessageReceive    = "message:receive"
	EventMessageSent       = "message:sent"
	EventDeliveryStatus    = "message:delivery-status"
	EventOfflineDelivered  = "offline-messages:delivered"
	EventTyping            = "conversation:typing"
	EventMessagesRead      = "message:read"
	EventServerBye         = "server:bye"
)

// SendData asks the server to deliver a direct message.
type SendData struct {
	ToUserID int64  `json:"to_user_id"`
	Content  string `json:"content"`
	TempID   string `json:"temp_id,omitempty"`
}

// TypingData toggles a typing indicator for the recipient.
type TypingData struct {
	ToUserID int64 `json:"to_user_id"`
	IsTyping bool  `json:"is_typing"`
}

// StatusData requests an explicit presence change.
type StatusData struct {
	Status      string `json:"status"`
	AwayMessage string `json:"away_message,omitempty"`
}

// ReadData marks every message from a user as read.
type ReadData struct {
	FromUserID int64 `json:"from_user_id"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// MessagePayload is the wire shape of a message inside events.
type MessagePayload struct {
	ID          int64  `json:"id"`
	FromUserID  int64  `json:"from_user_id"`
	ToUserID    int64  `json:"to_user_id"`
	Content     string `json:"content"`
	Timestamp   int64  `json:"ts"`
	IsRead      bool   `json:"is_read"`
	IsDelivered bool   `json:"is_delivered"`
}

// EventBuddyPresence notifies a watcher about a buddy's presence change.
type EventBuddyPresence struct {
	UserID      int64  `json:"user_id"`
	Status      string `json:"status,omitempty"`
	AwayMessage string `json:"away_message,omitempty"`
	LastSeen    int64  `json:"last_seen,omitempty"`
}

// EventMessageReceiveData delivers an incoming message.
type EventMessageReceiveData struct {
	Message          MessagePayload `json:"message"`
	From             int64          `json:"from"`
	IsOfflineMessage bool           `json:"is_offline_message"`
}

// EventMessageSentData acknowledges a send back to its author.
type EventMessageSentData struct {
	Message MessagePayload `json:"message"`
	TempID  string         `json:"temp_id,omitempty"`
}

// EventDeliveryStatusData reports the delivery outcome of one message.
type EventDeliveryStatusData struct {
	MessageID       int64 `json:"message_id"`
	Delivered       bool  `json:"delivered"`
	RecipientOnline bool  `json:"recipient_online"`
}

// EventOfflineDeliveredData delivers the queued backlog in one batch so
// the client can show a single notice instead of N interruptions.
type EventOfflineDeliveredData struct {
	Count    int              `json:"count"`
	Messages []MessagePayload `json:"messages"`
}

// EventTypingData forwards a typing indicator.
type EventTypingData struct {
	FromUserID int64 `json:"from_user_id"`
	IsTyping   bool  `json:"is_typing"`
}

// EventMessagesReadData tells a sender their messages were read.
type EventMessagesReadData struct {
	ByUserID int64 `json:"by_user_id"`
}

// EventServerByeData announces a server-initiated disconnect.
type EventServerByeData struct {
	Reason string `json:"reason"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code   string `json:"code"`
	Msg    string `json:"msg"`
	TempID string `json:"temp_id,omitempty"`
}
