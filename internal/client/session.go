package client

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/buddychat/buddychat-server/internal/proto"
)

// Session ties the client-side pieces together: it decodes server
// envelopes and routes them into the dispatcher, the conversation
// windows, the ack tracker and the typing indicators. The transport
// feeds it raw envelopes; UI code subscribes through the dispatcher and
// reads windows through the manager.
type Session struct {
	UserID     int64
	Events     *Dispatcher
	Windows    *Manager
	Outbox     *Outbox
	Acks       *AckTracker
	Typing     *TypingIndicator
	ackTimeout time.Duration
}

// SessionConfig tunes a session. Zero values fall back to defaults.
type SessionConfig struct {
	PageSize     int
	BufferLimit  int
	AckTimeout   time.Duration
	TypingExpiry time.Duration
}

// NewSession builds a session for an authenticated user.
func NewSession(userID int64, fetcher PageFetcher, cfg SessionConfig) *Session {
	s := &Session{
		UserID:  userID,
		Events:  NewDispatcher(),
		Windows: NewManager(fetcher, cfg.PageSize, cfg.BufferLimit),
		Outbox:  NewOutbox(),
		Acks:    NewAckTracker(cfg.AckTimeout),
	}
	s.Typing = NewTypingIndicator(cfg.TypingExpiry, func(userID int64) {
		s.Events.Emit(proto.EventTyping, proto.EventTypingData{FromUserID: userID})
	})
	return s
}

// Stage prepares an optimistic outgoing message: it appears in the
// window immediately and its temp ID is tracked for acknowledgment. The
// caller sends the returned entry's temp ID in message:send and awaits
// the ack channel.
func (s *Session) Stage(toUserID int64, content string) (*Entry, <-chan AckResult) {
	e := s.Outbox.Stage(s.UserID, toUserID, content, time.Now().Unix())
	s.Windows.AppendPending(toUserID, e)
	return e, s.Acks.Track(e.TempID)
}

// HandleEnvelope routes one server envelope. Unknown event names are
// still emitted on the dispatcher so future events degrade gracefully.
func (s *Session) HandleEnvelope(out *proto.Outbound) error {
	if out.Type == proto.OutboundTypeError {
		if out.Error != nil && out.Error.TempID != "" {
			s.Acks.Reject(out.Error.TempID, fmt.Errorf("%s: %s", out.Error.Code, out.Error.Msg))
			if e := s.Outbox.Fail(out.Error.TempID); e != nil {
				s.Windows.Fail(e.Message.ToUserID, out.Error.TempID)
			}
		}
		s.Events.Emit(proto.OutboundTypeError, out.Error)
		return nil
	}

	raw, err := json.Marshal(out.Data)
	if err != nil {
		return fmt.Errorf("re-encode event data: %w", err)
	}

	switch out.Event {
	case proto.EventMessageReceive:
		var data proto.EventMessageReceiveData
		if err := json.Unmarshal(raw, &data); err != nil {
			return fmt.Errorf("decode %s: %w", out.Event, err)
		}
		s.Windows.ApplyLive(data.From, data.Message)
		s.Typing.Set(data.From, false)
		s.Events.Emit(out.Event, data)

	case proto.EventMessageSent:
		var data proto.EventMessageSentData
		if err := json.Unmarshal(raw, &data); err != nil {
			return fmt.Errorf("decode %s: %w", out.Event, err)
		}
		if data.TempID != "" {
			s.Acks.Confirm(data.TempID, data.Message.ID)
			s.Outbox.Confirm(data.TempID, data.Message)
			s.Windows.Confirm(data.Message.ToUserID, data.TempID, data.Message)
		} else {
			s.Windows.ApplyLive(data.Message.ToUserID, data.Message)
		}
		s.Events.Emit(out.Event, data)

	case proto.EventOfflineDelivered:
		var data proto.EventOfflineDeliveredData
		if err := json.Unmarshal(raw, &data); err != nil {
			return fmt.Errorf("decode %s: %w", out.Event, err)
		}
		for _, msg := range data.Messages {
			s.Windows.ApplyLive(msg.FromUserID, msg)
		}
		s.Events.Emit(out.Event, data)

	case proto.EventTyping:
		var data proto.EventTypingData
		if err := json.Unmarshal(raw, &data); err != nil {
			return fmt.Errorf("decode %s: %w", out.Event, err)
		}
		s.Typing.Set(data.FromUserID, data.IsTyping)
		s.Events.Emit(out.Event, data)

	case proto.EventMessagesRead:
		var data proto.EventMessagesReadData
		if err := json.Unmarshal(raw, &data); err != nil {
			return fmt.Errorf("decode %s: %w", out.Event, err)
		}
		s.Windows.MarkRead(data.ByUserID, data.ByUserID)
		s.Events.Emit(out.Event, data)

	default:
		s.Events.Emit(out.Event, json.RawMessage(raw))
	}
	return nil
}
