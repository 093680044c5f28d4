package http

import (
	"encoding/json"
	"fmt"

	"github.com/buddychat/buddychat-server/internal/core"
	"github.com/buddychat/buddychat-server/internal/proto"
)

// inboundToCommand validates an inbound envelope and converts it into a
// core command. A *proto.Error return means the envelope was rejected
// and the error should be sent straight back to the client.
func inboundToCommand(userID int64, in *proto.Inbound) (*core.Command, *proto.Error) {
	switch in.Type {
	case proto.InboundTypeSend:
		var data proto.SendData
		if err := json.Unmarshal(in.Data, &data); err != nil {
			return nil, protoError(core.ErrCodeBadRequest, "malformed message:send payload", "")
		}
		if data.ToUserID <= 0 {
			return nil, protoError(core.ErrCodeValidation, "to_user_id is required", data.TempID)
		}
		return &core.Command{
			Kind:       core.CommandSendMessage,
			FromUserID: userID,
			ToUserID:   data.ToUserID,
			Content:    data.Content,
			TempID:     data.TempID,
		}, nil

	case proto.InboundTypeTyping:
		var data proto.TypingData
		if err := json.Unmarshal(in.Data, &data); err != nil {
			return nil, protoError(core.ErrCodeBadRequest, "malformed typing payload", "")
		}
		if data.ToUserID <= 0 {
			return nil, protoError(core.ErrCodeValidation, "to_user_id is required", "")
		}
		return &core.Command{
			Kind:       core.CommandSetTyping,
			FromUserID: userID,
			ToUserID:   data.ToUserID,
			IsTyping:   data.IsTyping,
		}, nil

	case proto.InboundTypeStatus:
		var data proto.StatusData
		if err := json.Unmarshal(in.Data, &data); err != nil {
			return nil, protoError(core.ErrCodeBadRequest, "malformed status payload", "")
		}
		return &core.Command{
			Kind:        core.CommandSetStatus,
			FromUserID:  userID,
			Status:      core.Status(data.Status),
			AwayMessage: data.AwayMessage,
		}, nil

	case proto.InboundTypeRead:
		var data proto.ReadData
		if err := json.Unmarshal(in.Data, &data); err != nil {
			return nil, protoError(core.ErrCodeBadRequest, "malformed read payload", "")
		}
		if data.FromUserID <= 0 {
			return nil, protoError(core.ErrCodeValidation, "from_user_id is required", "")
		}
		return &core.Command{
			Kind:       core.CommandMarkRead,
			FromUserID: userID,
			ToUserID:   data.FromUserID,
		}, nil

	case proto.InboundTypeActivity:
		return &core.Command{
			Kind:       core.CommandActivity,
			FromUserID: userID,
		}, nil

	default:
		return nil, protoError(core.ErrCodeBadRequest, fmt.Sprintf("unknown message type %q", in.Type), "")
	}
}

// outboundFromEvent converts a core event into its wire shape.
func outboundFromEvent(ev *core.Event) *proto.Outbound {
	switch ev.Kind {
	case core.EventBuddyOnline:
		return outboundEvent(proto.EventBuddyOnline, proto.EventBuddyPresence{
			UserID:      ev.UserID,
			Status:      string(ev.Status),
			AwayMessage: ev.AwayMessage,
		})

	case core.EventBuddyOffline:
		data := proto.EventBuddyPresence{UserID: ev.UserID}
		if !ev.LastSeen.IsZero() {
			data.LastSeen = ev.LastSeen.Unix()
		}
		return outboundEvent(proto.EventBuddyOffline, data)

	case core.EventBuddyStatusChange:
		return outboundEvent(proto.EventBuddyStatusChange, proto.EventBuddyPresence{
			UserID:      ev.UserID,
			Status:      string(ev.Status),
			AwayMessage: ev.AwayMessage,
		})

	case core.EventMessageReceive:
		return outboundEvent(proto.EventMessageReceive, proto.EventMessageReceiveData{
			Message:          payloadFromMessage(&ev.Message),
			From:             ev.Message.FromUserID,
			IsOfflineMessage: ev.IsOffline,
		})

	case core.EventMessageSent:
		return outboundEvent(proto.EventMessageSent, proto.EventMessageSentData{
			Message: payloadFromMessage(&ev.Message),
			TempID:  ev.TempID,
		})

	case core.EventDeliveryStatus:
		return outboundEvent(proto.EventDeliveryStatus, proto.EventDeliveryStatusData{
			MessageID:       ev.Message.ID,
			Delivered:       ev.Delivered,
			RecipientOnline: ev.RecipientOnline,
		})

	case core.EventOfflineDelivered:
		messages := make([]proto.MessagePayload, 0, len(ev.Messages))
		for i := range ev.Messages {
			messages = append(messages, payloadFromMessage(&ev.Messages[i]))
		}
		return outboundEvent(proto.EventOfflineDelivered, proto.EventOfflineDeliveredData{
			Count:    len(messages),
			Messages: messages,
		})

	case core.EventTyping:
		return outboundEvent(proto.EventTyping, proto.EventTypingData{
			FromUserID: ev.UserID,
			IsTyping:   ev.IsTyping,
		})

	case core.EventMessagesRead:
		return outboundEvent(proto.EventMessagesRead, proto.EventMessagesReadData{
			ByUserID: ev.UserID,
		})

	case core.EventServerBye:
		return outboundEvent(proto.EventServerBye, proto.EventServerByeData{
			Reason: ev.Reason,
		})

	case core.EventError:
		out := &proto.Outbound{Type: proto.OutboundTypeError}
		if ev.Error != nil {
			out.Error = &proto.Error{Code: ev.Error.Code, Msg: ev.Error.Message, TempID: ev.TempID}
		} else {
			out.Error = &proto.Error{Code: core.ErrCodeBadRequest, Msg: "unknown error", TempID: ev.TempID}
		}
		return out

	default:
		return nil
	}
}

func outboundEvent(name string, data any) *proto.Outbound {
	return &proto.Outbound{
		Type:  proto.OutboundTypeEvent,
		Event: name,
		Data:  data,
	}
}

func payloadFromMessage(m *core.Message) proto.MessagePayload {
	return proto.MessagePayload{
		ID:          m.ID,
		FromUserID:  m.FromUserID,
		ToUserID:    m.ToUserID,
		Content:     m.Content,
		Timestamp:   m.CreatedAt.Unix(),
		IsRead:      m.IsRead,
		IsDelivered: m.IsDelivered,
	}
}

func protoError(code, msg, tempID string) *proto.Error {
	return &proto.Error{Code: code, Msg: msg, TempID: tempID}
}
