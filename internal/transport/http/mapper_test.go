package http

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buddychat/buddychat-server/internal/core"
	"github.com/buddychat/buddychat-server/internal/proto"
)

func inbound(t *testing.T, typ string, data any) *proto.Inbound {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return &proto.Inbound{Type: typ, Data: raw}
}

func TestInboundToCommand(t *testing.T) {
	t.Run("send message", func(t *testing.T) {
		cmd, perr := inboundToCommand(1, inbound(t, proto.InboundTypeSend, proto.SendData{
			ToUserID: 2, Content: "hi", TempID: "t1",
		}))
		require.Nil(t, perr)
		assert.Equal(t, core.CommandSendMessage, cmd.Kind)
		assert.Equal(t, int64(1), cmd.FromUserID)
		assert.Equal(t, int64(2), cmd.ToUserID)
		assert.Equal(t, "t1", cmd.TempID)
	})

	t.Run("send without recipient", func(t *testing.T) {
		_, perr := inboundToCommand(1, inbound(t, proto.InboundTypeSend, proto.SendData{
			Content: "hi", TempID: "t1",
		}))
		require.NotNil(t, perr)
		assert.Equal(t, core.ErrCodeValidation, perr.Code)
		assert.Equal(t, "t1", perr.TempID)
	})

	t.Run("typing", func(t *testing.T) {
		cmd, perr := inboundToCommand(1, inbound(t, proto.InboundTypeTyping, proto.TypingData{
			ToUserID: 2, IsTyping: true,
		}))
		require.Nil(t, perr)
		assert.Equal(t, core.CommandSetTyping, cmd.Kind)
		assert.True(t, cmd.IsTyping)
	})

	t.Run("status change", func(t *testing.T) {
		cmd, perr := inboundToCommand(1, inbound(t, proto.InboundTypeStatus, proto.StatusData{
			Status: "away", AwayMessage: "lunch",
		}))
		require.Nil(t, perr)
		assert.Equal(t, core.CommandSetStatus, cmd.Kind)
		assert.Equal(t, core.StatusAway, cmd.Status)
		assert.Equal(t, "lunch", cmd.AwayMessage)
	})

	t.Run("mark read", func(t *testing.T) {
		cmd, perr := inboundToCommand(1, inbound(t, proto.InboundTypeRead, proto.ReadData{
			FromUserID: 2,
		}))
		require.Nil(t, perr)
		assert.Equal(t, core.CommandMarkRead, cmd.Kind)
		assert.Equal(t, int64(2), cmd.ToUserID)
	})

	t.Run("activity", func(t *testing.T) {
		cmd, perr := inboundToCommand(1, &proto.Inbound{Type: proto.InboundTypeActivity})
		require.Nil(t, perr)
		assert.Equal(t, core.CommandActivity, cmd.Kind)
	})

	t.Run("unknown type", func(t *testing.T) {
		_, perr := inboundToCommand(1, &proto.Inbound{Type: "message:teleport"})
		require.NotNil(t, perr)
		assert.Equal(t, core.ErrCodeBadRequest, perr.Code)
	})

	t.Run("malformed payload", func(t *testing.T) {
		_, perr := inboundToCommand(1, &proto.Inbound{
			Type: proto.InboundTypeSend,
			Data: json.RawMessage(`{"to_user_id": "not-a-number"}`),
		})
		require.NotNil(t, perr)
		assert.Equal(t, core.ErrCodeBadRequest, perr.Code)
	})
}

func TestOutboundFromEvent(t *testing.T) {
	now := time.Now()

	t.Run("buddy offline carries last seen", func(t *testing.T) {
		out := outboundFromEvent(&core.Event{
			Kind: core.EventBuddyOffline, UserID: 2, LastSeen: now,
		})
		require.NotNil(t, out)
		assert.Equal(t, proto.EventBuddyOffline, out.Event)
		data := out.Data.(proto.EventBuddyPresence)
		assert.Equal(t, int64(2), data.UserID)
		assert.Equal(t, now.Unix(), data.LastSeen)
	})

	t.Run("message sent echoes temp id", func(t *testing.T) {
		out := outboundFromEvent(&core.Event{
			Kind:    core.EventMessageSent,
			TempID:  "t1",
			Message: core.Message{ID: 7, FromUserID: 1, ToUserID: 2, Content: "hi", CreatedAt: now},
		})
		require.NotNil(t, out)
		data := out.Data.(proto.EventMessageSentData)
		assert.Equal(t, "t1", data.TempID)
		assert.Equal(t, int64(7), data.Message.ID)
	})

	t.Run("delivery status", func(t *testing.T) {
		out := outboundFromEvent(&core.Event{
			Kind: core.EventDeliveryStatus, Message: core.Message{ID: 7},
			Delivered: false, RecipientOnline: true,
		})
		require.NotNil(t, out)
		data := out.Data.(proto.EventDeliveryStatusData)
		assert.False(t, data.Delivered)
		assert.True(t, data.RecipientOnline)
	})

	t.Run("offline batch", func(t *testing.T) {
		out := outboundFromEvent(&core.Event{
			Kind: core.EventOfflineDelivered,
			Messages: []core.Message{
				{ID: 1, Content: "a", CreatedAt: now},
				{ID: 2, Content: "b", CreatedAt: now},
			},
		})
		require.NotNil(t, out)
		data := out.Data.(proto.EventOfflineDeliveredData)
		assert.Equal(t, 2, data.Count)
		require.Len(t, data.Messages, 2)
	})

	t.Run("error event", func(t *testing.T) {
		out := outboundFromEvent(&core.Event{
			Kind:   core.EventError,
			TempID: "t1",
			Error:  &core.CoreError{Code: core.ErrCodeValidation, Message: "message content is empty"},
		})
		require.NotNil(t, out)
		assert.Equal(t, proto.OutboundTypeError, out.Type)
		require.NotNil(t, out.Error)
		assert.Equal(t, core.ErrCodeValidation, out.Error.Code)
		assert.Equal(t, "t1", out.Error.TempID)
	})
}
