package core

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/buddychat/buddychat-server/internal/store"
)

// HubConfig holds the hub's tunables.
type HubConfig struct {
	// IdleTimeout is the inactivity window before auto-away.
	IdleTimeout time.Duration
	// IdleCheckInterval is how often the idle detector runs.
	IdleCheckInterval time.Duration
	// OfflineQueueAlertSize triggers warn logs past this backlog size.
	OfflineQueueAlertSize int64
}

// DefaultHubConfig returns the hub defaults.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		IdleTimeout:           10 * time.Minute,
		IdleCheckInterval:     30 * time.Second,
		OfflineQueueAlertSize: 500,
	}
}

type clientCommand struct {
	client *Client
	cmd    *Command
}

// Hub is the single actor owning all server-side mutable messaging
// state. Every registry and presence mutation flows through its run
// loop, which serializes connect, disconnect and delivery per user.
type Hub struct {
	cfg      HubConfig
	store    store.Store
	registry *Registry
	presence *PresenceMachine
	buddies  *BuddyIndex
	offline  *OfflineQueue
	log      *zerolog.Logger

	register   chan *Client
	unregister chan *Client
	commands   chan clientCommand
}

// NewHub constructs the hub over the given store and buddy index.
func NewHub(st store.Store, buddies *BuddyIndex, cfg HubConfig, logger *zerolog.Logger) *Hub {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultHubConfig().IdleTimeout
	}
	if cfg.IdleCheckInterval <= 0 {
		cfg.IdleCheckInterval = DefaultHubConfig().IdleCheckInterval
	}

	return &Hub{
		cfg:        cfg,
		store:      st,
		registry:   NewRegistry(),
		presence:   NewPresenceMachine(),
		buddies:    buddies,
		offline:    NewOfflineQueue(st, cfg.OfflineQueueAlertSize, logger),
		log:        logger,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		commands:   make(chan clientCommand, 64),
	}
}

// Registry exposes reachability lookups to the transport layer.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Presence exposes presence snapshots to the transport layer.
func (h *Hub) Presence() *PresenceMachine {
	return h.presence
}

// Buddies exposes the buddy index.
func (h *Hub) Buddies() *BuddyIndex {
	return h.buddies
}

// RegisterClient hands a freshly authenticated connection to the hub and
// starts pumping its commands into the run loop.
func (h *Hub) RegisterClient(c *Client) {
	h.register <- c

	go func() {
		for {
			select {
			case cmd, ok := <-c.Commands:
				if !ok {
					return
				}
				select {
				case h.commands <- clientCommand{client: c, cmd: cmd}:
				case <-c.Closed():
					return
				}
			case <-c.Closed():
				return
			}
		}
	}()
}

// UnregisterClient removes a connection. Idempotent; unregistering a
// superseded connection does not touch the current one.
func (h *Hub) UnregisterClient(c *Client) {
	h.unregister <- c
}

// Run processes registrations and commands until the context ends.
func (h *Hub) Run(ctx context.Context) {
	idle := time.NewTicker(h.cfg.IdleCheckInterval)
	defer idle.Stop()

	for {
		select {
		case c := <-h.register:
			h.handleRegister(ctx, c)
		case c := <-h.unregister:
			h.handleUnregister(ctx, c)
		case cc := <-h.commands:
			h.dispatch(ctx, cc.client, cc.cmd)
		case now := <-idle.C:
			h.checkIdle(ctx, now)
		case <-ctx.Done():
			return
		}
	}
}

// Shutdown notifies every live connection that the server is going away
// and terminates it.
func (h *Hub) Shutdown(reason string) {
	for _, c := range h.registry.All() {
		c.send(&Event{Kind: EventServerBye, Reason: reason})
		c.Close()
	}
}

func (h *Hub) handleRegister(ctx context.Context, c *Client) {
	now := time.Now()

	// First connect after a restart: seed the durable presence choice.
	if h.presence.Get(c.UserID) == nil {
		if p, err := h.store.GetPresence(ctx, c.UserID); err == nil {
			h.presence.Restore(c.UserID, Status(p.Status), p.LastSeenAt)
		}
	}

	if prev := h.registry.Register(c); prev != nil {
		prev.send(&Event{Kind: EventServerBye, Reason: "superseded"})
		prev.Close()
		h.log.Info().Int64("user_id", c.UserID).Msg("superseded existing connection")
	}

	tr := h.presence.Connect(c.UserID, now)
	h.persistPresence(ctx, c.UserID)
	if tr.VisibleChanged {
		h.broadcastTransition(tr)
	}

	// Queued messages are delivered before the connection is considered
	// settled; any live send for this user is behind us in the run loop.
	messages, err := h.offline.Flush(ctx, c.UserID)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", c.UserID).Msg("offline flush failed")
	} else if len(messages) > 0 {
		c.send(&Event{Kind: EventOfflineDelivered, Messages: messages})
		h.log.Info().
			Int64("user_id", c.UserID).
			Int("count", len(messages)).
			Msg("offline backlog delivered")
	}

	h.log.Info().Int64("user_id", c.UserID).Str("screen_name", c.Name).Msg("client registered")
}

func (h *Hub) handleUnregister(ctx context.Context, c *Client) {
	c.Close()
	if !h.registry.Unregister(c) {
		return
	}

	tr := h.presence.Disconnect(c.UserID, time.Now())
	h.persistPresence(ctx, c.UserID)
	if tr.VisibleChanged {
		h.broadcastTransition(tr)
	}

	h.log.Info().Int64("user_id", c.UserID).Msg("client unregistered")
}

func (h *Hub) dispatch(ctx context.Context, c *Client, cmd *Command) {
	switch cmd.Kind {
	case CommandSendMessage:
		h.touchActivity(ctx, c.UserID)
		h.handleSend(ctx, c, cmd)
	case CommandSetTyping:
		h.touchActivity(ctx, c.UserID)
		h.handleTyping(c, cmd)
	case CommandSetStatus:
		h.handleSetStatus(ctx, c, cmd)
	case CommandMarkRead:
		h.touchActivity(ctx, c.UserID)
		h.handleMarkRead(ctx, c, cmd)
	case CommandActivity:
		h.touchActivity(ctx, c.UserID)
	default:
		c.send(&Event{Kind: EventError, Error: coreError(ErrCodeBadRequest, "unknown command")})
	}
}

// handleSend runs the delivery pipeline: validate, persist, echo the
// sent acknowledgment, then deliver live or queue offline and report the
// outcome back to the sender.
func (h *Hub) handleSend(ctx context.Context, c *Client, cmd *Command) {
	content := strings.TrimSpace(cmd.Content)
	if content == "" {
		c.send(&Event{Kind: EventError, TempID: cmd.TempID,
			Error: coreError(ErrCodeValidation, "message content is empty")})
		return
	}

	if _, err := h.store.GetUserByID(ctx, cmd.ToUserID); err != nil {
		c.send(&Event{Kind: EventError, TempID: cmd.TempID,
			Error: coreError(ErrCodeNotFound, "recipient not found")})
		return
	}

	row := &store.Message{
		FromUserID: c.UserID,
		ToUserID:   cmd.ToUserID,
		Body:       content,
		CreatedAt:  time.Now(),
	}
	if err := h.store.SaveMessage(ctx, row); err != nil {
		h.log.Error().Err(err).Int64("from", c.UserID).Int64("to", cmd.ToUserID).Msg("save message failed")
		c.send(&Event{Kind: EventError, TempID: cmd.TempID,
			Error: coreError(ErrCodeBadRequest, "could not store message")})
		return
	}
	msg := messageFromStore(row)

	// Echo so the sender can reconcile its optimistic copy by temp ID.
	c.send(&Event{Kind: EventMessageSent, Message: msg, TempID: cmd.TempID})

	recipient := h.registry.Get(cmd.ToUserID)
	if recipient == nil {
		h.queueOffline(ctx, c, msg, false)
		return
	}

	if recipient.send(&Event{Kind: EventMessageReceive, Message: msg}) {
		msg.IsDelivered = true
		if err := h.store.MarkDelivered(ctx, msg.ID); err != nil {
			h.log.Error().Err(err).Int64("msg_id", msg.ID).Msg("mark delivered failed")
		}
		c.send(&Event{Kind: EventDeliveryStatus,
			Message: msg, Delivered: true, RecipientOnline: true})
		return
	}

	// Registry said reachable but the push failed; fall back to the queue
	// and let the sender distinguish this from a plain offline recipient.
	h.queueOffline(ctx, c, msg, true)
}

func (h *Hub) queueOffline(ctx context.Context, sender *Client, msg Message, recipientOnline bool) {
	if err := h.offline.Enqueue(ctx, msg.ToUserID, msg.ID); err != nil {
		h.log.Error().Err(err).Int64("msg_id", msg.ID).Msg("offline enqueue failed")
	}
	sender.send(&Event{Kind: EventDeliveryStatus,
		Message: msg, Delivered: false, RecipientOnline: recipientOnline})
}

// handleTyping is fire and forget: delivered only if the recipient is
// reachable right now, never queued, never acknowledged.
func (h *Hub) handleTyping(c *Client, cmd *Command) {
	if recipient := h.registry.Get(cmd.ToUserID); recipient != nil {
		recipient.send(&Event{Kind: EventTyping, UserID: c.UserID, IsTyping: cmd.IsTyping})
	}
}

func (h *Hub) handleSetStatus(ctx context.Context, c *Client, cmd *Command) {
	tr, err := h.presence.SetStatus(c.UserID, cmd.Status, cmd.AwayMessage, time.Now())
	if err != nil {
		c.send(&Event{Kind: EventError, Error: coreError(ErrCodeValidation, err.Error())})
		return
	}

	h.persistPresence(ctx, c.UserID)
	if tr.VisibleChanged {
		h.broadcastTransition(tr)
	}
}

func (h *Hub) handleMarkRead(ctx context.Context, c *Client, cmd *Command) {
	if _, err := h.store.MarkConversationRead(ctx, c.UserID, cmd.ToUserID); err != nil {
		h.log.Error().Err(err).Int64("reader", c.UserID).Int64("from", cmd.ToUserID).Msg("mark read failed")
		return
	}

	// Best-effort receipt; never queued for an offline sender.
	if sender := h.registry.Get(cmd.ToUserID); sender != nil {
		sender.send(&Event{Kind: EventMessagesRead, UserID: c.UserID})
	}
}

func (h *Hub) touchActivity(ctx context.Context, userID int64) {
	tr := h.presence.Activity(userID, time.Now())
	if tr == nil {
		return
	}
	h.persistPresence(ctx, userID)
	if tr.VisibleChanged {
		h.broadcastTransition(tr)
	}
}

func (h *Hub) checkIdle(ctx context.Context, now time.Time) {
	for _, tr := range h.presence.CheckIdle(now, h.cfg.IdleTimeout) {
		h.persistPresence(ctx, tr.UserID)
		h.broadcastTransition(tr)
		h.log.Debug().Int64("user_id", tr.UserID).Msg("auto-away after idle timeout")
	}
}

// broadcastTransition fans a visible presence change out to every
// watcher with a live connection. Best effort: unreachable watchers get
// nothing, presence events are never queued.
func (h *Hub) broadcastTransition(tr *Transition) {
	var ev Event
	switch tr.Visible {
	case StatusOnline:
		ev = Event{Kind: EventBuddyOnline, UserID: tr.UserID}
	case StatusOffline:
		ev = Event{Kind: EventBuddyOffline, UserID: tr.UserID, LastSeen: tr.LastSeen}
	default:
		ev = Event{Kind: EventBuddyStatusChange, UserID: tr.UserID,
			Status: tr.Visible, AwayMessage: tr.AwayMessage}
	}

	for _, watcherID := range h.buddies.WatchersOf(tr.UserID) {
		if watcher := h.registry.Get(watcherID); watcher != nil {
			copied := ev
			watcher.send(&copied)
		}
	}
}

func (h *Hub) persistPresence(ctx context.Context, userID int64) {
	r := h.presence.Get(userID)
	if r == nil {
		return
	}
	err := h.store.UpsertPresence(ctx, &store.Presence{
		UserID:      userID,
		Status:      string(r.Explicit),
		AwayMessage: r.AwayMessage,
		LastSeenAt:  r.LastSeenAt,
	})
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", userID).Msg("persist presence failed")
	}
}
