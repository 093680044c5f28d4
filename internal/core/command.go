package core

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandSendMessage delivers a direct message to another user.
	CommandSendMessage CommandKind = iota
	// CommandSetTyping forwards a typing indicator to another user.
	CommandSetTyping
	// CommandSetStatus changes the client's presence status.
	CommandSetStatus
	// CommandMarkRead marks all messages from a user as read.
	CommandMarkRead
	// CommandActivity reports user activity for idle tracking.
	CommandActivity
)

// Command represents an action requested by a client.
type Command struct {
	Kind        CommandKind
	ToUserID    int64
	FromUserID  int64
	Content     string
	TempID      string
	IsTyping    bool
	Status      Status
	AwayMessage string
}
