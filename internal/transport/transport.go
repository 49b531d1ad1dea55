// Package transport defines the chat-platform boundary. The core never
// talks to a chat protocol directly; it consumes Events and sends through
// the Transport interface.
package transport

import "context"

// Event post types
const (
	PostMeta   = "meta_event"
	PostNotice = "notice"
	PostMsg    = "message"
)

// Message types
const (
	MsgPrivate = "private"
	MsgGroup   = "group"
)

// Event is one inbound chat event, normalized across transports.
// Identifier fields are opaque strings; numeric platform ids are converted
// at the transport boundary.
type Event struct {
	PostType      string
	MessageType   string
	MetaEventType string
	SelfID        string
	UserID        string
	GroupID       string
	RawMessage    string
	Time          int64
}

// Handler receives every inbound event
type Handler func(Event)

// Transport delivers text and files to users and groups. Implementations
// own their reconnect policy; callers only observe connectivity.
type Transport interface {
	// Start connects and begins delivering events to the registered handler.
	// It does not block.
	Start(ctx context.Context) error
	// Stop closes the connection and stops event delivery.
	Stop() error
	// OnEvent registers the inbound event handler. Must be called before Start.
	OnEvent(h Handler)

	SendText(userID, text, groupID string, private bool) error
	SendFile(userID, path, groupID string, private bool) error
	IsConnected() bool
}
