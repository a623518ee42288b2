package transport

import "context"

// ChannelRef is an opaque destination channel reference, stored by the
// registry and interpreted by the adapter (Telegram: decimal chat ID).
type ChannelRef = string

// Message is one formatted mod-update notification. Text fields arrive
// already escaped for the destination platform's rich-text rules.
type Message struct {
	KindLabel string // "New mod" or "Updated mod"
	Title     string
	Author    string
	Version   string
	Link      string
	Thumbnail string // full asset URL, "" when the mod has none
}

// Sender delivers one message to one channel. Implementations must be
// safe for concurrent use; the fanout dispatches destinations in
// parallel.
type Sender interface {
	Send(ctx context.Context, to ChannelRef, msg Message) error
}
