package pubsub

import (
	"net/url"
	"strings"
)

const (
	inboxPrefix    = "inbox:"
	outboxPrefix   = "outbox:"
	progressPrefix = "document_progress:"

	// InboxPattern matches every session inbox.
	InboxPattern = inboxPrefix + "*"
)

// Channel is a pub/sub channel name. Build it with Inbox, Outbox or
// DocumentProgress; identifiers are query-escaped so a key holding ':' or
// glob characters cannot address another channel.
type Channel string

func Inbox(sessionKey string) Channel {
	return Channel(inboxPrefix + url.QueryEscape(sessionKey))
}

func Outbox(sessionKey string) Channel {
	return Channel(outboxPrefix + url.QueryEscape(sessionKey))
}

func DocumentProgress(documentID string) Channel {
	return Channel(progressPrefix + url.QueryEscape(documentID))
}

func (c Channel) String() string {
	return string(c)
}

func (c Channel) IsInbox() bool {
	return strings.HasPrefix(string(c), inboxPrefix)
}

// SessionKey decodes the session key of an inbox or outbox channel.
func (c Channel) SessionKey() (string, bool) {
	raw := string(c)
	var escaped string
	switch {
	case strings.HasPrefix(raw, inboxPrefix):
		escaped = strings.TrimPrefix(raw, inboxPrefix)
	case strings.HasPrefix(raw, outboxPrefix):
		escaped = strings.TrimPrefix(raw, outboxPrefix)
	default:
		return "", false
	}
	key, err := url.QueryUnescape(escaped)
	if err != nil || key == "" {
		return "", false
	}
	return key, true
}
