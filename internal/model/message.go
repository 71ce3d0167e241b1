package model

import (
	"strings"
	"time"

	waE2E "go.mau.fi/whatsmeow/proto/waE2E"
)

// Chat types as derived from the chat JID shape
const (
	ChatTypeDirect = "direct"
	ChatTypeGroup  = "group"
)

// Activity directions recorded per send/receive
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// CachedMessage is a previously observed message kept so that a later
// reply can resolve what it is quoting. Immutable once cached.
type CachedMessage struct {
	ChatJID string
	ID      string
	Sender  string
	FromMe  bool
	Message *waE2E.Message
}

// SendOptions are per-call options threaded through the send pipeline
type SendOptions struct {
	ReplyToID   string
	AccountID   string
	GifPlayback bool
}

// SendResult reports the outcome of an outbound send
type SendResult struct {
	MessageID string `json:"message_id"`
}

// ReplyResult is the content computed upstream for an inbound message,
// plus optional threading hints. ReplyToTag is tri-state: nil means
// "apply default policy", true forces a quote, false forbids one.
type ReplyResult struct {
	Text       string `json:"text"`
	MediaURL   string `json:"media_url,omitempty"`
	ReplyToID  string `json:"reply_to_id,omitempty"`
	ReplyToTag *bool  `json:"reply_to_tag,omitempty"`
}

// ReplyOptions are options for a scoped reply bound to one chat
type ReplyOptions struct {
	ReplyToID string
}

// Poll describes a poll to create. MaxSelections of 0 means single-select.
type Poll struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	MaxSelections int      `json:"max_selections,omitempty"`
}

// InboundMessage is the read-only view of a received message used by the
// threading policy and the reply webhook payload.
type InboundMessage struct {
	ID           string    `json:"message_id"`
	ChatJID      string    `json:"chat_jid"`
	ChatType     string    `json:"chat_type"`
	SenderJID    string    `json:"sender_jid"`
	SenderName   string    `json:"sender_name"`
	Body         string    `json:"body"`
	WasMentioned bool      `json:"was_mentioned"`
	FromMe       bool      `json:"from_me"`
	Timestamp    time.Time `json:"timestamp"`
}

// NormalizeChatJID canonicalizes a chat identifier so cache keys built on
// insert and lookup always agree. Bare phone numbers become user JIDs.
func NormalizeChatJID(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return ""
	}
	if strings.Contains(s, "@") {
		return s
	}
	digits := strings.Builder{}
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	phone := strings.TrimLeft(digits.String(), "0")
	if phone == "" {
		return ""
	}
	return phone + "@s.whatsapp.net"
}
