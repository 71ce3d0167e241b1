package service

import "whatsapp-outbound-gateway/internal/model"

// QuoteDecision says whether an outbound reply is rendered as a threaded
// quote, and of which message. Construct via Quote or NoQuote.
type QuoteDecision struct {
	quoted    bool
	messageID string
}

// Quote returns a decision to quote the given message
func Quote(messageID string) QuoteDecision {
	return QuoteDecision{quoted: true, messageID: messageID}
}

// NoQuote returns a decision to send without threading
func NoQuote() QuoteDecision {
	return QuoteDecision{}
}

// Quoted reports whether the reply should be threaded
func (d QuoteDecision) Quoted() bool { return d.quoted }

// MessageID returns the message to quote; empty unless Quoted
func (d QuoteDecision) MessageID() string { return d.messageID }

// DecideThreading applies the threading policy for a computed reply.
// Explicit signals from the reply layer are authoritative: a true tag with
// a reply-to ID forces a quote, a false tag forbids one. Absent a tag,
// only group messages that mentioned the bot are quoted; direct chats and
// untagged group chatter stay unquoted.
func DecideThreading(result model.ReplyResult, msg model.InboundMessage) QuoteDecision {
	if result.ReplyToTag != nil {
		if *result.ReplyToTag && result.ReplyToID != "" {
			return Quote(result.ReplyToID)
		}
		return NoQuote()
	}
	if msg.ChatType == model.ChatTypeGroup && msg.WasMentioned {
		return Quote(msg.ID)
	}
	return NoQuote()
}
