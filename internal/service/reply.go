package service

import (
	"context"

	"whatsapp-outbound-gateway/internal/model"
	"whatsapp-outbound-gateway/pkg/logger"
)

// ReplyTarget is an inbound message handle with reply and media operations
// already bound to its own chat. The orchestrator never constructs chat
// identifiers itself when delivering through a handle.
type ReplyTarget interface {
	Info() model.InboundMessage
	Reply(ctx context.Context, text string, opts *model.ReplyOptions) error
	SendMedia(ctx context.Context, caption, mediaURL string, maxBytes int64) error
}

// DeliverParams carries a computed reply and its delivery collaborators
type DeliverParams struct {
	Result        model.ReplyResult
	Msg           ReplyTarget
	MaxMediaBytes int64
	TextLimit     int
	Logger        *logger.Logger
}

// DeliverReply applies the threading policy to a computed reply and
// invokes the matching delivery primitive on the message handle. Media
// replies are sent as captioned media and never carry a quote; only text
// replies participate in threading.
func DeliverReply(ctx context.Context, p DeliverParams) error {
	info := p.Msg.Info()

	if p.Result.MediaURL != "" {
		if p.Logger != nil {
			p.Logger.WithJID(info.ChatJID).Info("Delivering media reply",
				"media_url", p.Result.MediaURL,
			)
		}
		return p.Msg.SendMedia(ctx, clipText(p.Result.Text, p.TextLimit), p.Result.MediaURL, p.MaxMediaBytes)
	}

	text := clipText(p.Result.Text, p.TextLimit)
	decision := DecideThreading(p.Result, info)
	if decision.Quoted() {
		if p.Logger != nil {
			p.Logger.WithJID(info.ChatJID).Info("Delivering quoted reply",
				"quoted_message_id", decision.MessageID(),
			)
		}
		return p.Msg.Reply(ctx, text, &model.ReplyOptions{ReplyToID: decision.MessageID()})
	}

	if p.Logger != nil {
		p.Logger.WithJID(info.ChatJID).Info("Delivering reply")
	}
	return p.Msg.Reply(ctx, text, nil)
}

// clipText enforces the per-channel text length limit
func clipText(text string, limit int) string {
	if limit > 0 && len(text) > limit {
		return text[:limit]
	}
	return text
}
