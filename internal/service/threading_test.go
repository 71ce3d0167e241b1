package service

import (
	"testing"

	"whatsapp-outbound-gateway/internal/model"
)

func boolPtr(b bool) *bool { return &b }

func TestDecideThreading(t *testing.T) {
	tests := []struct {
		name   string
		result model.ReplyResult
		msg    model.InboundMessage
		want   QuoteDecision
	}{
		{
			name:   "direct chat never quotes by default",
			result: model.ReplyResult{Text: "hi", ReplyToID: "quoted-1"},
			msg:    model.InboundMessage{ID: "m1", ChatType: model.ChatTypeDirect},
			want:   NoQuote(),
		},
		{
			name:   "direct chat with mention still no quote",
			result: model.ReplyResult{Text: "hi"},
			msg:    model.InboundMessage{ID: "m1", ChatType: model.ChatTypeDirect, WasMentioned: true},
			want:   NoQuote(),
		},
		{
			name:   "explicit tag quotes even in direct chat",
			result: model.ReplyResult{Text: "hi", ReplyToID: "quoted-1", ReplyToTag: boolPtr(true)},
			msg:    model.InboundMessage{ID: "m1", ChatType: model.ChatTypeDirect},
			want:   Quote("quoted-1"),
		},
		{
			name:   "mentioned group quotes the inbound message",
			result: model.ReplyResult{Text: "hi"},
			msg:    model.InboundMessage{ID: "group-msg-1", ChatType: model.ChatTypeGroup, WasMentioned: true},
			want:   Quote("group-msg-1"),
		},
		{
			name:   "unmentioned group stays silent despite reply-to id",
			result: model.ReplyResult{Text: "hi", ReplyToID: "quoted-2"},
			msg:    model.InboundMessage{ID: "group-msg-2", ChatType: model.ChatTypeGroup},
			want:   NoQuote(),
		},
		{
			name:   "explicit tag wins over unmentioned group default",
			result: model.ReplyResult{Text: "hi", ReplyToID: "quoted-3", ReplyToTag: boolPtr(true)},
			msg:    model.InboundMessage{ID: "group-msg-3", ChatType: model.ChatTypeGroup},
			want:   Quote("quoted-3"),
		},
		{
			name:   "explicit opt-out wins over mentioned group default",
			result: model.ReplyResult{Text: "hi", ReplyToID: "quoted-4", ReplyToTag: boolPtr(false)},
			msg:    model.InboundMessage{ID: "group-msg-4", ChatType: model.ChatTypeGroup, WasMentioned: true},
			want:   NoQuote(),
		},
		{
			name:   "explicit tag without a reply-to id cannot quote",
			result: model.ReplyResult{Text: "hi", ReplyToTag: boolPtr(true)},
			msg:    model.InboundMessage{ID: "m1", ChatType: model.ChatTypeGroup, WasMentioned: true},
			want:   NoQuote(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DecideThreading(tt.result, tt.msg)
			if got != tt.want {
				t.Errorf("DecideThreading() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
