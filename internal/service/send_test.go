package service

import (
	"context"
	"errors"
	"testing"

	"go.mau.fi/whatsmeow"
	waE2E "go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"google.golang.org/protobuf/proto"

	"whatsapp-outbound-gateway/internal/cache"
	"whatsapp-outbound-gateway/internal/model"
	"whatsapp-outbound-gateway/pkg/logger"
)

type sentCall struct {
	to  types.JID
	msg *waE2E.Message
}

type fakeTransport struct {
	sent      []sentCall
	resp      whatsmeow.SendResponse
	sendErr   error
	uploads   []whatsmeow.MediaType
	presences []types.JID
	pollArgs  []int
}

func (f *fakeTransport) SendMessage(_ context.Context, to types.JID, message *waE2E.Message, _ ...whatsmeow.SendRequestExtra) (whatsmeow.SendResponse, error) {
	if f.sendErr != nil {
		return whatsmeow.SendResponse{}, f.sendErr
	}
	f.sent = append(f.sent, sentCall{to: to, msg: message})
	return f.resp, nil
}

func (f *fakeTransport) Upload(_ context.Context, _ []byte, appInfo whatsmeow.MediaType) (whatsmeow.UploadResponse, error) {
	f.uploads = append(f.uploads, appInfo)
	return whatsmeow.UploadResponse{
		URL:           "https://media.example/enc",
		DirectPath:    "/v/t62.7118-24",
		MediaKey:      []byte("media-key"),
		FileEncSHA256: []byte("enc-sha"),
		FileSHA256:    []byte("plain-sha"),
		FileLength:    42,
	}, nil
}

func (f *fakeTransport) SendChatPresence(jid types.JID, _ types.ChatPresence, _ types.ChatPresenceMedia) error {
	f.presences = append(f.presences, jid)
	return nil
}

func (f *fakeTransport) BuildPollCreation(name string, optionNames []string, selectableOptionCount int) *waE2E.Message {
	f.pollArgs = append(f.pollArgs, selectableOptionCount)
	options := make([]*waE2E.PollCreationMessage_Option, 0, len(optionNames))
	for _, opt := range optionNames {
		options = append(options, &waE2E.PollCreationMessage_Option{OptionName: proto.String(opt)})
	}
	return &waE2E.Message{PollCreationMessage: &waE2E.PollCreationMessage{
		Name:                   proto.String(name),
		Options:                options,
		SelectableOptionsCount: proto.Uint32(uint32(selectableOptionCount)),
	}}
}

type activityEvent struct {
	channel   string
	accountID string
	direction string
}

type fakeRecorder struct {
	events []activityEvent
	err    error
}

func (f *fakeRecorder) Record(channel, accountID, direction string) error {
	f.events = append(f.events, activityEvent{channel, accountID, direction})
	return f.err
}

func newTestAPI(t *testing.T) (*SendAPI, *fakeTransport, *fakeRecorder) {
	t.Helper()
	transport := &fakeTransport{resp: whatsmeow.SendResponse{ID: "out-1"}}
	recorder := &fakeRecorder{}
	api := NewSendAPI(transport, cache.NewQuoteCache(10), recorder, "default", logger.New("ERROR"))
	return api, transport, recorder
}

func TestSendMessageQuotesWhenReplyToIDResolves(t *testing.T) {
	api, transport, _ := newTestAPI(t)

	quotedBody := &waE2E.Message{Conversation: proto.String("hello")}
	api.RememberMessage(&model.CachedMessage{
		ChatJID: "15551234567@s.whatsapp.net",
		ID:      "msg-1",
		Sender:  "15551234567@s.whatsapp.net",
		Message: quotedBody,
	})

	result, err := api.SendMessage(context.Background(), "+15551234567", "pong", nil, "", &model.SendOptions{ReplyToID: "msg-1"})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if result.MessageID != "out-1" {
		t.Errorf("MessageID = %q, want out-1", result.MessageID)
	}

	if len(transport.sent) != 1 {
		t.Fatalf("expected 1 transport call, got %d", len(transport.sent))
	}
	sent := transport.sent[0]
	if sent.to.String() != "15551234567@s.whatsapp.net" {
		t.Errorf("sent to %q", sent.to.String())
	}
	ext := sent.msg.GetExtendedTextMessage()
	if ext == nil {
		t.Fatal("quoted text should be promoted to an extended text message")
	}
	if ext.GetText() != "pong" {
		t.Errorf("text = %q", ext.GetText())
	}
	ci := ext.GetContextInfo()
	if ci.GetStanzaID() != "msg-1" {
		t.Errorf("stanza id = %q, want msg-1", ci.GetStanzaID())
	}
	if ci.GetQuotedMessage() != quotedBody {
		t.Error("quote context should carry the exact cached message")
	}
}

func TestSendMessageFallsBackToPlainSendOnCacheMiss(t *testing.T) {
	api, transport, _ := newTestAPI(t)

	_, err := api.SendMessage(context.Background(), "+15551234567", "pong", nil, "", &model.SendOptions{ReplyToID: "missing-id"})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	sent := transport.sent[0]
	if sent.msg.GetConversation() != "pong" {
		t.Errorf("expected plain conversation payload, got %v", sent.msg)
	}
	if sent.msg.GetExtendedTextMessage() != nil {
		t.Error("cache miss must not attach a quote context")
	}
}

func TestSendContentRemembersOutboundMessage(t *testing.T) {
	api, _, _ := newTestAPI(t)

	_, err := api.SendMessage(context.Background(), "+15551234567", "pong", nil, "", nil)
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	if got := api.Cache().Resolve("15551234567@s.whatsapp.net", "out-1"); got == nil {
		t.Fatal("outbound message should be quotable afterwards")
	} else if !got.FromMe {
		t.Error("outbound cache entry should be marked FromMe")
	}
}

func TestSendContentRecordsActivity(t *testing.T) {
	tests := []struct {
		name        string
		opts        *model.SendOptions
		wantAccount string
	}{
		{name: "default account", opts: nil, wantAccount: "default"},
		{name: "explicit account", opts: &model.SendOptions{AccountID: "acct-2"}, wantAccount: "acct-2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api, _, recorder := newTestAPI(t)
			if _, err := api.SendMessage(context.Background(), "+15551234567", "hi", nil, "", tt.opts); err != nil {
				t.Fatalf("SendMessage: %v", err)
			}
			if len(recorder.events) != 1 {
				t.Fatalf("expected 1 activity event, got %d", len(recorder.events))
			}
			ev := recorder.events[0]
			if ev.channel != ChannelName || ev.direction != model.DirectionOutbound || ev.accountID != tt.wantAccount {
				t.Errorf("recorded %+v", ev)
			}
		})
	}
}

func TestSendContentMalformedEnvelopeYieldsSentinel(t *testing.T) {
	api, transport, _ := newTestAPI(t)
	transport.resp = whatsmeow.SendResponse{}

	result, err := api.SendMessage(context.Background(), "+15551234567", "hi", nil, "", nil)
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if result.MessageID != "unknown" {
		t.Errorf("MessageID = %q, want unknown", result.MessageID)
	}
	if api.Cache().Len() != 0 {
		t.Error("a message without an envelope ID must not be cached")
	}
}

func TestSendContentTransportFailurePropagates(t *testing.T) {
	api, transport, recorder := newTestAPI(t)
	transport.sendErr = errors.New("socket closed")

	_, err := api.SendMessage(context.Background(), "+15551234567", "hi", nil, "", nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, transport.sendErr) {
		t.Errorf("transport error should be wrapped, got %v", err)
	}
	if api.Cache().Len() != 0 {
		t.Error("failed sends must leave the cache unmodified")
	}
	if len(recorder.events) != 0 {
		t.Error("failed sends must not record activity")
	}
}

func TestMediaPayloadMapping(t *testing.T) {
	media := []byte{0x1, 0x2, 0x3}

	tests := []struct {
		name       string
		mediaType  string
		opts       *model.SendOptions
		wantUpload whatsmeow.MediaType
		check      func(t *testing.T, msg *waE2E.Message)
	}{
		{
			name:       "image with caption",
			mediaType:  "image/png",
			wantUpload: whatsmeow.MediaImage,
			check: func(t *testing.T, msg *waE2E.Message) {
				img := msg.GetImageMessage()
				if img == nil {
					t.Fatal("expected image payload")
				}
				if img.GetCaption() != "caption" {
					t.Errorf("caption = %q", img.GetCaption())
				}
				if img.GetMimetype() != "image/png" {
					t.Errorf("mimetype = %q", img.GetMimetype())
				}
			},
		},
		{
			name:       "audio is a voice note",
			mediaType:  "audio/ogg",
			wantUpload: whatsmeow.MediaAudio,
			check: func(t *testing.T, msg *waE2E.Message) {
				audio := msg.GetAudioMessage()
				if audio == nil {
					t.Fatal("expected audio payload")
				}
				if !audio.GetPTT() {
					t.Error("audio must be flagged as push-to-talk")
				}
			},
		},
		{
			name:       "video without loop flag",
			mediaType:  "video/mp4",
			wantUpload: whatsmeow.MediaVideo,
			check: func(t *testing.T, msg *waE2E.Message) {
				video := msg.GetVideoMessage()
				if video == nil {
					t.Fatal("expected video payload")
				}
				if video.GifPlayback != nil {
					t.Error("loop playback must be absent unless requested")
				}
			},
		},
		{
			name:       "video with loop flag",
			mediaType:  "video/mp4",
			opts:       &model.SendOptions{GifPlayback: true},
			wantUpload: whatsmeow.MediaVideo,
			check: func(t *testing.T, msg *waE2E.Message) {
				if !msg.GetVideoMessage().GetGifPlayback() {
					t.Error("loop playback should be set")
				}
			},
		},
		{
			name:       "unrecognized type becomes a document",
			mediaType:  "application/pdf",
			wantUpload: whatsmeow.MediaDocument,
			check: func(t *testing.T, msg *waE2E.Message) {
				doc := msg.GetDocumentMessage()
				if doc == nil {
					t.Fatal("expected document payload")
				}
				if doc.GetFileName() != "file" {
					t.Errorf("file name = %q, want file", doc.GetFileName())
				}
				if doc.GetCaption() != "caption" {
					t.Errorf("caption = %q", doc.GetCaption())
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api, transport, _ := newTestAPI(t)
			_, err := api.SendMessage(context.Background(), "+15551234567", "caption", media, tt.mediaType, tt.opts)
			if err != nil {
				t.Fatalf("SendMessage: %v", err)
			}
			if len(transport.uploads) != 1 || transport.uploads[0] != tt.wantUpload {
				t.Errorf("uploads = %v, want [%v]", transport.uploads, tt.wantUpload)
			}
			tt.check(t, transport.sent[0].msg)
		})
	}
}

func TestSendPollDefaultsToSingleSelect(t *testing.T) {
	api, transport, recorder := newTestAPI(t)

	_, err := api.SendPoll(context.Background(), "+15551234567", model.Poll{
		Question: "lunch?",
		Options:  []string{"yes", "no"},
	})
	if err != nil {
		t.Fatalf("SendPoll: %v", err)
	}
	if len(transport.pollArgs) != 1 || transport.pollArgs[0] != 1 {
		t.Errorf("selectable count = %v, want [1]", transport.pollArgs)
	}
	if recorder.events[0].accountID != "default" {
		t.Errorf("poll activity account = %q, want default", recorder.events[0].accountID)
	}
}

func TestSendReactionBuildsMessageKey(t *testing.T) {
	api, transport, _ := newTestAPI(t)

	err := api.SendReaction(context.Background(), "123456789@g.us", "m-9", "👍", false, "+15551234567")
	if err != nil {
		t.Fatalf("SendReaction: %v", err)
	}

	react := transport.sent[0].msg.GetReactionMessage()
	if react == nil {
		t.Fatal("expected reaction payload")
	}
	key := react.GetKey()
	if key.GetRemoteJID() != "123456789@g.us" || key.GetID() != "m-9" || key.GetFromMe() {
		t.Errorf("key = %+v", key)
	}
	if key.GetParticipant() != "15551234567@s.whatsapp.net" {
		t.Errorf("participant = %q", key.GetParticipant())
	}
	if react.GetText() != "👍" {
		t.Errorf("emoji = %q", react.GetText())
	}
}

func TestSendComposingTo(t *testing.T) {
	api, transport, _ := newTestAPI(t)

	if err := api.SendComposingTo(context.Background(), "+15551234567"); err != nil {
		t.Fatalf("SendComposingTo: %v", err)
	}
	if len(transport.presences) != 1 || transport.presences[0].String() != "15551234567@s.whatsapp.net" {
		t.Errorf("presences = %v", transport.presences)
	}
}
