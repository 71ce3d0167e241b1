package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mau.fi/whatsmeow"
	waCommon "go.mau.fi/whatsmeow/proto/waCommon"
	waE2E "go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"google.golang.org/protobuf/proto"

	"whatsapp-outbound-gateway/internal/cache"
	"whatsapp-outbound-gateway/internal/model"
	"whatsapp-outbound-gateway/pkg/logger"
)

const (
	// ChannelName tags activity events recorded by the pipeline
	ChannelName = "whatsapp"

	// unknownMessageID is reported when the transport acknowledges a send
	// but the envelope carries no message ID
	unknownMessageID = "unknown"

	// documentFileName is the placeholder name for generic document sends
	documentFileName = "file"
)

// Transport is the slice of the whatsmeow client the send pipeline uses.
// *whatsmeow.Client satisfies it.
type Transport interface {
	SendMessage(ctx context.Context, to types.JID, message *waE2E.Message, extra ...whatsmeow.SendRequestExtra) (whatsmeow.SendResponse, error)
	Upload(ctx context.Context, plaintext []byte, appInfo whatsmeow.MediaType) (whatsmeow.UploadResponse, error)
	SendChatPresence(jid types.JID, state types.ChatPresence, media types.ChatPresenceMedia) error
	BuildPollCreation(name string, optionNames []string, selectableOptionCount int) *waE2E.Message
}

// ActivityRecorder records channel activity events. Recording is
// fire-and-forget from the pipeline's point of view: failures are logged
// and never fail a send.
type ActivityRecorder interface {
	Record(channel, accountID, direction string) error
}

// SendAPI turns text/media send requests into WhatsApp payloads and
// executes them with correct reply threading. Outbound messages are
// remembered in the quote cache so follow-up replies can quote them.
type SendAPI struct {
	transport        Transport
	cache            *cache.QuoteCache
	activity         ActivityRecorder
	defaultAccountID string
	logger           *logger.Logger
}

// NewSendAPI creates a send pipeline bound to one transport and one
// explicitly owned quote cache.
func NewSendAPI(transport Transport, quoteCache *cache.QuoteCache, activity ActivityRecorder, defaultAccountID string, log *logger.Logger) *SendAPI {
	return &SendAPI{
		transport:        transport,
		cache:            quoteCache,
		activity:         activity,
		defaultAccountID: defaultAccountID,
		logger:           log,
	}
}

// Cache returns the quote cache owned by this pipeline
func (s *SendAPI) Cache() *cache.QuoteCache {
	return s.cache
}

// RememberMessage stores an observed message for later quote resolution
func (s *SendAPI) RememberMessage(msg *model.CachedMessage) {
	s.cache.Remember(msg)
}

// ToJID normalizes a destination (bare phone number or full JID) into a
// parsed WhatsApp JID.
func ToJID(raw string) (types.JID, error) {
	normalized := model.NormalizeChatJID(raw)
	if normalized == "" {
		return types.JID{}, fmt.Errorf("empty destination")
	}
	jid, err := types.ParseJID(normalized)
	if err != nil {
		return types.JID{}, fmt.Errorf("invalid destination %q: %w", raw, err)
	}
	return jid, nil
}

// SendContent sends a prebuilt payload to a destination, resolving the
// quote context from the cache when the options carry a reply-to ID. On
// success the outbound message is remembered and an activity event is
// recorded. Transport failures propagate to the caller; a failed send
// never touches the cache.
func (s *SendAPI) SendContent(ctx context.Context, to string, payload *waE2E.Message, opts *model.SendOptions) (*model.SendResult, error) {
	jid, err := ToJID(to)
	if err != nil {
		return nil, err
	}

	var quoted *model.CachedMessage
	if opts != nil {
		quoted = s.cache.Resolve(jid.String(), opts.ReplyToID)
	}
	if quoted != nil {
		payload = withQuoteContext(payload, quoted)
	}

	resp, err := s.transport.SendMessage(ctx, jid, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}

	if resp.ID != "" {
		s.cache.Remember(&model.CachedMessage{
			ChatJID: jid.String(),
			ID:      string(resp.ID),
			FromMe:  true,
			Message: payload,
		})
	}

	accountID := s.defaultAccountID
	if opts != nil && opts.AccountID != "" {
		accountID = opts.AccountID
	}
	if s.activity != nil {
		if err := s.activity.Record(ChannelName, accountID, model.DirectionOutbound); err != nil {
			s.logger.WithAccountID(accountID).Warn("Failed to record channel activity", "error", err)
		}
	}

	messageID := string(resp.ID)
	if messageID == "" {
		messageID = unknownMessageID
	}
	return &model.SendResult{MessageID: messageID}, nil
}

// SendMessage sends text, optionally with media. The payload shape follows
// the media MIME category: images and videos carry the text as caption,
// audio is sent as a voice note, unrecognized types become a generic
// document. Without media the text goes out as a plain message.
func (s *SendAPI) SendMessage(ctx context.Context, to, text string, media []byte, mediaType string, opts *model.SendOptions) (*model.SendResult, error) {
	var payload *waE2E.Message

	if len(media) > 0 && mediaType != "" {
		var err error
		payload, err = s.buildMediaPayload(ctx, text, media, mediaType, opts)
		if err != nil {
			return nil, err
		}
	} else {
		payload = &waE2E.Message{Conversation: proto.String(text)}
	}

	return s.SendContent(ctx, to, payload, opts)
}

// SendPoll creates a poll in the destination chat. Polls default to
// single-select and are attributed to the default account; they are not
// quotable.
func (s *SendAPI) SendPoll(ctx context.Context, to string, poll model.Poll) (*model.SendResult, error) {
	selectable := poll.MaxSelections
	if selectable <= 0 {
		selectable = 1
	}
	payload := s.transport.BuildPollCreation(poll.Question, poll.Options, selectable)
	return s.SendContent(ctx, to, payload, &model.SendOptions{AccountID: s.defaultAccountID})
}

// SendReaction attaches an emoji reaction to a specific prior message.
// Reactions bypass the quote cache entirely.
func (s *SendAPI) SendReaction(ctx context.Context, chatJID, messageID, emoji string, fromMe bool, participant string) error {
	jid, err := ToJID(chatJID)
	if err != nil {
		return err
	}

	key := &waCommon.MessageKey{
		RemoteJID: proto.String(jid.String()),
		ID:        proto.String(messageID),
		FromMe:    proto.Bool(fromMe),
	}
	if participant != "" {
		pjid, err := ToJID(participant)
		if err != nil {
			return err
		}
		key.Participant = proto.String(pjid.String())
	}

	payload := &waE2E.Message{
		ReactionMessage: &waE2E.ReactionMessage{
			Key:               key,
			Text:              proto.String(emoji),
			SenderTimestampMS: proto.Int64(time.Now().UnixMilli()),
		},
	}

	if _, err := s.transport.SendMessage(ctx, jid, payload); err != nil {
		return fmt.Errorf("failed to send reaction: %w", err)
	}
	return nil
}

// SendComposingTo signals transient "composing" presence in a chat
func (s *SendAPI) SendComposingTo(_ context.Context, to string) error {
	jid, err := ToJID(to)
	if err != nil {
		return err
	}
	if err := s.transport.SendChatPresence(jid, types.ChatPresenceComposing, types.ChatPresenceMediaText); err != nil {
		return fmt.Errorf("failed to send presence update: %w", err)
	}
	return nil
}

// buildMediaPayload uploads the media and frames it per MIME category
func (s *SendAPI) buildMediaPayload(ctx context.Context, text string, media []byte, mediaType string, opts *model.SendOptions) (*waE2E.Message, error) {
	switch {
	case strings.HasPrefix(mediaType, "image/"):
		up, err := s.transport.Upload(ctx, media, whatsmeow.MediaImage)
		if err != nil {
			return nil, fmt.Errorf("failed to upload image: %w", err)
		}
		return &waE2E.Message{ImageMessage: &waE2E.ImageMessage{
			Caption:       optionalCaption(text),
			Mimetype:      proto.String(mediaType),
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
			MediaKey:      up.MediaKey,
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    proto.Uint64(up.FileLength),
		}}, nil

	case strings.HasPrefix(mediaType, "audio/"):
		up, err := s.transport.Upload(ctx, media, whatsmeow.MediaAudio)
		if err != nil {
			return nil, fmt.Errorf("failed to upload audio: %w", err)
		}
		// Audio always goes out as a push-to-talk voice note.
		return &waE2E.Message{AudioMessage: &waE2E.AudioMessage{
			PTT:           proto.Bool(true),
			Mimetype:      proto.String(mediaType),
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
			MediaKey:      up.MediaKey,
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    proto.Uint64(up.FileLength),
		}}, nil

	case strings.HasPrefix(mediaType, "video/"):
		up, err := s.transport.Upload(ctx, media, whatsmeow.MediaVideo)
		if err != nil {
			return nil, fmt.Errorf("failed to upload video: %w", err)
		}
		videoMsg := &waE2E.VideoMessage{
			Caption:       optionalCaption(text),
			Mimetype:      proto.String(mediaType),
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
			MediaKey:      up.MediaKey,
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    proto.Uint64(up.FileLength),
		}
		if opts != nil && opts.GifPlayback {
			videoMsg.GifPlayback = proto.Bool(true)
		}
		return &waE2E.Message{VideoMessage: videoMsg}, nil

	default:
		up, err := s.transport.Upload(ctx, media, whatsmeow.MediaDocument)
		if err != nil {
			return nil, fmt.Errorf("failed to upload document: %w", err)
		}
		return &waE2E.Message{DocumentMessage: &waE2E.DocumentMessage{
			FileName:      proto.String(documentFileName),
			Caption:       optionalCaption(text),
			Mimetype:      proto.String(mediaType),
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
			MediaKey:      up.MediaKey,
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    proto.Uint64(up.FileLength),
		}}, nil
	}
}

// withQuoteContext attaches the resolved message as a quote context. Plain
// conversation text cannot carry context info, so it is promoted to an
// extended text message first.
func withQuoteContext(payload *waE2E.Message, quoted *model.CachedMessage) *waE2E.Message {
	participant := quoted.Sender
	if participant == "" {
		participant = quoted.ChatJID
	}
	contextInfo := &waE2E.ContextInfo{
		StanzaID:      proto.String(quoted.ID),
		Participant:   proto.String(participant),
		QuotedMessage: quoted.Message,
	}

	switch {
	case payload.Conversation != nil:
		return &waE2E.Message{ExtendedTextMessage: &waE2E.ExtendedTextMessage{
			Text:        payload.Conversation,
			ContextInfo: contextInfo,
		}}
	case payload.ExtendedTextMessage != nil:
		payload.ExtendedTextMessage.ContextInfo = contextInfo
	case payload.ImageMessage != nil:
		payload.ImageMessage.ContextInfo = contextInfo
	case payload.AudioMessage != nil:
		payload.AudioMessage.ContextInfo = contextInfo
	case payload.VideoMessage != nil:
		payload.VideoMessage.ContextInfo = contextInfo
	case payload.DocumentMessage != nil:
		payload.DocumentMessage.ContextInfo = contextInfo
	}
	return payload
}

func optionalCaption(text string) *string {
	if text == "" {
		return nil
	}
	return proto.String(text)
}
