package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	qrterminal "github.com/mdp/qrterminal/v3"
	qrcode "github.com/skip2/go-qrcode"
	"go.mau.fi/whatsmeow"
	waE2E "go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"

	"whatsapp-outbound-gateway/internal/config"
	"whatsapp-outbound-gateway/internal/model"
	"whatsapp-outbound-gateway/pkg/logger"
)

// WhatsAppService owns the whatsmeow client and wires inbound events into
// the quote cache, the reply webhook, and the reply delivery path.
type WhatsAppService struct {
	client       *whatsmeow.Client
	container    *sqlstore.Container
	logger       *logger.Logger
	sendAPI      *SendAPI
	replyWebhook *ReplyWebhookService
	activity     ActivityRecorder
	replyCfg     *config.ReplyConfig
}

// NewWhatsAppService creates a new WhatsApp service
func NewWhatsAppService(cfg *config.WhatsAppConfig, log *logger.Logger) (*WhatsAppService, error) {
	ctx := context.Background()

	// Ensure database directory exists
	dbDir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Setup database for session storage
	container, err := sqlstore.New(ctx, "sqlite3", fmt.Sprintf("file:%s?_foreign_keys=on", cfg.DBPath), waLog.Noop)
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}

	// Get first device or create new one
	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}

	client := whatsmeow.NewClient(deviceStore, waLog.Noop)

	service := &WhatsAppService{
		client:    client,
		container: container,
		logger:    log,
	}

	return service, nil
}

// SetSendAPI sets the outbound send pipeline
func (s *WhatsAppService) SetSendAPI(api *SendAPI) {
	s.sendAPI = api
}

// SetReplyWebhook sets the webhook used to compute replies for inbound messages
func (s *WhatsAppService) SetReplyWebhook(webhook *ReplyWebhookService, cfg *config.ReplyConfig) {
	s.replyWebhook = webhook
	s.replyCfg = cfg
}

// SetActivityRecorder sets the recorder for inbound activity events
func (s *WhatsAppService) SetActivityRecorder(activity ActivityRecorder) {
	s.activity = activity
}

// Client returns the underlying whatsmeow client
func (s *WhatsAppService) Client() *whatsmeow.Client {
	return s.client
}

// Connect connects to WhatsApp, pairing via QR code when no session exists
func (s *WhatsAppService) Connect() error {
	if s.client.Store.ID == nil {
		s.logger.Info("No logged in session found, starting QR code pairing...")
		return s.connectWithQRLogin()
	}

	s.logger.Info("Existing session found, connecting...")
	s.client.AddEventHandler(s.handleEvent)

	if err := s.client.Connect(); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	s.logger.Info("WhatsApp client connected successfully")
	return nil
}

// connectWithQRLogin pairs a new device by rendering the QR code to the
// terminal and to a PNG file.
func (s *WhatsAppService) connectWithQRLogin() error {
	qrChan, err := s.client.GetQRChannel(context.Background())
	if err != nil {
		return fmt.Errorf("failed to get QR channel: %w", err)
	}

	if err := s.client.Connect(); err != nil {
		return fmt.Errorf("failed to connect to WhatsApp: %w", err)
	}

	s.logger.Info("Connected to WhatsApp, waiting for QR code...")

	qrCount := 0
	for evt := range qrChan {
		switch evt.Event {
		case "code":
			qrCount++

			fmt.Println("\nScan this QR code with WhatsApp (Settings > Linked Devices > Link a Device):")
			qrterminal.GenerateHalfBlock(evt.Code, qrterminal.L, os.Stdout)

			qrFilename := "whatsapp-qrcode.png"
			if err := qrcode.WriteFile(evt.Code, qrcode.Medium, 512, qrFilename); err != nil {
				s.logger.Error("Failed to generate QR code PNG", "error", err)
				continue
			}
			s.logger.Info("QR code saved", "file", qrFilename, "refresh_count", qrCount)

		case "timeout":
			return fmt.Errorf("QR code scan timeout")
		case "error":
			return fmt.Errorf("QR code error: %v", evt.Error)
		default:
			// Channel closes after success events
			if s.client.IsLoggedIn() {
				s.logger.Info("Successfully logged in!")
				s.client.AddEventHandler(s.handleEvent)
				return nil
			}
		}
	}

	if !s.client.IsLoggedIn() {
		return fmt.Errorf("QR login did not complete")
	}

	s.client.AddEventHandler(s.handleEvent)
	return nil
}

// Disconnect disconnects from WhatsApp
func (s *WhatsAppService) Disconnect() {
	s.client.Disconnect()
	s.logger.Info("WhatsApp client disconnected")
}

// IsConnected checks if client is connected
func (s *WhatsAppService) IsConnected() bool {
	return s.client.IsConnected()
}

// ValidateDestination validates and parses a destination (personal or group)
func (s *WhatsAppService) ValidateDestination(destination string) (types.JID, string, error) {
	jid, err := ToJID(destination)
	if err != nil {
		return types.JID{}, "", err
	}

	if jid.Server == types.GroupServer {
		// Verify group exists and bot is member
		if _, err := s.client.GetGroupInfo(jid); err != nil {
			return types.JID{}, "", fmt.Errorf("group not found or bot not a member: %w", err)
		}
		return jid, model.ChatTypeGroup, nil
	}

	// Check if number is on WhatsApp
	resp, err := s.client.IsOnWhatsApp([]string{jid.User})
	if err != nil {
		return types.JID{}, "", fmt.Errorf("failed to check WhatsApp status: %w", err)
	}
	if len(resp) == 0 || !resp[0].IsIn {
		return types.JID{}, "", fmt.Errorf("phone number not registered on WhatsApp")
	}

	return jid, model.ChatTypeDirect, nil
}

// handleEvent handles WhatsApp events
func (s *WhatsAppService) handleEvent(evt interface{}) {
	switch v := evt.(type) {
	case *events.Message:
		s.handleIncomingMessage(v)
	case *events.Connected:
		s.logger.Info("WhatsApp client connected")
	case *events.Disconnected:
		s.logger.Warn("WhatsApp client disconnected")
	}
}

// handleIncomingMessage remembers the message for quote resolution and,
// for messages addressed to us, asks the reply webhook for an answer and
// delivers it.
func (s *WhatsAppService) handleIncomingMessage(evt *events.Message) {
	if s.sendAPI == nil {
		return
	}

	info := evt.Info
	chatJID := info.Chat.String()

	// Every real message, inbound or our own echo, becomes quotable.
	s.sendAPI.RememberMessage(&model.CachedMessage{
		ChatJID: chatJID,
		ID:      string(info.ID),
		Sender:  info.Sender.String(),
		FromMe:  info.IsFromMe,
		Message: evt.Message,
	})

	if info.IsFromMe {
		return
	}

	if s.activity != nil {
		if err := s.activity.Record(ChannelName, s.sendAPI.defaultAccountID, model.DirectionInbound); err != nil {
			s.logger.Warn("Failed to record inbound activity", "error", err)
		}
	}

	if s.replyWebhook == nil || !s.replyWebhook.Enabled() {
		return
	}

	if len(s.replyCfg.AllowedJIDs) > 0 && !s.isAllowed(chatJID) {
		s.logger.WithJID(chatJID).Debug("Message from non-whitelisted JID ignored")
		return
	}

	chatType := model.ChatTypeDirect
	if info.IsGroup {
		chatType = model.ChatTypeGroup
	}

	msg := model.InboundMessage{
		ID:           string(info.ID),
		ChatJID:      chatJID,
		ChatType:     chatType,
		SenderJID:    info.Sender.String(),
		SenderName:   info.PushName,
		Body:         extractBody(evt.Message),
		WasMentioned: s.wasMentioned(evt.Message),
		Timestamp:    info.Timestamp,
	}
	if msg.Body == "" {
		return
	}

	ctx := context.Background()
	handle := &inboundHandle{svc: s, msg: msg}

	if err := handle.SendComposing(ctx); err != nil {
		s.logger.WithJID(chatJID).Debug("Failed to send composing presence", "error", err)
	}

	reply, err := s.replyWebhook.RequestReply(ctx, msg)
	if err != nil {
		s.logger.WithJID(chatJID).WithMessageID(msg.ID).Error("Failed to get reply from webhook", "error", err)
		return
	}
	if reply == nil {
		return
	}

	err = DeliverReply(ctx, DeliverParams{
		Result:        *reply,
		Msg:           handle,
		MaxMediaBytes: s.replyCfg.MaxMediaBytes,
		TextLimit:     s.replyCfg.TextLimit,
		Logger:        s.logger,
	})
	if err != nil {
		s.logger.WithJID(chatJID).WithMessageID(msg.ID).Error("Failed to deliver reply", "error", err)
		return
	}

	s.logger.WithJID(chatJID).WithMessageID(msg.ID).Info("Reply delivered",
		"from", info.Sender.User,
	)
}

// wasMentioned reports whether the message explicitly addressed us, either
// via an @-mention or by quoting one of our messages.
func (s *WhatsAppService) wasMentioned(msg *waE2E.Message) bool {
	self := s.client.Store.ID
	if self == nil {
		return false
	}

	ci := extractContextInfo(msg)
	if ci == nil {
		return false
	}
	for _, mentioned := range ci.GetMentionedJID() {
		jid, err := types.ParseJID(mentioned)
		if err == nil && jid.User == self.User {
			return true
		}
	}
	if participant := ci.GetParticipant(); participant != "" {
		jid, err := types.ParseJID(participant)
		if err == nil && jid.User == self.User {
			return true
		}
	}
	return false
}

// isAllowed checks if a chat JID is in the reply whitelist
func (s *WhatsAppService) isAllowed(jid string) bool {
	for _, allowed := range s.replyCfg.AllowedJIDs {
		if model.NormalizeChatJID(allowed) == model.NormalizeChatJID(jid) {
			return true
		}
	}
	return false
}

// GetConnectionStatus returns connection status information
func (s *WhatsAppService) GetConnectionStatus() map[string]interface{} {
	status := map[string]interface{}{
		"connected": s.IsConnected(),
	}

	if s.client.Store.ID != nil {
		status["phone"] = s.client.Store.ID.User
	}

	return status
}

// GetJoinedGroups retrieves all groups that the bot is a member of
func (s *WhatsAppService) GetJoinedGroups(ctx context.Context) ([]*types.GroupInfo, error) {
	if !s.IsConnected() {
		return nil, fmt.Errorf("WhatsApp client not connected")
	}

	groups, err := s.client.GetJoinedGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get joined groups: %w", err)
	}

	return groups, nil
}

// extractBody pulls the text content from whichever message shape arrived
func extractBody(msg *waE2E.Message) string {
	switch {
	case msg == nil:
		return ""
	case msg.GetConversation() != "":
		return msg.GetConversation()
	case msg.GetExtendedTextMessage().GetText() != "":
		return msg.GetExtendedTextMessage().GetText()
	case msg.GetImageMessage().GetCaption() != "":
		return msg.GetImageMessage().GetCaption()
	case msg.GetVideoMessage().GetCaption() != "":
		return msg.GetVideoMessage().GetCaption()
	case msg.GetDocumentMessage().GetCaption() != "":
		return msg.GetDocumentMessage().GetCaption()
	}
	return ""
}

// extractContextInfo finds the context info for the message shapes we care about
func extractContextInfo(msg *waE2E.Message) *waE2E.ContextInfo {
	switch {
	case msg == nil:
		return nil
	case msg.GetExtendedTextMessage() != nil:
		return msg.GetExtendedTextMessage().GetContextInfo()
	case msg.GetImageMessage() != nil:
		return msg.GetImageMessage().GetContextInfo()
	case msg.GetVideoMessage() != nil:
		return msg.GetVideoMessage().GetContextInfo()
	case msg.GetDocumentMessage() != nil:
		return msg.GetDocumentMessage().GetContextInfo()
	case msg.GetAudioMessage() != nil:
		return msg.GetAudioMessage().GetContextInfo()
	}
	return nil
}

// inboundHandle is the reply target bound to one inbound message's chat
type inboundHandle struct {
	svc *WhatsAppService
	msg model.InboundMessage
}

func (h *inboundHandle) Info() model.InboundMessage { return h.msg }

func (h *inboundHandle) Reply(ctx context.Context, text string, opts *model.ReplyOptions) error {
	sendOpts := &model.SendOptions{}
	if opts != nil {
		sendOpts.ReplyToID = opts.ReplyToID
	}
	_, err := h.svc.sendAPI.SendMessage(ctx, h.msg.ChatJID, text, nil, "", sendOpts)
	return err
}

func (h *inboundHandle) SendMedia(ctx context.Context, caption, mediaURL string, maxBytes int64) error {
	data, mediaType, err := fetchMedia(ctx, mediaURL, maxBytes)
	if err != nil {
		return err
	}
	_, err = h.svc.sendAPI.SendMessage(ctx, h.msg.ChatJID, caption, data, mediaType, nil)
	return err
}

func (h *inboundHandle) SendComposing(ctx context.Context) error {
	return h.svc.sendAPI.SendComposingTo(ctx, h.msg.ChatJID)
}

// fetchMedia downloads a media reference, enforcing the byte limit
func fetchMedia(ctx context.Context, mediaURL string, maxBytes int64) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", mediaURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create media request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("media fetch returned status %d", resp.StatusCode)
	}

	reader := io.Reader(resp.Body)
	if maxBytes > 0 {
		reader = io.LimitReader(resp.Body, maxBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read media: %w", err)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, "", fmt.Errorf("media exceeds limit of %d bytes", maxBytes)
	}

	mediaType := resp.Header.Get("Content-Type")
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}
	return data, mediaType, nil
}
