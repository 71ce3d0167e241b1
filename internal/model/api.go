package model

// SendTextRequest is the body of POST /api/v1/send/text
type SendTextRequest struct {
	To        string `json:"to"`
	Text      string `json:"text"`
	ReplyToID string `json:"reply_to_id,omitempty"`
	AccountID string `json:"account_id,omitempty"`
}

// SendMediaRequest is the body of POST /api/v1/send/media
type SendMediaRequest struct {
	To          string `json:"to"`
	Caption     string `json:"caption,omitempty"`
	MediaBase64 string `json:"media_base64"`
	MediaType   string `json:"media_type"`
	GifPlayback bool   `json:"gif_playback,omitempty"`
	ReplyToID   string `json:"reply_to_id,omitempty"`
	AccountID   string `json:"account_id,omitempty"`
}

// SendPollRequest is the body of POST /api/v1/send/poll
type SendPollRequest struct {
	To   string `json:"to"`
	Poll Poll   `json:"poll"`
}

// SendReactionRequest is the body of POST /api/v1/send/reaction
type SendReactionRequest struct {
	ChatJID     string `json:"chat_jid"`
	MessageID   string `json:"message_id"`
	Emoji       string `json:"emoji"`
	FromMe      bool   `json:"from_me,omitempty"`
	Participant string `json:"participant,omitempty"`
}

// SendTypingRequest is the body of POST /api/v1/send/typing
type SendTypingRequest struct {
	To string `json:"to"`
}

// APIResponse is the envelope for all API responses
type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
}

// APIError carries a machine-readable error code
type APIError struct {
	Code    string `json:"error_code"`
	Message string `json:"message"`
}

// WebhookPayload is the payload forwarded to the reply webhook for each
// inbound message
type WebhookPayload struct {
	Event   string         `json:"event"`
	Message InboundMessage `json:"message"`
}

// WebhookResponse is the response expected from the reply webhook. A nil
// Reply means the upstream chose not to answer.
type WebhookResponse struct {
	Status string       `json:"status"`
	Reply  *ReplyResult `json:"reply,omitempty"`
}
