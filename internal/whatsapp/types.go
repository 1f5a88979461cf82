package whatsapp

// SendRequest is the payload sent to the Graph API to send a text message.
type SendRequest struct {
	MessagingProduct string    `json:"messaging_product"`
	To               string    `json:"to"`
	Type             string    `json:"type"`
	Text             *SendText `json:"text,omitempty"`
}

// SendText is the text body for outbound messages.
type SendText struct {
	PreviewURL bool   `json:"preview_url"`
	Body       string `json:"body"`
}

// MarkReadRequest flags an inbound message as read.
type MarkReadRequest struct {
	MessagingProduct string `json:"messaging_product"`
	Status           string `json:"status"`
	MessageID        string `json:"message_id"`
}

// SendResponse is the Graph API reply to a message send.
type SendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *APIError `json:"error,omitempty"`
}

// MediaMetadata describes an uploaded media object. The URL it carries is
// short-lived and must be fetched with the same access token.
type MediaMetadata struct {
	MessagingProduct string    `json:"messaging_product"`
	URL              string    `json:"url"`
	MimeType         string    `json:"mime_type"`
	SHA256           string    `json:"sha256"`
	FileSize         string    `json:"file_size"`
	ID               string    `json:"id"`
	Error            *APIError `json:"error,omitempty"`
}

// APIError is the error envelope returned by the Graph API.
type APIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
}
