package whatsapp

// WebhookEvent is the top-level structure delivered by the Cloud API webhook.
type WebhookEvent struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

// Entry groups the changes reported for one WhatsApp business account.
type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

// Change is a single field mutation inside an entry. Message deliveries
// arrive as changes whose value carries a non-empty messages list; status
// callbacks arrive with other shapes and are ignored by the relay.
type Change struct {
	Value ChangeValue `json:"value"`
	Field string      `json:"field"`
}

// ChangeValue holds the payload of a change.
type ChangeValue struct {
	Metadata *ChangeMetadata  `json:"metadata,omitempty"`
	Contacts []WebhookContact `json:"contacts"`
	Messages []InboundMessage `json:"messages"`
}

// ChangeMetadata identifies the business phone number the event targets.
type ChangeMetadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

// WebhookContact is the sender profile attached to a delivery.
type WebhookContact struct {
	WaID    string         `json:"wa_id"`
	Profile ContactProfile `json:"profile"`
}

// ContactProfile carries the sender's display name.
type ContactProfile struct {
	Name string `json:"name"`
}

// InboundMessage is one inbound message inside a change.
type InboundMessage struct {
	From      string        `json:"from"`
	ID        string        `json:"id"`
	Timestamp string        `json:"timestamp"`
	Type      string        `json:"type"`
	Text      *InboundText  `json:"text,omitempty"`
	Audio     *InboundMedia `json:"audio,omitempty"`
}

// InboundText is the body of a text message.
type InboundText struct {
	Body string `json:"body"`
}

// InboundMedia references an uploaded media object by ID.
type InboundMedia struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
}
