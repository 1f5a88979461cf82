package dispatch

import "encoding/json"

// CallbackTask is the unit of work placed on the queue: one HTTP callback
// the worker must deliver. Ownership of the task transfers entirely to the
// queue once submitted; the relay keeps no state about it.
type CallbackTask struct {
	URL         string          `json:"url"`
	Method      string          `json:"method"`
	ContentType string          `json:"contentType"`
	Body        json.RawMessage `json:"body"`
	// Token is a signed service-identity token bound to URL so the
	// receiving endpoint can verify the call's origin.
	Token string `json:"token"`
}

// taskBody is the payload a downstream processor needs to re-fetch context:
// just the two store keys.
type taskBody struct {
	ContactID string `json:"contactId"`
	MessageID string `json:"messageId"`
}
