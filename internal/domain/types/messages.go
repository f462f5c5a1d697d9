package types

// Associated data binding each routing token to its field, so tokens cannot be
// swapped between fields.
const (
	RoutingAADSender   = "konnect/routing/sender"
	RoutingAADReceiver = "konnect/routing/receiver"
	RoutingAADGroup    = "konnect/routing/group"
)

// MessageEnvelope is one recipient's copy of a message on the wire.
//
// Message is the body sealed under the per-message key and is identical in
// every copy of one logical message. Key is that per-message key wrapped to
// the recipient. Sender, Receiver and Group are sealed under the session key.
type MessageEnvelope struct {
	ID        string `json:"id"`
	Message   string `json:"message"`
	Key       string `json:"key"`
	Sender    string `json:"sender"`
	Receiver  string `json:"receiver"`
	Group     string `json:"group,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// DecryptedMessage is what the message service returns after opening an envelope.
type DecryptedMessage struct {
	ID        string   `json:"id"`
	From      Identity `json:"from"`
	To        Identity `json:"to"`
	Group     GroupID  `json:"group,omitempty"`
	Plaintext []byte   `json:"plaintext"`
	Timestamp int64    `json:"timestamp"`
}

// Conversation returns the cache bucket name for m as seen by its receiver.
func (m DecryptedMessage) Conversation() string {
	if m.Group != "" {
		return "group:" + string(m.Group)
	}
	return m.From.String()
}
