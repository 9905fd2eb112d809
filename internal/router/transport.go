package router

// Sender identifies the principal a message came from, with the profile
// fields the transport exposes about them.
type Sender struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
}

// Inbound is one incoming message as seen by the router: the content
// kind, the text (or caption) typed by the sender, and the transport
// handle of any attached media.
type Inbound struct {
	Kind      string // models.Media* tag
	Text      string
	FileID    string
	MessageID int
	ChatID    int64
}

// Delivery is one physical outbound send. ReplyTo, when non-zero, asks
// the transport to attach the clickable reply affordance carrying that
// counterpart ID.
type Delivery struct {
	Kind    string // models.Media* tag
	Text    string // message text, or caption for media kinds
	FileID  string
	ReplyTo int64
}

// Transport delivers a single message to a principal. Implementations
// must return the delivery error rather than swallowing it; the router
// decides whether a failure is user-visible.
type Transport interface {
	Deliver(to int64, d Delivery) error
}
