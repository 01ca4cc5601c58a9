package events

import (
	"time"

	"github.com/google/uuid"
)

// Meta identifies a single published event.
type Meta struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Source    string    `json:"source"`
}

// Envelope is the wire format of every event on the exchange.
type Envelope struct {
	Meta Meta `json:"meta"`
	Data any  `json:"data"`
}

// GenericEnvelope decodes an envelope with a known payload type.
type GenericEnvelope[T any] struct {
	Meta Meta `json:"meta"`
	Data T    `json:"data"`
}

func NewMeta(source string) Meta {
	return Meta{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Source:    source,
	}
}

// TicketEvent announces a ticket lifecycle change triggered from the
// master chat, e.g. a staff member taking or closing a conversation.
type TicketEvent struct {
	Operation string `json:"operation"`
	URL       string `json:"url"`
	BotID     int64  `json:"bot_id"`
	Chat      int64  `json:"chat"`
	Thread    int    `json:"thread,omitempty"`
	Agent     string `json:"agent,omitempty"`
}

// OperationAck confirms that a downstream consumer processed a ticket
// event. Operation and URL together address the pending entry.
type OperationAck struct {
	Operation string `json:"operation"`
	URL       string `json:"url"`
	Status    string `json:"status,omitempty"`
}

// Routing keys on the ticket exchange.
const (
	KeyTicketTaken  = "ticket.taken"
	KeyTicketClosed = "ticket.closed"
	KeyTicketAck    = "ticket.ack"
)

// Operation values carried by TicketEvent and OperationAck.
const (
	OpTaken  = "taken"
	OpClosed = "closed"
)
