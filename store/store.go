package store

import (
	"context"

	"swapit/models"

	"github.com/shopspring/decimal"
)

// The durable collaborators behind the negotiation core. Each interface
// is deliberately narrow: insert, find-by-filter, find-one. Services
// depend on these, never on the storage engine directly.

type TicketStore interface {
	InsertTicket(ctx context.Context, t *models.Ticket) error
	FindTicket(ctx context.Context, ticketID string) (*models.Ticket, error)
	ListTickets(ctx context.Context, category string) ([]*models.Ticket, error)
	SetTicketStatus(ctx context.Context, ticketID, status string) error
}

type NegotiationStore interface {
	InsertNegotiation(ctx context.Context, n *models.Negotiation) error
	FindNegotiation(ctx context.Context, negotiationID string) (*models.Negotiation, error)
	CloseNegotiation(ctx context.Context, negotiationID string, agreedPrice *decimal.Decimal) error
}

// TranscriptStore is the append-only negotiation log. Append never
// mutates prior entries; History returns them in replay order
// (timestamp, then insertion order).
type TranscriptStore interface {
	Append(ctx context.Context, m *models.Message) error
	History(ctx context.Context, negotiationID string) ([]*models.Message, error)
}

type ScanStore interface {
	InsertScan(ctx context.Context, s *models.TicketScan) error
}
