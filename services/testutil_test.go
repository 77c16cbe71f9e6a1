package services

import (
	"context"
	"sync"

	"swapit/internal/status"
	"swapit/models"

	"github.com/shopspring/decimal"
)

type fakeTicketStore struct {
	mu      sync.Mutex
	tickets map[string]*models.Ticket
}

func newFakeTicketStore() *fakeTicketStore {
	return &fakeTicketStore{tickets: make(map[string]*models.Ticket)}
}

func (f *fakeTicketStore) InsertTicket(_ context.Context, t *models.Ticket) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tickets[t.TicketID] = t
	return nil
}

func (f *fakeTicketStore) FindTicket(_ context.Context, ticketID string) (*models.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tickets[ticketID]
	if !ok {
		return nil, status.ErrTicketNotFound
	}
	copied := *t
	return &copied, nil
}

func (f *fakeTicketStore) ListTickets(_ context.Context, category string) ([]*models.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Ticket
	for _, t := range f.tickets {
		if category == "" || t.Category == category {
			copied := *t
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeTicketStore) SetTicketStatus(_ context.Context, ticketID, ticketStatus string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tickets[ticketID]
	if !ok {
		return status.ErrTicketNotFound
	}
	t.Status = ticketStatus
	return nil
}

type fakeNegotiationStore struct {
	mu           sync.Mutex
	negotiations map[string]*models.Negotiation
}

func newFakeNegotiationStore() *fakeNegotiationStore {
	return &fakeNegotiationStore{negotiations: make(map[string]*models.Negotiation)}
}

func (f *fakeNegotiationStore) InsertNegotiation(_ context.Context, n *models.Negotiation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.negotiations[n.NegotiationID] = n
	return nil
}

func (f *fakeNegotiationStore) FindNegotiation(_ context.Context, negotiationID string) (*models.Negotiation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.negotiations[negotiationID]
	if !ok {
		return nil, status.ErrNotFound
	}
	copied := *n
	return &copied, nil
}

func (f *fakeNegotiationStore) CloseNegotiation(_ context.Context, negotiationID string, agreedPrice *decimal.Decimal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.negotiations[negotiationID]
	if !ok {
		return status.ErrNotFound
	}
	n.Status = models.NegotiationClosed
	n.AgreedPrice = agreedPrice
	return nil
}

type fakeTranscript struct {
	mu        sync.Mutex
	appended  []*models.Message
	appendErr error
}

func (f *fakeTranscript) Append(_ context.Context, m *models.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	copied := *m
	f.appended = append(f.appended, &copied)
	return nil
}

func (f *fakeTranscript) History(_ context.Context, negotiationID string) ([]*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Message
	for _, m := range f.appended {
		if m.NegotiationID == negotiationID {
			out = append(out, m)
		}
	}
	return out, nil
}

type publishCall struct {
	channel string
	payload map[string]any
}

type fakePublisher struct {
	mu        sync.Mutex
	published []publishCall
}

func (f *fakePublisher) Publish(channel string, message map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, publishCall{channel: channel, payload: message})
	return nil
}

func (f *fakePublisher) calls() []publishCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]publishCall, len(f.published))
	copy(out, f.published)
	return out
}

type fakeGenerator struct {
	mu         sync.Mutex
	reply      string
	err        error
	calls      int
	lastPrompt string
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastPrompt = prompt
	return f.reply, f.err
}
