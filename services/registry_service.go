package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"swapit/internal/status"
	"swapit/models"
	"swapit/monitoring"
	"swapit/store"
	"swapit/utils"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// RegistryService owns ticket and negotiation records: creation,
// listing and the open/closed lifecycle. A per-ticket Redis lock
// serializes negotiation starts so one available ticket can never spawn
// two open negotiations.
type RegistryService struct {
	tickets      store.TicketStore
	negotiations store.NegotiationStore
	Redis        *redis.Client
	monitor      *monitoring.Monitor
	lockTTL      time.Duration
}

func NewRegistryService(tickets store.TicketStore, negotiations store.NegotiationStore, redisClient *redis.Client, monitor *monitoring.Monitor, lockTTL time.Duration) *RegistryService {
	return &RegistryService{
		tickets:      tickets,
		negotiations: negotiations,
		Redis:        redisClient,
		monitor:      monitor,
		lockTTL:      lockTTL,
	}
}

func (s *RegistryService) CreateTicket(ctx context.Context, sellerID, category string, details map[string]any, askPrice decimal.Decimal) (*models.Ticket, error) {
	if askPrice.IsZero() {
		askPrice = priceFromDetails(details)
	}

	id, err := utils.GenerateCode(8)
	if err != nil {
		return nil, fmt.Errorf("create ticket: %w", err)
	}

	ticket := &models.Ticket{
		TicketID:  id,
		SellerID:  sellerID,
		Category:  category,
		Details:   details,
		AskPrice:  askPrice,
		Status:    models.TicketAvailable,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.tickets.InsertTicket(ctx, ticket); err != nil {
		return nil, err
	}
	return ticket, nil
}

func (s *RegistryService) ListTickets(ctx context.Context, category string) ([]*models.Ticket, error) {
	return s.tickets.ListTickets(ctx, category)
}

func (s *RegistryService) FindTicket(ctx context.Context, ticketID string) (*models.Ticket, error) {
	return s.tickets.FindTicket(ctx, ticketID)
}

// StartNegotiation opens a negotiation for an available ticket. The
// SetNX lock plus the available->negotiating transition inside it close
// the window where two buyers could both see "available".
func (s *RegistryService) StartNegotiation(ctx context.Context, ticketID, buyerID string) (*models.Negotiation, error) {
	lockKey := fmt.Sprintf("lock:ticket:%s", ticketID)

	acquired, err := s.Redis.SetNX(ctx, lockKey, buyerID, s.lockTTL).Result()
	if err != nil {
		return nil, fmt.Errorf("start negotiation: acquire ticket lock: %w", err)
	}
	if !acquired {
		return nil, status.ErrTicketUnavailable
	}
	defer s.Redis.Del(ctx, lockKey)

	ticket, err := s.tickets.FindTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Status != models.TicketAvailable {
		return nil, status.ErrTicketUnavailable
	}

	id, err := utils.GenerateCode(8)
	if err != nil {
		return nil, fmt.Errorf("start negotiation: %w", err)
	}

	now := time.Now().UTC()
	nego := &models.Negotiation{
		NegotiationID: id,
		TicketID:      ticketID,
		SellerID:      ticket.SellerID,
		BuyerID:       buyerID,
		Status:        models.NegotiationOpen,
		CreatedAt:     now,
		LastUpdate:    now,
	}

	if err := s.negotiations.InsertNegotiation(ctx, nego); err != nil {
		return nil, err
	}
	if err := s.tickets.SetTicketStatus(ctx, ticketID, models.TicketNegotiating); err != nil {
		return nil, err
	}

	s.monitor.TrackNegotiationStarted()
	return nego, nil
}

// CloseNegotiation is the externally-triggered open->closed transition.
// With an agreed price the ticket is sold; without one it returns to
// the listing pool.
func (s *RegistryService) CloseNegotiation(ctx context.Context, negotiationID string, agreedPrice *decimal.Decimal) (*models.Negotiation, error) {
	nego, err := s.negotiations.FindNegotiation(ctx, negotiationID)
	if err != nil {
		return nil, err
	}
	if nego.Status != models.NegotiationOpen {
		return nil, status.ErrInvalidState
	}

	if err := s.negotiations.CloseNegotiation(ctx, negotiationID, agreedPrice); err != nil {
		return nil, err
	}

	ticketStatus := models.TicketAvailable
	if agreedPrice != nil {
		ticketStatus = models.TicketSold
	}
	if err := s.tickets.SetTicketStatus(ctx, nego.TicketID, ticketStatus); err != nil {
		return nil, err
	}

	nego.Status = models.NegotiationClosed
	nego.AgreedPrice = agreedPrice
	nego.LastUpdate = time.Now().UTC()
	return nego, nil
}

// priceFromDetails recovers an ask price from a free-form details map
// when none was given explicitly; sellers routinely paste prices with
// currency symbols.
func priceFromDetails(details map[string]any) decimal.Decimal {
	raw, ok := details["price"].(string)
	if !ok {
		return decimal.Zero
	}

	trimmed := strings.TrimFunc(raw, func(r rune) bool {
		return (r < '0' || r > '9') && r != '.' && r != '-'
	})
	price, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero
	}
	return price
}
