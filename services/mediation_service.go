package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"swapit/internal/llm"
	"swapit/internal/status"
	"swapit/models"
	"swapit/monitoring"
	"swapit/store"
	"swapit/utils"

	"github.com/shopspring/decimal"
)

// FallbackReply is substituted whenever the generative collaborator
// fails or times out; the negotiation must never stall on it.
const FallbackReply = "Sorry, I could not process that request."

const (
	buyerAck  = "Noted. I'm checking with the seller now."
	sellerAck = "Thanks. I'm relaying this to the buyer."
)

// PartyMessage is one raw utterance submitted by a buyer or seller.
type PartyMessage struct {
	NegotiationID string
	Role          string
	PartyID       string
	Text          string
	Budget        *decimal.Decimal
	MinAcceptable *decimal.Decimal

	// SenderConn, when set, receives the agent_ack event.
	SenderConn string
}

// MediationService runs the relay pipeline: validate, persist the raw
// message, transform it through the generator, persist the mediator
// message and push it to the counterparty's live connection if any.
type MediationService struct {
	negotiations store.NegotiationStore
	tickets      store.TicketStore
	transcript   store.TranscriptStore
	router       *SessionRouter
	generator    llm.Generator
	publisher    Publisher
	breaker      *utils.CircuitBreaker
	monitor      *monitoring.Monitor
}

func NewMediationService(
	negotiations store.NegotiationStore,
	tickets store.TicketStore,
	transcript store.TranscriptStore,
	router *SessionRouter,
	generator llm.Generator,
	publisher Publisher,
	monitor *monitoring.Monitor,
) *MediationService {
	return &MediationService{
		negotiations: negotiations,
		tickets:      tickets,
		transcript:   transcript,
		router:       router,
		generator:    generator,
		publisher:    publisher,
		breaker:      utils.NewCircuitBreaker("generator"),
		monitor:      monitor,
	}
}

// SubmitPartyMessage accepts a party message for mediation. Validation
// failures return before any transcript write. After the raw append the
// sender is acked immediately; the ack confirms "received and being
// processed", never "delivered". No lock is held across the generator
// call, and an accepted message always yields exactly two transcript
// entries: the raw text and the mediator's transformed counterpart.
func (s *MediationService) SubmitPartyMessage(ctx context.Context, msg *PartyMessage) error {
	if msg.Role != models.RoleBuyer && msg.Role != models.RoleSeller {
		return status.ErrRoleMismatch
	}

	nego, err := s.negotiations.FindNegotiation(ctx, msg.NegotiationID)
	if err != nil {
		s.monitor.TrackPartyMessage(msg.Role, "rejected")
		return err
	}
	if nego.Status != models.NegotiationOpen {
		s.monitor.TrackPartyMessage(msg.Role, "rejected")
		return status.ErrInvalidState
	}
	if nego.PartyID(msg.Role) != msg.PartyID {
		s.monitor.TrackPartyMessage(msg.Role, "rejected")
		return status.ErrRoleMismatch
	}

	// The raw utterance is persisted before the generative call so it
	// survives any downstream failure.
	if err := s.transcript.Append(ctx, &models.Message{
		NegotiationID: msg.NegotiationID,
		Role:          msg.Role,
		Text:          msg.Text,
		Timestamp:     time.Now().UTC(),
	}); err != nil {
		s.monitor.TrackPartyMessage(msg.Role, "rejected")
		return fmt.Errorf("submit party message: %w", err)
	}

	s.monitor.TrackPartyMessage(msg.Role, "accepted")

	if msg.SenderConn != "" {
		ack := buyerAck
		if msg.Role == models.RoleSeller {
			ack = sellerAck
		}
		s.publishEvent(msg.SenderConn, "agent_ack", msg.NegotiationID, ack)
	}

	ticket, err := s.tickets.FindTicket(ctx, nego.TicketID)
	if err != nil {
		// The mediator still answers with whatever context it has.
		log.Printf("mediation: ticket %s lookup failed: %v", nego.TicketID, err)
		ticket = &models.Ticket{}
	}

	var prompt string
	direction := models.DirectionToSeller
	outEvent := "agent_to_seller"
	if msg.Role == models.RoleBuyer {
		prompt = buyerPrompt(ticket, msg.Text, msg.Budget)
	} else {
		prompt = sellerPrompt(ticket, msg.Text, msg.MinAcceptable)
		direction = models.DirectionToBuyer
		outEvent = "agent_to_buyer"
	}

	reply := s.generate(ctx, prompt)

	if err := s.transcript.Append(ctx, &models.Message{
		NegotiationID: msg.NegotiationID,
		Role:          models.RoleMediator,
		Direction:     direction,
		Text:          reply,
		Timestamp:     time.Now().UTC(),
	}); err != nil {
		return fmt.Errorf("submit party message: %w", err)
	}

	// Absent counterparty is a normal state: the transcript write above
	// is the only record.
	if conn, ok := s.router.Resolve(msg.NegotiationID, models.CounterpartRole(msg.Role)); ok {
		s.publishEvent(conn, outEvent, msg.NegotiationID, reply)
	}

	return nil
}

func (s *MediationService) generate(ctx context.Context, prompt string) string {
	start := time.Now()
	result, err := s.breaker.Execute(ctx, func() (interface{}, error) {
		return s.generator.Generate(ctx, prompt)
	})
	if err != nil {
		log.Printf("mediation: generator error: %v", err)
		s.monitor.TrackGenerator("fallback", time.Since(start))
		return FallbackReply
	}

	reply, _ := result.(string)
	if strings.TrimSpace(reply) == "" {
		s.monitor.TrackGenerator("fallback", time.Since(start))
		return FallbackReply
	}

	s.monitor.TrackGenerator("success", time.Since(start))
	return reply
}

func (s *MediationService) publishEvent(conn, eventType, negotiationID, message string) {
	err := s.publisher.Publish(ConnChannel(conn), map[string]any{
		"type":           eventType,
		"negotiation_id": negotiationID,
		"message":        message,
	})
	if err != nil {
		log.Printf("mediation: publish %s to %s failed: %v", eventType, conn, err)
	}
}

func buyerPrompt(ticket *models.Ticket, text string, budget *decimal.Decimal) string {
	details, _ := json.Marshal(ticket.Details)
	return fmt.Sprintf(`You are Swapit's AI mediator. Summarize buyer intent and propose a next step for the SELLER.
Ticket details: %s
Seller ask price: %s
Buyer message: %q
Buyer budget: %s
`, details, ticket.AskPrice, text, renderPrice(budget))
}

func sellerPrompt(ticket *models.Ticket, text string, minAcceptable *decimal.Decimal) string {
	details, _ := json.Marshal(ticket.Details)
	return fmt.Sprintf(`You are Swapit's AI mediator. Convert the SELLER response into a buyer-facing message.
Ticket details: %s
Seller ask price: %s
Seller says: %q
Seller minimum acceptable: %s
`, details, ticket.AskPrice, text, renderPrice(minAcceptable))
}

func renderPrice(d *decimal.Decimal) string {
	if d == nil {
		return "unspecified"
	}
	return d.String()
}
