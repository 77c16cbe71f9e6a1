package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"swapit/config"
	"swapit/internal/status"
	"swapit/models"
	"swapit/security"

	pubnub "github.com/pubnub/go"
	"github.com/shopspring/decimal"
)

// inboundEvent is the wire envelope clients publish on the shared
// inbound channel. The connection handle is never part of the payload;
// it is taken from the publisher UUID.
type inboundEvent struct {
	Event         string           `json:"event"`
	NegotiationID string           `json:"negotiation_id"`
	SellerID      string           `json:"seller_id"`
	BuyerID       string           `json:"buyer_id"`
	Message       string           `json:"message"`
	Budget        *decimal.Decimal `json:"budget"`
	MinAcceptable *decimal.Decimal `json:"min_acceptable"`
}

// GatewayService bridges the PubNub transport to the mediation core.
// It subscribes to the shared inbound channel, fans messages out to a
// per-connection worker so one slow generator call cannot stall other
// connections, and turns presence leave/timeout into disconnect
// cleanup.
type GatewayService struct {
	pn        *pubnub.PubNub
	publisher Publisher
	router    *SessionRouter
	mediation *MediationService
	limiter   *security.RateLimiter
	cfg       *config.Config

	stopChan chan struct{}
	wg       sync.WaitGroup

	mu      sync.Mutex
	closed  bool
	workers map[string]chan inboundEvent
}

func NewGatewayService(
	pn *pubnub.PubNub,
	publisher Publisher,
	router *SessionRouter,
	mediation *MediationService,
	limiter *security.RateLimiter,
	cfg *config.Config,
) *GatewayService {
	return &GatewayService{
		pn:        pn,
		publisher: publisher,
		router:    router,
		mediation: mediation,
		limiter:   limiter,
		cfg:       cfg,
		stopChan:  make(chan struct{}),
		workers:   make(map[string]chan inboundEvent),
	}
}

// Run subscribes to the inbound channel with presence and blocks
// draining listener events until the context is cancelled or Shutdown
// is called.
func (g *GatewayService) Run(ctx context.Context) {
	listener := pubnub.NewListener()
	g.pn.AddListener(listener)

	g.pn.Subscribe().
		Channels([]string{g.cfg.InboundChannel}).
		WithPresence(true).
		Execute()

	log.Printf("gateway: subscribed to %s", g.cfg.InboundChannel)

	for {
		select {
		case message := <-listener.Message:
			g.handleMessage(ctx, message)
		case presence := <-listener.Presence:
			g.handlePresence(presence)
		case <-ctx.Done():
			return
		case <-g.stopChan:
			return
		}
	}
}

func (g *GatewayService) handleMessage(ctx context.Context, message *pubnub.PNMessage) {
	if message == nil || message.Channel != g.cfg.InboundChannel {
		return
	}

	conn := message.Publisher
	if conn == "" {
		return
	}

	raw, err := json.Marshal(message.Message)
	if err != nil {
		log.Printf("gateway: marshal inbound payload: %v", err)
		return
	}

	var event inboundEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		g.sendError(conn, "Malformed event payload.")
		return
	}

	g.enqueue(ctx, conn, event)
}

// enqueue hands the event to conn's ordered worker, starting one on
// first use. Same-connection events are processed strictly in arrival
// order; a full queue drops the event with an error rather than
// blocking the listener loop. The mutex stays held across the send so
// no queue can be closed between lookup and send, and events arriving
// after Shutdown are dropped instead of spawning a worker nothing
// will ever stop.
func (g *GatewayService) enqueue(ctx context.Context, conn string, event inboundEvent) {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	queue, ok := g.workers[conn]
	if !ok {
		queue = make(chan inboundEvent, 32)
		g.workers[conn] = queue
		g.wg.Add(1)
		go g.worker(ctx, conn, queue)
	}

	select {
	case queue <- event:
		g.mu.Unlock()
	default:
		g.mu.Unlock()
		g.sendError(conn, "Too many pending messages.")
	}
}

func (g *GatewayService) worker(ctx context.Context, conn string, queue chan inboundEvent) {
	defer g.wg.Done()
	for event := range queue {
		g.dispatch(ctx, conn, event)
	}
}

func (g *GatewayService) handlePresence(presence *pubnub.PNPresence) {
	if presence == nil || presence.Channel != g.cfg.InboundChannel {
		return
	}

	switch presence.Event {
	case "join":
		err := g.publisher.Publish(ConnChannel(presence.UUID), map[string]any{
			"type":    "system",
			"message": "Connected to Swapit mediator.",
		})
		if err != nil {
			log.Printf("gateway: welcome publish failed: %v", err)
		}
	case "leave", "timeout":
		g.router.OnDisconnect(presence.UUID)

		g.mu.Lock()
		if queue, ok := g.workers[presence.UUID]; ok {
			close(queue)
			delete(g.workers, presence.UUID)
		}
		g.mu.Unlock()
	}
}

func (g *GatewayService) dispatch(ctx context.Context, conn string, event inboundEvent) {
	switch event.Event {
	case "join_as_seller":
		g.handleJoin(ctx, conn, event, models.RoleSeller, event.SellerID)
	case "join_as_buyer":
		g.handleJoin(ctx, conn, event, models.RoleBuyer, event.BuyerID)
	case "buyer_to_agent":
		g.handlePartyMessage(ctx, conn, event, models.RoleBuyer, event.BuyerID)
	case "seller_to_agent":
		g.handlePartyMessage(ctx, conn, event, models.RoleSeller, event.SellerID)
	default:
		g.sendError(conn, fmt.Sprintf("Unknown event %q.", event.Event))
	}
}

func (g *GatewayService) handleJoin(ctx context.Context, conn string, event inboundEvent, role, partyID string) {
	err := g.router.JoinAsRole(ctx, event.NegotiationID, role, partyID, conn)
	if err != nil {
		if errors.Is(err, status.ErrNotFound) || errors.Is(err, status.ErrRoleMismatch) {
			g.sendError(conn, fmt.Sprintf("Negotiation not found or %s mismatch.", role))
			return
		}
		log.Printf("gateway: join %s %s failed: %v", role, event.NegotiationID, err)
		g.sendError(conn, "Join failed.")
		return
	}

	confirmation := "Buyer joined negotiation."
	if role == models.RoleSeller {
		confirmation = "Seller joined negotiation."
	}
	err = g.publisher.Publish(ConnChannel(conn), map[string]any{
		"type":           "system",
		"negotiation_id": event.NegotiationID,
		"message":        confirmation,
	})
	if err != nil {
		log.Printf("gateway: join confirmation publish failed: %v", err)
	}
}

func (g *GatewayService) handlePartyMessage(ctx context.Context, conn string, event inboundEvent, role, partyID string) {
	if g.limiter != nil {
		key := fmt.Sprintf("ratelimit:msg:%s", conn)
		if !g.limiter.Allow(ctx, key, g.cfg.MessagesPerMinute, time.Minute) {
			g.sendError(conn, "Too many messages, slow down.")
			return
		}
	}

	msg := &PartyMessage{
		NegotiationID: event.NegotiationID,
		Role:          role,
		PartyID:       partyID,
		Text:          event.Message,
		Budget:        event.Budget,
		MinAcceptable: event.MinAcceptable,
		SenderConn:    conn,
	}

	err := g.mediation.SubmitPartyMessage(ctx, msg)
	switch {
	case err == nil:
	case errors.Is(err, status.ErrNotFound), errors.Is(err, status.ErrRoleMismatch):
		g.sendError(conn, fmt.Sprintf("Negotiation not found or %s mismatch.", role))
	case errors.Is(err, status.ErrInvalidState):
		g.sendError(conn, "Negotiation is closed.")
	default:
		log.Printf("gateway: submit %s message failed: %v", role, err)
		g.sendError(conn, "Message processing failed.")
	}
}

func (g *GatewayService) sendError(conn, message string) {
	err := g.publisher.Publish(ConnChannel(conn), map[string]any{
		"type":    "error",
		"message": message,
	})
	if err != nil {
		log.Printf("gateway: error publish to %s failed: %v", conn, err)
	}
}

// Shutdown unsubscribes the transport, stops the listener loop and
// waits for in-flight workers to drain. Marking the service closed
// before the wait keeps a late enqueue from adding to the WaitGroup
// mid-wait.
func (g *GatewayService) Shutdown() {
	if g.pn != nil {
		g.pn.UnsubscribeAll()
	}
	close(g.stopChan)

	g.mu.Lock()
	g.closed = true
	for conn, queue := range g.workers {
		close(queue)
		delete(g.workers, conn)
	}
	g.mu.Unlock()

	g.wg.Wait()
}
