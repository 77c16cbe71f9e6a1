package handlers

import (
	"errors"
	"log"
	"net/http"

	"swapit/internal/status"
	"swapit/services"
	"swapit/store"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/shopspring/decimal"
)

type NegotiationHandler struct {
	registry   *services.RegistryService
	transcript store.TranscriptStore
}

func NewNegotiationHandler(registry *services.RegistryService, transcript store.TranscriptStore) *NegotiationHandler {
	return &NegotiationHandler{
		registry:   registry,
		transcript: transcript,
	}
}

type startNegotiationRequest struct {
	TicketID string `json:"ticketId"`
	BuyerID  string `json:"buyerId"`
}

// StartNegotiation opens a negotiation over an available ticket.
func (h *NegotiationHandler) StartNegotiation(e *core.RequestEvent) error {
	var req startNegotiationRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request body", err)
	}
	if req.TicketID == "" || req.BuyerID == "" {
		return apis.NewBadRequestError("ticketId and buyerId are required", nil)
	}

	nego, err := h.registry.StartNegotiation(e.Request.Context(), req.TicketID, req.BuyerID)
	if err != nil {
		switch {
		case errors.Is(err, status.ErrTicketNotFound):
			return apis.NewNotFoundError("Ticket not found", err)
		case errors.Is(err, status.ErrTicketUnavailable):
			return apis.NewBadRequestError("Ticket is not available", err)
		default:
			log.Printf("start negotiation: %v", err)
			return apis.NewBadRequestError("Failed to start negotiation", err)
		}
	}

	return e.JSON(http.StatusCreated, map[string]any{
		"negotiation": nego,
	})
}

type closeNegotiationRequest struct {
	AgreedPrice *decimal.Decimal `json:"agreedPrice"`
}

// CloseNegotiation ends an open negotiation. An agreed price marks the
// ticket sold; closing without one returns it to the listing pool.
func (h *NegotiationHandler) CloseNegotiation(e *core.RequestEvent) error {
	negotiationID := e.Request.PathValue("id")
	if negotiationID == "" {
		return apis.NewBadRequestError("negotiation id is required", nil)
	}

	var req closeNegotiationRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request body", err)
	}

	nego, err := h.registry.CloseNegotiation(e.Request.Context(), negotiationID, req.AgreedPrice)
	if err != nil {
		switch {
		case errors.Is(err, status.ErrNotFound):
			return apis.NewNotFoundError("Negotiation not found", err)
		case errors.Is(err, status.ErrInvalidState):
			return apis.NewBadRequestError("Negotiation is not open", err)
		default:
			log.Printf("close negotiation: %v", err)
			return apis.NewBadRequestError("Failed to close negotiation", err)
		}
	}

	return e.JSON(http.StatusOK, map[string]any{
		"negotiation": nego,
	})
}

// GetTranscript returns the full ordered message log of a negotiation.
func (h *NegotiationHandler) GetTranscript(e *core.RequestEvent) error {
	negotiationID := e.Request.PathValue("id")
	if negotiationID == "" {
		return apis.NewBadRequestError("negotiation id is required", nil)
	}

	messages, err := h.transcript.History(e.Request.Context(), negotiationID)
	if err != nil {
		log.Printf("get transcript: %v", err)
		return apis.NewBadRequestError("Failed to load transcript", err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"negotiation_id": negotiationID,
		"messages":       messages,
	})
}
