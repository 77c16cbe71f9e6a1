package models

import (
	"time"
)

// Message is a single immutable transcript entry. Mediator messages
// carry a Direction tag; party messages leave it empty.
type Message struct {
	NegotiationID string    `json:"negotiationId"`
	Role          string    `json:"role"` // buyer, seller, mediator
	Direction     string    `json:"direction,omitempty"`
	Text          string    `json:"text"`
	Timestamp     time.Time `json:"ts"`
}

const (
	DirectionToBuyer  = "to-buyer"
	DirectionToSeller = "to-seller"
)
