package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Negotiation struct {
	NegotiationID string           `json:"negotiationId"`
	TicketID      string           `json:"ticketId"`
	SellerID      string           `json:"sellerId"`
	BuyerID       string           `json:"buyerId"`
	Status        string           `json:"status"` // open, closed
	AgreedPrice   *decimal.Decimal `json:"agreedPrice"`
	CreatedAt     time.Time        `json:"createdAt"`
	LastUpdate    time.Time        `json:"lastUpdate"`
}

const (
	NegotiationOpen   = "open"
	NegotiationClosed = "closed"
)

const (
	RoleBuyer    = "buyer"
	RoleSeller   = "seller"
	RoleMediator = "mediator"
)

// CounterpartRole returns the opposite party of a buyer/seller role.
func CounterpartRole(role string) string {
	if role == RoleBuyer {
		return RoleSeller
	}
	return RoleBuyer
}

// PartyID returns the negotiation's recorded identity for role.
func (n *Negotiation) PartyID(role string) string {
	switch role {
	case RoleSeller:
		return n.SellerID
	case RoleBuyer:
		return n.BuyerID
	}
	return ""
}
