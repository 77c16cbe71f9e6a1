package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Ticket struct {
	TicketID  string          `json:"ticketId"`
	SellerID  string          `json:"sellerId"`
	Category  string          `json:"category"`
	Details   map[string]any  `json:"details"`
	AskPrice  decimal.Decimal `json:"askPrice"`
	Status    string          `json:"status"` // available, negotiating, sold
	CreatedAt time.Time       `json:"createdAt"`
}

const (
	TicketAvailable   = "available"
	TicketNegotiating = "negotiating"
	TicketSold        = "sold"
)

// TicketScan is the stored result of an uploaded ticket image: the raw
// OCR text plus the structured summary extracted by the generator.
type TicketScan struct {
	ScanID    string    `json:"scanId"`
	OCRText   string    `json:"ocrText"`
	Summary   string    `json:"summary"`
	CreatedAt time.Time `json:"createdAt"`
}
