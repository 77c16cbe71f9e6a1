package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"swapit/internal/status"
	"swapit/models"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/shopspring/decimal"
)

// PB implements every store interface on top of PocketBase collections.
// Natural keys (ticket_id, negotiation_id) are indexed text fields, not
// the engine's record ids.
type PB struct {
	app core.App
}

func NewPB(app core.App) *PB {
	return &PB{app: app}
}

// -------------------- tickets --------------------

func (s *PB) InsertTicket(ctx context.Context, t *models.Ticket) error {
	collection, err := s.app.FindCollectionByNameOrId("tickets")
	if err != nil {
		return fmt.Errorf("insert ticket: %w", err)
	}

	record := core.NewRecord(collection)
	record.Set("ticket_id", t.TicketID)
	record.Set("seller_id", t.SellerID)
	record.Set("category", t.Category)
	record.Set("details", t.Details)
	record.Set("ask_price", t.AskPrice.InexactFloat64())
	record.Set("status", t.Status)

	if err := s.app.Save(record); err != nil {
		return fmt.Errorf("insert ticket: %w", err)
	}

	t.CreatedAt = record.GetDateTime("created").Time()
	return nil
}

func (s *PB) FindTicket(ctx context.Context, ticketID string) (*models.Ticket, error) {
	record, err := s.app.FindFirstRecordByFilter(
		"tickets",
		"ticket_id = {:id}",
		dbx.Params{"id": ticketID},
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, status.ErrTicketNotFound
		}
		return nil, fmt.Errorf("find ticket: %w", err)
	}

	return ticketFromRecord(record), nil
}

func (s *PB) ListTickets(ctx context.Context, category string) ([]*models.Ticket, error) {
	var records []*core.Record
	var err error

	if category != "" {
		records, err = s.app.FindAllRecords("tickets", dbx.HashExp{"category": category})
	} else {
		records, err = s.app.FindAllRecords("tickets")
	}
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}

	tickets := make([]*models.Ticket, 0, len(records))
	for _, record := range records {
		tickets = append(tickets, ticketFromRecord(record))
	}
	return tickets, nil
}

func (s *PB) SetTicketStatus(ctx context.Context, ticketID, ticketStatus string) error {
	record, err := s.app.FindFirstRecordByFilter(
		"tickets",
		"ticket_id = {:id}",
		dbx.Params{"id": ticketID},
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return status.ErrTicketNotFound
		}
		return fmt.Errorf("set ticket status: %w", err)
	}

	record.Set("status", ticketStatus)
	if err := s.app.Save(record); err != nil {
		return fmt.Errorf("set ticket status: %w", err)
	}
	return nil
}

func ticketFromRecord(record *core.Record) *models.Ticket {
	details := map[string]any{}
	_ = record.UnmarshalJSONField("details", &details)

	return &models.Ticket{
		TicketID:  record.GetString("ticket_id"),
		SellerID:  record.GetString("seller_id"),
		Category:  record.GetString("category"),
		Details:   details,
		AskPrice:  decimal.NewFromFloat(record.GetFloat("ask_price")),
		Status:    record.GetString("status"),
		CreatedAt: record.GetDateTime("created").Time(),
	}
}

// -------------------- negotiations --------------------

func (s *PB) InsertNegotiation(ctx context.Context, n *models.Negotiation) error {
	collection, err := s.app.FindCollectionByNameOrId("negotiations")
	if err != nil {
		return fmt.Errorf("insert negotiation: %w", err)
	}

	record := core.NewRecord(collection)
	record.Set("negotiation_id", n.NegotiationID)
	record.Set("ticket_id", n.TicketID)
	record.Set("seller_id", n.SellerID)
	record.Set("buyer_id", n.BuyerID)
	record.Set("status", n.Status)
	record.Set("last_update", n.LastUpdate)

	if err := s.app.Save(record); err != nil {
		return fmt.Errorf("insert negotiation: %w", err)
	}

	n.CreatedAt = record.GetDateTime("created").Time()
	return nil
}

func (s *PB) FindNegotiation(ctx context.Context, negotiationID string) (*models.Negotiation, error) {
	record, err := s.app.FindFirstRecordByFilter(
		"negotiations",
		"negotiation_id = {:id}",
		dbx.Params{"id": negotiationID},
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, status.ErrNotFound
		}
		return nil, fmt.Errorf("find negotiation: %w", err)
	}

	return negotiationFromRecord(record), nil
}

func negotiationFromRecord(record *core.Record) *models.Negotiation {
	n := &models.Negotiation{
		NegotiationID: record.GetString("negotiation_id"),
		TicketID:      record.GetString("ticket_id"),
		SellerID:      record.GetString("seller_id"),
		BuyerID:       record.GetString("buyer_id"),
		Status:        record.GetString("status"),
		CreatedAt:     record.GetDateTime("created").Time(),
		LastUpdate:    record.GetDateTime("last_update").Time(),
	}

	// An empty column means the negotiation ended without an agreed
	// price; a stored "0" is a real agreement at zero.
	if raw := record.GetString("agreed_price"); raw != "" {
		if d, err := decimal.NewFromString(raw); err == nil {
			n.AgreedPrice = &d
		}
	}
	return n
}

func (s *PB) CloseNegotiation(ctx context.Context, negotiationID string, agreedPrice *decimal.Decimal) error {
	record, err := s.app.FindFirstRecordByFilter(
		"negotiations",
		"negotiation_id = {:id}",
		dbx.Params{"id": negotiationID},
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return status.ErrNotFound
		}
		return fmt.Errorf("close negotiation: %w", err)
	}

	record.Set("status", models.NegotiationClosed)
	if agreedPrice != nil {
		record.Set("agreed_price", agreedPrice.String())
	}
	record.Set("last_update", time.Now().UTC())

	if err := s.app.Save(record); err != nil {
		return fmt.Errorf("close negotiation: %w", err)
	}
	return nil
}

// -------------------- messages --------------------

func (s *PB) Append(ctx context.Context, m *models.Message) error {
	collection, err := s.app.FindCollectionByNameOrId("messages")
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}

	record := core.NewRecord(collection)
	record.Set("negotiation_id", m.NegotiationID)
	record.Set("role", m.Role)
	record.Set("direction", m.Direction)
	record.Set("text", m.Text)
	record.Set("ts", m.Timestamp)

	if err := s.app.Save(record); err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

func (s *PB) History(ctx context.Context, negotiationID string) ([]*models.Message, error) {
	records, err := s.app.FindRecordsByFilter(
		"messages",
		"negotiation_id = {:id}",
		"ts,created",
		0,
		0,
		dbx.Params{"id": negotiationID},
	)
	if err != nil {
		return nil, fmt.Errorf("message history: %w", err)
	}

	messages := make([]*models.Message, 0, len(records))
	for _, record := range records {
		messages = append(messages, &models.Message{
			NegotiationID: record.GetString("negotiation_id"),
			Role:          record.GetString("role"),
			Direction:     record.GetString("direction"),
			Text:          record.GetString("text"),
			Timestamp:     record.GetDateTime("ts").Time(),
		})
	}
	return messages, nil
}

// -------------------- ticket scans --------------------

func (s *PB) InsertScan(ctx context.Context, scan *models.TicketScan) error {
	collection, err := s.app.FindCollectionByNameOrId("ticket_scans")
	if err != nil {
		return fmt.Errorf("insert scan: %w", err)
	}

	record := core.NewRecord(collection)
	record.Set("scan_id", scan.ScanID)
	record.Set("ocr_text", scan.OCRText)
	record.Set("summary", scan.Summary)

	if err := s.app.Save(record); err != nil {
		return fmt.Errorf("insert scan: %w", err)
	}

	scan.CreatedAt = record.GetDateTime("created").Time()
	return nil
}
