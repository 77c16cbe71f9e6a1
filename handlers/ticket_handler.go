package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"swapit/internal/llm"
	"swapit/internal/ocr"
	"swapit/models"
	"swapit/services"
	"swapit/store"
	"swapit/utils"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/shopspring/decimal"
)

type TicketHandler struct {
	registry  *services.RegistryService
	scans     store.ScanStore
	extractor ocr.Extractor
	generator llm.Generator
}

func NewTicketHandler(registry *services.RegistryService, scans store.ScanStore, extractor ocr.Extractor, generator llm.Generator) *TicketHandler {
	return &TicketHandler{
		registry:  registry,
		scans:     scans,
		extractor: extractor,
		generator: generator,
	}
}

type uploadTicketRequest struct {
	SellerID string          `json:"sellerId"`
	Category string          `json:"category"`
	Details  map[string]any  `json:"details"`
	AskPrice decimal.Decimal `json:"askPrice"`
}

// UploadTicket registers a new ticket listing.
func (h *TicketHandler) UploadTicket(e *core.RequestEvent) error {
	var req uploadTicketRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request body", err)
	}
	if req.SellerID == "" {
		return apis.NewBadRequestError("sellerId is required", nil)
	}
	if req.Details == nil {
		req.Details = map[string]any{}
	}

	ticket, err := h.registry.CreateTicket(e.Request.Context(), req.SellerID, req.Category, req.Details, req.AskPrice)
	if err != nil {
		log.Printf("upload ticket: %v", err)
		return apis.NewBadRequestError("Failed to save ticket", err)
	}

	return e.JSON(http.StatusCreated, map[string]any{
		"message": "Ticket saved",
		"ticket":  ticket,
	})
}

// ListTickets returns the listing pool, optionally filtered by category.
func (h *TicketHandler) ListTickets(e *core.RequestEvent) error {
	category := e.Request.URL.Query().Get("category")

	tickets, err := h.registry.ListTickets(e.Request.Context(), category)
	if err != nil {
		log.Printf("list tickets: %v", err)
		return apis.NewBadRequestError("Failed to list tickets", err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"tickets": tickets,
	})
}

// ProcessTicket accepts an uploaded ticket image, runs OCR over it and
// asks the generator for a structured summary of the fields sellers
// would otherwise type in by hand.
func (h *TicketHandler) ProcessTicket(e *core.RequestEvent) error {
	file, header, err := e.Request.FormFile("file")
	if err != nil {
		return apis.NewBadRequestError("file is required", err)
	}
	defer file.Close()

	tmp, err := os.CreateTemp("", "ticket-*"+safeExt(header.Filename))
	if err != nil {
		return apis.NewBadRequestError("Failed to store upload", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		return apis.NewBadRequestError("Failed to store upload", err)
	}
	tmp.Close()

	ctx := e.Request.Context()

	text, err := h.extractor.ExtractText(ctx, tmp.Name())
	if err != nil {
		log.Printf("process ticket: ocr: %v", err)
		return apis.NewBadRequestError("Failed to read ticket image", err)
	}

	summary, err := h.generator.Generate(ctx, extractionPrompt(text))
	if err != nil {
		log.Printf("process ticket: generator: %v", err)
		summary = ""
	}

	scanID, err := utils.GenerateCode(8)
	if err != nil {
		return apis.NewBadRequestError("Failed to process ticket", err)
	}

	scan := &models.TicketScan{
		ScanID:    scanID,
		OCRText:   text,
		Summary:   summary,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.scans.InsertScan(ctx, scan); err != nil {
		log.Printf("process ticket: save scan: %v", err)
		return apis.NewBadRequestError("Failed to save scan", err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"scan_id":  scan.ScanID,
		"ocr_text": scan.OCRText,
		"summary":  scan.Summary,
	})
}

// GenerateQuestions produces the seller intake questionnaire for a
// ticket category. A generator failure degrades to a single stub
// question instead of an error; the frontend treats it as "try again".
func (h *TicketHandler) GenerateQuestions(e *core.RequestEvent) error {
	category := e.Request.URL.Query().Get("category")
	if category == "" {
		category = "travel"
	}

	out, err := h.generator.Generate(e.Request.Context(), questionsPrompt(category))
	if err != nil {
		log.Printf("generate questions: %v", err)
		return e.JSON(http.StatusOK, map[string]any{
			"questions": []map[string]any{{"id": 0, "question": "Failed to generate questions"}},
		})
	}

	// Models wrap JSON in prose; keep only the outermost array.
	start := strings.Index(out, "[")
	end := strings.LastIndex(out, "]")
	var questions []map[string]any
	if start == -1 || end < start || json.Unmarshal([]byte(out[start:end+1]), &questions) != nil {
		return e.JSON(http.StatusOK, map[string]any{
			"questions": []map[string]any{{"id": 0, "question": "Failed to generate questions"}},
		})
	}

	return e.JSON(http.StatusOK, map[string]any{
		"questions": questions,
	})
}

func extractionPrompt(ocrText string) string {
	return fmt.Sprintf(`Extract the following fields from this ticket text and return ONLY a JSON object:
ticketId, pnr, from, to, date, arrivalDate, time, arrivalTime, seat, busType, price, passengerName, age, travelCompany.
Use null for any field that is not present.

Ticket text:
%s
`, ocrText)
}

func questionsPrompt(category string) string {
	return fmt.Sprintf(`Generate 10 short questions a seller should answer when listing a %s ticket for resale.
Return ONLY a JSON array of objects with fields "id" (number) and "question" (string).
`, category)
}

func safeExt(filename string) string {
	idx := strings.LastIndex(filename, ".")
	if idx == -1 {
		return ""
	}
	ext := filename[idx:]
	if len(ext) > 8 || strings.ContainsAny(ext, "/\\") {
		return ""
	}
	return ext
}
