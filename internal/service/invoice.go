package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/parkhaus/garage-api/internal/clock"
	"github.com/parkhaus/garage-api/internal/model"
	"github.com/parkhaus/garage-api/internal/repository"
)

// invoiceDueDays is how long the customer has to pay.
const invoiceDueDays = 15

// ErrInvoiceNotFound is returned when an invoice does not exist or
// belongs to a different user.
var ErrInvoiceNotFound = errors.New("invoice not found")

// ErrEmailDelivery is returned when the invoice email could not be
// handed to the mail system. The invoice itself is unaffected.
var ErrEmailDelivery = errors.New("invoice email delivery failed")

// Renderer produces the invoice document on disk and returns its path.
type Renderer interface {
	Render(inv model.Invoice, h model.ParkingHistory) (string, error)
}

// Mailer delivers a message. Implementations must only return nil when
// delivery was actually handed off, because a nil result advances the
// invoice to SENT.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// InvoiceService issues invoices for completed parking sessions and
// delivers them by email. Document rendering and email delivery are
// best-effort: their failures never undo the invoice row, which is the
// billing source of truth.
type InvoiceService struct {
	Invoices *repository.InvoiceRepo
	History  *repository.HistoryRepo
	Renderer Renderer
	Mailer   Mailer
	Clock    clock.Clock
}

func NewInvoiceService(i *repository.InvoiceRepo, h *repository.HistoryRepo,
	r Renderer, m Mailer, c clock.Clock) *InvoiceService {
	return &InvoiceService{Invoices: i, History: h, Renderer: r, Mailer: m, Clock: c}
}

// newInvoiceNumber builds a number like INV-20250310-9F2A41BC. The
// random suffix keeps numbers unique within a day without a counter.
func (s *InvoiceService) newInvoiceNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:8]
	return fmt.Sprintf("INV-%s-%s", now.Format("20060102"), suffix)
}

// CreateInvoice issues an invoice for a completed session. The row is
// written first; the document is rendered afterwards and a rendering
// failure only leaves DocumentPath empty for lazy regeneration.
func (s *InvoiceService) CreateInvoice(ctx context.Context, h model.ParkingHistory) (model.Invoice, error) {
	now := s.Clock.Now()
	inv := model.Invoice{
		InvoiceNumber: s.newInvoiceNumber(now),
		IssueDate:     now,
		DueDate:       now.AddDate(0, 0, invoiceDueDays),
		AmountHUF:     h.FeeHUF,
		Status:        model.InvoiceStatusCreated,
		CustomerName:  h.UserName,
		CustomerEmail: h.UserEmail,
		HistoryID:     h.ID,
		UserID:        h.UserID,
		Description: fmt.Sprintf("Parking %s, floor %d spot %s (%s)",
			h.LicensePlate, h.Floor, h.Label, h.DurationFormatted()),
	}

	if path, err := s.Renderer.Render(inv, h); err != nil {
		log.Printf("invoice: render %s failed: %v", inv.InvoiceNumber, err)
	} else {
		inv.DocumentPath = path
	}

	id, err := s.Invoices.Create(ctx, inv)
	if err != nil {
		return model.Invoice{}, err
	}
	inv.ID = id
	inv.CreatedAt = now
	return inv, nil
}

// EnsureDocument returns the path of the invoice document, rendering it
// again when the stored path is empty or the file has gone missing.
func (s *InvoiceService) EnsureDocument(ctx context.Context, inv model.Invoice) (string, error) {
	if inv.DocumentPath != "" {
		if _, err := os.Stat(inv.DocumentPath); err == nil {
			return inv.DocumentPath, nil
		}
	}
	h, err := s.History.GetByIDForUser(ctx, inv.HistoryID, inv.UserID)
	if err != nil {
		return "", err
	}
	path, err := s.Renderer.Render(inv, h)
	if err != nil {
		return "", err
	}
	if err := s.Invoices.UpdateDocumentPath(ctx, inv.ID, path); err != nil {
		log.Printf("invoice: store document path for %s failed: %v", inv.InvoiceNumber, err)
	}
	return path, nil
}

// SendByEmail delivers the invoice to the customer. The invoice only
// advances to SENT after the mailer confirms the handoff; a failed
// delivery leaves the row untouched so a resend can retry.
func (s *InvoiceService) SendByEmail(ctx context.Context, invoiceID uint64) error {
	inv, err := s.Invoices.GetByID(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvoiceNotFound
		}
		return err
	}

	body := s.emailBody(inv)
	if path, err := s.EnsureDocument(ctx, inv); err != nil {
		log.Printf("invoice: document for %s unavailable, sending without it: %v", inv.InvoiceNumber, err)
	} else if doc, err := os.ReadFile(path); err == nil {
		body += "\n\n" + string(doc)
	}

	subject := fmt.Sprintf("Parking invoice %s", inv.InvoiceNumber)
	if err := s.Mailer.Send(ctx, inv.CustomerEmail, subject, body); err != nil {
		log.Printf("invoice: send %s to %s failed: %v", inv.InvoiceNumber, inv.CustomerEmail, err)
		return ErrEmailDelivery
	}
	return s.Invoices.MarkEmailSent(ctx, inv.ID, s.Clock.Now())
}

func (s *InvoiceService) emailBody(inv model.Invoice) string {
	return fmt.Sprintf(
		"Dear %s,\n\nplease find your parking invoice %s below.\n"+
			"Amount due: %d HUF\nDue date: %s\n\n%s",
		inv.CustomerName, inv.InvoiceNumber, inv.AmountHUF,
		inv.DueDate.Format("2006-01-02"), inv.Description)
}
