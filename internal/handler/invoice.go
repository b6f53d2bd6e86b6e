package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/parkhaus/garage-api/internal/model"
	"github.com/parkhaus/garage-api/internal/repository"
	"github.com/parkhaus/garage-api/internal/service"
)

// InvoiceHandler serves the billing endpoints. Customers see only
// their own invoices; resending emails and moving the payment status
// are admin operations.
type InvoiceHandler struct {
	Invoices *repository.InvoiceRepo
	Svc      *service.InvoiceService
}

func NewInvoiceHandler(i *repository.InvoiceRepo, s *service.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{Invoices: i, Svc: s}
}

type invoiceResp struct {
	ID            uint64     `json:"id"`
	InvoiceNumber string     `json:"invoice_number"`
	IssueDate     time.Time  `json:"issue_date"`
	DueDate       time.Time  `json:"due_date"`
	AmountHUF     int64      `json:"amount_huf"`
	Status        string     `json:"status"`
	CustomerName  string     `json:"customer_name"`
	CustomerEmail string     `json:"customer_email"`
	EmailSent     bool       `json:"email_sent"`
	EmailSentAt   *time.Time `json:"email_sent_at,omitempty"`
	Description   string     `json:"description"`
}

func toInvoiceResp(inv model.Invoice) invoiceResp {
	return invoiceResp{
		ID:            inv.ID,
		InvoiceNumber: inv.InvoiceNumber,
		IssueDate:     inv.IssueDate,
		DueDate:       inv.DueDate,
		AmountHUF:     inv.AmountHUF,
		Status:        inv.Status,
		CustomerName:  inv.CustomerName,
		CustomerEmail: inv.CustomerEmail,
		EmailSent:     inv.EmailSent,
		EmailSentAt:   inv.EmailSentAt,
		Description:   inv.Description,
	}
}

// List returns the caller's invoices, newest first.
func (h *InvoiceHandler) List(c echo.Context) error {
	uid := currentUserID(c)
	if uid == 0 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	invoices, err := h.Invoices.ListByUser(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]invoiceResp, 0, len(invoices))
	for _, inv := range invoices {
		out = append(out, toInvoiceResp(inv))
	}
	return c.JSON(http.StatusOK, echo.Map{"invoices": out})
}

// Get returns one of the caller's invoices.
func (h *InvoiceHandler) Get(c echo.Context) error {
	uid := currentUserID(c)
	if uid == 0 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id := pathID(c, "id")
	if id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid invoice id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	inv, err := h.Invoices.GetByIDForUser(ctx, id, uid)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "invoice not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, toInvoiceResp(inv))
}

// Download streams the invoice document, rendering it again if the
// file went missing since issue.
func (h *InvoiceHandler) Download(c echo.Context) error {
	uid := currentUserID(c)
	if uid == 0 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id := pathID(c, "id")
	if id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid invoice id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	inv, err := h.Invoices.GetByIDForUser(ctx, id, uid)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "invoice not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	path, err := h.Svc.EnsureDocument(ctx, inv)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "document unavailable"})
	}
	return c.Attachment(path, inv.InvoiceNumber+".txt")
}

// Resend delivers the invoice email again. Admin only; the customer
// asking for a resend goes through support.
func (h *InvoiceHandler) Resend(c echo.Context) error {
	id := pathID(c, "id")
	if id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid invoice id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 30*time.Second)
	defer cancel()

	if err := h.Svc.SendByEmail(ctx, id); err != nil {
		if errors.Is(err, service.ErrInvoiceNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "invoice not found"})
		}
		if errors.Is(err, service.ErrEmailDelivery) {
			return c.JSON(http.StatusBadGateway, echo.Map{"error": "email delivery failed"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "resend failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "sent"})
}

type statusReq struct {
	Status string `json:"status"`
}

// UpdateStatus moves an invoice through its lifecycle. Admin only.
// Rewinds are rejected with 409; Cancelled is reachable from any
// state and terminal.
func (h *InvoiceHandler) UpdateStatus(c echo.Context) error {
	id := pathID(c, "id")
	if id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid invoice id"})
	}
	var req statusReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	to := strings.ToUpper(strings.TrimSpace(req.Status))
	if !model.ValidInvoiceStatus(to) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown status"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	inv, err := h.Invoices.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "invoice not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	if err := h.Invoices.UpdateStatus(ctx, id, inv.Status, to); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "status transition not allowed"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update status failed"})
	}
	inv.Status = to
	return c.JSON(http.StatusOK, toInvoiceResp(inv))
}
