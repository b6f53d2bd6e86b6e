// Package queue defines message payloads exchanged over the message broker.
package queue

// InvoiceCreatedEvent is published when an invoice has been issued for
// a completed parking session. It carries enough information for
// downstream consumers to log or notify without querying the primary
// database; email delivery only needs the invoice ID.
type InvoiceCreatedEvent struct {
	InvoiceID     uint64 `json:"invoice_id"`
	InvoiceNumber string `json:"invoice_number"`
	UserID        uint64 `json:"user_id"`
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	AmountHUF     int64  `json:"amount_huf"`
	IssueDate     string `json:"issue_date"`
	DueDate       string `json:"due_date"`
	Description   string `json:"description"`
}
