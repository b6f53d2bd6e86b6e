package model

import "time"

// Invoice status values.  Status only ever advances forward
// (Created → Sent → Paid); the single allowed reversal is to
// Cancelled from any state.
const (
    InvoiceStatusCreated   = "CREATED"
    InvoiceStatusSent      = "SENT"
    InvoiceStatusPaid      = "PAID"
    InvoiceStatusCancelled = "CANCELLED"
)

// Invoice is the billing document derived from exactly one parking
// history record, stored in the `invoices` table.  Customer name
// and email are denormalized at creation.  DocumentPath is empty
// until the document renderer succeeds; rendering is best-effort
// and retried lazily on the next access.
//
// Fields:
//  ID            – primary key identifier.
//  InvoiceNumber – generated human readable number (INV-date-suffix).
//  IssueDate     – when the invoice was issued.
//  DueDate       – payment deadline (issue + 15 days).
//  AmountHUF     – amount in forints, equals the history record fee.
//  Status        – CREATED, SENT, PAID or CANCELLED.
//  CustomerName  – customer display name at creation.
//  CustomerEmail – customer email at creation.
//  HistoryID     – originating parking history record.
//  UserID        – billed user.
//  EmailSent     – whether delivery was confirmed.
//  EmailSentAt   – when delivery was confirmed (nullable).
//  DocumentPath  – path of the rendered document ("" until rendered).
//  Description   – one line summary of the billed session.
//  CreatedAt     – when the row was written.
type Invoice struct {
    ID            uint64     // invoices.id
    InvoiceNumber string     // invoices.invoice_number
    IssueDate     time.Time  // invoices.issue_date
    DueDate       time.Time  // invoices.due_date
    AmountHUF     int64      // invoices.amount_huf
    Status        string     // invoices.status
    CustomerName  string     // invoices.customer_name
    CustomerEmail string     // invoices.customer_email
    HistoryID     uint64     // invoices.history_id
    UserID        uint64     // invoices.user_id
    EmailSent     bool       // invoices.email_sent
    EmailSentAt   *time.Time // invoices.email_sent_at (nullable)
    DocumentPath  string     // invoices.document_path
    Description   string     // invoices.description
    CreatedAt     time.Time  // invoices.created_at
}

// statusRank orders the forward-only invoice lifecycle.  Cancelled
// is reachable from every state and terminal.
var statusRank = map[string]int{
    InvoiceStatusCreated: 0,
    InvoiceStatusSent:    1,
    InvoiceStatusPaid:    2,
}

// ValidInvoiceStatus reports whether s is a known status value.
func ValidInvoiceStatus(s string) bool {
    if s == InvoiceStatusCancelled {
        return true
    }
    _, ok := statusRank[s]
    return ok
}

// CanTransitionInvoiceStatus reports whether an invoice may move
// from one status to another.  Transitions never go backwards and
// nothing leaves Cancelled.
func CanTransitionInvoiceStatus(from, to string) bool {
    if !ValidInvoiceStatus(from) || !ValidInvoiceStatus(to) {
        return false
    }
    if from == InvoiceStatusCancelled {
        return false
    }
    if to == InvoiceStatusCancelled {
        return true
    }
    return statusRank[to] >= statusRank[from]
}
