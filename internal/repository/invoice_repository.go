package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/parkhaus/garage-api/internal/model"
)

// InvoiceRepo provides access to the 'invoices' table. Status changes
// go through conditional UPDATEs that re-check the current status in
// the WHERE clause, so the lifecycle can only move forward even when
// two writers race.
type InvoiceRepo struct{ DB *sql.DB }

func NewInvoiceRepo(db *sql.DB) *InvoiceRepo { return &InvoiceRepo{DB: db} }

const invoiceColumns = "id,invoice_number,issue_date,due_date,amount_huf,status," +
	"customer_name,customer_email,history_id,user_id," +
	"email_sent,email_sent_at,document_path,description,created_at"

func scanInvoice(s interface{ Scan(...any) error }) (model.Invoice, error) {
	var inv model.Invoice
	err := s.Scan(&inv.ID, &inv.InvoiceNumber, &inv.IssueDate, &inv.DueDate,
		&inv.AmountHUF, &inv.Status, &inv.CustomerName, &inv.CustomerEmail,
		&inv.HistoryID, &inv.UserID, &inv.EmailSent, &inv.EmailSentAt,
		&inv.DocumentPath, &inv.Description, &inv.CreatedAt)
	return inv, err
}

// Create inserts an invoice and returns its ID.
func (r *InvoiceRepo) Create(ctx context.Context, inv model.Invoice) (uint64, error) {
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO invoices
		 (invoice_number, issue_date, due_date, amount_huf, status,
		  customer_name, customer_email, history_id, user_id,
		  document_path, description)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		inv.InvoiceNumber, inv.IssueDate, inv.DueDate, inv.AmountHUF, inv.Status,
		inv.CustomerName, inv.CustomerEmail, inv.HistoryID, inv.UserID,
		inv.DocumentPath, inv.Description)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByID fetches an invoice regardless of owner. Admin use only.
func (r *InvoiceRepo) GetByID(ctx context.Context, id uint64) (model.Invoice, error) {
	inv, err := scanInvoice(r.DB.QueryRowContext(ctx,
		"SELECT "+invoiceColumns+" FROM invoices WHERE id=? LIMIT 1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Invoice{}, ErrNotFound
	}
	return inv, err
}

// GetByIDForUser fetches an invoice only when it belongs to the user.
func (r *InvoiceRepo) GetByIDForUser(ctx context.Context, id, userID uint64) (model.Invoice, error) {
	inv, err := scanInvoice(r.DB.QueryRowContext(ctx,
		"SELECT "+invoiceColumns+" FROM invoices WHERE id=? AND user_id=? LIMIT 1", id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Invoice{}, ErrNotFound
	}
	return inv, err
}

// ListByUser returns the user's invoices, newest issue first.
func (r *InvoiceRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Invoice, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+invoiceColumns+" FROM invoices WHERE user_id=? ORDER BY issue_date DESC, id DESC", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

// UpdateStatus moves an invoice from one status to another. The
// transition is validated in memory first and then enforced in the
// WHERE clause, so a concurrent writer that already advanced the
// invoice causes ErrConflict rather than a silent rewind.
func (r *InvoiceRepo) UpdateStatus(ctx context.Context, id uint64, from, to string) error {
	if !model.CanTransitionInvoiceStatus(from, to) {
		return ErrConflict
	}
	res, err := r.DB.ExecContext(ctx,
		"UPDATE invoices SET status=? WHERE id=? AND status=?", to, id, from)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

// MarkEmailSent records a confirmed delivery and advances the invoice
// to SENT if it is still in CREATED. Both happen in one statement so
// the delivery stamp and the status can never diverge. The email
// columns are set even if the status was already past SENT, so a
// resend still leaves a trace.
func (r *InvoiceRepo) MarkEmailSent(ctx context.Context, id uint64, at time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE invoices SET email_sent=1, email_sent_at=?, status=CASE WHEN status=? THEN ? ELSE status END WHERE id=?",
		at, model.InvoiceStatusCreated, model.InvoiceStatusSent, id)
	return err
}

// UpdateDocumentPath stores the path of a freshly rendered document.
func (r *InvoiceRepo) UpdateDocumentPath(ctx context.Context, id uint64, path string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE invoices SET document_path=? WHERE id=?", path, id)
	return err
}
