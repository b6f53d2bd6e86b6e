package service

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parkhaus/garage-api/internal/clock"
	"github.com/parkhaus/garage-api/internal/model"
	"github.com/parkhaus/garage-api/internal/repository"
)

type fakeRenderer struct {
	path  string
	err   error
	calls int
}

func (f *fakeRenderer) Render(model.Invoice, model.ParkingHistory) (string, error) {
	f.calls++
	return f.path, f.err
}

type fakeMailer struct {
	err   error
	to    string
	calls int
}

func (f *fakeMailer) Send(_ context.Context, to, _, _ string) error {
	f.calls++
	f.to = to
	return f.err
}

func newInvoiceService(t *testing.T, r Renderer, m Mailer) (*InvoiceService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewInvoiceService(
		repository.NewInvoiceRepo(db),
		repository.NewHistoryRepo(db),
		r, m, clock.Fixed{T: testNow},
	), mock
}

func sampleHistory() model.ParkingHistory {
	return model.ParkingHistory{
		ID:           7,
		StartTime:    testNow.Add(-95 * time.Minute),
		EndTime:      testNow,
		Floor:        2,
		Label:        "B03",
		FeeHUF:       950,
		VehicleID:    10,
		VehicleBrand: "Skoda",
		VehicleModel: "Octavia",
		LicensePlate: "ABC-123",
		UserID:       1,
		UserName:     "Anna Kovacs",
		UserEmail:    "anna@example.com",
	}
}

func TestCreateInvoice(t *testing.T) {
	renderer := &fakeRenderer{path: "/tmp/inv.txt"}
	svc, mock := newInvoiceService(t, renderer, &fakeMailer{})

	mock.ExpectExec("INSERT INTO invoices").WillReturnResult(sqlmock.NewResult(42, 1))

	inv, err := svc.CreateInvoice(context.Background(), sampleHistory())
	require.NoError(t, err)

	assert.Equal(t, uint64(42), inv.ID)
	assert.Regexp(t, `^INV-20250310-[0-9A-F]{8}$`, inv.InvoiceNumber)
	assert.Equal(t, model.InvoiceStatusCreated, inv.Status)
	assert.Equal(t, int64(950), inv.AmountHUF)
	assert.Equal(t, testNow.AddDate(0, 0, 15), inv.DueDate)
	assert.Equal(t, "anna@example.com", inv.CustomerEmail)
	assert.Equal(t, "/tmp/inv.txt", inv.DocumentPath)
	assert.Equal(t, 1, renderer.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Rendering is best-effort: a failure leaves DocumentPath empty for
// lazy regeneration but the invoice row is still written.
func TestCreateInvoiceRenderFailure(t *testing.T) {
	renderer := &fakeRenderer{err: errors.New("disk full")}
	svc, mock := newInvoiceService(t, renderer, &fakeMailer{})

	mock.ExpectExec("INSERT INTO invoices").WillReturnResult(sqlmock.NewResult(43, 1))

	inv, err := svc.CreateInvoice(context.Background(), sampleHistory())
	require.NoError(t, err)
	assert.Empty(t, inv.DocumentPath)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func invoiceRowsWithDoc(id uint64, status, docPath string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "invoice_number", "issue_date", "due_date", "amount_huf", "status",
		"customer_name", "customer_email", "history_id", "user_id",
		"email_sent", "email_sent_at", "document_path", "description", "created_at"}).
		AddRow(id, "INV-20250310-AABBCCDD", testNow, testNow.AddDate(0, 0, 15), 950, status,
			"Anna Kovacs", "anna@example.com", 7, 1,
			false, nil, docPath, "Parking ABC-123", testNow)
}

func TestSendByEmail(t *testing.T) {
	doc := filepath.Join(t.TempDir(), "inv.txt")
	require.NoError(t, os.WriteFile(doc, []byte("AMOUNT DUE: 950 HUF"), 0o644))

	mailer := &fakeMailer{}
	svc, mock := newInvoiceService(t, &fakeRenderer{}, mailer)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT")).WithArgs(42).WillReturnRows(invoiceRowsWithDoc(42, model.InvoiceStatusCreated, doc))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE invoices SET email_sent=1, email_sent_at=?, status=CASE WHEN status=? THEN ? ELSE status END WHERE id=?")).
		WithArgs(testNow, model.InvoiceStatusCreated, model.InvoiceStatusSent, 42).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := svc.SendByEmail(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, 1, mailer.calls)
	assert.Equal(t, "anna@example.com", mailer.to)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// A failed delivery leaves the invoice untouched so the admin resend
// can retry later. No UPDATE must run.
func TestSendByEmailDeliveryFailure(t *testing.T) {
	doc := filepath.Join(t.TempDir(), "inv.txt")
	require.NoError(t, os.WriteFile(doc, []byte("AMOUNT DUE: 950 HUF"), 0o644))

	mailer := &fakeMailer{err: errors.New("connection refused")}
	svc, mock := newInvoiceService(t, &fakeRenderer{}, mailer)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT")).WithArgs(42).WillReturnRows(invoiceRowsWithDoc(42, model.InvoiceStatusCreated, doc))

	err := svc.SendByEmail(context.Background(), 42)
	assert.ErrorIs(t, err, ErrEmailDelivery)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSendByEmailUnknownInvoice(t *testing.T) {
	svc, mock := newInvoiceService(t, &fakeRenderer{}, &fakeMailer{})

	mock.ExpectQuery(regexp.QuoteMeta("SELECT")).WithArgs(99).WillReturnError(sql.ErrNoRows)

	err := svc.SendByEmail(context.Background(), 99)
	assert.ErrorIs(t, err, ErrInvoiceNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Distinct invoice numbers even when issued at the same instant.
func TestInvoiceNumbersUnique(t *testing.T) {
	svc, _ := newInvoiceService(t, &fakeRenderer{}, &fakeMailer{})
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		n := svc.newInvoiceNumber(testNow)
		assert.False(t, seen[n], "duplicate invoice number %s", n)
		seen[n] = true
	}
}
