package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parkhaus/garage-api/internal/clock"
	"github.com/parkhaus/garage-api/internal/model"
	"github.com/parkhaus/garage-api/internal/repository"
	"github.com/parkhaus/garage-api/internal/service"
)

var testNow = time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC)

const (
	vehicleQuery = "SELECT id,user_id,brand,model,year,license_plate,is_parked,created_at,updated_at FROM vehicles WHERE id=? AND user_id=? LIMIT 1"
	spotByVeh    = "SELECT id,floor,label,is_occupied,vehicle_id,start_time,end_time FROM parking_spots WHERE vehicle_id=? AND is_occupied=1 LIMIT 1"
	userQuery    = "SELECT id,first_name,last_name,phone,email,password_hash,role,created_at,updated_at FROM users WHERE id=? LIMIT 1"
	releaseStmt  = "UPDATE parking_spots SET is_occupied=0, vehicle_id=NULL, end_time=? WHERE id=? AND vehicle_id=?"
	unparkStmt   = "UPDATE vehicles SET is_parked=0 WHERE id=?"
)

type brokenRenderer struct{}

func (brokenRenderer) Render(model.Invoice, model.ParkingHistory) (string, error) {
	return "", errors.New("renderer offline")
}

type noopMailer struct{}

func (noopMailer) Send(_ context.Context, _, _, _ string) error { return nil }

func newParkingHandler(t *testing.T) (*ParkingHandler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	vehicles := repository.NewVehicleRepo(db)
	spots := repository.NewSpotRepo(db)
	history := repository.NewHistoryRepo(db)
	users := repository.NewUserRepo(db)
	invoices := repository.NewInvoiceRepo(db)
	clk := clock.Fixed{T: testNow}

	sessions := service.NewSessionManager(db, vehicles, spots, history, users, clk)
	invoiceSvc := service.NewInvoiceService(invoices, history, brokenRenderer{}, noopMailer{}, clk)
	return NewParkingHandler(sessions, invoiceSvc, history), mock
}

func endRequest(t *testing.T, h *ParkingHandler, userID uint64, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/parking/end", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("user_id", userID)
	require.NoError(t, h.End(c))
	return rec
}

func expectEndSession(mock sqlmock.Sqlmock) {
	start := testNow.Add(-90 * time.Minute)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(vehicleQuery)).WithArgs(10, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "brand", "model", "year", "license_plate", "is_parked", "created_at", "updated_at"}).
			AddRow(10, 1, "Skoda", "Octavia", 2019, "ABC-123", true, testNow, testNow))
	mock.ExpectQuery(regexp.QuoteMeta(spotByVeh)).WithArgs(10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "floor", "label", "is_occupied", "vehicle_id", "start_time", "end_time"}).
			AddRow(5, 2, "B03", true, 10, start, nil))
	mock.ExpectExec(regexp.QuoteMeta(releaseStmt)).WithArgs(testNow, 5, 10).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(unparkStmt)).WithArgs(10).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(userQuery)).WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "first_name", "last_name", "phone", "email", "password_hash", "role", "created_at", "updated_at"}).
			AddRow(1, "Anna", "Kovacs", "+36201234567", "anna@example.com", "x", "USER", testNow, testNow))
	mock.ExpectExec("INSERT INTO parking_history").WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectCommit()
}

// The session end already committed, so a failed invoice creation must
// not fail the request: the driver still gets their billed session with
// HTTP 200, plus a note that billing will follow up.
func TestEndInvoiceFailureStillSucceeds(t *testing.T) {
	h, mock := newParkingHandler(t)

	expectEndSession(mock)
	mock.ExpectExec("INSERT INTO invoices").WillReturnError(errors.New("invoices table unavailable"))

	rec := endRequest(t, h, 1, `{"vehicle_id":10}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp, "session")
	assert.Contains(t, resp, "invoice_error")
	assert.NotContains(t, resp, "invoice")

	var session struct {
		FeeHUF int64  `json:"fee_huf"`
		Label  string `json:"label"`
	}
	require.NoError(t, json.Unmarshal(resp["session"], &session))
	assert.Equal(t, int64(900), session.FeeHUF)
	assert.Equal(t, "B03", session.Label)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// A session error keeps its conflict semantics through the handler.
func TestEndNotParkedConflict(t *testing.T) {
	h, mock := newParkingHandler(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(vehicleQuery)).WithArgs(10, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "brand", "model", "year", "license_plate", "is_parked", "created_at", "updated_at"}).
			AddRow(10, 1, "Skoda", "Octavia", 2019, "ABC-123", false, testNow, testNow))
	mock.ExpectRollback()

	rec := endRequest(t, h, 1, `{"vehicle_id":10}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
