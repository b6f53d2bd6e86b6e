package service

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parkhaus/garage-api/internal/clock"
	"github.com/parkhaus/garage-api/internal/repository"
)

var testNow = time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC)

const (
	vehicleQuery = "SELECT id,user_id,brand,model,year,license_plate,is_parked,created_at,updated_at FROM vehicles WHERE id=? AND user_id=? LIMIT 1"
	spotQuery    = "SELECT id,floor,label,is_occupied,vehicle_id,start_time,end_time FROM parking_spots WHERE id=? LIMIT 1"
	spotByVeh    = "SELECT id,floor,label,is_occupied,vehicle_id,start_time,end_time FROM parking_spots WHERE vehicle_id=? AND is_occupied=1 LIMIT 1"
	userQuery    = "SELECT id,first_name,last_name,phone,email,password_hash,role,created_at,updated_at FROM users WHERE id=? LIMIT 1"
	reserveStmt  = "UPDATE parking_spots SET is_occupied=1, vehicle_id=?, start_time=?, end_time=NULL WHERE id=? AND is_occupied=0"
	releaseStmt  = "UPDATE parking_spots SET is_occupied=0, vehicle_id=NULL, end_time=? WHERE id=? AND vehicle_id=?"
	parkStmt     = "UPDATE vehicles SET is_parked=1 WHERE id=? AND is_parked=0"
	unparkStmt   = "UPDATE vehicles SET is_parked=0 WHERE id=?"
)

func newSessionManager(t *testing.T) (*SessionManager, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewSessionManager(db,
		repository.NewVehicleRepo(db),
		repository.NewSpotRepo(db),
		repository.NewHistoryRepo(db),
		repository.NewUserRepo(db),
		clock.Fixed{T: testNow},
	), mock
}

func vehicleRows(id, userID uint64, parked bool) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "user_id", "brand", "model", "year", "license_plate", "is_parked", "created_at", "updated_at"}).
		AddRow(id, userID, "Skoda", "Octavia", 2019, "ABC-123", parked, testNow, testNow)
}

func freeSpotRows(id uint64) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "floor", "label", "is_occupied", "vehicle_id", "start_time", "end_time"}).
		AddRow(id, 2, "B03", false, nil, nil, nil)
}

func occupiedSpotRows(id, vehicleID uint64, start interface{}) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "floor", "label", "is_occupied", "vehicle_id", "start_time", "end_time"}).
		AddRow(id, 2, "B03", true, vehicleID, start, nil)
}

func userRows(id uint64) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "first_name", "last_name", "phone", "email", "password_hash", "role", "created_at", "updated_at"}).
		AddRow(id, "Anna", "Kovacs", "+36201234567", "anna@example.com", "x", "USER", testNow, testNow)
}

func TestStartSession(t *testing.T) {
	m, mock := newSessionManager(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(vehicleQuery)).WithArgs(10, 1).WillReturnRows(vehicleRows(10, 1, false))
	mock.ExpectQuery(regexp.QuoteMeta(spotQuery)).WithArgs(5).WillReturnRows(freeSpotRows(5))
	mock.ExpectExec(regexp.QuoteMeta(reserveStmt)).WithArgs(10, testNow, 5).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(parkStmt)).WithArgs(10).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	sp, err := m.StartSession(context.Background(), 1, 10, 5)
	require.NoError(t, err)
	assert.True(t, sp.IsOccupied)
	require.NotNil(t, sp.VehicleID)
	assert.Equal(t, uint64(10), *sp.VehicleID)
	require.NotNil(t, sp.StartTime)
	assert.Equal(t, testNow, *sp.StartTime)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStartSessionVehicleNotFound(t *testing.T) {
	m, mock := newSessionManager(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(vehicleQuery)).WithArgs(10, 1).WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := m.StartSession(context.Background(), 1, 10, 5)
	assert.ErrorIs(t, err, ErrVehicleNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStartSessionVehicleAlreadyParked(t *testing.T) {
	m, mock := newSessionManager(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(vehicleQuery)).WithArgs(10, 1).WillReturnRows(vehicleRows(10, 1, true))
	mock.ExpectRollback()

	_, err := m.StartSession(context.Background(), 1, 10, 5)
	assert.ErrorIs(t, err, ErrVehicleAlreadyParked)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStartSessionSpotNotFound(t *testing.T) {
	m, mock := newSessionManager(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(vehicleQuery)).WithArgs(10, 1).WillReturnRows(vehicleRows(10, 1, false))
	mock.ExpectQuery(regexp.QuoteMeta(spotQuery)).WithArgs(99).WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := m.StartSession(context.Background(), 1, 10, 99)
	assert.ErrorIs(t, err, ErrSpotNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStartSessionSpotOccupied(t *testing.T) {
	m, mock := newSessionManager(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(vehicleQuery)).WithArgs(10, 1).WillReturnRows(vehicleRows(10, 1, false))
	mock.ExpectQuery(regexp.QuoteMeta(spotQuery)).WithArgs(5).WillReturnRows(occupiedSpotRows(5, 77, testNow))
	mock.ExpectRollback()

	_, err := m.StartSession(context.Background(), 1, 10, 5)
	assert.ErrorIs(t, err, ErrSpotOccupied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// The spot reads as free but another session claims it before the
// conditional UPDATE runs. RowsAffected 0 must surface as a conflict.
func TestStartSessionLosesRace(t *testing.T) {
	m, mock := newSessionManager(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(vehicleQuery)).WithArgs(10, 1).WillReturnRows(vehicleRows(10, 1, false))
	mock.ExpectQuery(regexp.QuoteMeta(spotQuery)).WithArgs(5).WillReturnRows(freeSpotRows(5))
	mock.ExpectExec(regexp.QuoteMeta(reserveStmt)).WithArgs(10, testNow, 5).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := m.StartSession(context.Background(), 1, 10, 5)
	assert.ErrorIs(t, err, ErrSpotOccupied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Several drivers hammer the same free spot at once. Exactly one
// conditional reserve reports a changed row, so exactly one start
// succeeds and the rest conflict.
func TestStartSessionConcurrentSameSpot(t *testing.T) {
	m, mock := newSessionManager(t)
	mock.MatchExpectationsInOrder(false)

	vehicleIDs := []uint64{101, 102, 103, 104}
	winner := vehicleIDs[0]

	for _, vid := range vehicleIDs {
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(vehicleQuery)).WithArgs(vid, 1).WillReturnRows(vehicleRows(vid, 1, false))
		mock.ExpectQuery(regexp.QuoteMeta(spotQuery)).WithArgs(5).WillReturnRows(freeSpotRows(5))
		if vid == winner {
			mock.ExpectExec(regexp.QuoteMeta(reserveStmt)).WithArgs(vid, testNow, 5).WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectExec(regexp.QuoteMeta(parkStmt)).WithArgs(vid).WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectCommit()
		} else {
			mock.ExpectExec(regexp.QuoteMeta(reserveStmt)).WithArgs(vid, testNow, 5).WillReturnResult(sqlmock.NewResult(0, 0))
			mock.ExpectRollback()
		}
	}

	var wg sync.WaitGroup
	errs := make([]error, len(vehicleIDs))
	for i, vid := range vehicleIDs {
		wg.Add(1)
		go func(i int, vid uint64) {
			defer wg.Done()
			_, errs[i] = m.StartSession(context.Background(), 1, vid, 5)
		}(i, vid)
	}
	wg.Wait()

	wins, conflicts := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrSpotOccupied):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, len(vehicleIDs)-1, conflicts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEndSession(t *testing.T) {
	m, mock := newSessionManager(t)
	start := testNow.Add(-90 * time.Minute)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(vehicleQuery)).WithArgs(10, 1).WillReturnRows(vehicleRows(10, 1, true))
	mock.ExpectQuery(regexp.QuoteMeta(spotByVeh)).WithArgs(10).WillReturnRows(occupiedSpotRows(5, 10, start))
	mock.ExpectExec(regexp.QuoteMeta(releaseStmt)).WithArgs(testNow, 5, 10).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(unparkStmt)).WithArgs(10).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(userQuery)).WithArgs(1).WillReturnRows(userRows(1))
	mock.ExpectExec("INSERT INTO parking_history").
		WithArgs(start, testNow, uint32(2), "B03", int64(900),
			uint64(10), "Skoda", "Octavia", "ABC-123",
			uint64(1), "Anna Kovacs", "anna@example.com").
		WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectCommit()

	rec, err := m.EndSession(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), rec.ID)
	assert.Equal(t, int64(900), rec.FeeHUF) // 90 minutes at 10 HUF/min
	assert.Equal(t, "B03", rec.Label)
	assert.Equal(t, "Anna Kovacs", rec.UserName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// A lost start stamp must not block the exit; the session is billed as
// one hour ending now.
func TestEndSessionMissingStartBillsOneHour(t *testing.T) {
	m, mock := newSessionManager(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(vehicleQuery)).WithArgs(10, 1).WillReturnRows(vehicleRows(10, 1, true))
	mock.ExpectQuery(regexp.QuoteMeta(spotByVeh)).WithArgs(10).WillReturnRows(occupiedSpotRows(5, 10, nil))
	mock.ExpectExec(regexp.QuoteMeta(releaseStmt)).WithArgs(testNow, 5, 10).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(unparkStmt)).WithArgs(10).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(userQuery)).WithArgs(1).WillReturnRows(userRows(1))
	mock.ExpectExec("INSERT INTO parking_history").
		WithArgs(testNow.Add(-time.Hour), testNow, uint32(2), "B03", int64(600),
			uint64(10), "Skoda", "Octavia", "ABC-123",
			uint64(1), "Anna Kovacs", "anna@example.com").
		WillReturnResult(sqlmock.NewResult(8, 1))
	mock.ExpectCommit()

	rec, err := m.EndSession(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(600), rec.FeeHUF)
	assert.Equal(t, testNow.Add(-time.Hour), rec.StartTime)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEndSessionVehicleNotParked(t *testing.T) {
	m, mock := newSessionManager(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(vehicleQuery)).WithArgs(10, 1).WillReturnRows(vehicleRows(10, 1, false))
	mock.ExpectRollback()

	_, err := m.EndSession(context.Background(), 1, 10)
	assert.ErrorIs(t, err, ErrVehicleNotParked)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Parked flag without an occupied spot: the flag is cleared, the
// repair is committed, and the caller learns about it.
func TestEndSessionRepairsInconsistentState(t *testing.T) {
	m, mock := newSessionManager(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(vehicleQuery)).WithArgs(10, 1).WillReturnRows(vehicleRows(10, 1, true))
	mock.ExpectQuery(regexp.QuoteMeta(spotByVeh)).WithArgs(10).WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(regexp.QuoteMeta(unparkStmt)).WithArgs(10).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	_, err := m.EndSession(context.Background(), 1, 10)
	assert.ErrorIs(t, err, ErrInconsistentState)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteVehicleFreesSpot(t *testing.T) {
	m, mock := newSessionManager(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(vehicleQuery)).WithArgs(10, 1).WillReturnRows(vehicleRows(10, 1, true))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE parking_spots SET is_occupied=0, vehicle_id=NULL, start_time=NULL, end_time=NULL WHERE vehicle_id=?")).
		WithArgs(10).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM vehicles WHERE id=? AND user_id=?")).
		WithArgs(10, 1).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := m.DeleteVehicle(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
