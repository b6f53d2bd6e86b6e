package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSpotRepo(t *testing.T) (*SpotRepo, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSpotRepo(db), mock, db
}

func beginTx(t *testing.T, db *sql.DB, mock sqlmock.Sqlmock) *sql.Tx {
	t.Helper()
	mock.ExpectBegin()
	tx, err := db.Begin()
	require.NoError(t, err)
	return tx
}

// The reserve UPDATE re-checks is_occupied=0 in its WHERE clause.
// RowsAffected is the only signal that distinguishes the winner of a
// race from the losers.
func TestReserveTxReportsRowsAffected(t *testing.T) {
	repo, mock, db := newSpotRepo(t)
	start := time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC)

	tx := beginTx(t, db, mock)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE parking_spots SET is_occupied=1, vehicle_id=?, start_time=?, end_time=NULL WHERE id=? AND is_occupied=0")).
		WithArgs(10, start, 5).WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := repo.ReserveTx(context.Background(), tx, 5, 10, start)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE parking_spots SET is_occupied=1, vehicle_id=?, start_time=?, end_time=NULL WHERE id=? AND is_occupied=0")).
		WithArgs(11, start, 5).WillReturnResult(sqlmock.NewResult(0, 0))

	n, err = repo.ReserveTx(context.Background(), tx, 5, 11, start)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Release stamps the session end time on the freed spot in the same
// UPDATE that clears occupancy, so a freed spot always shows when its
// last session ended.
func TestReleaseTxStampsEndTime(t *testing.T) {
	repo, mock, db := newSpotRepo(t)
	end := time.Date(2025, 3, 10, 16, 0, 0, 0, time.UTC)

	tx := beginTx(t, db, mock)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE parking_spots SET is_occupied=0, vehicle_id=NULL, end_time=? WHERE id=? AND vehicle_id=?")).
		WithArgs(end, 5, 10).WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := repo.ReleaseTx(context.Background(), tx, 5, 10, end)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Release only frees a spot still held by the given vehicle; a spot
// already reassigned stays untouched.
func TestReleaseTxChecksOccupant(t *testing.T) {
	repo, mock, db := newSpotRepo(t)
	end := time.Date(2025, 3, 10, 16, 0, 0, 0, time.UTC)

	tx := beginTx(t, db, mock)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE parking_spots SET is_occupied=0, vehicle_id=NULL, end_time=? WHERE id=? AND vehicle_id=?")).
		WithArgs(end, 5, 99).WillReturnResult(sqlmock.NewResult(0, 0))

	n, err := repo.ReleaseTx(context.Background(), tx, 5, 99, end)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByIDNotFound(t *testing.T) {
	repo, mock, _ := newSpotRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id,floor,label,is_occupied,vehicle_id,start_time,end_time FROM parking_spots WHERE id=? LIMIT 1")).
		WithArgs(999).WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), 999)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
