package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/parkhaus/garage-api/internal/clock"
	"github.com/parkhaus/garage-api/internal/fee"
	"github.com/parkhaus/garage-api/internal/model"
	"github.com/parkhaus/garage-api/internal/repository"
)

// storageTimeout bounds every session operation. A database that hangs
// longer than this fails the request instead of pinning the connection.
const storageTimeout = 5 * time.Second

// missingStartFallback is how far before the session end a lost start
// time is assumed to be. Losing the start stamp must never block a
// customer from leaving, so the session is billed as one hour.
const missingStartFallback = time.Hour

// SessionManager drives the parking session lifecycle. Starting a
// session atomically claims a spot and flags the vehicle; ending one
// frees the spot, flags the vehicle back and appends the immutable
// history record with the computed fee, all in one transaction.
type SessionManager struct {
	DB       *sql.DB
	Vehicles *repository.VehicleRepo
	Spots    *repository.SpotRepo
	History  *repository.HistoryRepo
	Users    *repository.UserRepo
	Clock    clock.Clock
}

func NewSessionManager(db *sql.DB, v *repository.VehicleRepo, s *repository.SpotRepo,
	h *repository.HistoryRepo, u *repository.UserRepo, c clock.Clock) *SessionManager {
	return &SessionManager{DB: db, Vehicles: v, Spots: s, History: h, Users: u, Clock: c}
}

// wrapStorageErr converts a deadline overrun into ErrStorageTimeout and
// passes everything else through.
func wrapStorageErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrStorageTimeout
	}
	return err
}

// StartSession parks the user's vehicle on the requested spot. The
// reserve is a conditional single-row UPDATE, so when several sessions
// race for one spot exactly one wins and the rest get ErrSpotOccupied.
func (m *SessionManager) StartSession(ctx context.Context, userID, vehicleID, spotID uint64) (model.Spot, error) {
	ctx, cancel := context.WithTimeout(ctx, storageTimeout)
	defer cancel()

	tx, err := m.DB.BeginTx(ctx, nil)
	if err != nil {
		return model.Spot{}, wrapStorageErr(err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	v, err := m.Vehicles.GetByIDForUserTx(ctx, tx, vehicleID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Spot{}, ErrVehicleNotFound
		}
		return model.Spot{}, wrapStorageErr(err)
	}
	if v.IsParked {
		return model.Spot{}, ErrVehicleAlreadyParked
	}

	sp, err := m.Spots.GetByIDTx(ctx, tx, spotID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Spot{}, ErrSpotNotFound
		}
		return model.Spot{}, wrapStorageErr(err)
	}
	if sp.IsOccupied {
		return model.Spot{}, ErrSpotOccupied
	}

	start := m.Clock.Now()
	n, err := m.Spots.ReserveTx(ctx, tx, spotID, vehicleID, start)
	if err != nil {
		return model.Spot{}, wrapStorageErr(err)
	}
	if n == 0 {
		return model.Spot{}, ErrSpotOccupied
	}

	n, err = m.Vehicles.MarkParkedTx(ctx, tx, vehicleID)
	if err != nil {
		return model.Spot{}, wrapStorageErr(err)
	}
	if n == 0 {
		return model.Spot{}, ErrVehicleAlreadyParked
	}

	if err := tx.Commit(); err != nil {
		return model.Spot{}, wrapStorageErr(err)
	}
	committed = true

	sp.IsOccupied = true
	sp.VehicleID = &vehicleID
	sp.StartTime = &start
	sp.EndTime = nil
	return sp, nil
}

// EndSession closes the active session of the user's vehicle, computes
// the fee and appends the history record. When the vehicle is flagged
// as parked but no spot holds it, the flag is repaired and
// ErrInconsistentState is returned so the caller can retry cleanly.
func (m *SessionManager) EndSession(ctx context.Context, userID, vehicleID uint64) (model.ParkingHistory, error) {
	ctx, cancel := context.WithTimeout(ctx, storageTimeout)
	defer cancel()

	tx, err := m.DB.BeginTx(ctx, nil)
	if err != nil {
		return model.ParkingHistory{}, wrapStorageErr(err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	v, err := m.Vehicles.GetByIDForUserTx(ctx, tx, vehicleID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.ParkingHistory{}, ErrVehicleNotFound
		}
		return model.ParkingHistory{}, wrapStorageErr(err)
	}
	if !v.IsParked {
		return model.ParkingHistory{}, ErrVehicleNotParked
	}

	sp, err := m.Spots.FindByVehicleTx(ctx, tx, vehicleID)
	if errors.Is(err, repository.ErrNotFound) {
		// Parked flag without a spot: repair the flag and report it.
		if err := m.Vehicles.MarkUnparkedTx(ctx, tx, vehicleID); err != nil {
			return model.ParkingHistory{}, wrapStorageErr(err)
		}
		if err := tx.Commit(); err != nil {
			return model.ParkingHistory{}, wrapStorageErr(err)
		}
		committed = true
		return model.ParkingHistory{}, ErrInconsistentState
	}
	if err != nil {
		return model.ParkingHistory{}, wrapStorageErr(err)
	}

	end := m.Clock.Now()
	var start time.Time
	if sp.StartTime != nil && !sp.StartTime.After(end) {
		start = *sp.StartTime
	} else {
		// Start stamp lost or ahead of the end: bill one hour.
		start = end.Add(-missingStartFallback)
	}

	n, err := m.Spots.ReleaseTx(ctx, tx, sp.ID, vehicleID, end)
	if err != nil {
		return model.ParkingHistory{}, wrapStorageErr(err)
	}
	if n == 0 {
		return model.ParkingHistory{}, ErrInconsistentState
	}
	if err := m.Vehicles.MarkUnparkedTx(ctx, tx, vehicleID); err != nil {
		return model.ParkingHistory{}, wrapStorageErr(err)
	}

	amount, err := fee.Compute(start, end)
	if err != nil {
		return model.ParkingHistory{}, err
	}

	u, err := m.Users.GetByIDTx(ctx, tx, userID)
	if err != nil {
		return model.ParkingHistory{}, wrapStorageErr(err)
	}

	h := model.ParkingHistory{
		StartTime:    start,
		EndTime:      end,
		Floor:        sp.Floor,
		Label:        sp.Label,
		FeeHUF:       amount,
		VehicleID:    v.ID,
		VehicleBrand: v.Brand,
		VehicleModel: v.Model,
		LicensePlate: v.LicensePlate,
		UserID:       u.ID,
		UserName:     u.FullName(),
		UserEmail:    u.Email,
	}
	id, err := m.History.InsertTx(ctx, tx, h)
	if err != nil {
		return model.ParkingHistory{}, wrapStorageErr(err)
	}
	h.ID = id

	if err := tx.Commit(); err != nil {
		return model.ParkingHistory{}, wrapStorageErr(err)
	}
	committed = true
	return h, nil
}

// Status reports the active spot of the user's vehicle, or
// ErrVehicleNotParked when it has no session.
func (m *SessionManager) Status(ctx context.Context, userID, vehicleID uint64) (model.Spot, error) {
	ctx, cancel := context.WithTimeout(ctx, storageTimeout)
	defer cancel()

	v, err := m.Vehicles.GetByIDForUser(ctx, vehicleID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Spot{}, ErrVehicleNotFound
		}
		return model.Spot{}, wrapStorageErr(err)
	}
	sp, err := m.Spots.FindByVehicle(ctx, v.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Spot{}, ErrVehicleNotParked
	}
	if err != nil {
		return model.Spot{}, wrapStorageErr(err)
	}
	return sp, nil
}

// DeleteVehicle removes the user's vehicle and, when it is parked,
// frees its spot in the same transaction so no spot keeps a dangling
// occupant.
func (m *SessionManager) DeleteVehicle(ctx context.Context, userID, vehicleID uint64) error {
	ctx, cancel := context.WithTimeout(ctx, storageTimeout)
	defer cancel()

	tx, err := m.DB.BeginTx(ctx, nil)
	if err != nil {
		return wrapStorageErr(err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if _, err := m.Vehicles.GetByIDForUserTx(ctx, tx, vehicleID, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrVehicleNotFound
		}
		return wrapStorageErr(err)
	}
	if err := m.Spots.FreeByVehicleTx(ctx, tx, vehicleID); err != nil {
		return wrapStorageErr(err)
	}
	if err := m.Vehicles.DeleteTx(ctx, tx, vehicleID, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrVehicleNotFound
		}
		return wrapStorageErr(err)
	}

	if err := tx.Commit(); err != nil {
		return wrapStorageErr(err)
	}
	committed = true
	return nil
}
