// Package service implements the parking session and invoice workflows
// on top of the repositories. Each operation runs inside a single
// database transaction so the spot, the vehicle flag and the history
// record always change together.
package service

import "errors"

// Sentinel errors returned by the session and invoice services.
// Handlers map these onto HTTP status codes.
var (
	// ErrVehicleNotFound is returned when the vehicle does not exist
	// or belongs to a different user.
	ErrVehicleNotFound = errors.New("vehicle not found")

	// ErrSpotNotFound is returned when the requested spot does not exist.
	ErrSpotNotFound = errors.New("parking spot not found")

	// ErrSpotOccupied is returned when the requested spot is already
	// taken, including the case where a concurrent session took it
	// between the caller's read and the reserve write.
	ErrSpotOccupied = errors.New("parking spot already occupied")

	// ErrVehicleAlreadyParked is returned when a start is attempted
	// for a vehicle that is already in a session.
	ErrVehicleAlreadyParked = errors.New("vehicle is already parked")

	// ErrVehicleNotParked is returned when an end is attempted for a
	// vehicle with no active session.
	ErrVehicleNotParked = errors.New("vehicle is not parked")

	// ErrInconsistentState is returned when a vehicle was flagged as
	// parked but no occupied spot holds it. The flag is cleared before
	// this error is returned, so a retry sees clean state.
	ErrInconsistentState = errors.New("parking state was inconsistent and has been repaired")

	// ErrStorageTimeout is returned when the database did not answer
	// within the per-operation deadline.
	ErrStorageTimeout = errors.New("storage timeout")
)
