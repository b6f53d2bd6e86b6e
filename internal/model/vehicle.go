package model

import "time"

// Vehicle represents a registered car as stored in the `vehicles`
// table.  A vehicle belongs to exactly one user and carries a single
// parked flag.  The flag is mutated only by the session manager: it
// is true exactly when one parking spot references the vehicle as
// its current occupant.
//
// Fields:
//  ID           – primary key identifier.
//  UserID       – owning user.
//  Brand        – manufacturer (e.g. Toyota).
//  Model        – model name (e.g. Corolla).
//  Year         – model year.
//  LicensePlate – registration plate, unique per vehicle.
//  IsParked     – whether the vehicle currently occupies a spot.
//  CreatedAt    – creation timestamp.
//  UpdatedAt    – last update timestamp.
type Vehicle struct {
    ID           uint64    // vehicles.id
    UserID       uint64    // vehicles.user_id
    Brand        string    // vehicles.brand
    Model        string    // vehicles.model
    Year         uint32    // vehicles.year
    LicensePlate string    // vehicles.license_plate
    IsParked     bool      // vehicles.is_parked
    CreatedAt    time.Time // vehicles.created_at
    UpdatedAt    time.Time // vehicles.updated_at
}
