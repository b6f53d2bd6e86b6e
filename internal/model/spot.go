package model

import "time"

// Spot represents a fixed parking location as stored in the
// `parking_spots` table.  Spots are created once when the garage is
// provisioned and are never deleted during normal operation.  The
// pair (floor, label) is unique.  Invariant: IsOccupied is true
// exactly when VehicleID is set.
//
// Fields:
//  ID         – primary key identifier.
//  Floor      – floor number the spot is on (1..3).
//  Label      – spot label within the floor (e.g. "A01").
//  IsOccupied – whether a vehicle currently occupies the spot.
//  VehicleID  – occupying vehicle (nil when free).
//  StartTime  – when the current (or, on a freed spot, most recent)
//               session started; overwritten on the next start.
//  EndTime    – when the last session ended; stamped on release and
//               cleared on the next start.
type Spot struct {
    ID         uint64     // parking_spots.id
    Floor      uint32     // parking_spots.floor
    Label      string     // parking_spots.label
    IsOccupied bool       // parking_spots.is_occupied
    VehicleID  *uint64    // parking_spots.vehicle_id (nullable)
    StartTime  *time.Time // parking_spots.start_time (nullable)
    EndTime    *time.Time // parking_spots.end_time (nullable)
}
