package model

import (
    "fmt"
    "time"
)

// ParkingHistory is the immutable snapshot written when a session
// ends, stored in the `parking_history` table.  Vehicle and user
// fields are denormalized at billing time so that later edits or
// deletions of the vehicle or user cannot corrupt the record.
// Rows are created exactly once per completed session and never
// mutated or deleted afterwards.
//
// Fields:
//  ID           – primary key identifier.
//  StartTime    – when the session started.
//  EndTime      – when the session ended.
//  Floor        – floor of the spot that was occupied.
//  Label        – label of the spot that was occupied.
//  FeeHUF       – computed fee in forints.
//  VehicleID    – vehicle that parked (snapshot reference).
//  VehicleBrand – vehicle brand at billing time.
//  VehicleModel – vehicle model at billing time.
//  LicensePlate – plate at billing time.
//  UserID       – owning user (snapshot reference).
//  UserName     – user display name at billing time.
//  UserEmail    – user email at billing time.
//  CreatedAt    – when the row was written.
type ParkingHistory struct {
    ID           uint64    // parking_history.id
    StartTime    time.Time // parking_history.start_time
    EndTime      time.Time // parking_history.end_time
    Floor        uint32    // parking_history.floor
    Label        string    // parking_history.label
    FeeHUF       int64     // parking_history.fee_huf
    VehicleID    uint64    // parking_history.vehicle_id
    VehicleBrand string    // parking_history.vehicle_brand
    VehicleModel string    // parking_history.vehicle_model
    LicensePlate string    // parking_history.license_plate
    UserID       uint64    // parking_history.user_id
    UserName     string    // parking_history.user_name
    UserEmail    string    // parking_history.user_email
    CreatedAt    time.Time // parking_history.created_at
}

// Duration returns how long the recorded session lasted.
func (h ParkingHistory) Duration() time.Duration {
    return h.EndTime.Sub(h.StartTime)
}

// DurationFormatted renders the duration in a human readable form,
// e.g. "2 hours 5 minutes" or "1 day, 3 hours 10 minutes".  It is
// used on invoice documents and in end-of-session responses.
func (h ParkingHistory) DurationFormatted() string {
    d := h.Duration()
    totalHours := int(d.Hours())
    days := totalHours / 24
    hours := totalHours % 24
    minutes := int(d.Minutes()) % 60
    if days > 0 {
        return fmt.Sprintf("%d days, %d hours %d minutes", days, hours, minutes)
    }
    return fmt.Sprintf("%d hours %d minutes", hours, minutes)
}
