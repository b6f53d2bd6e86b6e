package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/parkhaus/garage-api/internal/model"
)

// HistoryRepo provides access to the 'parking_history' table. Rows are
// append-only snapshots: vehicle and user fields are denormalized at
// write time so a record stays intact even after the vehicle or user
// is deleted.
type HistoryRepo struct{ DB *sql.DB }

func NewHistoryRepo(db *sql.DB) *HistoryRepo { return &HistoryRepo{DB: db} }

const historyColumns = "id,start_time,end_time,floor,label,fee_huf," +
	"vehicle_id,vehicle_brand,vehicle_model,license_plate," +
	"user_id,user_name,user_email,created_at"

func scanHistory(s interface{ Scan(...any) error }) (model.ParkingHistory, error) {
	var h model.ParkingHistory
	err := s.Scan(&h.ID, &h.StartTime, &h.EndTime, &h.Floor, &h.Label, &h.FeeHUF,
		&h.VehicleID, &h.VehicleBrand, &h.VehicleModel, &h.LicensePlate,
		&h.UserID, &h.UserName, &h.UserEmail, &h.CreatedAt)
	return h, err
}

// InsertTx appends a completed-session record and returns its ID.
func (r *HistoryRepo) InsertTx(ctx context.Context, tx *sql.Tx, h model.ParkingHistory) (uint64, error) {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO parking_history
		 (start_time, end_time, floor, label, fee_huf,
		  vehicle_id, vehicle_brand, vehicle_model, license_plate,
		  user_id, user_name, user_email)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		h.StartTime, h.EndTime, h.Floor, h.Label, h.FeeHUF,
		h.VehicleID, h.VehicleBrand, h.VehicleModel, h.LicensePlate,
		h.UserID, h.UserName, h.UserEmail)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByIDForUser fetches a record only when it belongs to the user.
func (r *HistoryRepo) GetByIDForUser(ctx context.Context, id, userID uint64) (model.ParkingHistory, error) {
	h, err := scanHistory(r.DB.QueryRowContext(ctx,
		"SELECT "+historyColumns+" FROM parking_history WHERE id=? AND user_id=? LIMIT 1", id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.ParkingHistory{}, ErrNotFound
	}
	return h, err
}

// ListByUser returns the user's records, most recent session first.
func (r *HistoryRepo) ListByUser(ctx context.Context, userID uint64) ([]model.ParkingHistory, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+historyColumns+" FROM parking_history WHERE user_id=? ORDER BY end_time DESC, id DESC", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.ParkingHistory
	for rows.Next() {
		h, err := scanHistory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
