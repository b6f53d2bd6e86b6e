package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/parkhaus/garage-api/internal/model"
)

// VehicleRepo provides CRUD access to the 'vehicles' table. All reads
// are scoped to the owning user so one customer can never see or touch
// another customer's vehicles. The parked flag is flipped only through
// the conditional Tx helpers so it always moves in step with the spot
// that holds the vehicle.
type VehicleRepo struct{ DB *sql.DB }

func NewVehicleRepo(db *sql.DB) *VehicleRepo { return &VehicleRepo{DB: db} }

const vehicleColumns = "id,user_id,brand,model,year,license_plate,is_parked,created_at,updated_at"

func scanVehicle(s interface{ Scan(...any) error }) (model.Vehicle, error) {
	var v model.Vehicle
	err := s.Scan(&v.ID, &v.UserID, &v.Brand, &v.Model, &v.Year,
		&v.LicensePlate, &v.IsParked, &v.CreatedAt, &v.UpdatedAt)
	return v, err
}

// Create inserts a vehicle for a user and returns its ID.
func (r *VehicleRepo) Create(ctx context.Context, userID uint64, brand, mdl string, year uint32, plate string) (uint64, error) {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO vehicles (user_id, brand, model, year, license_plate) VALUES (?,?,?,?,?)",
		userID, brand, mdl, year, plate)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByIDForUser fetches a vehicle only when it belongs to the user.
// Returns ErrNotFound when the row is missing or owned by someone else;
// ownership failures are indistinguishable from absence on purpose.
func (r *VehicleRepo) GetByIDForUser(ctx context.Context, id, userID uint64) (model.Vehicle, error) {
	v, err := scanVehicle(r.DB.QueryRowContext(ctx,
		"SELECT "+vehicleColumns+" FROM vehicles WHERE id=? AND user_id=? LIMIT 1", id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Vehicle{}, ErrNotFound
	}
	return v, err
}

// GetByIDForUserTx is GetByIDForUser inside an open transaction.
func (r *VehicleRepo) GetByIDForUserTx(ctx context.Context, tx *sql.Tx, id, userID uint64) (model.Vehicle, error) {
	v, err := scanVehicle(tx.QueryRowContext(ctx,
		"SELECT "+vehicleColumns+" FROM vehicles WHERE id=? AND user_id=? LIMIT 1", id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Vehicle{}, ErrNotFound
	}
	return v, err
}

// ListByUser returns all vehicles the user owns, newest first.
func (r *VehicleRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Vehicle, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+vehicleColumns+" FROM vehicles WHERE user_id=? ORDER BY id DESC", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Vehicle
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Update changes the descriptive fields of a vehicle the user owns.
func (r *VehicleRepo) Update(ctx context.Context, id, userID uint64, brand, mdl string, year uint32, plate string) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE vehicles SET brand=?, model=?, year=?, license_plate=? WHERE id=? AND user_id=?",
		brand, mdl, year, plate, id, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkParkedTx sets is_parked=1 only if the vehicle is currently not
// parked. Returns the number of rows changed; 0 means another session
// parked the vehicle first.
func (r *VehicleRepo) MarkParkedTx(ctx context.Context, tx *sql.Tx, id uint64) (int64, error) {
	res, err := tx.ExecContext(ctx,
		"UPDATE vehicles SET is_parked=1 WHERE id=? AND is_parked=0", id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// MarkUnparkedTx clears is_parked unconditionally. It is also used to
// repair a vehicle flagged as parked without an occupied spot.
func (r *VehicleRepo) MarkUnparkedTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE vehicles SET is_parked=0 WHERE id=?", id)
	return err
}

// DeleteTx removes a vehicle the user owns. The caller must free any
// spot referencing the vehicle in the same transaction before commit.
func (r *VehicleRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id, userID uint64) error {
	res, err := tx.ExecContext(ctx,
		"DELETE FROM vehicles WHERE id=? AND user_id=?", id, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
