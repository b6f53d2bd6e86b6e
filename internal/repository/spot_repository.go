package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/parkhaus/garage-api/internal/model"
)

// SpotRepo provides access to the 'parking_spots' table. Occupancy is
// mutated only through conditional single-row UPDATEs so that two
// sessions racing for the same spot resolve inside the database: the
// statement's WHERE clause re-checks the expected prior state and
// RowsAffected tells the caller whether it won.
type SpotRepo struct{ DB *sql.DB }

func NewSpotRepo(db *sql.DB) *SpotRepo { return &SpotRepo{DB: db} }

const spotColumns = "id,floor,label,is_occupied,vehicle_id,start_time,end_time"

func scanSpot(s interface{ Scan(...any) error }) (model.Spot, error) {
	var sp model.Spot
	err := s.Scan(&sp.ID, &sp.Floor, &sp.Label, &sp.IsOccupied,
		&sp.VehicleID, &sp.StartTime, &sp.EndTime)
	return sp, err
}

// GetByID fetches a single spot. Returns ErrNotFound for unknown IDs.
func (r *SpotRepo) GetByID(ctx context.Context, id uint64) (model.Spot, error) {
	sp, err := scanSpot(r.DB.QueryRowContext(ctx,
		"SELECT "+spotColumns+" FROM parking_spots WHERE id=? LIMIT 1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Spot{}, ErrNotFound
	}
	return sp, err
}

// GetByIDTx is GetByID inside an open transaction.
func (r *SpotRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Spot, error) {
	sp, err := scanSpot(tx.QueryRowContext(ctx,
		"SELECT "+spotColumns+" FROM parking_spots WHERE id=? LIMIT 1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Spot{}, ErrNotFound
	}
	return sp, err
}

// ListAll returns every spot ordered by floor then label.
func (r *SpotRepo) ListAll(ctx context.Context) ([]model.Spot, error) {
	return r.list(ctx, "SELECT "+spotColumns+" FROM parking_spots ORDER BY floor, label")
}

// ListAvailable returns only unoccupied spots ordered by floor then label.
func (r *SpotRepo) ListAvailable(ctx context.Context) ([]model.Spot, error) {
	return r.list(ctx, "SELECT "+spotColumns+" FROM parking_spots WHERE is_occupied=0 ORDER BY floor, label")
}

func (r *SpotRepo) list(ctx context.Context, query string) ([]model.Spot, error) {
	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Spot
	for rows.Next() {
		sp, err := scanSpot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sp)
	}
	return out, rows.Err()
}

// ReserveTx claims a spot for a vehicle only if the spot is still free.
// Returns the number of rows changed; 0 means the spot was taken
// between the caller's read and this write.
func (r *SpotRepo) ReserveTx(ctx context.Context, tx *sql.Tx, spotID, vehicleID uint64, start time.Time) (int64, error) {
	res, err := tx.ExecContext(ctx,
		"UPDATE parking_spots SET is_occupied=1, vehicle_id=?, start_time=?, end_time=NULL WHERE id=? AND is_occupied=0",
		vehicleID, start, spotID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ReleaseTx frees a spot only if it is still held by the given vehicle
// and stamps the session end time. The start/end stamps stay on the
// freed spot until the next reserve overwrites them, so the spot keeps
// showing when its last session ran.
// Returns the number of rows changed; 0 means the spot no longer holds
// that vehicle.
func (r *SpotRepo) ReleaseTx(ctx context.Context, tx *sql.Tx, spotID, vehicleID uint64, end time.Time) (int64, error) {
	res, err := tx.ExecContext(ctx,
		"UPDATE parking_spots SET is_occupied=0, vehicle_id=NULL, end_time=? WHERE id=? AND vehicle_id=?",
		end, spotID, vehicleID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// FindByVehicle locates the occupied spot holding a vehicle, if any.
// Returns ErrNotFound when the vehicle occupies no spot.
func (r *SpotRepo) FindByVehicle(ctx context.Context, vehicleID uint64) (model.Spot, error) {
	sp, err := scanSpot(r.DB.QueryRowContext(ctx,
		"SELECT "+spotColumns+" FROM parking_spots WHERE vehicle_id=? AND is_occupied=1 LIMIT 1", vehicleID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Spot{}, ErrNotFound
	}
	return sp, err
}

// FindByVehicleTx locates the occupied spot holding a vehicle, if any.
// Returns ErrNotFound when the vehicle occupies no spot.
func (r *SpotRepo) FindByVehicleTx(ctx context.Context, tx *sql.Tx, vehicleID uint64) (model.Spot, error) {
	sp, err := scanSpot(tx.QueryRowContext(ctx,
		"SELECT "+spotColumns+" FROM parking_spots WHERE vehicle_id=? AND is_occupied=1 LIMIT 1", vehicleID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Spot{}, ErrNotFound
	}
	return sp, err
}

// FreeByVehicleTx clears any spot referencing the vehicle. Used when a
// vehicle is deleted while parked so no spot keeps a dangling occupant.
func (r *SpotRepo) FreeByVehicleTx(ctx context.Context, tx *sql.Tx, vehicleID uint64) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE parking_spots SET is_occupied=0, vehicle_id=NULL, start_time=NULL, end_time=NULL WHERE vehicle_id=?",
		vehicleID)
	return err
}
