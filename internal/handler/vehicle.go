package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/parkhaus/garage-api/internal/model"
	"github.com/parkhaus/garage-api/internal/repository"
	"github.com/parkhaus/garage-api/internal/service"
)

// VehicleHandler serves the vehicle CRUD endpoints. Deletion routes
// through the session manager because a parked vehicle must release
// its spot in the same transaction.
type VehicleHandler struct {
	Vehicles *repository.VehicleRepo
	Sessions *service.SessionManager
}

func NewVehicleHandler(v *repository.VehicleRepo, s *service.SessionManager) *VehicleHandler {
	return &VehicleHandler{Vehicles: v, Sessions: s}
}

type vehicleReq struct {
	Brand        string `json:"brand"`
	Model        string `json:"model"`
	Year         uint32 `json:"year"`
	LicensePlate string `json:"license_plate"`
}

type vehicleResp struct {
	ID           uint64 `json:"id"`
	Brand        string `json:"brand"`
	Model        string `json:"model"`
	Year         uint32 `json:"year"`
	LicensePlate string `json:"license_plate"`
	IsParked     bool   `json:"is_parked"`
}

func toVehicleResp(v model.Vehicle) vehicleResp {
	return vehicleResp{
		ID:           v.ID,
		Brand:        v.Brand,
		Model:        v.Model,
		Year:         v.Year,
		LicensePlate: v.LicensePlate,
		IsParked:     v.IsParked,
	}
}

func (r *vehicleReq) normalize() error {
	r.Brand = strings.TrimSpace(r.Brand)
	r.Model = strings.TrimSpace(r.Model)
	r.LicensePlate = strings.ToUpper(strings.TrimSpace(r.LicensePlate))
	if r.Brand == "" || r.Model == "" || r.LicensePlate == "" {
		return errors.New("brand, model and license_plate required")
	}
	return nil
}

// Create registers a new vehicle for the caller.
func (h *VehicleHandler) Create(c echo.Context) error {
	uid := currentUserID(c)
	if uid == 0 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req vehicleReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := req.normalize(); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	id, err := h.Vehicles.Create(ctx, uid, req.Brand, req.Model, req.Year, req.LicensePlate)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create vehicle failed"})
	}
	return c.JSON(http.StatusCreated, vehicleResp{
		ID: id, Brand: req.Brand, Model: req.Model,
		Year: req.Year, LicensePlate: req.LicensePlate,
	})
}

// List returns all vehicles the caller owns.
func (h *VehicleHandler) List(c echo.Context) error {
	uid := currentUserID(c)
	if uid == 0 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	vehicles, err := h.Vehicles.ListByUser(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]vehicleResp, 0, len(vehicles))
	for _, v := range vehicles {
		out = append(out, toVehicleResp(v))
	}
	return c.JSON(http.StatusOK, echo.Map{"vehicles": out})
}

// Get returns one of the caller's vehicles.
func (h *VehicleHandler) Get(c echo.Context) error {
	uid := currentUserID(c)
	if uid == 0 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id := pathID(c, "id")
	if id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid vehicle id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	v, err := h.Vehicles.GetByIDForUser(ctx, id, uid)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "vehicle not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, toVehicleResp(v))
}

// Update changes the descriptive fields of the caller's vehicle.
func (h *VehicleHandler) Update(c echo.Context) error {
	uid := currentUserID(c)
	if uid == 0 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id := pathID(c, "id")
	if id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid vehicle id"})
	}
	var req vehicleReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := req.normalize(); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Vehicles.Update(ctx, id, uid, req.Brand, req.Model, req.Year, req.LicensePlate); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "vehicle not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update vehicle failed"})
	}
	return c.JSON(http.StatusOK, vehicleResp{
		ID: id, Brand: req.Brand, Model: req.Model,
		Year: req.Year, LicensePlate: req.LicensePlate,
	})
}

// Delete removes the caller's vehicle, freeing its spot if parked.
func (h *VehicleHandler) Delete(c echo.Context) error {
	uid := currentUserID(c)
	if uid == 0 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id := pathID(c, "id")
	if id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid vehicle id"})
	}

	if err := h.Sessions.DeleteVehicle(c.Request().Context(), uid, id); err != nil {
		if errors.Is(err, service.ErrVehicleNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "vehicle not found"})
		}
		if errors.Is(err, service.ErrStorageTimeout) {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete vehicle failed"})
	}
	return c.NoContent(http.StatusNoContent)
}
