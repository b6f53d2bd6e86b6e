package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/parkhaus/garage-api/internal/model"
	"github.com/parkhaus/garage-api/internal/repository"
)

// SpotHandler serves the read-only garage layout endpoints. These are
// the hottest routes in the API and sit behind the Redis response
// cache.
type SpotHandler struct {
	Spots *repository.SpotRepo
}

func NewSpotHandler(s *repository.SpotRepo) *SpotHandler { return &SpotHandler{Spots: s} }

type spotResp struct {
	ID         uint64     `json:"id"`
	Floor      uint32     `json:"floor"`
	Label      string     `json:"label"`
	IsOccupied bool       `json:"is_occupied"`
	VehicleID  *uint64    `json:"vehicle_id,omitempty"`
	StartTime  *time.Time `json:"start_time,omitempty"`
	EndTime    *time.Time `json:"end_time,omitempty"`
}

func toSpotResp(sp model.Spot) spotResp {
	return spotResp{
		ID:         sp.ID,
		Floor:      sp.Floor,
		Label:      sp.Label,
		IsOccupied: sp.IsOccupied,
		VehicleID:  sp.VehicleID,
		StartTime:  sp.StartTime,
		EndTime:    sp.EndTime,
	}
}

// List returns every spot in the garage ordered by floor and label.
func (h *SpotHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	spots, err := h.Spots.ListAll(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]spotResp, 0, len(spots))
	for _, sp := range spots {
		out = append(out, toSpotResp(sp))
	}
	return c.JSON(http.StatusOK, echo.Map{"spots": out})
}

// ListAvailable returns only the free spots.
func (h *SpotHandler) ListAvailable(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	spots, err := h.Spots.ListAvailable(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]spotResp, 0, len(spots))
	for _, sp := range spots {
		out = append(out, toSpotResp(sp))
	}
	return c.JSON(http.StatusOK, echo.Map{"spots": out})
}

// Get returns a single spot by ID.
func (h *SpotHandler) Get(c echo.Context) error {
	id := pathID(c, "id")
	if id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid spot id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	sp, err := h.Spots.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "spot not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, toSpotResp(sp))
}
