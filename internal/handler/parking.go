package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/parkhaus/garage-api/internal/model"
	"github.com/parkhaus/garage-api/internal/queue"
	"github.com/parkhaus/garage-api/internal/repository"
	"github.com/parkhaus/garage-api/internal/service"
)

// ParkingHandler serves the session lifecycle endpoints: start, end,
// status and history. Ending a session also issues the invoice; the
// invoice.created event then travels through RabbitMQ so email
// delivery never blocks the HTTP response.
type ParkingHandler struct {
	Sessions *service.SessionManager
	Invoices *service.InvoiceService
	History  *repository.HistoryRepo
}

func NewParkingHandler(s *service.SessionManager, i *service.InvoiceService, h *repository.HistoryRepo) *ParkingHandler {
	return &ParkingHandler{Sessions: s, Invoices: i, History: h}
}

type startReq struct {
	VehicleID uint64 `json:"vehicle_id"`
	SpotID    uint64 `json:"spot_id"`
}
type endReq struct {
	VehicleID uint64 `json:"vehicle_id"`
}

type historyResp struct {
	ID           uint64    `json:"id"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
	Floor        uint32    `json:"floor"`
	Label        string    `json:"label"`
	FeeHUF       int64     `json:"fee_huf"`
	Duration     string    `json:"duration"`
	VehicleBrand string    `json:"vehicle_brand"`
	VehicleModel string    `json:"vehicle_model"`
	LicensePlate string    `json:"license_plate"`
}

func toHistoryResp(h model.ParkingHistory) historyResp {
	return historyResp{
		ID:           h.ID,
		StartTime:    h.StartTime,
		EndTime:      h.EndTime,
		Floor:        h.Floor,
		Label:        h.Label,
		FeeHUF:       h.FeeHUF,
		Duration:     h.DurationFormatted(),
		VehicleBrand: h.VehicleBrand,
		VehicleModel: h.VehicleModel,
		LicensePlate: h.LicensePlate,
	}
}

// sessionErrStatus maps session service errors to HTTP status codes.
func sessionErrStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrVehicleNotFound),
		errors.Is(err, service.ErrSpotNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrSpotOccupied),
		errors.Is(err, service.ErrVehicleAlreadyParked),
		errors.Is(err, service.ErrVehicleNotParked),
		errors.Is(err, service.ErrInconsistentState):
		return http.StatusConflict
	case errors.Is(err, service.ErrStorageTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Start parks the caller's vehicle on the requested spot.
func (h *ParkingHandler) Start(c echo.Context) error {
	uid := currentUserID(c)
	if uid == 0 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req startReq
	if err := c.Bind(&req); err != nil || req.VehicleID == 0 || req.SpotID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "vehicle_id and spot_id required"})
	}

	sp, err := h.Sessions.StartSession(c.Request().Context(), uid, req.VehicleID, req.SpotID)
	if err != nil {
		status := sessionErrStatus(err)
		if status == http.StatusInternalServerError {
			return c.JSON(status, echo.Map{"error": "start session failed"})
		}
		return c.JSON(status, echo.Map{"error": err.Error()})
	}
	return c.JSON(http.StatusCreated, echo.Map{"spot": toSpotResp(sp)})
}

// End closes the caller's active session, returns the billed record
// and issues the invoice. An invoice failure does not fail the
// request: the session is already closed and billing can be repaired
// later, so the response carries an invoice_error note instead.
func (h *ParkingHandler) End(c echo.Context) error {
	uid := currentUserID(c)
	if uid == 0 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req endReq
	if err := c.Bind(&req); err != nil || req.VehicleID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "vehicle_id required"})
	}

	rec, err := h.Sessions.EndSession(c.Request().Context(), uid, req.VehicleID)
	if err != nil {
		status := sessionErrStatus(err)
		if status == http.StatusInternalServerError {
			return c.JSON(status, echo.Map{"error": "end session failed"})
		}
		return c.JSON(status, echo.Map{"error": err.Error()})
	}

	resp := echo.Map{"session": toHistoryResp(rec)}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	inv, err := h.Invoices.CreateInvoice(ctx, rec)
	if err != nil {
		log.Printf("parking: invoice for history %d failed: %v", rec.ID, err)
		resp["invoice_error"] = "invoice creation failed, billing will follow up"
		return c.JSON(http.StatusOK, resp)
	}
	resp["invoice"] = toInvoiceResp(inv)

	// Fire-and-forget: email delivery happens in the queue consumer.
	go func(ev queue.InvoiceCreatedEvent) {
		pubCtx, pubCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer pubCancel()
		_ = queue.PublishInvoiceCreated(pubCtx, ev)
	}(queue.InvoiceCreatedEvent{
		InvoiceID:     inv.ID,
		InvoiceNumber: inv.InvoiceNumber,
		UserID:        inv.UserID,
		CustomerName:  inv.CustomerName,
		CustomerEmail: inv.CustomerEmail,
		AmountHUF:     inv.AmountHUF,
		IssueDate:     inv.IssueDate.UTC().Format(time.RFC3339),
		DueDate:       inv.DueDate.UTC().Format(time.RFC3339),
		Description:   inv.Description,
	})

	return c.JSON(http.StatusOK, resp)
}

// Status reports where the caller's vehicle is currently parked.
func (h *ParkingHandler) Status(c echo.Context) error {
	uid := currentUserID(c)
	if uid == 0 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	vehicleID := pathID(c, "vehicle_id")
	if vehicleID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid vehicle id"})
	}

	sp, err := h.Sessions.Status(c.Request().Context(), uid, vehicleID)
	if err != nil {
		if errors.Is(err, service.ErrVehicleNotParked) {
			return c.JSON(http.StatusOK, echo.Map{"parked": false})
		}
		status := sessionErrStatus(err)
		if status == http.StatusInternalServerError {
			return c.JSON(status, echo.Map{"error": "status query failed"})
		}
		return c.JSON(status, echo.Map{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, echo.Map{"parked": true, "spot": toSpotResp(sp)})
}

// MyParked lists the caller's vehicles that are currently in a
// session, each with the spot holding it.
func (h *ParkingHandler) MyParked(c echo.Context) error {
	uid := currentUserID(c)
	if uid == 0 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	vehicles, err := h.Sessions.Vehicles.ListByUser(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	type parkedResp struct {
		VehicleID    uint64   `json:"vehicle_id"`
		LicensePlate string   `json:"license_plate"`
		Spot         spotResp `json:"spot"`
	}
	out := make([]parkedResp, 0)
	for _, v := range vehicles {
		if !v.IsParked {
			continue
		}
		sp, err := h.Sessions.Spots.FindByVehicle(ctx, v.ID)
		if err != nil {
			// Flag without a spot is repaired on the next end attempt.
			continue
		}
		out = append(out, parkedResp{VehicleID: v.ID, LicensePlate: v.LicensePlate, Spot: toSpotResp(sp)})
	}
	return c.JSON(http.StatusOK, echo.Map{"parked": out})
}

// MyHistory lists the caller's completed sessions, newest first.
func (h *ParkingHandler) MyHistory(c echo.Context) error {
	uid := currentUserID(c)
	if uid == 0 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	records, err := h.History.ListByUser(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]historyResp, 0, len(records))
	for _, rec := range records {
		out = append(out, toHistoryResp(rec))
	}
	return c.JSON(http.StatusOK, echo.Map{"history": out})
}
