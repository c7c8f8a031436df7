package count

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/warelane/warelane/internal/platform/httpx"
	"github.com/warelane/warelane/internal/shared"
)

// Handler wires HTTP endpoints for cycle counting.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the count handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers count routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.startSession)
	r.Get("/", h.listReports)
	r.Get("/{id}", h.getReport)
	r.Post("/{id}/locations/{code}/start", h.startLocation)
	r.Post("/{id}/locations/{code}/scan", h.scanItem)
	r.Post("/{id}/locations/{code}/save", h.saveLocation)
	r.Post("/{id}/finalize", h.finalize)
}

// StartSessionRequest opens a count session.
type StartSessionRequest struct {
	WarehouseCode string `json:"warehouse_code" validate:"required"`
}

// ScanItemRequest counts one scanned unit.
type ScanItemRequest struct {
	Code string `json:"code" validate:"required"`
}

func (h *Handler) startSession(w http.ResponseWriter, r *http.Request) {
	var req StartSessionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	actor := shared.ActorFromContext(r.Context())
	report, err := h.service.StartSession(r.Context(), req.WarehouseCode, actor)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.logger.Info("count session started",
		slog.String("session", report.ID),
		slog.String("warehouse", req.WarehouseCode))
	httpx.JSON(w, http.StatusCreated, report)
}

func (h *Handler) startLocation(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	code := chi.URLParam(r, "code")
	result, err := h.service.StartLocation(r.Context(), sessionID, code)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.logger.Info("count location started",
		slog.String("session", sessionID),
		slog.String("location", code),
		slog.Int("expected_items", len(result.Items)))
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) scanItem(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	locationCode := chi.URLParam(r, "code")
	var req ScanItemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	item, err := h.service.ScanItem(r.Context(), sessionID, locationCode, req.Code)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) saveLocation(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	code := chi.URLParam(r, "code")
	result, err := h.service.SaveLocation(r.Context(), sessionID, code)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.logger.Info("count location saved",
		slog.String("session", sessionID),
		slog.String("location", code),
		slog.Float64("variance", result.TotalVariance))
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) finalize(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	actor := shared.ActorFromContext(r.Context())
	report, err := h.service.Finalize(r.Context(), sessionID, actor)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.logger.Info("count session finalized",
		slog.String("session", sessionID),
		slog.Int("locations", len(report.Locations)),
		slog.Float64("variance", report.TotalVariance))
	httpx.JSON(w, http.StatusCreated, report)
}

func (h *Handler) getReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) listReports(w http.ResponseWriter, r *http.Request) {
	warehouseID, err := strconv.ParseInt(r.URL.Query().Get("warehouse_id"), 10, 64)
	if err != nil || warehouseID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "warehouse_id is required")
		return
	}
	reports, err := h.service.List(r.Context(), warehouseID)
	if err != nil {
		h.logger.Error("list count reports", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"reports": reports})
}

// respondError maps count session errors onto problem responses before
// falling back to the shared mapping.
func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrNoActiveLocation):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		httpx.RespondError(w, err)
	}
}
