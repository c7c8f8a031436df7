package container

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/warelane/warelane/internal/platform/httpx"
	"github.com/warelane/warelane/internal/shared"
	"github.com/warelane/warelane/internal/stock"
)

// Handler wires HTTP endpoints for the container module.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the container handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers container routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/{barcode}", h.get)
	r.Post("/{barcode}/open", h.open)
}

// CreateContainerRequest is the wire shape for container creation.
type CreateContainerRequest struct {
	Type          string         `json:"type" validate:"required,oneof=BOX PALLET"`
	WarehouseCode string         `json:"warehouse_code" validate:"required"`
	Contents      []ContentInput `json:"contents" validate:"required,min=1,dive"`
}

// OpenResponse pairs the opened container with the inbound movement it posted.
type OpenResponse struct {
	Container   Container         `json:"container"`
	Transaction stock.Transaction `json:"transaction"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateContainerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	actor := shared.ActorFromContext(r.Context())
	created, err := h.service.Create(r.Context(), CreateInput{
		Type:          Type(req.Type),
		WarehouseCode: req.WarehouseCode,
		Actor:         actor,
		Contents:      req.Contents,
	})
	if err != nil {
		h.logger.Warn("create container failed",
			slog.String("type", req.Type),
			slog.String("warehouse", req.WarehouseCode),
			slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.logger.Info("container created",
		slog.String("barcode", created.Barcode),
		slog.Int("lines", len(created.Contents)))
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	barcode := chi.URLParam(r, "barcode")
	c, err := h.service.Get(r.Context(), barcode)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

// OpenContainerRequest carries the optional location hint for an open. The
// body may be absent entirely.
type OpenContainerRequest struct {
	LocationCode string `json:"location_code"`
}

func (h *Handler) open(w http.ResponseWriter, r *http.Request) {
	barcode := chi.URLParam(r, "barcode")
	var req OpenContainerRequest
	if r.ContentLength > 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
			return
		}
	}
	actor := shared.ActorFromContext(r.Context())
	opened, movement, err := h.service.Open(r.Context(), barcode, actor, req.LocationCode)
	if err != nil {
		h.logger.Warn("open container failed", slog.String("barcode", barcode), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.logger.Info("container opened",
		slog.String("barcode", barcode),
		slog.Int64("transaction", movement.ID))
	httpx.JSON(w, http.StatusOK, OpenResponse{Container: opened, Transaction: movement})
}
