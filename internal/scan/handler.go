package scan

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/warelane/warelane/internal/platform/httpx"
)

// Handler wires the scan endpoint.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the scan handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers scan routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.scan)
}

// ScanRequest is the wire shape of a scan.
type ScanRequest struct {
	Code          string `json:"code" validate:"required"`
	WarehouseCode string `json:"warehouse_code" validate:"required"`
}

func (h *Handler) scan(w http.ResponseWriter, r *http.Request) {
	var req ScanRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	result, err := h.service.Resolve(r.Context(), req.Code, req.WarehouseCode)
	if err != nil {
		h.logger.Error("scan resolve failed",
			slog.String("code", req.Code),
			slog.String("warehouse", req.WarehouseCode),
			slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.logger.Info("scan resolved",
		slog.String("code", req.Code),
		slog.String("result", string(result.Type)))
	httpx.JSON(w, http.StatusOK, result)
}
