package stock

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/warelane/warelane/internal/platform/httpx"
	"github.com/warelane/warelane/internal/shared"
)

// Handler wires HTTP endpoints for the stock module.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the stock handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers stock routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/transactions", h.createTransaction)
	r.Get("/transactions/{id}", h.getTransaction)
	r.Post("/transactions/{id}/undo", h.undoTransaction)
	r.Get("/on-hand", h.onHand)
	r.Get("/card", h.stockCard)
}

func (h *Handler) createTransaction(w http.ResponseWriter, r *http.Request) {
	var req CreateTransactionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	actor := shared.ActorFromContext(r.Context())
	tx, err := h.service.Create(r.Context(), req.ToInput(actor))
	if err != nil {
		h.logger.Warn("create transaction failed",
			slog.String("type", req.Type),
			slog.String("warehouse", req.WarehouseCode),
			slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.logger.Info("transaction committed",
		slog.Int64("id", tx.ID),
		slog.String("type", string(tx.Type)),
		slog.Int("lines", len(tx.Lines)))
	httpx.JSON(w, http.StatusCreated, tx)
}

func (h *Handler) getTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "transaction id must be numeric")
		return
	}
	tx, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, tx)
}

func (h *Handler) undoTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "transaction id must be numeric")
		return
	}
	actor := shared.ActorFromContext(r.Context())
	reversal, err := h.service.Undo(r.Context(), id, actor)
	if err != nil {
		h.logger.Warn("undo transaction failed", slog.Int64("id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.logger.Info("transaction reversed", slog.Int64("original", id), slog.Int64("reversal", reversal.ID))
	httpx.JSON(w, http.StatusCreated, reversal)
}

func (h *Handler) onHand(w http.ResponseWriter, r *http.Request) {
	filter, err := parseOnHandFilter(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	rows, err := h.service.OnHand(r.Context(), filter)
	if err != nil {
		h.logger.Error("list on-hand", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"rows": rows})
}

func (h *Handler) stockCard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := MovementFilter{}
	var err error
	if filter.WarehouseID, err = strconv.ParseInt(q.Get("warehouse_id"), 10, 64); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "warehouse_id is required")
		return
	}
	filter.LocationID, _ = strconv.ParseInt(q.Get("location_id"), 10, 64)
	filter.ProductID, _ = strconv.ParseInt(q.Get("product_id"), 10, 64)
	if from := q.Get("from"); from != "" {
		if filter.From, err = time.Parse("2006-01-02", from); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "from must be YYYY-MM-DD")
			return
		}
	}
	if to := q.Get("to"); to != "" {
		toDate, err := time.Parse("2006-01-02", to)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "to must be YYYY-MM-DD")
			return
		}
		filter.To = toDate.Add(24*time.Hour - time.Nanosecond)
	}
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))

	var (
		entries []MovementEntry
		rows    []OnHandRow
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		entries, err = h.service.Movements(ctx, filter)
		return err
	})
	g.Go(func() error {
		var err error
		rows, err = h.service.OnHand(ctx, OnHandFilter{
			WarehouseID: filter.WarehouseID,
			LocationID:  filter.LocationID,
			ProductID:   filter.ProductID,
		})
		return err
	})
	if err := g.Wait(); err != nil {
		h.logger.Error("load stock card", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"on_hand": rows, "entries": entries})
}

func parseOnHandFilter(r *http.Request) (OnHandFilter, error) {
	q := r.URL.Query()
	warehouseID, err := strconv.ParseInt(q.Get("warehouse_id"), 10, 64)
	if err != nil || warehouseID <= 0 {
		return OnHandFilter{}, fmt.Errorf("warehouse_id is required")
	}
	filter := OnHandFilter{WarehouseID: warehouseID}
	filter.LocationID, _ = strconv.ParseInt(q.Get("location_id"), 10, 64)
	filter.ProductID, _ = strconv.ParseInt(q.Get("product_id"), 10, 64)
	return filter, nil
}
