package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/telemetry"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/comandaclub/comanda/internal/fault"
)

const MaxBodyBytes = 1 << 20

// default window for the expiring-batches list, in hours
const defaultExpiryWindowHours = 48

type Handler struct {
	repo   BatchRepo
	ledger *Ledger
	logger apt.Logger
	config *apt.Config
	tlm    *telemetry.HTTP
}

func NewHandler(repo BatchRepo, ledger *Ledger, config *apt.Config, logger apt.Logger) *Handler {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &Handler{
		repo:   repo,
		ledger: ledger,
		logger: logger,
		config: config,
		tlm:    telemetry.NewHTTP(),
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/inventory", func(r chi.Router) {
		r.Post("/batches", h.AddBatch)
		r.Get("/batches", h.ListBatches)
		r.Get("/batches/expiring", h.ListExpiring)
		r.Get("/low-stock", h.ListLowStock)
		r.Patch("/batches/{id}/adjust", h.AdjustBatch)
		r.Post("/reserve", h.Reserve)
		r.Post("/release", h.Release)
		r.Post("/consume", h.Consume)
	})
}

func (h *Handler) log(r *http.Request) apt.Logger {
	return h.logger.With("request_id", apt.RequestIDFrom(r.Context()))
}

type BatchCreateRequest struct {
	IngredientID uuid.UUID       `json:"ingredient_id"`
	Quantity     decimal.Decimal `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	ExpiresAt    time.Time       `json:"expires_at"`
	ReceivedAt   time.Time       `json:"received_at"`
}

func (h *Handler) AddBatch(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.AddBatch")
	defer finish()
	log := h.log(r)
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)

	var req BatchCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apt.RespondError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	batch := NewBatch()
	batch.IngredientID = req.IngredientID
	batch.Quantity = req.Quantity
	batch.UnitPrice = req.UnitPrice
	batch.ExpiresAt = req.ExpiresAt
	batch.ReceivedAt = req.ReceivedAt

	if err := h.ledger.AddBatch(ctx, batch); err != nil {
		var ve *fault.ValidationError
		if errors.As(err, &ve) {
			apt.RespondError(w, http.StatusBadRequest, ve.Problems[0])
			return
		}
		log.Error("cannot create batch", "error", err)
		apt.RespondError(w, http.StatusInternalServerError, "Could not create batch")
		return
	}

	links := apt.RESTfulLinksFor(batch)
	w.WriteHeader(http.StatusCreated)
	apt.RespondSuccess(w, batch, links...)
}

func (h *Handler) ListBatches(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListBatches")
	defer finish()
	log := h.log(r)
	ctx := r.Context()

	var batches []*Batch
	var err error

	if ingredientStr := r.URL.Query().Get("ingredient"); ingredientStr != "" {
		ingredientID, parseErr := uuid.Parse(ingredientStr)
		if parseErr != nil {
			apt.RespondError(w, http.StatusBadRequest, "Invalid ingredient parameter")
			return
		}
		batches, err = h.repo.ListByIngredient(ctx, ingredientID)
	} else {
		batches, err = h.repo.List(ctx)
	}

	if err != nil {
		log.Error("cannot list batches", "error", err)
		apt.RespondError(w, http.StatusInternalServerError, "Could not list batches")
		return
	}

	apt.RespondCollection(w, batches, "batch")
}

func (h *Handler) ListExpiring(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListExpiring")
	defer finish()
	log := h.log(r)
	ctx := r.Context()

	hours := defaultExpiryWindowHours
	if hoursStr := r.URL.Query().Get("within_hours"); hoursStr != "" {
		parsed, parseErr := strconv.Atoi(hoursStr)
		if parseErr != nil || parsed <= 0 {
			apt.RespondError(w, http.StatusBadRequest, "Invalid within_hours parameter")
			return
		}
		hours = parsed
	}

	batches, err := h.ledger.ListExpiring(ctx, time.Duration(hours)*time.Hour)
	if err != nil {
		log.Error("cannot list expiring batches", "error", err)
		apt.RespondError(w, http.StatusInternalServerError, "Could not list expiring batches")
		return
	}

	apt.RespondCollection(w, batches, "batch")
}

func (h *Handler) ListLowStock(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListLowStock")
	defer finish()
	log := h.log(r)
	ctx := r.Context()

	levels, err := h.ledger.ListLowStock(ctx)
	if err != nil {
		log.Error("cannot compute stock levels", "error", err)
		apt.RespondError(w, http.StatusInternalServerError, "Could not compute stock levels")
		return
	}

	apt.Respond(w, http.StatusOK, map[string]interface{}{
		"ingredients": levels,
	}, nil)
}

type BatchAdjustRequest struct {
	Delta decimal.Decimal `json:"delta"`
}

func (h *Handler) AdjustBatch(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.AdjustBatch")
	defer finish()
	log := h.log(r)
	ctx := r.Context()

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apt.RespondError(w, http.StatusBadRequest, "Invalid batch ID")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)

	var req BatchAdjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apt.RespondError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	batch, err := h.ledger.Adjust(ctx, id, req.Delta)
	if err != nil {
		if errors.Is(err, fault.ErrNotFound) {
			apt.RespondError(w, http.StatusNotFound, "Batch not found")
			return
		}
		log.Info("batch adjustment rejected", "batch_id", id.String(), "error", err)
		apt.RespondError(w, fault.HTTPStatus(err), err.Error())
		return
	}

	apt.RespondSuccess(w, batch)
}

type StockOpRequest struct {
	OrderID      uuid.UUID       `json:"order_id"`
	IngredientID uuid.UUID       `json:"ingredient_id"`
	Quantity     decimal.Decimal `json:"quantity"`
}

func (h *Handler) Reserve(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.Reserve")
	defer finish()
	h.runStockOp(w, r, "reserve", h.ledger.Reserve)
}

func (h *Handler) Release(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.Release")
	defer finish()
	h.runStockOp(w, r, "release", h.ledger.Release)
}

func (h *Handler) Consume(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.Consume")
	defer finish()
	h.runStockOp(w, r, "consume", h.ledger.Consume)
}

func (h *Handler) runStockOp(w http.ResponseWriter, r *http.Request, action string,
	op func(ctx context.Context, orderID, ingredientID uuid.UUID, qty decimal.Decimal) error,
) {
	log := h.log(r)
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)

	var req StockOpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apt.RespondError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	if err := op(ctx, req.OrderID, req.IngredientID, req.Quantity); err != nil {
		log.Info("stock operation rejected", "action", action,
			"order_id", req.OrderID.String(), "ingredient_id", req.IngredientID.String(), "error", err)
		apt.RespondError(w, fault.HTTPStatus(err), err.Error())
		return
	}

	apt.Respond(w, http.StatusOK, map[string]interface{}{
		"action":        action,
		"order_id":      req.OrderID.String(),
		"ingredient_id": req.IngredientID.String(),
		"quantity":      req.Quantity.String(),
	}, nil)
}
