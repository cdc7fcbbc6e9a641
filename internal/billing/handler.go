package billing

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/telemetry"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/comandaclub/comanda/internal/fault"
)

const MaxBodyBytes = 1 << 20

type Handler struct {
	finalizer *Finalizer
	logger    apt.Logger
	config    *apt.Config
	tlm       *telemetry.HTTP
}

func NewHandler(finalizer *Finalizer, config *apt.Config, logger apt.Logger) *Handler {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &Handler{
		finalizer: finalizer,
		logger:    logger,
		config:    config,
		tlm:       telemetry.NewHTTP(),
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/bills", func(r chi.Router) {
		r.Post("/", h.FinalizeBill)
		r.Get("/order/{orderID}", h.GetBillByOrder)
	})
}

func (h *Handler) log(r *http.Request) apt.Logger {
	return h.logger.With("request_id", apt.RequestIDFrom(r.Context()))
}

type FinalizeRequest struct {
	OrderID  uuid.UUID `json:"order_id"`
	Discount string    `json:"discount,omitempty"`
	Notes    string    `json:"notes,omitempty"`
}

func (h *Handler) FinalizeBill(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.FinalizeBill")
	defer finish()
	log := h.log(r)
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)

	var req FinalizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apt.RespondError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	if req.OrderID == uuid.Nil {
		apt.RespondError(w, http.StatusBadRequest, "order_id is required")
		return
	}

	discount := decimal.Zero
	if req.Discount != "" {
		var err error
		discount, err = decimal.NewFromString(req.Discount)
		if err != nil {
			apt.RespondError(w, http.StatusBadRequest, "Invalid discount amount")
			return
		}
	}

	bill, err := h.finalizer.Finalize(ctx, req.OrderID, discount, req.Notes)
	if err != nil {
		status := fault.HTTPStatus(err)
		if status == http.StatusInternalServerError {
			log.Error("cannot finalize bill", "order_id", req.OrderID.String(), "error", err)
			apt.RespondError(w, status, "Internal error")
			return
		}
		log.Info("bill rejected", "order_id", req.OrderID.String(), "error", err)
		apt.RespondError(w, status, err.Error())
		return
	}

	links := apt.RESTfulLinksFor(bill)
	w.WriteHeader(http.StatusCreated)
	apt.RespondSuccess(w, bill, links...)
}

func (h *Handler) GetBillByOrder(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetBillByOrder")
	defer finish()
	log := h.log(r)
	ctx := r.Context()

	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		apt.RespondError(w, http.StatusBadRequest, "Invalid order ID")
		return
	}

	bill, err := h.finalizer.ByOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, fault.ErrNotFound) {
			apt.RespondError(w, http.StatusNotFound, "No bill for order")
			return
		}
		log.Error("cannot get bill", "order_id", orderID.String(), "error", err)
		apt.RespondError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	apt.RespondSuccess(w, bill)
}
