package order

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/telemetry"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/comandaclub/comanda/internal/fault"
)

const MaxBodyBytes = 1 << 20

const defaultPageSize = 50

type Handler struct {
	workflow *Workflow
	logger   apt.Logger
	config   *apt.Config
	tlm      *telemetry.HTTP
}

func NewHandler(workflow *Workflow, config *apt.Config, logger apt.Logger) *Handler {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &Handler{
		workflow: workflow,
		logger:   logger,
		config:   config,
		tlm:      telemetry.NewHTTP(),
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Post("/", h.CreateOrder)
		r.Get("/", h.ListOrders)
		r.Get("/{id}", h.GetOrder)
		r.Get("/{id}/items", h.ListItems)
		r.Post("/{id}/items", h.AddItem)
		r.Delete("/{id}/items/{itemID}", h.RemoveItem)
		r.Post("/{id}/send", h.SendToKitchen)
		r.Patch("/{id}/ready", h.ReadyOrder)
		r.Patch("/{id}/deliver", h.DeliverOrder)
		r.Post("/{id}/close", h.CloseOrder)
		r.Post("/{id}/cancel", h.CancelOrder)
	})
}

func (h *Handler) log(r *http.Request) apt.Logger {
	return h.logger.With("request_id", apt.RequestIDFrom(r.Context()))
}

type OrderCreateRequest struct {
	TableID  uuid.UUID `json:"table_id"`
	WaiterID uuid.UUID `json:"waiter_id"`
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.CreateOrder")
	defer finish()
	log := h.log(r)
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)

	var req OrderCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apt.RespondError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	order, err := h.workflow.Open(ctx, req.TableID, req.WaiterID)
	if err != nil {
		h.respondFailure(w, log, "cannot open order", err)
		return
	}

	links := apt.RESTfulLinksFor(order)
	w.WriteHeader(http.StatusCreated)
	apt.RespondSuccess(w, order, links...)
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListOrders")
	defer finish()
	log := h.log(r)
	ctx := r.Context()

	filter := OrderFilter{Limit: defaultPageSize}

	if status := r.URL.Query().Get("status"); status != "" {
		filter.Status = &status
	}
	if tableStr := r.URL.Query().Get("table"); tableStr != "" {
		tableID, err := uuid.Parse(tableStr)
		if err != nil {
			apt.RespondError(w, http.StatusBadRequest, "Invalid table parameter")
			return
		}
		filter.TableID = &tableID
	}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 0 {
			apt.RespondError(w, http.StatusBadRequest, "Invalid limit parameter")
			return
		}
		filter.Limit = limit
	}
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil || offset < 0 {
			apt.RespondError(w, http.StatusBadRequest, "Invalid offset parameter")
			return
		}
		filter.Offset = offset
	}

	orders, err := h.workflow.List(ctx, filter)
	if err != nil {
		log.Error("cannot list orders", "error", err)
		apt.RespondError(w, http.StatusInternalServerError, "Could not list orders")
		return
	}

	apt.RespondCollection(w, orders, "order")
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetOrder")
	defer finish()
	log := h.log(r)
	ctx := r.Context()

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apt.RespondError(w, http.StatusBadRequest, "Invalid order ID")
		return
	}

	order, err := h.workflow.Get(ctx, id)
	if err != nil {
		h.respondFailure(w, log, "cannot find order", err)
		return
	}

	apt.RespondSuccess(w, order)
}

func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListItems")
	defer finish()
	log := h.log(r)
	ctx := r.Context()

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apt.RespondError(w, http.StatusBadRequest, "Invalid order ID")
		return
	}

	items, err := h.workflow.Items(ctx, id)
	if err != nil {
		h.respondFailure(w, log, "cannot list order items", err)
		return
	}

	apt.RespondCollection(w, items, "order-item")
}

type ItemAddRequest struct {
	DishID   uuid.UUID `json:"dish_id"`
	Quantity int       `json:"quantity"`
	Note     string    `json:"note"`
}

func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.AddItem")
	defer finish()
	log := h.log(r)
	ctx := r.Context()

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apt.RespondError(w, http.StatusBadRequest, "Invalid order ID")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)

	var req ItemAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apt.RespondError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	item, err := h.workflow.AddItem(ctx, id, req.DishID, req.Quantity, req.Note)
	if err != nil {
		h.respondFailure(w, log, "cannot add item", err)
		return
	}

	links := apt.RESTfulLinksFor(item)
	w.WriteHeader(http.StatusCreated)
	apt.RespondSuccess(w, item, links...)
}

func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.RemoveItem")
	defer finish()
	log := h.log(r)
	ctx := r.Context()

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apt.RespondError(w, http.StatusBadRequest, "Invalid order ID")
		return
	}
	itemID, err := uuid.Parse(chi.URLParam(r, "itemID"))
	if err != nil {
		apt.RespondError(w, http.StatusBadRequest, "Invalid item ID")
		return
	}

	if err := h.workflow.RemoveItem(ctx, id, itemID); err != nil {
		h.respondFailure(w, log, "cannot remove item", err)
		return
	}

	apt.Respond(w, http.StatusOK, map[string]interface{}{
		"order_id": id.String(),
		"item_id":  itemID.String(),
		"removed":  true,
	}, nil)
}

func (h *Handler) SendToKitchen(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.SendToKitchen")
	defer finish()
	h.runTransition(w, r, "send", h.workflow.SendToKitchen)
}

func (h *Handler) ReadyOrder(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ReadyOrder")
	defer finish()
	h.runTransition(w, r, "ready", h.workflow.MarkReady)
}

func (h *Handler) DeliverOrder(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.DeliverOrder")
	defer finish()
	h.runTransition(w, r, "deliver", h.workflow.MarkDelivered)
}

func (h *Handler) CloseOrder(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.CloseOrder")
	defer finish()
	h.runTransition(w, r, "close", h.workflow.Close)
}

func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.CancelOrder")
	defer finish()
	h.runTransition(w, r, "cancel", h.workflow.Cancel)
}

func (h *Handler) runTransition(w http.ResponseWriter, r *http.Request, action string,
	op func(ctx context.Context, orderID uuid.UUID) (*Order, error),
) {
	log := h.log(r)
	ctx := r.Context()

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apt.RespondError(w, http.StatusBadRequest, "Invalid order ID")
		return
	}

	order, err := op(ctx, id)
	if err != nil {
		log.Info("order transition rejected", "action", action, "order_id", id.String(), "error", err)
		apt.RespondError(w, fault.HTTPStatus(err), err.Error())
		return
	}

	apt.RespondSuccess(w, order)
}

func (h *Handler) respondFailure(w http.ResponseWriter, log apt.Logger, msg string, err error) {
	var ve *fault.ValidationError
	switch {
	case errors.As(err, &ve):
		apt.RespondError(w, http.StatusBadRequest, ve.Problems[0])
	case errors.Is(err, fault.ErrNotFound):
		apt.RespondError(w, http.StatusNotFound, "Not found")
	default:
		status := fault.HTTPStatus(err)
		if status == http.StatusInternalServerError {
			log.Error(msg, "error", err)
			apt.RespondError(w, status, "Internal error")
			return
		}
		apt.RespondError(w, status, err.Error())
	}
}
