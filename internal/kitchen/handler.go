package kitchen

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/telemetry"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/comandaclub/comanda/internal/fault"
	"github.com/comandaclub/comanda/pkg/enums/queuestatus"
)

type Handler struct {
	queue  *Queue
	board  *BoardCache
	logger apt.Logger
	config *apt.Config
	tlm    *telemetry.HTTP
}

func NewHandler(queue *Queue, config *apt.Config, logger apt.Logger) *Handler {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &Handler{
		queue:  queue,
		logger: logger,
		config: config,
		tlm:    telemetry.NewHTTP(),
	}
}

// SetBoardCache attaches the warmed board cache backing the board view.
func (h *Handler) SetBoardCache(board *BoardCache) {
	h.board = board
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/kitchen/entries", func(r chi.Router) {
		r.Get("/", h.ListEntries)
		r.Get("/{id}", h.GetEntry)
		r.Patch("/{id}/start", h.StartEntry)
		r.Patch("/{id}/ready", h.ReadyEntry)
		r.Patch("/{id}/serve", h.ServeEntry)
	})
	r.Get("/kitchen/board", h.Board)
}

// Board serves the expo view from the in-memory cache, grouped by status.
func (h *Handler) Board(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.Board")
	defer finish()

	if h.board == nil {
		apt.RespondError(w, http.StatusServiceUnavailable, "Board not available")
		return
	}

	apt.Respond(w, http.StatusOK, map[string]interface{}{
		"pending":     h.board.ByStatus(queuestatus.Statuses.Pending.Name),
		"in_progress": h.board.ByStatus(queuestatus.Statuses.InProgress.Name),
		"ready":       h.board.ByStatus(queuestatus.Statuses.Ready.Name),
	}, nil)
}

func (h *Handler) log(r *http.Request) apt.Logger {
	return h.logger.With("request_id", apt.RequestIDFrom(r.Context()))
}

func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListEntries")
	defer finish()
	log := h.log(r)
	ctx := r.Context()

	filter := EntryFilter{}

	if orderStr := r.URL.Query().Get("order"); orderStr != "" {
		orderID, err := uuid.Parse(orderStr)
		if err != nil {
			apt.RespondError(w, http.StatusBadRequest, "Invalid order parameter")
			return
		}
		filter.OrderID = &orderID
	}

	if status := r.URL.Query().Get("status"); status != "" {
		filter.Status = &status
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 0 {
			apt.RespondError(w, http.StatusBadRequest, "Invalid limit parameter")
			return
		}
		filter.Limit = limit
	}

	entries, err := h.queue.List(ctx, filter)
	if err != nil {
		log.Error("cannot list kitchen entries", "error", err)
		apt.RespondError(w, http.StatusInternalServerError, "Could not list kitchen entries")
		return
	}

	apt.RespondCollection(w, entries, "kitchen-entry")
}

func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetEntry")
	defer finish()
	log := h.log(r)
	ctx := r.Context()

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apt.RespondError(w, http.StatusBadRequest, "Invalid entry ID")
		return
	}

	entry, err := h.queue.Get(ctx, id)
	if err != nil {
		if errors.Is(err, fault.ErrNotFound) {
			apt.RespondError(w, http.StatusNotFound, "Entry not found")
			return
		}
		log.Error("cannot find entry", "entry_id", id.String(), "error", err)
		apt.RespondError(w, http.StatusInternalServerError, "Could not find entry")
		return
	}

	apt.RespondSuccess(w, entry)
}

func (h *Handler) StartEntry(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.StartEntry")
	defer finish()
	h.runTransition(w, r, "start", h.queue.Start)
}

func (h *Handler) ReadyEntry(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ReadyEntry")
	defer finish()
	h.runTransition(w, r, "ready", h.queue.MarkReady)
}

func (h *Handler) ServeEntry(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ServeEntry")
	defer finish()
	h.runTransition(w, r, "serve", h.queue.Serve)
}

func (h *Handler) runTransition(w http.ResponseWriter, r *http.Request, action string,
	op func(ctx context.Context, entryID uuid.UUID) (*QueueEntry, error),
) {
	log := h.log(r)
	ctx := r.Context()

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apt.RespondError(w, http.StatusBadRequest, "Invalid entry ID")
		return
	}

	entry, err := op(ctx, id)
	if err != nil {
		if errors.Is(err, fault.ErrNotFound) {
			apt.RespondError(w, http.StatusNotFound, "Entry not found")
			return
		}
		log.Info("entry transition rejected", "action", action, "entry_id", id.String(), "error", err)
		apt.RespondError(w, fault.HTTPStatus(err), err.Error())
		return
	}

	apt.RespondSuccess(w, entry)
}
