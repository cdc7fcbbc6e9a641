package tables

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/telemetry"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/comandaclub/comanda/internal/fault"
)

const MaxBodyBytes = 1 << 20

type Handler struct {
	repo     TableRepo
	registry *Registry
	logger   apt.Logger
	config   *apt.Config
	tlm      *telemetry.HTTP
}

func NewHandler(repo TableRepo, registry *Registry, config *apt.Config, logger apt.Logger) *Handler {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &Handler{
		repo:     repo,
		registry: registry,
		logger:   logger,
		config:   config,
		tlm:      telemetry.NewHTTP(),
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/tables", func(r chi.Router) {
		r.Post("/", h.CreateTable)
		r.Get("/", h.ListTables)
		r.Get("/{id}", h.GetTable)
		r.Patch("/{id}/reserve", h.ReserveTable)
		r.Patch("/{id}/free", h.FreeTable)
	})
}

func (h *Handler) log(r *http.Request) apt.Logger {
	return h.logger.With("request_id", apt.RequestIDFrom(r.Context()))
}

type TableCreateRequest struct {
	Number   string `json:"number"`
	Capacity int    `json:"capacity"`
}

func (h *Handler) CreateTable(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.CreateTable")
	defer finish()
	log := h.log(r)
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)

	var req TableCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apt.RespondError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	if problems := ValidateTableCreate(ctx, req); len(problems) > 0 {
		apt.RespondError(w, http.StatusBadRequest, problems[0])
		return
	}

	if existing, err := h.repo.GetByNumber(ctx, req.Number); err == nil && existing != nil {
		apt.RespondError(w, http.StatusConflict, "Table number already in use")
		return
	}

	table := NewTable()
	table.Number = req.Number
	table.Capacity = req.Capacity
	table.BeforeCreate()

	if err := h.repo.Create(ctx, table); err != nil {
		log.Error("cannot create table", "error", err)
		apt.RespondError(w, http.StatusInternalServerError, "Could not create table")
		return
	}

	links := apt.RESTfulLinksFor(table)
	w.WriteHeader(http.StatusCreated)
	apt.RespondSuccess(w, table, links...)
}

func (h *Handler) ListTables(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListTables")
	defer finish()
	log := h.log(r)
	ctx := r.Context()

	items, err := h.repo.List(ctx)
	if err != nil {
		log.Error("cannot list tables", "error", err)
		apt.RespondError(w, http.StatusInternalServerError, "Could not list tables")
		return
	}

	apt.RespondCollection(w, items, "table")
}

func (h *Handler) GetTable(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetTable")
	defer finish()
	log := h.log(r)
	ctx := r.Context()

	id, ok := h.parseIDParam(w, r)
	if !ok {
		return
	}

	table, err := h.repo.Get(ctx, id)
	if err != nil {
		log.Error("error loading table", "error", err, "id", id.String())
		apt.RespondError(w, http.StatusInternalServerError, "Could not load table")
		return
	}
	if table == nil {
		apt.RespondError(w, http.StatusNotFound, "Table not found")
		return
	}

	links := apt.RESTfulLinksFor(table)
	apt.RespondSuccess(w, table, links...)
}

func (h *Handler) ReserveTable(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ReserveTable")
	defer finish()
	h.runTransition(w, r, h.registry.Reserve)
}

func (h *Handler) FreeTable(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.FreeTable")
	defer finish()
	h.runTransition(w, r, h.registry.Free)
}

func (h *Handler) runTransition(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id uuid.UUID) error) {
	log := h.log(r)
	ctx := r.Context()

	id, ok := h.parseIDParam(w, r)
	if !ok {
		return
	}

	if err := op(ctx, id); err != nil {
		if errors.Is(err, fault.ErrNotFound) {
			apt.RespondError(w, http.StatusNotFound, "Table not found")
			return
		}
		log.Info("table transition rejected", "table_id", id.String(), "error", err)
		apt.RespondError(w, fault.HTTPStatus(err), err.Error())
		return
	}

	table, err := h.repo.Get(ctx, id)
	if err != nil || table == nil {
		apt.RespondError(w, http.StatusInternalServerError, "Could not reload table")
		return
	}

	apt.RespondSuccess(w, table)
}

func (h *Handler) parseIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apt.RespondError(w, http.StatusBadRequest, "Invalid table ID")
		return uuid.Nil, false
	}
	return id, true
}
