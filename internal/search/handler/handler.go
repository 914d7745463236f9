// Package handler exposes the index maintenance and prisoner lookup
// endpoints.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"prisoner-search/internal/search/models"
	id "prisoner-search/pkg/domain"
	dErrors "prisoner-search/pkg/domain-errors"
	"prisoner-search/pkg/platform/httputil"
)

// Lifecycle drives the two-slot index state machine.
type Lifecycle interface {
	Status(ctx context.Context) (models.IndexStatus, error)
	BuildIndex(ctx context.Context) (models.IndexStatus, error)
	MarkComplete(ctx context.Context) (models.IndexStatus, error)
	SwitchIndex(ctx context.Context) (models.SyncIndex, error)
	CountIndex(ctx context.Context, slot models.SyncIndex) (int64, error)
}

// Searcher reads prisoners from the live slot.
type Searcher interface {
	GetPrisoner(ctx context.Context, prisonerNumber id.PrisonerNumber) (*models.Prisoner, error)
}

// Populator fills the building slot from the system of record.
type Populator interface {
	PopulateIndex(ctx context.Context) (int64, error)
}

// Handler handles the search service's HTTP surface.
type Handler struct {
	logger    *slog.Logger
	lifecycle Lifecycle
	searcher  Searcher
	populator Populator
}

// New creates a Handler.
func New(lifecycle Lifecycle, searcher Searcher, populator Populator, logger *slog.Logger) *Handler {
	return &Handler{
		logger:    logger,
		lifecycle: lifecycle,
		searcher:  searcher,
		populator: populator,
	}
}

// Register mounts the routes on the chi router.
func (h *Handler) Register(r chi.Router) {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(middleware.RequestID)
	router.Use(middleware.Timeout(30 * time.Second))

	router.Put("/maintain-index/build-index", h.handleBuildIndex)
	router.Put("/maintain-index/mark-complete", h.handleMarkComplete)
	router.Put("/maintain-index/switch-index", h.handleSwitchIndex)
	router.Get("/maintain-index/index-count", h.handleIndexCount)
	router.Get("/prisoner/{prisonerNumber}", h.handleGetPrisoner)

	r.Mount("/", router)
}

// handleBuildIndex starts a rebuild and kicks off population of the
// building slot in the background. The response reflects the state
// transition, not the population progress.
func (h *Handler) handleBuildIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	indexStatus, err := h.lifecycle.BuildIndex(ctx)
	if err != nil {
		h.logger.WarnContext(ctx, "build index rejected", "error", err.Error())
		httputil.WriteError(w, err)
		return
	}

	go func() {
		// Detached from the request: population outlives the HTTP call.
		bgCtx := context.Background()
		written, err := h.populator.PopulateIndex(bgCtx)
		if err != nil {
			h.logger.ErrorContext(bgCtx, "index population failed",
				"error", err.Error(),
				"documentsWritten", written,
			)
			return
		}
		h.logger.InfoContext(bgCtx, "index population finished", "documentsWritten", written)
	}()

	httputil.WriteJSON(w, http.StatusAccepted, indexStatus)
}

func (h *Handler) handleMarkComplete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	indexStatus, err := h.lifecycle.MarkComplete(ctx)
	if err != nil {
		h.logger.WarnContext(ctx, "mark complete rejected", "error", err.Error())
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, indexStatus)
}

func (h *Handler) handleSwitchIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	newSlot, err := h.lifecycle.SwitchIndex(ctx)
	if err != nil {
		h.logger.WarnContext(ctx, "switch index rejected", "error", err.Error())
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, switchResponse{CurrentIndex: newSlot})
}

type switchResponse struct {
	CurrentIndex models.SyncIndex `json:"currentIndex"`
}

type indexCountResponse struct {
	Status models.IndexStatus         `json:"status"`
	Counts map[models.SyncIndex]int64 `json:"counts"`
}

func (h *Handler) handleIndexCount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	indexStatus, err := h.lifecycle.Status(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	counts := make(map[models.SyncIndex]int64, 2)
	for _, slot := range []models.SyncIndex{models.IndexA, models.IndexB} {
		count, err := h.lifecycle.CountIndex(ctx, slot)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		counts[slot] = count
	}

	httputil.WriteJSON(w, http.StatusOK, indexCountResponse{
		Status: indexStatus,
		Counts: counts,
	})
}

func (h *Handler) handleGetPrisoner(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	prisonerNumber, err := id.ParsePrisonerNumber(chi.URLParam(r, "prisonerNumber"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	prisoner, err := h.searcher.GetPrisoner(ctx, prisonerNumber)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if prisoner == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "prisoner not found"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, prisoner)
}
