package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/segyhp/loan-importer/internal/domain"
	"github.com/segyhp/loan-importer/internal/lifecycle"
	"github.com/segyhp/loan-importer/internal/logger"
	"github.com/segyhp/loan-importer/internal/status"
	apperrors "github.com/segyhp/loan-importer/pkg/errors"
	"github.com/segyhp/loan-importer/pkg/response"
)

type SummaryReader interface {
	LastSummary(ctx context.Context, route string) (*domain.RunSummary, error)
}

type Refresher interface {
	Refresh(ctx context.Context, routeName string) (*lifecycle.Result, error)
}

type ImportHandler struct {
	summaries SummaryReader
	refresher Refresher
	logger    logger.Logger
	validator *validator.Validate
}

func NewImportHandler(summaries SummaryReader, refresher Refresher, log logger.Logger) *ImportHandler {
	return &ImportHandler{
		summaries: summaries,
		refresher: refresher,
		logger:    log,
		validator: validator.New(),
	}
}

// SummaryResponse adds the reconciliation verdict to a stored summary.
type SummaryResponse struct {
	*domain.RunSummary
	Processed  int  `json:"processed"`
	Reconciled bool `json:"reconciled"`
}

func (h *ImportHandler) routeParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	route := mux.Vars(r)["route"]
	if err := h.validator.Var(route, "required,max=64,printascii"); err != nil {
		response.BadRequest(w, "Invalid route name", err)
		return "", false
	}
	return route, true
}

// GetSummary returns the last import summary of a route.
func (h *ImportHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	route, ok := h.routeParam(w, r)
	if !ok {
		return
	}

	summary, err := h.summaries.LastSummary(r.Context(), route)
	if errors.Is(err, status.ErrNoSummary) {
		response.NotFound(w, "No import recorded for route "+route)
		return
	}
	if err != nil {
		h.logger.Error("Failed to read import summary", map[string]interface{}{
			"route": route,
			"error": err.Error(),
		})
		response.InternalServerError(w, "Failed to read import summary", err)
		return
	}

	response.Success(w, SummaryResponse{
		RunSummary: summary,
		Processed:  summary.Processed(),
		Reconciled: summary.Reconciled(),
	})
}

// Refresh re-runs the lifecycle pass of a route.
func (h *ImportHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	route, ok := h.routeParam(w, r)
	if !ok {
		return
	}

	result, err := h.refresher.Refresh(r.Context(), route)
	if errors.Is(err, apperrors.ErrRouteNotFound) {
		response.NotFound(w, "Route "+route+" does not exist")
		return
	}
	if err != nil {
		h.logger.Error("Lifecycle refresh failed", map[string]interface{}{
			"route": route,
			"error": err.Error(),
		})
		response.InternalServerError(w, "Lifecycle refresh failed", err)
		return
	}

	response.Success(w, result)
}
