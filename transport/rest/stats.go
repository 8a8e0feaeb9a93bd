package rest

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/rocketscienceinc/memory-game-backend/internal/apperror"
	"github.com/rocketscienceinc/memory-game-backend/internal/entity"
)

type statsGetter interface {
	BestStats(ctx context.Context, playerID string) (entity.BestStats, error)
	BestRecord(ctx context.Context, playerID string, gridSize int) (entity.BestRecord, error)
}

func (that *Server) handleBestStats(w http.ResponseWriter, r *http.Request) {
	playerID := chi.URLParam(r, "playerID")

	stats, err := that.stats.BestStats(r.Context(), playerID)
	if err != nil {
		that.logger.Error("failed to get best stats", "playerID", playerID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get best stats")
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

func (that *Server) handleBestRecord(w http.ResponseWriter, r *http.Request) {
	playerID := chi.URLParam(r, "playerID")

	gridSize, err := strconv.Atoi(chi.URLParam(r, "gridSize"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "grid size must be a number")
		return
	}

	record, err := that.stats.BestRecord(r.Context(), playerID, gridSize)
	switch {
	case errors.Is(err, apperror.ErrInvalidGridSize):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, apperror.ErrRecordNotFound):
		writeError(w, http.StatusNotFound, "no record for this grid size")
	case err != nil:
		that.logger.Error("failed to get best record", "playerID", playerID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get best record")
	default:
		writeJSON(w, http.StatusOK, record)
	}
}
