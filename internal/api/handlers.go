package api

import (
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/robometric/robotdiff/internal/adapter"
	"github.com/robometric/robotdiff/internal/apperr"
)

var errBadRequest = errors.New("bad request")

// Handler holds API route handlers.
type Handler struct {
	svc *Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Compare handles POST /api/compare.
//
//	@Summary		Compare two robot model files
//	@Tags			compare
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CompareRequest	true	"Comparison request"
//	@Success		200		{object}	compare.Result
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/compare [post]
func (h *Handler) Compare(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req CompareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}

	res, err := h.svc.Compare(r.Context(), req)
	if err != nil {
		var parseErr *apperr.ParseError
		var scopeErr *apperr.ComparisonScopeError
		var formatErr *apperr.FormatDetectionError
		switch {
		case errors.Is(err, errBadRequest):
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		case errors.As(err, &formatErr):
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		case errors.As(err, &parseErr), errors.As(err, &scopeErr):
			writeJSON(w, http.StatusUnprocessableEntity, errorBody(err.Error()))
		case errors.Is(err, fs.ErrNotExist):
			writeJSON(w, http.StatusNotFound, errorBody("model file not found"))
		default:
			slog.Error("compare failed",
				slog.String("path_a", req.PathA),
				slog.String("path_b", req.PathB),
				slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Formats handles GET /api/formats.
//
//	@Summary		List supported model formats
//	@Tags			compare
//	@Produce		json
//	@Success		200	{object}	FormatsResponse
//	@Security		BearerAuth
//	@Router			/formats [get]
func (h *Handler) Formats(w http.ResponseWriter, _ *http.Request) {
	formats := adapter.Formats()
	names := make([]string, len(formats))
	for i, f := range formats {
		names[i] = string(f)
	}
	writeJSON(w, http.StatusOK, FormatsResponse{Formats: names})
}
