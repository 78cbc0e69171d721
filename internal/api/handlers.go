package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/h1w0xxx/chiralgrid/internal/challenge"
	"github.com/h1w0xxx/chiralgrid/internal/library"
	"github.com/h1w0xxx/chiralgrid/internal/molfile"
)

// maxMolBytes bounds the body of /api/analyze.
const maxMolBytes = 1 << 20

// ChallengeService is the part of *challenge.Service the handlers use.
type ChallengeService interface {
	Start(ctx context.Context) (*challenge.Challenge, error)
	Verify(ctx context.Context, id string, selections []string) (bool, error)
	Analyze(ctx context.Context, text string) (*challenge.Report, error)
}

// Handler holds API route handlers.
type Handler struct {
	svc    ChallengeService
	logger *slog.Logger
}

func NewHandler(svc ChallengeService, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Start handles GET|POST /api/challenge/start.
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Start(r.Context())
	switch {
	case errors.Is(err, challenge.ErrNoStereocenters), errors.Is(err, library.ErrEmpty):
		writeJSON(w, http.StatusServiceUnavailable, errorBody(err.Error()))
		return
	case err != nil:
		h.logger.Error("start challenge failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}

	writeJSON(w, http.StatusOK, StartResponse{
		UUID:    c.ID,
		Image:   "data:image/png;base64," + base64.StdEncoding.EncodeToString(c.Image),
		Regions: c.Regions,
	})
}

// Verify handles POST /api/challenge/verify.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid json"))
		return
	}
	if req.UUID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("uuid is required"))
		return
	}

	ok, err := h.svc.Verify(r.Context(), req.UUID, req.Selections)
	switch {
	case errors.Is(err, challenge.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("uuid not found"))
		return
	case err != nil:
		h.logger.Error("verify challenge failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}

	if !ok {
		writeJSON(w, http.StatusOK, VerifyResponse{Success: false, Message: "verification failed"})
		return
	}
	writeJSON(w, http.StatusOK, VerifyResponse{Success: true, Message: "verification passed"})
}

// Analyze handles POST /api/analyze. The body is one MOL record.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxMolBytes))
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorBody("body too large"))
		return
	}

	report, err := h.svc.Analyze(r.Context(), string(body))
	var fe *molfile.FormatError
	switch {
	case errors.As(err, &fe):
		writeJSON(w, http.StatusBadRequest, errorBody(fe.Error()))
		return
	case err != nil:
		h.logger.Error("analyze failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, report)
}
