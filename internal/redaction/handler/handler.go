// Package handler exposes the redaction engine over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"veil/internal/redaction/models"
	dErrors "veil/pkg/domain-errors"
	"veil/pkg/platform/httputil"
	"veil/pkg/requestcontext"
)

// Service defines the interface for redaction operations.
type Service interface {
	Redact(ctx context.Context, req models.Request) (*models.Result, error)
}

// Handler handles the redaction endpoint.
type Handler struct {
	logger  *slog.Logger
	service Service
}

// New creates a new redaction Handler.
func New(service Service, logger *slog.Logger) *Handler {
	if service == nil {
		panic("handler.New: service is required")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{
		logger:  logger,
		service: service,
	}
}

// Register registers the redaction routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Options("/redact", h.handlePreflight)
	r.Post("/redact", h.handleRedact)
}

// handlePreflight answers OPTIONS requests the CORS middleware passed through.
func (h *Handler) handlePreflight(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRedact(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	body, ok := httputil.DecodeAndPrepare[RedactRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	req := body.ToModel()
	if err := bindViewer(ctx, &req); err != nil {
		h.logger.WarnContext(ctx, "viewer does not match token",
			"request_id", requestID,
			"viewer_role", req.ViewerRole,
		)
		httputil.WriteError(w, err)
		return
	}

	result, err := h.service.Redact(ctx, req)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInternal) {
			h.logger.ErrorContext(ctx, "redaction failed",
				"request_id", requestID,
				"entity_type", req.EntityType,
				"entity_id", req.EntityID,
				"error", err,
			)
		} else {
			h.logger.InfoContext(ctx, "redaction rejected",
				"request_id", requestID,
				"entity_type", req.EntityType,
				"entity_id", req.EntityID,
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}

	h.logger.DebugContext(ctx, "entity redacted",
		"request_id", requestID,
		"entity_type", req.EntityType,
		"entity_id", req.EntityID,
		"viewer_role", req.ViewerRole,
		"redactions_applied", len(result.Applied),
	)
	httputil.WriteJSON(w, http.StatusOK, newRedactResponse(req, result))
}

// bindViewer reconciles the body with an authenticated viewer, when bearer
// auth is enabled. The token role is authoritative; the token subject fills
// a missing viewer_id and must match a supplied one.
func bindViewer(ctx context.Context, req *models.Request) error {
	viewer, ok := requestcontext.ViewerFrom(ctx)
	if !ok {
		return nil
	}
	if req.ViewerRole != viewer.Role {
		return dErrors.New(dErrors.CodeForbidden, "viewer_role does not match the authenticated role")
	}
	switch {
	case req.ViewerID == "":
		req.ViewerID = viewer.ID
	case viewer.ID != "" && req.ViewerID != viewer.ID:
		return dErrors.New(dErrors.CodeForbidden, "viewer_id does not match the authenticated subject")
	}
	return nil
}
