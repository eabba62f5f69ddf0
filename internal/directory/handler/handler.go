package handler

import (
	"context"
	"log/slog"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"soulbound/internal/directory/models"
	id "soulbound/pkg/domain"
	dErrors "soulbound/pkg/domain-errors"
	"soulbound/pkg/platform/httputil"
	"soulbound/pkg/requestcontext"
)

// Service defines the directory operations the governance API exposes.
type Service interface {
	Register(ctx context.Context, req *models.RegisterIssuerRequest) (*models.RegisterIssuerResponse, error)
	Authorize(ctx context.Context, issuerID id.IssuerID, req *models.AuthorizeRequest) error
	RevokeAuthorization(ctx context.Context, issuerID id.IssuerID, classID id.ClassID) error
	Ban(ctx context.Context, issuerID id.IssuerID) error
	Unban(ctx context.Context, issuerID id.IssuerID) error
	Get(ctx context.Context, issuerID id.IssuerID) (*models.Issuer, error)
	List(ctx context.Context) ([]*models.Issuer, error)
}

// Handler serves the governance endpoints for issuer management.
type Handler struct {
	directory Service
	logger    *slog.Logger
}

func New(directory Service, logger *slog.Logger) *Handler {
	return &Handler{directory: directory, logger: logger}
}

// Register mounts the governance routes. Callers wrap the router with the
// admin token middleware.
func (h *Handler) Register(r chi.Router) {
	r.Route("/governance/issuers", func(r chi.Router) {
		r.Post("/", h.handleRegister)
		r.Get("/", h.handleList)
		r.Route("/{issuerID}", func(r chi.Router) {
			r.Get("/", h.handleGet)
			r.Post("/grants", h.handleAuthorize)
			r.Delete("/grants/{classID}", h.handleRevokeGrant)
			r.Post("/ban", h.handleBan)
			r.Post("/unban", h.handleUnban)
		})
	})
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.RegisterIssuerRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	resp, err := h.directory.Register(ctx, req)
	if err != nil {
		h.writeServiceError(ctx, w, "register issuer", err)
		return
	}
	status := http.StatusOK
	if resp.Created {
		status = http.StatusCreated
	}
	httputil.WriteJSON(w, status, resp)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	issuers, err := h.directory.List(ctx)
	if err != nil {
		h.writeServiceError(ctx, w, "list issuers", err)
		return
	}
	out := make([]models.IssuerResponse, 0, len(issuers))
	for _, issuer := range issuers {
		out = append(out, toIssuerResponse(issuer))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IssuerID < out[j].IssuerID })
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"issuers": out})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	issuerID, err := id.ParseIssuerID(chi.URLParam(r, "issuerID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	issuer, err := h.directory.Get(ctx, issuerID)
	if err != nil {
		h.writeServiceError(ctx, w, "get issuer", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toIssuerResponse(issuer))
}

func (h *Handler) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	issuerID, err := id.ParseIssuerID(chi.URLParam(r, "issuerID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.AuthorizeRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if err := h.directory.Authorize(ctx, issuerID, req); err != nil {
		h.writeServiceError(ctx, w, "authorize issuer", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "authorized"})
}

func (h *Handler) handleRevokeGrant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	issuerID, err := id.ParseIssuerID(chi.URLParam(r, "issuerID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	classID, err := id.ParseClassID(chi.URLParam(r, "classID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.directory.RevokeAuthorization(ctx, issuerID, classID); err != nil {
		h.writeServiceError(ctx, w, "revoke grant", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}

func (h *Handler) handleBan(w http.ResponseWriter, r *http.Request) {
	h.handleSetBan(w, r, true)
}

func (h *Handler) handleUnban(w http.ResponseWriter, r *http.Request) {
	h.handleSetBan(w, r, false)
}

func (h *Handler) handleSetBan(w http.ResponseWriter, r *http.Request, banned bool) {
	ctx := r.Context()

	issuerID, err := id.ParseIssuerID(chi.URLParam(r, "issuerID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if banned {
		err = h.directory.Ban(ctx, issuerID)
	} else {
		err = h.directory.Unban(ctx, issuerID)
	}
	if err != nil {
		h.writeServiceError(ctx, w, "update issuer ban", err)
		return
	}
	status := "unbanned"
	if banned {
		status = "banned"
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": status})
}

func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	if dErrors.HasCode(err, dErrors.CodeInternal) {
		h.logger.ErrorContext(ctx, "governance operation failed",
			"operation", op,
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
	}
	httputil.WriteError(w, err)
}

func toIssuerResponse(issuer *models.Issuer) models.IssuerResponse {
	grants := make([]models.GrantResponse, 0, len(issuer.Grants))
	for _, grant := range issuer.Grants {
		grants = append(grants, models.GrantResponse{
			ClassID:   grant.ClassID.String(),
			Quota:     grant.Quota,
			Used:      grant.Used,
			Remaining: grant.Remaining(),
		})
	}
	sort.Slice(grants, func(i, j int) bool { return grants[i].ClassID < grants[j].ClassID })
	return models.IssuerResponse{
		IssuerID:  issuer.ID.String(),
		Banned:    issuer.Banned,
		Grants:    grants,
		CreatedAt: issuer.CreatedAt,
	}
}
