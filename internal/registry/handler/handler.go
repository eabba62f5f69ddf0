package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	registrycontract "soulbound/contracts/registry"
	"soulbound/internal/registry/models"
	id "soulbound/pkg/domain"
	dErrors "soulbound/pkg/domain-errors"
	"soulbound/pkg/platform/httputil"
	"soulbound/pkg/requestcontext"
)

// defaultPageSize bounds tokens_of listings when the caller does not ask
// for a limit.
const defaultPageSize = 100

// Service defines the registry operations the HTTP surface exposes.
type Service interface {
	Mint(ctx context.Context, issuerID id.IssuerID, req *models.MintRequest) (*models.Token, error)
	Renew(ctx context.Context, issuerID id.IssuerID, tokenID id.TokenID) (*time.Time, error)
	Revoke(ctx context.Context, actor id.IssuerID, tokenID id.TokenID) error
	TokensOf(ctx context.Context, owner id.AccountID, fromID id.TokenID, limit int) ([]*models.Token, error)
	SupplyByIssuer(ctx context.Context, issuerID id.IssuerID) (int64, error)
	SupplyByOwner(ctx context.Context, owner id.AccountID) (int64, error)
	Sweep(ctx context.Context) (int64, error)
	CreateClass(ctx context.Context, req *models.CreateClassRequest) (*models.Class, error)
	ListClasses(ctx context.Context) ([]*models.Class, error)
}

// Handler serves the registry endpoints.
type Handler struct {
	registry Service
	logger   *slog.Logger
}

func New(registry Service, logger *slog.Logger) *Handler {
	return &Handler{registry: registry, logger: logger}
}

// RegisterIssuerRoutes mounts the minting endpoints. Callers wrap the
// router with issuer API key authentication.
func (h *Handler) RegisterIssuerRoutes(r chi.Router) {
	r.Post("/registry/mint", h.handleMint)
	r.Post("/registry/renew", h.handleRenew)
	r.Post("/registry/revoke", h.handleRevoke)
}

// RegisterViewRoutes mounts the read-only endpoints. No authentication;
// token records are public ledger state.
func (h *Handler) RegisterViewRoutes(r chi.Router) {
	r.Get("/registry/tokens/{owner}", h.handleTokensOf)
	r.Get("/registry/supply/issuer/{issuerID}", h.handleSupplyByIssuer)
	r.Get("/registry/supply/owner/{owner}", h.handleSupplyByOwner)
}

// RegisterGovernanceRoutes mounts the governance endpoints. Callers wrap
// the router with the admin token middleware.
func (h *Handler) RegisterGovernanceRoutes(r chi.Router) {
	r.Post("/governance/classes", h.handleCreateClass)
	r.Get("/governance/classes", h.handleListClasses)
	r.Post("/governance/sweep", h.handleSweep)
	r.Post("/governance/revoke", h.handleGovernanceRevoke)
}

func (h *Handler) handleMint(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	issuerID := requestcontext.IssuerID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.MintRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	token, err := h.registry.Mint(ctx, issuerID, req)
	if err != nil {
		h.writeServiceError(ctx, w, "mint", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, models.MintResponse{
		TokenID: uint64(token.ID),
		Expires: token.ExpiresAt,
	})
}

func (h *Handler) handleRenew(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	issuerID := requestcontext.IssuerID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.RenewRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	newExpiry, err := h.registry.Renew(ctx, issuerID, id.TokenID(req.TokenID))
	if err != nil {
		h.writeServiceError(ctx, w, "renew", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.RenewResponse{
		TokenID: req.TokenID,
		Expires: newExpiry,
	})
}

func (h *Handler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	issuerID := requestcontext.IssuerID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.RevokeRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if err := h.registry.Revoke(ctx, issuerID, id.TokenID(req.TokenID)); err != nil {
		h.writeServiceError(ctx, w, "revoke", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}

func (h *Handler) handleGovernanceRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.RevokeRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	// Nil actor marks governance; it may revoke any token.
	if err := h.registry.Revoke(ctx, id.IssuerID(""), id.TokenID(req.TokenID)); err != nil {
		h.writeServiceError(ctx, w, "governance revoke", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}

func (h *Handler) handleTokensOf(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	owner, err := id.ParseAccountID(chi.URLParam(r, "owner"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	fromID := id.TokenID(0)
	if raw := r.URL.Query().Get("from"); raw != "" {
		fromID, err = id.ParseTokenID(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
	}
	limit := defaultPageSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := id.ParseTokenID(raw)
		if err != nil || parsed == 0 || parsed > defaultPageSize {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "limit must be between 1 and 100"))
			return
		}
		limit = int(parsed)
	}

	// Fetch one extra record to learn whether a next page exists.
	tokens, err := h.registry.TokensOf(ctx, owner, fromID, limit+1)
	if err != nil {
		h.writeServiceError(ctx, w, "tokens_of", err)
		return
	}
	resp := models.TokensOfResponse{
		Owner:  owner.String(),
		Tokens: make([]registrycontract.TokenRecord, 0, len(tokens)),
	}
	if len(tokens) > limit {
		resp.NextFrom = uint64(tokens[limit].ID)
		tokens = tokens[:limit]
	}
	for _, token := range tokens {
		resp.Tokens = append(resp.Tokens, models.ToRecord(token))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleSupplyByIssuer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	issuerID, err := id.ParseIssuerID(chi.URLParam(r, "issuerID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	count, err := h.registry.SupplyByIssuer(ctx, issuerID)
	if err != nil {
		h.writeServiceError(ctx, w, "supply_by_issuer", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.SupplyResponse{Count: count})
}

func (h *Handler) handleSupplyByOwner(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	owner, err := id.ParseAccountID(chi.URLParam(r, "owner"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	count, err := h.registry.SupplyByOwner(ctx, owner)
	if err != nil {
		h.writeServiceError(ctx, w, "supply_by_owner", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.SupplyResponse{Count: count})
}

func (h *Handler) handleCreateClass(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.CreateClassRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	class, err := h.registry.CreateClass(ctx, req)
	if err != nil {
		h.writeServiceError(ctx, w, "create class", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toClassRecord(class))
}

func (h *Handler) handleListClasses(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	classes, err := h.registry.ListClasses(ctx)
	if err != nil {
		h.writeServiceError(ctx, w, "list classes", err)
		return
	}
	out := make([]registrycontract.ClassRecord, 0, len(classes))
	for _, class := range classes {
		out = append(out, toClassRecord(class))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"classes": out})
}

func (h *Handler) handleSweep(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	removed, err := h.registry.Sweep(ctx)
	if err != nil {
		h.writeServiceError(ctx, w, "sweep", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int64{"removed": removed})
}

func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	if dErrors.HasCode(err, dErrors.CodeInternal) {
		h.logger.ErrorContext(ctx, "registry operation failed",
			"operation", op,
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
	}
	httputil.WriteError(w, err)
}

func toClassRecord(class *models.Class) registrycontract.ClassRecord {
	record := registrycontract.ClassRecord{
		ClassID:       class.ID.String(),
		Stackable:     class.Stackable,
		MaxPerAccount: int(class.MaxSupplyPerAccount),
	}
	if class.DefaultValidity > 0 {
		record.DefaultValidity = class.DefaultValidity.String()
	}
	return record
}
