package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	registrycontract "soulbound/contracts/registry"
	"soulbound/internal/query/expr"
	id "soulbound/pkg/domain"
	dErrors "soulbound/pkg/domain-errors"
	"soulbound/pkg/platform/httputil"
	"soulbound/pkg/requestcontext"
)

// Engine defines the query operations the view endpoints expose.
type Engine interface {
	HasClass(ctx context.Context, owner id.AccountID, classID id.ClassID) (bool, error)
	Satisfies(ctx context.Context, owner id.AccountID, expression *expr.Expr) (bool, error)
}

// Handler serves the read-only class query endpoints.
type Handler struct {
	engine Engine
	logger *slog.Logger
}

func New(engine Engine, logger *slog.Logger) *Handler {
	return &Handler{engine: engine, logger: logger}
}

// Register mounts the query routes. No authentication; queries are view
// calls over public ledger state.
func (h *Handler) Register(r chi.Router) {
	r.Get("/query/has-class", h.handleHasClass)
	r.Post("/query/satisfies", h.handleSatisfies)
}

func (h *Handler) handleHasClass(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	owner, err := id.ParseAccountID(r.URL.Query().Get("owner"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	classID, err := id.ParseClassID(r.URL.Query().Get("class"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	holds, err := h.engine.HasClass(ctx, owner, classID)
	if err != nil {
		h.writeEngineError(ctx, w, "has_class", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, registrycontract.HasClassResult{
		Owner:   owner.String(),
		ClassID: classID.String(),
		Holds:   holds,
	})
}

type satisfiesRequest struct {
	Owner      string          `json:"owner"`
	Expression json.RawMessage `json:"expression"`
}

type satisfiesResponse struct {
	Owner     string `json:"owner"`
	Satisfied bool   `json:"satisfied"`
}

func (h *Handler) handleSatisfies(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req satisfiesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	owner, err := id.ParseAccountID(req.Owner)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if len(req.Expression) == 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "expression is required"))
		return
	}
	expression, err := expr.Parse(req.Expression)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	satisfied, err := h.engine.Satisfies(ctx, owner, expression)
	if err != nil {
		h.writeEngineError(ctx, w, "satisfies", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, satisfiesResponse{
		Owner:     owner.String(),
		Satisfied: satisfied,
	})
}

func (h *Handler) writeEngineError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	if dErrors.HasCode(err, dErrors.CodeInternal) {
		h.logger.ErrorContext(ctx, "query failed",
			"operation", op,
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
	}
	httputil.WriteError(w, err)
}
