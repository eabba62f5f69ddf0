package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"soulbound/internal/oracle/models"
	dErrors "soulbound/pkg/domain-errors"
	"soulbound/pkg/platform/httputil"
	"soulbound/pkg/requestcontext"
)

// Service defines the redemption operation the endpoint exposes.
type Service interface {
	Redeem(ctx context.Context, req *models.RedeemRequest) (*models.RedeemResponse, error)
}

// Handler serves the claim redemption endpoint.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the redemption route. No issuer authentication: the
// claim signature is the credential, and anyone may relay a signed claim
// on the recipient's behalf.
func (h *Handler) Register(r chi.Router) {
	r.Post("/oracle/redeem", h.handleRedeem)
}

func (h *Handler) handleRedeem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.RedeemRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	resp, err := h.service.Redeem(ctx, req)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInternal) {
			h.logger.ErrorContext(ctx, "redeem failed",
				"issuer_id", req.IssuerID,
				"external_id", req.Claim.ExternalID,
				"request_id", requestID,
				"error", err.Error(),
			)
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, resp)
}
