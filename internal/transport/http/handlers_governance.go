package httptransport

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	jwttoken "soulbound/internal/jwt_token"
	dErrors "soulbound/pkg/domain-errors"
	"soulbound/pkg/platform/httputil"
	"soulbound/pkg/requestcontext"
)

const (
	defaultSessionTTL = time.Hour
	maxSessionTTL     = 24 * time.Hour
)

// governanceSessions issues delegated governance bearer tokens. Reaching
// it already requires governance credentials, so operators holding the
// shared admin token can hand out scoped short-lived access.
type governanceSessions struct {
	tokens *jwttoken.Service
	logger *slog.Logger
}

func newGovernanceSessions(tokens *jwttoken.Service, logger *slog.Logger) *governanceSessions {
	return &governanceSessions{tokens: tokens, logger: logger}
}

func (h *governanceSessions) Register(r chi.Router) {
	r.Post("/governance/session", h.handleCreateSession)
}

type sessionRequest struct {
	Actor      string `json:"actor"`
	TTLSeconds int64  `json:"ttl_seconds,omitempty"`
}

func (r *sessionRequest) Normalize() {
	r.Actor = strings.TrimSpace(r.Actor)
}

func (r *sessionRequest) Validate() error {
	if r.Actor == "" {
		return dErrors.New(dErrors.CodeValidation, "actor is required")
	}
	if r.TTLSeconds < 0 {
		return dErrors.New(dErrors.CodeValidation, "ttl_seconds must not be negative")
	}
	if time.Duration(r.TTLSeconds)*time.Second > maxSessionTTL {
		return dErrors.New(dErrors.CodeValidation, "ttl_seconds exceeds the maximum session length")
	}
	return nil
}

type sessionResponse struct {
	Token     string    `json:"token"`
	Actor     string    `json:"actor"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (h *governanceSessions) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[sessionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	ttl := defaultSessionTTL
	if req.TTLSeconds > 0 {
		ttl = time.Duration(req.TTLSeconds) * time.Second
	}

	token, err := h.tokens.Issue(req.Actor, ttl)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to issue governance token",
			"actor", req.Actor,
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to issue token"))
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, sessionResponse{
		Token:     token,
		Actor:     req.Actor,
		ExpiresAt: time.Now().Add(ttl).UTC(),
	})
}
