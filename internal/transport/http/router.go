// Package httptransport assembles the HTTP surface: route wiring, the
// middleware chain, and operational endpoints. Domain behavior lives in
// the per-context handlers; this package only composes them.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	directoryHandler "soulbound/internal/directory/handler"
	jwttoken "soulbound/internal/jwt_token"
	oracleHandler "soulbound/internal/oracle/handler"
	"soulbound/internal/platform/middleware"
	queryHandler "soulbound/internal/query/handler"
	registryHandler "soulbound/internal/registry/handler"
	"soulbound/pkg/platform/httputil"
	"soulbound/pkg/platform/middleware/admin"
	"soulbound/pkg/platform/middleware/request"
	"soulbound/pkg/platform/middleware/requesttime"
)

// Deps carries everything the router composes. Handlers are required;
// optional fields degrade the corresponding surface instead of failing.
type Deps struct {
	Logger *slog.Logger

	Registry  *registryHandler.Handler
	Directory *directoryHandler.Handler
	Oracle    *oracleHandler.Handler
	Query     *queryHandler.Handler

	// IssuerVerifier authenticates the direct minting endpoints.
	IssuerVerifier middleware.IssuerKeyVerifier

	// AdminToken gates governance. Empty disables the governance surface.
	AdminToken string
	// GovTokens issues and validates delegated governance bearer tokens.
	// Nil limits governance auth to the shared admin token.
	GovTokens *jwttoken.Service

	MaxBodyBytes int64

	// Health checks run by /healthz, keyed by dependency name.
	Health map[string]func(context.Context) error
}

// NewRouter builds the full route tree.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(middleware.Logger(deps.Logger))
	if deps.MaxBodyBytes > 0 {
		r.Use(request.BodyLimit(deps.MaxBodyBytes))
	}

	r.Get("/healthz", healthHandler(deps.Health))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Read surface. View calls over public state, no authentication.
	r.Group(func(r chi.Router) {
		deps.Registry.RegisterViewRoutes(r)
		deps.Query.Register(r)
	})

	// Claim redemption. The claim signature is the credential.
	deps.Oracle.Register(r)

	// Direct minting, authenticated by issuer API key.
	r.Group(func(r chi.Router) {
		r.Use(middleware.IssuerAuth(deps.IssuerVerifier, deps.Logger))
		deps.Registry.RegisterIssuerRoutes(r)
	})

	// Governance surface. Absent an admin token it is not mounted at all.
	if deps.AdminToken != "" {
		r.Group(func(r chi.Router) {
			var bearer admin.BearerValidator
			if deps.GovTokens != nil {
				bearer = jwttoken.NewAdapter(deps.GovTokens)
			}
			r.Use(admin.RequireGovernance(deps.AdminToken, bearer, deps.Logger))

			deps.Directory.Register(r)
			deps.Registry.RegisterGovernanceRoutes(r)
			if deps.GovTokens != nil {
				sessions := newGovernanceSessions(deps.GovTokens, deps.Logger)
				sessions.Register(r)
			}
		})
	}

	return r
}

func healthHandler(checks map[string]func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		status := http.StatusOK
		result := make(map[string]string, len(checks)+1)
		result["status"] = "ok"
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				result["status"] = "degraded"
				result[name] = err.Error()
				continue
			}
			result[name] = "ok"
		}
		httputil.WriteJSON(w, status, result)
	}
}
