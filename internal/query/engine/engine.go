package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	directoryModel "soulbound/internal/directory/models"
	"soulbound/internal/platform/config"
	"soulbound/internal/query/expr"
	"soulbound/internal/registry/models"
	id "soulbound/pkg/domain"
	dErrors "soulbound/pkg/domain-errors"
	"soulbound/pkg/requestcontext"
)

// TokenReader is the slice of registry storage the query engine reads.
// The engine holds no state of its own.
type TokenReader interface {
	ActiveByOwnerClass(ctx context.Context, owner id.AccountID, classID id.ClassID, now time.Time) ([]*models.Token, error)
}

// IssuerReader resolves issuer ban status for the retroactive ban policy.
type IssuerReader interface {
	Get(ctx context.Context, issuerID id.IssuerID) (*directoryModel.Issuer, error)
}

// Engine answers class-membership and boolean class-expression queries.
// All evaluation uses the request time fixed at call start, so a single
// query sees one consistent snapshot.
type Engine struct {
	tokens  TokenReader
	issuers IssuerReader
	policy  config.BanPolicy
	logger  *slog.Logger
}

type Option func(e *Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// New constructs an Engine. The issuer reader is only consulted under the
// retroactive ban policy.
func New(tokens TokenReader, issuers IssuerReader, policy config.BanPolicy, opts ...Option) (*Engine, error) {
	if tokens == nil {
		return nil, errors.New("query engine requires a token reader")
	}
	if policy == config.BanPolicyRetroactive && issuers == nil {
		return nil, errors.New("retroactive ban policy requires an issuer reader")
	}
	e := &Engine{
		tokens:  tokens,
		issuers: issuers,
		policy:  policy,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// HasClass reports whether the owner holds at least one active token of
// the class. Under the retroactive ban policy, tokens from currently
// banned issuers do not count.
func (e *Engine) HasClass(ctx context.Context, owner id.AccountID, classID id.ClassID) (bool, error) {
	now := requestcontext.Now(ctx)
	tokens, err := e.tokens.ActiveByOwnerClass(ctx, owner, classID, now)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read tokens")
	}
	if e.policy != config.BanPolicyRetroactive {
		return len(tokens) > 0, nil
	}
	for _, token := range tokens {
		banned, err := e.issuerBanned(ctx, token.IssuerID)
		if err != nil {
			return false, err
		}
		if !banned {
			return true, nil
		}
	}
	return false, nil
}

// Satisfies evaluates a boolean class expression for the owner using
// HasClass as the atomic predicate. Short-circuits left to right and
// never mutates state.
func (e *Engine) Satisfies(ctx context.Context, owner id.AccountID, expression *expr.Expr) (bool, error) {
	if expression == nil {
		return false, dErrors.New(dErrors.CodeValidation, "expression is required")
	}
	return expression.Eval(ctx, func(ctx context.Context, classID id.ClassID) (bool, error) {
		return e.HasClass(ctx, owner, classID)
	})
}

func (e *Engine) issuerBanned(ctx context.Context, issuerID id.IssuerID) (bool, error) {
	issuer, err := e.issuers.Get(ctx, issuerID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			// A token from an unregistered issuer should not exist;
			// treat it as invisible rather than failing the query.
			e.logger.WarnContext(ctx, "token references unknown issuer", "issuer_id", issuerID.String())
			return true, nil
		}
		return false, err
	}
	return issuer.Banned, nil
}
