package handler

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"soulbound/internal/oracle/models"
	dErrors "soulbound/pkg/domain-errors"
)

// fakeService records requests and returns a scripted outcome.
type fakeService struct {
	lastReq *models.RedeemRequest
	resp    *models.RedeemResponse
	err     error
}

func (f *fakeService) Redeem(_ context.Context, req *models.RedeemRequest) (*models.RedeemResponse, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func newRedeemRouter(svc *fakeService) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := New(svc, logger)
	r := chi.NewRouter()
	h.Register(r)
	return r
}

func redeemBody(t *testing.T) []byte {
	t.Helper()
	body, err := json.Marshal(models.RedeemRequest{
		IssuerID: "oracle.human",
		Claim: models.Claim{
			Recipient:  "alice.near",
			ClassID:    "verified-human-v1",
			ExternalID: "claim-001",
			IssuedAt:   time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC).Unix(),
		},
		Signature: base64.StdEncoding.EncodeToString(make([]byte, 64)),
	})
	require.NoError(t, err)
	return body
}

func TestHandleRedeem(t *testing.T) {
	t.Run("successful redemption", func(t *testing.T) {
		expiry := time.Date(2026, 2, 2, 12, 0, 0, 0, time.UTC)
		svc := &fakeService{resp: &models.RedeemResponse{TokenID: 42, ExpiresAt: &expiry}}
		router := newRedeemRouter(svc)

		req := httptest.NewRequest(http.MethodPost, "/oracle/redeem", bytes.NewReader(redeemBody(t)))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusCreated, rec.Code)
		var resp models.RedeemResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, uint64(42), resp.TokenID)
		require.NotNil(t, resp.ExpiresAt)
		assert.True(t, expiry.Equal(*resp.ExpiresAt))

		require.NotNil(t, svc.lastReq)
		assert.Equal(t, "oracle.human", svc.lastReq.IssuerID)
		assert.Equal(t, "claim-001", svc.lastReq.Claim.ExternalID)
	})

	t.Run("malformed body", func(t *testing.T) {
		router := newRedeemRouter(&fakeService{})
		req := httptest.NewRequest(http.MethodPost, "/oracle/redeem", bytes.NewReader([]byte("{not json")))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("invalid request rejected before the service", func(t *testing.T) {
		svc := &fakeService{}
		router := newRedeemRouter(svc)
		body, err := json.Marshal(models.RedeemRequest{IssuerID: "oracle.human"})
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodPost, "/oracle/redeem", bytes.NewReader(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Nil(t, svc.lastReq)
	})

	t.Run("error status mapping", func(t *testing.T) {
		cases := []struct {
			code   dErrors.Code
			status int
		}{
			{dErrors.CodeInvalidSignature, http.StatusUnauthorized},
			{dErrors.CodeClaimExpired, http.StatusUnprocessableEntity},
			{dErrors.CodeReplayedClaim, http.StatusConflict},
			{dErrors.CodeQuotaExceeded, http.StatusTooManyRequests},
			{dErrors.CodeDuplicateActiveToken, http.StatusConflict},
			{dErrors.CodeForbidden, http.StatusForbidden},
			{dErrors.CodeInternal, http.StatusInternalServerError},
		}
		for _, tc := range cases {
			t.Run(string(tc.code), func(t *testing.T) {
				svc := &fakeService{err: dErrors.New(tc.code, "rejected")}
				router := newRedeemRouter(svc)

				req := httptest.NewRequest(http.MethodPost, "/oracle/redeem", bytes.NewReader(redeemBody(t)))
				rec := httptest.NewRecorder()
				router.ServeHTTP(rec, req)

				assert.Equal(t, tc.status, rec.Code)
				var resp struct {
					Error string `json:"error"`
				}
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
				assert.Equal(t, string(tc.code), resp.Error)
			})
		}
	})
}
