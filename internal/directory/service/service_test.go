package service

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"soulbound/internal/directory/models"
	"soulbound/internal/directory/store"
	id "soulbound/pkg/domain"
	dErrors "soulbound/pkg/domain-errors"
)

type DirectoryServiceSuite struct {
	suite.Suite
	ctx context.Context
	svc *Service
}

func (s *DirectoryServiceSuite) SetupTest() {
	s.ctx = context.Background()
	svc, err := New(store.NewMemory())
	s.Require().NoError(err)
	s.svc = svc
}

func TestDirectoryServiceSuite(t *testing.T) {
	suite.Run(t, new(DirectoryServiceSuite))
}

func TestNew_RequiresStore(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
}

func (s *DirectoryServiceSuite) register(issuerID string) string {
	resp, err := s.svc.Register(s.ctx, &models.RegisterIssuerRequest{IssuerID: issuerID})
	s.Require().NoError(err)
	s.Require().True(resp.Created)
	s.Require().NotEmpty(resp.APIKey)
	return resp.APIKey
}

func (s *DirectoryServiceSuite) TestRegister() {
	s.Run("returns api key exactly once", func() {
		resp, err := s.svc.Register(s.ctx, &models.RegisterIssuerRequest{IssuerID: "gov.university"})
		s.Require().NoError(err)
		s.True(resp.Created)
		s.NotEmpty(resp.APIKey)

		again, err := s.svc.Register(s.ctx, &models.RegisterIssuerRequest{IssuerID: "gov.university"})
		s.Require().NoError(err)
		s.False(again.Created)
		s.Empty(again.APIKey)
	})

	s.Run("rejects malformed issuer id", func() {
		_, err := s.svc.Register(s.ctx, &models.RegisterIssuerRequest{IssuerID: "Not Valid!"})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("stores verification key and claim ttl", func() {
		pub, _, err := ed25519.GenerateKey(nil)
		s.Require().NoError(err)

		_, err = s.svc.Register(s.ctx, &models.RegisterIssuerRequest{
			IssuerID:        "oracle.kyc",
			VerificationKey: base64.StdEncoding.EncodeToString(pub),
			ClaimTTLSeconds: 600,
		})
		s.Require().NoError(err)

		issuer, err := s.svc.Get(s.ctx, id.IssuerID("oracle.kyc"))
		s.Require().NoError(err)
		s.Equal(pub, issuer.VerificationKey)
		s.Equal(10*time.Minute, issuer.ClaimTTL)
	})

	s.Run("rejects undersized verification key", func() {
		_, err := s.svc.Register(s.ctx, &models.RegisterIssuerRequest{
			IssuerID:        "oracle.short",
			VerificationKey: base64.StdEncoding.EncodeToString([]byte("short")),
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *DirectoryServiceSuite) TestAuthorize() {
	s.register("gov.university")

	s.Run("grants a class quota", func() {
		err := s.svc.Authorize(s.ctx, id.IssuerID("gov.university"), &models.AuthorizeRequest{
			ClassID: "degree",
			Quota:   3,
		})
		s.Require().NoError(err)

		issuer, err := s.svc.Get(s.ctx, id.IssuerID("gov.university"))
		s.Require().NoError(err)
		grant := issuer.Grant(id.ClassID("degree"))
		s.Require().NotNil(grant)
		s.EqualValues(3, grant.Quota)
	})

	s.Run("unknown issuer returns not found", func() {
		err := s.svc.Authorize(s.ctx, id.IssuerID("nobody"), &models.AuthorizeRequest{ClassID: "degree"})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("negative quota is rejected", func() {
		err := s.svc.Authorize(s.ctx, id.IssuerID("gov.university"), &models.AuthorizeRequest{
			ClassID: "degree",
			Quota:   -1,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *DirectoryServiceSuite) TestRevokeAuthorization() {
	s.register("gov.university")
	s.Require().NoError(s.svc.Authorize(s.ctx, id.IssuerID("gov.university"), &models.AuthorizeRequest{ClassID: "degree"}))

	s.Run("removes the grant", func() {
		err := s.svc.RevokeAuthorization(s.ctx, id.IssuerID("gov.university"), id.ClassID("degree"))
		s.Require().NoError(err)

		_, err = s.svc.CheckMintAuthorization(s.ctx, id.IssuerID("gov.university"), id.ClassID("degree"))
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("missing grant returns not found", func() {
		err := s.svc.RevokeAuthorization(s.ctx, id.IssuerID("gov.university"), id.ClassID("degree"))
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *DirectoryServiceSuite) TestBan() {
	s.register("gov.university")
	s.Require().NoError(s.svc.Authorize(s.ctx, id.IssuerID("gov.university"), &models.AuthorizeRequest{ClassID: "degree"}))

	s.Run("banned issuer cannot mint", func() {
		s.Require().NoError(s.svc.Ban(s.ctx, id.IssuerID("gov.university")))

		_, err := s.svc.CheckMintAuthorization(s.ctx, id.IssuerID("gov.university"), id.ClassID("degree"))
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("unban restores authorization", func() {
		s.Require().NoError(s.svc.Unban(s.ctx, id.IssuerID("gov.university")))

		_, err := s.svc.CheckMintAuthorization(s.ctx, id.IssuerID("gov.university"), id.ClassID("degree"))
		s.NoError(err)
	})

	s.Run("banning unknown issuer returns not found", func() {
		err := s.svc.Ban(s.ctx, id.IssuerID("nobody"))
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *DirectoryServiceSuite) TestQuota() {
	s.register("gov.university")
	s.Require().NoError(s.svc.Authorize(s.ctx, id.IssuerID("gov.university"), &models.AuthorizeRequest{
		ClassID: "degree",
		Quota:   1,
	}))

	s.Run("consume past the limit returns quota exceeded", func() {
		s.Require().NoError(s.svc.ConsumeQuota(s.ctx, id.IssuerID("gov.university"), id.ClassID("degree")))

		err := s.svc.ConsumeQuota(s.ctx, id.IssuerID("gov.university"), id.ClassID("degree"))
		s.True(dErrors.HasCode(err, dErrors.CodeQuotaExceeded))
	})

	s.Run("refund makes the unit available again", func() {
		s.Require().NoError(s.svc.RefundQuota(s.ctx, id.IssuerID("gov.university"), id.ClassID("degree")))
		s.NoError(s.svc.ConsumeQuota(s.ctx, id.IssuerID("gov.university"), id.ClassID("degree")))
	})

	s.Run("consume without grant returns forbidden", func() {
		err := s.svc.ConsumeQuota(s.ctx, id.IssuerID("gov.university"), id.ClassID("other"))
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})
}

func (s *DirectoryServiceSuite) TestVerifyAPIKey() {
	apiKey := s.register("gov.university")

	s.Run("accepts the issued key", func() {
		s.NoError(s.svc.VerifyAPIKey(s.ctx, id.IssuerID("gov.university"), apiKey))
	})

	s.Run("rejects a wrong key", func() {
		err := s.svc.VerifyAPIKey(s.ctx, id.IssuerID("gov.university"), "not-the-key")
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("rejects unknown issuer", func() {
		err := s.svc.VerifyAPIKey(s.ctx, id.IssuerID("nobody"), apiKey)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func (s *DirectoryServiceSuite) TestClaimTTL() {
	issuer := &models.Issuer{ClaimTTL: time.Minute}
	s.Equal(time.Minute, s.svc.ClaimTTL(issuer, time.Hour))
	s.Equal(time.Hour, s.svc.ClaimTTL(&models.Issuer{}, time.Hour))
	s.Equal(time.Hour, s.svc.ClaimTTL(nil, time.Hour))
}
