package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"
)

// DomainErrorsSuite tests the domain error primitives.
//
// Justification: These are core error primitives used at every trust boundary.
// Unit tests ensure invariants like "wrapped domain errors preserve original code"
// and "errors.Is matches by code" are maintained.
type DomainErrorsSuite struct {
	suite.Suite
}

func TestDomainErrorsSuite(t *testing.T) {
	suite.Run(t, new(DomainErrorsSuite))
}

func (s *DomainErrorsSuite) TestErrorInterface() {
	s.Run("returns message when present", func() {
		err := &Error{Code: CodeNotFound, Message: "token not found"}
		s.Equal("token not found", err.Error())
	})

	s.Run("returns code when message is empty", func() {
		err := &Error{Code: CodeReplayedClaim}
		s.Equal("replayed_claim", err.Error())
	})
}

func (s *DomainErrorsSuite) TestUnwrap() {
	s.Run("returns wrapped error", func() {
		inner := errors.New("database connection failed")
		err := &Error{Code: CodeInternal, Message: "store error", Err: inner}
		s.Equal(inner, err.Unwrap())
	})

	s.Run("returns nil when no wrapped error", func() {
		err := &Error{Code: CodeNotFound, Message: "not found"}
		s.Nil(err.Unwrap())
	})
}

func (s *DomainErrorsSuite) TestIsMatching() {
	s.Run("matches by code only", func() {
		err1 := &Error{Code: CodeQuotaExceeded, Message: "issuer quota for class-a exhausted"}
		err2 := &Error{Code: CodeQuotaExceeded, Message: "issuer quota for class-b exhausted"}
		s.True(err1.Is(err2))
	})

	s.Run("does not match different codes", func() {
		err1 := &Error{Code: CodeClaimExpired}
		err2 := &Error{Code: CodeReplayedClaim}
		s.False(err1.Is(err2))
	})

	s.Run("does not match non-domain errors", func() {
		err1 := &Error{Code: CodeNotFound}
		s.False(err1.Is(errors.New("not found")))
	})
}

func (s *DomainErrorsSuite) TestWrapPreservesCode() {
	s.Run("wrapping a domain error keeps the original code", func() {
		inner := New(CodeDuplicateActiveToken, "active token exists")
		wrapped := Wrap(inner, CodeInternal, "mint rejected")
		s.True(HasCode(wrapped, CodeDuplicateActiveToken))
		s.False(HasCode(wrapped, CodeInternal))
	})

	s.Run("wrapping a plain error applies the new code", func() {
		wrapped := Wrap(fmt.Errorf("connection reset"), CodeInternal, "store unavailable")
		s.True(HasCode(wrapped, CodeInternal))
	})

	s.Run("wrapped error remains reachable via errors.Is", func() {
		inner := errors.New("root cause")
		wrapped := Wrap(inner, CodeInternal, "wrapped")
		s.True(errors.Is(wrapped, inner))
	})
}

func (s *DomainErrorsSuite) TestCodeOf() {
	s.Run("returns code for domain errors", func() {
		s.Equal(CodeInvalidSignature, CodeOf(New(CodeInvalidSignature, "bad sig")))
	})

	s.Run("returns internal for plain errors", func() {
		s.Equal(CodeInternal, CodeOf(errors.New("boom")))
	})
}
