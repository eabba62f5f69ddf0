package jwttoken

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "soulbound/pkg/domain-errors"
)

func TestIssueAndValidate(t *testing.T) {
	svc, err := NewService("test-signing-key")
	require.NoError(t, err)

	token, err := svc.Issue("ops@example", time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "ops@example", claims.Actor)
	assert.NotEmpty(t, claims.ID)
}

func TestValidate_ExpiredToken(t *testing.T) {
	svc, err := NewService("test-signing-key")
	require.NoError(t, err)

	token, err := svc.Issue("ops@example", -time.Minute)
	require.NoError(t, err)

	_, err = svc.Validate(token)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestValidate_WrongKey(t *testing.T) {
	issuing, err := NewService("key-one")
	require.NoError(t, err)
	validating, err := NewService("key-two")
	require.NoError(t, err)

	token, err := issuing.Issue("ops@example", time.Hour)
	require.NoError(t, err)

	_, err = validating.Validate(token)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestValidate_Garbage(t *testing.T) {
	svc, err := NewService("test-signing-key")
	require.NoError(t, err)

	for _, token := range []string{"", "not-a-jwt", "aa.bb.cc"} {
		_, err := svc.Validate(token)
		require.Error(t, err)
	}
}

func TestNewService_RequiresKey(t *testing.T) {
	_, err := NewService("")
	require.Error(t, err)
}

func TestAdapter(t *testing.T) {
	svc, err := NewService("test-signing-key")
	require.NoError(t, err)
	adapter := NewAdapter(svc)

	token, err := svc.Issue("ops@example", time.Hour)
	require.NoError(t, err)

	actor, err := adapter.ValidateBearer(token)
	require.NoError(t, err)
	assert.Equal(t, "ops@example", actor)

	_, err = adapter.ValidateBearer("bogus")
	require.Error(t, err)
}
