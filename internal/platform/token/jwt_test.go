package token

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "verigate/pkg/domain"
	dErrors "verigate/pkg/domain-errors"
)

func newOrgID(t *testing.T) id.OrgID {
	t.Helper()
	orgID, err := id.ParseOrgID(uuid.New().String())
	require.NoError(t, err)
	return orgID
}

func TestGenerateAndValidate(t *testing.T) {
	svc := NewService("test-signing-key", "verigate", time.Hour)
	orgID := newOrgID(t)

	token, err := svc.GenerateToken(orgID)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, orgID.String(), claims.OrgID)
}

func TestValidateRejectsWrongKey(t *testing.T) {
	issuing := NewService("key-a", "verigate", time.Hour)
	validating := NewService("key-b", "verigate", time.Hour)

	token, err := issuing.GenerateToken(newOrgID(t))
	require.NoError(t, err)

	_, err = validating.ValidateToken(token)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestValidateRejectsExpired(t *testing.T) {
	svc := NewService("test-signing-key", "verigate", -time.Minute)

	token, err := svc.GenerateToken(newOrgID(t))
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestGenerateRejectsNilOrg(t *testing.T) {
	svc := NewService("test-signing-key", "verigate", time.Hour)
	_, err := svc.GenerateToken(id.OrgID{})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}
