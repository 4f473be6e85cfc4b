package secrets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "verigate/pkg/domain-errors"
)

func TestGenerateProducesUniqueSecrets(t *testing.T) {
	a, err := Generate()
	require.NoError(t, err)
	b, err := Generate()
	require.NoError(t, err)

	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}

func TestHashAndVerify(t *testing.T) {
	secret, err := Generate()
	require.NoError(t, err)

	hash, err := Hash(secret)
	require.NoError(t, err)
	assert.NotEqual(t, secret, hash)

	assert.NoError(t, Verify(secret, hash))

	err = Verify("wrong-secret", hash)
	require.Error(t, err)
	var domainErr *dErrors.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, dErrors.CodeUnauthorized, domainErr.Code)
}

func TestHashRejectsEmptySecret(t *testing.T) {
	_, err := Hash("")
	require.Error(t, err)
	var domainErr *dErrors.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, dErrors.CodeValidation, domainErr.Code)
}
