package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	dErrors "verigate/pkg/domain-errors"
)

// IDsSuite tests the typed identifier parsing used at trust boundaries.
type IDsSuite struct {
	suite.Suite
}

func TestIDsSuite(t *testing.T) {
	suite.Run(t, new(IDsSuite))
}

func (s *IDsSuite) TestParseSessionID() {
	s.Run("valid UUID parses", func() {
		raw := uuid.New().String()
		id, err := ParseSessionID(raw)
		s.NoError(err)
		s.Equal(raw, id.String())
	})

	s.Run("empty string rejected", func() {
		_, err := ParseSessionID("")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("garbage rejected", func() {
		_, err := ParseSessionID("not-a-uuid")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func (s *IDsSuite) TestParseDefinitionID() {
	s.Run("any non-empty string is accepted", func() {
		id, err := ParseDefinitionID("kyc-plus-payment-v2")
		s.NoError(err)
		s.Equal("kyc-plus-payment-v2", id.String())
	})

	s.Run("empty rejected", func() {
		_, err := ParseDefinitionID("")
		s.Error(err)
	})
}

func (s *IDsSuite) TestIsNil() {
	s.True(SessionID{}.IsNil())
	s.True(OrgID{}.IsNil())
	s.True(DefinitionID("").IsNil())
	s.False(NewSessionID().IsNil())
	s.False(NewSubscriptionID().IsNil())
}
