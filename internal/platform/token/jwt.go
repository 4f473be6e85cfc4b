// Package token issues and validates relying-party API tokens.
package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	id "verigate/pkg/domain"
	dErrors "verigate/pkg/domain-errors"
	"verigate/pkg/platform/middleware/auth"
)

// APITokenClaims represents the JWT claims for relying-party API tokens.
type APITokenClaims struct {
	OrgID string `json:"org_id"`
	jwt.RegisteredClaims
}

// Service handles API token creation and validation.
type Service struct {
	signingKey []byte
	issuer     string
	tokenTTL   time.Duration
}

func NewService(signingKey string, issuer string, tokenTTL time.Duration) *Service {
	return &Service{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		tokenTTL:   tokenTTL,
	}
}

// GenerateToken mints a signed token scoped to one organization.
func (s *Service) GenerateToken(orgID id.OrgID) (string, error) {
	if orgID.IsNil() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "organization ID is required")
	}

	now := time.Now()
	claims := APITokenClaims{
		OrgID: orgID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   orgID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
			ID:        uuid.New().String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not sign token")
	}
	return signed, nil
}

// ValidateToken parses and verifies a token, returning middleware-level claims.
// It satisfies the auth.TokenValidator interface.
func (s *Service) ValidateToken(tokenString string) (*auth.Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &APITokenClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "unexpected signing method")
		}
		return s.signingKey, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*APITokenClaims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}

	return &auth.Claims{OrgID: claims.OrgID}, nil
}
