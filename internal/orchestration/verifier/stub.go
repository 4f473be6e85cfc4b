package verifier

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"verigate/internal/orchestration/models"
	id "verigate/pkg/domain"
)

// Stub fabricates verification handles locally. Used in development and
// tests when no verification engine is deployed.
type Stub struct {
	// QRBaseURL forms the qrCodeUrl; empty leaves it unset.
	QRBaseURL string
}

func NewStub(qrBaseURL string) *Stub {
	return &Stub{QRBaseURL: qrBaseURL}
}

func (s *Stub) StartVerification(_ context.Context, template string, _ id.SessionID) (*models.VerificationHandle, error) {
	handle := &models.VerificationHandle{
		SessionID: uuid.New().String(),
		Template:  template,
	}
	if s.QRBaseURL != "" {
		handle.QRCodeURL = fmt.Sprintf("%s/qr/%s", s.QRBaseURL, handle.SessionID)
	}
	return handle, nil
}
