package handler

// Handler tests verify the HTTP surface for subscription management: error
// mapping, request validation, and that the plaintext secret only appears in
// the registration response. Registry behavior is covered by the service
// suite in internal/webhook/service.

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"verigate/internal/webhook/handler/mocks"
	"verigate/internal/webhook/models"
	id "verigate/pkg/domain"
	dErrors "verigate/pkg/domain-errors"
	"verigate/pkg/platform/middleware/auth"
)

const testOrgIDStr = "b3f1c8aa-4f2e-4d6a-9c1b-2a7d8e5f0c34"

type WebhookHandlerSuite struct {
	suite.Suite

	ctrl    *gomock.Controller
	service *mocks.MockService
	router  chi.Router
	orgID   id.OrgID
}

func (s *WebhookHandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.service = mocks.NewMockService(s.ctrl)

	h := New(s.service, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.router = chi.NewRouter()
	h.Register(s.router)

	orgID, err := id.ParseOrgID(testOrgIDStr)
	s.Require().NoError(err)
	s.orgID = orgID
}

func TestWebhookHandlerSuite(t *testing.T) {
	suite.Run(t, new(WebhookHandlerSuite))
}

func (s *WebhookHandlerSuite) do(method, target string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req = req.WithContext(auth.WithOrgID(req.Context(), s.orgID))

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *WebhookHandlerSuite) assertError(w *httptest.ResponseRecorder, status int, code dErrors.Code) {
	s.Equal(status, w.Code)
	var body map[string]string
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &body))
	s.Equal(string(code), body["error"])
}

// TestRegister_SecretOnlyAtCreation verifies the plaintext secret appears in
// the 201 response and in no other projection.
func (s *WebhookHandlerSuite) TestRegister_SecretOnlyAtCreation() {
	subID := id.NewSubscriptionID()
	created := &models.CreatedSubscriptionResponse{
		SubscriptionResponse: models.SubscriptionResponse{
			ID:        subID.String(),
			URL:       "https://rp.example.com/hooks",
			Events:    []string{models.EventCompleted},
			Enabled:   true,
			CreatedAt: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
		},
		Secret: "whsec_abc123",
	}
	s.service.EXPECT().
		Register(gomock.Any(), s.orgID, gomock.Any()).
		Return(created, nil)

	w := s.do(http.MethodPost, "/webhooks", models.CreateSubscriptionRequest{
		URL:    "https://rp.example.com/hooks",
		Events: []string{models.EventCompleted},
	})

	s.Equal(http.StatusCreated, w.Code)
	var resp map[string]any
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	s.Equal("whsec_abc123", resp["secret"])
	s.Equal(subID.String(), resp["id"])

	s.service.EXPECT().
		Get(gomock.Any(), s.orgID, subID).
		Return(&created.SubscriptionResponse, nil)

	w = s.do(http.MethodGet, "/webhooks/"+subID.String(), nil)
	s.Equal(http.StatusOK, w.Code)
	s.NotContains(w.Body.String(), "whsec_abc123")
}

// TestRegister_Validation verifies handler-level rejections before the
// service is reached.
func (s *WebhookHandlerSuite) TestRegister_Validation() {
	s.Run("plain http url returns 400", func() {
		w := s.do(http.MethodPost, "/webhooks", models.CreateSubscriptionRequest{
			URL:    "http://rp.example.com/hooks",
			Events: []string{models.EventCompleted},
		})
		s.assertError(w, http.StatusBadRequest, dErrors.CodeValidation)
	})

	s.Run("empty events returns 400", func() {
		w := s.do(http.MethodPost, "/webhooks", models.CreateSubscriptionRequest{
			URL: "https://rp.example.com/hooks",
		})
		s.assertError(w, http.StatusBadRequest, dErrors.CodeValidation)
	})

	s.Run("malformed body returns 400", func() {
		req := httptest.NewRequest(http.MethodPost, "/webhooks", bytes.NewBufferString("{not json"))
		req = req.WithContext(auth.WithOrgID(req.Context(), s.orgID))
		w := httptest.NewRecorder()
		s.router.ServeHTTP(w, req)
		s.assertError(w, http.StatusBadRequest, dErrors.CodeBadRequest)
	})
}

// TestList_OK verifies the list envelope.
func (s *WebhookHandlerSuite) TestList_OK() {
	s.service.EXPECT().
		List(gomock.Any(), s.orgID).
		Return([]*models.SubscriptionResponse{
			{ID: id.NewSubscriptionID().String(), URL: "https://rp.example.com/a", Events: []string{models.EventWildcard}, Enabled: true},
			{ID: id.NewSubscriptionID().String(), URL: "https://rp.example.com/b", Events: []string{models.EventFailed}, Enabled: false},
		}, nil)

	w := s.do(http.MethodGet, "/webhooks", nil)

	s.Equal(http.StatusOK, w.Code)
	var resp struct {
		Subscriptions []models.SubscriptionResponse `json:"subscriptions"`
	}
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	s.Len(resp.Subscriptions, 2)
}

// TestGet_ErrorMapping verifies the lookup failure paths.
func (s *WebhookHandlerSuite) TestGet_ErrorMapping() {
	s.Run("malformed id returns 400", func() {
		w := s.do(http.MethodGet, "/webhooks/not-a-uuid", nil)
		s.assertError(w, http.StatusBadRequest, dErrors.CodeInvalidInput)
	})

	s.Run("unknown subscription returns 404", func() {
		subID := id.NewSubscriptionID()
		s.service.EXPECT().
			Get(gomock.Any(), s.orgID, subID).
			Return(nil, dErrors.New(dErrors.CodeNotFound, "subscription not found"))

		w := s.do(http.MethodGet, "/webhooks/"+subID.String(), nil)
		s.assertError(w, http.StatusNotFound, dErrors.CodeNotFound)
	})
}

// TestUpdate_PartialBody verifies a sparse patch reaches the service intact.
func (s *WebhookHandlerSuite) TestUpdate_PartialBody() {
	subID := id.NewSubscriptionID()
	s.service.EXPECT().
		Update(gomock.Any(), s.orgID, subID, gomock.Any()).
		DoAndReturn(func(_ any, _ id.OrgID, _ id.SubscriptionID, req *models.UpdateSubscriptionRequest) (*models.SubscriptionResponse, error) {
			s.Require().NotNil(req.Enabled)
			s.False(*req.Enabled)
			s.Nil(req.URL)
			s.Nil(req.Events)
			return &models.SubscriptionResponse{ID: subID.String(), Enabled: false}, nil
		})

	enabled := false
	w := s.do(http.MethodPatch, "/webhooks/"+subID.String(), models.UpdateSubscriptionRequest{Enabled: &enabled})

	s.Equal(http.StatusOK, w.Code)
}

// TestDelete_NoContent verifies removal returns 204 with an empty body.
func (s *WebhookHandlerSuite) TestDelete_NoContent() {
	subID := id.NewSubscriptionID()
	s.service.EXPECT().
		Delete(gomock.Any(), s.orgID, subID).
		Return(nil)

	w := s.do(http.MethodDelete, "/webhooks/"+subID.String(), nil)

	s.Equal(http.StatusNoContent, w.Code)
	s.Empty(w.Body.String())
}

// TestMissingOrg verifies unauthenticated access is rejected rather than
// unscoped.
func (s *WebhookHandlerSuite) TestMissingOrg() {
	req := httptest.NewRequest(http.MethodGet, "/webhooks", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	s.assertError(w, http.StatusInternalServerError, dErrors.CodeInternal)
}
