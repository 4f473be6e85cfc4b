package handler

// Handler tests verify the HTTP surface in isolation: domain error to status
// code mapping, request parsing, and response projection. Engine behavior
// (graph traversal, branching, state transitions) is covered by the service
// suite in internal/orchestration/service.

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

	"verigate/internal/orchestration/handler/mocks"
	"verigate/internal/orchestration/models"
	id "verigate/pkg/domain"
	dErrors "verigate/pkg/domain-errors"
	"verigate/pkg/platform/middleware/auth"
)

const (
	testOrgIDStr = "b3f1c8aa-4f2e-4d6a-9c1b-2a7d8e5f0c34"
	testDefID    = "kyc-standard"
)

type OrchestrationHandlerSuite struct {
	suite.Suite

	ctrl    *gomock.Controller
	service *mocks.MockService
	router  chi.Router
	orgID   id.OrgID
}

func (s *OrchestrationHandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.service = mocks.NewMockService(s.ctrl)

	h := New(s.service, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.router = chi.NewRouter()
	h.Register(s.router)
	h.RegisterAdmin(s.router)

	orgID, err := id.ParseOrgID(testOrgIDStr)
	s.Require().NoError(err)
	s.orgID = orgID
}

func TestOrchestrationHandlerSuite(t *testing.T) {
	suite.Run(t, new(OrchestrationHandlerSuite))
}

// do serves a request through the router with the org injected, as the auth
// middleware would have done, and returns the recorded response.
func (s *OrchestrationHandlerSuite) do(method, target string, body any) *httptest.ResponseRecorder {
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

func (s *OrchestrationHandlerSuite) assertError(w *httptest.ResponseRecorder, status int, code dErrors.Code) {
	s.Equal(status, w.Code)
	var body map[string]string
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &body))
	s.Equal(string(code), body["error"])
}

func (s *OrchestrationHandlerSuite) sampleDefinition() *models.Definition {
	return &models.Definition{
		ID:    testDefID,
		OrgID: s.orgID,
		Name:  "Standard KYC",
		Steps: []models.Step{
			{ID: "identity", Type: models.StepTypeIdentity, Template: "tmpl-identity"},
			{ID: "proof-of-address", Type: models.StepTypeCustom, Template: "tmpl-poa", DependsOn: []id.StepID{"identity"}},
		},
		CreatedAt: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
	}
}

func (s *OrchestrationHandlerSuite) sampleSession(def *models.Definition) *models.Session {
	return &models.Session{
		ID:            id.NewSessionID(),
		DefinitionID:  def.ID,
		OrgID:         s.orgID,
		CurrentStepID: "identity",
		Verification: &models.VerificationHandle{
			SessionID: "ver-123",
			Template:  "tmpl-identity",
			QRCodeURL: "https://verify.example.com/qr/ver-123",
		},
		CompletedSteps: map[id.StepID]models.StepResult{},
		Status:         models.SessionInProgress,
		ExpiresAt:      time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC),
	}
}

// TestCreateDefinition_Created verifies the management endpoint returns the
// stored definition projection with 201.
func (s *OrchestrationHandlerSuite) TestCreateDefinition_Created() {
	def := s.sampleDefinition()
	s.service.EXPECT().
		CreateDefinition(gomock.Any(), s.orgID, gomock.Any()).
		Return(def, nil)

	w := s.do(http.MethodPost, "/admin/orchestrations", models.CreateDefinitionRequest{
		ID:             testDefID,
		OrganizationID: testOrgIDStr,
		Name:           "Standard KYC",
		Steps: []models.StepRequest{
			{ID: "identity", Type: "identity", Template: "tmpl-identity"},
			{ID: "proof-of-address", Type: "custom", Template: "tmpl-poa", DependsOn: []string{"identity"}},
		},
	})

	s.Equal(http.StatusCreated, w.Code)
	var resp models.DefinitionResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	s.Equal(testDefID, resp.ID)
	s.Equal(testOrgIDStr, resp.OrganizationID)
	s.Len(resp.Steps, 2)
}

// TestCreateDefinition_ErrorMapping verifies the handler-level rejections and
// the translation of service errors.
func (s *OrchestrationHandlerSuite) TestCreateDefinition_ErrorMapping() {
	s.Run("malformed body returns 400", func() {
		req := httptest.NewRequest(http.MethodPost, "/admin/orchestrations", bytes.NewBufferString("{not json"))
		w := httptest.NewRecorder()
		s.router.ServeHTTP(w, req)
		s.assertError(w, http.StatusBadRequest, dErrors.CodeBadRequest)
	})

	s.Run("missing organizationId returns 400", func() {
		w := s.do(http.MethodPost, "/admin/orchestrations", models.CreateDefinitionRequest{
			ID:    testDefID,
			Name:  "Standard KYC",
			Steps: []models.StepRequest{{ID: "identity", Type: "identity", Template: "tmpl-identity"}},
		})
		s.assertError(w, http.StatusBadRequest, dErrors.CodeValidation)
	})

	s.Run("duplicate definition returns 409", func() {
		s.service.EXPECT().
			CreateDefinition(gomock.Any(), s.orgID, gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeConflict, "definition id already in use"))

		w := s.do(http.MethodPost, "/admin/orchestrations", models.CreateDefinitionRequest{
			ID:             testDefID,
			OrganizationID: testOrgIDStr,
			Name:           "Standard KYC",
			Steps:          []models.StepRequest{{ID: "identity", Type: "identity", Template: "tmpl-identity"}},
		})
		s.assertError(w, http.StatusConflict, dErrors.CodeConflict)
	})
}

// TestGetDefinition_NotFound verifies lookup misses map to 404.
func (s *OrchestrationHandlerSuite) TestGetDefinition_NotFound() {
	s.service.EXPECT().
		GetDefinition(gomock.Any(), s.orgID, id.DefinitionID("missing")).
		Return(nil, dErrors.New(dErrors.CodeNotFound, "definition not found"))

	w := s.do(http.MethodGet, "/admin/orchestrations/missing?organizationId="+testOrgIDStr, nil)
	s.assertError(w, http.StatusNotFound, dErrors.CodeNotFound)
}

// TestStartSession_Created verifies the session projection carries the
// verification handle and template for the entry step.
func (s *OrchestrationHandlerSuite) TestStartSession_Created() {
	def := s.sampleDefinition()
	session := s.sampleSession(def)

	s.service.EXPECT().
		StartOrchestration(gomock.Any(), s.orgID, def.ID, gomock.Any()).
		Return(session, nil)
	s.service.EXPECT().
		GetDefinition(gomock.Any(), s.orgID, def.ID).
		Return(def, nil)

	w := s.do(http.MethodPost, "/orchestrations/"+testDefID+"/sessions", models.StartSessionRequest{
		Metadata: map[string]string{"channel": "mobile"},
	})

	s.Equal(http.StatusCreated, w.Code)
	var resp models.SessionStatusResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	s.Equal(session.ID.String(), resp.OrchestrationSessionID)
	s.Equal("identity", resp.CurrentStep)
	s.Equal("tmpl-identity", resp.CurrentTemplate)
	s.Equal(string(models.SessionInProgress), resp.Status)
	s.Require().NotNil(resp.Verification)
	s.Equal("ver-123", resp.Verification.SessionID)
}

// TestStartSession_EmptyBody verifies the body is optional.
func (s *OrchestrationHandlerSuite) TestStartSession_EmptyBody() {
	def := s.sampleDefinition()
	session := s.sampleSession(def)

	s.service.EXPECT().
		StartOrchestration(gomock.Any(), s.orgID, def.ID, gomock.Any()).
		Return(session, nil)
	s.service.EXPECT().
		GetDefinition(gomock.Any(), s.orgID, def.ID).
		Return(def, nil)

	req := httptest.NewRequest(http.MethodPost, "/orchestrations/"+testDefID+"/sessions", nil)
	req = req.WithContext(auth.WithOrgID(req.Context(), s.orgID))
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	s.Equal(http.StatusCreated, w.Code)
}

// TestStartSession_MissingOrg verifies a request that bypassed authentication
// is treated as an internal error, not silently unscoped.
func (s *OrchestrationHandlerSuite) TestStartSession_MissingOrg() {
	req := httptest.NewRequest(http.MethodPost, "/orchestrations/"+testDefID+"/sessions", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	s.assertError(w, http.StatusInternalServerError, dErrors.CodeInternal)
}

// TestGetSession_ToleratesDefinitionMiss verifies a session is still
// returned when its definition cannot be resolved; only the template is lost.
func (s *OrchestrationHandlerSuite) TestGetSession_ToleratesDefinitionMiss() {
	def := s.sampleDefinition()
	session := s.sampleSession(def)

	s.service.EXPECT().
		GetSession(gomock.Any(), s.orgID, session.ID).
		Return(session, nil)
	s.service.EXPECT().
		GetDefinition(gomock.Any(), s.orgID, def.ID).
		Return(nil, dErrors.New(dErrors.CodeUnavailable, "definition store unavailable"))

	w := s.do(http.MethodGet, "/sessions/"+session.ID.String(), nil)

	s.Equal(http.StatusOK, w.Code)
	var resp models.SessionStatusResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	s.Equal("identity", resp.CurrentStep)
	s.Empty(resp.CurrentTemplate)
}

// TestGetSession_ErrorMapping verifies lookup failures.
func (s *OrchestrationHandlerSuite) TestGetSession_ErrorMapping() {
	s.Run("malformed session id returns 400", func() {
		w := s.do(http.MethodGet, "/sessions/not-a-uuid", nil)
		s.assertError(w, http.StatusBadRequest, dErrors.CodeInvalidInput)
	})

	s.Run("unknown session returns 404", func() {
		sessionID := id.NewSessionID()
		s.service.EXPECT().
			GetSession(gomock.Any(), s.orgID, sessionID).
			Return(nil, dErrors.New(dErrors.CodeNotFound, "session not found or expired"))

		w := s.do(http.MethodGet, "/sessions/"+sessionID.String(), nil)
		s.assertError(w, http.StatusNotFound, dErrors.CodeNotFound)
	})
}

// TestCompleteStep_OK verifies the callback returns the advanced session.
func (s *OrchestrationHandlerSuite) TestCompleteStep_OK() {
	def := s.sampleDefinition()
	session := s.sampleSession(def)
	session.CurrentStepID = "proof-of-address"
	session.Verification = &models.VerificationHandle{SessionID: "ver-456", Template: "tmpl-poa"}
	session.CompletedSteps = map[id.StepID]models.StepResult{
		"identity": {VerificationSessionID: "ver-123", Status: models.StepVerified, Success: true},
	}

	s.service.EXPECT().
		CompleteStep(gomock.Any(), s.orgID, session.ID, id.StepID("identity"), gomock.Any()).
		Return(session, nil)
	s.service.EXPECT().
		GetDefinition(gomock.Any(), s.orgID, def.ID).
		Return(def, nil)

	w := s.do(http.MethodPost, "/sessions/"+session.ID.String()+"/steps/identity/complete", models.CompleteStepRequest{
		VerificationSessionID: "ver-123",
		Status:                "verified",
		Claims:                map[string]string{"given_name": "Ada"},
	})

	s.Equal(http.StatusOK, w.Code)
	var resp models.SessionStatusResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	s.Equal("proof-of-address", resp.CurrentStep)
	s.Equal([]string{"identity"}, resp.CompletedSteps)
}

// TestCompleteStep_ErrorMapping verifies validation and service error
// translation for the callback endpoint.
func (s *OrchestrationHandlerSuite) TestCompleteStep_ErrorMapping() {
	sessionID := id.NewSessionID()

	s.Run("unknown status returns 400", func() {
		w := s.do(http.MethodPost, "/sessions/"+sessionID.String()+"/steps/identity/complete", models.CompleteStepRequest{
			VerificationSessionID: "ver-123",
			Status:                "maybe",
		})
		s.assertError(w, http.StatusBadRequest, dErrors.CodeValidation)
	})

	s.Run("unknown step returns 404", func() {
		s.service.EXPECT().
			CompleteStep(gomock.Any(), s.orgID, sessionID, id.StepID("ghost"), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeNotFound, "step not found in definition"))

		w := s.do(http.MethodPost, "/sessions/"+sessionID.String()+"/steps/ghost/complete", models.CompleteStepRequest{
			VerificationSessionID: "ver-123",
			Status:                "verified",
		})
		s.assertError(w, http.StatusNotFound, dErrors.CodeNotFound)
	})

	s.Run("write contention returns 409", func() {
		s.service.EXPECT().
			CompleteStep(gomock.Any(), s.orgID, sessionID, id.StepID("identity"), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeConflict, "session write contention"))

		w := s.do(http.MethodPost, "/sessions/"+sessionID.String()+"/steps/identity/complete", models.CompleteStepRequest{
			VerificationSessionID: "ver-123",
			Status:                "verified",
		})
		s.assertError(w, http.StatusConflict, dErrors.CodeConflict)
	})
}
