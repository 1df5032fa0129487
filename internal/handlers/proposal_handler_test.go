package handlers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"

	apperrors "carbonflow/internal/errors"
	"carbonflow/internal/models"
	"carbonflow/internal/pagination"
	"carbonflow/internal/services"
)

// --- mock proposal service ---

type mockProposalService struct {
	createProposalFn          func(agentID string, input services.ProposalInput) (*models.Proposal, error)
	getProposalsFn            func(actorID string, role models.UserRole, filter services.ProposalFilter, page pagination.PageRequest) (*pagination.PageResponse[models.Proposal], error)
	getProposalByIDFn         func(actorID string, role models.UserRole, proposalID string) (*models.Proposal, error)
	updateDraftFn             func(actorID string, role models.UserRole, proposalID string, input services.ProposalInput) (*models.Proposal, error)
	submitProposalFn          func(actorID string, role models.UserRole, proposalID string) (*models.Proposal, error)
	approveProposalFn         func(actorID string, role models.UserRole, proposalID string) (*services.TransitionResult, error)
	rejectProposalFn          func(actorID string, role models.UserRole, proposalID string) (*services.TransitionResult, error)
	archiveProposalFn         func(actorID string, role models.UserRole, proposalID string) (*services.TransitionResult, error)
	toggleReviewLaterFn       func(actorID string, role models.UserRole, proposalID string) (*models.Proposal, error)
	clearExpiredReviewLaterFn func() (int64, error)
}

func (m *mockProposalService) CreateProposal(agentID string, input services.ProposalInput) (*models.Proposal, error) {
	if m.createProposalFn != nil {
		return m.createProposalFn(agentID, input)
	}
	return &models.Proposal{}, nil
}

func (m *mockProposalService) GetProposals(actorID string, role models.UserRole, filter services.ProposalFilter, page pagination.PageRequest) (*pagination.PageResponse[models.Proposal], error) {
	if m.getProposalsFn != nil {
		return m.getProposalsFn(actorID, role, filter, page)
	}
	resp := pagination.NewPageResponse([]models.Proposal{}, 1, 20, 0)
	return &resp, nil
}

func (m *mockProposalService) GetProposalByID(actorID string, role models.UserRole, proposalID string) (*models.Proposal, error) {
	if m.getProposalByIDFn != nil {
		return m.getProposalByIDFn(actorID, role, proposalID)
	}
	return &models.Proposal{}, nil
}

func (m *mockProposalService) UpdateDraft(actorID string, role models.UserRole, proposalID string, input services.ProposalInput) (*models.Proposal, error) {
	if m.updateDraftFn != nil {
		return m.updateDraftFn(actorID, role, proposalID, input)
	}
	return &models.Proposal{}, nil
}

func (m *mockProposalService) SubmitProposal(actorID string, role models.UserRole, proposalID string) (*models.Proposal, error) {
	if m.submitProposalFn != nil {
		return m.submitProposalFn(actorID, role, proposalID)
	}
	return &models.Proposal{}, nil
}

func (m *mockProposalService) ApproveProposal(actorID string, role models.UserRole, proposalID string) (*services.TransitionResult, error) {
	if m.approveProposalFn != nil {
		return m.approveProposalFn(actorID, role, proposalID)
	}
	return &services.TransitionResult{Proposal: &models.Proposal{}}, nil
}

func (m *mockProposalService) RejectProposal(actorID string, role models.UserRole, proposalID string) (*services.TransitionResult, error) {
	if m.rejectProposalFn != nil {
		return m.rejectProposalFn(actorID, role, proposalID)
	}
	return &services.TransitionResult{Proposal: &models.Proposal{}}, nil
}

func (m *mockProposalService) ArchiveProposal(actorID string, role models.UserRole, proposalID string) (*services.TransitionResult, error) {
	if m.archiveProposalFn != nil {
		return m.archiveProposalFn(actorID, role, proposalID)
	}
	return &services.TransitionResult{Proposal: &models.Proposal{}}, nil
}

func (m *mockProposalService) ToggleReviewLater(actorID string, role models.UserRole, proposalID string) (*models.Proposal, error) {
	if m.toggleReviewLaterFn != nil {
		return m.toggleReviewLaterFn(actorID, role, proposalID)
	}
	return &models.Proposal{}, nil
}

func (m *mockProposalService) ClearExpiredReviewLater() (int64, error) {
	if m.clearExpiredReviewLaterFn != nil {
		return m.clearExpiredReviewLaterFn()
	}
	return 0, nil
}

var _ services.ProposalServicer = (*mockProposalService)(nil)

func setupProposalRouter(handler *ProposalHandler, role models.UserRole) *gin.Engine {
	r := gin.New()
	auth := r.Group("", injectActor("user-1", role))
	auth.POST("/proposals", handler.CreateProposal)
	auth.GET("/proposals", handler.GetProposals)
	auth.GET("/proposals/:id", handler.GetProposal)
	auth.PUT("/proposals/:id", handler.UpdateProposal)
	auth.POST("/proposals/:id/submit", handler.SubmitProposal)
	auth.POST("/proposals/:id/approve", handler.ApproveProposal)
	auth.POST("/proposals/:id/reject", handler.RejectProposal)
	auth.POST("/proposals/:id/archive", handler.ArchiveProposal)
	auth.POST("/proposals/:id/review-later", handler.ToggleReviewLater)
	return r
}

func TestProposalHandler_CreateProposal(t *testing.T) {
	t.Run("returns 201 on success", func(t *testing.T) {
		svc := &mockProposalService{
			createProposalFn: func(agentID string, input services.ProposalInput) (*models.Proposal, error) {
				return &models.Proposal{
					Base:           models.Base{ID: "prop-1"},
					Title:          input.Title,
					Status:         models.ProposalStatusDraft,
					AgentID:        agentID,
					ClientID:       input.ClientID,
					SystemSizeKWp:  500,
					ClientSharePct: 55,
				}, nil
			},
		}
		handler := NewProposalHandler(svc, &mockAuditService{})
		r := setupProposalRouter(handler, models.RoleAgent)

		rec := doRequest(r, "POST", "/proposals",
			`{"title":"Rooftop Array","client_id":"client-1","system_size":0.5,"system_size_unit":"MWp"}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		proposal := parseJSON(t, rec)["proposal"].(map[string]interface{})
		if proposal["title"] != "Rooftop Array" {
			t.Errorf("expected title Rooftop Array, got %v", proposal["title"])
		}
		if proposal["status"] != "draft" {
			t.Errorf("expected draft, got %v", proposal["status"])
		}
	})

	t.Run("returns 400 on missing title", func(t *testing.T) {
		handler := NewProposalHandler(&mockProposalService{}, &mockAuditService{})
		r := setupProposalRouter(handler, models.RoleAgent)

		rec := doRequest(r, "POST", "/proposals", `{"client_id":"client-1","system_size":100}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INVALID_INPUT")
	})

	t.Run("returns 400 on invalid unit", func(t *testing.T) {
		handler := NewProposalHandler(&mockProposalService{}, &mockAuditService{})
		r := setupProposalRouter(handler, models.RoleAgent)

		rec := doRequest(r, "POST", "/proposals",
			`{"title":"x","client_id":"client-1","system_size":100,"system_size_unit":"GWp"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("returns 404 on unknown client", func(t *testing.T) {
		svc := &mockProposalService{
			createProposalFn: func(string, services.ProposalInput) (*models.Proposal, error) {
				return nil, apperrors.ErrClientNotFound
			},
		}
		handler := NewProposalHandler(svc, &mockAuditService{})
		r := setupProposalRouter(handler, models.RoleAgent)

		rec := doRequest(r, "POST", "/proposals",
			`{"title":"x","client_id":"missing","system_size":100}`)

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "CLIENT_NOT_FOUND")
	})
}

func TestProposalHandler_GetProposals(t *testing.T) {
	t.Run("passes filters through", func(t *testing.T) {
		var captured services.ProposalFilter
		svc := &mockProposalService{
			getProposalsFn: func(_ string, _ models.UserRole, filter services.ProposalFilter, _ pagination.PageRequest) (*pagination.PageResponse[models.Proposal], error) {
				captured = filter
				resp := pagination.NewPageResponse([]models.Proposal{}, 1, 20, 0)
				return &resp, nil
			},
		}
		handler := NewProposalHandler(svc, &mockAuditService{})
		r := setupProposalRouter(handler, models.RoleAgent)

		rec := doRequest(r, "GET", "/proposals?status=pending&include_archived=true", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if captured.Status == nil || *captured.Status != models.ProposalStatusPending {
			t.Errorf("expected pending filter, got %v", captured.Status)
		}
		if !captured.IncludeArchived {
			t.Error("expected include_archived to be set")
		}
	})

	t.Run("returns 400 on bogus status", func(t *testing.T) {
		handler := NewProposalHandler(&mockProposalService{}, &mockAuditService{})
		r := setupProposalRouter(handler, models.RoleAgent)

		rec := doRequest(r, "GET", "/proposals?status=bogus", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestProposalHandler_Transitions(t *testing.T) {
	t.Run("approve returns 200 with secondary failures", func(t *testing.T) {
		svc := &mockProposalService{
			approveProposalFn: func(_ string, _ models.UserRole, proposalID string) (*services.TransitionResult, error) {
				return &services.TransitionResult{
					Proposal:          &models.Proposal{Base: models.Base{ID: proposalID}, Status: models.ProposalStatusApproved},
					SecondaryFailures: []string{"notify agent: store unavailable"},
				}, nil
			},
		}
		handler := NewProposalHandler(svc, &mockAuditService{})
		r := setupProposalRouter(handler, models.RoleClient)

		rec := doRequest(r, "POST", "/proposals/prop-1/approve", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		result := parseJSON(t, rec)
		failures := result["secondary_failures"].([]interface{})
		if len(failures) != 1 {
			t.Errorf("expected 1 secondary failure, got %v", failures)
		}
	})

	t.Run("approve returns 409 when not pending", func(t *testing.T) {
		svc := &mockProposalService{
			approveProposalFn: func(string, models.UserRole, string) (*services.TransitionResult, error) {
				return nil, apperrors.ErrInvalidTransition
			},
		}
		handler := NewProposalHandler(svc, &mockAuditService{})
		r := setupProposalRouter(handler, models.RoleClient)

		rec := doRequest(r, "POST", "/proposals/prop-1/approve", "")

		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INVALID_TRANSITION")
	})

	t.Run("reject returns 403 for agents", func(t *testing.T) {
		svc := &mockProposalService{
			rejectProposalFn: func(string, models.UserRole, string) (*services.TransitionResult, error) {
				return nil, apperrors.ErrNotProposalParty
			},
		}
		handler := NewProposalHandler(svc, &mockAuditService{})
		r := setupProposalRouter(handler, models.RoleAgent)

		rec := doRequest(r, "POST", "/proposals/prop-1/reject", "")

		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rec.Code)
		}
	})

	t.Run("archive returns 409 when already archived", func(t *testing.T) {
		svc := &mockProposalService{
			archiveProposalFn: func(string, models.UserRole, string) (*services.TransitionResult, error) {
				return nil, apperrors.ErrProposalArchived
			},
		}
		handler := NewProposalHandler(svc, &mockAuditService{})
		r := setupProposalRouter(handler, models.RoleAgent)

		rec := doRequest(r, "POST", "/proposals/prop-1/archive", "")

		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "PROPOSAL_ARCHIVED")
	})
}

func TestProposalHandler_ToggleReviewLater(t *testing.T) {
	svc := &mockProposalService{
		toggleReviewLaterFn: func(_ string, _ models.UserRole, proposalID string) (*models.Proposal, error) {
			return &models.Proposal{Base: models.Base{ID: proposalID}, Status: models.ProposalStatusPending}, nil
		},
	}
	handler := NewProposalHandler(svc, &mockAuditService{})
	r := setupProposalRouter(handler, models.RoleClient)

	rec := doRequest(r, "POST", "/proposals/prop-1/review-later", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
