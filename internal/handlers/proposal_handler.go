package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "carbonflow/internal/errors"
	"carbonflow/internal/models"
	"carbonflow/internal/pagination"
	"carbonflow/internal/services"
)

// ProposalHandler handles proposal lifecycle requests.
type ProposalHandler struct {
	proposalService services.ProposalServicer
	auditService    services.AuditServicer
}

// NewProposalHandler creates a new ProposalHandler.
func NewProposalHandler(proposalService services.ProposalServicer, auditService services.AuditServicer) *ProposalHandler {
	return &ProposalHandler{proposalService: proposalService, auditService: auditService}
}

// CreateProposalRequest represents the request payload for creating a proposal.
type CreateProposalRequest struct {
	Title          string  `json:"title" binding:"required,min=1,max=255"`
	ClientID       string  `json:"client_id" binding:"required"`
	SystemSize     float64 `json:"system_size" binding:"required,gt=0"`
	SystemSizeUnit string  `json:"system_size_unit" binding:"omitempty,capacity_unit"`
}

// UpdateProposalRequest represents the request payload for updating a draft.
type UpdateProposalRequest struct {
	Title          string  `json:"title" binding:"omitempty,min=1,max=255"`
	SystemSize     float64 `json:"system_size" binding:"required,gt=0"`
	SystemSizeUnit string  `json:"system_size_unit" binding:"omitempty,capacity_unit"`
}

// CreateProposal handles the creation of a new draft proposal.
// @Summary     Create a proposal
// @Description Create a draft proposal with derived energy, credits, and revenue split
// @Tags        proposals
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateProposalRequest true "Proposal details"
// @Success     201 {object} models.Proposal "Proposal created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Client not found"
// @Router      /proposals [post]
func (h *ProposalHandler) CreateProposal(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	proposal, err := h.proposalService.CreateProposal(userID, services.ProposalInput{
		Title:          req.Title,
		ClientID:       req.ClientID,
		SystemSize:     req.SystemSize,
		SystemSizeUnit: req.SystemSizeUnit,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "CREATE_PROPOSAL", "proposal", proposal.ID, c.ClientIP(),
		map[string]interface{}{"title": proposal.Title, "system_size_kwp": proposal.SystemSizeKWp})

	c.JSON(http.StatusCreated, gin.H{"proposal": proposal})
}

// GetProposals handles listing proposals visible to the actor.
// @Summary     Get proposals
// @Description Get a paginated list of proposals visible to the authenticated user
// @Tags        proposals
// @Produce     json
// @Security    BearerAuth
// @Param       status           query string false "Filter by status (draft/pending/approved/rejected)"
// @Param       client_id        query string false "Filter by client"
// @Param       include_archived query bool   false "Include archived proposals"
// @Param       page             query int    false "Page number (default 1)"
// @Param       page_size        query int    false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.Proposal] "Paginated proposals"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /proposals [get]
func (h *ProposalHandler) GetProposals(c *gin.Context) {
	userID, role, err := getActor(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	var filter services.ProposalFilter
	if v := c.Query("status"); v != "" {
		status := models.ProposalStatus(v)
		switch status {
		case models.ProposalStatusDraft, models.ProposalStatusPending,
			models.ProposalStatusApproved, models.ProposalStatusRejected:
			filter.Status = &status
		default:
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid status"))
			return
		}
	}
	if v := c.Query("client_id"); v != "" {
		filter.ClientID = &v
	}
	filter.IncludeArchived = c.Query("include_archived") == "true"

	result, err := h.proposalService.GetProposals(userID, role, filter, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetProposal handles retrieving a single proposal.
// @Summary     Get a proposal
// @Description Get a single proposal the authenticated user is a party to
// @Tags        proposals
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Proposal ID"
// @Success     200 {object} models.Proposal "Proposal"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Proposal not found"
// @Router      /proposals/{id} [get]
func (h *ProposalHandler) GetProposal(c *gin.Context) {
	userID, role, err := getActor(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	proposal, err := h.proposalService.GetProposalByID(userID, role, c.Param("id"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"proposal": proposal})
}

// UpdateProposal handles editing a draft proposal.
// @Summary     Update a draft proposal
// @Description Update a draft's title or system size; the revenue split is recomputed
// @Tags        proposals
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string                true "Proposal ID"
// @Param       request body UpdateProposalRequest true "Updated fields"
// @Success     200 {object} models.Proposal "Proposal updated"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Proposal not found"
// @Failure     409 {object} ErrorResponse "Proposal is not a draft"
// @Router      /proposals/{id} [put]
func (h *ProposalHandler) UpdateProposal(c *gin.Context) {
	userID, role, err := getActor(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	proposal, err := h.proposalService.UpdateDraft(userID, role, c.Param("id"), services.ProposalInput{
		Title:          req.Title,
		SystemSize:     req.SystemSize,
		SystemSizeUnit: req.SystemSizeUnit,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "UPDATE_PROPOSAL", "proposal", proposal.ID, c.ClientIP(),
		map[string]interface{}{"system_size_kwp": proposal.SystemSizeKWp})

	c.JSON(http.StatusOK, gin.H{"proposal": proposal})
}

// SubmitProposal handles moving a draft to pending.
// @Summary     Submit a proposal
// @Description Move a draft proposal to pending and notify the client
// @Tags        proposals
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Proposal ID"
// @Success     200 {object} models.Proposal "Proposal submitted"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Proposal not found"
// @Failure     409 {object} ErrorResponse "Proposal is not a draft"
// @Router      /proposals/{id}/submit [post]
func (h *ProposalHandler) SubmitProposal(c *gin.Context) {
	userID, role, err := getActor(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	proposal, err := h.proposalService.SubmitProposal(userID, role, c.Param("id"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "SUBMIT_PROPOSAL", "proposal", proposal.ID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"proposal": proposal})
}

// ApproveProposal handles a client approving a pending proposal.
// @Summary     Approve a proposal
// @Description Approve a pending proposal; stamps the signing time
// @Tags        proposals
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Proposal ID"
// @Success     200 {object} services.TransitionResult "Proposal approved"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     403 {object} ErrorResponse "Not a party to this proposal"
// @Failure     404 {object} ErrorResponse "Proposal not found"
// @Failure     409 {object} ErrorResponse "Proposal is not pending"
// @Router      /proposals/{id}/approve [post]
func (h *ProposalHandler) ApproveProposal(c *gin.Context) {
	h.decide(c, "APPROVE_PROPOSAL", h.proposalService.ApproveProposal)
}

// RejectProposal handles a client rejecting a pending proposal.
// @Summary     Reject a proposal
// @Description Reject a pending proposal
// @Tags        proposals
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Proposal ID"
// @Success     200 {object} services.TransitionResult "Proposal rejected"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     403 {object} ErrorResponse "Not a party to this proposal"
// @Failure     404 {object} ErrorResponse "Proposal not found"
// @Failure     409 {object} ErrorResponse "Proposal is not pending"
// @Router      /proposals/{id}/reject [post]
func (h *ProposalHandler) RejectProposal(c *gin.Context) {
	h.decide(c, "REJECT_PROPOSAL", h.proposalService.RejectProposal)
}

// ArchiveProposal handles archiving a proposal.
// @Summary     Archive a proposal
// @Description Archive a proposal; one-way, removes it from portfolio totals
// @Tags        proposals
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Proposal ID"
// @Success     200 {object} services.TransitionResult "Proposal archived"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Proposal not found"
// @Failure     409 {object} ErrorResponse "Proposal already archived"
// @Router      /proposals/{id}/archive [post]
func (h *ProposalHandler) ArchiveProposal(c *gin.Context) {
	h.decide(c, "ARCHIVE_PROPOSAL", h.proposalService.ArchiveProposal)
}

func (h *ProposalHandler) decide(c *gin.Context, action string,
	fn func(string, models.UserRole, string) (*services.TransitionResult, error)) {
	userID, role, err := getActor(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := fn(userID, role, c.Param("id"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, action, "proposal", result.Proposal.ID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, result)
}

// ToggleReviewLater handles deferring a pending proposal for later review.
// @Summary     Toggle review-later
// @Description Set a 30-day review-later marker on a pending proposal, or clear it
// @Tags        proposals
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Proposal ID"
// @Success     200 {object} models.Proposal "Marker toggled"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Proposal not found"
// @Failure     409 {object} ErrorResponse "Proposal is not pending"
// @Router      /proposals/{id}/review-later [post]
func (h *ProposalHandler) ToggleReviewLater(c *gin.Context) {
	userID, role, err := getActor(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	proposal, err := h.proposalService.ToggleReviewLater(userID, role, c.Param("id"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"proposal": proposal})
}
