package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "carbonflow/internal/errors"
	"carbonflow/internal/services"
)

// InvitationHandler handles proposal invitation tokens.
type InvitationHandler struct {
	invitationService services.InvitationServicer
	auditService      services.AuditServicer
}

// NewInvitationHandler creates a new InvitationHandler.
func NewInvitationHandler(invitationService services.InvitationServicer, auditService services.AuditServicer) *InvitationHandler {
	return &InvitationHandler{invitationService: invitationService, auditService: auditService}
}

// CreateInvitationRequest represents the request payload for issuing an invitation.
type CreateInvitationRequest struct {
	ClientEmail string `json:"client_email" binding:"required,email"`
	TTLHours    int    `json:"ttl_hours" binding:"omitempty,min=1,max=720"`
}

// CreateInvitation issues a view token for a proposal.
// @Summary     Create an invitation
// @Description Issue a single-proposal view token; the plain token is returned once
// @Tags        invitations
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string                  true "Proposal ID"
// @Param       request body CreateInvitationRequest true "Invitation details"
// @Success     201 {object} map[string]interface{} "Invitation created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     403 {object} ErrorResponse "Not a party to this proposal"
// @Failure     404 {object} ErrorResponse "Proposal not found"
// @Router      /proposals/{id}/invitations [post]
func (h *InvitationHandler) CreateInvitation(c *gin.Context) {
	userID, role, err := getActor(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateInvitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	token, invitation, err := h.invitationService.CreateInvitation(
		userID, role, c.Param("id"), req.ClientEmail, time.Duration(req.TTLHours)*time.Hour)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "CREATE_INVITATION", "invitation", invitation.ID, c.ClientIP(),
		map[string]interface{}{"proposal_id": invitation.ProposalID, "client_email": invitation.ClientEmail})

	c.JSON(http.StatusCreated, gin.H{
		"token":      token,
		"invitation": invitation,
	})
}

// ValidateInvitation checks an invitation token. Public: the recipient is not
// authenticated. A successful validation stamps the first-view time
// fire-and-forget.
// @Summary     Validate an invitation
// @Description Check an invitation token and return the proposal it unlocks
// @Tags        invitations
// @Produce     json
// @Param       token query string true "Invitation token"
// @Success     200 {object} services.InvitationValidation "Validation result"
// @Failure     400 {object} ErrorResponse "Missing token"
// @Router      /invitations/validate [get]
func (h *InvitationHandler) ValidateInvitation(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "token is required"))
		return
	}

	validation, err := h.invitationService.ValidateToken(token)
	if err != nil {
		respondWithError(c, err)
		return
	}

	if validation.IsValid {
		go func() { _ = h.invitationService.MarkViewed(token) }()
	}

	c.JSON(http.StatusOK, validation)
}

// RevokeInvitation invalidates an invitation before its expiry.
// @Summary     Revoke an invitation
// @Description Invalidate an invitation token before it expires
// @Tags        invitations
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Invitation ID"
// @Success     200 {object} map[string]string "Invitation revoked"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     403 {object} ErrorResponse "Not a party to this proposal"
// @Failure     404 {object} ErrorResponse "Invitation not found"
// @Router      /invitations/{id} [delete]
func (h *InvitationHandler) RevokeInvitation(c *gin.Context) {
	userID, role, err := getActor(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	invitationID := c.Param("id")
	if err := h.invitationService.RevokeInvitation(userID, role, invitationID); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "REVOKE_INVITATION", "invitation", invitationID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"message": "Invitation revoked"})
}
