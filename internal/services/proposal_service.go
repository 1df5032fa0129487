package services

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"carbonflow/internal/carbon"
	apperrors "carbonflow/internal/errors"
	"carbonflow/internal/models"
	"carbonflow/internal/pagination"
)

// reviewLaterWindow is how far forward a review-later marker is set.
const reviewLaterWindow = 30 * 24 * time.Hour

// proposalService handles the proposal lifecycle: creation, listing, and the
// status state machine (draft -> pending -> approved/rejected, with the
// orthogonal archived and review-later flags).
type proposalService struct {
	db            *gorm.DB
	portfolio     PortfolioServicer
	notifications NotificationServicer
}

// NewProposalService creates a new ProposalServicer.
func NewProposalService(db *gorm.DB, portfolio PortfolioServicer, notifications NotificationServicer) ProposalServicer {
	return &proposalService{db: db, portfolio: portfolio, notifications: notifications}
}

// CreateProposal creates a draft proposal for a client. Energy, credits, and
// both share percentages are derived from the client's cumulative portfolio
// including the new system, so the three-way split stays consistent.
func (s *proposalService) CreateProposal(agentID string, input ProposalInput) (*models.Proposal, error) {
	if input.Title == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "title is required")
	}

	var client models.Client
	if err := s.db.Where("id = ?", input.ClientID).First(&client).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrClientNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	sizeKWp := carbon.NormalizeToKWp(input.SystemSize, carbon.Unit(input.SystemSizeUnit))
	if sizeKWp <= 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "system size must be positive")
	}

	// Both share functions are evaluated against the same portfolio size so
	// that client + agent + platform always totals 100.
	portfolio := s.portfolio.CalculateClientPortfolio(client.ID, PortfolioOptions{DraftKWp: sizeKWp})

	proposal := &models.Proposal{
		Title:               input.Title,
		Status:              models.ProposalStatusDraft,
		AgentID:             agentID,
		ClientID:            client.ID,
		SystemSizeKWp:       sizeKWp,
		AnnualEnergyKWh:     carbon.AnnualEnergyKWh(sizeKWp),
		AnnualCarbonCredits: carbon.AnnualCarbonCredits(sizeKWp),
		ClientSharePct:      carbon.ClientSharePercent(portfolio.TotalKWp),
		AgentCommissionPct:  carbon.AgentCommissionPercent(portfolio.TotalKWp),
	}

	if err := s.db.Create(proposal).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return proposal, nil
}

// GetProposals lists proposals visible to the actor: agents see proposals
// they authored, clients see proposals addressed to their linked contact
// records, admins see everything. Archived proposals are hidden unless
// explicitly requested.
func (s *proposalService) GetProposals(actorID string, role models.UserRole, filter ProposalFilter, page pagination.PageRequest) (*pagination.PageResponse[models.Proposal], error) {
	page.Defaults()

	base := s.db.Model(&models.Proposal{})

	switch role {
	case models.RoleAdmin:
	case models.RoleAgent:
		base = base.Where("agent_id = ?", actorID)
	case models.RoleClient:
		base = base.Where("client_id IN (?)",
			s.db.Model(&models.Client{}).Select("id").Where("user_id = ?", actorID))
	default:
		return nil, apperrors.ErrForbidden
	}

	if !filter.IncludeArchived {
		base = base.Where("archived_at IS NULL")
	}
	if filter.Status != nil {
		base = base.Where("status = ?", *filter.Status)
	}
	if filter.ClientID != nil {
		base = base.Where("client_id = ?", *filter.ClientID)
	}

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var proposals []models.Proposal
	if err := base.Preload("Client").Order("created_at DESC").
		Scopes(pagination.Paginate(page)).Find(&proposals).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(proposals, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetProposalByID retrieves a single proposal the actor is a party to.
func (s *proposalService) GetProposalByID(actorID string, role models.UserRole, proposalID string) (*models.Proposal, error) {
	return s.loadForActor(actorID, role, proposalID)
}

// UpdateDraft modifies a draft proposal. Shares are recomputed against the
// client portfolio excluding this proposal's stored size, so the edit does
// not double count itself.
func (s *proposalService) UpdateDraft(actorID string, role models.UserRole, proposalID string, input ProposalInput) (*models.Proposal, error) {
	proposal, err := s.loadForActor(actorID, role, proposalID)
	if err != nil {
		return nil, err
	}
	if role == models.RoleClient {
		return nil, apperrors.ErrForbidden
	}
	if proposal.Status != models.ProposalStatusDraft {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidTransition, "Only draft proposals can be edited")
	}

	sizeKWp := carbon.NormalizeToKWp(input.SystemSize, carbon.Unit(input.SystemSizeUnit))
	if sizeKWp <= 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "system size must be positive")
	}

	portfolio := s.portfolio.CalculateClientPortfolio(proposal.ClientID, PortfolioOptions{
		DraftKWp:          sizeKWp,
		ExcludeProposalID: proposal.ID,
	})

	updates := map[string]interface{}{
		"system_size_kwp":       sizeKWp,
		"annual_energy_kwh":     carbon.AnnualEnergyKWh(sizeKWp),
		"annual_carbon_credits": carbon.AnnualCarbonCredits(sizeKWp),
		"client_share_pct":      carbon.ClientSharePercent(portfolio.TotalKWp),
		"agent_commission_pct":  carbon.AgentCommissionPercent(portfolio.TotalKWp),
	}
	if input.Title != "" {
		updates["title"] = input.Title
	}

	if err := s.db.Model(proposal).Updates(updates).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return s.loadForActor(actorID, role, proposalID)
}

// SubmitProposal moves a draft to pending and notifies the client.
func (s *proposalService) SubmitProposal(actorID string, role models.UserRole, proposalID string) (*models.Proposal, error) {
	proposal, err := s.loadForActor(actorID, role, proposalID)
	if err != nil {
		return nil, err
	}
	if role == models.RoleClient {
		return nil, apperrors.ErrForbidden
	}

	result := s.db.Model(&models.Proposal{}).
		Where("id = ? AND status = ? AND archived_at IS NULL", proposalID, models.ProposalStatusDraft).
		Update("status", models.ProposalStatusPending)
	if result.Error != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, apperrors.ErrInvalidTransition
	}

	if userID := s.clientUserID(proposal); userID != "" {
		// Best-effort; submit succeeds even if the notification write fails.
		_ = s.notifications.Notify(userID, models.NotificationProposalReceived,
			"New proposal", fmt.Sprintf("You received the proposal %q", proposal.Title), &proposal.ID)
	}

	return s.loadForActor(actorID, role, proposalID)
}

// ApproveProposal transitions a pending proposal to approved, stamps
// signed_at, clears any review-later marker, and notifies the agent.
// Approving a proposal that is not pending (including one already approved)
// is rejected. The status guard is a conditional update: concurrent
// transitions race on it and the loser gets ErrInvalidTransition.
func (s *proposalService) ApproveProposal(actorID string, role models.UserRole, proposalID string) (*TransitionResult, error) {
	return s.decide(actorID, role, proposalID, models.ProposalStatusApproved)
}

// RejectProposal transitions a pending proposal to rejected, clears any
// review-later marker, and notifies the agent.
func (s *proposalService) RejectProposal(actorID string, role models.UserRole, proposalID string) (*TransitionResult, error) {
	return s.decide(actorID, role, proposalID, models.ProposalStatusRejected)
}

func (s *proposalService) decide(actorID string, role models.UserRole, proposalID string, target models.ProposalStatus) (*TransitionResult, error) {
	proposal, err := s.loadForActor(actorID, role, proposalID)
	if err != nil {
		return nil, err
	}

	// Only the receiving client or an admin decides a proposal.
	if role == models.RoleAgent {
		return nil, apperrors.ErrNotProposalParty
	}
	if proposal.IsArchived() {
		return nil, apperrors.ErrProposalArchived
	}

	updates := map[string]interface{}{
		"status":             target,
		"review_later_until": nil,
	}
	var signedAt time.Time
	if target == models.ProposalStatusApproved {
		signedAt = time.Now()
		updates["signed_at"] = signedAt
	}

	result := s.db.Model(&models.Proposal{}).
		Where("id = ? AND status = ? AND archived_at IS NULL", proposalID, models.ProposalStatusPending).
		Updates(updates)
	if result.Error != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, apperrors.ErrInvalidTransition
	}

	proposal.Status = target
	proposal.ReviewLaterUntil = nil
	if target == models.ProposalStatusApproved {
		proposal.SignedAt = &signedAt
	}

	res := &TransitionResult{Proposal: proposal}

	notifType := models.NotificationProposalApproved
	verb := "approved"
	if target == models.ProposalStatusRejected {
		notifType = models.NotificationProposalRejected
		verb = "rejected"
	}
	if err := s.notifications.Notify(proposal.AgentID, notifType,
		"Proposal "+verb, fmt.Sprintf("The proposal %q was %s", proposal.Title, verb), &proposal.ID); err != nil {
		res.SecondaryFailures = append(res.SecondaryFailures, "notify agent: "+err.Error())
	}

	return res, nil
}

// ArchiveProposal marks a proposal archived. Only the proposal's client, its
// agent, or an admin may archive; archiving is one-way and clears any
// review-later marker. The counterpart is notified best-effort.
func (s *proposalService) ArchiveProposal(actorID string, role models.UserRole, proposalID string) (*TransitionResult, error) {
	proposal, err := s.loadForActor(actorID, role, proposalID)
	if err != nil {
		return nil, err
	}
	if proposal.IsArchived() {
		return nil, apperrors.ErrProposalArchived
	}

	archivedAt := time.Now()
	result := s.db.Model(&models.Proposal{}).
		Where("id = ? AND archived_at IS NULL", proposalID).
		Updates(map[string]interface{}{
			"archived_at":        archivedAt,
			"review_later_until": nil,
		})
	if result.Error != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, apperrors.ErrProposalArchived
	}

	proposal.ArchivedAt = &archivedAt
	proposal.ReviewLaterUntil = nil

	res := &TransitionResult{Proposal: proposal}

	// Notify the other party: the agent archiving notifies the client and
	// vice versa. Admins notify both sides' counterpart, i.e. the agent.
	var counterpart string
	if actorID == proposal.AgentID {
		counterpart = s.clientUserID(proposal)
	} else {
		counterpart = proposal.AgentID
	}
	if counterpart != "" {
		if err := s.notifications.Notify(counterpart, models.NotificationProposalArchived,
			"Proposal archived", fmt.Sprintf("The proposal %q was archived", proposal.Title), &proposal.ID); err != nil {
			res.SecondaryFailures = append(res.SecondaryFailures, "notify counterpart: "+err.Error())
		}
	}

	return res, nil
}

// ToggleReviewLater sets a 30-day review-later marker on a pending proposal,
// or clears it if already set. An idempotent toggle, not a queue.
func (s *proposalService) ToggleReviewLater(actorID string, role models.UserRole, proposalID string) (*models.Proposal, error) {
	proposal, err := s.loadForActor(actorID, role, proposalID)
	if err != nil {
		return nil, err
	}
	if proposal.IsArchived() {
		return nil, apperrors.ErrProposalArchived
	}
	if proposal.Status != models.ProposalStatusPending {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidTransition, "Only pending proposals can be marked for later review")
	}

	var until *time.Time
	if proposal.ReviewLaterUntil == nil {
		t := time.Now().Add(reviewLaterWindow)
		until = &t
	}

	if err := s.db.Model(proposal).Update("review_later_until", until).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	proposal.ReviewLaterUntil = until
	return proposal, nil
}

// ClearExpiredReviewLater clears review-later markers whose window has
// passed. Run by the hourly maintenance job.
func (s *proposalService) ClearExpiredReviewLater() (int64, error) {
	result := s.db.Model(&models.Proposal{}).
		Where("review_later_until IS NOT NULL AND review_later_until < ?", time.Now()).
		Update("review_later_until", nil)
	if result.Error != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, result.Error)
	}
	return result.RowsAffected, nil
}

// loadForActor fetches a proposal and verifies the actor is a party to it.
// Proposals the actor may not see surface as not found.
func (s *proposalService) loadForActor(actorID string, role models.UserRole, proposalID string) (*models.Proposal, error) {
	var proposal models.Proposal
	if err := s.db.Preload("Client").Where("id = ?", proposalID).First(&proposal).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrProposalNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	switch role {
	case models.RoleAdmin:
	case models.RoleAgent:
		if proposal.AgentID != actorID {
			return nil, apperrors.ErrProposalNotFound
		}
	case models.RoleClient:
		if proposal.Client.UserID == nil || *proposal.Client.UserID != actorID {
			return nil, apperrors.ErrProposalNotFound
		}
	default:
		return nil, apperrors.ErrForbidden
	}

	return &proposal, nil
}

// clientUserID returns the registered user behind the proposal's client
// contact, or empty if the contact never registered.
func (s *proposalService) clientUserID(proposal *models.Proposal) string {
	if proposal.Client.ID == "" {
		if err := s.db.Where("id = ?", proposal.ClientID).First(&proposal.Client).Error; err != nil {
			return ""
		}
	}
	if proposal.Client.UserID == nil {
		return ""
	}
	return *proposal.Client.UserID
}
