package services

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"gorm.io/gorm"

	apperrors "carbonflow/internal/errors"
	"carbonflow/internal/logger"
	"carbonflow/internal/middleware"
	"carbonflow/internal/models"
)

const (
	invitationTokenBytes = 32
	defaultInvitationTTL = 14 * 24 * time.Hour
)

// invitationService manages bearer tokens that let an unauthenticated
// recipient view one specific proposal.
type invitationService struct {
	db *gorm.DB
}

// NewInvitationService creates a new InvitationServicer.
func NewInvitationService(db *gorm.DB) InvitationServicer {
	return &invitationService{db: db}
}

// CreateInvitation issues a token for a proposal. The plain token is
// returned exactly once; only its SHA-256 hash is stored.
func (s *invitationService) CreateInvitation(actorID string, role models.UserRole, proposalID, clientEmail string, ttl time.Duration) (string, *models.InvitationToken, error) {
	if clientEmail == "" {
		return "", nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "client_email is required")
	}
	if ttl <= 0 {
		ttl = defaultInvitationTTL
	}

	var proposal models.Proposal
	if err := s.db.Where("id = ?", proposalID).First(&proposal).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil, apperrors.ErrProposalNotFound
		}
		return "", nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if role != models.RoleAdmin && proposal.AgentID != actorID {
		return "", nil, apperrors.ErrNotProposalParty
	}

	raw := make([]byte, invitationTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	token := hex.EncodeToString(raw)

	invitation := &models.InvitationToken{
		ProposalID:  proposalID,
		ClientEmail: clientEmail,
		TokenHash:   middleware.HashToken(token),
		ExpiresAt:   time.Now().Add(ttl),
	}
	if err := s.db.Create(invitation).Error; err != nil {
		return "", nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return token, invitation, nil
}

// ValidateToken checks an invitation token. Unknown, expired, and revoked
// tokens all yield IsValid=false rather than an error; the caller renders
// the same "invitation is not valid" page either way.
func (s *invitationService) ValidateToken(token string) (*InvitationValidation, error) {
	invitation, err := s.lookup(token)
	if err != nil {
		if errors.Is(err, apperrors.ErrInvitationNotFound) {
			return &InvitationValidation{IsValid: false}, nil
		}
		return nil, err
	}

	valid := invitation.RevokedAt == nil && invitation.ExpiresAt.After(time.Now())
	if !valid {
		return &InvitationValidation{IsValid: false}, nil
	}

	return &InvitationValidation{
		ProposalID:  invitation.ProposalID,
		ClientEmail: invitation.ClientEmail,
		IsValid:     true,
	}, nil
}

// MarkViewed stamps the first-view time on a token. Call sites treat this
// as fire-and-forget; failures are logged here and not returned as fatal
// by handlers.
func (s *invitationService) MarkViewed(token string) error {
	invitation, err := s.lookup(token)
	if err != nil {
		logger.Get().Warnw("failed to mark invitation viewed", "error", err)
		return err
	}
	if invitation.ViewedAt != nil {
		return nil
	}
	if err := s.db.Model(invitation).Update("viewed_at", time.Now()).Error; err != nil {
		logger.Get().Warnw("failed to mark invitation viewed", "error", err, "invitation_id", invitation.ID)
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// RevokeInvitation invalidates a token before its expiry.
func (s *invitationService) RevokeInvitation(actorID string, role models.UserRole, invitationID string) error {
	var invitation models.InvitationToken
	if err := s.db.Preload("Proposal").Where("id = ?", invitationID).First(&invitation).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrInvitationNotFound
		}
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if role != models.RoleAdmin && invitation.Proposal.AgentID != actorID {
		return apperrors.ErrNotProposalParty
	}
	if invitation.RevokedAt != nil {
		return nil
	}
	if err := s.db.Model(&invitation).Update("revoked_at", time.Now()).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

func (s *invitationService) lookup(token string) (*models.InvitationToken, error) {
	var invitation models.InvitationToken
	if err := s.db.Where("token_hash = ?", middleware.HashToken(token)).First(&invitation).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrInvitationNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &invitation, nil
}
