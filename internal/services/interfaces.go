package services

import (
	"time"

	"carbonflow/internal/models"
	"carbonflow/internal/pagination"
)

// UserServicer defines the contract for user-related business logic.
type UserServicer interface {
	CreateUser(email, password, firstName, lastName, companyName string, role models.UserRole) (*models.User, error)
	GetUserByEmail(email string) (*models.User, error)
	GetUserByID(id string) (*models.User, error)
	VerifyPassword(user *models.User, password string) bool
	AttemptLogin(email, password string) (*models.User, error)
	StoreRefreshTokenHash(userID, tokenHash string) error
	GetRefreshTokenHash(userID string) (string, error)
}

// ClientServicer defines the contract for client contact records.
type ClientServicer interface {
	CreateClient(agentID string, input ClientInput) (*models.Client, error)
	GetClients(actorID string, role models.UserRole, page pagination.PageRequest) (*pagination.PageResponse[models.Client], error)
	GetClientByID(actorID string, role models.UserRole, clientID string) (*models.Client, error)
	UpdateClient(actorID string, role models.UserRole, clientID string, input ClientInput) (*models.Client, error)
	DeleteClient(actorID string, role models.UserRole, clientID string) error
	SearchClients(actorID string, role models.UserRole, query string, limit int) ([]models.Client, error)
	ExportCSV(actorID string, role models.UserRole) ([]byte, error)
}

// ClientInput holds the writable fields of a client record.
type ClientInput struct {
	Name       string
	Email      string
	Phone      string
	Street     string
	City       string
	PostalCode string
	Country    string
}

// ProposalFilter holds optional filter parameters for listing proposals.
type ProposalFilter struct {
	Status          *models.ProposalStatus
	IncludeArchived bool
	ClientID        *string
}

// ProposalInput holds the writable fields of a proposal draft.
type ProposalInput struct {
	Title          string
	ClientID       string
	SystemSize     float64
	SystemSizeUnit string
}

// TransitionResult is the outcome of a proposal status transition: the
// updated proposal plus any best-effort secondary effects (notifications,
// audit entries) that failed without failing the transition itself.
type TransitionResult struct {
	Proposal          *models.Proposal `json:"proposal"`
	SecondaryFailures []string         `json:"secondary_failures,omitempty"`
}

// ProposalServicer defines the contract for proposal lifecycle logic.
type ProposalServicer interface {
	CreateProposal(agentID string, input ProposalInput) (*models.Proposal, error)
	GetProposals(actorID string, role models.UserRole, filter ProposalFilter, page pagination.PageRequest) (*pagination.PageResponse[models.Proposal], error)
	GetProposalByID(actorID string, role models.UserRole, proposalID string) (*models.Proposal, error)
	UpdateDraft(actorID string, role models.UserRole, proposalID string, input ProposalInput) (*models.Proposal, error)
	SubmitProposal(actorID string, role models.UserRole, proposalID string) (*models.Proposal, error)
	ApproveProposal(actorID string, role models.UserRole, proposalID string) (*TransitionResult, error)
	RejectProposal(actorID string, role models.UserRole, proposalID string) (*TransitionResult, error)
	ArchiveProposal(actorID string, role models.UserRole, proposalID string) (*TransitionResult, error)
	ToggleReviewLater(actorID string, role models.UserRole, proposalID string) (*models.Proposal, error)
	ClearExpiredReviewLater() (int64, error)
}

// PortfolioData is the derived cumulative portfolio of a client or agent.
type PortfolioData struct {
	TotalKWp     float64 `json:"total_kwp"`
	ProjectCount int     `json:"project_count"`
}

// PortfolioOptions adjusts an aggregation: DraftKWp adds an in-progress,
// not-yet-persisted proposal; ExcludeProposalID prevents double counting
// when viewing a proposal that is already part of the aggregate.
type PortfolioOptions struct {
	DraftKWp          float64
	ExcludeProposalID string
}

// RepairReport summarizes a batch share-percentage recompute.
type RepairReport struct {
	Checked int `json:"checked"`
	Fixed   int `json:"fixed"`
	Errors  int `json:"errors"`
}

// PortfolioServicer defines the contract for portfolio aggregation and repair.
type PortfolioServicer interface {
	CalculateClientPortfolio(clientID string, opts PortfolioOptions) PortfolioData
	CalculateAgentPortfolio(agentID string, opts PortfolioOptions) PortfolioData
	RepairClientShares(clientID string) (*RepairReport, error)
	RepairAllClientShares() (*RepairReport, error)
}

// NotificationServicer defines the contract for the in-app notification feed.
type NotificationServicer interface {
	Notify(userID string, notificationType models.NotificationType, title, message string, proposalID *string) error
	GetUserNotifications(userID string, unreadOnly bool, page pagination.PageRequest) (*pagination.PageResponse[models.Notification], error)
	MarkRead(userID, notificationID string) error
	MarkAllRead(userID string) (int64, error)
}

// InvitationValidation is the result of checking an invitation token.
type InvitationValidation struct {
	ProposalID  string `json:"proposal_id"`
	ClientEmail string `json:"client_email"`
	IsValid     bool   `json:"is_valid"`
}

// InvitationServicer defines the contract for proposal invitation tokens.
type InvitationServicer interface {
	CreateInvitation(actorID string, role models.UserRole, proposalID, clientEmail string, ttl time.Duration) (string, *models.InvitationToken, error)
	ValidateToken(token string) (*InvitationValidation, error)
	MarkViewed(token string) error
	RevokeInvitation(actorID string, role models.UserRole, invitationID string) error
}

// SettingsServicer defines the contract for system settings.
type SettingsServicer interface {
	GetSetting(key string) (string, error)
	SetSetting(key, value string) error
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(userID, action, resourceType, resourceID, ipAddress string, changes map[string]interface{})
}
