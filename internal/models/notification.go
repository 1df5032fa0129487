package models

import "time"

// NotificationType classifies in-app notifications.
type NotificationType string

const (
	NotificationProposalApproved NotificationType = "proposal_approved"
	NotificationProposalRejected NotificationType = "proposal_rejected"
	NotificationProposalArchived NotificationType = "proposal_archived"
	NotificationProposalReceived NotificationType = "proposal_received"
)

// Notification is a row in a user's in-app feed. Creation is a best-effort
// secondary effect of proposal transitions and must never fail the primary
// mutation.
type Notification struct {
	Base
	UserID     string           `gorm:"type:uuid;not null;index" json:"user_id"`
	Type       NotificationType `gorm:"not null" json:"type"`
	Title      string           `gorm:"not null" json:"title"`
	Message    string           `json:"message"`
	ProposalID *string          `gorm:"type:uuid;index" json:"proposal_id,omitempty"`
	ReadAt     *time.Time       `json:"read_at,omitempty"`
}
