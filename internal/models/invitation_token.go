package models

import "time"

// InvitationToken is a bearer credential allowing an unauthenticated
// recipient to view one specific proposal. Only the SHA-256 hash of the
// token is stored; the plain token is returned once at creation.
type InvitationToken struct {
	Base
	ProposalID  string     `gorm:"type:uuid;not null;index" json:"proposal_id"`
	ClientEmail string     `gorm:"not null" json:"client_email"`
	TokenHash   string     `gorm:"size:64;uniqueIndex;not null" json:"-"`
	ExpiresAt   time.Time  `gorm:"not null" json:"expires_at"`
	ViewedAt    *time.Time `json:"viewed_at,omitempty"`
	RevokedAt   *time.Time `json:"revoked_at,omitempty"`

	Proposal Proposal `gorm:"foreignKey:ProposalID" json:"proposal,omitempty"`
}
