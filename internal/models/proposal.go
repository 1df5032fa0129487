package models

import "time"

// ProposalStatus represents the lifecycle state of a proposal.
type ProposalStatus string

const (
	ProposalStatusDraft    ProposalStatus = "draft"
	ProposalStatusPending  ProposalStatus = "pending"
	ProposalStatusApproved ProposalStatus = "approved"
	ProposalStatusRejected ProposalStatus = "rejected"
)

// Proposal bundles a client, a solar system, and its calculated carbon-credit
// revenue split. ArchivedAt is a one-way flag orthogonal to Status;
// ReviewLaterUntil is a temporary deferral marker that approve/reject clear.
type Proposal struct {
	Base
	Title    string         `gorm:"not null" json:"title"`
	Status   ProposalStatus `gorm:"not null;default:draft;index" json:"status"`
	AgentID  string         `gorm:"type:uuid;not null;index" json:"agent_id"`
	ClientID string         `gorm:"type:uuid;not null;index" json:"client_id"`

	SystemSizeKWp       float64 `gorm:"column:system_size_kwp;not null" json:"system_size_kwp"`
	AnnualEnergyKWh     float64 `gorm:"column:annual_energy_kwh;not null" json:"annual_energy_kwh"`
	AnnualCarbonCredits float64 `gorm:"not null" json:"annual_carbon_credits"`
	ClientSharePct      float64 `gorm:"not null" json:"client_share_pct"`
	AgentCommissionPct  float64 `gorm:"not null" json:"agent_commission_pct"`

	SignedAt         *time.Time `json:"signed_at,omitempty"`
	ArchivedAt       *time.Time `gorm:"index" json:"archived_at,omitempty"`
	ReviewLaterUntil *time.Time `json:"review_later_until,omitempty"`
	PDFURL           string     `json:"pdf_url,omitempty"`

	Agent  User   `gorm:"foreignKey:AgentID" json:"agent,omitempty"`
	Client Client `gorm:"foreignKey:ClientID" json:"client,omitempty"`
}

// IsArchived reports whether the proposal has been archived.
func (p *Proposal) IsArchived() bool {
	return p.ArchivedAt != nil
}

// PlatformSharePct returns the platform's remainder of the revenue split.
func (p *Proposal) PlatformSharePct() float64 {
	return 100 - p.ClientSharePct - p.AgentCommissionPct
}
