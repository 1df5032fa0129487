package models

// Client is a lightweight contact record owned by an agent. UserID is set
// once the contact registers an account of their own.
type Client struct {
	Base
	AgentID    string  `gorm:"type:uuid;not null;index" json:"agent_id"`
	UserID     *string `gorm:"type:uuid;index" json:"user_id,omitempty"`
	Name       string  `gorm:"not null" json:"name"`
	Email      string  `gorm:"index" json:"email"`
	Phone      string  `json:"phone,omitempty"`
	Street     string  `json:"street,omitempty"`
	City       string  `json:"city,omitempty"`
	PostalCode string  `json:"postal_code,omitempty"`
	Country    string  `json:"country,omitempty"`

	Proposals []Proposal `gorm:"foreignKey:ClientID" json:"proposals,omitempty"`
}
