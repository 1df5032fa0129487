package models

import "time"

// UserRole represents the role a user holds on the platform.
type UserRole string

const (
	RoleAdmin  UserRole = "admin"
	RoleAgent  UserRole = "agent"
	RoleClient UserRole = "client"
)

// User represents a registered profile. Agents and admins author proposals;
// clients receive and sign them.
type User struct {
	Base
	Email               string     `gorm:"uniqueIndex;not null" json:"email"`
	Password            string     `gorm:"not null" json:"-"`
	FirstName           string     `json:"first_name"`
	LastName            string     `json:"last_name"`
	CompanyName         string     `json:"company_name,omitempty"`
	Role                UserRole   `gorm:"not null;default:client" json:"role"`
	IsActive            bool       `gorm:"default:true" json:"is_active"`
	RefreshTokenHash    string     `gorm:"size:64" json:"-"`
	FailedLoginAttempts int        `gorm:"default:0" json:"-"`
	LockedUntil         *time.Time `json:"-"`
	LastLoginAt         *time.Time `json:"last_login_at,omitempty"`

	Clients  []Client   `gorm:"foreignKey:AgentID" json:"clients,omitempty"`
	Authored []Proposal `gorm:"foreignKey:AgentID" json:"authored,omitempty"`
}
