package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"

	"carbonflow/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// CreateTestUser creates an active user with the given role and a unique email.
func CreateTestUser(t *testing.T, db *gorm.DB, role models.UserRole) *models.User {
	t.Helper()
	email := fmt.Sprintf("user%d@test.com", nextID())
	return CreateTestUserWithEmail(t, db, email, role)
}

// CreateTestUserWithEmail creates a user with the given email and role.
func CreateTestUserWithEmail(t *testing.T, db *gorm.DB, email string, role models.UserRole) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Email:    email,
		Password: string(hash),
		Role:     role,
		IsActive: true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestClient creates a client contact record owned by the agent.
func CreateTestClient(t *testing.T, db *gorm.DB, agentID string) *models.Client {
	t.Helper()

	n := nextID()
	client := &models.Client{
		AgentID: agentID,
		Name:    fmt.Sprintf("Test Client %d", n),
		Email:   fmt.Sprintf("client%d@test.com", n),
	}
	if err := db.Create(client).Error; err != nil {
		t.Fatalf("failed to create test client: %v", err)
	}
	return client
}

// CreateTestClientForUser creates a client contact linked to a registered user.
func CreateTestClientForUser(t *testing.T, db *gorm.DB, agentID string, user *models.User) *models.Client {
	t.Helper()

	client := &models.Client{
		AgentID: agentID,
		UserID:  &user.ID,
		Name:    fmt.Sprintf("Test Client %d", nextID()),
		Email:   user.Email,
	}
	if err := db.Create(client).Error; err != nil {
		t.Fatalf("failed to create test client: %v", err)
	}
	return client
}

// CreateTestProposal creates a proposal with the given status and system size.
func CreateTestProposal(t *testing.T, db *gorm.DB, agentID, clientID string, status models.ProposalStatus, sizeKWp float64) *models.Proposal {
	t.Helper()

	proposal := &models.Proposal{
		Title:         fmt.Sprintf("Test Proposal %d", nextID()),
		Status:        status,
		AgentID:       agentID,
		ClientID:      clientID,
		SystemSizeKWp: sizeKWp,
	}
	if err := db.Create(proposal).Error; err != nil {
		t.Fatalf("failed to create test proposal: %v", err)
	}
	return proposal
}
