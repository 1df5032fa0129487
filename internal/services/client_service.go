package services

import (
	"bytes"
	"encoding/csv"
	"errors"
	"strconv"

	"gorm.io/gorm"

	apperrors "carbonflow/internal/errors"
	"carbonflow/internal/models"
	"carbonflow/internal/pagination"
)

// clientService handles client contact records.
type clientService struct {
	db        *gorm.DB
	portfolio PortfolioServicer
}

// NewClientService creates a new ClientServicer.
func NewClientService(db *gorm.DB, portfolio PortfolioServicer) ClientServicer {
	return &clientService{db: db, portfolio: portfolio}
}

// CreateClient creates a contact record owned by the agent.
func (s *clientService) CreateClient(agentID string, input ClientInput) (*models.Client, error) {
	if input.Name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "name is required")
	}

	client := &models.Client{
		AgentID:    agentID,
		Name:       input.Name,
		Email:      input.Email,
		Phone:      input.Phone,
		Street:     input.Street,
		City:       input.City,
		PostalCode: input.PostalCode,
		Country:    input.Country,
	}

	// Link to an already-registered user with the same email.
	if input.Email != "" {
		var user models.User
		if err := s.db.Where("email = ? AND role = ?", input.Email, models.RoleClient).First(&user).Error; err == nil {
			client.UserID = &user.ID
		}
	}

	if err := s.db.Create(client).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return client, nil
}

// GetClients lists the actor's clients; admins see all.
func (s *clientService) GetClients(actorID string, role models.UserRole, page pagination.PageRequest) (*pagination.PageResponse[models.Client], error) {
	page.Defaults()

	base := s.scoped(actorID, role)

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var clients []models.Client
	if err := base.Order("name ASC").Scopes(pagination.Paginate(page)).Find(&clients).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(clients, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetClientByID retrieves a single client visible to the actor.
func (s *clientService) GetClientByID(actorID string, role models.UserRole, clientID string) (*models.Client, error) {
	var client models.Client
	if err := s.scoped(actorID, role).Where("id = ?", clientID).First(&client).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrClientNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &client, nil
}

// UpdateClient updates a client's contact fields.
func (s *clientService) UpdateClient(actorID string, role models.UserRole, clientID string, input ClientInput) (*models.Client, error) {
	client, err := s.GetClientByID(actorID, role, clientID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"email":       input.Email,
		"phone":       input.Phone,
		"street":      input.Street,
		"city":        input.City,
		"postal_code": input.PostalCode,
		"country":     input.Country,
	}
	if input.Name != "" {
		updates["name"] = input.Name
	}

	if err := s.db.Model(client).Updates(updates).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return s.GetClientByID(actorID, role, clientID)
}

// DeleteClient soft-deletes a client record. Clients with proposals keep
// their proposals; the contact just disappears from listings.
func (s *clientService) DeleteClient(actorID string, role models.UserRole, clientID string) error {
	client, err := s.GetClientByID(actorID, role, clientID)
	if err != nil {
		return err
	}
	if err := s.db.Delete(client).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// SearchClients finds clients by name or email prefix for the interactive
// search box. The endpoint carrying this is rate limited.
func (s *clientService) SearchClients(actorID string, role models.UserRole, query string, limit int) ([]models.Client, error) {
	if query == "" {
		return []models.Client{}, nil
	}
	if limit <= 0 || limit > 50 {
		limit = 10
	}

	pattern := query + "%"
	var clients []models.Client
	if err := s.scoped(actorID, role).
		Where("name LIKE ? OR email LIKE ?", pattern, pattern).
		Order("name ASC").Limit(limit).Find(&clients).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return clients, nil
}

// ExportCSV renders the actor's client list, including each client's current
// portfolio, as CSV. An empty client list yields no bytes: the caller must
// not produce a download for nothing.
func (s *clientService) ExportCSV(actorID string, role models.UserRole) ([]byte, error) {
	var clients []models.Client
	if err := s.scoped(actorID, role).Order("name ASC").Find(&clients).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if len(clients) == 0 {
		return nil, nil
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"name", "email", "phone", "city", "country", "portfolio_kwp", "project_count"})
	for i := range clients {
		c := &clients[i]
		portfolio := s.portfolio.CalculateClientPortfolio(c.ID, PortfolioOptions{})
		_ = w.Write([]string{
			c.Name,
			c.Email,
			c.Phone,
			c.City,
			c.Country,
			strconv.FormatFloat(portfolio.TotalKWp, 'f', -1, 64),
			strconv.Itoa(portfolio.ProjectCount),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return buf.Bytes(), nil
}

// scoped returns a query restricted to the clients the actor may see.
func (s *clientService) scoped(actorID string, role models.UserRole) *gorm.DB {
	base := s.db.Model(&models.Client{})
	if role != models.RoleAdmin {
		base = base.Where("agent_id = ?", actorID)
	}
	return base
}
