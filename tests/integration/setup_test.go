package integration

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"carbonflow/internal/handlers"
	"carbonflow/internal/logger"
	"carbonflow/internal/middleware"
	"carbonflow/internal/models"
	"carbonflow/internal/services"
	"carbonflow/internal/validator"
)

// testApp holds the full application stack for integration tests.
type testApp struct {
	DB     *gorm.DB
	Router *gin.Engine
}

// dbCounter ensures each test gets a unique in-memory database.
var dbCounter atomic.Int64

func init() {
	gin.SetMode(gin.TestMode)
	logger.Init("test")
	validator.Register()
}

// setupIsolatedDB creates an isolated in-memory SQLite database for a single test.
func setupIsolatedDB(t *testing.T) *gorm.DB {
	t.Helper()

	n := dbCounter.Add(1)
	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", n)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	allModels := []interface{}{
		&models.User{},
		&models.Client{},
		&models.Proposal{},
		&models.InvitationToken{},
		&models.Notification{},
		&models.SystemSetting{},
		&models.AuditLog{},
	}
	if err := db.AutoMigrate(allModels...); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

// setupApp creates a full application stack backed by an isolated in-memory SQLite.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	db := setupIsolatedDB(t)

	// Services
	userService := services.NewUserService(db)
	auditService := services.NewAuditService(db)
	portfolioService := services.NewPortfolioService(db)
	notificationService := services.NewNotificationService(db)
	clientService := services.NewClientService(db, portfolioService)
	proposalService := services.NewProposalService(db, portfolioService, notificationService)
	invitationService := services.NewInvitationService(db)
	settingsService := services.NewSettingsService(db)

	// Handlers
	authHandler := handlers.NewAuthHandler(userService, auditService)
	clientHandler := handlers.NewClientHandler(clientService, portfolioService, auditService)
	proposalHandler := handlers.NewProposalHandler(proposalService, auditService)
	portfolioHandler := handlers.NewPortfolioHandler(portfolioService, clientService)
	invitationHandler := handlers.NewInvitationHandler(invitationService, auditService)
	notificationHandler := handlers.NewNotificationHandler(notificationService)
	settingsHandler := handlers.NewSettingsHandler(settingsService, auditService)

	// Router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.ErrorHandler())

	v1 := router.Group("/api/v1")

	// Public routes
	auth := v1.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)

	v1.GET("/invitations/validate", invitationHandler.ValidateInvitation)

	// Protected routes
	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware())

	protected.GET("/auth/profile", authHandler.GetProfile)

	clients := protected.Group("/clients")
	clients.POST("", clientHandler.CreateClient)
	clients.GET("", clientHandler.GetClients)
	clients.GET("/search", clientHandler.SearchClients)
	clients.GET("/export", clientHandler.ExportClients)
	clients.GET("/:id", clientHandler.GetClient)
	clients.PUT("/:id", clientHandler.UpdateClient)
	clients.DELETE("/:id", clientHandler.DeleteClient)
	clients.GET("/:id/portfolio", portfolioHandler.GetClientPortfolio)

	proposals := protected.Group("/proposals")
	proposals.POST("", proposalHandler.CreateProposal)
	proposals.GET("", proposalHandler.GetProposals)
	proposals.GET("/:id", proposalHandler.GetProposal)
	proposals.PUT("/:id", proposalHandler.UpdateProposal)
	proposals.POST("/:id/submit", proposalHandler.SubmitProposal)
	proposals.POST("/:id/approve", proposalHandler.ApproveProposal)
	proposals.POST("/:id/reject", proposalHandler.RejectProposal)
	proposals.POST("/:id/archive", proposalHandler.ArchiveProposal)
	proposals.POST("/:id/review-later", proposalHandler.ToggleReviewLater)
	proposals.POST("/:id/invitations", invitationHandler.CreateInvitation)

	protected.DELETE("/invitations/:id", invitationHandler.RevokeInvitation)

	protected.GET("/portfolio", portfolioHandler.GetAgentPortfolio)

	notifications := protected.Group("/notifications")
	notifications.GET("", notificationHandler.GetNotifications)
	notifications.POST("/:id/read", notificationHandler.MarkRead)
	notifications.POST("/read-all", notificationHandler.MarkAllRead)

	admin := protected.Group("/admin")
	admin.Use(middleware.RequireRole(models.RoleAdmin))
	admin.GET("/settings/:key", settingsHandler.GetSetting)
	admin.PUT("/settings/:key", settingsHandler.UpdateSetting)
	admin.POST("/repair-shares", portfolioHandler.RepairShares)

	return &testApp{DB: db, Router: router}
}

// request makes an HTTP request to the test router and returns the recorder.
func (app *testApp) request(method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

// parseJSON parses the response body into a map.
func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

// assertErrorCode checks the structured error payload of a failed request.
func assertErrorCode(t *testing.T, rec *httptest.ResponseRecorder, want string) {
	t.Helper()
	result := parseJSON(t, rec)
	errObj, ok := result["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error object, got: %s", rec.Body.String())
	}
	if errObj["code"] != want {
		t.Errorf("expected error code %s, got %v", want, errObj["code"])
	}
}

// registerUser registers a new user and returns the access token, refresh token, and user ID.
func (app *testApp) registerUser(t *testing.T, email, password, role string) (accessToken, refreshToken, userID string) {
	t.Helper()
	body := fmt.Sprintf(`{"email":%q,"password":%q,"first_name":"Test","last_name":"User","role":%q}`, email, password, role)
	rec := app.request("POST", "/api/v1/auth/register", body, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("register failed: %d %s", rec.Code, rec.Body.String())
	}
	result := parseJSON(t, rec)
	user := result["user"].(map[string]interface{})
	return result["access_token"].(string), result["refresh_token"].(string), user["id"].(string)
}

// loginUser logs in and returns the access and refresh tokens.
func (app *testApp) loginUser(t *testing.T, email, password string) (accessToken, refreshToken string) {
	t.Helper()
	body := fmt.Sprintf(`{"email":%q,"password":%q}`, email, password)
	rec := app.request("POST", "/api/v1/auth/login", body, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", rec.Code, rec.Body.String())
	}
	result := parseJSON(t, rec)
	return result["access_token"].(string), result["refresh_token"].(string)
}

// createClient creates a client contact for the authenticated agent and returns its ID.
func (app *testApp) createClient(t *testing.T, token, name, email string) string {
	t.Helper()
	body := fmt.Sprintf(`{"name":%q,"email":%q}`, name, email)
	rec := app.request("POST", "/api/v1/clients", body, token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create client failed: %d %s", rec.Code, rec.Body.String())
	}
	result := parseJSON(t, rec)
	client := result["client"].(map[string]interface{})
	return client["id"].(string)
}

// createProposal creates a proposal draft and returns the proposal payload.
func (app *testApp) createProposal(t *testing.T, token, title, clientID string, size float64, unit string) map[string]interface{} {
	t.Helper()
	body := fmt.Sprintf(`{"title":%q,"client_id":%q,"system_size":%g,"system_size_unit":%q}`, title, clientID, size, unit)
	rec := app.request("POST", "/api/v1/proposals", body, token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create proposal failed: %d %s", rec.Code, rec.Body.String())
	}
	result := parseJSON(t, rec)
	return result["proposal"].(map[string]interface{})
}
