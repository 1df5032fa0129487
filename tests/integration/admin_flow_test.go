package integration

import (
	"net/http"
	"testing"
)

func TestAdminFlow_Settings(t *testing.T) {
	app := setupApp(t)

	adminToken, _, _ := app.registerUser(t, "admin@test.com", "password123", "admin")

	rec := app.request("GET", "/api/v1/admin/settings/support_email", "", adminToken)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unset key, got %d: %s", rec.Code, rec.Body.String())
	}
	assertErrorCode(t, rec, "SETTING_NOT_FOUND")

	rec = app.request("PUT", "/api/v1/admin/settings/support_email",
		`{"value":"help@carbonflow.test"}`, adminToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("set failed: %d %s", rec.Code, rec.Body.String())
	}

	rec = app.request("GET", "/api/v1/admin/settings/support_email", "", adminToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("get failed: %d %s", rec.Code, rec.Body.String())
	}
	result := parseJSON(t, rec)
	if result["value"] != "help@carbonflow.test" {
		t.Errorf("expected stored value, got %v", result["value"])
	}
}

func TestAdminFlow_RoutesRejectNonAdmins(t *testing.T) {
	app := setupApp(t)

	agentToken, _, _ := app.registerUser(t, "plain@test.com", "password123", "agent")

	rec := app.request("GET", "/api/v1/admin/settings/support_email", "", agentToken)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for agent on admin route, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = app.request("POST", "/api/v1/admin/repair-shares", "", agentToken)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for agent on repair route, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAdminFlow_RepairShares(t *testing.T) {
	app := setupApp(t)

	adminToken, _, _ := app.registerUser(t, "fixer@test.com", "password123", "admin")
	agentToken, _, _ := app.registerUser(t, "drift@test.com", "password123", "agent")
	clientID := app.createClient(t, agentToken, "Drift Energy", "drift-client@test.com")
	proposal := app.createProposal(t, agentToken, "Drifted", clientID, 200, "kWp")

	// Force the stored split out of line with the tier table.
	if err := app.DB.Table("proposals").Where("id = ?", proposal["id"].(string)).
		Updates(map[string]interface{}{"client_share_pct": 99, "agent_commission_pct": 1}).Error; err != nil {
		t.Fatalf("failed to seed drift: %v", err)
	}

	rec := app.request("POST", "/api/v1/admin/repair-shares", "", adminToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("repair failed: %d %s", rec.Code, rec.Body.String())
	}
	report := parseJSON(t, rec)["report"].(map[string]interface{})
	if got := report["fixed"].(float64); got != 1 {
		t.Errorf("expected 1 fixed proposal, got %v", got)
	}

	rec = app.request("GET", "/api/v1/proposals/"+proposal["id"].(string), "", agentToken)
	repaired := parseJSON(t, rec)["proposal"].(map[string]interface{})
	if got := repaired["client_share_pct"].(float64); got != 55 {
		t.Errorf("expected repaired 55%% share, got %v", got)
	}
	if got := repaired["agent_commission_pct"].(float64); got != 4 {
		t.Errorf("expected repaired 4%% commission, got %v", got)
	}
}
