package integration

import (
	"fmt"
	"net/http"
	"testing"
)

func TestProposalFlow_DraftToApproved(t *testing.T) {
	app := setupApp(t)

	agentToken, _, _ := app.registerUser(t, "agent@test.com", "password123", "agent")
	clientID := app.createClient(t, agentToken, "Solaris GmbH", "owner@solaris.test")
	clientToken, _, _ := app.registerUser(t, "owner@solaris.test", "password123", "client")

	// Draft: 0.5 MWp normalizes to 500 kWp; first project lands in the 100 kWp tier.
	proposal := app.createProposal(t, agentToken, "Rooftop PV Phase 1", clientID, 0.5, "MWp")
	proposalID := proposal["id"].(string)
	if proposal["status"] != "draft" {
		t.Fatalf("expected draft status, got %v", proposal["status"])
	}
	if got := proposal["system_size_kwp"].(float64); got != 500 {
		t.Errorf("expected 500 kWp, got %v", got)
	}
	if got := proposal["annual_energy_kwh"].(float64); got != 550000 {
		t.Errorf("expected 550000 kWh, got %v", got)
	}
	if got := proposal["annual_carbon_credits"].(float64); got != 385 {
		t.Errorf("expected 385 credits, got %v", got)
	}
	if got := proposal["client_share_pct"].(float64); got != 55 {
		t.Errorf("expected 55%% client share, got %v", got)
	}
	if got := proposal["agent_commission_pct"].(float64); got != 4 {
		t.Errorf("expected 4%% commission, got %v", got)
	}

	// Submit: draft -> pending, client is notified.
	rec := app.request("POST", "/api/v1/proposals/"+proposalID+"/submit", "", agentToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("submit failed: %d %s", rec.Code, rec.Body.String())
	}
	result := parseJSON(t, rec)
	if result["proposal"].(map[string]interface{})["status"] != "pending" {
		t.Fatalf("expected pending after submit, got %s", rec.Body.String())
	}

	rec = app.request("GET", "/api/v1/notifications", "", clientToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("notifications failed: %d %s", rec.Code, rec.Body.String())
	}
	feed := parseJSON(t, rec)["data"].([]interface{})
	if len(feed) != 1 {
		t.Fatalf("expected 1 client notification, got %d", len(feed))
	}
	if feed[0].(map[string]interface{})["type"] != "proposal_received" {
		t.Errorf("expected proposal_received, got %v", feed[0].(map[string]interface{})["type"])
	}

	// The client sees the pending proposal in their own listing.
	rec = app.request("GET", "/api/v1/proposals", "", clientToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("client listing failed: %d %s", rec.Code, rec.Body.String())
	}
	listing := parseJSON(t, rec)["data"].([]interface{})
	if len(listing) != 1 {
		t.Fatalf("expected client to see 1 proposal, got %d", len(listing))
	}

	// Approve as the client: pending -> approved, signed_at stamped, agent notified.
	rec = app.request("POST", "/api/v1/proposals/"+proposalID+"/approve", "", clientToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("approve failed: %d %s", rec.Code, rec.Body.String())
	}
	approved := parseJSON(t, rec)["proposal"].(map[string]interface{})
	if approved["status"] != "approved" {
		t.Errorf("expected approved, got %v", approved["status"])
	}
	if approved["signed_at"] == nil {
		t.Error("expected signed_at to be stamped on approval")
	}

	rec = app.request("GET", "/api/v1/notifications", "", agentToken)
	agentFeed := parseJSON(t, rec)["data"].([]interface{})
	if len(agentFeed) != 1 {
		t.Fatalf("expected 1 agent notification, got %d", len(agentFeed))
	}
	if agentFeed[0].(map[string]interface{})["type"] != "proposal_approved" {
		t.Errorf("expected proposal_approved, got %v", agentFeed[0].(map[string]interface{})["type"])
	}

	// The client's cumulative portfolio now carries the approved system.
	rec = app.request("GET", "/api/v1/clients/"+clientID+"/portfolio", "", agentToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("portfolio failed: %d %s", rec.Code, rec.Body.String())
	}
	portfolio := parseJSON(t, rec)["portfolio"].(map[string]interface{})
	if got := portfolio["total_kwp"].(float64); got != 500 {
		t.Errorf("expected 500 kWp portfolio, got %v", got)
	}
	if got := portfolio["project_count"].(float64); got != 1 {
		t.Errorf("expected 1 project, got %v", got)
	}
}

func TestProposalFlow_PortfolioTierUpgrade(t *testing.T) {
	app := setupApp(t)

	agentToken, _, _ := app.registerUser(t, "tier@test.com", "password123", "agent")
	clientID := app.createClient(t, agentToken, "Helios Energy", "contact@helios.test")

	first := app.createProposal(t, agentToken, "Array A", clientID, 500, "kWp")
	rec := app.request("POST", "/api/v1/proposals/"+first["id"].(string)+"/submit", "", agentToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("submit failed: %d %s", rec.Code, rec.Body.String())
	}

	// 500 existing + 15500 new = 16000 kWp cumulative: top tier.
	second := app.createProposal(t, agentToken, "Array B", clientID, 15.5, "MWp")
	if got := second["client_share_pct"].(float64); got != 70 {
		t.Errorf("expected 70%% client share at top tier, got %v", got)
	}
	if got := second["agent_commission_pct"].(float64); got != 7 {
		t.Errorf("expected 7%% commission at top tier, got %v", got)
	}
}

func TestProposalFlow_InvalidTransitions(t *testing.T) {
	app := setupApp(t)

	agentToken, _, _ := app.registerUser(t, "transitions@test.com", "password123", "agent")
	clientID := app.createClient(t, agentToken, "Lumen Park", "owner@lumen.test")
	clientToken, _, _ := app.registerUser(t, "owner@lumen.test", "password123", "client")

	proposal := app.createProposal(t, agentToken, "Ground Mount", clientID, 250, "kWp")
	proposalID := proposal["id"].(string)

	// A draft cannot be approved.
	rec := app.request("POST", "/api/v1/proposals/"+proposalID+"/approve", "", clientToken)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 approving a draft, got %d: %s", rec.Code, rec.Body.String())
	}
	assertErrorCode(t, rec, "INVALID_TRANSITION")

	rec = app.request("POST", "/api/v1/proposals/"+proposalID+"/submit", "", agentToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("submit failed: %d %s", rec.Code, rec.Body.String())
	}

	// The drafting agent is not the deciding party.
	rec = app.request("POST", "/api/v1/proposals/"+proposalID+"/approve", "", agentToken)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for agent approval, got %d: %s", rec.Code, rec.Body.String())
	}
	assertErrorCode(t, rec, "NOT_PROPOSAL_PARTY")

	// Archiving is one-way and freezes the decision.
	rec = app.request("POST", "/api/v1/proposals/"+proposalID+"/archive", "", agentToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("archive failed: %d %s", rec.Code, rec.Body.String())
	}
	rec = app.request("POST", "/api/v1/proposals/"+proposalID+"/approve", "", clientToken)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 deciding an archived proposal, got %d: %s", rec.Code, rec.Body.String())
	}
	assertErrorCode(t, rec, "PROPOSAL_ARCHIVED")

	// Archived proposals are hidden from default listings.
	rec = app.request("GET", "/api/v1/proposals", "", agentToken)
	listing := parseJSON(t, rec)["data"].([]interface{})
	if len(listing) != 0 {
		t.Errorf("expected archived proposal hidden, got %d entries", len(listing))
	}
	rec = app.request("GET", "/api/v1/proposals?include_archived=true", "", agentToken)
	listing = parseJSON(t, rec)["data"].([]interface{})
	if len(listing) != 1 {
		t.Errorf("expected archived proposal with include_archived, got %d entries", len(listing))
	}
}

func TestProposalFlow_UpdateDraftRecomputes(t *testing.T) {
	app := setupApp(t)

	agentToken, _, _ := app.registerUser(t, "update@test.com", "password123", "agent")
	clientID := app.createClient(t, agentToken, "Vela Solar", "vela@test.com")

	proposal := app.createProposal(t, agentToken, "Carport", clientID, 500, "kWp")
	proposalID := proposal["id"].(string)

	// Shrinking the draft drops the cumulative portfolio back to the base tier.
	body := fmt.Sprintf(`{"system_size":%g,"system_size_unit":"kWp"}`, 50.0)
	rec := app.request("PUT", "/api/v1/proposals/"+proposalID, body, agentToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("update failed: %d %s", rec.Code, rec.Body.String())
	}
	updated := parseJSON(t, rec)["proposal"].(map[string]interface{})
	if got := updated["system_size_kwp"].(float64); got != 50 {
		t.Errorf("expected 50 kWp, got %v", got)
	}
	if got := updated["client_share_pct"].(float64); got != 50 {
		t.Errorf("expected 50%% client share, got %v", got)
	}
	if got := updated["agent_commission_pct"].(float64); got != 3 {
		t.Errorf("expected 3%% commission, got %v", got)
	}
}

func TestProposalFlow_AgentScoping(t *testing.T) {
	app := setupApp(t)

	agentToken, _, _ := app.registerUser(t, "one@test.com", "password123", "agent")
	otherToken, _, _ := app.registerUser(t, "two@test.com", "password123", "agent")
	clientID := app.createClient(t, agentToken, "Mine Only", "mine@test.com")
	proposal := app.createProposal(t, agentToken, "Private Draft", clientID, 100, "kWp")

	rec := app.request("GET", "/api/v1/proposals/"+proposal["id"].(string), "", otherToken)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign proposal, got %d: %s", rec.Code, rec.Body.String())
	}
	assertErrorCode(t, rec, "PROPOSAL_NOT_FOUND")

	rec = app.request("GET", "/api/v1/proposals", "", otherToken)
	listing := parseJSON(t, rec)["data"].([]interface{})
	if len(listing) != 0 {
		t.Errorf("expected empty listing for other agent, got %d", len(listing))
	}
}
