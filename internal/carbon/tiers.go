package carbon

// RevenueTier maps a cumulative portfolio size to the revenue split that
// applies from that size upward.
type RevenueTier struct {
	ThresholdKWp       float64
	ClientSharePct     float64
	AgentCommissionPct float64
}

// MaxCommissionThresholdKWp is the portfolio size (15 MWp) at which the
// agent commission reaches its maximum.
const MaxCommissionThresholdKWp = 15000.0

// revenueTiers is the single source of truth for the revenue split. Ordered
// by ascending threshold; the last tier whose threshold is <= the portfolio
// size applies. Both percentages are non-decreasing and their sum never
// exceeds 100, so the platform share is always non-negative.
var revenueTiers = []RevenueTier{
	{ThresholdKWp: 0, ClientSharePct: 50, AgentCommissionPct: 3},
	{ThresholdKWp: 100, ClientSharePct: 55, AgentCommissionPct: 4},
	{ThresholdKWp: 1000, ClientSharePct: 60, AgentCommissionPct: 5},
	{ThresholdKWp: 5000, ClientSharePct: 65, AgentCommissionPct: 6},
	{ThresholdKWp: MaxCommissionThresholdKWp, ClientSharePct: 70, AgentCommissionPct: 7},
}

// Tiers returns a copy of the revenue tier table.
func Tiers() []RevenueTier {
	out := make([]RevenueTier, len(revenueTiers))
	copy(out, revenueTiers)
	return out
}

// tierFor returns the tier applying to the given portfolio size in kWp.
func tierFor(kwp float64) RevenueTier {
	kwp = sanitize(kwp)
	tier := revenueTiers[0]
	for _, t := range revenueTiers {
		if kwp >= t.ThresholdKWp {
			tier = t
		}
	}
	return tier
}

// ClientSharePercent returns the client's revenue share percentage for a
// cumulative portfolio size in kWp.
func ClientSharePercent(kwp float64) float64 {
	return tierFor(kwp).ClientSharePct
}

// AgentCommissionPercent returns the agent's commission percentage for a
// cumulative portfolio size in kWp.
func AgentCommissionPercent(kwp float64) float64 {
	return tierFor(kwp).AgentCommissionPct
}

// PlatformSharePercent returns the platform's remainder of the split.
func PlatformSharePercent(kwp float64) float64 {
	t := tierFor(kwp)
	return 100 - t.ClientSharePct - t.AgentCommissionPct
}
