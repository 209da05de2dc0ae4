package llmclient

// Model tiers accepted from step definitions. Anything unrecognized
// maps to the balanced scenario.
const (
	TierCostOptimized    = "cost-optimized"
	TierBalanced         = "balanced"
	TierQualityOptimized = "quality-optimized"
)

// ScenarioForTier maps a model tier to the scenario label the model
// service uses for routing and pricing.
func ScenarioForTier(tier string) string {
	switch tier {
	case TierCostOptimized:
		return "cost_optimized"
	case TierQualityOptimized:
		return "quality_optimized"
	case TierBalanced:
		return "balanced"
	default:
		return "balanced"
	}
}
