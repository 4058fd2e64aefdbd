package anthropic

// ModelPricing contains per-token pricing information for Anthropic models
// Prices are in USD per million tokens
type ModelPricing struct {
	InputPrice  float64 // USD per 1M input tokens
	OutputPrice float64 // USD per 1M output tokens
}

// modelPricing contains pricing for the models in the fallback chains
var modelPricing = map[string]ModelPricing{
	"claude-3-5-sonnet-20241022": {
		InputPrice:  3.00,
		OutputPrice: 15.00,
	},
	"claude-3-5-sonnet-latest": {
		InputPrice:  3.00,
		OutputPrice: 15.00,
	},
	"claude-3-opus-latest": {
		InputPrice:  15.00,
		OutputPrice: 75.00,
	},
	"claude-3-5-haiku-20241022": {
		InputPrice:  0.80,
		OutputPrice: 4.00,
	},
	"claude-3-haiku-20240307": {
		InputPrice:  0.25,
		OutputPrice: 1.25,
	},
}

// DefaultPricingFallback is the per-request cost estimate when model pricing
// is unknown. Conservative at one cent per request.
const DefaultPricingFallback = 0.01

// CalculateCost computes the cost of an API call in USD based on token usage
func CalculateCost(model string, inputTokens, outputTokens int) float64 {
	pricing, found := modelPricing[model]
	if !found {
		return DefaultPricingFallback
	}

	inputCost := (float64(inputTokens) / 1_000_000.0) * pricing.InputPrice
	outputCost := (float64(outputTokens) / 1_000_000.0) * pricing.OutputPrice

	return inputCost + outputCost
}

// GetPricing returns pricing information for a model, if available
func GetPricing(model string) (ModelPricing, bool) {
	pricing, found := modelPricing[model]
	return pricing, found
}
