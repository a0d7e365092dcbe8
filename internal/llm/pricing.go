package llm

import "strings"

// ModelCost holds per-million-token pricing for a model in USD.
type ModelCost struct {
	InputPerMTok  float64
	OutputPerMTok float64
}

// Cost calculates the total USD cost for the given token counts.
func (c ModelCost) Cost(inputTokens, outputTokens int) float64 {
	return float64(inputTokens)*c.InputPerMTok/1_000_000 +
		float64(outputTokens)*c.OutputPerMTok/1_000_000
}

// LookupCost returns the pricing for a model ID, or nil if unknown.
//
// IDs are matched exactly first, then by the longest known prefix, so dated
// snapshots ("claude-sonnet-4-5-20250929") and Ark versioned model IDs
// ("doubao-seed-1-6-250615") resolve to their family. OpenRouter IDs carry a
// vendor prefix ("google/gemini-2.5-flash") that is dropped before matching.
// Ark endpoint IDs ("ep-...") do not name a model and stay unpriced.
func LookupCost(modelID string) *ModelCost {
	id := strings.ToLower(modelID)
	if i := strings.LastIndexByte(id, '/'); i >= 0 {
		id = id[i+1:]
	}
	id = strings.TrimSuffix(id, ":free")

	if c, ok := modelCosts[id]; ok {
		return &c
	}

	best := ""
	for prefix := range modelCosts {
		if len(prefix) > len(best) && strings.HasPrefix(id, prefix+"-") {
			best = prefix
		}
	}
	if best == "" {
		return nil
	}
	c := modelCosts[best]
	return &c
}

// modelCosts lists the model families the interview backends are run with.
// Ark prices are converted from CNY at 7.2 CNY/USD for the 0-32k input tier.
var modelCosts = map[string]ModelCost{
	// anthropic
	"claude-3-5-haiku":  {0.8, 4},
	"claude-3-7-sonnet": {3, 15},
	"claude-haiku-4-5":  {1, 5},
	"claude-sonnet-4":   {3, 15},
	"claude-sonnet-4-5": {3, 15},
	"claude-opus-4-1":   {15, 75},
	"claude-opus-4-5":   {5, 25},

	// openai and openrouter
	"gpt-4o":       {2.5, 10},
	"gpt-4o-mini":  {0.15, 0.6},
	"gpt-4.1":      {2, 8},
	"gpt-4.1-mini": {0.4, 1.6},
	"gpt-4.1-nano": {0.1, 0.4},
	"gpt-5":        {1.25, 10},
	"gpt-5-mini":   {0.25, 2},
	"gpt-5-nano":   {0.05, 0.4},
	"o4-mini":      {1.1, 4.4},

	// gemini
	"gemini-2.0-flash":      {0.1, 0.4},
	"gemini-2.0-flash-exp":  {0, 0},
	"gemini-2.0-flash-lite": {0.075, 0.3},
	"gemini-2.5-flash":      {0.3, 2.5},
	"gemini-2.5-flash-lite": {0.1, 0.4},
	"gemini-2.5-pro":        {1.25, 10},
	"gemini-flash-latest":   {0.3, 2.5},

	// ark
	"doubao-seed-1-6":       {0.11, 1.11},
	"doubao-seed-1-6-flash": {0.021, 0.21},
	"doubao-1-5-pro-32k":    {0.11, 0.28},
	"doubao-1-5-lite-32k":   {0.042, 0.083},
	"deepseek-v3":           {0.28, 1.11},
}
