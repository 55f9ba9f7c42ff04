package advisory

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Provider defines the interface for replacement-suggestion providers.
// A provider is consulted with the security being harvested and returns
// candidate substitutes. Providers are advisory only: the recommender
// applies its own safety filter to everything they return.
type Provider interface {
	// Suggest returns zero or more replacement candidates for the request.
	Suggest(ctx context.Context, req *SuggestionRequest) ([]Candidate, error)

	// Name returns the provider name (e.g., "gemini")
	Name() string
}

// SuggestionRequest describes the security being sold.
type SuggestionRequest struct {
	Symbol       string          `json:"symbol"`
	SecurityName string          `json:"security_name"`
	LossAmount   decimal.Decimal `json:"loss_amount"`
	MaxResults   int             `json:"max_results"`
}

// Candidate is one suggested replacement security.
type Candidate struct {
	Symbol               string          `json:"symbol"`
	Name                 string          `json:"name"`
	Reason               string          `json:"reason"`
	Exposure             string          `json:"exposure,omitempty"`
	EstimatedCorrelation decimal.Decimal `json:"estimated_correlation"`
	WashSaleSafe         bool            `json:"wash_sale_safe"`
}

// ProviderConfig holds configuration for suggestion providers
type ProviderConfig struct {
	APIKey       string
	Model        string
	MaxTokens    int
	Temperature  float64
	Timeout      time.Duration
	RateLimitRPM int
}
