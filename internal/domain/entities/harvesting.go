package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OpportunityStatus represents the lifecycle state of a harvest opportunity
type OpportunityStatus string

const (
	OpportunityStatusIdentified   OpportunityStatus = "IDENTIFIED"
	OpportunityStatusWashSaleRisk OpportunityStatus = "WASH_SALE_RISK"
	OpportunityStatusRecommended  OpportunityStatus = "RECOMMENDED"
	OpportunityStatusApproved     OpportunityStatus = "APPROVED"
	OpportunityStatusExecuting    OpportunityStatus = "EXECUTING"
	OpportunityStatusExecuted     OpportunityStatus = "EXECUTED"
	OpportunityStatusRejected     OpportunityStatus = "REJECTED"
)

// IsTerminal reports whether no further transitions are permitted from s.
func (s OpportunityStatus) IsTerminal() bool {
	return s == OpportunityStatusExecuted || s == OpportunityStatusRejected
}

// IsLive reports whether s blocks a new opportunity from being created for
// the same position. Only the terminal statuses do not block; a blocked
// WASH_SALE_RISK opportunity is refreshed in place by the scanner rather
// than duplicated.
func (s OpportunityStatus) IsLive() bool {
	switch s {
	case OpportunityStatusIdentified, OpportunityStatusWashSaleRisk,
		OpportunityStatusRecommended, OpportunityStatusApproved,
		OpportunityStatusExecuting:
		return true
	}
	return false
}

// WashSaleStatus represents the state of a wash-sale check or tracked window
type WashSaleStatus string

const (
	WashSaleStatusClear    WashSaleStatus = "CLEAR"
	WashSaleStatusInWindow WashSaleStatus = "IN_WINDOW"
	WashSaleStatusViolated WashSaleStatus = "VIOLATED"
)

// RelationshipType classifies an edge between two securities
type RelationshipType string

const (
	RelationshipSubstantiallyIdentical RelationshipType = "SUBSTANTIALLY_IDENTICAL"
	RelationshipSameSectorETF          RelationshipType = "SAME_SECTOR_ETF"
	RelationshipCorrelated             RelationshipType = "CORRELATED"
	RelationshipReplacementCandidate   RelationshipType = "REPLACEMENT_CANDIDATE"
)

// RecommendationSource identifies where a replacement candidate came from
type RecommendationSource string

const (
	RecommendationSourceGraph    RecommendationSource = "graph"
	RecommendationSourceAdvisory RecommendationSource = "advisory"
)

// HarvestingSettings holds the effective harvesting parameters for a scope.
// A row with nil ClientID and AccountID is advisor-wide; ClientID set and
// AccountID nil is client-level; both set is account-level.
type HarvestingSettings struct {
	ID                   uuid.UUID       `json:"id" db:"id"`
	AdvisorID            uuid.UUID       `json:"advisor_id" db:"advisor_id"`
	ClientID             *uuid.UUID      `json:"client_id,omitempty" db:"client_id"`
	AccountID            *uuid.UUID      `json:"account_id,omitempty" db:"account_id"`
	MinLossAmount        decimal.Decimal `json:"min_loss_amount" db:"min_loss_amount"`
	MinLossPercent       decimal.Decimal `json:"min_loss_percent" db:"min_loss_percent"`
	MinTaxSavings        decimal.Decimal `json:"min_tax_savings" db:"min_tax_savings"`
	ShortTermRate        decimal.Decimal `json:"short_term_rate" db:"short_term_rate"`
	LongTermRate         decimal.Decimal `json:"long_term_rate" db:"long_term_rate"`
	ExcludedAccountTypes []string        `json:"excluded_account_types" db:"-"`
	ExcludedSymbols      []string        `json:"excluded_symbols" db:"-"`
	IsActive             bool            `json:"is_active" db:"is_active"`
	CreatedAt            time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at" db:"updated_at"`
}

// DefaultHarvestingSettings returns the hard-coded fallback used when no
// settings row exists at any scope for the advisor.
func DefaultHarvestingSettings(advisorID uuid.UUID) *HarvestingSettings {
	return &HarvestingSettings{
		AdvisorID:      advisorID,
		MinLossAmount:  decimal.NewFromInt(100),
		MinLossPercent: decimal.NewFromInt(5),
		MinTaxSavings:  decimal.NewFromInt(50),
		ShortTermRate:  decimal.New(37, -2),
		LongTermRate:   decimal.New(20, -2),
		IsActive:       true,
	}
}

// IsAccountTypeExcluded reports whether accountType is excluded from scans.
func (s *HarvestingSettings) IsAccountTypeExcluded(accountType string) bool {
	for _, t := range s.ExcludedAccountTypes {
		if t == accountType {
			return true
		}
	}
	return false
}

// IsSymbolExcluded reports whether symbol is excluded from scans.
func (s *HarvestingSettings) IsSymbolExcluded(symbol string) bool {
	for _, sym := range s.ExcludedSymbols {
		if sym == symbol {
			return true
		}
	}
	return false
}

// Recommendation is a replacement-security candidate cached on an opportunity
type Recommendation struct {
	Symbol      string               `json:"symbol"`
	Name        string               `json:"name,omitempty"`
	Reason      string               `json:"reason"`
	Correlation decimal.Decimal      `json:"correlation"`
	Source      RecommendationSource `json:"source"`
}

// HarvestOpportunity is a candidate tax-loss harvest for one position,
// tracked through the approval/execution lifecycle. Economics are recomputed
// from lot-level losses and resolved settings; they are never hand-edited.
type HarvestOpportunity struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	AdvisorID   uuid.UUID  `json:"advisor_id" db:"advisor_id"`
	ClientID    uuid.UUID  `json:"client_id" db:"client_id"`
	HouseholdID *uuid.UUID `json:"household_id,omitempty" db:"household_id"`
	AccountID   uuid.UUID  `json:"account_id" db:"account_id"`
	PositionID  uuid.UUID  `json:"position_id" db:"position_id"`
	Symbol      string     `json:"symbol" db:"symbol"`
	CUSIP       string     `json:"cusip,omitempty" db:"cusip"`

	Quantity            decimal.Decimal `json:"quantity" db:"quantity"`
	CurrentPrice        decimal.Decimal `json:"current_price" db:"current_price"`
	CostBasis           decimal.Decimal `json:"cost_basis" db:"cost_basis"`
	MarketValue         decimal.Decimal `json:"market_value" db:"market_value"`
	TotalLoss           decimal.Decimal `json:"total_loss" db:"total_loss"`
	ShortTermLoss       decimal.Decimal `json:"short_term_loss" db:"short_term_loss"`
	LongTermLoss        decimal.Decimal `json:"long_term_loss" db:"long_term_loss"`
	TaxRateApplied      decimal.Decimal `json:"tax_rate_applied" db:"tax_rate_applied"`
	EstimatedTaxSavings decimal.Decimal `json:"estimated_tax_savings" db:"estimated_tax_savings"`
	LotIDs              []uuid.UUID     `json:"lot_ids" db:"-"`

	Status OpportunityStatus `json:"status" db:"status"`

	WashSaleStatus         WashSaleStatus `json:"wash_sale_status" db:"wash_sale_status"`
	WashSaleRiskAmount     decimal.Decimal `json:"wash_sale_risk_amount" db:"wash_sale_risk_amount"`
	BlockingTransactionIDs []uuid.UUID    `json:"blocking_transaction_ids" db:"-"`
	WindowStart            *time.Time     `json:"window_start,omitempty" db:"window_start"`
	WindowEnd              *time.Time     `json:"window_end,omitempty" db:"window_end"`

	Recommendations []Recommendation `json:"recommendations,omitempty" db:"-"`

	ReplacementSymbol string     `json:"replacement_symbol,omitempty" db:"replacement_symbol"`
	Notes             string     `json:"notes,omitempty" db:"notes"`
	RejectReason      string     `json:"reject_reason,omitempty" db:"reject_reason"`
	SellTransactionID *uuid.UUID `json:"sell_transaction_id,omitempty" db:"sell_transaction_id"`
	BuyTransactionID  *uuid.UUID `json:"buy_transaction_id,omitempty" db:"buy_transaction_id"`
	RealizedLoss      decimal.Decimal `json:"realized_loss" db:"realized_loss"`

	IdentifiedAt  time.Time  `json:"identified_at" db:"identified_at"`
	RecommendedAt *time.Time `json:"recommended_at,omitempty" db:"recommended_at"`
	ApprovedAt    *time.Time `json:"approved_at,omitempty" db:"approved_at"`
	ApprovedBy    *uuid.UUID `json:"approved_by,omitempty" db:"approved_by"`
	ExecutedAt    *time.Time `json:"executed_at,omitempty" db:"executed_at"`
	ExpiresAt     time.Time  `json:"expires_at" db:"expires_at"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// IsExpired reports whether the opportunity's expiry has passed as of now.
// Approved, executing and executed opportunities never expire passively.
func (o *HarvestOpportunity) IsExpired(now time.Time) bool {
	switch o.Status {
	case OpportunityStatusApproved, OpportunityStatusExecuting, OpportunityStatusExecuted:
		return false
	}
	return now.After(o.ExpiresAt)
}

// WashSaleTransaction is the rolling monitoring window opened when a harvest
// is executed. Mutated only by the periodic violation check.
type WashSaleTransaction struct {
	ID                     uuid.UUID       `json:"id" db:"id"`
	AdvisorID              uuid.UUID       `json:"advisor_id" db:"advisor_id"`
	AccountID              uuid.UUID       `json:"account_id" db:"account_id"`
	OpportunityID          uuid.UUID       `json:"opportunity_id" db:"opportunity_id"`
	Symbol                 string          `json:"symbol" db:"symbol"`
	SaleDate               time.Time       `json:"sale_date" db:"sale_date"`
	QuantitySold           decimal.Decimal `json:"quantity_sold" db:"quantity_sold"`
	LossAmount             decimal.Decimal `json:"loss_amount" db:"loss_amount"`
	WindowStart            time.Time       `json:"window_start" db:"window_start"`
	WindowEnd              time.Time       `json:"window_end" db:"window_end"`
	WatchSymbols           []string        `json:"watch_symbols" db:"-"`
	Status                 WashSaleStatus  `json:"status" db:"status"`
	SellTransactionID      *uuid.UUID      `json:"sell_transaction_id,omitempty" db:"sell_transaction_id"`
	ViolationTransactionID *uuid.UUID      `json:"violation_transaction_id,omitempty" db:"violation_transaction_id"`
	ViolationDate          *time.Time      `json:"violation_date,omitempty" db:"violation_date"`
	DisallowedLoss         decimal.Decimal `json:"disallowed_loss" db:"disallowed_loss"`
	CreatedAt              time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt              time.Time       `json:"updated_at" db:"updated_at"`
}

// SecurityRelationship is an edge between two symbols. Stored directed but
// logically symmetric: a lookup for either endpoint must return the edge.
type SecurityRelationship struct {
	ID               uuid.UUID        `json:"id" db:"id"`
	SymbolA          string           `json:"symbol_a" db:"symbol_a"`
	SymbolB          string           `json:"symbol_b" db:"symbol_b"`
	RelationshipType RelationshipType `json:"relationship_type" db:"relationship_type"`
	Correlation      decimal.Decimal  `json:"correlation" db:"correlation"`
	IsActive         bool             `json:"is_active" db:"is_active"`
	CreatedAt        time.Time        `json:"created_at" db:"created_at"`
}

// Other returns the symbol on the far side of the edge from symbol.
func (r *SecurityRelationship) Other(symbol string) string {
	if r.SymbolA == symbol {
		return r.SymbolB
	}
	return r.SymbolA
}

// WashSaleAnalysis is the result of a point-in-time wash-sale risk check
type WashSaleAnalysis struct {
	Status               WashSaleStatus         `json:"status"`
	WindowStart          time.Time              `json:"window_start"`
	WindowEnd            time.Time              `json:"window_end"`
	WatchSymbols         []string               `json:"watch_symbols"`
	BlockingTransactions []*AccountTransaction  `json:"blocking_transactions"`
	ActiveWindows        []*WashSaleTransaction `json:"active_windows"`
	RiskAmount           decimal.Decimal        `json:"risk_amount"`
}
