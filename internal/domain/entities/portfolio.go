package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Position aggregates the open tax lots for one symbol in one account.
// Positions and lots are owned by the custodian aggregation layer and are
// consumed read-only here.
type Position struct {
	ID                 uuid.UUID       `json:"id" db:"id"`
	AdvisorID          uuid.UUID       `json:"advisor_id" db:"advisor_id"`
	ClientID           uuid.UUID       `json:"client_id" db:"client_id"`
	HouseholdID        *uuid.UUID      `json:"household_id,omitempty" db:"household_id"`
	AccountID          uuid.UUID       `json:"account_id" db:"account_id"`
	AccountType        string          `json:"account_type" db:"account_type"`
	Symbol             string          `json:"symbol" db:"symbol"`
	CUSIP              string          `json:"cusip,omitempty" db:"cusip"`
	SecurityName       string          `json:"security_name" db:"security_name"`
	Quantity           decimal.Decimal `json:"quantity" db:"quantity"`
	CurrentPrice       decimal.Decimal `json:"current_price" db:"current_price"`
	MarketValue        decimal.Decimal `json:"market_value" db:"market_value"`
	CostBasis          decimal.Decimal `json:"cost_basis" db:"cost_basis"`
	UnrealizedGainLoss decimal.Decimal `json:"unrealized_gain_loss" db:"unrealized_gain_loss"`
	UpdatedAt          time.Time       `json:"updated_at" db:"updated_at"`
}

// TaxLot is a discrete acquisition batch within a position.
// UnrealizedGainLoss = CurrentValue - CostBasis.
type TaxLot struct {
	ID                 uuid.UUID       `json:"id" db:"id"`
	PositionID         uuid.UUID       `json:"position_id" db:"position_id"`
	AcquisitionDate    time.Time       `json:"acquisition_date" db:"acquisition_date"`
	Quantity           decimal.Decimal `json:"quantity" db:"quantity"`
	CostBasis          decimal.Decimal `json:"cost_basis" db:"cost_basis"`
	CurrentValue       decimal.Decimal `json:"current_value" db:"current_value"`
	UnrealizedGainLoss decimal.Decimal `json:"unrealized_gain_loss" db:"unrealized_gain_loss"`
	IsLongTerm         bool            `json:"is_long_term" db:"is_long_term"`
	IsOpen             bool            `json:"is_open" db:"is_open"`
}

// HasCostBasis reports whether the lot carries a usable cost basis. A zero
// basis produces undefined loss ratios and excludes the lot from scans; a
// zero current value is a total loss, not missing data, and does not.
func (l *TaxLot) HasCostBasis() bool {
	return l.CostBasis.IsPositive()
}

// TransactionType for account transactions supplied by the custodian feed
type TransactionType string

const (
	TransactionTypeBuy  TransactionType = "BUY"
	TransactionTypeSell TransactionType = "SELL"
)

// AccountTransaction is a normalized custodian trade record, consumed
// read-only by the wash-sale checks.
type AccountTransaction struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	AccountID uuid.UUID       `json:"account_id" db:"account_id"`
	Symbol    string          `json:"symbol" db:"symbol"`
	Type      TransactionType `json:"type" db:"type"`
	TradeDate time.Time       `json:"trade_date" db:"trade_date"`
	Quantity  decimal.Decimal `json:"quantity" db:"quantity"`
	Price     decimal.Decimal `json:"price" db:"price"`
	NetAmount decimal.Decimal `json:"net_amount" db:"net_amount"`
}
