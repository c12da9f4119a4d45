package models

import (
	"github.com/shopspring/decimal"
)

// DepositResult represents the outcome of an admin top-up.
type DepositResult struct {
	Success    bool            `json:"success"`
	UserId     string          `json:"user_id,omitempty"`
	Coin       string          `json:"coin,omitempty"`
	Network    string          `json:"network,omitempty"`
	Amount     decimal.Decimal `json:"amount,omitempty"`
	NewBalance decimal.Decimal `json:"new_balance,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// HoldingValue is one line of a portfolio valuation.
type HoldingValue struct {
	Symbol string          `json:"symbol"`
	Shares decimal.Decimal `json:"shares"`
	Price  decimal.Decimal `json:"price"`
	Value  decimal.Decimal `json:"value"`
}

// PortfolioValuation aggregates a user's positions priced by the oracle.
type PortfolioValuation struct {
	UserId   string          `json:"user_id"`
	Holdings []HoldingValue  `json:"holdings"`
	Total    decimal.Decimal `json:"total"`
}
