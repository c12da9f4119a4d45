package models

// Portfolio represents a Prime portfolio
type Portfolio struct {
	Id   string
	Name string
}

// Wallet represents a Prime wallet
type Wallet struct {
	Id     string
	Name   string
	Symbol string
	Type   string
}

// PayoutReceipt represents an initiated on-chain payout for an approved withdrawal.
type PayoutReceipt struct {
	ActivityId     string
	Coin           string
	Network        string
	Amount         string
	Destination    string
	IdempotencyKey string
}
