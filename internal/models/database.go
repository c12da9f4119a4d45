package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User represents a user in the system
type User struct {
	Id        string    `db:"id"`
	Name      string    `db:"name"`
	Email     string    `db:"email"`
	Role      string    `db:"role"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// RoleAdmin marks users allowed to drive the approval gateway.
const RoleAdmin = "admin"

// BalanceRecord represents current custodial holdings for one (user, coin, network).
// Quantity never goes negative; every mutation bumps Version (optimistic locking).
type BalanceRecord struct {
	Id          string          `db:"id"`
	UserId      string          `db:"user_id"`
	Coin        string          `db:"coin"`
	Network     string          `db:"network"`
	Quantity    decimal.Decimal `db:"quantity"`
	LastEntryId string          `db:"last_entry_id"`
	Version     int64           `db:"version"`
	UpdatedAt   time.Time       `db:"updated_at"`
}

// PositionRecord represents held shares of one instrument, maintained
// transactionally on every order settlement rather than derived by rescans.
type PositionRecord struct {
	Id        string          `db:"id"`
	UserId    string          `db:"user_id"`
	Symbol    string          `db:"symbol"`
	Shares    decimal.Decimal `db:"shares"`
	Version   int64           `db:"version"`
	UpdatedAt time.Time       `db:"updated_at"`
}

// OrderSide distinguishes buy and sell order requests.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderStatus is the closed set of order states.
type OrderStatus string

const (
	OrderStatusPending      OrderStatus = "pending"
	OrderStatusApproved     OrderStatus = "approved"
	OrderStatusRejected     OrderStatus = "rejected"
	OrderStatusPendingSell  OrderStatus = "pending-sell"
	OrderStatusPartialSold  OrderStatus = "partial-sold"
	OrderStatusSold         OrderStatus = "sold"
	OrderStatusSellRejected OrderStatus = "sell-rejected"
)

// orderTransitions is the transition table; anything not listed is rejected.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:     {OrderStatusApproved, OrderStatusRejected},
	OrderStatusPendingSell: {OrderStatusPartialSold, OrderStatusSold, OrderStatusSellRejected},
	OrderStatusPartialSold: {OrderStatusPartialSold, OrderStatusSold, OrderStatusSellRejected},
}

// CanTransition reports whether an order may move from one status to another.
func (s OrderStatus) CanTransition(to OrderStatus) bool {
	for _, next := range orderTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is permitted.
func (s OrderStatus) Terminal() bool {
	return len(orderTransitions[s]) == 0
}

// OrderRecord represents one buy or sell request. ProcessedShares only ever
// grows and never exceeds RequestedShares.
type OrderRecord struct {
	Id              string          `db:"id"`
	UserId          string          `db:"user_id"`
	Symbol          string          `db:"symbol"`
	Side            OrderSide       `db:"side"`
	RequestedShares decimal.Decimal `db:"requested_shares"`
	UnitPrice       decimal.Decimal `db:"unit_price"`
	ProcessedShares decimal.Decimal `db:"processed_shares"`
	Status          OrderStatus     `db:"status"`
	Version         int64           `db:"version"`
	CreatedAt       time.Time       `db:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at"`
}

// RemainingShares returns the unprocessed remainder of a sell order.
func (o *OrderRecord) RemainingShares() decimal.Decimal {
	return o.RequestedShares.Sub(o.ProcessedShares)
}

// WithdrawalStatus is the closed set of withdrawal states.
type WithdrawalStatus string

const (
	WithdrawalStatusPending  WithdrawalStatus = "pending"
	WithdrawalStatusApproved WithdrawalStatus = "approved"
	WithdrawalStatusRejected WithdrawalStatus = "rejected"
)

// Terminal reports whether the withdrawal has been decided.
func (s WithdrawalStatus) Terminal() bool {
	return s == WithdrawalStatusApproved || s == WithdrawalStatusRejected
}

// WithdrawalRecord represents a withdrawal request. The amount is reserved
// (debited) at creation and either stays spent or is refunded exactly once.
type WithdrawalRecord struct {
	Id                 string           `db:"id"`
	UserId             string           `db:"user_id"`
	Coin               string           `db:"coin"`
	Network            string           `db:"network"`
	Amount             decimal.Decimal  `db:"amount"`
	DestinationAddress string           `db:"destination_address"`
	Status             WithdrawalStatus `db:"status"`
	Version            int64            `db:"version"`
	CreatedAt          time.Time        `db:"created_at"`
	DecidedAt          time.Time        `db:"decided_at"`
}

// LedgerKind classifies balance-affecting events.
type LedgerKind string

const (
	LedgerKindDeposit       LedgerKind = "deposit"
	LedgerKindWithdrawal    LedgerKind = "withdrawal"
	LedgerKindSell          LedgerKind = "sell"
	LedgerKindBuySettlement LedgerKind = "buy-settlement"
)

// LedgerStatus tracks the lifecycle of the withdrawal-linked entry; all other
// entries are written confirmed and stay that way.
type LedgerStatus string

const (
	LedgerStatusPending   LedgerStatus = "pending"
	LedgerStatusConfirmed LedgerStatus = "confirmed"
	LedgerStatusFailed    LedgerStatus = "failed"
)

// LedgerEntry is the append-only audit trail. Only the status of the linked
// withdrawal entry and the read flag are ever mutated.
type LedgerEntry struct {
	Id            string          `db:"id"`
	UserId        string          `db:"user_id"`
	Kind          LedgerKind      `db:"kind"`
	SymbolOrCoin  string          `db:"symbol_or_coin"`
	Network       string          `db:"network"`
	Quantity      decimal.Decimal `db:"quantity"`
	MonetaryValue decimal.Decimal `db:"monetary_value"`
	BalanceBefore decimal.Decimal `db:"balance_before"`
	BalanceAfter  decimal.Decimal `db:"balance_after"`
	Status        LedgerStatus    `db:"status"`
	Reference     string          `db:"reference"`
	Read          bool            `db:"read"`
	CreatedAt     time.Time       `db:"created_at"`
}
