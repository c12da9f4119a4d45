/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package store

import (
	"context"
	"errors"
	"time"

	"custody-ledger-go/internal/models"

	"github.com/shopspring/decimal"
)

// Sentinel errors shared across all backend implementations. Business-rule
// violations are always returned as one of these, wrapped with context.
var (
	ErrInvalidInput           = errors.New("invalid input")
	ErrInsufficientFunds      = errors.New("insufficient funds")
	ErrOverSell               = errors.New("sell exceeds available shares")
	ErrInvalidTransition      = errors.New("record already processed")
	ErrNothingToProcess       = errors.New("no shares available to process")
	ErrNotFound               = errors.New("record not found")
	ErrUnauthorized           = errors.New("caller is not an administrator")
	ErrDuplicateTransaction   = errors.New("duplicate transaction")
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// CreditParams contains the parameters for crediting a balance (deposit).
type CreditParams struct {
	UserId    string
	Coin      string
	Network   string
	Quantity  decimal.Decimal
	Reference string // optional external idempotency key
}

// WithdrawalParams contains the parameters for a withdrawal request.
// The amount is debited from the balance atomically with record creation.
type WithdrawalParams struct {
	UserId             string
	Coin               string
	Network            string
	Amount             decimal.Decimal
	DestinationAddress string
}

// OrderParams contains the parameters for submitting a buy or sell order.
type OrderParams struct {
	UserId    string
	Symbol    string
	Shares    decimal.Decimal
	UnitPrice decimal.Decimal
}

// SellSettlement is the outcome of approving (part of) a sell order.
type SellSettlement struct {
	Order     *models.OrderRecord
	Processed decimal.Decimal
	Credited  decimal.Decimal
	Entry     *models.LedgerEntry
}

// EngineStore is the persistence contract for the ledger and order-approval
// engine. Every workflow transition executes as a single atomic unit; a
// failed call leaves no partial mutation behind.
type EngineStore interface {
	// Users
	GetUsers(ctx context.Context) ([]models.User, error)
	GetUserById(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, name, email, role string) (*models.User, error)

	// Balance store
	Credit(ctx context.Context, params CreditParams) (*models.LedgerEntry, error)
	GetBalance(ctx context.Context, userId, coin, network string) (decimal.Decimal, error)
	GetAllBalances(ctx context.Context, userId string) ([]models.BalanceRecord, error)
	ReconcileBalance(ctx context.Context, userId, coin, network string) error

	// Position store
	GetPosition(ctx context.Context, userId, symbol string) (decimal.Decimal, error)
	GetAllPositions(ctx context.Context, userId string) ([]models.PositionRecord, error)
	AvailableToSell(ctx context.Context, userId, symbol string) (decimal.Decimal, error)

	// Withdrawal workflow
	CreateWithdrawal(ctx context.Context, params WithdrawalParams) (*models.WithdrawalRecord, *models.LedgerEntry, error)
	ApproveWithdrawal(ctx context.Context, id string) (*models.WithdrawalRecord, error)
	RejectWithdrawal(ctx context.Context, id string) (*models.WithdrawalRecord, error)
	GetWithdrawal(ctx context.Context, id string) (*models.WithdrawalRecord, error)
	ListOpenWithdrawals(ctx context.Context) ([]models.WithdrawalRecord, error)

	// Order workflow
	CreateBuyOrder(ctx context.Context, params OrderParams) (*models.OrderRecord, error)
	CreateSellOrder(ctx context.Context, params OrderParams) (*models.OrderRecord, error)
	ApproveBuyOrder(ctx context.Context, id string) (*models.OrderRecord, *models.LedgerEntry, error)
	RejectBuyOrder(ctx context.Context, id string) (*models.OrderRecord, error)
	ApproveSellOrder(ctx context.Context, id string, approvedShares decimal.Decimal) (*SellSettlement, error)
	RejectSellOrder(ctx context.Context, id string) (*models.OrderRecord, error)
	GetOrder(ctx context.Context, id string) (*models.OrderRecord, error)
	ListOpenOrders(ctx context.Context, side models.OrderSide) ([]models.OrderRecord, error)
	DeleteClosedOrders(ctx context.Context, before time.Time) (int64, error)

	// Ledger
	GetLedger(ctx context.Context, userId string, limit, offset int) ([]models.LedgerEntry, error)
	GetLedgerAll(ctx context.Context, limit, offset int) ([]models.LedgerEntry, error)
	MarkLedgerRead(ctx context.Context, userId string) error
	UnreadCount(ctx context.Context, userId string) (int64, error)
}

// LedgerMirror receives confirmed ledger entries for write-behind mirroring
// into an external audit ledger. Implementations must be idempotent per
// entry id; mirroring failures never roll back the engine transaction.
type LedgerMirror interface {
	MirrorEntry(ctx context.Context, entry *models.LedgerEntry) error
}
