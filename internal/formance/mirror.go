package formance

import (
	"context"
	"fmt"

	"custody-ledger-go/internal/models"
	"custody-ledger-go/internal/store"

	"github.com/formancehq/formance-sdk-go/v3/pkg/models/operations"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/shared"
	"go.uber.org/zap"
)

// Compile-time check: *Service must satisfy store.LedgerMirror.
var _ store.LedgerMirror = (*Service)(nil)

// ---------------------------------------------------------------------------
// Numscript templates. All metadata is set inside the script via
// set_tx_meta() so the Formance transaction is fully self-describing.
// ---------------------------------------------------------------------------

const numscriptDeposit = `vars {
  asset $asset
  number $amount
  account $user_id
  string $entry_id
  string $coin
  string $network
}

send [$asset $amount] (
  source = @world
  destination = @users:$user_id
)

set_tx_meta("event_type", "deposit")
set_tx_meta("entry_id", $entry_id)
set_tx_meta("coin", $coin)
set_tx_meta("network", $network)
`

const numscriptWithdrawal = `vars {
  asset $asset
  number $amount
  account $user_id
  string $entry_id
  string $coin
  string $network
  string $withdrawal_ref
}

send [$asset $amount] (
  source = @users:$user_id allowing unbounded overdraft
  destination = @custody:withdrawals:pending
)

set_tx_meta("event_type", "withdrawal")
set_tx_meta("entry_id", $entry_id)
set_tx_meta("coin", $coin)
set_tx_meta("network", $network)
set_tx_meta("withdrawal_ref", $withdrawal_ref)
`

const numscriptSellProceeds = `vars {
  asset $asset
  number $amount
  account $user_id
  string $entry_id
  string $symbol
  string $shares
  string $order_ref
}

send [$asset $amount] (
  source = @custody:settlement allowing unbounded overdraft
  destination = @users:$user_id
)

set_tx_meta("event_type", "sell_proceeds")
set_tx_meta("entry_id", $entry_id)
set_tx_meta("symbol", $symbol)
set_tx_meta("shares", $shares)
set_tx_meta("order_ref", $order_ref)
`

const numscriptBuySettlement = `vars {
  asset $asset
  number $amount
  account $user_id
  string $entry_id
  string $symbol
  string $monetary_value
  string $order_ref
}

send [$asset $amount] (
  source = @custody:instruments allowing unbounded overdraft
  destination = @users:$user_id:positions
)

set_tx_meta("event_type", "buy_settlement")
set_tx_meta("entry_id", $entry_id)
set_tx_meta("symbol", $symbol)
set_tx_meta("monetary_value", $monetary_value)
set_tx_meta("order_ref", $order_ref)
`

// MirrorEntry records one engine ledger entry as a Formance transaction. The
// entry id is the transaction reference, so a replayed mirror is a no-op.
func (s *Service) MirrorEntry(ctx context.Context, entry *models.LedgerEntry) error {
	var script string
	vars := map[string]string{
		"user_id":  entry.UserId,
		"entry_id": entry.Id,
	}

	switch entry.Kind {
	case models.LedgerKindDeposit:
		script = numscriptDeposit
		vars["asset"] = formanceAsset(entry.SymbolOrCoin)
		vars["amount"] = entry.Quantity.Shift(int32(precisionFor(entry.SymbolOrCoin))).BigInt().String()
		vars["coin"] = entry.SymbolOrCoin
		vars["network"] = entry.Network

	case models.LedgerKindWithdrawal:
		script = numscriptWithdrawal
		vars["asset"] = formanceAsset(entry.SymbolOrCoin)
		vars["amount"] = entry.Quantity.Abs().Shift(int32(precisionFor(entry.SymbolOrCoin))).BigInt().String()
		vars["coin"] = entry.SymbolOrCoin
		vars["network"] = entry.Network
		vars["withdrawal_ref"] = entry.Reference

	case models.LedgerKindSell:
		script = numscriptSellProceeds
		vars["asset"] = formanceAsset(s.settlementCoin)
		vars["amount"] = entry.MonetaryValue.Shift(int32(precisionFor(s.settlementCoin))).BigInt().String()
		vars["symbol"] = entry.SymbolOrCoin
		vars["shares"] = entry.Quantity.String()
		vars["order_ref"] = entry.Reference

	case models.LedgerKindBuySettlement:
		script = numscriptBuySettlement
		vars["asset"] = formanceAsset(entry.SymbolOrCoin)
		vars["amount"] = entry.Quantity.Shift(int32(precisionFor(entry.SymbolOrCoin))).BigInt().String()
		vars["symbol"] = entry.SymbolOrCoin
		vars["monetary_value"] = entry.MonetaryValue.String()
		vars["order_ref"] = entry.Reference

	default:
		return fmt.Errorf("unknown ledger entry kind: %s", entry.Kind)
	}

	_, err := s.client.Ledger.V2.CreateTransaction(ctx, operations.V2CreateTransactionRequest{
		Ledger: s.ledger,
		V2PostTransaction: shared.V2PostTransaction{
			Reference: strPtr(entry.Id),
			Script: &shared.V2PostTransactionScript{
				Plain: script,
				Vars:  vars,
			},
		},
	})
	if err != nil {
		if isConflictError(err) {
			zap.L().Debug("Entry already mirrored", zap.String("entry_id", entry.Id))
			return nil // idempotent
		}
		return fmt.Errorf("error mirroring %s entry: %w", entry.Kind, err)
	}

	zap.L().Info("Ledger entry mirrored to Formance",
		zap.String("entry_id", entry.Id),
		zap.String("kind", string(entry.Kind)),
		zap.String("user_id", entry.UserId))
	return nil
}
