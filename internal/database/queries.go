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

package database

const (
	// User queries
	queryGetActiveUsers = `
		SELECT id, name, email, role, created_at, updated_at
		FROM users
		WHERE active = 1
		ORDER BY created_at`

	queryInsertUser = `
		INSERT OR IGNORE INTO users (id, name, email, role) VALUES (?, ?, ?, ?)`

	queryGetUserById = `
		SELECT id, name, email, role, created_at, updated_at
		FROM users
		WHERE id = ? AND active = 1`

	queryGetUserByEmail = `
		SELECT id, name, email, role, created_at, updated_at
		FROM users
		WHERE email = ? AND active = 1`

	// Balance queries
	queryGetBalance = `
		SELECT quantity
		FROM balances
		WHERE user_id = ? AND coin = ? AND network = ?`

	queryGetBalanceForUpdate = `
		SELECT id, quantity, version
		FROM balances
		WHERE user_id = ? AND coin = ? AND network = ?`

	queryGetAllUserBalances = `
		SELECT id, user_id, coin, network, quantity, last_entry_id, version, updated_at
		FROM balances
		WHERE user_id = ?
		ORDER BY coin, network`

	queryInsertBalance = `
		INSERT INTO balances (id, user_id, coin, network, quantity, version)
		VALUES (?, ?, ?, ?, ?, ?)`

	queryUpdateBalance = `
		UPDATE balances
		SET quantity = ?, last_entry_id = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND version = ?`

	// Position queries
	queryGetPosition = `
		SELECT shares
		FROM positions
		WHERE user_id = ? AND symbol = ?`

	queryGetPositionForUpdate = `
		SELECT id, shares, version
		FROM positions
		WHERE user_id = ? AND symbol = ?`

	queryGetAllUserPositions = `
		SELECT id, user_id, symbol, shares, version, updated_at
		FROM positions
		WHERE user_id = ?
		ORDER BY symbol`

	queryInsertPosition = `
		INSERT INTO positions (id, user_id, symbol, shares, version)
		VALUES (?, ?, ?, ?, ?)`

	queryUpdatePosition = `
		UPDATE positions
		SET shares = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND version = ?`

	// Order queries
	queryInsertOrder = `
		INSERT INTO orders (id, user_id, symbol, side, requested_shares, unit_price, processed_shares, status, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetOrder = `
		SELECT id, user_id, symbol, side, requested_shares, unit_price, processed_shares, status, version, created_at, updated_at
		FROM orders
		WHERE id = ?`

	queryUpdateOrder = `
		UPDATE orders
		SET processed_shares = ?, status = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND version = ?`

	queryDeleteOrder = `
		DELETE FROM orders WHERE id = ?`

	queryListOpenOrders = `
		SELECT id, user_id, symbol, side, requested_shares, unit_price, processed_shares, status, version, created_at, updated_at
		FROM orders
		WHERE side = ? AND status IN (?, ?)
		ORDER BY created_at`

	queryOpenSellOrders = `
		SELECT requested_shares, processed_shares
		FROM orders
		WHERE user_id = ? AND symbol = ? AND side = 'sell' AND status IN ('pending-sell', 'partial-sold')`

	queryDeleteClosedOrders = `
		DELETE FROM orders
		WHERE status = 'sell-rejected' AND updated_at < ?`

	// Withdrawal queries
	queryInsertWithdrawal = `
		INSERT INTO withdrawals (id, user_id, coin, network, amount, destination_address, status, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetWithdrawal = `
		SELECT id, user_id, coin, network, amount, destination_address, status, version, created_at, decided_at
		FROM withdrawals
		WHERE id = ?`

	queryUpdateWithdrawalStatus = `
		UPDATE withdrawals
		SET status = ?, version = version + 1, decided_at = CURRENT_TIMESTAMP
		WHERE id = ? AND version = ?`

	queryListOpenWithdrawals = `
		SELECT id, user_id, coin, network, amount, destination_address, status, version, created_at, decided_at
		FROM withdrawals
		WHERE status = 'pending'
		ORDER BY created_at`

	// Ledger queries
	queryInsertLedgerEntry = `
		INSERT INTO ledger_entries (
			id, user_id, kind, symbol_or_coin, network, quantity, monetary_value,
			balance_before, balance_after, status, reference, read, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryCheckDuplicateReference = `
		SELECT id FROM ledger_entries WHERE reference = ? LIMIT 1`

	queryUpdateLedgerStatusByReference = `
		UPDATE ledger_entries
		SET status = ?
		WHERE reference = ? AND kind = 'withdrawal'`

	queryGetLedgerByUser = `
		SELECT id, user_id, kind, symbol_or_coin, network, quantity, monetary_value,
		       balance_before, balance_after, status, reference, read, created_at
		FROM ledger_entries
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?`

	queryGetLedgerAll = `
		SELECT id, user_id, kind, symbol_or_coin, network, quantity, monetary_value,
		       balance_before, balance_after, status, reference, read, created_at
		FROM ledger_entries
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?`

	queryMarkLedgerRead = `
		UPDATE ledger_entries SET read = 1 WHERE user_id = ? AND read = 0`

	queryUnreadCount = `
		SELECT COUNT(*) FROM ledger_entries WHERE user_id = ? AND read = 0`

	// Balance reconciliation sums the coin-denominated entries: confirmed
	// deposits, plus withdrawals that are still pending or were approved
	// (both represent funds gone from the balance).
	queryReconcileCoinEntries = `
		SELECT COALESCE(SUM(quantity), 0)
		FROM ledger_entries
		WHERE user_id = ? AND symbol_or_coin = ? AND network = ?
		  AND kind IN ('deposit', 'withdrawal')
		  AND status IN ('confirmed', 'pending')`

	queryReconcileSellCredits = `
		SELECT COALESCE(SUM(monetary_value), 0)
		FROM ledger_entries
		WHERE user_id = ? AND kind = 'sell' AND status = 'confirmed'`
)
