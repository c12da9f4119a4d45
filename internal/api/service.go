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

package api

import (
	"context"
	"fmt"

	"custody-ledger-go/internal/common"
	"custody-ledger-go/internal/models"
	"custody-ledger-go/internal/pricer"
	"custody-ledger-go/internal/store"

	"go.uber.org/zap"
)

// LedgerService is the user-facing surface: deposits, withdrawal requests,
// order submission, and ledger views. Admin decisions live in the approval
// gateway, not here.
type LedgerService struct {
	db      store.EngineStore
	mirror  store.LedgerMirror
	pricer  pricer.Pricer
	catalog *common.AssetCatalog
}

func NewLedgerService(db store.EngineStore, mirror store.LedgerMirror, p pricer.Pricer, catalog *common.AssetCatalog) *LedgerService {
	return &LedgerService{
		db:      db,
		mirror:  mirror,
		pricer:  p,
		catalog: catalog,
	}
}

func (s *LedgerService) HealthCheck(ctx context.Context) error {
	_, err := s.db.GetUsers(ctx)
	if err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// mirrorEntry forwards a committed entry to the audit mirror. Mirroring is
// write-behind: a failure is logged, never propagated, and the SQLite ledger
// stays authoritative.
func (s *LedgerService) mirrorEntry(ctx context.Context, entry *models.LedgerEntry) {
	if s.mirror == nil || entry == nil {
		return
	}
	if err := s.mirror.MirrorEntry(ctx, entry); err != nil {
		zap.L().Warn("Failed to mirror ledger entry",
			zap.String("entry_id", entry.Id),
			zap.String("kind", string(entry.Kind)),
			zap.Error(err))
	}
}
