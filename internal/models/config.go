package models

import "time"

// Config represents the application configuration
type Config struct {
	Database   DatabaseConfig
	Settlement SettlementConfig
	Catalog    CatalogConfig
	Formance   FormanceConfig
	Payout     PayoutConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
	CreateDemoUsers bool
}

// SettlementConfig holds the coin/network credited on sell settlements.
type SettlementConfig struct {
	Coin    string
	Network string
}

// CatalogConfig points at the YAML catalogs for supported assets and
// tradable instruments.
type CatalogConfig struct {
	AssetsFile      string
	InstrumentsFile string
}

// FormanceConfig holds settings for the optional Formance audit mirror.
type FormanceConfig struct {
	Enabled      bool
	StackURL     string
	ClientID     string
	ClientSecret string
	LedgerName   string
}

// PayoutConfig holds settings for on-chain execution of approved withdrawals.
type PayoutConfig struct {
	Enabled bool
}
