package pricer

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v2"
)

// Pricer resolves the current indicative price of a tradable instrument.
type Pricer interface {
	Price(symbol string) (decimal.Decimal, error)
	Symbols() []string
}

type InstrumentConfig struct {
	Symbol string `yaml:"symbol"`
	Name   string `yaml:"name"`
	Price  string `yaml:"price"`
}

type InstrumentsConfig struct {
	Instruments []InstrumentConfig `yaml:"instruments"`
}

func LoadInstrumentConfig(instrumentsFile string) ([]InstrumentConfig, error) {
	var instrumentsPath string
	if filepath.IsAbs(instrumentsFile) {
		instrumentsPath = instrumentsFile
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		instrumentsPath = filepath.Join(wd, instrumentsFile)
	}

	data, err := os.ReadFile(instrumentsPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", instrumentsFile, err)
	}

	var config InstrumentsConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", instrumentsFile, err)
	}

	for i, inst := range config.Instruments {
		if inst.Symbol == "" {
			return nil, fmt.Errorf("instrument at index %d missing symbol", i)
		}
		if inst.Price == "" {
			return nil, fmt.Errorf("instrument at index %d missing price", i)
		}
	}

	return config.Instruments, nil
}

// StaticPricer serves prices from the instruments catalog. Prices are fixed
// for the process lifetime; approvals always settle at the order's locked
// unit price, so catalog staleness never affects settled amounts.
type StaticPricer struct {
	prices  map[string]decimal.Decimal
	symbols []string
}

func NewStaticPricer(instruments []InstrumentConfig) (*StaticPricer, error) {
	prices := make(map[string]decimal.Decimal, len(instruments))
	symbols := make([]string, 0, len(instruments))
	for _, inst := range instruments {
		price, err := decimal.NewFromString(inst.Price)
		if err != nil {
			return nil, fmt.Errorf("invalid price for %s: %q (%w)", inst.Symbol, inst.Price, err)
		}
		if !price.IsPositive() {
			return nil, fmt.Errorf("price for %s must be positive, got %s", inst.Symbol, price.String())
		}
		prices[inst.Symbol] = price
		symbols = append(symbols, inst.Symbol)
	}
	return &StaticPricer{prices: prices, symbols: symbols}, nil
}

func NewStaticPricerFromFile(instrumentsFile string) (*StaticPricer, error) {
	instruments, err := LoadInstrumentConfig(instrumentsFile)
	if err != nil {
		return nil, err
	}
	return NewStaticPricer(instruments)
}

func (p *StaticPricer) Price(symbol string) (decimal.Decimal, error) {
	price, ok := p.prices[symbol]
	if !ok {
		return decimal.Zero, fmt.Errorf("unknown instrument: %s", symbol)
	}
	return price, nil
}

func (p *StaticPricer) Symbols() []string {
	return p.symbols
}
