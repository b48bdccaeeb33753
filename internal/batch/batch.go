// ==================================
// File: internal/batch/batch.go
// ==================================
package batch

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/rovshanmuradov/launchpad-ledger/internal/account"
	"github.com/rovshanmuradov/launchpad-ledger/internal/dex/amm"
	"github.com/rovshanmuradov/launchpad-ledger/internal/ledger"
)

// File is the on-disk layout of a batch file.
type File struct {
	Genesis []Funding `yaml:"genesis"`
	Batch   []Step    `yaml:"batch"`
}

// Funding opens a wallet with a starting balance before the batch runs.
type Funding struct {
	Wallet   string `yaml:"wallet"`
	Lamports uint64 `yaml:"lamports"`
}

// Step is one instruction entry. Which fields apply depends on Op.
// Account fields hold a wallet alias or a base58 address.
type Step struct {
	Op string `yaml:"op"`

	Authority string `yaml:"authority"`
	Creator   string `yaml:"creator"`
	Buyer     string `yaml:"buyer"`
	Trader    string `yaml:"trader"`
	Treasury  string `yaml:"treasury"`
	Recipient string `yaml:"recipient"`
	Mint      string `yaml:"mint"`

	FeeBps     uint64 `yaml:"fee_bps"`
	SwapFeeBps uint64 `yaml:"swap_fee_bps"`

	TokenName     string `yaml:"token_name"`
	Symbol        string `yaml:"symbol"`
	URI           string `yaml:"uri"`
	InitialSupply uint64 `yaml:"initial_supply"`
	CreationFee   uint64 `yaml:"creation_fee"`

	Amount          uint64 `yaml:"amount"`
	AmountIn        uint64 `yaml:"amount_in"`
	LiquidityAmount uint64 `yaml:"liquidity_amount"`
}

// Genesis is a resolved funding entry.
type Genesis struct {
	Wallet   account.Key
	Lamports uint64
}

// Batch is a parsed batch file ready for the executor.
type Batch struct {
	Genesis      []Genesis
	Instructions []ledger.Instruction
}

// Loader parses batch files into instructions.
type Loader struct {
	logger *zap.Logger
	model  amm.PricingModel
}

// NewLoader constructs a Loader. Swaps are priced with model.
func NewLoader(logger *zap.Logger, model amm.PricingModel) *Loader {
	return &Loader{logger: logger.Named("batch"), model: model}
}

// Load reads and parses a batch file.
func (l *Loader) Load(path string) (*Batch, error) {
	if filepath.IsAbs(path) {
		l.logger.Debug("Using absolute path for batch file", zap.String("path", path))
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return l.Parse(data)
}

// Parse builds a batch from YAML. Any invalid entry fails the whole file:
// instruction indices are part of the result, so entries are never skipped.
func (l *Loader) Parse(data []byte) (*Batch, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if len(file.Batch) == 0 {
		return nil, fmt.Errorf("no instructions found in batch")
	}

	out := &Batch{
		Genesis:      make([]Genesis, 0, len(file.Genesis)),
		Instructions: make([]ledger.Instruction, 0, len(file.Batch)),
	}

	seen := make(map[account.Key]struct{}, len(file.Genesis))
	for i, f := range file.Genesis {
		key, err := resolve(f.Wallet, "wallet")
		if err != nil {
			return nil, fmt.Errorf("genesis[%d]: %w", i, err)
		}
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("genesis[%d]: wallet %q funded twice", i, f.Wallet)
		}
		seen[key] = struct{}{}
		out.Genesis = append(out.Genesis, Genesis{Wallet: key, Lamports: f.Lamports})
	}

	for i, step := range file.Batch {
		ins, err := l.build(step)
		if err != nil {
			return nil, fmt.Errorf("batch[%d] (%s): %w", i, step.Op, err)
		}
		out.Instructions = append(out.Instructions, ins)
	}

	l.logger.Info("Loaded batch",
		zap.Int("instructions", len(out.Instructions)),
		zap.Int("genesis_wallets", len(out.Genesis)))
	return out, nil
}
