package config

import (
	"os"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/iotaledger/hive.go/ierrors"
	"gopkg.in/yaml.v2"
)

// This is the global app config for the ledger.
type AppConfig struct {
	// How many leading hex '0' characters form a valid block hash.
	Difficulty int `yaml:"difficulty"`
	// Fixed fee in coins deducted from the change of every built transaction.
	Fee float64 `yaml:"fee"`
	// Signer scheme, either "ecdsa" or "sim".
	Signer string `yaml:"signer"`
	// Seed for the sim signer, 0 means random key material.
	SignerSeed int64 `yaml:"signer_seed"`
	// Reject transactions whose signature does not match the owner of the spent outputs.
	// When false only balances are checked, anyone may spend any output.
	RequireSignatureVerification bool `yaml:"require_signature_verification"`
	// How many goroutines search the nonce space.
	MiningWorkers int `yaml:"mining_workers"`
	// How many hash attempts a worker makes between two cancellation checks.
	CheckInterval uint64 `yaml:"check_interval"`
	// Coins allocated to the first wallet by the driver.
	GenesisAmount float64 `yaml:"genesis_amount"`
	// Where exports are written.
	ExportDir string `yaml:"export_dir"`
}

// Default returns the config used when no file is given.
func Default() AppConfig {
	return AppConfig{
		Difficulty:                   3,
		Fee:                          0.0001,
		Signer:                       "ecdsa",
		RequireSignatureVerification: true,
		MiningWorkers:                1,
		CheckInterval:                1024,
		GenesisAmount:                1.5,
		ExportDir:                    ".",
	}
}

// Load reads a yaml file on top of the defaults.
func Load(path string) (AppConfig, error) {
	c := Default()
	yamlFile, err := os.ReadFile(path)
	if err != nil {
		return c, ierrors.Wrapf(err, "failed to read config %s", path)
	}
	if err := yaml.Unmarshal(yamlFile, &c); err != nil {
		return c, ierrors.Wrapf(err, "failed to parse config %s", path)
	}
	return c, c.Validate()
}

func (c AppConfig) Validate() error {
	switch {
	case c.Difficulty < 0 || c.Difficulty > 64:
		return ierrors.Errorf("difficulty must be within [0, 64], got %d", c.Difficulty)
	case c.Fee < 0:
		return ierrors.Errorf("fee must not be negative, got %f", c.Fee)
	case c.MiningWorkers < 1:
		return ierrors.Errorf("mining_workers must be at least 1, got %d", c.MiningWorkers)
	case c.CheckInterval == 0:
		return ierrors.New("check_interval must be positive")
	case c.GenesisAmount < 0:
		return ierrors.Errorf("genesis_amount must not be negative, got %f", c.GenesisAmount)
	}
	if _, err := c.FeeAmount(); err != nil {
		return err
	}
	return nil
}

// FeeAmount converts the configured fee into base units.
func (c AppConfig) FeeAmount() (btcutil.Amount, error) {
	fee, err := btcutil.NewAmount(c.Fee)
	if err != nil {
		return 0, ierrors.Wrap(err, "invalid fee")
	}
	return fee, nil
}
