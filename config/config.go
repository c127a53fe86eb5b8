// Copyright (C) 2025, Veilex Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config loads the client-side protocol configuration: the fixed
// FHE coprocessor network parameters (ACL, KMS verifier, input verifier,
// decryption oracle, relayer URL, gateway chain) plus the deployed contract
// addresses. These are deployment constants, not protocol logic.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/luxfi/geth/common"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	defaultLogLevel = "info"
	defaultCacheTTL = 15 * time.Second

	// Testnet coprocessor deployment.
	defaultChainID        = 11155111
	defaultGatewayChainID = 55815
	defaultRelayerURL     = "https://relayer.testnet.zama.cloud"
)

// Config holds the deployment parameters for one protocol instance.
type Config struct {
	LogLevel       string        `mapstructure:"log-level" json:"log-level"`
	ChainID        uint64        `mapstructure:"chain-id" json:"chain-id"`
	GatewayChainID uint64        `mapstructure:"gateway-chain-id" json:"gateway-chain-id"`
	ACLAddress     string        `mapstructure:"acl-address" json:"acl-address"`
	KMSAddress     string        `mapstructure:"kms-verifier-address" json:"kms-verifier-address"`
	InputVerifier  string        `mapstructure:"input-verifier-address" json:"input-verifier-address"`
	OracleAddress  string        `mapstructure:"decryption-oracle-address" json:"decryption-oracle-address"`
	RelayerURL     string        `mapstructure:"relayer-url" json:"relayer-url"`
	Contract       string        `mapstructure:"contract-address" json:"contract-address"`
	USDT           string        `mapstructure:"usdt-address" json:"usdt-address"`
	CacheTTL       time.Duration `mapstructure:"cache-ttl" json:"cache-ttl"`
}

// NewConfig builds and validates a Config from the viper instance.
func NewConfig(v *viper.Viper) (Config, error) {
	cfg, err := BuildConfig(v)
	if err != nil {
		return cfg, err
	}
	if err = cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("failed to validate configuration: %w", err)
	}
	return cfg, nil
}

// BuildViper builds the viper instance. The config file must be provided via
// the command line flag or environment variable; all other keys may come
// from the config file or environment.
func BuildViper(fs *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.AutomaticEnv()
	// Map flag names to env var names. Flags are capitalized, and hyphens
	// are replaced with underscores.
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	if err := v.BindPFlags(fs); err != nil {
		return nil, err
	}

	if !v.IsSet(ConfigFileKey) {
		return nil, fmt.Errorf("config file not set")
	}

	v.SetConfigFile(v.GetString(ConfigFileKey))
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	return v, nil
}

// SetDefaultConfigValues applies defaults for the optional keys.
func SetDefaultConfigValues(v *viper.Viper) {
	v.SetDefault(LogLevelKey, defaultLogLevel)
	v.SetDefault(ChainIDKey, defaultChainID)
	v.SetDefault(GatewayChainIDKey, defaultGatewayChainID)
	v.SetDefault(RelayerURLKey, defaultRelayerURL)
	v.SetDefault(CacheTTLKey, defaultCacheTTL)
}

// BuildConfig constructs the config using viper. Flags take precedence over
// the config file, which takes precedence over defaults.
func BuildConfig(v *viper.Viper) (Config, error) {
	SetDefaultConfigValues(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to unmarshal viper config: %w", err)
	}
	return cfg, nil
}

// Validate checks address syntax and required fields.
func (c *Config) Validate() error {
	for key, addr := range map[string]string{
		ACLAddressKey:       c.ACLAddress,
		KMSAddressKey:       c.KMSAddress,
		InputVerifierKey:    c.InputVerifier,
		DecryptionOracleKey: c.OracleAddress,
		ContractKey:         c.Contract,
		USDTKey:             c.USDT,
	} {
		if addr == "" {
			return fmt.Errorf("%s is required", key)
		}
		if !common.IsHexAddress(addr) {
			return fmt.Errorf("%s is not a valid address: %s", key, addr)
		}
	}
	if c.ChainID == 0 {
		return fmt.Errorf("%s must be nonzero", ChainIDKey)
	}
	if c.GatewayChainID == 0 {
		return fmt.Errorf("%s must be nonzero", GatewayChainIDKey)
	}
	if c.RelayerURL == "" {
		return fmt.Errorf("%s is required", RelayerURLKey)
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("%s must be positive", CacheTTLKey)
	}
	return nil
}

// ContractAddress returns the parsed protocol contract address. Call only
// after Validate.
func (c *Config) ContractAddress() common.Address {
	return common.HexToAddress(c.Contract)
}

// USDTAddress returns the parsed payment token address. Call only after
// Validate.
func (c *Config) USDTAddress() common.Address {
	return common.HexToAddress(c.USDT)
}
