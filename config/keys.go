// Copyright (C) 2025, Veilex Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

const (
	// Command line option keys
	ConfigFileKey = "config-file"
	VersionKey    = "version"
	HelpKey       = "help"

	// Environment variable keys
	ConfigFileEnvKey = "CONFIG_FILE"

	// Top-level configuration keys
	LogLevelKey         = "log-level"
	ChainIDKey          = "chain-id"
	GatewayChainIDKey   = "gateway-chain-id"
	ACLAddressKey       = "acl-address"
	KMSAddressKey       = "kms-verifier-address"
	InputVerifierKey    = "input-verifier-address"
	DecryptionOracleKey = "decryption-oracle-address"
	RelayerURLKey       = "relayer-url"
	ContractKey         = "contract-address"
	USDTKey             = "usdt-address"
	CacheTTLKey         = "cache-ttl"
)
