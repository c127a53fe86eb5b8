// Copyright (C) 2025, Veilex Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/holiman/uint256"
	"github.com/luxfi/crypto/bls"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/spf13/cobra"

	"github.com/veilex/veil"
	"github.com/veilex/veil/airdrop"
	"github.com/veilex/veil/config"
	"github.com/veilex/veil/fhe"
	"github.com/veilex/veil/oracle"
	"github.com/veilex/veil/token"
	"github.com/veilex/veil/trade"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "veil",
	Short: "Veil - confidential trading protocol CLI",
	Long: `Veil is a confidential trading and anonymous authentication protocol
built on FHE-encrypted shadow addresses.

This CLI provides tools for encoding encrypted inputs, validating deployment
configuration, and exercising the protocol state machine end to end.`,
	Version: fmt.Sprintf("%s (built %s)", version, buildDate),
}

func init() {
	rootCmd.AddCommand(encodeInputCmd)
	rootCmd.AddCommand(decodeInputCmd)
	rootCmd.AddCommand(validateConfigCmd)
	rootCmd.AddCommand(demoCmd)

	encodeInputCmd.Flags().String("plaintext", "", "Shadow address to encrypt (hex)")
	encodeInputCmd.Flags().String("contract", "", "Target contract address (hex)")
	encodeInputCmd.Flags().String("caller", "", "Caller address the proof binds to (hex)")

	decodeInputCmd.Flags().String("input", "", "Hex-encoded encrypted input")

	validateConfigCmd.Flags().String(config.ConfigFileKey, "", "Path to the JSON config file")
}

var encodeInputCmd = &cobra.Command{
	Use:   "encode-input",
	Short: "Produce an encrypted input for a shadow address",
	Long: `Encrypt a plaintext shadow address for a (contract, caller) pair and
print the resulting handle, proof, and wire encoding.`,
	Run: func(cmd *cobra.Command, args []string) {
		plaintext := mustAddress(cmd, "plaintext")
		contract := mustAddress(cmd, "contract")
		caller := mustAddress(cmd, "caller")

		scheme, err := fhe.NewLocalScheme()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize scheme: %v\n", err)
			os.Exit(1)
		}
		in, err := scheme.EncryptAddress(plaintext, contract, caller)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Encryption failed: %v\n", err)
			os.Exit(1)
		}

		encoded, err := veil.MarshalEncryptedInput(in)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Encoding failed: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Encrypted input created:\n")
		fmt.Printf("  Handle: %s\n", in.Handle.Hex())
		fmt.Printf("  Proof: %x\n", in.Proof)
		fmt.Printf("  Encoded: %x\n", encoded)
	},
}

var decodeInputCmd = &cobra.Command{
	Use:   "decode-input",
	Short: "Decode a wire-encoded encrypted input",
	Run: func(cmd *cobra.Command, args []string) {
		inputHex, _ := cmd.Flags().GetString("input")
		raw, err := hex.DecodeString(inputHex)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid input hex: %v\n", err)
			os.Exit(1)
		}
		in, err := veil.UnmarshalEncryptedInput(raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Malformed encrypted input: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Encrypted input:\n")
		fmt.Printf("  Handle: %s\n", in.Handle.Hex())
		fmt.Printf("  Proof: %x\n", in.Proof)
	},
}

var validateConfigCmd = &cobra.Command{
	Use:   "validate-config",
	Short: "Validate a deployment configuration file",
	Run: func(cmd *cobra.Command, args []string) {
		v, err := config.BuildViper(cmd.Flags())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
			os.Exit(1)
		}
		cfg, err := config.NewConfig(v)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Configuration is valid:\n")
		fmt.Printf("  Chain ID: %d\n", cfg.ChainID)
		fmt.Printf("  Gateway chain ID: %d\n", cfg.GatewayChainID)
		fmt.Printf("  Relayer URL: %s\n", cfg.RelayerURL)
		fmt.Printf("  Contract: %s\n", cfg.ContractAddress().Hex())
		fmt.Printf("  USDT: %s\n", cfg.USDTAddress().Hex())
	},
}

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run the full protocol lifecycle against an in-memory deployment",
	Long: `Stand up an in-memory deployment (local FHE scheme, mock USDT, test NFT,
one relayer) and walk the full lifecycle: register a shadow address, verify
NFT ownership, record and claim an airdrop, purchase tokens, reveal the
shadow address, and withdraw.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			ownerAddr   = common.HexToAddress("0x00000000000000000000000000000000000000ad")
			contract    = common.HexToAddress("0x00000000000000000000000000000000000000c0")
			usdtAddr    = common.HexToAddress("0x00000000000000000000000000000000000000e3")
			tradeToken  = common.HexToAddress("0x00000000000000000000000000000000000000e4")
			nftContract = common.HexToAddress("0x00000000000000000000000000000000000000e1")
			dropToken   = common.HexToAddress("0x00000000000000000000000000000000000000e2")
			user        = common.HexToAddress("0x0000000000000000000000000000000000000a11")
			proxy       = common.HexToAddress("0x1234567890123456789012345678901234567890")
		)

		scheme, err := fhe.NewLocalScheme()
		if err != nil {
			return err
		}
		usdt := token.NewMemoryUSDT()
		trd := token.NewMemoryERC20("Veil Trade", "VTRD", 18)
		drop := token.NewMemoryERC20("Veil Drop", "VDROP", 18)
		nft := token.NewMemoryNFT()
		tokens := token.NewRegistry()
		tokens.RegisterERC20(usdtAddr, usdt)
		tokens.RegisterERC20(tradeToken, trd)
		tokens.RegisterERC20(dropToken, drop)
		tokens.RegisterNFT(nftContract, nft)

		protocol := trade.New(trade.Config{
			Owner:    ownerAddr,
			Contract: contract,
			USDT:     usdtAddr,
			Verifier: scheme,
			Tokens:   tokens,
			Logger:   log.NewNoOpLogger(),
		})
		protocol.Subscribe(func(e veil.Event) {
			fmt.Printf("  event: %s\n", e.Name())
		})

		sk, err := bls.NewSecretKey()
		if err != nil {
			return err
		}
		relayer := oracle.NewRelayer(
			log.NewNoOpLogger(), ids.GenerateTestNodeID(), sk, scheme, protocol.Coordinator())
		protocol.Coordinator().AuthorizeRelayer(relayer.NodeID(), relayer.PublicKey())
		drive := func() error {
			return relayer.Process(<-protocol.Coordinator().Pending())
		}

		fmt.Println("Setting up deployment...")
		if err := protocol.AuthorizeNFTContract(ownerAddr, nftContract, true); err != nil {
			return err
		}
		if err := protocol.AuthorizeTokenContract(ownerAddr, dropToken, true); err != nil {
			return err
		}
		if err := protocol.SetPrice(ownerAddr, tradeToken, uint256.NewInt(10_000_000)); err != nil {
			return err
		}
		nft.Mint(proxy)
		usdt.MintStandard(user)
		usdt.Approve(user, contract, uint256.NewInt(50_000_000))
		trd.Mint(contract, uint256.NewInt(1_000_000))
		drop.Mint(contract, airdrop.AmountPerAirdrop)

		fmt.Println("Registering shadow address...")
		in, err := scheme.EncryptAddress(proxy, contract, user)
		if err != nil {
			return err
		}
		if err := protocol.RegisterProxyAddress(user, in); err != nil {
			return err
		}

		fmt.Println("Verifying NFT ownership...")
		if _, err := protocol.RequestNFTVerification(user, nftContract); err != nil {
			return err
		}
		if err := drive(); err != nil {
			return err
		}
		fmt.Printf("  hasNFT: %t\n", protocol.GetNFTVerification(user, nftContract))

		fmt.Println("Recording and claiming airdrop...")
		if err := protocol.RecordAirdrop(user, nftContract); err != nil {
			return err
		}
		if err := protocol.ClaimAirdrop(user, nftContract, dropToken); err != nil {
			return err
		}
		fmt.Printf("  total airdrops: %s\n", protocol.GetUserTotalAirdrops(user))

		fmt.Println("Purchasing tokens...")
		if err := protocol.AnonymousPurchase(user, tradeToken, uint256.NewInt(5)); err != nil {
			return err
		}
		fmt.Printf("  treasury balance: %s\n", protocol.GetUserBalance(user, tradeToken))

		fmt.Println("Revealing shadow address and withdrawing...")
		if _, err := protocol.RequestDecryption(user); err != nil {
			return err
		}
		if err := drive(); err != nil {
			return err
		}
		if err := protocol.DecryptWithdrawToken(user, tradeToken); err != nil {
			return err
		}
		fmt.Printf("  proxy token balance: %s\n", trd.BalanceOf(proxy))
		fmt.Println("Done.")
		return nil
	},
}

func mustAddress(cmd *cobra.Command, flag string) common.Address {
	s, _ := cmd.Flags().GetString(flag)
	if !common.IsHexAddress(s) {
		fmt.Fprintf(os.Stderr, "Invalid --%s address: %q\n", flag, s)
		os.Exit(1)
	}
	return common.HexToAddress(s)
}
