// Copyright (C) 2025, Veilex Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/holiman/uint256"
	"github.com/luxfi/crypto/bls"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/spf13/cobra"

	"github.com/veilex/veil"
	"github.com/veilex/veil/fhe"
	"github.com/veilex/veil/oracle"
	"github.com/veilex/veil/token"
	"github.com/veilex/veil/trade"
)

func init() {
	rootCmd.AddCommand(shellCmd)
}

// shellEnv is one in-memory deployment the shell commands operate on.
type shellEnv struct {
	owner    common.Address
	contract common.Address
	scheme   *fhe.LocalScheme
	protocol *trade.Protocol
	usdt     *token.MemoryERC20
	nft      *token.MemoryNFT
	nftAddr  common.Address
	usdtAddr common.Address
}

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Interactive shell against an in-memory deployment",
	Long: `Stand up an in-memory deployment with a background relayer and accept
protocol commands on stdin, one per line:

  register <user> <proxy>            register a shadow address
  get-registration <user>            read a registration record
  verify-nft <user>                  request NFT ownership verification
  record-airdrop <user>              record airdrop eligibility
  set-price <token> <price>          configure a token price (owner)
  approve <user> <amount>            approve USDT spending by the protocol
  purchase <user> <token> <amount>   anonymous purchase
  get-balance <user> <token>         read a treasury balance
  request-decryption <user>          start the reveal flow
  get-pending-withdrawal <id>        read a decryption request
  withdraw <user> <token>            withdraw to the revealed proxy
  mint-usdt <to>                     mint the standard USDT amount
  mint-nft <to>                      mint a test NFT
  quit`,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newShellEnv()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		sk, err := bls.NewSecretKey()
		if err != nil {
			return err
		}
		relayer := oracle.NewRelayer(
			log.NewNoOpLogger(), ids.GenerateTestNodeID(), sk, env.scheme,
			env.protocol.Coordinator())
		env.protocol.Coordinator().AuthorizeRelayer(relayer.NodeID(), relayer.PublicKey())
		go relayer.Run(ctx)

		env.protocol.Subscribe(func(e veil.Event) {
			fmt.Printf("event: %s\n", e.Name())
		})

		fmt.Printf("owner: %s\ncontract: %s\nusdt: %s\nnft: %s\n",
			env.owner.Hex(), env.contract.Hex(), env.usdtAddr.Hex(), env.nftAddr.Hex())
		scanner := bufio.NewScanner(os.Stdin)
		for {
			fmt.Print("> ")
			if !scanner.Scan() {
				return scanner.Err()
			}
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if line == "quit" || line == "exit" {
				return nil
			}
			if err := env.exec(line); err != nil {
				fmt.Printf("error: %v\n", err)
			}
		}
	},
}

func newShellEnv() (*shellEnv, error) {
	scheme, err := fhe.NewLocalScheme()
	if err != nil {
		return nil, err
	}
	env := &shellEnv{
		owner:    common.HexToAddress("0x00000000000000000000000000000000000000ad"),
		contract: common.HexToAddress("0x00000000000000000000000000000000000000c0"),
		usdtAddr: common.HexToAddress("0x00000000000000000000000000000000000000e3"),
		nftAddr:  common.HexToAddress("0x00000000000000000000000000000000000000e1"),
		scheme:   scheme,
		usdt:     token.NewMemoryUSDT(),
		nft:      token.NewMemoryNFT(),
	}
	tokens := token.NewRegistry()
	tokens.RegisterERC20(env.usdtAddr, env.usdt)
	tokens.RegisterNFT(env.nftAddr, env.nft)

	env.protocol = trade.New(trade.Config{
		Owner:    env.owner,
		Contract: env.contract,
		USDT:     env.usdtAddr,
		Verifier: scheme,
		Tokens:   tokens,
		Logger:   log.NewNoOpLogger(),
	})
	if err := env.protocol.AuthorizeNFTContract(env.owner, env.nftAddr, true); err != nil {
		return nil, err
	}
	return env, nil
}

func (e *shellEnv) exec(line string) error {
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]
	switch cmd {
	case "register":
		user, proxy, err := twoAddrs(args)
		if err != nil {
			return err
		}
		in, err := e.scheme.EncryptAddress(proxy, e.contract, user)
		if err != nil {
			return err
		}
		return e.protocol.RegisterProxyAddress(user, in)
	case "get-registration":
		user, err := oneAddr(args)
		if err != nil {
			return err
		}
		reg := e.protocol.GetUserRegistration(user)
		fmt.Printf("registered: %t  handle: %s  time: %d\n",
			reg.IsRegistered, reg.EncryptedAddress.Hex(), reg.RegistrationTime)
		return nil
	case "verify-nft":
		user, err := oneAddr(args)
		if err != nil {
			return err
		}
		id, err := e.protocol.RequestNFTVerification(user, e.nftAddr)
		if err != nil {
			return err
		}
		fmt.Printf("verification id: %d\n", id)
		return nil
	case "record-airdrop":
		user, err := oneAddr(args)
		if err != nil {
			return err
		}
		if err := e.protocol.RecordAirdrop(user, e.nftAddr); err != nil {
			return err
		}
		fmt.Printf("total airdrops: %s\n", e.protocol.GetUserTotalAirdrops(user))
		return nil
	case "set-price":
		if len(args) != 2 {
			return fmt.Errorf("usage: set-price <token> <price>")
		}
		tokenAddr, err := parseAddr(args[0])
		if err != nil {
			return err
		}
		price, err := uint256.FromDecimal(args[1])
		if err != nil {
			return err
		}
		return e.protocol.SetPrice(e.owner, tokenAddr, price)
	case "approve":
		if len(args) != 2 {
			return fmt.Errorf("usage: approve <user> <amount>")
		}
		user, err := parseAddr(args[0])
		if err != nil {
			return err
		}
		amount, err := uint256.FromDecimal(args[1])
		if err != nil {
			return err
		}
		e.usdt.Approve(user, e.contract, amount)
		return nil
	case "purchase":
		if len(args) != 3 {
			return fmt.Errorf("usage: purchase <user> <token> <amount>")
		}
		user, err := parseAddr(args[0])
		if err != nil {
			return err
		}
		tokenAddr, err := parseAddr(args[1])
		if err != nil {
			return err
		}
		amount, err := uint256.FromDecimal(args[2])
		if err != nil {
			return err
		}
		return e.protocol.AnonymousPurchase(user, tokenAddr, amount)
	case "get-balance":
		user, tokenAddr, err := twoAddrs(args)
		if err != nil {
			return err
		}
		fmt.Printf("balance: %s\n", e.protocol.GetUserBalance(user, tokenAddr))
		return nil
	case "request-decryption":
		user, err := oneAddr(args)
		if err != nil {
			return err
		}
		id, err := e.protocol.RequestDecryption(user)
		if err != nil {
			return err
		}
		fmt.Printf("request id: %d\n", id)
		return nil
	case "get-pending-withdrawal":
		if len(args) != 1 {
			return fmt.Errorf("usage: get-pending-withdrawal <id>")
		}
		id, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return err
		}
		req := e.protocol.GetPendingWithdrawal(id)
		fmt.Printf("user: %s  complete: %t\n", req.User.Hex(), req.Complete)
		return nil
	case "withdraw":
		user, tokenAddr, err := twoAddrs(args)
		if err != nil {
			return err
		}
		return e.protocol.DecryptWithdrawToken(user, tokenAddr)
	case "mint-usdt":
		to, err := oneAddr(args)
		if err != nil {
			return err
		}
		e.usdt.MintStandard(to)
		fmt.Printf("usdt balance: %s\n", e.usdt.BalanceOf(to))
		return nil
	case "mint-nft":
		to, err := oneAddr(args)
		if err != nil {
			return err
		}
		fmt.Printf("token id: %d\n", e.nft.Mint(to))
		return nil
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func parseAddr(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

func oneAddr(args []string) (common.Address, error) {
	if len(args) != 1 {
		return common.Address{}, fmt.Errorf("expected one address argument")
	}
	return parseAddr(args[0])
}

func twoAddrs(args []string) (common.Address, common.Address, error) {
	if len(args) != 2 {
		return common.Address{}, common.Address{}, fmt.Errorf("expected two address arguments")
	}
	a, err := parseAddr(args[0])
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	b, err := parseAddr(args[1])
	return a, b, err
}
