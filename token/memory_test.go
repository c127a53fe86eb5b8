// Copyright (C) 2025, Veilex Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package token

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"
)

var (
	alice = common.HexToAddress("0x0000000000000000000000000000000000000aaa")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000bbb")
	carol = common.HexToAddress("0x0000000000000000000000000000000000000ccc")
)

func TestUSDTProperties(t *testing.T) {
	usdt := NewMemoryUSDT()
	require.Equal(t, "Mock USDT", usdt.Name())
	require.Equal(t, "mUSDT", usdt.Symbol())
	require.Equal(t, uint8(6), usdt.Decimals())
}

func TestMintAndTransfer(t *testing.T) {
	usdt := NewMemoryUSDT()

	usdt.Mint(alice, uint256.NewInt(1_000_000_000)) // 1000 USDT
	require.Equal(t, uint256.NewInt(1_000_000_000), usdt.BalanceOf(alice))

	require.NoError(t, usdt.Transfer(alice, bob, uint256.NewInt(50_000_000)))
	require.Equal(t, uint256.NewInt(950_000_000), usdt.BalanceOf(alice))
	require.Equal(t, uint256.NewInt(50_000_000), usdt.BalanceOf(bob))

	err := usdt.Transfer(bob, alice, uint256.NewInt(60_000_000))
	require.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestMintStandard(t *testing.T) {
	usdt := NewMemoryUSDT()
	usdt.MintStandard(bob)
	require.Equal(t, StandardMintAmount, usdt.BalanceOf(bob))
}

func TestTransferFrom(t *testing.T) {
	usdt := NewMemoryUSDT()
	usdt.Mint(alice, uint256.NewInt(100))

	// No approval yet.
	err := usdt.TransferFrom(carol, alice, bob, uint256.NewInt(10))
	require.ErrorIs(t, err, ErrInsufficientAllowance)

	usdt.Approve(alice, carol, uint256.NewInt(30))
	require.Equal(t, uint256.NewInt(30), usdt.Allowance(alice, carol))

	require.NoError(t, usdt.TransferFrom(carol, alice, bob, uint256.NewInt(20)))
	require.Equal(t, uint256.NewInt(10), usdt.Allowance(alice, carol))
	require.Equal(t, uint256.NewInt(80), usdt.BalanceOf(alice))
	require.Equal(t, uint256.NewInt(20), usdt.BalanceOf(bob))

	// Exceeds remaining allowance; balances must not move.
	err = usdt.TransferFrom(carol, alice, bob, uint256.NewInt(15))
	require.ErrorIs(t, err, ErrInsufficientAllowance)
	require.Equal(t, uint256.NewInt(80), usdt.BalanceOf(alice))

	// Allowance present but balance short; allowance must not be consumed.
	usdt.Approve(alice, carol, uint256.NewInt(1000))
	err = usdt.TransferFrom(carol, alice, bob, uint256.NewInt(500))
	require.ErrorIs(t, err, ErrInsufficientBalance)
	require.Equal(t, uint256.NewInt(1000), usdt.Allowance(alice, carol))
}

func TestNFTMint(t *testing.T) {
	nft := NewMemoryNFT()

	id := nft.Mint(alice)
	require.Equal(t, uint64(0), id)
	require.Equal(t, uint64(1), nft.BalanceOf(alice))

	id = nft.Mint(alice)
	require.Equal(t, uint64(1), id)
	require.Equal(t, uint64(2), nft.BalanceOf(alice))
	require.Equal(t, uint64(0), nft.BalanceOf(bob))

	owner, err := nft.OwnerOf(0)
	require.NoError(t, err)
	require.Equal(t, alice, owner)

	_, err = nft.OwnerOf(99)
	require.ErrorIs(t, err, ErrUnknownTokenID)
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	usdt := NewMemoryUSDT()
	nft := NewMemoryNFT()

	usdtAddr := common.HexToAddress("0x0000000000000000000000000000000000000001")
	nftAddr := common.HexToAddress("0x0000000000000000000000000000000000000002")

	reg.RegisterERC20(usdtAddr, usdt)
	reg.RegisterNFT(nftAddr, nft)

	got, err := reg.ERC20(usdtAddr)
	require.NoError(t, err)
	require.Equal(t, ERC20(usdt), got)

	gotNFT, err := reg.NFT(nftAddr)
	require.NoError(t, err)
	require.Equal(t, NFT(nft), gotNFT)

	_, err = reg.ERC20(nftAddr)
	require.ErrorIs(t, err, ErrUnknownToken)
	_, err = reg.NFT(usdtAddr)
	require.ErrorIs(t, err, ErrUnknownToken)
}
