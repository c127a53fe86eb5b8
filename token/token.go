// Copyright (C) 2025, Veilex Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package token defines the external token interfaces the trading protocol
// reads and moves funds through, plus in-memory implementations with the
// semantics of the testnet mock contracts (a freely mintable 6-decimal USDT
// and a sequential-ID NFT collection).
package token

import (
	"errors"
	"fmt"
	"sync"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
)

var (
	ErrInsufficientBalance   = errors.New("transfer amount exceeds balance")
	ErrInsufficientAllowance = errors.New("transfer amount exceeds allowance")
	ErrUnknownToken          = errors.New("unknown token contract")
	ErrUnknownTokenID        = errors.New("unknown token id")
)

// ERC20 is the fungible-token surface the treasury depends on.
type ERC20 interface {
	BalanceOf(account common.Address) *uint256.Int
	Allowance(owner, spender common.Address) *uint256.Int
	Approve(owner, spender common.Address, amount *uint256.Int)
	Transfer(from, to common.Address, amount *uint256.Int) error
	TransferFrom(spender, from, to common.Address, amount *uint256.Int) error
}

// NFT is the non-fungible read surface the verification engine depends on.
type NFT interface {
	BalanceOf(owner common.Address) uint64
	OwnerOf(tokenID uint64) (common.Address, error)
}

// Registry resolves contract addresses to token instances. It stands in for
// external contract dispatch; the engines only ever hold addresses.
type Registry struct {
	mu     sync.RWMutex
	erc20s map[common.Address]ERC20
	nfts   map[common.Address]NFT
}

// NewRegistry creates an empty token registry.
func NewRegistry() *Registry {
	return &Registry{
		erc20s: make(map[common.Address]ERC20),
		nfts:   make(map[common.Address]NFT),
	}
}

// RegisterERC20 binds a fungible token instance to an address.
func (r *Registry) RegisterERC20(addr common.Address, t ERC20) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.erc20s[addr] = t
}

// RegisterNFT binds an NFT collection to an address.
func (r *Registry) RegisterNFT(addr common.Address, n NFT) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nfts[addr] = n
}

// ERC20 resolves a fungible token by address.
func (r *Registry) ERC20(addr common.Address) (ERC20, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.erc20s[addr]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownToken, addr)
	}
	return t, nil
}

// NFT resolves a collection by address.
func (r *Registry) NFT(addr common.Address) (NFT, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.nfts[addr]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownToken, addr)
	}
	return n, nil
}
