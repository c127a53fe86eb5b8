// Copyright (C) 2025, Veilex Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package token

import (
	"sync"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
)

// StandardMintAmount is the fixed amount minted by MintStandard: 10,000 USDT
// in 6-decimal units.
var StandardMintAmount = uint256.NewInt(10_000_000_000)

var _ ERC20 = (*MemoryERC20)(nil)

// MemoryERC20 is an in-memory fungible token. Anyone may mint, matching the
// testnet mock USDT.
type MemoryERC20 struct {
	name     string
	symbol   string
	decimals uint8

	mu         sync.RWMutex
	balances   map[common.Address]*uint256.Int
	allowances map[common.Address]map[common.Address]*uint256.Int
}

// NewMemoryERC20 creates an empty token ledger.
func NewMemoryERC20(name, symbol string, decimals uint8) *MemoryERC20 {
	return &MemoryERC20{
		name:       name,
		symbol:     symbol,
		decimals:   decimals,
		balances:   make(map[common.Address]*uint256.Int),
		allowances: make(map[common.Address]map[common.Address]*uint256.Int),
	}
}

// NewMemoryUSDT creates the mock USDT ledger.
func NewMemoryUSDT() *MemoryERC20 {
	return NewMemoryERC20("Mock USDT", "mUSDT", 6)
}

func (t *MemoryERC20) Name() string    { return t.name }
func (t *MemoryERC20) Symbol() string  { return t.symbol }
func (t *MemoryERC20) Decimals() uint8 { return t.decimals }

// Mint credits amount to the given account.
func (t *MemoryERC20) Mint(to common.Address, amount *uint256.Int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.credit(to, amount)
}

// MintStandard credits the fixed standard amount to the given account.
func (t *MemoryERC20) MintStandard(to common.Address) {
	t.Mint(to, StandardMintAmount)
}

// BalanceOf returns a copy of the account balance.
func (t *MemoryERC20) BalanceOf(account common.Address) *uint256.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if b, ok := t.balances[account]; ok {
		return b.Clone()
	}
	return uint256.NewInt(0)
}

// Allowance returns a copy of the amount spender may move from owner.
func (t *MemoryERC20) Allowance(owner, spender common.Address) *uint256.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if m, ok := t.allowances[owner]; ok {
		if a, ok := m[spender]; ok {
			return a.Clone()
		}
	}
	return uint256.NewInt(0)
}

// Approve sets the amount spender may move from owner, replacing any prior
// approval.
func (t *MemoryERC20) Approve(owner, spender common.Address, amount *uint256.Int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.allowances[owner]
	if !ok {
		m = make(map[common.Address]*uint256.Int)
		t.allowances[owner] = m
	}
	m[spender] = amount.Clone()
}

// Transfer moves amount from one account to another.
func (t *MemoryERC20) Transfer(from, to common.Address, amount *uint256.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.move(from, to, amount)
}

// TransferFrom moves amount from an account using spender's allowance. The
// allowance check happens before any balance mutation, so a failed transfer
// leaves both untouched.
func (t *MemoryERC20) TransferFrom(spender, from, to common.Address, amount *uint256.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	m, ok := t.allowances[from]
	if !ok {
		return ErrInsufficientAllowance
	}
	allowance, ok := m[spender]
	if !ok || allowance.Lt(amount) {
		return ErrInsufficientAllowance
	}
	if err := t.move(from, to, amount); err != nil {
		return err
	}
	allowance.Sub(allowance, amount)
	return nil
}

func (t *MemoryERC20) move(from, to common.Address, amount *uint256.Int) error {
	balance, ok := t.balances[from]
	if !ok || balance.Lt(amount) {
		return ErrInsufficientBalance
	}
	balance.Sub(balance, amount)
	t.credit(to, amount)
	return nil
}

func (t *MemoryERC20) credit(to common.Address, amount *uint256.Int) {
	if b, ok := t.balances[to]; ok {
		b.Add(b, amount)
		return
	}
	t.balances[to] = amount.Clone()
}

var _ NFT = (*MemoryNFT)(nil)

// MemoryNFT is an in-memory NFT collection with sequential token IDs
// starting at zero.
type MemoryNFT struct {
	mu     sync.RWMutex
	nextID uint64
	owners map[uint64]common.Address
	counts map[common.Address]uint64
}

// NewMemoryNFT creates an empty collection.
func NewMemoryNFT() *MemoryNFT {
	return &MemoryNFT{
		owners: make(map[uint64]common.Address),
		counts: make(map[common.Address]uint64),
	}
}

// Mint assigns the next token ID to the given owner and returns it.
func (n *MemoryNFT) Mint(to common.Address) uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	id := n.nextID
	n.nextID++
	n.owners[id] = to
	n.counts[to]++
	return id
}

// BalanceOf returns the number of tokens held by owner.
func (n *MemoryNFT) BalanceOf(owner common.Address) uint64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.counts[owner]
}

// OwnerOf returns the owner of a token ID.
func (n *MemoryNFT) OwnerOf(tokenID uint64) (common.Address, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	owner, ok := n.owners[tokenID]
	if !ok {
		return common.Address{}, ErrUnknownTokenID
	}
	return owner, nil
}
