// Copyright (C) 2025, Veilex Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package treasury implements the confidential purchase engine. Purchases
// are public: prices, amounts, and the USDT debit are all visible. Only the
// withdrawal destination is confidential, because balances can only leave to
// the proxy address revealed by the decryption oracle.
package treasury

import (
	"errors"
	"sync"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"

	"github.com/veilex/veil"
	"github.com/veilex/veil/registry"
	"github.com/veilex/veil/token"
)

// ErrCostOverflow is returned when price * buyAmount exceeds 256 bits.
var ErrCostOverflow = errors.New("purchase cost overflows")

type balanceKey struct {
	user  common.Address
	token common.Address
}

// Treasury maintains token prices and per-(user, token) balances funded by
// USDT purchases.
type Treasury struct {
	log      log.Logger
	owner    common.Address
	contract common.Address
	registry *registry.Registry
	tokens   *token.Registry
	emit     veil.EmitFunc

	mu       sync.RWMutex
	usdt     common.Address
	prices   map[common.Address]*uint256.Int
	balances map[balanceKey]*uint256.Int
}

// New creates a treasury. contract is the treasury's own address: the
// account purchases pay into and withdrawals pay out of, and the spender
// users grant their USDT allowance to.
func New(
	logger log.Logger,
	owner common.Address,
	contract common.Address,
	usdt common.Address,
	reg *registry.Registry,
	tokens *token.Registry,
	emit veil.EmitFunc,
) *Treasury {
	return &Treasury{
		log:      logger,
		owner:    owner,
		contract: contract,
		registry: reg,
		tokens:   tokens,
		emit:     emit,
		usdt:     usdt,
		prices:   make(map[common.Address]*uint256.Int),
		balances: make(map[balanceKey]*uint256.Int),
	}
}

// Contract returns the treasury's own address.
func (t *Treasury) Contract() common.Address {
	return t.contract
}

// SetPrice configures a token's price in USDT smallest units (6 decimals).
// Owner only. A price of zero unconfigures the token.
func (t *Treasury) SetPrice(caller, tokenAddr common.Address, price *uint256.Int) error {
	if caller != t.owner {
		return veil.ErrOnlyOwner
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if price == nil || price.IsZero() {
		delete(t.prices, tokenAddr)
		return nil
	}
	t.prices[tokenAddr] = price.Clone()
	return nil
}

// GetTokenPrice returns a token's configured price, zero for unknown tokens.
func (t *Treasury) GetTokenPrice(tokenAddr common.Address) *uint256.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if p, ok := t.prices[tokenAddr]; ok {
		return p.Clone()
	}
	return uint256.NewInt(0)
}

// SetUSDTToken swaps the payment token address. Owner only.
func (t *Treasury) SetUSDTToken(caller, usdt common.Address) error {
	if caller != t.owner {
		return veil.ErrOnlyOwner
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.usdt = usdt
	return nil
}

// GetUserBalance returns the user's treasury balance for a token.
func (t *Treasury) GetUserBalance(user, tokenAddr common.Address) *uint256.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if b, ok := t.balances[balanceKey{user: user, token: tokenAddr}]; ok {
		return b.Clone()
	}
	return uint256.NewInt(0)
}

// AnonymousPurchase pulls cost = price * buyAmount of USDT from the caller
// and credits buyAmount to their treasury balance for tokenAddr. The caller
// must have approved at least cost to the treasury beforehand. A failed pull
// leaves both the USDT state and the treasury balance untouched.
func (t *Treasury) AnonymousPurchase(user, tokenAddr common.Address, buyAmount *uint256.Int) error {
	if !t.registry.IsRegistered(user) {
		return veil.ErrUserNotRegistered
	}
	if buyAmount == nil || buyAmount.IsZero() {
		return veil.ErrZeroAmount
	}

	t.mu.RLock()
	price, ok := t.prices[tokenAddr]
	usdtAddr := t.usdt
	t.mu.RUnlock()
	if !ok {
		return veil.ErrNoSuchToken
	}

	cost, overflow := new(uint256.Int).MulOverflow(price, buyAmount)
	if overflow {
		return ErrCostOverflow
	}

	usdt, err := t.tokens.ERC20(usdtAddr)
	if err != nil {
		return err
	}
	if err := usdt.TransferFrom(t.contract, user, t.contract, cost); err != nil {
		return err
	}

	t.mu.Lock()
	key := balanceKey{user: user, token: tokenAddr}
	if b, ok := t.balances[key]; ok {
		b.Add(b, buyAmount)
	} else {
		t.balances[key] = buyAmount.Clone()
	}
	t.mu.Unlock()

	t.log.Info("anonymous purchase",
		log.Stringer("user", user),
		log.Stringer("token", tokenAddr),
	)
	if t.emit != nil {
		t.emit(veil.TokensPurchased{
			User:   user,
			Token:  tokenAddr,
			Amount: buyAmount.Clone(),
			Cost:   cost,
		})
	}
	return nil
}

// DecryptWithdrawToken transfers the user's full treasury balance for
// tokenAddr to their revealed proxy address and zeroes the balance. The
// proxy must already have been revealed through the decryption flow.
func (t *Treasury) DecryptWithdrawToken(user, tokenAddr common.Address) error {
	proxy := t.registry.Revealed(user)
	if proxy == (common.Address{}) {
		return veil.ErrProxyNotRevealed
	}

	// Debit before the transfer so a concurrent withdrawal of the same
	// balance finds it already zeroed. A failed transfer re-credits.
	t.mu.Lock()
	key := balanceKey{user: user, token: tokenAddr}
	balance, ok := t.balances[key]
	if !ok || balance.IsZero() {
		t.mu.Unlock()
		return nil
	}
	amount := balance.Clone()
	delete(t.balances, key)
	t.mu.Unlock()

	erc20, err := t.tokens.ERC20(tokenAddr)
	if err != nil {
		t.credit(key, amount)
		return err
	}
	if err := erc20.Transfer(t.contract, proxy, amount); err != nil {
		t.credit(key, amount)
		return err
	}

	t.log.Info("treasury withdrawal",
		log.Stringer("user", user),
		log.Stringer("token", tokenAddr),
		log.Stringer("proxy", proxy),
	)
	if t.emit != nil {
		t.emit(veil.TokensWithdrawn{
			User:   user,
			Token:  tokenAddr,
			Proxy:  proxy,
			Amount: amount,
		})
	}
	return nil
}

// credit adds amount back onto a balance. Used to restore a debit whose
// payout failed; purchases may have landed in between, so it accumulates.
func (t *Treasury) credit(key balanceKey, amount *uint256.Int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if b, ok := t.balances[key]; ok {
		b.Add(b, amount)
	} else {
		t.balances[key] = amount.Clone()
	}
}

// EmergencyWithdraw moves amount of tokenAddr out of the treasury without
// touching user balances. Owner only; an administrative escape hatch.
func (t *Treasury) EmergencyWithdraw(caller, tokenAddr, to common.Address, amount *uint256.Int) error {
	if caller != t.owner {
		return veil.ErrOnlyOwner
	}
	erc20, err := t.tokens.ERC20(tokenAddr)
	if err != nil {
		return err
	}
	return erc20.Transfer(t.contract, to, amount)
}
