// Copyright (C) 2025, Veilex Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package client is the read-side view of the trading protocol. It caches
// reads for display with a short TTL and invalidates affected entries
// whenever it submits a state-mutating operation, so a caller that mutates
// through the client never sees its own stale state.
package client

import (
	"time"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"

	"github.com/veilex/veil"
	"github.com/veilex/veil/cache"
	"github.com/veilex/veil/registry"
	"github.com/veilex/veil/trade"
)

// DefaultTTL bounds how stale a cached read may be. Chain state is
// authoritative; anything older gets re-fetched.
const DefaultTTL = 15 * time.Second

type pairKey struct {
	A common.Address
	B common.Address
}

// Client wraps a protocol instance with TTL-cached reads.
type Client struct {
	protocol *trade.Protocol

	registrations *cache.TTLCache[common.Address, registry.UserRegistration]
	prices        *cache.TTLCache[common.Address, *uint256.Int]
	balances      *cache.TTLCache[pairKey, *uint256.Int]
	verifications *cache.TTLCache[pairKey, bool]
}

// New creates a client. A non-positive ttl falls back to DefaultTTL.
func New(protocol *trade.Protocol, ttl time.Duration) *Client {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Client{
		protocol:      protocol,
		registrations: cache.NewTTLCache[common.Address, registry.UserRegistration](ttl),
		prices:        cache.NewTTLCache[common.Address, *uint256.Int](ttl),
		balances:      cache.NewTTLCache[pairKey, *uint256.Int](ttl),
		verifications: cache.NewTTLCache[pairKey, bool](ttl),
	}
}

// GetUserRegistration returns the possibly cached registration record.
func (c *Client) GetUserRegistration(user common.Address) (registry.UserRegistration, error) {
	return c.registrations.Get(user, func(u common.Address) (registry.UserRegistration, error) {
		return c.protocol.GetUserRegistration(u), nil
	})
}

// GetTokenPrice returns the possibly cached token price.
func (c *Client) GetTokenPrice(tokenAddr common.Address) (*uint256.Int, error) {
	return c.prices.Get(tokenAddr, func(a common.Address) (*uint256.Int, error) {
		return c.protocol.GetTokenPrice(a), nil
	})
}

// GetUserBalance returns the possibly cached treasury balance.
func (c *Client) GetUserBalance(user, tokenAddr common.Address) (*uint256.Int, error) {
	return c.balances.Get(pairKey{A: user, B: tokenAddr}, func(k pairKey) (*uint256.Int, error) {
		return c.protocol.GetUserBalance(k.A, k.B), nil
	})
}

// GetNFTVerification returns the possibly cached verification result.
func (c *Client) GetNFTVerification(user, nftContract common.Address) (bool, error) {
	return c.verifications.Get(pairKey{A: user, B: nftContract}, func(k pairKey) (bool, error) {
		return c.protocol.GetNFTVerification(k.A, k.B), nil
	})
}

// RegisterProxyAddress submits a registration and invalidates the user's
// cached registration record.
func (c *Client) RegisterProxyAddress(user common.Address, in *veil.EncryptedInput) error {
	if err := c.protocol.RegisterProxyAddress(user, in); err != nil {
		return err
	}
	c.registrations.Invalidate(user)
	return nil
}

// RequestDecryption starts the reveal flow for the user.
func (c *Client) RequestDecryption(user common.Address) (uint64, error) {
	return c.protocol.RequestDecryption(user)
}

// RequestNFTVerification starts an ownership verification and invalidates
// the cached result for the pair.
func (c *Client) RequestNFTVerification(user, nftContract common.Address) (uint64, error) {
	id, err := c.protocol.RequestNFTVerification(user, nftContract)
	if err != nil {
		return 0, err
	}
	c.verifications.Invalidate(pairKey{A: user, B: nftContract})
	return id, nil
}

// RecordAirdrop records airdrop eligibility for the user.
func (c *Client) RecordAirdrop(user, nftContract common.Address) error {
	return c.protocol.RecordAirdrop(user, nftContract)
}

// AnonymousPurchase submits a purchase and invalidates the user's cached
// balance for the token.
func (c *Client) AnonymousPurchase(user, tokenAddr common.Address, buyAmount *uint256.Int) error {
	if err := c.protocol.AnonymousPurchase(user, tokenAddr, buyAmount); err != nil {
		return err
	}
	c.balances.Invalidate(pairKey{A: user, B: tokenAddr})
	return nil
}

// DecryptWithdrawToken submits a withdrawal and invalidates the user's
// cached balance for the token.
func (c *Client) DecryptWithdrawToken(user, tokenAddr common.Address) error {
	if err := c.protocol.DecryptWithdrawToken(user, tokenAddr); err != nil {
		return err
	}
	c.balances.Invalidate(pairKey{A: user, B: tokenAddr})
	return nil
}
