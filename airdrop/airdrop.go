// Copyright (C) 2025, Veilex Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package airdrop tracks one-time airdrop eligibility earned through NFT
// ownership verification. A record is created at most once per
// (user, nftContract) pair and carries a fixed amount; claiming pays the
// amount out of the ledger's own token balance.
package airdrop

import (
	"sync"
	"time"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"
	"github.com/luxfi/math/set"

	"github.com/veilex/veil"
	"github.com/veilex/veil/token"
	"github.com/veilex/veil/verifier"
)

// AmountPerAirdrop is the fixed eligibility amount, 1000 tokens at 18
// decimals.
var AmountPerAirdrop = uint256.MustFromDecimal("1000000000000000000000")

// Record is a single airdrop eligibility entry.
type Record struct {
	NFTContract common.Address
	Amount      *uint256.Int
	Claimed     bool
	Timestamp   uint64
}

type pairKey struct {
	user common.Address
	nft  common.Address
}

// Ledger is the airdrop eligibility ledger.
type Ledger struct {
	log      log.Logger
	owner    common.Address
	contract common.Address
	verifier *verifier.Engine
	tokens   *token.Registry
	emit     veil.EmitFunc

	mu         sync.RWMutex
	records    map[pairKey]*Record
	authorized set.Set[common.Address]
}

// New creates an airdrop ledger. contract is the ledger's own address, the
// account claims are paid from.
func New(
	logger log.Logger,
	owner common.Address,
	contract common.Address,
	verif *verifier.Engine,
	tokens *token.Registry,
	emit veil.EmitFunc,
) *Ledger {
	return &Ledger{
		log:        logger,
		owner:      owner,
		contract:   contract,
		verifier:   verif,
		tokens:     tokens,
		emit:       emit,
		records:    make(map[pairKey]*Record),
		authorized: set.NewSet[common.Address](0),
	}
}

// AuthorizeToken toggles a token contract on the claim payout allow-list.
// Owner only.
func (l *Ledger) AuthorizeToken(caller, tokenContract common.Address, authorized bool) error {
	if caller != l.owner {
		return veil.ErrOnlyOwner
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if authorized {
		l.authorized.Add(tokenContract)
	} else {
		l.authorized.Remove(tokenContract)
	}
	return nil
}

// Record creates the caller's eligibility entry for nftContract. The caller
// must hold a resolved hasNFT verification; at most one entry per
// (user, contract) pair ever exists.
func (l *Ledger) Record(user, nftContract common.Address) error {
	if !l.verifier.HasNFT(user, nftContract) {
		return veil.ErrNotVerified
	}

	l.mu.Lock()
	key := pairKey{user: user, nft: nftContract}
	if _, exists := l.records[key]; exists {
		l.mu.Unlock()
		return veil.ErrAlreadyRecorded
	}
	l.records[key] = &Record{
		NFTContract: nftContract,
		Amount:      AmountPerAirdrop.Clone(),
		Timestamp:   uint64(time.Now().Unix()),
	}
	l.mu.Unlock()

	l.log.Info("airdrop recorded",
		log.Stringer("user", user),
		log.Stringer("nftContract", nftContract),
	)
	if l.emit != nil {
		l.emit(veil.AirdropRecorded{
			User:        user,
			NFTContract: nftContract,
			Amount:      AmountPerAirdrop.Clone(),
		})
	}
	return nil
}

// Get returns a copy of the record for (user, nftContract), zero-valued if
// none exists.
func (l *Ledger) Get(user, nftContract common.Address) Record {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if r, ok := l.records[pairKey{user: user, nft: nftContract}]; ok {
		cp := *r
		cp.Amount = r.Amount.Clone()
		return cp
	}
	return Record{Amount: uint256.NewInt(0)}
}

// UserTotal returns the sum of all of the user's recorded amounts, claimed
// or not.
func (l *Ledger) UserTotal(user common.Address) *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	total := uint256.NewInt(0)
	for key, r := range l.records {
		if key.user == user {
			total.Add(total, r.Amount)
		}
	}
	return total
}

// HasUnclaimed reports whether (user, nftContract) has a recorded, unclaimed
// amount.
func (l *Ledger) HasUnclaimed(user, nftContract common.Address) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	r, ok := l.records[pairKey{user: user, nft: nftContract}]
	return ok && !r.Claimed && !r.Amount.IsZero()
}

// Claim pays the caller's recorded amount for nftContract in tokenContract
// units, out of the ledger's own balance. The claimed flag flips false to
// true exactly once.
func (l *Ledger) Claim(user, nftContract, tokenContract common.Address) error {
	l.mu.Lock()
	if !l.authorized.Contains(tokenContract) {
		l.mu.Unlock()
		return veil.ErrNotAuthorized
	}
	key := pairKey{user: user, nft: nftContract}
	r, ok := l.records[key]
	if !ok {
		l.mu.Unlock()
		return veil.ErrNothingToClaim
	}
	if r.Claimed {
		l.mu.Unlock()
		return veil.ErrAlreadyClaimed
	}
	// Flip the flag before paying out so a concurrent claim for the same
	// record observes it as claimed. A failed transfer restores the flag.
	r.Claimed = true
	amount := r.Amount.Clone()
	l.mu.Unlock()

	erc20, err := l.tokens.ERC20(tokenContract)
	if err != nil {
		l.unclaim(key)
		return err
	}
	if err := erc20.Transfer(l.contract, user, amount); err != nil {
		l.unclaim(key)
		return err
	}

	l.log.Info("airdrop claimed",
		log.Stringer("user", user),
		log.Stringer("nftContract", nftContract),
		log.Stringer("token", tokenContract),
	)
	if l.emit != nil {
		l.emit(veil.AirdropClaimed{
			User:        user,
			NFTContract: nftContract,
			Token:       tokenContract,
			Amount:      amount,
		})
	}
	return nil
}

func (l *Ledger) unclaim(key pairKey) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if r, ok := l.records[key]; ok {
		r.Claimed = false
	}
}
