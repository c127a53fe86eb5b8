// Copyright (C) 2025, Veilex Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package trade composes the confidential trading protocol: shadow-address
// registration, NFT ownership verification, airdrop eligibility, anonymous
// purchase, and decrypt-and-withdraw, driven by the asynchronous decryption
// oracle. Protocol is the single entry point mirroring the deployed contract
// surface.
package trade

import (
	"sync"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"

	"github.com/veilex/veil"
	"github.com/veilex/veil/airdrop"
	"github.com/veilex/veil/oracle"
	"github.com/veilex/veil/registry"
	"github.com/veilex/veil/token"
	"github.com/veilex/veil/treasury"
	"github.com/veilex/veil/verifier"
)

// Config configures a Protocol instance.
type Config struct {
	// Owner is the administrative account for price, allow-list, and
	// emergency operations.
	Owner common.Address
	// Contract is the protocol's own address: the target the encrypted-input
	// proofs bind to, the USDT allowance spender, and the account claims and
	// withdrawals pay out of.
	Contract common.Address
	// USDT is the payment token address.
	USDT common.Address
	// Verifier validates encrypted-input proofs.
	Verifier veil.InputVerifier
	// Tokens resolves external token contracts.
	Tokens *token.Registry
	// Logger defaults to a no-op logger when nil.
	Logger log.Logger
}

// Protocol is the composed protocol state machine.
type Protocol struct {
	log         log.Logger
	owner       common.Address
	contract    common.Address
	coordinator *oracle.Coordinator
	registry    *registry.Registry
	verifier    *verifier.Engine
	airdrop     *airdrop.Ledger
	treasury    *treasury.Treasury

	eventMu     sync.RWMutex
	events      []veil.Event
	subscribers []veil.EmitFunc
}

// New wires up a protocol instance. The caller still has to authorize at
// least one relayer on Coordinator() before decryption flows can resolve.
func New(cfg Config) *Protocol {
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNoOpLogger()
	}

	p := &Protocol{
		log:      logger,
		owner:    cfg.Owner,
		contract: cfg.Contract,
	}
	emit := p.dispatch

	p.coordinator = oracle.NewCoordinator(logger)
	p.registry = registry.New(logger, cfg.Contract, cfg.Verifier, p.coordinator, emit)
	p.verifier = verifier.New(logger, cfg.Owner, p.registry, p.coordinator, cfg.Tokens, emit)
	p.airdrop = airdrop.New(logger, cfg.Owner, cfg.Contract, p.verifier, cfg.Tokens, emit)
	p.treasury = treasury.New(logger, cfg.Owner, cfg.Contract, cfg.USDT, p.registry, cfg.Tokens, emit)
	return p
}

// Coordinator exposes the decryption request feed for relayer wiring.
func (p *Protocol) Coordinator() *oracle.Coordinator {
	return p.coordinator
}

// Subscribe registers a callback invoked for every protocol event.
func (p *Protocol) Subscribe(fn veil.EmitFunc) {
	p.eventMu.Lock()
	defer p.eventMu.Unlock()
	p.subscribers = append(p.subscribers, fn)
}

// Events returns a snapshot of all emitted events in order.
func (p *Protocol) Events() []veil.Event {
	p.eventMu.RLock()
	defer p.eventMu.RUnlock()
	out := make([]veil.Event, len(p.events))
	copy(out, p.events)
	return out
}

func (p *Protocol) dispatch(e veil.Event) {
	p.eventMu.Lock()
	p.events = append(p.events, e)
	subs := make([]veil.EmitFunc, len(p.subscribers))
	copy(subs, p.subscribers)
	p.eventMu.Unlock()
	for _, fn := range subs {
		fn(e)
	}
}

// RegisterEncryptedAddress stores the caller's encrypted shadow address.
// One-time per user; the handle is immutable afterwards.
func (p *Protocol) RegisterEncryptedAddress(user common.Address, in *veil.EncryptedInput) error {
	return p.registry.Register(user, in)
}

// RegisterProxyAddress is the ConfidentialTrade-era name for
// RegisterEncryptedAddress, with identical semantics.
func (p *Protocol) RegisterProxyAddress(user common.Address, in *veil.EncryptedInput) error {
	return p.registry.Register(user, in)
}

// GetUserRegistration returns the registration record, zero-valued for
// unknown users.
func (p *Protocol) GetUserRegistration(user common.Address) registry.UserRegistration {
	return p.registry.Get(user)
}

// GetUserRegistrationLegacy returns the legacy (isRegistered, registrationTime)
// tuple shape older deployments expose.
func (p *Protocol) GetUserRegistrationLegacy(user common.Address) (bool, uint64) {
	return p.registry.GetLegacy(user)
}

// RequestDecryption starts the reveal flow for the caller's shadow address
// and returns the request ID.
func (p *Protocol) RequestDecryption(user common.Address) (uint64, error) {
	return p.registry.RequestDecryption(user)
}

// GetPendingWithdrawal returns the decryption request record, zero-valued
// for unknown IDs.
func (p *Protocol) GetPendingWithdrawal(requestID uint64) oracle.Request {
	return p.coordinator.GetRequest(requestID)
}

// RevealedProxy returns the user's decrypted proxy address, zero until the
// reveal callback lands.
func (p *Protocol) RevealedProxy(user common.Address) common.Address {
	return p.registry.Revealed(user)
}

// RequestNFTVerification starts an ownership verification of the caller's
// shadow address against nftContract and returns the verification ID.
func (p *Protocol) RequestNFTVerification(user, nftContract common.Address) (uint64, error) {
	return p.verifier.Request(user, nftContract)
}

// GetNFTVerification returns the resolved ownership result for
// (user, nftContract), false while unresolved.
func (p *Protocol) GetNFTVerification(user, nftContract common.Address) bool {
	return p.verifier.HasNFT(user, nftContract)
}

// GetVerificationRecord returns a verification record by ID, zero-valued for
// unknown IDs.
func (p *Protocol) GetVerificationRecord(id uint64) verifier.Record {
	return p.verifier.Get(id)
}

// AuthorizeNFTContract toggles an NFT contract on the verification
// allow-list. Owner only.
func (p *Protocol) AuthorizeNFTContract(caller, nftContract common.Address, authorized bool) error {
	return p.verifier.AuthorizeContract(caller, nftContract, authorized)
}

// AuthorizeTokenContract toggles a token contract on the airdrop payout
// allow-list. Owner only.
func (p *Protocol) AuthorizeTokenContract(caller, tokenContract common.Address, authorized bool) error {
	return p.airdrop.AuthorizeToken(caller, tokenContract, authorized)
}

// RecordAirdrop records the caller's one-time airdrop eligibility for
// nftContract, gated on a resolved hasNFT verification.
func (p *Protocol) RecordAirdrop(user, nftContract common.Address) error {
	return p.airdrop.Record(user, nftContract)
}

// GetAirdropRecord returns the airdrop record for (user, nftContract),
// zero-valued if none exists.
func (p *Protocol) GetAirdropRecord(user, nftContract common.Address) airdrop.Record {
	return p.airdrop.Get(user, nftContract)
}

// GetUserTotalAirdrops returns the sum of the user's recorded amounts.
func (p *Protocol) GetUserTotalAirdrops(user common.Address) *uint256.Int {
	return p.airdrop.UserTotal(user)
}

// HasUnclaimedAirdrop reports whether (user, nftContract) has a recorded,
// unclaimed amount.
func (p *Protocol) HasUnclaimedAirdrop(user, nftContract common.Address) bool {
	return p.airdrop.HasUnclaimed(user, nftContract)
}

// ClaimAirdrop pays the caller's recorded amount in tokenContract units.
func (p *Protocol) ClaimAirdrop(user, nftContract, tokenContract common.Address) error {
	return p.airdrop.Claim(user, nftContract, tokenContract)
}

// SetPrice configures a token's price in USDT smallest units. Owner only.
func (p *Protocol) SetPrice(caller, tokenAddr common.Address, price *uint256.Int) error {
	return p.treasury.SetPrice(caller, tokenAddr, price)
}

// GetTokenPrice returns a token's configured price, zero for unknown tokens.
func (p *Protocol) GetTokenPrice(tokenAddr common.Address) *uint256.Int {
	return p.treasury.GetTokenPrice(tokenAddr)
}

// SetUSDTToken swaps the payment token address. Owner only.
func (p *Protocol) SetUSDTToken(caller, usdt common.Address) error {
	return p.treasury.SetUSDTToken(caller, usdt)
}

// AnonymousPurchase buys buyAmount of tokenAddr for the caller, pulling the
// USDT cost through a prior allowance.
func (p *Protocol) AnonymousPurchase(user, tokenAddr common.Address, buyAmount *uint256.Int) error {
	return p.treasury.AnonymousPurchase(user, tokenAddr, buyAmount)
}

// GetUserBalance returns the user's treasury balance for a token.
func (p *Protocol) GetUserBalance(user, tokenAddr common.Address) *uint256.Int {
	return p.treasury.GetUserBalance(user, tokenAddr)
}

// DecryptWithdrawToken moves the user's full treasury balance for tokenAddr
// to their revealed proxy address.
func (p *Protocol) DecryptWithdrawToken(user, tokenAddr common.Address) error {
	return p.treasury.DecryptWithdrawToken(user, tokenAddr)
}

// EmergencyWithdraw moves tokens out of the protocol account. Owner only.
func (p *Protocol) EmergencyWithdraw(caller, tokenAddr, to common.Address, amount *uint256.Int) error {
	return p.treasury.EmergencyWithdraw(caller, tokenAddr, to, amount)
}
