// Copyright (C) 2025, Veilex Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package verifier checks NFT ownership for decrypted shadow addresses. A
// verification request creates a pending record and an asynchronous
// decryption request; the oracle callback performs the ownership read and
// resolves the record exactly once. Records are never deleted.
package verifier

import (
	"sync"
	"time"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"
	"github.com/luxfi/math/set"

	"github.com/veilex/veil"
	"github.com/veilex/veil/oracle"
	"github.com/veilex/veil/registry"
	"github.com/veilex/veil/token"
)

// Record is a verification record. VerificationTime stays zero until the
// oracle resolves the record; VerifiedAddress and HasNFT are only meaningful
// afterwards.
type Record struct {
	ID               uint64
	User             common.Address
	NFTContract      common.Address
	VerifiedAddress  common.Address
	HasNFT           bool
	VerificationTime uint64
}

// Resolved reports whether the oracle callback has landed.
func (r Record) Resolved() bool {
	return r.VerificationTime != 0
}

type pairKey struct {
	user common.Address
	nft  common.Address
}

type pendingEntry struct {
	id uint64
	at time.Time
}

// pendingTimeout bounds how long an unresolved verification blocks a new
// request for the same (user, contract) pair. A request whose callback never
// lands can be superseded after the timeout.
var pendingTimeout = 30 * time.Second

// Engine is the ownership verification engine.
type Engine struct {
	log         log.Logger
	owner       common.Address
	registry    *registry.Registry
	coordinator *oracle.Coordinator
	tokens      *token.Registry
	emit        veil.EmitFunc

	mu         sync.RWMutex
	nextID     uint64
	records    map[uint64]*Record
	resolved   map[pairKey]bool
	pending    map[pairKey]pendingEntry
	authorized set.Set[common.Address]
}

// New creates a verification engine and registers its resolver on the
// coordinator.
func New(
	logger log.Logger,
	owner common.Address,
	reg *registry.Registry,
	coordinator *oracle.Coordinator,
	tokens *token.Registry,
	emit veil.EmitFunc,
) *Engine {
	e := &Engine{
		log:         logger,
		owner:       owner,
		registry:    reg,
		coordinator: coordinator,
		tokens:      tokens,
		emit:        emit,
		records:     make(map[uint64]*Record),
		resolved:    make(map[pairKey]bool),
		pending:     make(map[pairKey]pendingEntry),
		authorized:  set.NewSet[common.Address](0),
	}
	coordinator.RegisterResolver(oracle.PurposeVerification, e.resolve)
	return e
}

// AuthorizeContract toggles an NFT contract on the verification allow-list.
// Owner only.
func (e *Engine) AuthorizeContract(caller, nftContract common.Address, authorized bool) error {
	if caller != e.owner {
		return veil.ErrOnlyOwner
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if authorized {
		e.authorized.Add(nftContract)
	} else {
		e.authorized.Remove(nftContract)
	}
	return nil
}

// Request creates a verification request for the caller's shadow address
// against nftContract and returns the new verification ID. At most one
// request per (user, contract) pair may be pending at a time; a request
// whose callback never lands is superseded after pendingTimeout.
func (e *Engine) Request(user, nftContract common.Address) (uint64, error) {
	if !e.registry.IsRegistered(user) {
		return 0, veil.ErrUserNotRegistered
	}

	e.mu.Lock()
	if !e.authorized.Contains(nftContract) {
		e.mu.Unlock()
		return 0, veil.ErrNotAuthorized
	}
	key := pairKey{user: user, nft: nftContract}
	if entry, exists := e.pending[key]; exists && time.Since(entry.at) < pendingTimeout {
		e.mu.Unlock()
		return 0, veil.ErrPendingExists
	}
	e.nextID++
	id := e.nextID
	e.records[id] = &Record{
		ID:          id,
		User:        user,
		NFTContract: nftContract,
	}
	e.pending[key] = pendingEntry{id: id, at: time.Now()}
	e.mu.Unlock()

	e.coordinator.Submit(user, oracle.PurposeVerification, e.registry.Handle(user), id)

	e.log.Info("NFT verification requested",
		log.Uint64("verificationID", id),
		log.Stringer("user", user),
		log.Stringer("nftContract", nftContract),
	)
	if e.emit != nil {
		e.emit(veil.NFTVerificationRequested{
			VerificationID: id,
			User:           user,
			NFTContract:    nftContract,
		})
	}
	return id, nil
}

// Get returns a copy of a verification record, zero-valued for unknown IDs.
func (e *Engine) Get(id uint64) Record {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if r, ok := e.records[id]; ok {
		return *r
	}
	return Record{}
}

// HasNFT returns the resolved verification result for (user, nftContract),
// false while unresolved or never requested.
func (e *Engine) HasNFT(user, nftContract common.Address) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.resolved[pairKey{user: user, nft: nftContract}]
}

// resolve is the oracle resolver for verification requests. It performs the
// ownership read against the decrypted address and writes the result into
// the record exactly once.
func (e *Engine) resolve(req oracle.Request, plaintext common.Address) error {
	e.mu.Lock()
	record, ok := e.records[req.Ref]
	if !ok {
		e.mu.Unlock()
		return veil.ErrUnknownRequest
	}
	if record.Resolved() {
		e.mu.Unlock()
		return veil.ErrAlreadyResolved
	}
	nftContract := record.NFTContract
	key := pairKey{user: record.User, nft: nftContract}
	e.mu.Unlock()

	// Ownership read happens outside the engine lock; the external contract
	// read may be slow.
	nft, err := e.tokens.NFT(nftContract)
	if err != nil {
		// The request cannot resolve; release the pair so a new request is
		// not blocked behind it.
		e.mu.Lock()
		if entry, ok := e.pending[key]; ok && entry.id == record.ID {
			delete(e.pending, key)
		}
		e.mu.Unlock()
		return err
	}
	hasNFT := nft.BalanceOf(plaintext) > 0

	e.mu.Lock()
	if record.Resolved() {
		e.mu.Unlock()
		return veil.ErrAlreadyResolved
	}
	record.VerifiedAddress = plaintext
	record.HasNFT = hasNFT
	record.VerificationTime = uint64(time.Now().Unix())
	e.resolved[key] = hasNFT
	if entry, ok := e.pending[key]; ok && entry.id == record.ID {
		delete(e.pending, key)
	}
	e.mu.Unlock()

	e.log.Info("NFT verification resolved",
		log.Uint64("verificationID", record.ID),
		log.Stringer("user", record.User),
		log.Bool("hasNFT", hasNFT),
	)
	if e.emit != nil {
		e.emit(veil.NFTVerificationCompleted{
			VerificationID: record.ID,
			User:           record.User,
			NFTContract:    nftContract,
			HasNFT:         hasNFT,
		})
	}
	return nil
}
