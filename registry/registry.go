// Copyright (C) 2025, Veilex Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package registry stores one encrypted shadow address per user. A user
// registers exactly once; the ciphertext handle is immutable afterwards. The
// plaintext proxy address only ever enters the registry through the oracle's
// reveal callback, after which it becomes usable as a withdrawal destination.
package registry

import (
	"sync"
	"time"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"

	"github.com/veilex/veil"
	"github.com/veilex/veil/oracle"
)

// UserRegistration is the canonical registration record. The zero value is
// returned for unknown users.
type UserRegistration struct {
	EncryptedAddress veil.Handle
	IsRegistered     bool
	RegistrationTime uint64
}

// Registry is the identity registry.
type Registry struct {
	log         log.Logger
	contract    common.Address
	verifier    veil.InputVerifier
	coordinator *oracle.Coordinator
	emit        veil.EmitFunc

	mu            sync.RWMutex
	registrations map[common.Address]*UserRegistration
	revealed      map[common.Address]common.Address
}

// New creates a registry bound to its contract address. It registers the
// reveal resolver on the coordinator; from then on the oracle callback is the
// only path that populates revealed proxy addresses.
func New(
	logger log.Logger,
	contract common.Address,
	verifier veil.InputVerifier,
	coordinator *oracle.Coordinator,
	emit veil.EmitFunc,
) *Registry {
	r := &Registry{
		log:           logger,
		contract:      contract,
		verifier:      verifier,
		coordinator:   coordinator,
		emit:          emit,
		registrations: make(map[common.Address]*UserRegistration),
		revealed:      make(map[common.Address]common.Address),
	}
	coordinator.RegisterResolver(oracle.PurposeReveal, r.resolveReveal)
	return r
}

// Register stores a user's encrypted shadow address. The proof must bind the
// handle to (user, registry contract). Registration is permanent: a second
// call fails with ErrAlreadyRegistered regardless of the input.
func (r *Registry) Register(user common.Address, in *veil.EncryptedInput) error {
	if err := r.verifier.VerifyInput(in, user, r.contract); err != nil {
		return veil.ErrInvalidProof
	}

	r.mu.Lock()
	if reg, ok := r.registrations[user]; ok && reg.IsRegistered {
		r.mu.Unlock()
		return veil.ErrAlreadyRegistered
	}
	now := uint64(time.Now().Unix())
	r.registrations[user] = &UserRegistration{
		EncryptedAddress: in.Handle,
		IsRegistered:     true,
		RegistrationTime: now,
	}
	r.mu.Unlock()

	r.log.Info("encrypted address registered",
		log.Stringer("user", user),
		log.Stringer("handle", in.Handle),
	)
	if r.emit != nil {
		r.emit(veil.AddressRegistered{User: user, Time: now})
	}
	return nil
}

// Get returns a copy of the user's registration, zero-valued for unknown
// users.
func (r *Registry) Get(user common.Address) UserRegistration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if reg, ok := r.registrations[user]; ok {
		return *reg
	}
	return UserRegistration{}
}

// GetLegacy serves the tuple shape of the registration read kept for callers
// of the previous contract version: (isRegistered, registrationTime).
func (r *Registry) GetLegacy(user common.Address) (bool, uint64) {
	reg := r.Get(user)
	return reg.IsRegistered, reg.RegistrationTime
}

// IsRegistered reports whether the user has a stored encrypted address.
func (r *Registry) IsRegistered(user common.Address) bool {
	return r.Get(user).IsRegistered
}

// Handle returns the user's ciphertext handle. The zero handle is returned
// for unregistered users.
func (r *Registry) Handle(user common.Address) veil.Handle {
	return r.Get(user).EncryptedAddress
}

// RequestDecryption asks the oracle to reveal the caller's shadow address so
// treasury balances can be withdrawn to it. Returns the decryption request
// ID immediately; the reveal lands asynchronously.
func (r *Registry) RequestDecryption(user common.Address) (uint64, error) {
	r.mu.RLock()
	reg, ok := r.registrations[user]
	r.mu.RUnlock()
	if !ok || !reg.IsRegistered {
		return 0, veil.ErrUserNotRegistered
	}

	id := r.coordinator.Submit(user, oracle.PurposeReveal, reg.EncryptedAddress, 0)
	if r.emit != nil {
		r.emit(veil.WithdrawalRequested{RequestID: id, User: user})
	}
	return id, nil
}

// Revealed returns the decrypted proxy address for a user, or the zero
// address if no reveal has completed.
func (r *Registry) Revealed(user common.Address) common.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.revealed[user]
}

// resolveReveal is the oracle resolver for reveal requests.
func (r *Registry) resolveReveal(req oracle.Request, plaintext common.Address) error {
	r.mu.Lock()
	r.revealed[req.User] = plaintext
	r.mu.Unlock()

	r.log.Info("proxy address revealed",
		log.Uint64("requestID", req.ID),
		log.Stringer("user", req.User),
	)
	if r.emit != nil {
		r.emit(veil.ProxyRevealed{RequestID: req.ID, User: req.User, Proxy: plaintext})
	}
	return nil
}
