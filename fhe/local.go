// Copyright (C) 2025, Veilex Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package fhe

import (
	"crypto/rand"
	"encoding/binary"
	"sync"

	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/common"

	"github.com/veilex/veil"
)

// proofDomain separates input proofs from any other keccak use.
var proofDomain = []byte("veil.input.v1")

var (
	_ Scheme             = (*LocalScheme)(nil)
	_ Decrypter          = (*LocalScheme)(nil)
	_ veil.InputVerifier = (*LocalScheme)(nil)
)

// LocalScheme is an in-process stand-in for the FHE coprocessor. Handles are
// keccak digests over a secret scheme key, so they are unlinkable to the
// plaintext without the key; the plaintext itself is retained internally,
// mirroring coprocessor ciphertext storage, and is only reachable through
// the Decrypter capability.
type LocalScheme struct {
	mu      sync.RWMutex
	key     [32]byte
	counter uint64
	store   map[veil.Handle]common.Address
}

// NewLocalScheme creates a scheme with a random key.
func NewLocalScheme() (*LocalScheme, error) {
	s := &LocalScheme{
		store: make(map[veil.Handle]common.Address),
	}
	if _, err := rand.Read(s.key[:]); err != nil {
		return nil, err
	}
	return s, nil
}

// NewLocalSchemeFromKey creates a scheme with a fixed key, for deterministic
// tests.
func NewLocalSchemeFromKey(key [32]byte) *LocalScheme {
	return &LocalScheme{
		key:   key,
		store: make(map[veil.Handle]common.Address),
	}
}

// EncryptAddress encrypts a plaintext address for submission by caller to
// contract. Every call yields a fresh handle, even for identical plaintexts.
func (s *LocalScheme) EncryptAddress(plaintext, contract, caller common.Address) (*veil.EncryptedInput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counter++
	var nonce [8]byte
	binary.BigEndian.PutUint64(nonce[:], s.counter)

	digest := crypto.Keccak256(
		s.key[:],
		caller.Bytes(),
		contract.Bytes(),
		plaintext.Bytes(),
		nonce[:],
	)
	handle, err := veil.HandleFromBytes(digest)
	if err != nil {
		return nil, err
	}
	s.store[handle] = plaintext

	return &veil.EncryptedInput{
		Handle: handle,
		Proof:  inputProof(handle, caller, contract),
	}, nil
}

// DecryptAddress returns the plaintext behind a handle.
func (s *LocalScheme) DecryptAddress(handle veil.Handle) (common.Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	plaintext, ok := s.store[handle]
	if !ok {
		return common.Address{}, ErrUnknownHandle
	}
	return plaintext, nil
}

// VerifyInput returns nil iff the proof binds the handle to the
// (caller, contract) pair.
func (s *LocalScheme) VerifyInput(in *veil.EncryptedInput, caller, contract common.Address) error {
	if in == nil || in.Handle.IsZero() {
		return veil.ErrInvalidHandle
	}
	if len(in.Proof) == 0 {
		return veil.ErrEmptyProof
	}
	expected := inputProof(in.Handle, caller, contract)
	if string(expected) != string(in.Proof) {
		return veil.ErrInvalidProof
	}
	return nil
}

// inputProof binds a handle to the caller and target contract. The binding
// is public; possession of a valid proof does not reveal the plaintext.
func inputProof(handle veil.Handle, caller, contract common.Address) []byte {
	return crypto.Keccak256(proofDomain, handle.Bytes(), caller.Bytes(), contract.Bytes())
}
