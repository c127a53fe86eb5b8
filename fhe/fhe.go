// Copyright (C) 2025, Veilex Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package fhe provides the encrypted-input producer and decryption interfaces
// backing the confidential trading protocol. The real FHE coprocessor and KMS
// are external systems; this package defines the contract the protocol
// consumes and ships a deterministic local scheme for tests and for running
// an in-process decryption relayer.
package fhe

import (
	"errors"

	"github.com/luxfi/geth/common"

	"github.com/veilex/veil"
)

// Scheme produces encrypted inputs for protocol calls. Given a plaintext
// address, the target contract, and the calling account, it returns an opaque
// ciphertext handle plus a proof of well-formedness bound to that triple.
type Scheme interface {
	// EncryptAddress encrypts a plaintext address for submission by caller
	// to contract.
	EncryptAddress(plaintext, contract, caller common.Address) (*veil.EncryptedInput, error)
}

// Decrypter resolves ciphertext handles back to plaintext. Only the trusted
// oracle holds this capability; protocol code never sees it.
type Decrypter interface {
	// DecryptAddress returns the plaintext behind a handle.
	DecryptAddress(handle veil.Handle) (common.Address, error)
}

// ErrUnknownHandle is returned when a handle does not reference any
// ciphertext held by the scheme.
var ErrUnknownHandle = errors.New("unknown ciphertext handle")
