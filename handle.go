// Copyright (C) 2025, Veilex Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package veil defines the shared types of the confidential trading protocol:
// ciphertext handles, encrypted inputs and their well-formedness proofs, the
// protocol error surface, and the events emitted by the trade engine.
//
// A ciphertext handle is an opaque fixed-width reference to an encrypted
// value held by the FHE coprocessor. The plaintext is never visible to the
// protocol; only the trusted decryption oracle can resolve a handle, and it
// reports the plaintext back through a signed callback.
package veil

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/luxfi/geth/common"
)

// HandleLen is the width of a ciphertext handle in bytes.
const HandleLen = 32

var (
	ErrInvalidHandle = errors.New("invalid ciphertext handle")
	ErrEmptyProof    = errors.New("empty input proof")
)

// Handle is an opaque reference to an encrypted value.
type Handle [HandleLen]byte

// ZeroHandle is the handle of an unset ciphertext.
var ZeroHandle = Handle{}

// HandleFromBytes converts a byte slice to a Handle.
func HandleFromBytes(b []byte) (Handle, error) {
	if len(b) != HandleLen {
		return Handle{}, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidHandle, HandleLen, len(b))
	}
	var h Handle
	copy(h[:], b)
	return h, nil
}

// HandleFromHex parses a hex string, with or without a 0x prefix.
func HandleFromHex(s string) (Handle, error) {
	s = strings.TrimPrefix(s, "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return Handle{}, fmt.Errorf("%w: %s", ErrInvalidHandle, err)
	}
	return HandleFromBytes(b)
}

// Bytes returns the byte representation of the handle
func (h Handle) Bytes() []byte {
	return h[:]
}

// Hex returns the 0x-prefixed hex encoding of the handle.
func (h Handle) Hex() string {
	return "0x" + hex.EncodeToString(h[:])
}

// IsZero reports whether the handle is unset.
func (h Handle) IsZero() bool {
	return h == ZeroHandle
}

func (h Handle) String() string {
	return h.Hex()
}

// EncryptedInput is a ciphertext handle together with the proof that the
// handle was produced for a specific (caller, contract) pair. It is the unit
// submitted by clients to every registration operation.
type EncryptedInput struct {
	Handle Handle
	Proof  []byte
}

// MarshalEncryptedInput marshals an encrypted input to bytes.
func MarshalEncryptedInput(in *EncryptedInput) ([]byte, error) {
	if len(in.Proof) == 0 {
		return nil, ErrEmptyProof
	}
	// Format: handle(32) + proofLen(4) + proof
	buf := make([]byte, HandleLen+4+len(in.Proof))
	copy(buf[:HandleLen], in.Handle[:])
	binary.BigEndian.PutUint32(buf[HandleLen:HandleLen+4], uint32(len(in.Proof)))
	copy(buf[HandleLen+4:], in.Proof)
	return buf, nil
}

// UnmarshalEncryptedInput unmarshals bytes to an encrypted input.
func UnmarshalEncryptedInput(data []byte) (*EncryptedInput, error) {
	if len(data) < HandleLen+4 {
		return nil, fmt.Errorf("data too short: %d", len(data))
	}
	proofLen := uint64(binary.BigEndian.Uint32(data[HandleLen : HandleLen+4]))
	if uint64(len(data)) < HandleLen+4+proofLen {
		return nil, fmt.Errorf("data too short for proof: %d", len(data))
	}
	var h Handle
	copy(h[:], data[:HandleLen])
	return &EncryptedInput{
		Handle: h,
		Proof:  data[HandleLen+4 : HandleLen+4+proofLen],
	}, nil
}

// InputVerifier validates that an encrypted input was produced for the given
// caller and target contract. Implementations stand in for the network's
// input-verifier contract.
type InputVerifier interface {
	// VerifyInput returns nil iff the proof binds the handle to the
	// (caller, contract) pair.
	VerifyInput(in *EncryptedInput, caller, contract common.Address) error
}
