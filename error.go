// Copyright (C) 2025, Veilex Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package veil

import (
	"errors"
	"fmt"
)

// Error is a coded protocol error surfaced to callers. Every state-changing
// operation either succeeds completely or fails with one of these; no partial
// mutation is ever observable.
type Error struct {
	Code    int32
	Message string
}

// Error implements the error interface
func (e *Error) Error() string {
	return fmt.Sprintf("veil error %d: %s", e.Code, e.Message)
}

// Is reports whether target carries the same code.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

// Protocol error surface. Codes mirror the on-chain custom errors one-to-one.
var (
	ErrOnlyOwner         = &Error{Code: 1, Message: "caller is not the owner"}
	ErrUserNotRegistered = &Error{Code: 2, Message: "user is not registered"}
	ErrAlreadyRegistered = &Error{Code: 3, Message: "user is already registered"}
	ErrInvalidProof      = &Error{Code: 4, Message: "invalid input proof"}
	ErrProxyNotRevealed  = &Error{Code: 5, Message: "proxy address not revealed"}
	ErrAlreadyResolved   = &Error{Code: 6, Message: "verification already resolved"}
	ErrNotVerified       = &Error{Code: 7, Message: "no successful verification for contract"}
	ErrAlreadyRecorded   = &Error{Code: 8, Message: "airdrop already recorded"}
	ErrAlreadyClaimed    = &Error{Code: 9, Message: "airdrop already claimed"}
	ErrNothingToClaim    = &Error{Code: 10, Message: "no airdrop to claim"}
	ErrUnknownRequest    = &Error{Code: 11, Message: "unknown decryption request"}
	ErrRequestComplete   = &Error{Code: 12, Message: "decryption request already complete"}
	ErrUnauthorizedNode  = &Error{Code: 13, Message: "callback sender is not an authorized relayer"}
	ErrBadCallbackSig    = &Error{Code: 14, Message: "callback signature verification failed"}
	ErrNotAuthorized     = &Error{Code: 15, Message: "contract is not authorized"}
	ErrPendingExists     = &Error{Code: 16, Message: "verification already pending for contract"}
	ErrZeroAmount        = &Error{Code: 17, Message: "amount must be positive"}
)

// String reverts carried over verbatim from the legacy contract surface.
var (
	// ErrNoSuchToken is returned for a purchase against a token with no
	// configured price. The message is part of the observable contract
	// surface and is kept as-is.
	ErrNoSuchToken = errors.New("no this token")
)
