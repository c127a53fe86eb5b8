// Copyright (C) 2025, Veilex Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package veil

import (
	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
)

// Event is a protocol event emitted by the trade engine after a state
// mutation commits. Events carry copies; listeners must not retain pointers
// into engine state.
type Event interface {
	// Name returns the event name as it appears on the contract ABI.
	Name() string
}

// EmitFunc delivers an event to a listener. A nil EmitFunc disables emission.
type EmitFunc func(Event)

// AddressRegistered is emitted when a user stores an encrypted shadow address.
type AddressRegistered struct {
	User common.Address
	Time uint64
}

func (AddressRegistered) Name() string { return "AddressRegistered" }

// WithdrawalRequested is emitted when a reveal-for-withdrawal decryption
// request is created.
type WithdrawalRequested struct {
	RequestID uint64
	User      common.Address
}

func (WithdrawalRequested) Name() string { return "WithdrawalRequested" }

// NFTVerificationRequested is emitted when a verification request is created.
type NFTVerificationRequested struct {
	VerificationID uint64
	User           common.Address
	NFTContract    common.Address
}

func (NFTVerificationRequested) Name() string { return "NFTVerificationRequested" }

// NFTVerificationCompleted is emitted when the oracle resolves a verification.
type NFTVerificationCompleted struct {
	VerificationID uint64
	User           common.Address
	NFTContract    common.Address
	HasNFT         bool
}

func (NFTVerificationCompleted) Name() string { return "NFTVerificationCompleted" }

// ProxyRevealed is emitted when the oracle decrypts a user's shadow address.
type ProxyRevealed struct {
	RequestID uint64
	User      common.Address
	Proxy     common.Address
}

func (ProxyRevealed) Name() string { return "ProxyRevealed" }

// AirdropRecorded is emitted when airdrop eligibility is recorded.
type AirdropRecorded struct {
	User        common.Address
	NFTContract common.Address
	Amount      *uint256.Int
}

func (AirdropRecorded) Name() string { return "AirdropRecorded" }

// AirdropClaimed is emitted when a recorded airdrop is paid out.
type AirdropClaimed struct {
	User        common.Address
	NFTContract common.Address
	Token       common.Address
	Amount      *uint256.Int
}

func (AirdropClaimed) Name() string { return "AirdropClaimed" }

// TokensPurchased is emitted after a successful anonymous purchase.
type TokensPurchased struct {
	User   common.Address
	Token  common.Address
	Amount *uint256.Int
	Cost   *uint256.Int
}

func (TokensPurchased) Name() string { return "TokensPurchased" }

// TokensWithdrawn is emitted after a treasury balance is paid to a revealed
// proxy address.
type TokensWithdrawn struct {
	User   common.Address
	Token  common.Address
	Proxy  common.Address
	Amount *uint256.Int
}

func (TokensWithdrawn) Name() string { return "TokensWithdrawn" }
