// Copyright (C) 2025, Veilex Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package fhe

import (
	"testing"

	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"

	"github.com/veilex/veil"
)

var (
	testContract = common.HexToAddress("0x00000000000000000000000000000000000000c0")
	testCaller   = common.HexToAddress("0x0000000000000000000000000000000000000a11")
	testProxy    = common.HexToAddress("0x1234567890123456789012345678901234567890")
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	scheme, err := NewLocalScheme()
	require.NoError(t, err)

	in, err := scheme.EncryptAddress(testProxy, testContract, testCaller)
	require.NoError(t, err)
	require.False(t, in.Handle.IsZero())
	require.NotEmpty(t, in.Proof)

	plaintext, err := scheme.DecryptAddress(in.Handle)
	require.NoError(t, err)
	require.Equal(t, testProxy, plaintext)
}

func TestFreshHandlePerEncryption(t *testing.T) {
	scheme, err := NewLocalScheme()
	require.NoError(t, err)

	first, err := scheme.EncryptAddress(testProxy, testContract, testCaller)
	require.NoError(t, err)
	second, err := scheme.EncryptAddress(testProxy, testContract, testCaller)
	require.NoError(t, err)

	// Identical plaintexts must not produce linkable handles.
	require.NotEqual(t, first.Handle, second.Handle)
}

func TestVerifyInput(t *testing.T) {
	scheme, err := NewLocalScheme()
	require.NoError(t, err)

	in, err := scheme.EncryptAddress(testProxy, testContract, testCaller)
	require.NoError(t, err)

	require.NoError(t, scheme.VerifyInput(in, testCaller, testContract))

	// Wrong caller
	otherCaller := common.HexToAddress("0x0000000000000000000000000000000000000b22")
	err = scheme.VerifyInput(in, otherCaller, testContract)
	require.ErrorIs(t, err, veil.ErrInvalidProof)

	// Wrong contract
	otherContract := common.HexToAddress("0x00000000000000000000000000000000000000c1")
	err = scheme.VerifyInput(in, testCaller, otherContract)
	require.ErrorIs(t, err, veil.ErrInvalidProof)

	// Tampered proof
	tampered := &veil.EncryptedInput{Handle: in.Handle, Proof: append([]byte{}, in.Proof...)}
	tampered.Proof[0] ^= 0xff
	err = scheme.VerifyInput(tampered, testCaller, testContract)
	require.ErrorIs(t, err, veil.ErrInvalidProof)
}

func TestDecryptUnknownHandle(t *testing.T) {
	scheme, err := NewLocalScheme()
	require.NoError(t, err)

	var handle veil.Handle
	handle[0] = 0x01
	_, err = scheme.DecryptAddress(handle)
	require.ErrorIs(t, err, ErrUnknownHandle)
}

func TestEncryptedInputCodec(t *testing.T) {
	scheme := NewLocalSchemeFromKey([32]byte{1, 2, 3})

	in, err := scheme.EncryptAddress(testProxy, testContract, testCaller)
	require.NoError(t, err)

	b, err := veil.MarshalEncryptedInput(in)
	require.NoError(t, err)

	parsed, err := veil.UnmarshalEncryptedInput(b)
	require.NoError(t, err)
	require.Equal(t, in.Handle, parsed.Handle)
	require.Equal(t, in.Proof, parsed.Proof)

	// Truncated input
	_, err = veil.UnmarshalEncryptedInput(b[:10])
	require.Error(t, err)
}
