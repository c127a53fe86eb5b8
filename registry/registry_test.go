// Copyright (C) 2025, Veilex Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package registry

import (
	"testing"

	"github.com/luxfi/crypto/bls"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/stretchr/testify/require"

	"github.com/veilex/veil"
	"github.com/veilex/veil/fhe"
	"github.com/veilex/veil/oracle"
)

var (
	registryContract = common.HexToAddress("0x00000000000000000000000000000000000000c0")
	user1            = common.HexToAddress("0x0000000000000000000000000000000000000a11")
	user2            = common.HexToAddress("0x0000000000000000000000000000000000000a22")
	proxy1           = common.HexToAddress("0x1234567890123456789012345678901234567890")
)

type harness struct {
	registry    *Registry
	scheme      *fhe.LocalScheme
	coordinator *oracle.Coordinator
	relayer     *oracle.Relayer
	events      []veil.Event
}

func newHarness(t *testing.T) *harness {
	scheme, err := fhe.NewLocalScheme()
	require.NoError(t, err)

	coordinator := oracle.NewCoordinator(log.NewNoOpLogger())
	sk, err := bls.NewSecretKey()
	require.NoError(t, err)
	relayer := oracle.NewRelayer(log.NewNoOpLogger(), ids.GenerateTestNodeID(), sk, scheme, coordinator)
	coordinator.AuthorizeRelayer(relayer.NodeID(), relayer.PublicKey())

	h := &harness{
		scheme:      scheme,
		coordinator: coordinator,
		relayer:     relayer,
	}
	h.registry = New(log.NewNoOpLogger(), registryContract, scheme, coordinator, func(e veil.Event) {
		h.events = append(h.events, e)
	})
	return h
}

func (h *harness) register(t *testing.T, user, proxy common.Address) {
	in, err := h.scheme.EncryptAddress(proxy, registryContract, user)
	require.NoError(t, err)
	require.NoError(t, h.registry.Register(user, in))
}

// drive services one pending decryption request synchronously.
func (h *harness) drive(t *testing.T, id uint64) {
	require.NoError(t, h.relayer.Process(h.coordinator.GetRequest(id)))
}

func TestRegisterOnce(t *testing.T) {
	h := newHarness(t)
	h.register(t, user1, proxy1)

	reg := h.registry.Get(user1)
	require.True(t, reg.IsRegistered)
	require.False(t, reg.EncryptedAddress.IsZero())
	require.NotZero(t, reg.RegistrationTime)

	// Re-registration is permanently blocked, even with a fresh valid input.
	in, err := h.scheme.EncryptAddress(proxy1, registryContract, user1)
	require.NoError(t, err)
	err = h.registry.Register(user1, in)
	require.ErrorIs(t, err, veil.ErrAlreadyRegistered)

	// The stored handle is unchanged.
	require.Equal(t, reg.EncryptedAddress, h.registry.Handle(user1))
}

func TestRegisterInvalidProof(t *testing.T) {
	h := newHarness(t)

	// Input produced for user1 cannot be submitted by user2.
	in, err := h.scheme.EncryptAddress(proxy1, registryContract, user1)
	require.NoError(t, err)
	err = h.registry.Register(user2, in)
	require.ErrorIs(t, err, veil.ErrInvalidProof)
	require.False(t, h.registry.IsRegistered(user2))
}

func TestGetUnknownUser(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, UserRegistration{}, h.registry.Get(user1))

	isRegistered, registrationTime := h.registry.GetLegacy(user1)
	require.False(t, isRegistered)
	require.Zero(t, registrationTime)
}

func TestLegacyShapeMatchesStruct(t *testing.T) {
	h := newHarness(t)
	h.register(t, user1, proxy1)

	reg := h.registry.Get(user1)
	isRegistered, registrationTime := h.registry.GetLegacy(user1)
	require.Equal(t, reg.IsRegistered, isRegistered)
	require.Equal(t, reg.RegistrationTime, registrationTime)
}

func TestRequestDecryptionRequiresRegistration(t *testing.T) {
	h := newHarness(t)
	_, err := h.registry.RequestDecryption(user1)
	require.ErrorIs(t, err, veil.ErrUserNotRegistered)
}

func TestRevealFlow(t *testing.T) {
	h := newHarness(t)
	h.register(t, user1, proxy1)
	require.Equal(t, common.Address{}, h.registry.Revealed(user1))

	id, err := h.registry.RequestDecryption(user1)
	require.NoError(t, err)
	require.NotZero(t, id)

	// Pending until the callback lands.
	require.False(t, h.coordinator.GetRequest(id).Complete)
	require.Equal(t, common.Address{}, h.registry.Revealed(user1))

	h.drive(t, id)
	require.Equal(t, proxy1, h.registry.Revealed(user1))
	require.True(t, h.coordinator.GetRequest(id).Complete)
}

func TestEventsEmitted(t *testing.T) {
	h := newHarness(t)
	h.register(t, user1, proxy1)

	id, err := h.registry.RequestDecryption(user1)
	require.NoError(t, err)
	h.drive(t, id)

	var names []string
	for _, e := range h.events {
		names = append(names, e.Name())
	}
	require.Equal(t, []string{"AddressRegistered", "WithdrawalRequested", "ProxyRevealed"}, names)
}
