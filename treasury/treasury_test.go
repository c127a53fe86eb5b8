// Copyright (C) 2025, Veilex Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package treasury

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/luxfi/crypto/bls"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/stretchr/testify/require"

	"github.com/veilex/veil"
	"github.com/veilex/veil/fhe"
	"github.com/veilex/veil/oracle"
	"github.com/veilex/veil/registry"
	"github.com/veilex/veil/token"
)

var (
	owner            = common.HexToAddress("0x000000000000000000000000000000000000dead")
	registryContract = common.HexToAddress("0x00000000000000000000000000000000000000c0")
	treasuryContract = common.HexToAddress("0x00000000000000000000000000000000000000c2")
	usdtAddr         = common.HexToAddress("0x00000000000000000000000000000000000000e3")
	tradeToken       = common.HexToAddress("0x00000000000000000000000000000000000000e4")
	user1            = common.HexToAddress("0x0000000000000000000000000000000000000a11")
	proxy1           = common.HexToAddress("0x1234567890123456789012345678901234567890")

	// 10 USDT at 6 decimals.
	priceTenUSDT = uint256.NewInt(10_000_000)
)

type harness struct {
	treasury    *Treasury
	registry    *registry.Registry
	scheme      *fhe.LocalScheme
	coordinator *oracle.Coordinator
	relayer     *oracle.Relayer
	usdt        *token.MemoryERC20
	trade       *token.MemoryERC20
	tokens      *token.Registry
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
		usdt:        token.NewMemoryUSDT(),
		trade:       token.NewMemoryERC20("Veil Trade", "VTRD", 18),
	}
	tokens := token.NewRegistry()
	tokens.RegisterERC20(usdtAddr, h.usdt)
	tokens.RegisterERC20(tradeToken, h.trade)
	h.tokens = tokens

	emit := func(e veil.Event) { h.events = append(h.events, e) }
	h.registry = registry.New(log.NewNoOpLogger(), registryContract, scheme, coordinator, emit)
	h.treasury = New(log.NewNoOpLogger(), owner, treasuryContract, usdtAddr, h.registry, tokens, emit)
	require.NoError(t, h.treasury.SetPrice(owner, tradeToken, priceTenUSDT))
	return h
}

func (h *harness) register(t *testing.T, user, proxy common.Address) {
	in, err := h.scheme.EncryptAddress(proxy, registryContract, user)
	require.NoError(t, err)
	require.NoError(t, h.registry.Register(user, in))
}

// reveal runs the full decryption flow for the user's proxy address.
func (h *harness) reveal(t *testing.T, user common.Address) {
	_, err := h.registry.RequestDecryption(user)
	require.NoError(t, err)
	req := <-h.coordinator.Pending()
	require.NoError(t, h.relayer.Process(req))
}

func TestSetPriceOwnerOnly(t *testing.T) {
	h := newHarness(t)
	err := h.treasury.SetPrice(user1, tradeToken, priceTenUSDT)
	require.ErrorIs(t, err, veil.ErrOnlyOwner)
	require.Equal(t, priceTenUSDT, h.treasury.GetTokenPrice(tradeToken))

	// Zero price unconfigures the token.
	require.NoError(t, h.treasury.SetPrice(owner, tradeToken, uint256.NewInt(0)))
	require.True(t, h.treasury.GetTokenPrice(tradeToken).IsZero())
}

func TestPurchaseRequiresRegistration(t *testing.T) {
	h := newHarness(t)
	err := h.treasury.AnonymousPurchase(user1, tradeToken, uint256.NewInt(5))
	require.ErrorIs(t, err, veil.ErrUserNotRegistered)
}

func TestPurchaseUnknownToken(t *testing.T) {
	h := newHarness(t)
	h.register(t, user1, proxy1)

	other := common.HexToAddress("0x00000000000000000000000000000000000000ff")
	err := h.treasury.AnonymousPurchase(user1, other, uint256.NewInt(5))
	require.ErrorIs(t, err, veil.ErrNoSuchToken)
	require.EqualError(t, err, "no this token")
}

func TestPurchaseZeroAmount(t *testing.T) {
	h := newHarness(t)
	h.register(t, user1, proxy1)
	err := h.treasury.AnonymousPurchase(user1, tradeToken, uint256.NewInt(0))
	require.ErrorIs(t, err, veil.ErrZeroAmount)
}

func TestPurchaseDebitsCost(t *testing.T) {
	h := newHarness(t)
	h.register(t, user1, proxy1)
	h.usdt.MintStandard(user1)
	funded := h.usdt.BalanceOf(user1)

	// 5 tokens at 10 USDT each costs 50 USDT.
	cost := uint256.NewInt(50_000_000)
	h.usdt.Approve(user1, treasuryContract, cost)
	require.NoError(t, h.treasury.AnonymousPurchase(user1, tradeToken, uint256.NewInt(5)))

	require.Equal(t, uint256.NewInt(5), h.treasury.GetUserBalance(user1, tradeToken))
	require.Equal(t, cost, h.usdt.BalanceOf(treasuryContract))
	require.Equal(t, new(uint256.Int).Sub(funded, cost), h.usdt.BalanceOf(user1))
	require.True(t, h.usdt.Allowance(user1, treasuryContract).IsZero())
}

func TestPurchaseAccumulates(t *testing.T) {
	h := newHarness(t)
	h.register(t, user1, proxy1)
	h.usdt.MintStandard(user1)
	h.usdt.Approve(user1, treasuryContract, uint256.NewInt(100_000_000))

	require.NoError(t, h.treasury.AnonymousPurchase(user1, tradeToken, uint256.NewInt(3)))
	require.NoError(t, h.treasury.AnonymousPurchase(user1, tradeToken, uint256.NewInt(4)))
	require.Equal(t, uint256.NewInt(7), h.treasury.GetUserBalance(user1, tradeToken))
}

func TestFailedPurchaseLeavesStateUntouched(t *testing.T) {
	h := newHarness(t)
	h.register(t, user1, proxy1)
	h.usdt.MintStandard(user1)
	funded := h.usdt.BalanceOf(user1)

	// Insufficient allowance.
	h.usdt.Approve(user1, treasuryContract, uint256.NewInt(10_000_000))
	err := h.treasury.AnonymousPurchase(user1, tradeToken, uint256.NewInt(5))
	require.ErrorIs(t, err, token.ErrInsufficientAllowance)
	require.True(t, h.treasury.GetUserBalance(user1, tradeToken).IsZero())
	require.Equal(t, funded, h.usdt.BalanceOf(user1))
	require.Equal(t, uint256.NewInt(10_000_000), h.usdt.Allowance(user1, treasuryContract))

	// Sufficient allowance but insufficient balance.
	huge := uint256.NewInt(1_000_000_000_000)
	h.usdt.Approve(user1, treasuryContract, huge)
	err = h.treasury.AnonymousPurchase(user1, tradeToken, uint256.NewInt(100_000))
	require.ErrorIs(t, err, token.ErrInsufficientBalance)
	require.True(t, h.treasury.GetUserBalance(user1, tradeToken).IsZero())
	require.Equal(t, funded, h.usdt.BalanceOf(user1))
	require.Equal(t, huge, h.usdt.Allowance(user1, treasuryContract))
}

func TestPurchaseCostOverflow(t *testing.T) {
	h := newHarness(t)
	h.register(t, user1, proxy1)

	max := new(uint256.Int).SetAllOne()
	require.NoError(t, h.treasury.SetPrice(owner, tradeToken, max))
	err := h.treasury.AnonymousPurchase(user1, tradeToken, uint256.NewInt(2))
	require.ErrorIs(t, err, ErrCostOverflow)
}

func TestWithdrawRequiresReveal(t *testing.T) {
	h := newHarness(t)
	h.register(t, user1, proxy1)
	err := h.treasury.DecryptWithdrawToken(user1, tradeToken)
	require.ErrorIs(t, err, veil.ErrProxyNotRevealed)
}

func TestWithdrawToProxy(t *testing.T) {
	h := newHarness(t)
	h.register(t, user1, proxy1)
	h.usdt.MintStandard(user1)
	h.usdt.Approve(user1, treasuryContract, uint256.NewInt(50_000_000))
	require.NoError(t, h.treasury.AnonymousPurchase(user1, tradeToken, uint256.NewInt(5)))

	// The treasury holds the trade tokens it sells.
	h.trade.Mint(treasuryContract, uint256.NewInt(1_000))

	h.reveal(t, user1)
	require.NoError(t, h.treasury.DecryptWithdrawToken(user1, tradeToken))

	require.Equal(t, uint256.NewInt(5), h.trade.BalanceOf(proxy1))
	require.True(t, h.treasury.GetUserBalance(user1, tradeToken).IsZero())

	// A second withdrawal has nothing to move.
	require.NoError(t, h.treasury.DecryptWithdrawToken(user1, tradeToken))
	require.Equal(t, uint256.NewInt(5), h.trade.BalanceOf(proxy1))
}

// gatedERC20 blocks inside Transfer until released, to hold a withdrawal
// open while another runs.
type gatedERC20 struct {
	*token.MemoryERC20
	entered chan struct{}
	release chan struct{}
}

func (g *gatedERC20) Transfer(from, to common.Address, amount *uint256.Int) error {
	g.entered <- struct{}{}
	<-g.release
	return g.MemoryERC20.Transfer(from, to, amount)
}

func TestWithdrawPaysOutOnce(t *testing.T) {
	h := newHarness(t)
	h.register(t, user1, proxy1)
	h.usdt.MintStandard(user1)
	h.usdt.Approve(user1, treasuryContract, uint256.NewInt(50_000_000))
	require.NoError(t, h.treasury.AnonymousPurchase(user1, tradeToken, uint256.NewInt(5)))

	// Fund enough for two payouts so a double payout would not be masked by
	// an insufficient balance.
	h.trade.Mint(treasuryContract, uint256.NewInt(1_000))
	h.reveal(t, user1)

	gated := &gatedERC20{
		MemoryERC20: h.trade,
		entered:     make(chan struct{}),
		release:     make(chan struct{}),
	}
	h.tokens.RegisterERC20(tradeToken, gated)

	done := make(chan error)
	go func() {
		done <- h.treasury.DecryptWithdrawToken(user1, tradeToken)
	}()
	<-gated.entered

	// A second withdrawal while the first payout is in flight must find the
	// balance already debited and move nothing.
	h.tokens.RegisterERC20(tradeToken, h.trade)
	require.NoError(t, h.treasury.DecryptWithdrawToken(user1, tradeToken))
	require.True(t, h.trade.BalanceOf(proxy1).IsZero())

	close(gated.release)
	require.NoError(t, <-done)
	require.Equal(t, uint256.NewInt(5), h.trade.BalanceOf(proxy1))
	require.True(t, h.treasury.GetUserBalance(user1, tradeToken).IsZero())
}

func TestFailedWithdrawRestoresBalance(t *testing.T) {
	h := newHarness(t)
	h.register(t, user1, proxy1)
	h.usdt.MintStandard(user1)
	h.usdt.Approve(user1, treasuryContract, uint256.NewInt(50_000_000))
	require.NoError(t, h.treasury.AnonymousPurchase(user1, tradeToken, uint256.NewInt(5)))
	h.reveal(t, user1)

	// The treasury holds no trade tokens, so the payout fails.
	err := h.treasury.DecryptWithdrawToken(user1, tradeToken)
	require.ErrorIs(t, err, token.ErrInsufficientBalance)
	require.Equal(t, uint256.NewInt(5), h.treasury.GetUserBalance(user1, tradeToken))

	h.trade.Mint(treasuryContract, uint256.NewInt(5))
	require.NoError(t, h.treasury.DecryptWithdrawToken(user1, tradeToken))
	require.Equal(t, uint256.NewInt(5), h.trade.BalanceOf(proxy1))
}

func TestEmergencyWithdraw(t *testing.T) {
	h := newHarness(t)
	h.trade.Mint(treasuryContract, uint256.NewInt(100))

	err := h.treasury.EmergencyWithdraw(user1, tradeToken, user1, uint256.NewInt(100))
	require.ErrorIs(t, err, veil.ErrOnlyOwner)

	rescue := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	require.NoError(t, h.treasury.EmergencyWithdraw(owner, tradeToken, rescue, uint256.NewInt(100)))
	require.Equal(t, uint256.NewInt(100), h.trade.BalanceOf(rescue))
}

func TestSetUSDTToken(t *testing.T) {
	h := newHarness(t)
	other := common.HexToAddress("0x00000000000000000000000000000000000000ee")
	require.ErrorIs(t, h.treasury.SetUSDTToken(user1, other), veil.ErrOnlyOwner)
	require.NoError(t, h.treasury.SetUSDTToken(owner, other))

	// Purchases now pull from the new payment token, which is unregistered.
	h.register(t, user1, proxy1)
	err := h.treasury.AnonymousPurchase(user1, tradeToken, uint256.NewInt(1))
	require.ErrorIs(t, err, token.ErrUnknownToken)
}

func TestPurchaseAndWithdrawEvents(t *testing.T) {
	h := newHarness(t)
	h.register(t, user1, proxy1)
	h.usdt.MintStandard(user1)
	h.usdt.Approve(user1, treasuryContract, uint256.NewInt(50_000_000))
	h.trade.Mint(treasuryContract, uint256.NewInt(1_000))
	h.reveal(t, user1)
	h.events = nil

	require.NoError(t, h.treasury.AnonymousPurchase(user1, tradeToken, uint256.NewInt(5)))
	require.NoError(t, h.treasury.DecryptWithdrawToken(user1, tradeToken))

	require.Len(t, h.events, 2)
	purchased, ok := h.events[0].(veil.TokensPurchased)
	require.True(t, ok)
	require.Equal(t, uint256.NewInt(5), purchased.Amount)
	require.Equal(t, uint256.NewInt(50_000_000), purchased.Cost)

	withdrawn, ok := h.events[1].(veil.TokensWithdrawn)
	require.True(t, ok)
	require.Equal(t, proxy1, withdrawn.Proxy)
	require.Equal(t, uint256.NewInt(5), withdrawn.Amount)
}
