// Copyright (C) 2025, Veilex Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package oracle

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/luxfi/crypto/bls"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/veilex/veil"
	"github.com/veilex/veil/fhe"
)

// deliveryTimeout bounds the retry window for a single callback delivery.
// A request that cannot be delivered within it stays pending, per the
// protocol's no-automatic-retry rule after this window.
const deliveryTimeout = 30 * time.Second

// Relayer services decryption requests: it decrypts handles with the KMS
// capability, signs the plaintext report with its node key, and delivers the
// callback to the coordinator.
type Relayer struct {
	logger      log.Logger
	nodeID      ids.NodeID
	sk          *bls.SecretKey
	decrypter   fhe.Decrypter
	coordinator *Coordinator
}

// NewRelayer creates a relayer. The caller is responsible for authorizing
// the relayer's node ID and public key on the coordinator.
func NewRelayer(
	logger log.Logger,
	nodeID ids.NodeID,
	sk *bls.SecretKey,
	decrypter fhe.Decrypter,
	coordinator *Coordinator,
) *Relayer {
	return &Relayer{
		logger:      logger,
		nodeID:      nodeID,
		sk:          sk,
		decrypter:   decrypter,
		coordinator: coordinator,
	}
}

// NodeID returns the relayer's node identity.
func (r *Relayer) NodeID() ids.NodeID {
	return r.nodeID
}

// PublicKey returns the key callbacks are verified against.
func (r *Relayer) PublicKey() *bls.PublicKey {
	return r.sk.PublicKey()
}

// Run consumes the coordinator's request feed until the context is canceled.
func (r *Relayer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-r.coordinator.Pending():
			if err := r.Process(req); err != nil {
				r.logger.Warn("callback delivery abandoned, request stays pending",
					log.Uint64("requestID", req.ID),
					log.Err(err),
				)
			}
		}
	}
}

// Process decrypts one request and delivers its callback, retrying delivery
// with exponential backoff until the timeout elapses.
func (r *Relayer) Process(req Request) error {
	plaintext, err := r.decrypter.DecryptAddress(req.Handle)
	if err != nil {
		return fmt.Errorf("failed to decrypt handle: %w", err)
	}

	sig, err := r.sk.Sign(CallbackDigest(req.ID, plaintext))
	if err != nil {
		return fmt.Errorf("failed to sign callback: %w", err)
	}
	sigBytes := bls.SignatureToBytes(sig)

	operation := func() error {
		err := r.coordinator.Deliver(r.nodeID, sigBytes, Callback{
			RequestID: req.ID,
			Plaintext: plaintext,
		})
		// Protocol rejections will not heal with time.
		if _, ok := err.(*veil.Error); ok {
			return backoff.Permanent(err)
		}
		return err
	}
	expBackOff := backoff.NewExponentialBackOff(
		backoff.WithMaxElapsedTime(deliveryTimeout),
	)
	notify := func(err error, _ time.Duration) {
		r.logger.Warn("callback delivery failed, retrying...",
			log.Uint64("requestID", req.ID),
			log.Err(err),
		)
	}
	return backoff.RetryNotify(operation, expBackOff, notify)
}
