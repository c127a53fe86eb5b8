// Copyright (C) 2025, Veilex Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package oracle bridges the asynchronous decryption service and the
// synchronous protocol state. It tracks outstanding decryption requests,
// enforces that each request resolves at most once, and admits plaintext into
// the protocol only through callbacks signed by an allow-listed relayer node.
package oracle

import (
	"encoding/binary"
	"sync"
	"time"

	"github.com/luxfi/crypto/bls"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/luxfi/math/set"

	"github.com/veilex/veil"
)

// pendingBuffer bounds the relayer feed. A full buffer leaves requests
// pending until a new request is issued, matching the protocol's documented
// liveness gap.
const pendingBuffer = 1024

// Purpose tags a decryption request with the state transition its callback
// drives.
type Purpose uint8

const (
	// PurposeReveal decrypts a user's shadow address to unlock withdrawal.
	PurposeReveal Purpose = iota
	// PurposeVerification decrypts a shadow address to check NFT ownership.
	PurposeVerification
)

func (p Purpose) String() string {
	switch p {
	case PurposeReveal:
		return "reveal"
	case PurposeVerification:
		return "verification"
	default:
		return "unknown"
	}
}

// Request is an outstanding decryption request.
type Request struct {
	ID        uint64
	User      common.Address
	Purpose   Purpose
	Handle    veil.Handle
	Ref       uint64 // verification ID for PurposeVerification, zero otherwise
	Timestamp time.Time
	Complete  bool
}

// Resolver consumes the decrypted plaintext for a request. Resolvers are the
// only code paths through which plaintext reaches protocol state. A resolver
// error leaves the request pending.
type Resolver func(req Request, plaintext common.Address) error

// Coordinator tracks decryption requests and dispatches authenticated
// callbacks to the resolver registered for each purpose.
type Coordinator struct {
	log log.Logger

	mu        sync.Mutex
	nextID    uint64
	requests  map[uint64]*Request
	resolvers map[Purpose]Resolver
	relayers  map[ids.NodeID]*bls.PublicKey
	nodeSet   set.Set[ids.NodeID]

	pending chan Request
}

// NewCoordinator creates a coordinator with no authorized relayers.
func NewCoordinator(logger log.Logger) *Coordinator {
	return &Coordinator{
		log:       logger,
		requests:  make(map[uint64]*Request),
		resolvers: make(map[Purpose]Resolver),
		relayers:  make(map[ids.NodeID]*bls.PublicKey),
		nodeSet:   set.NewSet[ids.NodeID](0),
		pending:   make(chan Request, pendingBuffer),
	}
}

// AuthorizeRelayer adds a relayer node to the callback allow-list.
func (c *Coordinator) AuthorizeRelayer(nodeID ids.NodeID, pk *bls.PublicKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.relayers[nodeID] = pk
	c.nodeSet.Add(nodeID)
}

// RegisterResolver binds the resolver invoked for a purpose. The last
// registration wins.
func (c *Coordinator) RegisterResolver(purpose Purpose, r Resolver) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resolvers[purpose] = r
}

// Submit creates a decryption request and returns its ID. The request is
// queued for the relayer; if the queue is full it stays pending until a
// relayer polls it explicitly.
func (c *Coordinator) Submit(user common.Address, purpose Purpose, handle veil.Handle, ref uint64) uint64 {
	c.mu.Lock()
	c.nextID++
	req := &Request{
		ID:        c.nextID,
		User:      user,
		Purpose:   purpose,
		Handle:    handle,
		Ref:       ref,
		Timestamp: time.Now(),
	}
	c.requests[req.ID] = req
	queued := *req
	c.mu.Unlock()

	select {
	case c.pending <- queued:
	default:
		c.log.Warn("decryption request queue full, request stays pending",
			log.Uint64("requestID", queued.ID),
		)
	}

	c.log.Debug("decryption request submitted",
		log.Uint64("requestID", queued.ID),
		log.String("purpose", purpose.String()),
		log.Stringer("user", user),
	)
	return queued.ID
}

// Pending is the feed of submitted requests consumed by the relayer.
func (c *Coordinator) Pending() <-chan Request {
	return c.pending
}

// GetRequest returns a copy of a request. The zero Request is returned for
// unknown IDs, matching the read surface of the contract.
func (c *Coordinator) GetRequest(id uint64) Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	if req, ok := c.requests[id]; ok {
		return *req
	}
	return Request{}
}

// Callback is the plaintext report delivered by a relayer.
type Callback struct {
	RequestID uint64
	Plaintext common.Address
}

// Deliver applies an oracle callback. The caller must be an allow-listed
// relayer and sign the callback digest with its registered key; the request
// must exist and not be complete. On success the registered resolver runs
// under the coordinator lock, guaranteeing exactly-once resolution.
func (c *Coordinator) Deliver(nodeID ids.NodeID, signature []byte, cb Callback) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.nodeSet.Contains(nodeID) {
		return veil.ErrUnauthorizedNode
	}
	pk := c.relayers[nodeID]

	sig, err := bls.SignatureFromBytes(signature)
	if err != nil {
		return veil.ErrBadCallbackSig
	}
	digest := CallbackDigest(cb.RequestID, cb.Plaintext)
	if !bls.Verify(pk, sig, digest) {
		return veil.ErrBadCallbackSig
	}

	req, ok := c.requests[cb.RequestID]
	if !ok {
		return veil.ErrUnknownRequest
	}
	if req.Complete {
		return veil.ErrRequestComplete
	}

	resolver, ok := c.resolvers[req.Purpose]
	if !ok {
		return veil.ErrUnknownRequest
	}
	if err := resolver(*req, cb.Plaintext); err != nil {
		c.log.Debug("callback resolution failed, request stays pending",
			log.Uint64("requestID", cb.RequestID),
			log.Err(err),
		)
		return err
	}
	req.Complete = true

	c.log.Info("decryption request resolved",
		log.Uint64("requestID", cb.RequestID),
		log.String("purpose", req.Purpose.String()),
		log.Stringer("relayer", nodeID),
	)
	return nil
}

// CallbackDigest is the message a relayer signs when reporting plaintext.
func CallbackDigest(requestID uint64, plaintext common.Address) []byte {
	buf := make([]byte, 0, len(callbackDomain)+8+common.AddressLength)
	buf = append(buf, callbackDomain...)
	buf = binary.BigEndian.AppendUint64(buf, requestID)
	buf = append(buf, plaintext.Bytes()...)
	return veil.ComputeHash256(buf)
}

var callbackDomain = []byte("veil.callback.v1")
