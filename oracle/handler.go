// Copyright (C) 2025, Veilex Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package oracle

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/ids"
	"github.com/luxfi/p2p"

	"github.com/veilex/veil"
)

// CallbackHandlerID is the protocol ID for oracle callback handling.
const CallbackHandlerID = 0x7645494c

// CallbackMessage is the wire form of a signed oracle callback.
type CallbackMessage struct {
	RequestID uint64
	Plaintext common.Address
	Signature []byte
}

// MarshalCallbackMessage marshals a callback message to bytes.
func MarshalCallbackMessage(msg *CallbackMessage) ([]byte, error) {
	// Format: requestID(8) + plaintext(20) + sigLen(4) + sig
	sigLen := len(msg.Signature)
	buf := make([]byte, 8+common.AddressLength+4+sigLen)
	binary.BigEndian.PutUint64(buf[0:8], msg.RequestID)
	copy(buf[8:8+common.AddressLength], msg.Plaintext.Bytes())
	binary.BigEndian.PutUint32(buf[28:32], uint32(sigLen))
	copy(buf[32:], msg.Signature)
	return buf, nil
}

// PrefixedCallbackMessage marshals a callback message and prepends the
// callback protocol prefix so the bytes route to the registered handler when
// sent as a p2p app request.
func PrefixedCallbackMessage(msg *CallbackMessage) ([]byte, error) {
	b, err := MarshalCallbackMessage(msg)
	if err != nil {
		return nil, err
	}
	return p2p.PrefixMessage(p2p.ProtocolPrefix(CallbackHandlerID), b), nil
}

// UnmarshalCallbackMessage unmarshals bytes to a callback message.
func UnmarshalCallbackMessage(data []byte) (*CallbackMessage, error) {
	if len(data) < 32 {
		return nil, fmt.Errorf("data too short: %d", len(data))
	}
	sigLen := uint64(binary.BigEndian.Uint32(data[28:32]))
	if uint64(len(data)) < 32+sigLen {
		return nil, fmt.Errorf("data too short for signature: %d", len(data))
	}
	return &CallbackMessage{
		RequestID: binary.BigEndian.Uint64(data[0:8]),
		Plaintext: common.BytesToAddress(data[8 : 8+common.AddressLength]),
		Signature: data[32 : 32+sigLen],
	}, nil
}

// CallbackHandler handles incoming oracle callback messages.
type CallbackHandler interface {
	// Request handles an incoming callback request
	Request(ctx context.Context, nodeID ids.NodeID, deadline time.Time, request []byte) ([]byte, error)
}

// CoordinatorHandler delivers callbacks to a Coordinator.
type CoordinatorHandler struct {
	coordinator *Coordinator
}

// NewCoordinatorHandler creates a handler backed by the given coordinator.
func NewCoordinatorHandler(c *Coordinator) *CoordinatorHandler {
	return &CoordinatorHandler{coordinator: c}
}

// Request handles an incoming callback request. The sending node's identity
// is part of the authorization decision.
func (h *CoordinatorHandler) Request(_ context.Context, nodeID ids.NodeID, _ time.Time, request []byte) ([]byte, error) {
	msg, err := UnmarshalCallbackMessage(request)
	if err != nil {
		return nil, err
	}
	if err := h.coordinator.Deliver(nodeID, msg.Signature, Callback{
		RequestID: msg.RequestID,
		Plaintext: msg.Plaintext,
	}); err != nil {
		return nil, err
	}
	return []byte{1}, nil
}

// Ensure CallbackHandlerAdapter implements p2p.Handler
var _ p2p.Handler = (*CallbackHandlerAdapter)(nil)

// CallbackHandlerAdapter adapts a CallbackHandler to the p2p.Handler
// interface so oracle callbacks can be registered with the p2p router.
type CallbackHandlerAdapter struct {
	handler CallbackHandler
}

// NewCallbackHandlerAdapter creates a new adapter that wraps a
// CallbackHandler and implements the p2p.Handler interface.
func NewCallbackHandlerAdapter(handler CallbackHandler) *CallbackHandlerAdapter {
	return &CallbackHandlerAdapter{handler: handler}
}

// Gossip implements p2p.Handler. Callback handlers do not use gossip.
func (a *CallbackHandlerAdapter) Gossip(ctx context.Context, nodeID ids.NodeID, gossipBytes []byte) {
	// Callback handlers do not use Gossip
}

// Request implements p2p.Handler by delegating to the wrapped CallbackHandler.
func (a *CallbackHandlerAdapter) Request(ctx context.Context, nodeID ids.NodeID, deadline time.Time, requestBytes []byte) ([]byte, *p2p.Error) {
	response, err := a.handler.Request(ctx, nodeID, deadline, requestBytes)
	if err != nil {
		code := int32(500)
		if ve, ok := err.(*veil.Error); ok {
			code = ve.Code
		}
		return nil, &p2p.Error{
			Code:    code,
			Message: err.Error(),
		}
	}
	return response, nil
}
