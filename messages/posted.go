// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package messages

import (
	"context"

	"github.com/gagliardetto/solana-go"

	"github.com/luxfi/vaa"
	"github.com/luxfi/vaa/bridge"
	"github.com/luxfi/vaa/connection"
)

// Posted is a message recovered from a committed transaction.
type Posted struct {
	Emitter          solana.PublicKey
	EmitterChain     uint16
	Sequence         uint64
	Payload          []byte
	Nonce            uint32
	ConsistencyLevel uint8
	// Timestamp is the submission time the shim reported.
	Timestamp uint32
}

// Body returns the attestation body guardians would sign for p.
func (p *Posted) Body() vaa.Body {
	return vaa.Body{
		Timestamp:        p.Timestamp,
		Nonce:            p.Nonce,
		EmitterChain:     p.EmitterChain,
		EmitterAddress:   vaa.AddressFromPublicKey(p.Emitter),
		Sequence:         p.Sequence,
		ConsistencyLevel: p.ConsistencyLevel,
		Payload:          p.Payload,
	}
}

// Extract returns every message shim posted in the transaction of receipt
// on behalf of another program. The nth post_message invocation is paired
// with the nth MessageEvent. Unpaired invocations are dropped, which
// includes events of post_message instructions issued by the transaction
// itself.
func Extract(shim solana.PublicKey, receipt *connection.Receipt) []*Posted {
	var (
		posts  []*PostMessage
		events []*MessageEvent
	)
	for _, ix := range receipt.InnerInstructions {
		if ix.ProgramID != shim {
			continue
		}
		if post, err := ParsePostMessage(ix.Data); err == nil {
			posts = append(posts, post)
			continue
		}
		if event, err := ParseMessageEvent(ix.Data); err == nil {
			events = append(events, event)
		}
	}

	n := min(len(posts), len(events))
	posted := make([]*Posted, 0, n)
	for i := range n {
		posted = append(posted, &Posted{
			Emitter:          events[i].Emitter,
			EmitterChain:     vaa.ChainIDSolana,
			Sequence:         events[i].Sequence,
			Payload:          posts[i].Payload,
			Nonce:            posts[i].Nonce,
			ConsistencyLevel: posts[i].Finality,
			Timestamp:        events[i].SubmissionTime,
		})
	}
	return posted
}

// ReadEmitterSequence returns the sequence the next message of emitter will
// get. ok is false until emitter has posted.
func ReadEmitterSequence(
	ctx context.Context,
	conn connection.Connection,
	coreBridge solana.PublicKey,
	emitter solana.PublicKey,
) (uint64, bool, error) {
	address, _, err := bridge.SequenceAddress(coreBridge, emitter)
	if err != nil {
		return 0, false, err
	}
	account, err := conn.GetAccount(ctx, address)
	if err != nil || account == nil {
		return 0, false, err
	}
	sequence, err := bridge.ParseSequence(account.Data)
	if err != nil {
		return 0, false, err
	}
	return sequence, true, nil
}
