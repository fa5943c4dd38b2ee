package validation

import (
	"github.com/carbonchain/node/foundation/blockchain/chainerr"
	"github.com/carbonchain/node/foundation/blockchain/chainmodel"
	"github.com/carbonchain/node/foundation/blockchain/crypto"
	"github.com/carbonchain/node/foundation/blockchain/pow"
)

// HeaderContext carries everything Phase A needs that is derived purely
// from prior headers — never from the UTXO index or ledger, keeping this
// phase context-free.
type HeaderContext struct {
	// ExpectedBits is the compact bits value this header must carry,
	// computed by the caller from the previous RetargetInterval headers
	// (pow.Retarget) or carried forward unchanged between retarget
	// boundaries.
	ExpectedBits uint32

	// MedianTimePast is the median of the preceding 11 headers'
	// timestamps (pow.MedianTimePast); the new header's timestamp must
	// strictly exceed it.
	MedianTimePast uint32

	// Now is the validator's current wall-clock time, the anchor for the
	// ±MaxFutureDrift skew bound.
	Now uint32

	// PoWAlgorithm is the network's genesis-pinned proof-of-work hash
	// function.
	PoWAlgorithm crypto.PoWAlgorithm
}

// ValidateHeader runs Phase A: the context-free header checks — correct
// size is guaranteed by the caller having decoded a fixed HeaderSize
// buffer already, so this checks bits range, PoW, recognised version,
// and timestamp skew.
func ValidateHeader(h chainmodel.BlockHeader, ctx HeaderContext) error {
	if h.Version != chainmodel.BlockVersion {
		return chainerr.Newf(chainerr.Malformed, chainerr.CodeUnrecognizedVersion,
			"unrecognized block version %d", h.Version)
	}

	if h.Bits != ctx.ExpectedBits {
		return chainerr.Newf(chainerr.InvalidHeader, chainerr.CodeBadBits,
			"bits %#x does not match expected %#x", h.Bits, ctx.ExpectedBits)
	}

	if h.Timestamp <= ctx.MedianTimePast {
		return chainerr.Newf(chainerr.InvalidHeader, chainerr.CodeBadTimestamp,
			"timestamp %d does not exceed median time past %d", h.Timestamp, ctx.MedianTimePast)
	}

	if uint64(h.Timestamp) > uint64(ctx.Now)+pow.MaxFutureDrift {
		return chainerr.Newf(chainerr.InvalidHeader, chainerr.CodeBadTimestamp,
			"timestamp %d is too far in the future (now %d)", h.Timestamp, ctx.Now)
	}

	powHash, err := crypto.PoWHash(ctx.PoWAlgorithm, h.Encode())
	if err != nil {
		return chainerr.Newf(chainerr.Malformed, chainerr.CodeMalformedEncoding, "pow hash: %s", err)
	}

	if !pow.HashMeetsTarget(powHash, h.Bits) {
		return chainerr.New(chainerr.InvalidHeader, chainerr.CodePoWInsufficient, "pow hash does not meet target")
	}

	return nil
}
