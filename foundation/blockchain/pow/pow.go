// Package pow implements the compact-bits target encoding, the
// hash-meets-target test, and the 2016-block difficulty retarget
// algorithm.
package pow

import (
	"math/big"
	"sort"
)

// CompactToTarget expands Bitcoin-style compact "bits" into a 256-bit
// target: mantissa · 256^(exponent-3), where bits is
// exponent:u8 ‖ mantissa:u24 (big-endian, packed into the low 3 bytes).
func CompactToTarget(bits uint32) *big.Int {
	exponent := int(bits >> 24)
	mantissa := int64(bits & 0x00ffffff)

	if exponent <= 3 {
		target := big.NewInt(mantissa)
		return target.Rsh(target, uint(8*(3-exponent)))
	}

	target := big.NewInt(mantissa)
	return target.Lsh(target, uint(8*(exponent-3)))
}

// TargetToCompact packs a 256-bit target back into the compact "bits"
// form. It is the inverse of CompactToTarget up to the precision compact
// bits can represent (24 bits of mantissa).
func TargetToCompact(target *big.Int) uint32 {
	if target.Sign() == 0 {
		return 0
	}

	raw := target.Bytes()
	exponent := len(raw)

	var mantissa uint32
	switch {
	case exponent <= 3:
		// Left-pad into the low bytes of a 3 byte mantissa.
		var buf [3]byte
		copy(buf[3-exponent:], raw)
		mantissa = uint32(buf[0])<<16 | uint32(buf[1])<<8 | uint32(buf[2])
	default:
		mantissa = uint32(raw[0])<<16 | uint32(raw[1])<<8 | uint32(raw[2])
	}

	// The mantissa's top bit is reserved as a sign flag in the classic
	// compact encoding; if set, shift down one byte and bump the exponent
	// to keep the value unsigned and representable.
	if mantissa&0x00800000 != 0 {
		mantissa >>= 8
		exponent++
	}

	return uint32(exponent)<<24 | mantissa
}

// HashMeetsTarget reports whether a PoW hash, interpreted as a big-endian
// big integer after byte-reversal (PoW hashes are conventionally produced
// and compared little-endian), is at or below the target bits encodes.
func HashMeetsTarget(hash [32]byte, bits uint32) bool {
	target := CompactToTarget(bits)

	reversed := make([]byte, 32)
	for i, b := range hash {
		reversed[31-i] = b
	}

	hashInt := new(big.Int).SetBytes(reversed)
	return hashInt.Cmp(target) <= 0
}

// Params bundles the retarget algorithm's network-specific constants, fixed
// at genesis: the ceiling ("pow limit") no target may exceed, and the
// target spacing the retarget tries to hold block time at.
type Params struct {
	PowLimit        *big.Int
	RetargetInterval uint32
	TargetBlockTime  uint32 // seconds
}

// clampRatio bounds Δt/T between 1/4 and 4, the retarget clamp applied
// before the new target is computed.
func clampRatio(actualTimespan, targetTimespan int64) int64 {
	min := targetTimespan / 4
	max := targetTimespan * 4

	switch {
	case actualTimespan < min:
		return min
	case actualTimespan > max:
		return max
	default:
		return actualTimespan
	}
}

// Retarget computes the new compact bits for the block following a
// retarget boundary, given the previous target and the timestamps of the
// first and last headers of the just-completed interval.
func Retarget(p Params, oldBits uint32, firstTimestamp, lastTimestamp uint32) uint32 {
	targetTimespan := int64(p.RetargetInterval) * int64(p.TargetBlockTime)
	actualTimespan := int64(lastTimestamp) - int64(firstTimestamp)
	actualTimespan = clampRatio(actualTimespan, targetTimespan)

	oldTarget := CompactToTarget(oldBits)

	newTarget := new(big.Int).Mul(oldTarget, big.NewInt(actualTimespan))
	newTarget.Div(newTarget, big.NewInt(targetTimespan))

	if newTarget.Cmp(p.PowLimit) > 0 {
		newTarget = new(big.Int).Set(p.PowLimit)
	}

	return TargetToCompact(newTarget)
}

// Difficulty returns max_target / current_target, the conventional
// human-facing difficulty number.
func Difficulty(maxTarget *big.Int, bits uint32) *big.Float {
	target := CompactToTarget(bits)
	if target.Sign() == 0 {
		return big.NewFloat(0)
	}

	ratio := new(big.Float).Quo(new(big.Float).SetInt(maxTarget), new(big.Float).SetInt(target))
	return ratio
}

// Work returns a header's contribution to cumulative chain work:
// 2^256 / (target+1), the quantity chain-manager reorg decisions compare.
func Work(bits uint32) *big.Int {
	target := CompactToTarget(bits)

	denom := new(big.Int).Add(target, big.NewInt(1))

	numerator := new(big.Int).Lsh(big.NewInt(1), 256)
	return new(big.Int).Div(numerator, denom)
}

// MedianTimePast returns the median timestamp of the given headers'
// timestamps (conventionally the most recent 11), the floor a new
// header's timestamp must strictly exceed.
func MedianTimePast(timestamps []uint32) uint32 {
	if len(timestamps) == 0 {
		return 0
	}

	sorted := append([]uint32(nil), timestamps...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	return sorted[len(sorted)/2]
}

// MaxFutureDrift is the loose clock-skew bound allowed on a header's
// timestamp: it must not exceed now+MaxFutureDrift.
const MaxFutureDrift = 2 * 60 * 60
