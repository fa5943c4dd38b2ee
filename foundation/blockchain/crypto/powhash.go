package crypto

import (
	"errors"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/scrypt"
)

// ErrUnknownPoWAlgorithm is returned when PoWHash is asked for a PoW
// algorithm this build does not recognize.
var ErrUnknownPoWAlgorithm = errors.New("crypto: unknown proof-of-work algorithm")

// PoWAlgorithm identifies the memory-hard function a network's miners run
// over a block header to produce the value compared against the target.
// It is chosen once at genesis and is immutable for the life of the chain
// — unlike HashAlgorithm, it is deliberately slow, to keep ASIC advantage
// low and bias mining toward general-purpose hardware.
type PoWAlgorithm uint8

// Supported proof-of-work hash functions.
const (
	PoWScrypt PoWAlgorithm = iota
	PoWArgon2id
)

// Scrypt cost parameters. Deliberately lighter than the classic Litecoin
// parameters (N=1024 instead of 1024*16) since these run once per
// candidate nonce rather than once per login.
const (
	scryptN      = 1024
	scryptR      = 1
	scryptP      = 1
	scryptKeyLen = 32
)

// Argon2id cost parameters.
const (
	argon2Time    = 3
	argon2MemoKiB = 64 * 1024
	argon2Threads = 4
	argon2KeyLen  = 32
)

// PoWHash reduces a serialized block header to the 32 byte digest that is
// compared against the block's target. algo selects which memory-hard
// function is applied; header is the header's canonical byte encoding
// with the candidate nonce already substituted in.
func PoWHash(algo PoWAlgorithm, header []byte) ([32]byte, error) {
	var out [32]byte

	switch algo {
	case PoWArgon2id:
		sum := argon2.IDKey(header, powSalt(header), argon2Time, argon2MemoKiB, argon2Threads, argon2KeyLen)
		copy(out[:], sum)
		return out, nil

	case PoWScrypt:
		sum, err := scrypt.Key(header, powSalt(header), scryptN, scryptR, scryptP, scryptKeyLen)
		if err != nil {
			return out, err
		}
		copy(out[:], sum)
		return out, nil

	default:
		return out, ErrUnknownPoWAlgorithm
	}
}

// powSalt derives a deterministic salt from the header itself rather than
// using a fixed or random one: both scrypt and argon2id require a salt
// argument, and every miner and validator must reduce the same header to
// the same digest, so the salt has to be a pure function of the input
// rather than a network-wide secret or per-call random value.
func powSalt(header []byte) []byte {
	salt := Hash256(header)
	return salt[:]
}
