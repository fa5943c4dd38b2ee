// Package crypto provides the hashing, addressing, signing, and
// proof-of-work-hash primitives shared by every other blockchain package.
// Keeping these in one leaf package means the chain manager, validation
// engine, and miner all agree bit-exactly on how a header, transaction, or
// address reduces to bytes.
package crypto

import (
	"crypto/sha256"

	"golang.org/x/crypto/blake2b"
)

// ZeroHash is the canonical 32 byte zero value used as the previous-block
// hash of genesis and as a convenience default.
var ZeroHash [32]byte

// Hash256 returns SHA-256(SHA-256(b)), the primitive used for block hashes,
// txids, and merkle nodes throughout the chain.
func Hash256(b []byte) [32]byte {
	first := sha256.Sum256(b)
	return sha256.Sum256(first[:])
}

// Blake2b256 returns the BLAKE2b-256 digest of b. It is offered as an
// alternative hash primitive for networks configured at genesis to use it
// instead of SHA-256d; once chosen the choice is immutable for that chain.
func Blake2b256(b []byte) [32]byte {
	return blake2b.Sum256(b)
}

// HashAlgorithm identifies which general-purpose hash primitive a network
// uses. It is distinct from the PoW hash function (see powhash.go), which
// has its own, deliberately slower, algorithm choice.
type HashAlgorithm uint8

// Supported general-purpose hash algorithms.
const (
	HashSHA256D HashAlgorithm = iota
	HashBlake2b256
)

// Sum computes the digest for b using the algorithm identified by a.
func (a HashAlgorithm) Sum(b []byte) [32]byte {
	switch a {
	case HashBlake2b256:
		return Blake2b256(b)
	default:
		return Hash256(b)
	}
}
