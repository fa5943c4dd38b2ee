package crypto

import (
	"encoding/asn1"
	"errors"
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// ErrInvalidSignature is returned by Verify when a signature fails to parse,
// carries a non-canonical S value, or does not verify against the given
// public key and message hash.
var ErrInvalidSignature = errors.New("crypto: invalid signature")

// secp256k1Order is the order N of the secp256k1 base point, a fixed
// curve parameter rather than anything derived at runtime.
var secp256k1Order, _ = new(big.Int).SetString(
	"fffffffffffffffffffffffffffffffebaaedce6af48a03bbfd25e8cd0364141", 16)

// secp256k1HalfOrder is N/2. A signature's S value must not exceed this,
// the canonical low-S rule that rules out the (r, N-s) malleable twin of
// every signature.
var secp256k1HalfOrder = new(big.Int).Rsh(secp256k1Order, 1)

// PrivateKey wraps a secp256k1 scalar used to sign transaction inputs.
type PrivateKey struct {
	key *secp256k1.PrivateKey
}

// PublicKey wraps a secp256k1 curve point used to verify signatures and to
// derive addresses.
type PublicKey struct {
	key *secp256k1.PublicKey
}

// NewPrivateKey generates a new random private key using a CSPRNG.
func NewPrivateKey() (PrivateKey, error) {
	key, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return PrivateKey{}, err
	}

	return PrivateKey{key: key}, nil
}

// PrivateKeyFromBytes reconstructs a private key from its 32 byte scalar.
func PrivateKeyFromBytes(b []byte) PrivateKey {
	return PrivateKey{key: secp256k1.PrivKeyFromBytes(b)}
}

// Bytes returns the 32 byte big-endian scalar for the private key.
func (p PrivateKey) Bytes() []byte {
	return p.key.Serialize()
}

// PublicKey derives the compressed public key corresponding to p.
func (p PrivateKey) PublicKey() PublicKey {
	return PublicKey{key: p.key.PubKey()}
}

// Sign produces a deterministic (RFC6979) ECDSA signature over hash, a
// message digest the caller is responsible for computing (normally
// Hash256 of a transaction's signing preimage). The decred implementation
// always normalizes S to the low half of the group order, so every
// signature this produces already satisfies Verify's canonicality check.
func (p PrivateKey) Sign(hash [32]byte) []byte {
	sig := ecdsa.Sign(p.key, hash[:])
	return sig.Serialize()
}

// Bytes returns the 33 byte compressed encoding of the public key.
func (p PublicKey) Bytes() []byte {
	return p.key.SerializeCompressed()
}

// PublicKeyFromBytes parses a compressed or uncompressed secp256k1 public
// key.
func PublicKeyFromBytes(b []byte) (PublicKey, error) {
	key, err := secp256k1.ParsePubKey(b)
	if err != nil {
		return PublicKey{}, ErrInvalidSignature
	}

	return PublicKey{key: key}, nil
}

// Verify checks that sig is a valid, canonical low-S DER signature over
// hash for the public key pub. A signature whose S exceeds the curve's
// half order is rejected outright, even if it would otherwise verify: it
// is the malleable twin of a canonical signature and admitting it would
// let a second, distinct serialization of the same spend reach the chain.
func Verify(pub PublicKey, hash [32]byte, sig []byte) error {
	if !sigHasLowS(sig) {
		return ErrInvalidSignature
	}

	parsed, err := ecdsa.ParseDERSignature(sig)
	if err != nil {
		return ErrInvalidSignature
	}

	if !parsed.Verify(hash[:], pub.key) {
		return ErrInvalidSignature
	}

	return nil
}

// derSignature mirrors the ASN.1 SEQUENCE{ INTEGER r, INTEGER s } layout of
// a DER-encoded ECDSA signature, used only to recover S for the
// canonicality check below; decred's ecdsa.Signature type keeps r and s
// unexported.
type derSignature struct {
	R, S *big.Int
}

// sigHasLowS reports whether a DER-encoded signature's S value is at most
// half the secp256k1 group order.
func sigHasLowS(der []byte) bool {
	var sig derSignature
	if _, err := asn1.Unmarshal(der, &sig); err != nil {
		return false
	}

	if sig.S == nil {
		return false
	}

	return sig.S.Cmp(secp256k1HalfOrder) <= 0
}
