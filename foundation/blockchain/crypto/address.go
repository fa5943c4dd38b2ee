package crypto

import (
	"crypto/sha256"
	"errors"

	"github.com/btcsuite/btcd/btcutil/base58"
	"golang.org/x/crypto/ripemd160" //lint:ignore SA1019 ripemd160 is required for Bitcoin-style addressing, not used for security-critical hashing beyond address derivation.
)

// ErrInvalidAddress is returned when an address fails Base58Check decoding
// or carries an unexpected version byte.
var ErrInvalidAddress = errors.New("crypto: invalid address")

// AddressVersion is the single version byte prefixed to the pubkey hash
// before Base58Check encoding. It is fixed per network at genesis.
type AddressVersion byte

// Network address versions. A given chain uses exactly one of these,
// chosen at genesis and immutable afterward.
const (
	AddressVersionMainnet AddressVersion = 0x00
	AddressVersionTestnet AddressVersion = 0x6f
)

// PubKeyHash computes RIPEMD160(SHA256(pubkey)), the 20 byte value that
// addresses are built from.
func PubKeyHash(pubKey []byte) []byte {
	sum := sha256.Sum256(pubKey)

	h := ripemd160.New()
	h.Write(sum[:])
	return h.Sum(nil)
}

// Address derives the Base58Check address for a public key under the given
// network version byte: Base58Check(version ‖ RIPEMD160(SHA256(pubkey))).
func Address(version AddressVersion, pubKey []byte) string {
	return base58.CheckEncode(PubKeyHash(pubKey), byte(version))
}

// ValidateAddress re-decodes an address and checks its Base58Check
// checksum and version byte. It does not imply the address has ever been
// used or has any funds; it only proves the string is well-formed.
func ValidateAddress(version AddressVersion, address string) error {
	decoded, v, err := base58.CheckDecode(address)
	if err != nil {
		return ErrInvalidAddress
	}

	if v != byte(version) {
		return ErrInvalidAddress
	}

	if len(decoded) != ripemd160.Size {
		return ErrInvalidAddress
	}

	return nil
}

// DecodeAddress returns the 20 byte pubkey hash carried by a well-formed
// address, validating its checksum and version byte first.
func DecodeAddress(version AddressVersion, address string) ([]byte, error) {
	if err := ValidateAddress(version, address); err != nil {
		return nil, err
	}

	decoded, _, err := base58.CheckDecode(address)
	if err != nil {
		return nil, ErrInvalidAddress
	}

	return decoded, nil
}
