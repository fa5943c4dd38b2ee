package storage

import (
	"encoding/binary"

	"github.com/carbonchain/node/foundation/blockchain/chainmodel"
)

// Key prefixes, one byte each, separating the different entity spaces a
// single flat keyspace stores: block_by_height, block_by_hash, tx_by_id,
// utxo(OutPoint), certificate_by_id, project_by_id, and address_index.
const (
	prefixBlockByHeight byte = iota
	prefixBlockByHash
	prefixTxByID
	prefixUTXO
	prefixCertificate
	prefixProject
	prefixAddressIndex
)

// BlockByHeightKey returns the key a block's canonical encoding is stored
// under, indexed by its height on the active chain.
func BlockByHeightKey(height uint32) []byte {
	key := make([]byte, 1+4)
	key[0] = prefixBlockByHeight
	binary.BigEndian.PutUint32(key[1:], height)
	return key
}

// BlockByHashKey returns the key a block's canonical encoding is stored
// under, indexed by its content hash.
func BlockByHashKey(hash chainmodel.Hash) []byte {
	key := make([]byte, 1+32)
	key[0] = prefixBlockByHash
	copy(key[1:], hash[:])
	return key
}

// TxByIDKey returns the key a transaction's canonical encoding is stored
// under.
func TxByIDKey(txid chainmodel.Hash) []byte {
	key := make([]byte, 1+32)
	key[0] = prefixTxByID
	copy(key[1:], txid[:])
	return key
}

// UTXOKey returns the key a single unspent output is stored under.
func UTXOKey(op chainmodel.OutPoint) []byte {
	key := make([]byte, 1+32+4)
	key[0] = prefixUTXO
	copy(key[1:33], op.TxID[:])
	binary.BigEndian.PutUint32(key[33:], op.Index)
	return key
}

// CertificateKey returns the key a certificate record is stored under.
func CertificateKey(id string) []byte {
	return append([]byte{prefixCertificate}, []byte(id)...)
}

// ProjectKey returns the key a project record is stored under.
func ProjectKey(id string) []byte {
	return append([]byte{prefixProject}, []byte(id)...)
}

// AddressIndexKey returns the key tying an address to one of the
// OutPoints it owns. The OutPoint is embedded in the key (rather than
// only in the value) so Iterate(AddressIndexPrefix(addr)) walks every
// OutPoint owned by addr without a separate decode pass.
func AddressIndexKey(addr string, op chainmodel.OutPoint) []byte {
	prefix := AddressIndexPrefix(addr)
	key := make([]byte, len(prefix)+32+4)
	copy(key, prefix)
	copy(key[len(prefix):len(prefix)+32], op.TxID[:])
	binary.BigEndian.PutUint32(key[len(prefix)+32:], op.Index)
	return key
}

// AddressIndexPrefix returns the key prefix shared by every
// AddressIndexKey entry for addr, the argument Iterate expects to walk
// addr's full UTXO set. The address is length-prefixed so one address's
// prefix can never be a byte-prefix of a different, longer address
// (e.g. "alice" vs "alicia").
func AddressIndexPrefix(addr string) []byte {
	key := make([]byte, 1+2+len(addr))
	key[0] = prefixAddressIndex
	binary.BigEndian.PutUint16(key[1:3], uint16(len(addr)))
	copy(key[3:], addr)
	return key
}
