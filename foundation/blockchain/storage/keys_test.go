package storage_test

import (
	"bytes"
	"testing"

	"github.com/carbonchain/node/foundation/blockchain/chainmodel"
	"github.com/carbonchain/node/foundation/blockchain/storage"
)

func Test_AddressIndexKeyHasItsPrefixAsAPrefix(t *testing.T) {
	op := chainmodel.OutPoint{TxID: chainmodel.Hash{1, 2, 3}, Index: 7}

	key := storage.AddressIndexKey("alice", op)
	prefix := storage.AddressIndexPrefix("alice")

	if !bytes.HasPrefix(key, prefix) {
		t.Fatal("expected AddressIndexKey to start with AddressIndexPrefix for the same address")
	}
}

func Test_AddressIndexPrefixDoesNotCollideAcrossAddresses(t *testing.T) {
	a := storage.AddressIndexPrefix("alice")
	b := storage.AddressIndexPrefix("alicia")

	if bytes.HasPrefix(b, a) {
		t.Fatal("expected distinct address prefixes not to collide, even when one address name is a prefix of another")
	}
}

func Test_DifferentEntityKeysNeverCollide(t *testing.T) {
	hash := chainmodel.Hash{9, 9, 9}

	keys := [][]byte{
		storage.BlockByHeightKey(1),
		storage.BlockByHashKey(hash),
		storage.TxByIDKey(hash),
		storage.UTXOKey(chainmodel.OutPoint{TxID: hash, Index: 0}),
		storage.CertificateKey("cert-1"),
		storage.ProjectKey("cert-1"),
		storage.AddressIndexKey("addr", chainmodel.OutPoint{TxID: hash, Index: 0}),
	}

	seen := make(map[string]int)
	for i, k := range keys {
		if j, ok := seen[string(k)]; ok {
			t.Fatalf("keys %d and %d collided: %x", i, j, k)
		}
		seen[string(k)] = i
	}
}
