// Package ledger implements the UTXO set on top of a key value store.
//
// A Ledger is not safe for concurrent mutation. The full node serializes access to it.
package ledger

import (
	"bytes"
	"encoding/binary"
	"slices"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/fxamacker/cbor/v2"
	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/kvstore"
	"github.com/iotaledger/hive.go/kvstore/mapdb"

	"github.com/Luismorlan/btc_sim/model"
)

const storeKeyPrefixUTXO byte = 1

// Ledger is simply a pool of UTXO.
type Ledger struct {
	store kvstore.KVStore
}

// New creates a ledger backed by the given store.
func New(store kvstore.KVStore) *Ledger {
	return &Ledger{store: store}
}

// NewInMemory creates an empty ledger that lives in memory only.
func NewInMemory() *Ledger {
	return New(mapdb.NewMapDB())
}

// outputKey builds prefix || len(txid) || txid || index. Ids of equal length sort by txid, then by index.
func outputKey(ref model.OutputRef) []byte {
	key := make([]byte, 0, 1+2+len(ref.TxID)+4)
	key = append(key, storeKeyPrefixUTXO)
	key = binary.BigEndian.AppendUint16(key, uint16(len(ref.TxID)))
	key = append(key, ref.TxID...)
	return binary.BigEndian.AppendUint32(key, ref.Index)
}

// Get returns the unspent output for ref. exists is false if it was never created or is already spent.
func (l *Ledger) Get(ref model.OutputRef) (utxo model.UTXO, exists bool, err error) {
	value, err := l.store.Get(outputKey(ref))
	if err != nil {
		if ierrors.Is(err, kvstore.ErrKeyNotFound) {
			return model.UTXO{}, false, nil
		}
		return model.UTXO{}, false, ierrors.Wrapf(err, "failed to load output %s", ref)
	}
	if err := cbor.Unmarshal(value, &utxo); err != nil {
		return model.UTXO{}, false, ierrors.Wrapf(err, "failed to decode output %s", ref)
	}
	return utxo, true, nil
}

// Has reports whether ref is unspent.
func (l *Ledger) Has(ref model.OutputRef) (bool, error) {
	has, err := l.store.Has(outputKey(ref))
	if err != nil {
		return false, ierrors.Wrapf(err, "failed to check output %s", ref)
	}
	return has, nil
}

// Remove deletes ref. Removing an absent output is a no-op.
func (l *Ledger) Remove(ref model.OutputRef) error {
	if err := l.store.Delete(outputKey(ref)); err != nil && !ierrors.Is(err, kvstore.ErrKeyNotFound) {
		return ierrors.Wrapf(err, "failed to remove output %s", ref)
	}
	return nil
}

// Insert stores utxo, overwriting any output with the same ref.
func (l *Ledger) Insert(utxo model.UTXO) error {
	value, err := cbor.Marshal(utxo)
	if err != nil {
		return ierrors.Wrapf(err, "failed to encode output %s", utxo.Ref())
	}
	if err := l.store.Set(outputKey(utxo.Ref()), value); err != nil {
		return ierrors.Wrapf(err, "failed to store output %s", utxo.Ref())
	}
	return nil
}

// Apply removes all spent outputs and inserts all created ones in a single batch.
// Either every mutation is committed or none is.
func (l *Ledger) Apply(spent []model.OutputRef, created []model.UTXO) error {
	mutations, err := l.store.Batched()
	if err != nil {
		return ierrors.Wrap(err, "failed to start batch")
	}
	for _, ref := range spent {
		if err := mutations.Delete(outputKey(ref)); err != nil {
			mutations.Cancel()
			return ierrors.Wrapf(err, "failed to remove output %s", ref)
		}
	}
	for _, utxo := range created {
		value, err := cbor.Marshal(utxo)
		if err != nil {
			mutations.Cancel()
			return ierrors.Wrapf(err, "failed to encode output %s", utxo.Ref())
		}
		if err := mutations.Set(outputKey(utxo.Ref()), value); err != nil {
			mutations.Cancel()
			return ierrors.Wrapf(err, "failed to store output %s", utxo.Ref())
		}
	}
	if err := mutations.Commit(); err != nil {
		return ierrors.Wrap(err, "failed to commit batch")
	}
	return nil
}

// ForEach calls consumer for every unspent output in ascending key order until it returns false.
// Only keys are collected up front, each output is loaded and decoded when its turn comes.
func (l *Ledger) ForEach(consumer func(utxo model.UTXO) bool) error {
	var keys [][]byte
	if err := l.store.IterateKeys(kvstore.KeyPrefix{storeKeyPrefixUTXO}, func(key kvstore.Key) bool {
		keys = append(keys, bytes.Clone(key))
		return true
	}); err != nil {
		return ierrors.Wrap(err, "failed to iterate outputs")
	}
	slices.SortFunc(keys, bytes.Compare)

	for _, key := range keys {
		value, err := l.store.Get(key)
		if err != nil {
			if ierrors.Is(err, kvstore.ErrKeyNotFound) {
				continue
			}
			return ierrors.Wrap(err, "failed to load output")
		}
		var utxo model.UTXO
		if err := cbor.Unmarshal(value, &utxo); err != nil {
			return ierrors.Wrap(err, "failed to decode output")
		}
		if !consumer(utxo) {
			return nil
		}
	}
	return nil
}

// ForEachOwnedBy calls consumer for every unspent output of address until it returns false.
func (l *Ledger) ForEachOwnedBy(address model.Address, consumer func(utxo model.UTXO) bool) error {
	return l.ForEach(func(utxo model.UTXO) bool {
		if utxo.Address != address {
			return true
		}
		return consumer(utxo)
	})
}

// All returns every unspent output in iteration order.
func (l *Ledger) All() ([]model.UTXO, error) {
	var utxos []model.UTXO
	err := l.ForEach(func(utxo model.UTXO) bool {
		utxos = append(utxos, utxo)
		return true
	})
	return utxos, err
}

// OwnedBy returns every unspent output of address in iteration order.
func (l *Ledger) OwnedBy(address model.Address) ([]model.UTXO, error) {
	var utxos []model.UTXO
	err := l.ForEachOwnedBy(address, func(utxo model.UTXO) bool {
		utxos = append(utxos, utxo)
		return true
	})
	return utxos, err
}

// BalanceOf sums all unspent outputs of address.
func (l *Ledger) BalanceOf(address model.Address) (btcutil.Amount, error) {
	var balance btcutil.Amount
	err := l.ForEachOwnedBy(address, func(utxo model.UTXO) bool {
		balance += utxo.Amount
		return true
	})
	return balance, err
}

// Len counts the unspent outputs.
func (l *Ledger) Len() (int, error) {
	count := 0
	if err := l.store.IterateKeys(kvstore.KeyPrefix{storeKeyPrefixUTXO}, func(kvstore.Key) bool {
		count++
		return true
	}); err != nil {
		return 0, ierrors.Wrap(err, "failed to count outputs")
	}
	return count, nil
}
