package model

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
)

// Address identifies a spend target. It is derived from a public key by a signer.
type Address string

// KeyPair holds the key material of a wallet.
type KeyPair struct {
	PrivateKey []byte
	PublicKey  []byte
	Address    Address
}

// OutputRef identifies a specific output of a specific transaction.
type OutputRef struct {
	// Id of the transaction that created the output.
	TxID string
	// The index of the output in that transaction.
	Index uint32
}

func (r OutputRef) String() string {
	return fmt.Sprintf("%s:%d", r.TxID, r.Index)
}

// Unspent transaction output. A UTXO only lives in the ledger while nothing spent it.
type UTXO struct {
	TxID    string         `cbor:"1,keyasint"`
	Index   uint32         `cbor:"2,keyasint"`
	Address Address        `cbor:"3,keyasint"`
	Amount  btcutil.Amount `cbor:"4,keyasint"`
}

func (u UTXO) Ref() OutputRef {
	return OutputRef{TxID: u.TxID, Index: u.Index}
}
