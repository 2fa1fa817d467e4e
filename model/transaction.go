package model

import (
	"time"

	"github.com/btcsuite/btcd/btcutil"
)

type Input struct {
	// Id of the transaction that outputs this coin.
	TxID string
	// The index of the output in that transaction. Together with TxID, it identifies the unique output.
	Index uint32
}

// Ref returns the key of the UTXO this input claims to spend.
func (i Input) Ref() OutputRef {
	return OutputRef{TxID: i.TxID, Index: i.Index}
}

type Output struct {
	// Receiver of the coin.
	Address Address
	// How much value to transfer.
	Amount btcutil.Amount
}

type Transaction struct {
	// Content hash of inputs, outputs and timestamp in hex. We use this to uniquely identify the transaction.
	TxID string
	// All inputs of this transaction.
	Inputs []Input
	// All outputs of this transaction.
	Outputs []Output
	// Creation time, part of the content hash.
	Timestamp time.Time
	// Public key of the spender. Every input must be owned by the address derived from it.
	PublicKey []byte
	// Signature over TxID using the spender's private key.
	Signature []byte
}

// TotalOutput sums the amounts of all outputs.
func (t *Transaction) TotalOutput() btcutil.Amount {
	var total btcutil.Amount
	for _, o := range t.Outputs {
		total += o.Amount
	}
	return total
}

// Clone returns a copy of t that shares no memory with it.
func (t Transaction) Clone() Transaction {
	c := t
	c.Inputs = append([]Input(nil), t.Inputs...)
	c.Outputs = append([]Output(nil), t.Outputs...)
	c.PublicKey = append([]byte(nil), t.PublicKey...)
	c.Signature = append([]byte(nil), t.Signature...)
	return c
}
