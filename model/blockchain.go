package model

import "time"

type Block struct {
	// When the block skeleton was created.
	Timestamp time.Time
	// Transactions for this block, applied in order.
	Txs []Transaction
	// Address of the miner that sealed the block.
	Miner Address
	// Nonce is the miner's challenge for computing the block.
	Nonce uint64
	// Hash of this entire block in the hex string format.
	Hash string
}

// Create a block skeleton that still needs to be mined.
func NewBlock(timestamp time.Time, txs []Transaction, miner Address) Block {
	return Block{
		Timestamp: timestamp,
		Txs:       txs,
		Miner:     miner,
	}
}

// Clone returns a copy of b that shares no memory with it.
func (b Block) Clone() Block {
	c := b
	c.Txs = make([]Transaction, len(b.Txs))
	for i := range b.Txs {
		c.Txs[i] = b.Txs[i].Clone()
	}
	return c
}
