package full_node

import (
	"github.com/btcsuite/btcd/btcutil"

	"github.com/Luismorlan/btc_sim/model"
)

// Balance sums the unspent outputs owned by address. Pending transactions are not considered.
func (f *FullNode) Balance(address model.Address) (btcutil.Amount, error) {
	f.m.RLock()
	defer f.m.RUnlock()

	return f.ledger.BalanceOf(address)
}

// UTXOsOwnedBy returns the unspent outputs of address in ledger order.
func (f *FullNode) UTXOsOwnedBy(address model.Address) ([]model.UTXO, error) {
	f.m.RLock()
	defer f.m.RUnlock()

	return f.ledger.OwnedBy(address)
}

// UTXOs returns every unspent output in ledger order.
func (f *FullNode) UTXOs() ([]model.UTXO, error) {
	f.m.RLock()
	defer f.m.RUnlock()

	return f.ledger.All()
}

// Chain returns a copy of the blockchain, oldest block first.
func (f *FullNode) Chain() []model.Block {
	f.m.RLock()
	defer f.m.RUnlock()

	chain := make([]model.Block, len(f.blockchain))
	for i := range f.blockchain {
		chain[i] = f.blockchain[i].Clone()
	}
	return chain
}

// Mempool returns a copy of the pending transactions in admission order.
func (f *FullNode) Mempool() []model.Transaction {
	f.m.RLock()
	defer f.m.RUnlock()

	txs := make([]model.Transaction, len(f.txPool))
	for i := range f.txPool {
		txs[i] = f.txPool[i].Clone()
	}
	return txs
}

// Height is the number of blocks in the chain.
func (f *FullNode) Height() int {
	f.m.RLock()
	defer f.m.RUnlock()

	return len(f.blockchain)
}
