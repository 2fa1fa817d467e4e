package wallet

import (
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/iotaledger/hive.go/ierrors"

	"github.com/Luismorlan/btc_sim/model"
	"github.com/Luismorlan/btc_sim/signer"
	"github.com/Luismorlan/btc_sim/utils"
)

// ErrNoSpendableFunds is returned when the sender owns no UTXO at all.
var ErrNoSpendableFunds = ierrors.New("no spendable funds")

// UTXOSource is a read-only view of the UTXO set.
type UTXOSource interface {
	ForEachOwnedBy(address model.Address, consumer func(utxo model.UTXO) bool) error
}

// Recipient is a requested payment.
type Recipient struct {
	Address model.Address
	Amount  btcutil.Amount
}

// Node is the ledger a wallet submits to.
type Node interface {
	UTXOsOwnedBy(address model.Address) ([]model.UTXO, error)
	AddTransaction(tx *model.Transaction) error
	Fee() btcutil.Amount
}

// User signs and sends transactions to the ledger.
type Wallet struct {
	Keys   model.KeyPair
	Signer signer.Signer
}

// NewWallet generates fresh keys with s.
func NewWallet(s signer.Signer) (*Wallet, error) {
	keys, err := s.Generate()
	if err != nil {
		return nil, err
	}
	return &Wallet{Keys: keys, Signer: s}, nil
}

func (w *Wallet) Address() model.Address {
	return w.Keys.Address
}

// Transfer builds a transaction paying recipients from the wallet's outputs on node and submits it.
func (w *Wallet) Transfer(node Node, recipients []Recipient) (*model.Transaction, error) {
	utxos, err := node.UTXOsOwnedBy(w.Address())
	if err != nil {
		return nil, ierrors.Wrap(err, "failed to get balance from full node")
	}
	tx, err := CreatePendingTransaction(w.Keys, w.Signer, sliceSource(utxos), recipients, node.Fee(), time.Now())
	if err != nil {
		return nil, ierrors.Wrap(err, "failed to create new transaction")
	}
	if err := node.AddTransaction(tx); err != nil {
		return tx, ierrors.Wrap(err, "failed to send transaction to full node")
	}
	return tx, nil
}

// Create a pending transaction to transfer money to recipients.
// Inputs are picked greedily in source order until they cover the requested total. When they never do,
// the transaction is still returned and the full node rejects it for insufficient funds.
// A change output back to the sender is appended when total input exceeds total output plus fee.
// READONLY:
// * source
func CreatePendingTransaction(keys model.KeyPair, s signer.Signer, source UTXOSource, recipients []Recipient, fee btcutil.Amount, now time.Time) (*model.Transaction, error) {
	var totalTransferValue btcutil.Amount
	for _, r := range recipients {
		if err := utils.CheckAmount(r.Amount); err != nil {
			return nil, ierrors.Wrapf(err, "invalid amount for %s", r.Address)
		}
		var err error
		if totalTransferValue, err = utils.AddAmounts(totalTransferValue, r.Amount); err != nil {
			return nil, ierrors.Wrap(err, "requested total")
		}
	}

	var inputs []model.Input
	// Total money from all picked UTXOs
	var totalValue btcutil.Amount
	var sumErr error
	err := source.ForEachOwnedBy(keys.Address, func(utxo model.UTXO) bool {
		inputs = append(inputs, model.Input{TxID: utxo.TxID, Index: utxo.Index})
		if totalValue, sumErr = utils.AddAmounts(totalValue, utxo.Amount); sumErr != nil {
			return false
		}
		return totalValue < totalTransferValue
	})
	if err != nil {
		return nil, err
	}
	if sumErr != nil {
		return nil, ierrors.Wrap(sumErr, "input total")
	}
	if len(inputs) == 0 {
		return nil, ErrNoSpendableFunds
	}

	outputs := make([]model.Output, 0, len(recipients)+1)
	for _, r := range recipients {
		outputs = append(outputs, model.Output{Address: r.Address, Amount: r.Amount})
	}
	// Output with amount of money left after transfer
	if change := totalValue - totalTransferValue - fee; change > 0 {
		outputs = append(outputs, model.Output{Address: keys.Address, Amount: change})
	}

	pendingTransaction := &model.Transaction{
		Inputs:    inputs,
		Outputs:   outputs,
		Timestamp: now,
		PublicKey: keys.PublicKey,
	}
	pendingTransaction.TxID, err = utils.ComputeTxID(pendingTransaction)
	if err != nil {
		return nil, err
	}
	pendingTransaction.Signature, err = s.Sign(keys.PrivateKey, []byte(pendingTransaction.TxID))
	if err != nil {
		return nil, ierrors.Wrap(err, "failed to sign transaction")
	}
	return pendingTransaction, nil
}

type sliceSource []model.UTXO

func (s sliceSource) ForEachOwnedBy(address model.Address, consumer func(utxo model.UTXO) bool) error {
	for _, utxo := range s {
		if utxo.Address == address && !consumer(utxo) {
			return nil
		}
	}
	return nil
}
