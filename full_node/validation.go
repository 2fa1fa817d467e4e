package full_node

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/iotaledger/hive.go/ierrors"

	"github.com/Luismorlan/btc_sim/metrics"
	"github.com/Luismorlan/btc_sim/model"
	"github.com/Luismorlan/btc_sim/utils"
)

var (
	// ErrInvalidInput is returned when an input references an output that is not spendable.
	ErrInvalidInput = ierrors.New("invalid input")
	// ErrInvalidOutput is returned when an output carries a negative amount.
	ErrInvalidOutput = ierrors.New("invalid output")
	// ErrInsufficientFunds is returned when the inputs do not cover the outputs.
	ErrInsufficientFunds = ierrors.New("insufficient funds")
	// ErrInvalidSignature is returned when the spender cannot prove ownership of the inputs.
	ErrInvalidSignature = ierrors.New("invalid signature")
	// ErrDuplicateTransaction is returned when the transaction is already pending.
	ErrDuplicateTransaction = ierrors.New("duplicate transaction")
)

// Validate a transaction against the ledger and the pending pool. Returns the rejection reason label
// along with the error. Must be called with the lock held.
func (f *FullNode) validateTransaction(tx *model.Transaction) (string, error) {
	if _, pending := f.txIndex[tx.TxID]; pending {
		return metrics.ReasonDuplicate, ierrors.Wrapf(ErrDuplicateTransaction, "transaction %s", tx.TxID)
	}

	var totalInput btcutil.Amount
	owners := make([]model.Address, 0, len(tx.Inputs))
	seen := make(map[model.OutputRef]struct{}, len(tx.Inputs))
	for _, input := range tx.Inputs {
		ref := input.Ref()
		if _, dup := seen[ref]; dup {
			return metrics.ReasonInvalidInput, ierrors.Wrapf(ErrInvalidInput, "%s is spent twice by the same transaction", ref)
		}
		seen[ref] = struct{}{}

		if spender, claimed := f.claimed[ref]; claimed {
			return metrics.ReasonInvalidInput, ierrors.Wrapf(ErrInvalidInput, "%s is already spent by pending transaction %s", ref, spender)
		}

		utxo, exists, err := f.ledger.Get(ref)
		if err != nil {
			return metrics.ReasonOther, err
		}
		if !exists {
			return metrics.ReasonInvalidInput, ierrors.Wrapf(ErrInvalidInput, "%s is not an unspent output", ref)
		}
		if totalInput, err = utils.AddAmounts(totalInput, utxo.Amount); err != nil {
			return metrics.ReasonInvalidInput, ierrors.Join(ErrInvalidInput, err)
		}
		owners = append(owners, utxo.Address)
	}

	var totalOutput btcutil.Amount
	for i, output := range tx.Outputs {
		if err := utils.CheckAmount(output.Amount); err != nil {
			return metrics.ReasonInvalidOutput, ierrors.Join(ierrors.Wrapf(ErrInvalidOutput, "output %d", i), err)
		}
		var err error
		if totalOutput, err = utils.AddAmounts(totalOutput, output.Amount); err != nil {
			return metrics.ReasonInvalidOutput, ierrors.Join(ErrInvalidOutput, err)
		}
	}

	if totalInput < totalOutput {
		return metrics.ReasonInsufficientFund, ierrors.Wrapf(ErrInsufficientFunds, "inputs %v do not cover outputs %v", totalInput, totalOutput)
	}

	if f.config.RequireSignatureVerification {
		if err := f.verifyOwnership(tx, owners); err != nil {
			return metrics.ReasonInvalidSignature, err
		}
	}

	return "", nil
}

// The transaction must hash to its id, every spent output must belong to the address of the public key
// and the signature over the id must verify under that key.
func (f *FullNode) verifyOwnership(tx *model.Transaction, owners []model.Address) error {
	txID, err := utils.ComputeTxID(tx)
	if err != nil {
		return ierrors.Join(ErrInvalidSignature, err)
	}
	if txID != tx.TxID {
		return ierrors.Wrapf(ErrInvalidSignature, "transaction id %s does not match content hash %s", tx.TxID, txID)
	}

	address, err := f.signer.Address(tx.PublicKey)
	if err != nil {
		return ierrors.Join(ErrInvalidSignature, err)
	}
	for _, owner := range owners {
		if owner != address {
			return ierrors.Wrapf(ErrInvalidSignature, "input owned by %s cannot be spent by %s", owner, address)
		}
	}

	if !f.signer.Verify(tx.PublicKey, []byte(tx.TxID), tx.Signature) {
		return ierrors.Wrapf(ErrInvalidSignature, "signature does not verify for transaction %s", tx.TxID)
	}
	return nil
}
