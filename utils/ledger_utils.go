package utils

import (
	"math"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/iotaledger/hive.go/ierrors"

	"github.com/Luismorlan/btc_sim/model"
)

// ErrAmountOutOfRange is returned for amounts outside [0, btcutil.MaxSatoshi] and for sums that overflow.
var ErrAmountOutOfRange = ierrors.New("amount out of range")

// CheckAmount fails for negative amounts and for amounts above the total supply.
func CheckAmount(a btcutil.Amount) error {
	if a < 0 || a > btcutil.MaxSatoshi {
		return ierrors.Wrapf(ErrAmountOutOfRange, "%d", int64(a))
	}
	return nil
}

// AddAmounts sums two non-negative amounts, failing instead of wrapping around.
func AddAmounts(a, b btcutil.Amount) (btcutil.Amount, error) {
	if a < 0 || b < 0 || b > btcutil.Amount(math.MaxInt64)-a {
		return 0, ierrors.Wrapf(ErrAmountOutOfRange, "%d + %d", int64(a), int64(b))
	}
	return a + b, nil
}

func CreateUtxoFromOutput(tx *model.Transaction, index int) model.UTXO {
	output := tx.Outputs[index]
	return model.UTXO{
		TxID:    tx.TxID,
		Index:   uint32(index),
		Address: output.Address,
		Amount:  output.Amount,
	}
}

// TransactionsEffects computes the ledger mutations of applying txs in order: every input is claimed
// and every output is stored. Admission only lets a transaction spend outputs that are already in the
// ledger and not claimed by another pending transaction, so the two results never share a ref.
func TransactionsEffects(txs []model.Transaction) (spent []model.OutputRef, created []model.UTXO) {
	for i := range txs {
		tx := &txs[i]
		// Claim every input
		for _, input := range tx.Inputs {
			spent = append(spent, input.Ref())
		}
		// Store every output
		for j := range tx.Outputs {
			created = append(created, CreateUtxoFromOutput(tx, j))
		}
	}
	return spent, created
}
