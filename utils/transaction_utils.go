package utils

import (
	"encoding/json"

	"github.com/iotaledger/hive.go/ierrors"

	"github.com/Luismorlan/btc_sim/model"
)

// The JSON views below declare their fields in lexicographic key order. encoding/json keeps
// declaration order, which makes the serialization canonical: identical content always
// produces identical bytes, and therefore identical ids and hashes.

type InputJSON struct {
	TxID string `json:"txid"`
	Vout uint32 `json:"vout"`
}

type OutputJSON struct {
	Address model.Address `json:"address"`
	Amount  float64       `json:"amount"`
}

// The part of a transaction its id commits to.
type transactionBodyJSON struct {
	Inputs    []InputJSON  `json:"inputs"`
	Outputs   []OutputJSON `json:"outputs"`
	Timestamp string       `json:"timestamp"`
}

type TransactionJSON struct {
	Inputs    []InputJSON  `json:"inputs"`
	Outputs   []OutputJSON `json:"outputs"`
	PublicKey string       `json:"public_key"`
	Signature string       `json:"signature"`
	Timestamp string       `json:"timestamp"`
	TxID      string       `json:"txid"`
}

func inputsToJSON(inputs []model.Input) []InputJSON {
	res := make([]InputJSON, 0, len(inputs))
	for _, in := range inputs {
		res = append(res, InputJSON{TxID: in.TxID, Vout: in.Index})
	}
	return res
}

func outputsToJSON(outputs []model.Output) []OutputJSON {
	res := make([]OutputJSON, 0, len(outputs))
	for _, out := range outputs {
		res = append(res, OutputJSON{Address: out.Address, Amount: out.Amount.ToBTC()})
	}
	return res
}

// TransactionToJSON converts a transaction into its exported form.
func TransactionToJSON(t *model.Transaction) TransactionJSON {
	return TransactionJSON{
		Inputs:    inputsToJSON(t.Inputs),
		Outputs:   outputsToJSON(t.Outputs),
		PublicKey: BytesToHex(t.PublicKey),
		Signature: BytesToHex(t.Signature),
		Timestamp: FormatTimestamp(t.Timestamp),
		TxID:      t.TxID,
	}
}

// GetTransactionBytes serializes inputs, outputs and timestamp. Id and signature are excluded.
func GetTransactionBytes(t *model.Transaction) ([]byte, error) {
	data, err := json.Marshal(transactionBodyJSON{
		Inputs:    inputsToJSON(t.Inputs),
		Outputs:   outputsToJSON(t.Outputs),
		Timestamp: FormatTimestamp(t.Timestamp),
	})
	if err != nil {
		return nil, ierrors.Wrap(err, "failed to serialize transaction")
	}
	return data, nil
}

// ComputeTxID returns the hex SHA256 of the canonical transaction bytes.
func ComputeTxID(t *model.Transaction) (string, error) {
	data, err := GetTransactionBytes(t)
	if err != nil {
		return "", err
	}
	return BytesToHex(SHA256(data)), nil
}
