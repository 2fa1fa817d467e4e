package main

import (
	"context"
	"strconv"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/iotaledger/hive.go/ierrors"

	"github.com/Luismorlan/btc_sim/model"
	"github.com/Luismorlan/btc_sim/wallet"
)

// runDemo walks through a genesis allocation, two mined transfers and a rejected double spend,
// then exports the resulting state.
func runDemo(ctx context.Context, d *Driver, genesisAmount float64) error {
	for _, line := range []string{
		"new_wallet alice",
		"new_wallet bob",
		"new_wallet carol",
		"new_wallet miner",
		"genesis alice " + strconv.FormatFloat(genesisAmount, 'f', -1, 64),
		"transfer alice bob 0.3",
		"mine miner",
		"balance alice",
		"balance bob",
	} {
		if err := d.Run(ctx, line); err != nil {
			return ierrors.Wrapf(err, "demo step %q failed", line)
		}
	}

	amount, err := btcutil.NewAmount(genesisAmount)
	if err != nil {
		return err
	}
	if err := replayGenesisSpend(d, amount); err != nil {
		return err
	}

	for _, line := range []string{
		"transfer alice bob 0.4 carol 0.2",
		"mine miner",
		"balance alice",
		"balance bob",
		"balance carol",
		"show",
		"export",
	} {
		if err := d.Run(ctx, line); err != nil {
			return ierrors.Wrapf(err, "demo step %q failed", line)
		}
	}
	return nil
}

// Alice signs 1 coin to bob over the genesis output she already spent. The node must refuse it.
func replayGenesisSpend(d *Driver, amount btcutil.Amount) error {
	alice, err := d.wallet("alice")
	if err != nil {
		return err
	}
	bob, err := d.wallet("bob")
	if err != nil {
		return err
	}
	genesis := d.node.Chain()[0].Txs[0].Inputs[0]
	stale := staleSource{TxID: genesis.TxID, Index: genesis.Index, Address: alice.Address(), Amount: amount}

	tx, err := wallet.CreatePendingTransaction(alice.Keys, alice.Signer, stale,
		[]wallet.Recipient{{Address: bob.Address(), Amount: btcutil.SatoshiPerBitcoin}}, d.node.Fee(), time.Now())
	if err != nil {
		return err
	}
	if err := d.node.AddTransaction(tx); err != nil {
		d.printf("double spend of %s sending %s to bob rejected: %v\n", genesis.Ref(), formatAmount(tx.Outputs[0].Amount), err)
		return nil
	}
	return ierrors.Errorf("double spend of %s was accepted", genesis.Ref())
}

// A view of the UTXO set that still lists an output the ledger already spent.
type staleSource model.UTXO

func (s staleSource) ForEachOwnedBy(address model.Address, consumer func(utxo model.UTXO) bool) error {
	if s.Address == address {
		consumer(model.UTXO(s))
	}
	return nil
}
