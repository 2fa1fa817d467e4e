package full_node

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/log"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Luismorlan/btc_sim/config"
	"github.com/Luismorlan/btc_sim/ledger"
	"github.com/Luismorlan/btc_sim/metrics"
	"github.com/Luismorlan/btc_sim/model"
	"github.com/Luismorlan/btc_sim/signer"
	"github.com/Luismorlan/btc_sim/utils"
	"github.com/Luismorlan/btc_sim/wallet"
)

var testTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func coins(t *testing.T, f float64) btcutil.Amount {
	a, err := btcutil.NewAmount(f)
	require.NoError(t, err)
	return a
}

func createTestFullNode(t *testing.T, requireSignature bool) (*FullNode, signer.Signer) {
	c := config.Default()
	c.Difficulty = 1
	c.Signer = signer.SchemeSim
	c.RequireSignatureVerification = requireSignature

	s := signer.NewSimSigner(7)
	f, err := NewFullNode(c, s, log.NewLogger(), WithClock(func() time.Time { return testTime }))
	require.NoError(t, err)
	t.Cleanup(f.Shutdown)
	return f, s
}

func createTestWallet(t *testing.T, s signer.Signer) *wallet.Wallet {
	w, err := wallet.NewWallet(s)
	require.NoError(t, err)
	return w
}

// A signed transaction spending refs, built by hand so the test controls every field.
func signedTransaction(t *testing.T, keys model.KeyPair, s signer.Signer, refs []model.OutputRef, outputs []model.Output) *model.Transaction {
	tx := &model.Transaction{
		Outputs:   outputs,
		Timestamp: testTime,
		PublicKey: keys.PublicKey,
	}
	for _, ref := range refs {
		tx.Inputs = append(tx.Inputs, model.Input{TxID: ref.TxID, Index: ref.Index})
	}
	var err error
	tx.TxID, err = utils.ComputeTxID(tx)
	require.NoError(t, err)
	tx.Signature, err = s.Sign(keys.PrivateKey, []byte(tx.TxID))
	require.NoError(t, err)
	return tx
}

func requireBalance(t *testing.T, f *FullNode, address model.Address, expected btcutil.Amount) {
	balance, err := f.Balance(address)
	require.NoError(t, err)
	assert.Equal(t, expected, balance)
}

func TestGenesisAndSpend(t *testing.T) {
	f, s := createTestFullNode(t, true)
	alice, bob := createTestWallet(t, s), createTestWallet(t, s)

	genesis, err := f.Genesis(alice.Address(), coins(t, 1.5))
	require.NoError(t, err)
	assert.Equal(t, "genesis1", genesis.TxID)
	requireBalance(t, f, alice.Address(), coins(t, 1.5))

	_, err = alice.Transfer(f, []wallet.Recipient{{Address: bob.Address(), Amount: coins(t, 0.3)}})
	require.NoError(t, err)
	// Nothing moves before the block is mined.
	requireBalance(t, f, bob.Address(), 0)
	assert.Len(t, f.Mempool(), 1)

	block, err := f.MineBlock(context.Background(), "miner")
	require.NoError(t, err)
	assert.Len(t, block.Txs, 1)
	assert.Equal(t, testTime, block.Timestamp)

	requireBalance(t, f, alice.Address(), coins(t, 1.1999))
	requireBalance(t, f, bob.Address(), coins(t, 0.3))
	assert.Empty(t, f.Mempool())
	assert.Equal(t, 1, f.Height())
	require.NoError(t, f.VerifyChain())
}

func TestDoubleSpendRejected(t *testing.T) {
	f, s := createTestFullNode(t, true)
	alice, bob := createTestWallet(t, s), createTestWallet(t, s)

	genesis, err := f.Genesis(alice.Address(), coins(t, 1.5))
	require.NoError(t, err)
	_, err = alice.Transfer(f, []wallet.Recipient{{Address: bob.Address(), Amount: coins(t, 0.3)}})
	require.NoError(t, err)
	_, err = f.MineBlock(context.Background(), "miner")
	require.NoError(t, err)

	before, err := f.UTXOs()
	require.NoError(t, err)

	tx := signedTransaction(t, alice.Keys, s, []model.OutputRef{genesis.Ref()},
		[]model.Output{{Address: bob.Address(), Amount: coins(t, 1.0)}})
	err = f.AddTransaction(tx)
	require.Error(t, err)
	assert.True(t, ierrors.Is(err, ErrInvalidInput))
	assert.False(t, f.Admit(tx))

	after, err := f.UTXOs()
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Empty(t, f.Mempool())
}

func TestMultiOutputSpend(t *testing.T) {
	f, s := createTestFullNode(t, true)
	alice, bob, carol := createTestWallet(t, s), createTestWallet(t, s), createTestWallet(t, s)

	_, err := f.Genesis(alice.Address(), coins(t, 1.5))
	require.NoError(t, err)
	_, err = alice.Transfer(f, []wallet.Recipient{
		{Address: bob.Address(), Amount: coins(t, 0.4)},
		{Address: carol.Address(), Amount: coins(t, 0.2)},
	})
	require.NoError(t, err)
	_, err = f.MineBlock(context.Background(), "miner")
	require.NoError(t, err)

	requireBalance(t, f, alice.Address(), coins(t, 1.5)-coins(t, 0.6001))
	requireBalance(t, f, bob.Address(), coins(t, 0.4))
	requireBalance(t, f, carol.Address(), coins(t, 0.2))
}

func TestSpendAcrossBlocks(t *testing.T) {
	f, s := createTestFullNode(t, true)
	alice, bob := createTestWallet(t, s), createTestWallet(t, s)

	_, err := f.Genesis(alice.Address(), coins(t, 1.5))
	require.NoError(t, err)
	_, err = alice.Transfer(f, []wallet.Recipient{{Address: bob.Address(), Amount: coins(t, 0.5)}})
	require.NoError(t, err)
	_, err = f.MineBlock(context.Background(), "miner")
	require.NoError(t, err)

	_, err = bob.Transfer(f, []wallet.Recipient{{Address: alice.Address(), Amount: coins(t, 0.1)}})
	require.NoError(t, err)
	_, err = f.MineBlock(context.Background(), "miner")
	require.NoError(t, err)

	requireBalance(t, f, alice.Address(), coins(t, 1.5)-coins(t, 0.5)-coins(t, 0.0001)+coins(t, 0.1))
	requireBalance(t, f, bob.Address(), coins(t, 0.5)-coins(t, 0.1)-coins(t, 0.0001))
	assert.Equal(t, 2, f.Height())
	require.NoError(t, f.VerifyChain())
}

func TestPendingOutputCannotBeSpentTwice(t *testing.T) {
	f, s := createTestFullNode(t, true)
	alice, bob := createTestWallet(t, s), createTestWallet(t, s)

	_, err := f.Genesis(alice.Address(), coins(t, 1.5))
	require.NoError(t, err)
	_, err = alice.Transfer(f, []wallet.Recipient{{Address: bob.Address(), Amount: coins(t, 0.3)}})
	require.NoError(t, err)

	// The ledger still lists the genesis output, but the pool already claims it.
	_, err = alice.Transfer(f, []wallet.Recipient{{Address: bob.Address(), Amount: coins(t, 0.2)}})
	require.Error(t, err)
	assert.True(t, ierrors.Is(err, ErrInvalidInput))
	assert.Len(t, f.Mempool(), 1)
}

func TestDuplicateTransaction(t *testing.T) {
	f, s := createTestFullNode(t, true)
	alice := createTestWallet(t, s)

	genesis, err := f.Genesis(alice.Address(), coins(t, 1))
	require.NoError(t, err)
	tx := signedTransaction(t, alice.Keys, s, []model.OutputRef{genesis.Ref()},
		[]model.Output{{Address: "bob", Amount: coins(t, 0.5)}})

	require.NoError(t, f.AddTransaction(tx))
	err = f.AddTransaction(tx)
	assert.True(t, ierrors.Is(err, ErrDuplicateTransaction))
	assert.Len(t, f.Mempool(), 1)
}

func TestAdmissionErrors(t *testing.T) {
	f, s := createTestFullNode(t, true)
	alice := createTestWallet(t, s)

	genesis, err := f.Genesis(alice.Address(), coins(t, 1))
	require.NoError(t, err)
	ref := genesis.Ref()

	tests := []struct {
		name     string
		refs     []model.OutputRef
		outputs  []model.Output
		expected error
	}{
		{
			name:     "unknown input",
			refs:     []model.OutputRef{{TxID: "nope", Index: 0}},
			outputs:  []model.Output{{Address: "bob", Amount: 1}},
			expected: ErrInvalidInput,
		},
		{
			name:     "same input twice",
			refs:     []model.OutputRef{ref, ref},
			outputs:  []model.Output{{Address: "bob", Amount: coins(t, 1.5)}},
			expected: ErrInvalidInput,
		},
		{
			name:     "negative output",
			refs:     []model.OutputRef{ref},
			outputs:  []model.Output{{Address: "bob", Amount: -1}},
			expected: ErrInvalidOutput,
		},
		{
			name:     "output above total supply",
			refs:     []model.OutputRef{ref},
			outputs:  []model.Output{{Address: "mallory", Amount: btcutil.MaxSatoshi + 1}},
			expected: ErrInvalidOutput,
		},
		{
			name:     "outputs wrap around",
			refs:     []model.OutputRef{ref},
			outputs:  []model.Output{{Address: "mallory", Amount: math.MaxInt64}, {Address: "mallory", Amount: math.MaxInt64}},
			expected: ErrInvalidOutput,
		},
		{
			name:     "output total overflows",
			refs:     []model.OutputRef{ref},
			outputs:  maxSupplyOutputs(4400),
			expected: ErrInvalidOutput,
		},
		{
			name:     "outputs exceed inputs",
			refs:     []model.OutputRef{ref},
			outputs:  []model.Output{{Address: "bob", Amount: coins(t, 1) + 1}},
			expected: ErrInsufficientFunds,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := signedTransaction(t, alice.Keys, s, tt.refs, tt.outputs)
			err := f.AddTransaction(tx)
			require.Error(t, err)
			assert.True(t, ierrors.Is(err, tt.expected), err.Error())
		})
	}

	assert.Empty(t, f.Mempool())
	requireBalance(t, f, alice.Address(), coins(t, 1))
	assert.Equal(t, float64(2), testutil.ToFloat64(f.Metrics().TransactionsRejected.WithLabelValues(metrics.ReasonInvalidInput)))
	assert.Equal(t, float64(4), testutil.ToFloat64(f.Metrics().TransactionsRejected.WithLabelValues(metrics.ReasonInvalidOutput)))

	// Mining after the rejections moves nothing.
	_, err = f.MineBlock(context.Background(), "miner")
	require.NoError(t, err)
	requireBalance(t, f, alice.Address(), coins(t, 1))
	requireBalance(t, f, "mallory", 0)
}

// n outputs of the whole supply each, their sum does not fit into an amount.
func maxSupplyOutputs(n int) []model.Output {
	outputs := make([]model.Output, n)
	for i := range outputs {
		outputs[i] = model.Output{Address: "mallory", Amount: btcutil.MaxSatoshi}
	}
	return outputs
}

func TestGenesisAmountOutOfRange(t *testing.T) {
	f, _ := createTestFullNode(t, true)

	for _, amount := range []btcutil.Amount{-1, btcutil.MaxSatoshi + 1} {
		_, err := f.Genesis("alice", amount)
		assert.True(t, ierrors.Is(err, ErrInvalidOutput))
		assert.True(t, ierrors.Is(err, utils.ErrAmountOutOfRange))
	}
	requireBalance(t, f, "alice", 0)

	_, err := f.Genesis("alice", btcutil.MaxSatoshi)
	require.NoError(t, err)
}

func TestSpendingExactBalance(t *testing.T) {
	f, s := createTestFullNode(t, true)
	alice := createTestWallet(t, s)

	genesis, err := f.Genesis(alice.Address(), coins(t, 1))
	require.NoError(t, err)
	tx := signedTransaction(t, alice.Keys, s, []model.OutputRef{genesis.Ref()},
		[]model.Output{{Address: "bob", Amount: coins(t, 1)}, {Address: "carol", Amount: 0}})
	require.NoError(t, f.AddTransaction(tx))
}

func TestSignatureVerification(t *testing.T) {
	for _, requireSignature := range []bool{true, false} {
		f, s := createTestFullNode(t, requireSignature)
		alice, mallory := createTestWallet(t, s), createTestWallet(t, s)

		genesis, err := f.Genesis(alice.Address(), coins(t, 1))
		require.NoError(t, err)

		// Mallory signs a spend of an output she does not own.
		stolen := signedTransaction(t, mallory.Keys, s, []model.OutputRef{genesis.Ref()},
			[]model.Output{{Address: mallory.Address(), Amount: coins(t, 1)}})
		err = f.AddTransaction(stolen)
		if requireSignature {
			assert.True(t, ierrors.Is(err, ErrInvalidSignature))
			assert.Equal(t, float64(1), testutil.ToFloat64(f.Metrics().TransactionsRejected.WithLabelValues(metrics.ReasonInvalidSignature)))
		} else {
			assert.NoError(t, err)
		}
	}
}

func TestTamperedTransactionRejected(t *testing.T) {
	f, s := createTestFullNode(t, true)
	alice := createTestWallet(t, s)

	genesis, err := f.Genesis(alice.Address(), coins(t, 1))
	require.NoError(t, err)

	tampered := signedTransaction(t, alice.Keys, s, []model.OutputRef{genesis.Ref()},
		[]model.Output{{Address: "bob", Amount: coins(t, 0.1)}})
	tampered.Outputs[0].Amount = coins(t, 0.9)
	assert.True(t, ierrors.Is(f.AddTransaction(tampered), ErrInvalidSignature))

	forged := signedTransaction(t, alice.Keys, s, []model.OutputRef{genesis.Ref()},
		[]model.Output{{Address: "bob", Amount: coins(t, 0.1)}})
	forged.Signature[0] ^= 0xff
	assert.True(t, ierrors.Is(f.AddTransaction(forged), ErrInvalidSignature))

	assert.Empty(t, f.Mempool())
}

func TestMineEmptyBlock(t *testing.T) {
	f, _ := createTestFullNode(t, true)

	block, err := f.MineBlock(context.Background(), "miner")
	require.NoError(t, err)
	assert.Empty(t, block.Txs)
	assert.True(t, utils.HexHasLeadingZeros(block.Hash, f.Difficulty()))
	assert.Equal(t, model.Address("miner"), block.Miner)

	assert.Equal(t, float64(1), testutil.ToFloat64(f.Metrics().BlocksMined))
	assert.Greater(t, testutil.ToFloat64(f.Metrics().HashAttempts), float64(0))
}

func TestInterruptedMiningKeepsState(t *testing.T) {
	c := config.Default()
	// No hash ever has 64 leading zeros.
	c.Difficulty = 64
	c.Signer = signer.SchemeSim
	s := signer.NewSimSigner(7)
	f, err := NewFullNode(c, s, log.NewLogger())
	require.NoError(t, err)
	defer f.Shutdown()

	alice := createTestWallet(t, s)
	_, err = f.Genesis(alice.Address(), coins(t, 1))
	require.NoError(t, err)
	_, err = alice.Transfer(f, []wallet.Recipient{{Address: "bob", Amount: coins(t, 0.5)}})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = f.MineBlock(ctx, "miner")
	require.Error(t, err)
	assert.True(t, ierrors.Is(err, utils.ErrMiningInterrupted))
	assert.True(t, ierrors.Is(err, context.DeadlineExceeded))

	assert.Equal(t, 0, f.Height())
	assert.Len(t, f.Mempool(), 1)
	requireBalance(t, f, alice.Address(), coins(t, 1))
}

func TestConcurrentAdmissionSpendsOnce(t *testing.T) {
	f, s := createTestFullNode(t, true)
	alice := createTestWallet(t, s)

	genesis, err := f.Genesis(alice.Address(), coins(t, 1))
	require.NoError(t, err)

	const attempts = 16
	txs := make([]*model.Transaction, attempts)
	for i := range txs {
		txs[i] = signedTransaction(t, alice.Keys, s, []model.OutputRef{genesis.Ref()},
			[]model.Output{{Address: "bob", Amount: btcutil.Amount(1000 + i)}})
	}

	var wg sync.WaitGroup
	admitted := make(chan bool, attempts)
	for _, tx := range txs {
		wg.Add(1)
		go func(tx *model.Transaction) {
			defer wg.Done()
			admitted <- f.Admit(tx)
		}(tx)
	}
	wg.Wait()
	close(admitted)

	count := 0
	for ok := range admitted {
		if ok {
			count++
		}
	}
	assert.Equal(t, 1, count)
	assert.Len(t, f.Mempool(), 1)
}

func TestAdmittedTransactionIsACopy(t *testing.T) {
	f, s := createTestFullNode(t, true)
	alice, bob := createTestWallet(t, s), createTestWallet(t, s)

	_, err := f.Genesis(alice.Address(), coins(t, 1))
	require.NoError(t, err)
	tx, err := alice.Transfer(f, []wallet.Recipient{{Address: bob.Address(), Amount: coins(t, 0.1)}})
	require.NoError(t, err)

	// Changing the submitted transaction afterwards does not reach the pool.
	tx.Outputs[0] = model.Output{Address: "mallory", Amount: coins(t, 1000)}
	tx.Inputs[0].Index = 7
	tx.Signature[0] ^= 0xff

	pending := f.Mempool()
	require.Len(t, pending, 1)
	assert.Equal(t, bob.Address(), pending[0].Outputs[0].Address)
	assert.Equal(t, uint32(0), pending[0].Inputs[0].Index)

	// Neither does changing a copy returned by a query.
	pending[0].Outputs[0].Amount = coins(t, 1000)

	_, err = f.MineBlock(context.Background(), "miner")
	require.NoError(t, err)
	requireBalance(t, f, bob.Address(), coins(t, 0.1))
	requireBalance(t, f, "mallory", 0)
	requireBalance(t, f, alice.Address(), coins(t, 1)-coins(t, 0.1)-coins(t, 0.0001))
	require.NoError(t, f.VerifyChain())
}

func TestChainIsACopy(t *testing.T) {
	f, s := createTestFullNode(t, true)
	alice := createTestWallet(t, s)

	_, err := f.Genesis(alice.Address(), coins(t, 1))
	require.NoError(t, err)
	_, err = alice.Transfer(f, []wallet.Recipient{{Address: "bob", Amount: coins(t, 0.5)}})
	require.NoError(t, err)
	_, err = f.MineBlock(context.Background(), "miner")
	require.NoError(t, err)

	chain := f.Chain()
	chain[0].Txs[0].Outputs[0].Amount = 0
	chain[0].Hash = "forged"

	require.NoError(t, f.VerifyChain())
	assert.Equal(t, coins(t, 0.5), f.Chain()[0].Txs[0].Outputs[0].Amount)
}

func TestMetrics(t *testing.T) {
	f, s := createTestFullNode(t, true)
	alice := createTestWallet(t, s)

	_, err := f.Genesis(alice.Address(), coins(t, 1))
	require.NoError(t, err)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.Metrics().UTXOCount))

	_, err = alice.Transfer(f, []wallet.Recipient{{Address: "bob", Amount: coins(t, 0.5)}})
	require.NoError(t, err)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.Metrics().TransactionsAdmitted))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.Metrics().MempoolSize))

	_, err = f.MineBlock(context.Background(), "miner")
	require.NoError(t, err)
	assert.Equal(t, float64(0), testutil.ToFloat64(f.Metrics().MempoolSize))
	// Payment to bob and change to alice.
	assert.Equal(t, float64(2), testutil.ToFloat64(f.Metrics().UTXOCount))
}

func TestWithLedger(t *testing.T) {
	l := ledger.NewInMemory()
	require.NoError(t, l.Insert(model.UTXO{TxID: "seed", Index: 2, Address: "alice", Amount: 5}))

	f, err := NewFullNode(config.Default(), signer.NewSimSigner(1), log.NewLogger(), WithLedger(l))
	require.NoError(t, err)
	defer f.Shutdown()

	requireBalance(t, f, "alice", 5)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.Metrics().UTXOCount))
	assert.NotEmpty(t, f.ID())
}

func TestNewFullNodeRejectsInvalidConfig(t *testing.T) {
	c := config.Default()
	c.MiningWorkers = 0
	_, err := NewFullNode(c, signer.NewSimSigner(1), log.NewLogger())
	require.Error(t, err)
}
