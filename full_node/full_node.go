package full_node

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/log"
	"github.com/jinzhu/copier"
	uuid "github.com/satori/go.uuid"

	"github.com/Luismorlan/btc_sim/config"
	"github.com/Luismorlan/btc_sim/ledger"
	"github.com/Luismorlan/btc_sim/metrics"
	"github.com/Luismorlan/btc_sim/model"
	"github.com/Luismorlan/btc_sim/signer"
	"github.com/Luismorlan/btc_sim/utils"
)

// A full node maintains the blockchain, the UTXO ledger and the transaction pool, and is the only
// place they are mutated.
type FullNode struct {
	// The blockchain it needs to maintain, oldest block first.
	blockchain []model.Block
	// All unspent outputs after applying every block in the blockchain.
	ledger *ledger.Ledger
	// Pending transactions in admission order.
	txPool []model.Transaction
	// Hashes of the pending transactions.
	txIndex map[string]struct{}
	// Outputs claimed by a pending transaction, mapped to that transaction's id.
	claimed map[model.OutputRef]string
	// How many genesis allocations were made.
	genesisCount int
	// Verifies transaction signatures.
	signer signer.Signer
	// Blockchain config.
	config config.AppConfig
	fee    btcutil.Amount
	// A single mutex for changing internal state.
	m sync.RWMutex
	// A unique identifier of this full node, only used for logging and export naming.
	uuid string

	logger  log.Logger
	metrics *metrics.Collector
	now     func() time.Time
}

type Option func(f *FullNode)

// WithLedger replaces the empty in-memory ledger.
func WithLedger(l *ledger.Ledger) Option {
	return func(f *FullNode) {
		f.ledger = l
	}
}

// WithMetrics reports into c instead of a private collector.
func WithMetrics(c *metrics.Collector) Option {
	return func(f *FullNode) {
		f.metrics = c
	}
}

// WithClock sets the time source for block timestamps.
func WithClock(now func() time.Time) Option {
	return func(f *FullNode) {
		f.now = now
	}
}

// Create a brand new full node with an empty chain.
func NewFullNode(c config.AppConfig, s signer.Signer, logger log.Logger, opts ...Option) (*FullNode, error) {
	if err := c.Validate(); err != nil {
		return nil, ierrors.Wrap(err, "invalid config")
	}
	fee, err := c.FeeAmount()
	if err != nil {
		return nil, err
	}

	f := &FullNode{
		ledger:  ledger.NewInMemory(),
		txIndex: make(map[string]struct{}),
		claimed: make(map[model.OutputRef]string),
		signer:  s,
		config:  c,
		fee:     fee,
		uuid:    uuid.NewV4().String(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.metrics == nil {
		f.metrics = metrics.New()
	}
	f.logger = logger.NewChildLogger("FullNode-" + f.uuid[:8])

	if err := f.refreshUTXOCount(); err != nil {
		return nil, err
	}
	f.logger.LogInfo("full node created", "difficulty", c.Difficulty, "signer", s.Scheme(),
		"requireSignatureVerification", c.RequireSignatureVerification)

	return f, nil
}

// Shutdown releases the logger of the node.
func (f *FullNode) Shutdown() {
	f.logger.Shutdown()
}

func (f *FullNode) ID() string {
	return f.uuid
}

func (f *FullNode) Metrics() *metrics.Collector {
	return f.metrics
}

func (f *FullNode) Difficulty() int {
	return f.config.Difficulty
}

// Fee is the fixed fee wallets leave to the ledger when building transactions.
func (f *FullNode) Fee() btcutil.Amount {
	return f.fee
}

// Genesis allocates amount to address out of thin air.
func (f *FullNode) Genesis(address model.Address, amount btcutil.Amount) (model.UTXO, error) {
	f.m.Lock()
	defer f.m.Unlock()

	if err := utils.CheckAmount(amount); err != nil {
		return model.UTXO{}, ierrors.Join(ierrors.Wrap(ErrInvalidOutput, "genesis amount"), err)
	}
	f.genesisCount++
	utxo := model.UTXO{
		TxID:    fmt.Sprintf("genesis%d", f.genesisCount),
		Index:   0,
		Address: address,
		Amount:  amount,
	}
	if err := f.ledger.Insert(utxo); err != nil {
		return model.UTXO{}, err
	}
	if err := f.refreshUTXOCount(); err != nil {
		return model.UTXO{}, err
	}
	f.logger.LogInfo("genesis allocation", "txid", utxo.TxID, "address", address, "amount", amount)

	return utxo, nil
}

// AddTransaction validates tx against the ledger and the pending transactions and appends it to the pool.
// A rejected transaction leaves the node untouched.
func (f *FullNode) AddTransaction(tx *model.Transaction) error {
	if tx == nil {
		return ierrors.New("input transaction is nil")
	}

	// The pool owns what it validated, later changes to tx by the caller are not seen.
	admitted := tx.Clone()

	f.m.Lock()
	defer f.m.Unlock()

	if reason, err := f.validateTransaction(&admitted); err != nil {
		f.metrics.TransactionsRejected.WithLabelValues(reason).Inc()
		f.logger.LogDebug("transaction rejected", "txid", admitted.TxID, "reason", reason, "err", err)
		return err
	}

	f.txPool = append(f.txPool, admitted)
	f.txIndex[admitted.TxID] = struct{}{}
	for _, input := range admitted.Inputs {
		f.claimed[input.Ref()] = admitted.TxID
	}
	f.metrics.TransactionsAdmitted.Inc()
	f.metrics.MempoolSize.Set(float64(len(f.txPool)))
	f.logger.LogDebug("transaction admitted", "txid", admitted.TxID, "inputs", len(admitted.Inputs), "outputs", len(admitted.Outputs))

	return nil
}

// Admit reports whether tx was accepted into the pool.
func (f *FullNode) Admit(tx *model.Transaction) bool {
	return f.AddTransaction(tx) == nil
}

// MineBlock seals every pending transaction into a new block mined for miner and applies them to the ledger.
// No transaction is admitted while mining. If ctx is done before a nonce is found the search is abandoned,
// the node is left untouched and the error wraps utils.ErrMiningInterrupted, so the caller may retry.
func (f *FullNode) MineBlock(ctx context.Context, miner model.Address) (*model.Block, error) {
	f.m.Lock()
	defer f.m.Unlock()

	// Snapshot of the pool, the pool itself is only cleared once the block is sealed.
	var txs []model.Transaction
	if len(f.txPool) > 0 {
		if err := copier.Copy(&txs, &f.txPool); err != nil {
			return nil, ierrors.Wrap(err, "failed to snapshot transaction pool")
		}
	}

	block := model.NewBlock(f.now(), txs, miner)
	start := time.Now()
	attempts, err := utils.Mine(ctx, &block, f.config.Difficulty, utils.MineOptions{
		Workers:       f.config.MiningWorkers,
		CheckInterval: f.config.CheckInterval,
	})
	f.metrics.HashAttempts.Add(float64(attempts))
	if err != nil {
		f.logger.LogWarn("mining abandoned", "height", len(f.blockchain)+1, "attempts", attempts, "err", err)
		return nil, err
	}
	f.metrics.MiningDuration.Observe(time.Since(start).Seconds())

	spent, created := utils.TransactionsEffects(block.Txs)
	if err := f.ledger.Apply(spent, created); err != nil {
		return nil, ierrors.Wrapf(err, "failed to apply block %s", block.Hash)
	}

	f.txPool = nil
	f.txIndex = make(map[string]struct{})
	f.claimed = make(map[model.OutputRef]string)
	f.blockchain = append(f.blockchain, block)

	f.metrics.BlocksMined.Inc()
	f.metrics.MempoolSize.Set(0)
	if err := f.refreshUTXOCount(); err != nil {
		return nil, err
	}
	f.logger.LogInfo("mined block", "height", len(f.blockchain), "hash", block.Hash, "nonce", block.Nonce,
		"txs", len(block.Txs), "attempts", attempts)

	sealed := block.Clone()
	return &sealed, nil
}

// VerifyChain recomputes the hash of every block and checks it against the difficulty.
func (f *FullNode) VerifyChain() error {
	f.m.RLock()
	defer f.m.RUnlock()

	for i := range f.blockchain {
		if err := utils.VerifyBlock(&f.blockchain[i], f.config.Difficulty); err != nil {
			return ierrors.Wrapf(err, "block at height %d", i+1)
		}
	}
	return nil
}

func (f *FullNode) refreshUTXOCount() error {
	n, err := f.ledger.Len()
	if err != nil {
		return err
	}
	f.metrics.UTXOCount.Set(float64(n))
	return nil
}
