package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/log"

	"github.com/Luismorlan/btc_sim/commands"
	"github.com/Luismorlan/btc_sim/exporter"
	"github.com/Luismorlan/btc_sim/full_node"
	"github.com/Luismorlan/btc_sim/model"
	"github.com/Luismorlan/btc_sim/signer"
	"github.com/Luismorlan/btc_sim/utils"
	"github.com/Luismorlan/btc_sim/wallet"
)

// How often the background miner looks for pending transactions.
const minerPollInterval = 200 * time.Millisecond

var errQuit = ierrors.New("quit")

// Driver executes commands against a full node on behalf of named wallets.
type Driver struct {
	node     *full_node.FullNode
	signer   signer.Signer
	exporter exporter.Exporter
	out      io.Writer
	logger   log.Logger

	wallets map[string]*wallet.Wallet

	// Guards the background miner.
	m            sync.Mutex
	cancelMining context.CancelFunc
	miningDone   chan struct{}
}

func NewDriver(node *full_node.FullNode, s signer.Signer, e exporter.Exporter, out io.Writer, logger log.Logger) *Driver {
	return &Driver{
		node:     node,
		signer:   s,
		exporter: e,
		out:      out,
		logger:   logger,
		wallets:  make(map[string]*wallet.Wallet),
	}
}

func (d *Driver) printf(format string, args ...interface{}) {
	fmt.Fprintf(d.out, format, args...)
}

func (d *Driver) wallet(name string) (*wallet.Wallet, error) {
	w, ok := d.wallets[name]
	if !ok {
		return nil, ierrors.Errorf("unknown wallet %s", name)
	}
	return w, nil
}

// Names of known wallets resolve to their address, anything else is taken as a raw address.
func (d *Driver) address(name string) model.Address {
	if w, ok := d.wallets[name]; ok {
		return w.Address()
	}
	return model.Address(name)
}

func parseAmount(s string) (btcutil.Amount, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, ierrors.Wrapf(err, "invalid amount %s", s)
	}
	return btcutil.NewAmount(v)
}

// Coins with as many decimals as needed, the same way they are exported.
func formatAmount(a btcutil.Amount) string {
	return strconv.FormatFloat(a.ToBTC(), 'f', -1, 64) + " BTC"
}

// Run parses and executes a single command line.
func (d *Driver) Run(ctx context.Context, line string) error {
	c, err := commands.CreateCommand(line)
	if err != nil {
		return err
	}
	return d.Handle(ctx, c)
}

func (d *Driver) Handle(ctx context.Context, c commands.Command) error {
	switch c.Op {
	case commands.NEW_WALLET:
		name := c.Args[0]
		if _, exists := d.wallets[name]; exists {
			return ierrors.Errorf("wallet %s already exists", name)
		}
		w, err := wallet.NewWallet(d.signer)
		if err != nil {
			return err
		}
		d.wallets[name] = w
		d.printf("wallet %s: %s\n", name, w.Address())
	case commands.GENESIS:
		amount, err := parseAmount(c.Args[1])
		if err != nil {
			return err
		}
		utxo, err := d.node.Genesis(d.address(c.Args[0]), amount)
		if err != nil {
			return err
		}
		d.printf("genesis %s: %s to %s\n", utxo.Ref(), formatAmount(utxo.Amount), c.Args[0])
	case commands.TRANSFER:
		return d.transfer(c.Args[0], c.Args[1:])
	case commands.MINE:
		return d.mine(ctx, c.Args[0])
	case commands.START:
		return d.startMining(ctx, c.Args[0])
	case commands.STOP:
		return d.stopMining()
	case commands.GET_BALANCE:
		balance, err := d.node.Balance(d.address(c.Args[0]))
		if err != nil {
			return err
		}
		d.printf("%s: %s\n", c.Args[0], formatAmount(balance))
	case commands.UTXOS:
		return d.showUTXOs(c.Args)
	case commands.MEMPOOL:
		for _, tx := range d.node.Mempool() {
			d.printf("%s inputs=%d outputs=%d total=%s\n", tx.TxID, len(tx.Inputs), len(tx.Outputs), formatAmount(tx.TotalOutput()))
		}
	case commands.SHOW:
		return d.show(c.Args)
	case commands.EXPORT:
		paths, err := d.exporter.Export(d.node)
		if err != nil {
			return err
		}
		for _, p := range paths {
			d.printf("written %s\n", p)
		}
	case commands.WALLETS:
		names := make([]string, 0, len(d.wallets))
		for name := range d.wallets {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			d.printf("%s: %s\n", name, d.wallets[name].Address())
		}
	case commands.HELP:
		d.printf("%s\n", commands.Usage)
	case commands.QUIT:
		return errQuit
	default:
		return ierrors.Errorf("unsupported command %v", c.Op)
	}
	return nil
}

func (d *Driver) transfer(from string, args []string) error {
	sender, err := d.wallet(from)
	if err != nil {
		return err
	}
	recipients := make([]wallet.Recipient, 0, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		amount, err := parseAmount(args[i+1])
		if err != nil {
			return err
		}
		recipients = append(recipients, wallet.Recipient{Address: d.address(args[i]), Amount: amount})
	}

	tx, err := sender.Transfer(d.node, recipients)
	if err != nil {
		return err
	}
	d.printf("transaction %s accepted\n", tx.TxID)
	return nil
}

func (d *Driver) mine(ctx context.Context, miner string) error {
	block, err := d.node.MineBlock(ctx, d.address(miner))
	if err != nil {
		return err
	}
	d.printf("block %d mined: %s nonce=%d txs=%d\n", d.node.Height(), block.Hash, block.Nonce, len(block.Txs))
	return nil
}

// Mine in the background whenever transactions are pending, until stopped.
func (d *Driver) startMining(ctx context.Context, miner string) error {
	d.m.Lock()
	defer d.m.Unlock()

	if d.cancelMining != nil {
		return ierrors.New("mining has already been started")
	}
	minerAddress := d.address(miner)
	miningCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	d.cancelMining, d.miningDone = cancel, done

	go func() {
		defer close(done)
		ticker := time.NewTicker(minerPollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-miningCtx.Done():
				return
			case <-ticker.C:
			}
			if len(d.node.Mempool()) == 0 {
				continue
			}
			block, err := d.node.MineBlock(miningCtx, minerAddress)
			if err != nil {
				if !ierrors.Is(err, utils.ErrMiningInterrupted) {
					d.logger.LogError("background mining failed", "err", err)
				}
				continue
			}
			d.logger.LogInfo("background miner sealed block", "hash", block.Hash, "txs", len(block.Txs))
		}
	}()
	d.printf("mining started for %s\n", miner)
	return nil
}

func (d *Driver) stopMining() error {
	d.m.Lock()
	defer d.m.Unlock()

	if d.cancelMining == nil {
		return ierrors.New("no running mining task to stop")
	}
	d.cancelMining()
	<-d.miningDone
	d.cancelMining, d.miningDone = nil, nil
	d.printf("mining stopped\n")
	return nil
}

func (d *Driver) showUTXOs(args []string) error {
	var utxos []model.UTXO
	var err error
	if len(args) == 1 {
		utxos, err = d.node.UTXOsOwnedBy(d.address(args[0]))
	} else {
		utxos, err = d.node.UTXOs()
	}
	if err != nil {
		return err
	}
	for _, utxo := range utxos {
		d.printf("%s %s %s\n", utxo.Ref(), utxo.Address, formatAmount(utxo.Amount))
	}
	return nil
}

func (d *Driver) show(args []string) error {
	depth := 0
	if len(args) == 1 {
		var err error
		if depth, err = strconv.Atoi(args[0]); err != nil {
			return ierrors.Wrapf(err, "%s is not a valid number for depth", args[0])
		}
	}
	chain := d.node.Chain()
	start := 0
	if depth > 0 && depth < len(chain) {
		start = len(chain) - depth
	}
	for i := start; i < len(chain); i++ {
		b := chain[i]
		d.printf("#%d %s miner=%s nonce=%d txs=%d\n", i+1, b.Hash, b.Miner, b.Nonce, len(b.Txs))
	}
	return nil
}

// Repl reads commands from in until it is exhausted, quit is entered or ctx is done.
func (d *Driver) Repl(ctx context.Context, in io.Reader) error {
	defer func() {
		// Nothing to stop when mining never started.
		_ = d.stopMining()
	}()

	scanner := bufio.NewScanner(in)
	d.printf("> ")
	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := d.Run(ctx, scanner.Text()); err != nil {
			if ierrors.Is(err, errQuit) {
				return nil
			}
			if !ierrors.Is(err, commands.ErrEmptyCommand) {
				d.printf("error: %v\n", err)
			}
		}
		d.printf("> ")
	}
	return scanner.Err()
}
