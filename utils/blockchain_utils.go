package utils

import (
	"context"
	"encoding/json"

	"github.com/iotaledger/hive.go/ierrors"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"

	"github.com/Luismorlan/btc_sim/model"
)

// DefaultCheckInterval is how many hash attempts a worker makes between two cancellation checks.
const DefaultCheckInterval = 1024

// ErrMiningInterrupted is returned when the nonce search was cancelled before a valid hash was found.
var ErrMiningInterrupted = ierrors.New("mining interrupted")

type BlockJSON struct {
	Hash      string            `json:"hash,omitempty"`
	Miner     model.Address     `json:"miner"`
	Nonce     uint64            `json:"nonce"`
	Timestamp string            `json:"timestamp"`
	Tx        []TransactionJSON `json:"tx"`
}

// BlockToJSON converts a block into its exported form.
func BlockToJSON(block *model.Block) BlockJSON {
	txs := make([]TransactionJSON, 0, len(block.Txs))
	for i := range block.Txs {
		txs = append(txs, TransactionToJSON(&block.Txs[i]))
	}
	return BlockJSON{
		Hash:      block.Hash,
		Miner:     block.Miner,
		Nonce:     block.Nonce,
		Timestamp: FormatTimestamp(block.Timestamp),
		Tx:        txs,
	}
}

// GetBlockBytes serializes the block skeleton the proof of work is computed over:
// timestamp, transactions and miner with nonce 0 and without hash.
func GetBlockBytes(block *model.Block) ([]byte, error) {
	skeleton := BlockToJSON(block)
	skeleton.Hash = ""
	skeleton.Nonce = 0
	data, err := json.Marshal(skeleton)
	if err != nil {
		return nil, ierrors.Wrap(err, "failed to serialize block")
	}
	return data, nil
}

// HashWithNonce hashes the block bytes followed by the decimal nonce.
func HashWithNonce(blockBytes []byte, nonce uint64) string {
	data := make([]byte, len(blockBytes), len(blockBytes)+20)
	copy(data, blockBytes)
	return BytesToHex(SHA256(AppendNonce(data, nonce)))
}

// HexHasLeadingZeros reports whether the first difficulty characters of digest are '0'.
func HexHasLeadingZeros(digest string, difficulty int) bool {
	if difficulty > len(digest) {
		return false
	}
	for i := 0; i < difficulty; i++ {
		if digest[i] != '0' {
			return false
		}
	}
	return true
}

// BlockHash recomputes the hash of block from its content and nonce.
func BlockHash(block *model.Block) (string, error) {
	blockBytes, err := GetBlockBytes(block)
	if err != nil {
		return "", err
	}
	return HashWithNonce(blockBytes, block.Nonce), nil
}

func MatchDifficulty(block *model.Block, difficulty int) (bool, string) {
	digest, err := BlockHash(block)
	if err != nil {
		return false, ""
	}
	return HexHasLeadingZeros(digest, difficulty), digest
}

// VerifyBlock checks that the recorded hash matches the content and satisfies difficulty.
func VerifyBlock(block *model.Block, difficulty int) error {
	matched, digest := MatchDifficulty(block, difficulty)
	if digest != block.Hash {
		return ierrors.Errorf("block hash is invalid: recorded %s, computed %s", block.Hash, digest)
	}
	if !matched {
		return ierrors.Errorf("block hash %s does not satisfy difficulty %d", digest, difficulty)
	}
	return nil
}

type MineOptions struct {
	// Number of goroutines searching interleaved nonces. Values below 1 mean 1.
	Workers int
	// Hash attempts between two cancellation checks. 0 means DefaultCheckInterval.
	CheckInterval uint64
}

// Mine fills the nonce and hash of block given the current difficulty setting.
// Worker w tries nonces w, w+workers, w+2*workers... and the first valid hash wins.
// The search only ends when a hash is found or ctx is done. It returns the number of hashes computed.
func Mine(ctx context.Context, block *model.Block, difficulty int, opts MineOptions) (uint64, error) {
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	checkInterval := opts.CheckInterval
	if checkInterval == 0 {
		checkInterval = DefaultCheckInterval
	}

	blockBytes, err := GetBlockBytes(block)
	if err != nil {
		return 0, err
	}

	attempts := atomic.NewUint64(0)
	found := atomic.NewBool(false)
	var winningNonce uint64
	var winningHash string

	searchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(searchCtx)
	for w := 0; w < workers; w++ {
		start := uint64(w)
		g.Go(func() error {
			var tried uint64
			defer func() { attempts.Add(tried) }()

			for nonce := start; ; nonce += uint64(workers) {
				if tried%checkInterval == 0 {
					if found.Load() {
						return nil
					}
					if err := gctx.Err(); err != nil {
						return err
					}
				}
				tried++
				digest := HashWithNonce(blockBytes, nonce)
				if HexHasLeadingZeros(digest, difficulty) {
					if found.CompareAndSwap(false, true) {
						winningNonce, winningHash = nonce, digest
						cancel()
					}
					return nil
				}
			}
		})
	}
	err = g.Wait()

	if found.Load() {
		block.Nonce = winningNonce
		block.Hash = winningHash
		return attempts.Load(), nil
	}
	if err == nil {
		err = ctx.Err()
	}
	return attempts.Load(), ierrors.Join(ErrMiningInterrupted, err)
}
