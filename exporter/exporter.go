// Package exporter writes the state of a full node to disk: the blockchain as JSON,
// the UTXO set as CSV and optionally a Graphviz rendering of the chain.
package exporter

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/iotaledger/hive.go/ierrors"

	"github.com/Luismorlan/btc_sim/model"
	"github.com/Luismorlan/btc_sim/utils"
	"github.com/Luismorlan/btc_sim/visualize"
)

const (
	ChainFile = "chain.json"
	UTXOFile  = "utxos.csv"
	DotFile   = "chain.dot"
)

var utxoHeader = []string{"txid", "vout", "address", "amount"}

// Source is the read-only state being exported.
type Source interface {
	Chain() []model.Block
	UTXOs() ([]model.UTXO, error)
}

// WriteChain writes blocks as an indented JSON array, oldest block first.
func WriteChain(w io.Writer, blocks []model.Block) error {
	views := make([]utils.BlockJSON, 0, len(blocks))
	for i := range blocks {
		views = append(views, utils.BlockToJSON(&blocks[i]))
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(views); err != nil {
		return ierrors.Wrap(err, "failed to write chain")
	}
	return nil
}

// WriteUTXOs writes one CSV row per unspent output, in the given order.
func WriteUTXOs(w io.Writer, utxos []model.UTXO) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(utxoHeader); err != nil {
		return ierrors.Wrap(err, "failed to write utxo header")
	}
	for _, utxo := range utxos {
		record := []string{
			utxo.TxID,
			strconv.FormatUint(uint64(utxo.Index), 10),
			string(utxo.Address),
			strconv.FormatFloat(utxo.Amount.ToBTC(), 'f', -1, 64),
		}
		if err := writer.Write(record); err != nil {
			return ierrors.Wrapf(err, "failed to write utxo %s", utxo.Ref())
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return ierrors.Wrap(err, "failed to flush utxos")
	}
	return nil
}

type Exporter struct {
	// Directory the files are written to. Empty means the working directory.
	Dir string
	// Also render the chain as a Graphviz dot graph.
	Dot bool
}

// Export writes the chain and the UTXO set of source, replacing earlier exports.
// It returns the paths of the written files.
func (e Exporter) Export(source Source) ([]string, error) {
	if e.Dir != "" {
		if err := os.MkdirAll(e.Dir, 0o755); err != nil {
			return nil, ierrors.Wrapf(err, "failed to create export directory %s", e.Dir)
		}
	}

	chain := source.Chain()
	utxos, err := source.UTXOs()
	if err != nil {
		return nil, ierrors.Wrap(err, "failed to read utxos")
	}

	written := make([]string, 0, 3)
	chainPath := filepath.Join(e.Dir, ChainFile)
	if err := writeFile(chainPath, func(w io.Writer) error { return WriteChain(w, chain) }); err != nil {
		return written, err
	}
	written = append(written, chainPath)

	utxoPath := filepath.Join(e.Dir, UTXOFile)
	if err := writeFile(utxoPath, func(w io.Writer) error { return WriteUTXOs(w, utxos) }); err != nil {
		return written, err
	}
	written = append(written, utxoPath)

	if e.Dot {
		dotPath := filepath.Join(e.Dir, DotFile)
		if err := writeFile(dotPath, func(w io.Writer) error { return visualize.Render(w, chain, 0) }); err != nil {
			return written, err
		}
		written = append(written, dotPath)
	}

	return written, nil
}

func writeFile(path string, write func(w io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return ierrors.Wrapf(err, "failed to create %s", path)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = ierrors.Wrapf(closeErr, "failed to close %s", path)
		}
	}()

	if err := write(f); err != nil {
		return ierrors.Wrapf(err, "failed to write %s", path)
	}
	return nil
}
