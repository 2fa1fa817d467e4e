package visualize

import (
	"bytes"
	"fmt"
	"io"

	"github.com/bradleyjkemp/memviz"
	"github.com/iotaledger/hive.go/ierrors"

	"github.com/Luismorlan/btc_sim/model"
)

// We re-define the visualize model here because the ledger model carries key material
// and timestamps that only clutter the graph.
type input struct {
	txID  string
	index uint32
}

type output struct {
	address string
	amount  float64
}

type transaction struct {
	txID    string
	inputs  []input
	outputs []output
}

type block struct {
	height   int
	hash     string
	prevHash string
	miner    string
	nonce    uint64
	txs      []transaction
	next     *block
}

// The string of address and hash is just too long to render, instead we take only first 3 and last 3
// characters and replace the middle part with '...'. E.g. "abcdefghi" will be rendered as "abc...ghi"
func shortenString(s string) string {
	if len(s) < 9 {
		return s
	}
	return fmt.Sprintf("%s...%s", s[0:3], s[len(s)-3:])
}

func txToTx(tx *model.Transaction) transaction {
	t := transaction{
		txID: shortenString(tx.TxID),
	}

	for i := 0; i < len(tx.Inputs); i++ {
		in := tx.Inputs[i]
		t.inputs = append(t.inputs, input{txID: shortenString(in.TxID), index: in.Index})
	}

	for i := 0; i < len(tx.Outputs); i++ {
		out := tx.Outputs[i]
		t.outputs = append(t.outputs, output{address: shortenString(string(out.Address)), amount: out.Amount.ToBTC()})
	}
	return t
}

func blockToBlock(b *model.Block, height int, prevHash string) *block {
	n := &block{
		height:   height,
		hash:     shortenString(b.Hash),
		prevHash: shortenString(prevHash),
		miner:    shortenString(string(b.Miner)),
		nonce:    b.Nonce,
	}

	for i := 0; i < len(b.Txs); i++ {
		n.txs = append(n.txs, txToTx(&b.Txs[i]))
	}
	return n
}

// Link the chain from the oldest block, each block pointing at its successor.
func buildChain(chain []model.Block, from int) *block {
	var head, tail *block
	prevHash := ""
	if from > 0 {
		prevHash = chain[from-1].Hash
	}
	for i := from; i < len(chain); i++ {
		n := blockToBlock(&chain[i], i+1, prevHash)
		if head == nil {
			head = n
		} else {
			tail.next = n
		}
		tail = n
		prevHash = chain[i].Hash
	}
	return head
}

// Render writes a Graphviz dot graph of chain to w. Only the last depth blocks are drawn, 0 draws all of them.
func Render(w io.Writer, chain []model.Block, depth int) error {
	from := 0
	if depth > 0 && depth < len(chain) {
		from = len(chain) - depth
	}

	// memviz cannot report write failures, so render into memory first.
	buf := &bytes.Buffer{}
	head := buildChain(chain, from)
	memviz.Map(buf, &head)

	if _, err := w.Write(buf.Bytes()); err != nil {
		return ierrors.Wrap(err, "failed to write chain graph")
	}
	return nil
}
