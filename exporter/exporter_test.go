package exporter

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/iotaledger/hive.go/ierrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Luismorlan/btc_sim/model"
)

type testSource struct {
	chain []model.Block
	utxos []model.UTXO
	err   error
}

func (s testSource) Chain() []model.Block {
	return s.chain
}

func (s testSource) UTXOs() ([]model.UTXO, error) {
	return s.utxos, s.err
}

func createTestSource() testSource {
	tx := model.Transaction{
		TxID:      "ab12",
		Inputs:    []model.Input{{TxID: "genesis1", Index: 0}},
		Outputs:   []model.Output{{Address: "bob", Amount: 30_000_000}, {Address: "alice", Amount: 119_990_000}},
		Timestamp: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		PublicKey: []byte{0x01, 0x02},
		Signature: []byte{0x03},
	}
	return testSource{
		chain: []model.Block{{
			Timestamp: time.Date(2024, 3, 1, 12, 0, 1, 0, time.UTC),
			Txs:       []model.Transaction{tx},
			Miner:     "miner",
			Nonce:     42,
			Hash:      "000f",
		}},
		utxos: []model.UTXO{
			{TxID: "ab12", Index: 0, Address: "bob", Amount: 30_000_000},
			{TxID: "ab12", Index: 1, Address: "alice", Amount: 119_990_000},
		},
	}
}

func TestWriteUTXOs(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, WriteUTXOs(buf, createTestSource().utxos))
	assert.Equal(t, "txid,vout,address,amount\nab12,0,bob,0.3\nab12,1,alice,1.1999\n", buf.String())

	buf.Reset()
	require.NoError(t, WriteUTXOs(buf, nil))
	assert.Equal(t, "txid,vout,address,amount\n", buf.String())
}

func TestWriteChain(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, WriteChain(buf, createTestSource().chain))

	var blocks []map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &blocks))
	require.Len(t, blocks, 1)
	assert.Equal(t, "000f", blocks[0]["hash"])
	assert.Equal(t, "miner", blocks[0]["miner"])
	assert.Equal(t, float64(42), blocks[0]["nonce"])

	txs := blocks[0]["tx"].([]interface{})
	require.Len(t, txs, 1)
	tx := txs[0].(map[string]interface{})
	assert.Equal(t, "ab12", tx["txid"])
	assert.Equal(t, "0102", tx["public_key"])
	outputs := tx["outputs"].([]interface{})
	assert.Equal(t, map[string]interface{}{"address": "bob", "amount": 0.3}, outputs[0])

	// Two space indentation.
	assert.Contains(t, buf.String(), "\n  {\n    \"hash\": \"000f\"")
}

func TestWriteEmptyChain(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, WriteChain(buf, nil))
	assert.Equal(t, "[]\n", buf.String())
}

func TestExport(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	e := Exporter{Dir: dir, Dot: true}

	paths, err := e.Export(createTestSource())
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, ChainFile),
		filepath.Join(dir, UTXOFile),
		filepath.Join(dir, DotFile),
	}, paths)

	first := make(map[string][]byte)
	for _, p := range paths {
		first[p], err = os.ReadFile(p)
		require.NoError(t, err)
		assert.NotEmpty(t, first[p])
	}

	// Exporting unchanged state yields identical files.
	_, err = e.Export(createTestSource())
	require.NoError(t, err)
	for _, p := range paths {
		again, err := os.ReadFile(p)
		require.NoError(t, err)
		assert.Equal(t, first[p], again)
	}
}

func TestExportWithoutDot(t *testing.T) {
	dir := t.TempDir()
	paths, err := Exporter{Dir: dir}.Export(createTestSource())
	require.NoError(t, err)
	assert.Len(t, paths, 2)
	assert.NoFileExists(t, filepath.Join(dir, DotFile))
}

func TestExportErrors(t *testing.T) {
	failing := ierrors.New("store failure")
	source := createTestSource()
	source.err = failing
	_, err := Exporter{Dir: t.TempDir()}.Export(source)
	assert.True(t, ierrors.Is(err, failing))

	// The export directory is a regular file.
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	_, err = Exporter{Dir: file}.Export(createTestSource())
	assert.Error(t, err)
}
