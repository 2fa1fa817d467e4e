package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/iotaledger/hive.go/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Luismorlan/btc_sim/config"
	"github.com/Luismorlan/btc_sim/exporter"
	"github.com/Luismorlan/btc_sim/full_node"
	"github.com/Luismorlan/btc_sim/signer"
)

func createTestDriver(t *testing.T, dir string) (*Driver, *bytes.Buffer) {
	c := config.Default()
	c.Difficulty = 1
	c.Signer = signer.SchemeSim

	s := signer.NewSimSigner(3)
	logger := log.NewLogger()
	node, err := full_node.NewFullNode(c, s, logger)
	require.NoError(t, err)
	t.Cleanup(node.Shutdown)

	out := &bytes.Buffer{}
	return NewDriver(node, s, exporter.Exporter{Dir: dir}, out, logger), out
}

func TestDemo(t *testing.T) {
	dir := t.TempDir()
	d, out := createTestDriver(t, dir)

	require.NoError(t, runDemo(context.Background(), d, 1.5))

	output := out.String()
	assert.Contains(t, output, "alice: 1.1999 BTC")
	assert.Contains(t, output, "bob: 0.3 BTC")
	assert.Contains(t, output, "double spend of genesis1:0 sending 1 BTC to bob rejected")
	assert.Contains(t, output, "alice: 0.5998 BTC")
	assert.Contains(t, output, "bob: 0.7 BTC")
	assert.Contains(t, output, "carol: 0.2 BTC")
	assert.Contains(t, output, "written "+filepath.Join(dir, exporter.ChainFile))
	assert.Contains(t, output, "written "+filepath.Join(dir, exporter.UTXOFile))
	assert.Equal(t, 2, d.node.Height())
}

func TestRepl(t *testing.T) {
	d, out := createTestDriver(t, t.TempDir())

	in := strings.NewReader("new_wallet alice\ngenesis alice 1\n\nbogus\ntransfer alice bob 2\nbalance alice\nquit\nbalance alice\n")
	require.NoError(t, d.Repl(context.Background(), in))

	output := out.String()
	assert.Contains(t, output, "genesis genesis1:0: 1 BTC to alice")
	assert.Contains(t, output, `error: unknown command "bogus"`)
	assert.Contains(t, output, "insufficient funds")
	// Nothing after quit is executed.
	assert.Equal(t, 1, strings.Count(output, "alice: 1 BTC"))
}

func TestHandleErrors(t *testing.T) {
	d, _ := createTestDriver(t, t.TempDir())
	ctx := context.Background()

	require.NoError(t, d.Run(ctx, "new_wallet alice"))
	assert.Error(t, d.Run(ctx, "new_wallet alice"))
	assert.Error(t, d.Run(ctx, "transfer nobody alice 1"))
	assert.Error(t, d.Run(ctx, "stop"))
}

func TestBackgroundMining(t *testing.T) {
	d, _ := createTestDriver(t, t.TempDir())
	ctx := context.Background()

	require.NoError(t, d.Run(ctx, "new_wallet alice"))
	require.NoError(t, d.Run(ctx, "genesis alice 1"))
	require.NoError(t, d.Run(ctx, "start miner"))
	assert.Error(t, d.Run(ctx, "start miner"))

	require.NoError(t, d.Run(ctx, "transfer alice bob 0.5"))
	require.Eventually(t, func() bool {
		return d.node.Height() == 1
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, d.Run(ctx, "stop"))
	assert.Empty(t, d.node.Mempool())
}
