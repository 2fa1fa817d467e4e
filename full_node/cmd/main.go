package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/log"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/Luismorlan/btc_sim/config"
	"github.com/Luismorlan/btc_sim/exporter"
	"github.com/Luismorlan/btc_sim/full_node"
	"github.com/Luismorlan/btc_sim/metrics"
	"github.com/Luismorlan/btc_sim/signer"
)

var (
	configPath  *string
	interactive *bool
	exportDir   *string
	metricsBind *string
	dot         *bool
)

func init() {
	configPath = flag.String("config", "", "path to the ledger config, defaults are used when empty")
	interactive = flag.Bool("interactive", false, "read commands from stdin instead of running the demo")
	exportDir = flag.String("export-dir", "", "directory for chain.json and utxos.csv, overrides the config")
	metricsBind = flag.String("metrics-bind", "", "address to serve prometheus metrics on, disabled when empty")
	dot = flag.Bool("dot", false, "also export the chain as a Graphviz dot graph")
}

func loadConfig() (config.AppConfig, error) {
	c := config.Default()
	if *configPath != "" {
		var err error
		if c, err = config.Load(*configPath); err != nil {
			return c, err
		}
	}
	if flag.CommandLine.Changed("export-dir") {
		c.ExportDir = *exportDir
	}
	return c, nil
}

func serveMetrics(ctx context.Context, logger log.Logger, collector *metrics.Collector, bindAddr string) error {
	collector.Registry.MustRegister(collectors.NewGoCollector())

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(collector.Registry, promhttp.HandlerOpts{EnableOpenMetrics: true}))
	server := &http.Server{Addr: bindAddr, Handler: mux, ReadTimeout: 5 * time.Second, WriteTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.LogError("failed to stop prometheus exporter", "err", err)
		}
	}()

	logger.LogInfof("You can now access the Prometheus exporter using: http://%s/metrics", bindAddr)
	if err := server.ListenAndServe(); err != nil && !ierrors.Is(err, http.ErrServerClosed) {
		return ierrors.Wrap(err, "prometheus exporter failed")
	}
	return nil
}

func main() {
	flag.Parse()
	logger := log.NewLogger()

	c, err := loadConfig()
	if err != nil {
		logger.LogFatalf("failed to load config: %v", err)
	}
	s, err := signer.New(c.Signer, c.SignerSeed)
	if err != nil {
		logger.LogFatalf("failed to create signer: %v", err)
	}
	collector := metrics.New()
	node, err := full_node.NewFullNode(c, s, logger, full_node.WithMetrics(collector))
	if err != nil {
		logger.LogFatalf("failed to create full node: %v", err)
	}
	defer node.Shutdown()
	logger.LogInfof("full node %s ready, signer %s, difficulty %d", node.ID(), s.Scheme(), node.Difficulty())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d := NewDriver(node, s, exporter.Exporter{Dir: c.ExportDir, Dot: *dot}, os.Stdout, logger)

	g, gctx := errgroup.WithContext(ctx)
	if *metricsBind != "" {
		g.Go(func() error {
			return serveMetrics(gctx, logger, collector, *metricsBind)
		})
	}
	g.Go(func() error {
		// Stop the metrics server once the driver is done.
		defer stop()
		if *interactive {
			return d.Repl(gctx, os.Stdin)
		}
		return runDemo(gctx, d, c.GenesisAmount)
	})

	if err := g.Wait(); err != nil && !ierrors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
