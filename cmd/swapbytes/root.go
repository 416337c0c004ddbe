package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/baderanaas/swapbytes/pkg/api"
	"github.com/baderanaas/swapbytes/pkg/cli"
	"github.com/baderanaas/swapbytes/pkg/config"
	"github.com/baderanaas/swapbytes/pkg/metrics"
	"github.com/baderanaas/swapbytes/pkg/network"
	"github.com/baderanaas/swapbytes/pkg/state"
	logging "github.com/ipfs/go-log/v2"
	ma "github.com/multiformats/go-multiaddr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const refreshInterval = 500 * time.Millisecond

var flags struct {
	config      string
	nickname    string
	listen      []string
	rendezvous  string
	downloadDir string
	metricsAddr string
	logLevel    string
	dataDir     string
}

var rootCmd = &cobra.Command{
	Use:   "swapbytes",
	Short: "Serverless peer-to-peer chat and file exchange",
	Long: `SwapBytes finds peers on the local network (mDNS) or through a rendezvous
point, chats with them over gossip rooms and direct topics, and swaps files
on request. Nicknames, ratings and the room list live in a shared DHT.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runPeer,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flags.config, "config", config.Path(), "Config file")
	f := rootCmd.Flags()
	f.StringVar(&flags.nickname, "nickname", "", "Nickname (prompted when unset)")
	f.StringSliceVar(&flags.listen, "listen", nil, "Listen multiaddrs (overrides config)")
	f.StringVar(&flags.rendezvous, "rendezvous", "", "Rendezvous point multiaddr with /p2p")
	f.StringVar(&flags.downloadDir, "download-dir", "", "Directory received files are written to")
	f.StringVar(&flags.metricsAddr, "metrics-addr", "", "Address of the status API, e.g. 127.0.0.1:9090")
	f.StringVar(&flags.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	f.StringVar(&flags.dataDir, "data-dir", "", "Directory holding the persistent identity")
}

// loadConfig applies the command line on top of the config file.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(flags.config)
	if err != nil {
		return cfg, err
	}
	if flags.nickname != "" {
		cfg.Node.Nickname = flags.nickname
	}
	if cmd.Flags().Changed("listen") {
		cfg.Node.Listen = flags.listen
	}
	if flags.rendezvous != "" {
		cfg.Discovery.Rendezvous = flags.rendezvous
	}
	if flags.downloadDir != "" {
		cfg.Exchange.DownloadDir = flags.downloadDir
	}
	if flags.metricsAddr != "" {
		cfg.API.Addr = flags.metricsAddr
	}
	if flags.logLevel != "" {
		cfg.Logging.Level = flags.logLevel
	}
	if flags.dataDir != "" {
		cfg.Node.DataDir = flags.dataDir
	}
	return cfg, nil
}

// setupLogging sends every subsystem to the log file so the terminal only
// shows the chat.
func setupLogging(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := logging.LevelFromString(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	lc := logging.Config{
		Format: logging.PlaintextOutput,
		Level:  logging.LevelError,
		SubsystemLevels: map[string]logging.LogLevel{
			"swapbytes": level,
		},
		File: cfg.File,
	}
	if cfg.File == "" {
		lc.Stderr = true
	}
	logging.SetupLogging(lc)
	return logging.Logger("swapbytes").Desugar(), nil
}

func runPeer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	in := bufio.NewScanner(os.Stdin)
	if cfg.Node.Nickname == "" {
		if cfg.Node.Nickname, err = cli.ReadNickname(in, os.Stdout); err != nil {
			return err
		}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := setupLogging(cfg.Logging)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	st := state.New(cfg.Node.Nickname)
	node, err := network.New(ctx, network.Config{
		DataDir:            cfg.Node.DataDir,
		Namespace:          cfg.Discovery.Namespace,
		EnableMDNS:         cfg.Discovery.MDNS,
		Rendezvous:         cfg.Discovery.Rendezvous,
		RendezvousInterval: cfg.Discovery.RendezvousInterval.Std(),
		QueryTimeout:       cfg.DHT.QueryTimeout.Std(),
		RequestTimeout:     cfg.Exchange.RequestTimeout.Std(),
		MaxResponseBytes:   cfg.Exchange.MaxResponseBytes,
		DownloadDir:        cfg.Exchange.DownloadDir,
		CommandBuffer:      cfg.Network.CommandBuffer,
		EventBuffer:        cfg.Network.EventBuffer,
		ConnLow:            cfg.Network.ConnLow,
		ConnHigh:           cfg.Network.ConnHigh,
		Logger:             logger,
		Metrics:            metrics.New(metrics.DefaultNamespace, registry),
	}, st)
	if err != nil {
		return err
	}
	defer func() {
		if err := node.Close(); err != nil {
			logger.Warn("error closing node", zap.Error(err))
		}
	}()
	node.Start()

	for _, s := range cfg.Node.Listen {
		addr, err := ma.NewMultiaddr(s)
		if err != nil {
			return err
		}
		if err := node.Client.StartListening(ctx, addr); err != nil {
			return fmt.Errorf("failed to listen on %s: %w", s, err)
		}
	}

	if cfg.API.Addr != "" {
		srv := api.NewServer(st, registry, logger)
		go func() {
			if err := srv.ListenAndServe(cfg.API.Addr); err != nil {
				logger.Error("status API stopped", zap.Error(err))
			}
		}()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(sctx)
		}()
	}

	fmt.Printf("Peer ID: %s\n", node.ID())
	err = cli.New(st, node.Client, in, os.Stdout, logger).Run(ctx, refreshInterval)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
