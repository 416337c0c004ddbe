// Command rendezvous runs the well-known meeting point peers register with
// when they cannot find each other over mDNS.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/baderanaas/swapbytes/pkg/network"
	logging "github.com/ipfs/go-log/v2"
	"github.com/libp2p/go-libp2p"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const defaultListen = "/ip4/0.0.0.0/tcp/62649"

var (
	listenAddrs []string
	logLevel    string
)

var rootCmd = &cobra.Command{
	Use:           "rendezvous",
	Short:         "Run the swapbytes rendezvous point",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	rootCmd.Flags().StringSliceVar(&listenAddrs, "listen", []string{defaultListen}, "Listen multiaddrs")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	level, err := logging.LevelFromString(logLevel)
	if err != nil {
		return err
	}
	logging.SetupLogging(logging.Config{
		Format:          logging.ColorizedOutput,
		Level:           logging.LevelError,
		SubsystemLevels: map[string]logging.LogLevel{"rendezvous": level},
		Stderr:          true,
	})
	logger := logging.Logger("rendezvous").Desugar()
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	priv, err := network.RendezvousIdentity()
	if err != nil {
		return err
	}
	h, err := libp2p.New(libp2p.Identity(priv), libp2p.ListenAddrStrings(listenAddrs...))
	if err != nil {
		return fmt.Errorf("failed to create libp2p host: %w", err)
	}
	kad, err := network.NewDHT(ctx, h)
	if err != nil {
		return multierr.Append(fmt.Errorf("failed to start DHT: %w", err), h.Close())
	}

	logger.Info("rendezvous point running", zap.Stringer("peer", h.ID()))
	for _, addr := range h.Addrs() {
		fmt.Printf("%s/p2p/%s\n", addr, h.ID())
	}

	<-ctx.Done()
	logger.Info("shutting down")
	return multierr.Combine(kad.Close(), h.Close())
}
