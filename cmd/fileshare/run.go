package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/devans0/fileshare-client/internal/config"
	"github.com/devans0/fileshare-client/internal/events"
	"github.com/devans0/fileshare-client/internal/identity"
	"github.com/devans0/fileshare-client/internal/logging"
	"github.com/devans0/fileshare-client/internal/metrics"
	"github.com/devans0/fileshare-client/internal/registry"
	"github.com/devans0/fileshare-client/internal/share"
	"github.com/devans0/fileshare-client/internal/transport"
)

// minSyncInterval floors the reconcile period so a tiny registry lease
// cannot turn the agent into a busy loop.
const minSyncInterval = 5 * time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the sharing agent",
	Long: `Start the agent: register shared files with the registry, keep them
synchronized in the background, and serve them to peers until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAgent()
	},
}

func runAgent() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	if err := logging.Init(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	}); err != nil {
		return fmt.Errorf("logging init error: %w", err)
	}
	defer logging.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ownerID := identity.LoadOrCreate(cfg.IdentityFile)
	logging.Info("fileshare agent starting",
		zap.String("owner_id", ownerID),
		zap.String("registry", cfg.RegistryURL),
		zap.Int("peer_port", cfg.PeerPort))

	if cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(cfg.MetricsAddr); err != nil {
				logging.Error("metrics server failed", zap.Error(err))
			}
		}()
	}

	reg := registry.NewHTTPClient(registry.HTTPConfig{BaseURL: cfg.RegistryURL})
	broadcaster := events.NewBroadcaster()

	engine := share.New(share.Config{
		OwnerID:     ownerID,
		Address:     cfg.PeerAddress,
		Port:        cfg.PeerPort,
		ShareDir:    cfg.ShareDir,
		Registry:    reg,
		Broadcaster: broadcaster,
	})

	server := transport.NewServer(net.JoinHostPort("", strconv.Itoa(cfg.PeerPort)),
		cfg.MaxTransfers, engine)
	if err := server.Start(ctx); err != nil {
		// Fatal to the transfer component only, and without a listener the
		// agent cannot fulfil the listings it registers.
		return err
	}

	engine.Start(ctx, syncInterval(ctx, cfg, reg))

	watcher, err := share.NewDirWatcher(engine, broadcaster)
	if err != nil {
		logging.Warn("directory watching unavailable", zap.Error(err))
	} else {
		watcher.Start()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logging.Info("shutting down", zap.String("signal", sig.String()))

	if watcher != nil {
		watcher.Stop()
	}
	engine.Stop()

	// Best-effort bulk de-listing so other peers stop seeing our files
	// immediately instead of waiting for the lease to lapse.
	dctx, dcancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := reg.Disconnect(dctx, ownerID); err != nil {
		logging.Warn("registry disconnect failed", zap.Error(err))
	}
	dcancel()

	cancel()
	server.Stop()
	return nil
}

// syncInterval derives the reconcile period from the registry's advisory
// lease (half the lease, floored) unless the configuration overrides it.
func syncInterval(ctx context.Context, cfg *config.Config, reg registry.Client) time.Duration {
	if cfg.SyncInterval > 0 {
		return time.Duration(cfg.SyncInterval) * time.Second
	}

	lctx, lcancel := context.WithTimeout(ctx, 10*time.Second)
	defer lcancel()
	lease, err := reg.LeaseSeconds(lctx)
	if err != nil || lease <= 0 {
		if err != nil {
			logging.Warn("could not fetch registry lease, using default interval", zap.Error(err))
		}
		return 30 * time.Second
	}

	interval := time.Duration(lease) * time.Second / 2
	if interval < minSyncInterval {
		interval = minSyncInterval
	}
	logging.Info("derived sync interval from registry lease",
		zap.Int("lease_seconds", lease), zap.Duration("interval", interval))
	return interval
}
