package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/devans0/fileshare-client/internal/config"
	"github.com/devans0/fileshare-client/internal/logging"
	"github.com/devans0/fileshare-client/internal/registry"
	"github.com/devans0/fileshare-client/internal/transport"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the registry for shared files",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}
		if err := initQuietLogging(cfg); err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		reg := registry.NewHTTPClient(registry.HTTPConfig{BaseURL: cfg.RegistryURL})
		listings, err := reg.Search(ctx, args[0])
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}
		if len(listings) == 0 {
			fmt.Println("No files found.")
			return nil
		}
		for _, l := range listings {
			fmt.Printf("%8d  %s\n", l.ID, l.Name)
		}
		return nil
	},
}

var fetchCmd = &cobra.Command{
	Use:   "fetch <listing-id>",
	Short: "Download a shared file from its owner",
	Long: `Resolve the owner of a listing through the registry, then download the
file directly from that peer into the download directory.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid listing id %q", args[0])
		}

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}
		if err := initQuietLogging(cfg); err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		reg := registry.NewHTTPClient(registry.HTTPConfig{BaseURL: cfg.RegistryURL})
		owner, err := reg.Owner(ctx, id)
		if err != nil {
			return fmt.Errorf("owner lookup failed: %w", err)
		}

		path, err := transport.Fetch(ctx, owner.Address, owner.Port, owner.Name, cfg.DownloadDir)
		if err != nil {
			return err
		}
		fmt.Printf("Saved to %s\n", path)
		return nil
	},
}

// initQuietLogging keeps one-shot commands from drowning their output in
// agent-style logs unless the user raised the level explicitly.
func initQuietLogging(cfg *config.Config) error {
	level := cfg.LogLevel
	if level == "info" {
		level = "warn"
	}
	return logging.Init(logging.Config{Level: level, Format: "console", File: cfg.LogFile})
}
