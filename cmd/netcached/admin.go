package main

import (
	"fmt"
	"time"

	"github.com/netcache-project/netcache/pkg/config"
	"github.com/spf13/cobra"
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Offline maintenance operations against a closed registry",
}

var adminReinitCmd = &cobra.Command{
	Use:   "reinit",
	Short: "Drop all on-disk state and reopen an empty registry",
	Long: `reinit opens the registry, blocks new lock acquisitions, waits for
any outstanding ones to drain, then clears every part and the coordinate
cache before reopening a fresh current part.

Since this engine has no client-facing wire protocol of its own, admission
blocking and draining only matter within this one process's lifetime — there
is no separate running server to signal.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		drainTimeout, _ := cmd.Flags().GetDuration("drain-timeout")

		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		s, err := storageOpen(cfg)
		if err != nil {
			return fmt.Errorf("open registry %q: %w", cfg.Name, err)
		}
		defer s.Close()

		s.Block()
		defer s.Unblock()

		deadline := time.Now().Add(drainTimeout)
		for !s.CanDoExclusive() {
			if time.Now().After(deadline) {
				return fmt.Errorf("registry %q: outstanding blob locks did not drain within %s", cfg.Name, drainTimeout)
			}
			time.Sleep(50 * time.Millisecond)
		}

		if err := s.Reinitialize(); err != nil {
			return fmt.Errorf("reinitialize registry %q: %w", cfg.Name, err)
		}

		fmt.Printf("registry %q reinitialized\n", cfg.Name)
		return nil
	},
}

func init() {
	adminCmd.AddCommand(adminReinitCmd)
	adminReinitCmd.Flags().Duration("drain-timeout", 10*time.Second, "Maximum time to wait for outstanding blob locks to drain")
}
