package main

import (
	"fmt"

	"github.com/netcache-project/netcache/pkg/config"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Open the registry read-only and print tree/part statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")

		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg.ReadOnly = true

		s, err := storageOpen(cfg)
		if err != nil {
			return fmt.Errorf("open registry %q: %w", cfg.Name, err)
		}
		defer s.Close()

		height, values, nodes := s.CacheStats()
		fmt.Printf("registry:     %s\n", cfg.Name)
		fmt.Printf("tree height:  %d\n", height)
		fmt.Printf("tree values:  %d\n", values)
		fmt.Printf("tree nodes:   %d\n", nodes)

		count, blobsByPart := s.PartStats()
		fmt.Printf("parts:        %d\n", count)
		for part, n := range blobsByPart {
			fmt.Printf("  part %d: %d blobs\n", part, n)
		}
		return nil
	},
}
