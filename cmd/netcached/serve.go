package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/netcache-project/netcache/pkg/config"
	"github.com/netcache-project/netcache/pkg/log"
	"github.com/netcache-project/netcache/pkg/metrics"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Open the registry and serve metrics/health endpoints until signaled",
	Long: `serve opens the configured registry, starts its background heartbeat
and garbage-collection loops, and exposes Prometheus metrics plus health and
readiness endpoints. It holds the registry open until interrupted.

It does not speak the NetCache wire protocol — that dispatcher lives in
front of this engine and is out of scope here.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		metrics.SetVersion(Version)
		metrics.RegisterComponent("storage", false, "opening")

		s, err := storageOpen(cfg)
		if err != nil {
			metrics.RegisterComponent("storage", false, err.Error())
			return fmt.Errorf("open registry %q: %w", cfg.Name, err)
		}
		defer s.Close()

		metrics.RegisterComponent("storage", true, "ready")
		log.Info(fmt.Sprintf("registry %q opened at %s", cfg.Name, cfg.Path))

		go func() {
			http.Handle("/metrics", metrics.Handler())
			http.HandleFunc("/health", metrics.HealthHandler())
			http.HandleFunc("/ready", metrics.ReadyHandler())
			http.HandleFunc("/live", metrics.LivenessHandler())
			if err := http.ListenAndServe(metricsAddr, nil); err != nil {
				log.Error(fmt.Sprintf("metrics server error: %v", err))
			}
		}()
		fmt.Printf("registry %q serving; metrics at http://%s/metrics\n", cfg.Name, metricsAddr)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh

		fmt.Println("shutting down...")
		metrics.RegisterComponent("storage", false, "closing")
		return nil
	},
}

func init() {
	serveCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "Address for the metrics/health HTTP server")
}
