package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/solwire/solwire/pkg/client"
	"github.com/solwire/solwire/pkg/config"
	"github.com/solwire/solwire/pkg/logger"
	"github.com/solwire/solwire/pkg/rpc"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	var configFile, logLevel string

	root := &cobra.Command{
		Use:   "solwire",
		Short: "Solwire - headless Solana wallet connector client",
		Long: `Solwire is a headless state client for Solana wallet connections.
It discovers installed wallets, manages the connection lifecycle and exposes
an observable state snapshot for any UI layer to render.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := logLevel
			// An explicit --log-level flag wins over the config file.
			if !cmd.Flags().Changed("log-level") && configFile != "" {
				if cfg, err := config.Load(configFile); err == nil && cfg.Observability.LogLevel != "" {
					level = cfg.Observability.LogLevel
				}
			}
			return logger.Init(logger.Config{Level: level, Encoding: "console"})
		},
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to YAML configuration file (optional)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "error", "Log level (debug, info, warn, error)")

	// Version command
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Solwire v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	// Clusters command to show the configured network set
	root.AddCommand(&cobra.Command{
		Use:   "clusters",
		Short: "List configured clusters",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configFile)
			if err != nil {
				return err
			}
			for _, cl := range cfg.Clusters {
				marker := " "
				if cl.ID == cfg.DefaultCluster {
					marker = "*"
				}
				fmt.Printf("%s %-18s %-10s %s\n", marker, cl.ID, cl.Label, cl.Endpoint)
			}
			return nil
		},
	})

	// Health command probes each configured cluster endpoint over RPC
	var healthTimeout time.Duration
	healthCmd := &cobra.Command{
		Use:   "health",
		Short: "Check RPC health of the configured clusters",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configFile)
			if err != nil {
				return err
			}
			return checkClusterHealth(cfg, healthTimeout)
		},
	}
	healthCmd.Flags().DurationVar(&healthTimeout, "timeout", 10*time.Second, "Per-cluster health check timeout")
	root.AddCommand(healthCmd)

	// Doctor command builds a client and prints its diagnostic summary
	root.AddCommand(&cobra.Command{
		Use:   "doctor",
		Short: "Build a client and print its diagnostic state",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configFile)
			if err != nil {
				return err
			}
			return runDoctor(cfg)
		},
	})

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig loads a YAML config file when given, defaults otherwise.
func loadConfig(filename string) (*config.Config, error) {
	if filename == "" {
		return config.NewDefaultConfig(), nil
	}
	return config.Load(filename)
}

// checkClusterHealth probes each cluster endpoint and reports per-cluster
// status. A failing cluster does not abort the remaining probes.
func checkClusterHealth(cfg *config.Config, timeout time.Duration) error {
	log := logger.Get().With(zap.String("component", "solwire-cli"))

	failures := 0
	for _, cl := range cfg.Clusters {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)

		rpcCfg := rpc.DefaultConfig(cl.Endpoint)
		rpcCfg.RequestTimeout = timeout
		c, err := rpc.NewClient(rpcCfg, log)
		if err != nil {
			cancel()
			return err
		}

		start := time.Now()
		err = c.GetHealth(ctx)
		elapsed := time.Since(start)

		if err != nil {
			failures++
			fmt.Printf("✗ %-18s %s (%v)\n", cl.ID, cl.Endpoint, err)
			log.Warn("cluster health check failed",
				zap.String("cluster", cl.ID), zap.Error(err))
		} else {
			version, verr := c.GetVersion(ctx)
			if verr == nil {
				fmt.Printf("✓ %-18s %s (%.0fms, solana-core %s)\n",
					cl.ID, cl.Endpoint, float64(elapsed.Milliseconds()), version.SolanaCore)
			} else {
				fmt.Printf("✓ %-18s %s (%.0fms)\n",
					cl.ID, cl.Endpoint, float64(elapsed.Milliseconds()))
			}
		}

		c.Close()
		cancel()
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d clusters unhealthy", failures, len(cfg.Clusters))
	}
	return nil
}

// runDoctor constructs a client with the given configuration and dumps its
// health summary and debug counters as JSON.
func runDoctor(cfg *config.Config) error {
	c, err := client.New(cfg, client.Options{})
	if err != nil {
		return fmt.Errorf("failed to build client: %w", err)
	}
	defer c.Close()

	// The collector inventory is only meaningful when metrics are on.
	var collectors []string
	if cfg.Observability.EnableMetrics {
		if families, gerr := prometheus.DefaultGatherer.Gather(); gerr == nil {
			for _, mf := range families {
				collectors = append(collectors, mf.GetName())
			}
		}
	}

	report := struct {
		Health     client.HealthStatus `json:"health"`
		Metrics    client.DebugMetrics `json:"metrics"`
		Collectors []string            `json:"collectors,omitempty"`
		Config     *config.Config      `json:"config"`
	}{
		Health:     c.Health(),
		Metrics:    c.DebugMetrics(),
		Collectors: collectors,
		Config:     cfg,
	}

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
