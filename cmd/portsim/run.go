package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gsimoes/portsim/simulator"
	"github.com/gsimoes/portsim/store/sqlite"
)

func runCmd() *cobra.Command {
	var (
		configFile string
		dbPath     string
		ticks      int
		seed       int64
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the simulation",
		Long: `Run the simulation against a SQLite database. With --ticks the run is
headless and unpaced (N ticks back to back, then exit); without it the
simulation runs at the configured tick interval until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			config := simulator.DefaultConfig()
			if configFile != "" {
				data, err := os.ReadFile(configFile)
				if err != nil {
					return fmt.Errorf("failed to read config file: %w", err)
				}
				if err := json.Unmarshal(data, &config); err != nil {
					return fmt.Errorf("failed to parse config file: %w", err)
				}
			}
			if cmd.Flags().Changed("seed") {
				config.RandomSeed = seed
			}

			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

			db, err := sqlite.Open(dbPath)
			if err != nil {
				return err
			}
			defer db.Close()
			store := sqlite.NewStore(db)

			engine, err := simulator.NewEngine(config, store, logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			start := time.Now()
			if ticks > 0 {
				err = engine.RunTicks(ctx, ticks)
			} else {
				err = engine.Run(ctx)
			}
			if err != nil {
				return err
			}
			logger.Info("run finished",
				"ticks", engine.TickCount(),
				"elapsed", time.Since(start).Round(time.Millisecond),
			)

			results := map[string]any{
				"config":      engine.Config(),
				"virtualTime": engine.Now(),
				"metrics":     engine.Metrics(),
			}
			out, err := json.MarshalIndent(results, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal results: %w", err)
			}
			fmt.Println(string(out))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to JSON configuration file")
	cmd.Flags().StringVar(&dbPath, "db", "port.db", "Path to the SQLite database (\":memory:\" for ephemeral)")
	cmd.Flags().IntVarP(&ticks, "ticks", "n", 0, "Run exactly N unpaced ticks and exit (0 = paced, run until interrupted)")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Random seed override (0 = time-based)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	return cmd
}
