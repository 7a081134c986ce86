package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"options-flow-tracker/aggregation"
	"options-flow-tracker/app"
	"options-flow-tracker/config"
	"options-flow-tracker/helpers"
	"options-flow-tracker/models"
	"options-flow-tracker/status"
)

func main() {
	if err := rootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:           "options-flow-tracker",
		Short:         "Live options-flow aggregation with auto-trade status tracking",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configFile)
		},
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "YAML config file overriding env (default $CONFIG_FILE)")

	root.AddCommand(serveCmd(&configFile), statusCmd(&configFile))
	return root
}

func serveCmd(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Connect to the flow stream and serve the aggregated state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(*configFile)
		},
	}
}

func statusCmd(configFile *string) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Fetch the auto-trade snapshot once and print derived stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configFile)
			if err != nil {
				return err
			}
			logger := app.NewLogger(cfg.Log)
			client := status.NewClient(cfg.APIBaseURL, status.Options{Timeout: cfg.FetchTimeout()}, logger)
			return runStatus(cmd.Context(), client, aggregation.Thresholds{
				Bullish: cfg.Flow.BullishThreshold,
				Bearish: cfg.Flow.BearishThreshold,
			}, asJSON, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the derived view as JSON")
	return cmd
}

func runServe(configFile string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	logger := app.NewLogger(cfg.Log)
	return app.New(cfg, logger).Start()
}

type snapshotFetcher interface {
	FetchSnapshot(ctx context.Context) (*models.Snapshot, error)
}

func runStatus(ctx context.Context, fetcher snapshotFetcher, th aggregation.Thresholds, asJSON bool, out io.Writer) error {
	snap, err := fetcher.FetchSnapshot(ctx)
	if err != nil {
		return err
	}
	view := aggregation.Compute(nil, snap, th)

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]interface{}{
			"enabled":       snap.Enabled,
			"stats":         view.Stats,
			"pnlSeries":     view.PnlSeries,
			"openPositions": view.OpenPositions,
			"signals":       snap.Signals,
		})
	}

	state := "DISABLED"
	if snap.Enabled {
		state = "ENABLED"
	}
	fmt.Fprintf(out, "Auto-trade:     %s\n", state)
	fmt.Fprintf(out, "Total P&L:      %s\n", helpers.FormatUSD(view.Stats.TotalPnL))
	fmt.Fprintf(out, "Win rate:       %.1f%%\n", view.Stats.WinRate)
	fmt.Fprintf(out, "Closed trades:  %d\n", view.Stats.TotalTrades)
	fmt.Fprintf(out, "Open positions: %d\n", view.Stats.OpenPositions)
	for _, p := range view.OpenPositions {
		fmt.Fprintf(out, "  %-6s %s %.2f x%g  %+.1f%%\n", p.Symbol, p.OptionType, p.Strike, p.Contracts, p.PercentPnl)
	}
	return nil
}
