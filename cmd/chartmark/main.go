package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/chartmark/chartmark"
	"github.com/chartmark/chartmark/core"
	"github.com/chartmark/chartmark/exchange"
	"github.com/chartmark/chartmark/internal/config"
	"github.com/chartmark/chartmark/logger/zerolog"
)

const dateLayout = "2006-01-02"

// Command line flags
var (
	configPath string

	// Download command flags
	pair       string
	days       int
	startDate  string
	endDate    string
	timeframe  string
	outputFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "chartmark",
		Short:   "Candlestick chart server with persistent drawings and alerts",
		Version: "1.0.0",
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultConfigPath, "Configuration file path")

	rootCmd.AddCommand(buildServeCmd())
	rootCmd.AddCommand(buildDownloadCmd())
	rootCmd.AddCommand(buildSummaryCmd())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the chart UI",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := buildApp(cmd)
			if err != nil {
				return err
			}
			return app.Run(cmd.Context())
		},
	}
}

func buildSummaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Print an overview of the stored drawings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := buildApp(cmd)
			if err != nil {
				return err
			}
			return app.Summary(cmd.Context())
		},
	}
}

func buildApp(cmd *cobra.Command) (*chartmark.App, error) {
	settings, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return chartmark.NewApp(cmd.Context(), settings)
}

func buildDownloadCmd() *cobra.Command {
	downloadCmd := &cobra.Command{
		Use:   "download",
		Short: "Download historical candle data to CSV",
		RunE:  runDownload,
	}

	downloadCmd.Flags().StringVarP(&pair, "pair", "p", "", "Trading pair (e.g. BTCUSDT)")
	downloadCmd.Flags().IntVarP(&days, "days", "d", 0, "Number of days to download (default 30 days)")
	downloadCmd.Flags().StringVarP(&startDate, "start", "s", "", "Start date (e.g. 2021-12-01)")
	downloadCmd.Flags().StringVarP(&endDate, "end", "e", "", "End date (e.g. 2021-12-31)")
	downloadCmd.Flags().StringVarP(&timeframe, "timeframe", "t", "", "Timeframe (e.g. 1h)")
	downloadCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file path (e.g. ./btc.csv)")

	downloadCmd.MarkFlagRequired("pair")
	downloadCmd.MarkFlagRequired("timeframe")
	downloadCmd.MarkFlagRequired("output")

	return downloadCmd
}

func runDownload(cmd *cobra.Command, _ []string) error {
	interval := core.Interval(timeframe)
	if !interval.Valid() {
		return fmt.Errorf("invalid timeframe: %s", timeframe)
	}

	log, err := zerolog.New("info", "2006-01-02 15:04:05", true, false)
	if err != nil {
		return err
	}

	feeder, err := exchange.NewBinance(cmd.Context(), log)
	if err != nil {
		return err
	}

	options, err := buildDownloadOptions()
	if err != nil {
		return err
	}

	return exchange.NewDownloader(feeder, log).Download(
		cmd.Context(),
		pair,
		interval,
		outputFile,
		options...,
	)
}

func buildDownloadOptions() ([]exchange.DownloadOption, error) {
	var options []exchange.DownloadOption

	if days > 0 {
		options = append(options, exchange.WithDays(days))
	}

	if startDate != "" || endDate != "" {
		if startDate == "" || endDate == "" {
			return nil, fmt.Errorf("start and end dates must be provided together")
		}

		start, err := time.Parse(dateLayout, startDate)
		if err != nil {
			return nil, fmt.Errorf("invalid start date format: %w", err)
		}

		end, err := time.Parse(dateLayout, endDate)
		if err != nil {
			return nil, fmt.Errorf("invalid end date format: %w", err)
		}

		options = append(options, exchange.WithWindow(start, end))
	}

	return options, nil
}
