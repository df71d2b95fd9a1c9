package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/avask/harvester/internal/config"
	"github.com/avask/harvester/internal/coordinator"
	"github.com/avask/harvester/internal/fetch"
	"github.com/avask/harvester/internal/harvest"
	"github.com/avask/harvester/internal/queue/memory"
	"github.com/avask/harvester/internal/sink"
	"github.com/avask/harvester/internal/strategy"
	"github.com/avask/harvester/internal/worker"
)

// newTickersCmd creates the 'tickers' subcommand: one task per ticker symbol,
// each fetched from the configured endpoint and appended to its CSV.
func newTickersCmd() *cobra.Command {
	var (
		mode       string
		workers    int
		count      int
		outDir     string
		tickerConf string
	)

	cmd := &cobra.Command{
		Use:   "tickers",
		Short: "Harvest ticker data",
		Long: `Fetches one CSV endpoint per ticker symbol named in the ticker
config file and appends each response to <outdir>/<ticker>.csv.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTickers(cmd, mode, workers, count, outDir, tickerConf)
		},
	}

	cmd.Flags().StringVarP(&mode, "mode", "m", string(harvest.ModeSequential), "execution mode: sync or async")
	cmd.Flags().IntVarP(&workers, "workers", "p", 1, "worker count (never above the CPU count unless clamped otherwise)")
	cmd.Flags().IntVarP(&count, "count", "c", 10, "count of tickers to fetch")
	cmd.Flags().StringVarP(&outDir, "outdir", "o", "tickerdata", "output directory")
	cmd.Flags().StringVarP(&tickerConf, "tickerconf", "t", "", "ticker config file (required)")
	_ = cmd.MarkFlagRequired("tickerconf")
	return cmd
}

func runTickers(cmd *cobra.Command, modeFlag string, workers, count int, outDir, tickerConf string) error {
	cfg, logger, cleanup, err := setup()
	if err != nil {
		return err
	}
	defer cleanup()

	tf, err := config.LoadTickers(tickerConf)
	if err != nil {
		return configErr(err)
	}

	if !cmd.Flags().Changed("mode") && cfg.Harvest.Mode != "" {
		modeFlag = cfg.Harvest.Mode
	}
	mode, err := harvest.ParseMode(modeFlag)
	if err != nil {
		return configErr(err)
	}
	clamp := harvest.ClampCeilCPU
	if cfg.Harvest.ClampToCPU != "" {
		if clamp, err = harvest.ParseClamp(cfg.Harvest.ClampToCPU); err != nil {
			return configErr(err)
		}
	}

	if count <= 0 {
		return &exitError{code: exitNoItems, err: fmt.Errorf("no tickers to harvest")}
	}
	if count > len(tf.Tickers) {
		logger.Info("clamping ticker count to configured list",
			zap.Int("requested", count),
			zap.Int("available", len(tf.Tickers)),
		)
		count = len(tf.Tickers)
	}
	items := tf.Tickers[:count]

	snk, err := sink.New(outDir, logger)
	if err != nil {
		return configErr(err)
	}
	strat, err := strategy.NewTicker(strategy.TickerConfig{
		BaseURL: tf.BaseURL,
		Params:  tf.Params,
	}, snk)
	if err != nil {
		return configErr(err)
	}
	fetcher, err := fetch.New(fetch.Config{
		UserAgent:   cfg.Harvest.UserAgent,
		Timeout:     cfg.RequestTimeout(),
		MaxParallel: cfg.Harvest.MaxInFlight,
	}, logger)
	if err != nil {
		return fmt.Errorf("init fetcher: %w", err)
	}

	logger.Info("processing tickers",
		zap.String("mode", string(mode)),
		zap.Int("tickers", len(items)),
	)

	queue := memory.NewQueue(cfg.Harvest.QueueDepth)
	factory := func(id string, results chan<- harvest.StatusRecord) coordinator.Runner {
		return worker.New(id, queue, fetcher, strat, results, worker.Config{
			Mode:        mode,
			MaxInFlight: cfg.Harvest.MaxInFlight,
		}, logger)
	}
	coord := coordinator.New(queue, factory, coordinator.Config{
		Workers:           workers,
		Clamp:             clamp,
		CompletionTimeout: cfg.CompletionTimeout(),
	}, logger)

	if _, err := coord.Run(cmd.Context(), items); err != nil {
		if errors.Is(err, coordinator.ErrNoItems) {
			return &exitError{code: exitNoItems, err: err}
		}
		return fmt.Errorf("run ticker harvest: %w", err)
	}
	return nil
}
