package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/avask/harvester/internal/coordinator"
	"github.com/avask/harvester/internal/fetch"
	"github.com/avask/harvester/internal/harvest"
	"github.com/avask/harvester/internal/queue/memory"
	"github.com/avask/harvester/internal/sink"
	"github.com/avask/harvester/internal/strategy"
	"github.com/avask/harvester/internal/worker"
)

// newImagesCmd creates the 'images' subcommand: one task per listing page,
// every matching image on the page fetched and written to the output dir.
func newImagesCmd() *cobra.Command {
	var (
		mode    string
		workers int
		pages   int
		outDir  string
	)

	cmd := &cobra.Command{
		Use:   "images",
		Short: "Harvest listing-page images",
		Long: `Fetches listing pages from the configured site, extracts the image
URLs matching the configured host filter, and downloads each image. The
requested page count clamps to what the site actually advertises.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runImages(cmd, mode, workers, pages, outDir)
		},
	}

	cmd.Flags().StringVarP(&mode, "mode", "m", string(harvest.ModeConcurrent), "execution mode: sync or async")
	cmd.Flags().IntVarP(&workers, "workers", "p", 4, "worker count (never below the CPU count unless clamped otherwise)")
	cmd.Flags().IntVarP(&pages, "count", "c", 0, "listing pages to harvest (0 uses the config value)")
	cmd.Flags().StringVarP(&outDir, "outdir", "o", "", "output directory (defaults to the config value)")
	return cmd
}

func runImages(cmd *cobra.Command, modeFlag string, workers, pages int, outDir string) error {
	cfg, logger, cleanup, err := setup()
	if err != nil {
		return err
	}
	defer cleanup()

	if !cmd.Flags().Changed("mode") && cfg.Harvest.Mode != "" {
		modeFlag = cfg.Harvest.Mode
	}
	mode, err := harvest.ParseMode(modeFlag)
	if err != nil {
		return configErr(err)
	}
	clamp := harvest.ClampFloorCPU
	if cfg.Harvest.ClampToCPU != "" {
		if clamp, err = harvest.ParseClamp(cfg.Harvest.ClampToCPU); err != nil {
			return configErr(err)
		}
	}
	if outDir == "" {
		outDir = cfg.Scraper.OutDir
	}
	if pages <= 0 {
		pages = cfg.Scraper.AmountPages
	}
	if pages <= 0 {
		return &exitError{code: exitNoItems, err: fmt.Errorf("no pages to harvest")}
	}

	snk, err := sink.New(outDir, logger)
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
	strat, err := strategy.NewImage(strategy.ImageConfig{
		BaseURL:    cfg.Scraper.URL,
		Item:       cfg.Scraper.Item,
		HostFilter: cfg.Scraper.HostFilter,
	}, fetcher, snk, logger)
	if err != nil {
		return configErr(err)
	}

	pages = strat.EffectivePageCount(cmd.Context(), pages)
	items := make([]string, 0, pages)
	for page := 1; page <= pages; page++ {
		items = append(items, strconv.Itoa(page))
	}
	logger.Info("processing listing pages",
		zap.String("mode", string(mode)),
		zap.Int("pages", len(items)),
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
		return fmt.Errorf("run image harvest: %w", err)
	}
	return nil
}
