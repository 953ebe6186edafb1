// Package crawl implements the one-shot crawl command.
package crawl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vivbliss/catalogcrawl/cmd/common"
	"github.com/vivbliss/catalogcrawl/internal/api"
	"github.com/vivbliss/catalogcrawl/internal/config"
)

// Command returns the crawl command.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl the catalog once and exit",
		Long: `Crawl walks the catalog from the configured start URL, finishing one
directory at a time, and exits when every discovered request has been
processed.`,
		RunE: run,
	}

	cmd.Flags().String("url", "", "start URL (overrides crawler.start_url)")

	return cmd
}

func run(cmd *cobra.Command, _ []string) error {
	cfgPath, _ := cmd.Flags().GetString("config")
	debug, _ := cmd.Flags().GetBool("debug")
	startURL, _ := cmd.Flags().GetString("url")

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if startURL != "" {
		cfg.Crawler.StartURL = startURL
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := common.NewLogger(cfg, debug)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	infra, err := common.NewInfra(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer infra.Close()

	eng, sched, err := common.NewCrawl(cfg, infra, log)
	if err != nil {
		return err
	}

	// The status server, when enabled, lives for the duration of the crawl.
	serverErr := make(chan error, 1)
	if cfg.API.Enabled {
		server := api.New(cfg.API, sched, log)
		serverCtx, cancelServer := context.WithCancel(ctx)
		defer cancelServer()
		go func() {
			serverErr <- server.Start(serverCtx)
		}()
	}

	runErr := eng.Run(ctx)

	if cfg.API.Enabled {
		stop()
		if err := <-serverErr; err != nil {
			log.Error("status server error", "error", err.Error())
		}
	}

	fmt.Fprintln(cmd.OutOrStdout())
	common.RenderProgress(cmd.OutOrStdout(), sched.ProgressReport())

	// An interrupt is a clean exit; the progress table above shows how far
	// the crawl got.
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}
