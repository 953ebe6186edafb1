// Package schedule implements the recurring-crawl command.
package schedule

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vivbliss/catalogcrawl/cmd/common"
	"github.com/vivbliss/catalogcrawl/internal/api"
	"github.com/vivbliss/catalogcrawl/internal/config"
	"github.com/vivbliss/catalogcrawl/internal/schedule"
)

const stopTimeout = 30 * time.Second

// Command returns the schedule command.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run crawls on a cron schedule until interrupted",
		Long: `Schedule runs a full catalog crawl on the configured cron expression.
A crawl still in progress when the next slot arrives is not overlapped;
the slot is skipped.`,
		RunE: run,
	}

	cmd.Flags().String("cron", "", "cron expression (overrides schedule.spec)")
	cmd.Flags().Bool("immediate", false, "run one crawl immediately on startup")

	return cmd
}

func run(cmd *cobra.Command, _ []string) error {
	cfgPath, _ := cmd.Flags().GetString("config")
	debug, _ := cmd.Flags().GetBool("debug")
	cronSpec, _ := cmd.Flags().GetString("cron")
	immediate, _ := cmd.Flags().GetBool("immediate")

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if cronSpec != "" {
		cfg.Schedule.Spec = cronSpec
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

	manager := schedule.NewManager(log)
	err = manager.Register("crawl", cfg.Schedule.Spec, func(taskCtx context.Context) error {
		eng, sched, buildErr := common.NewCrawl(cfg, infra, log)
		if buildErr != nil {
			return buildErr
		}

		runErr := eng.Run(taskCtx)
		common.RenderProgress(cmd.OutOrStdout(), sched.ProgressReport())

		if errors.Is(runErr, context.Canceled) {
			return nil
		}
		return runErr
	})
	if err != nil {
		return err
	}

	if cfg.API.Enabled {
		// Scheduled mode has no single live scheduler to report on, so the
		// status server is limited to health and metrics here.
		server := api.New(cfg.API, emptySource{}, log)
		go func() {
			if serveErr := server.Start(ctx); serveErr != nil {
				log.Error("status server error", "error", serveErr.Error())
			}
		}()
	}

	manager.Start(ctx)
	log.Info("scheduled crawling started",
		"spec", cfg.Schedule.Spec,
		"start_url", cfg.Crawler.StartURL,
	)

	if immediate {
		if runErr := manager.RunNow("crawl"); runErr != nil {
			return runErr
		}
	}

	<-ctx.Done()
	manager.Stop(stopTimeout)
	return nil
}
