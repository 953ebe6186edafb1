// Package progress implements the progress command, which reports what the
// database holds per category.
package progress

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vivbliss/catalogcrawl/cmd/common"
	"github.com/vivbliss/catalogcrawl/internal/config"
	"github.com/vivbliss/catalogcrawl/internal/storage"
)

// Command returns the progress command.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "progress",
		Short: "Show persisted categories and product counts",
		RunE:  run,
	}
}

func run(cmd *cobra.Command, _ []string) error {
	cfgPath, _ := cmd.Flags().GetString("config")
	debug, _ := cmd.Flags().GetBool("debug")

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if !cfg.Persistence() {
		return fmt.Errorf("progress needs a database: set postgres.host")
	}

	log, err := common.NewLogger(cfg, debug)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := storage.NewPostgresConnection(ctx, cfg.Postgres, log)
	if err != nil {
		return err
	}
	defer db.Close()

	categories, err := storage.NewDirectoryRepository(db).List(ctx)
	if err != nil {
		return fmt.Errorf("list categories: %w", err)
	}
	counts, err := storage.NewProductRepository(db).CountByCategory(ctx)
	if err != nil {
		return fmt.Errorf("count products: %w", err)
	}

	if len(categories) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no categories stored yet")
		return nil
	}

	common.RenderCategoryCounts(cmd.OutOrStdout(), categories, counts)
	return nil
}
