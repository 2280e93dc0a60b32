package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"snapsense-bot/config"
	telegram "snapsense-bot/internal/api"
	"snapsense-bot/internal/container"
	"snapsense-bot/internal/domain/entity"
	"snapsense-bot/internal/logutil"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:           "snapsense",
		Short:         "Telegram bot that runs photos through image-analysis models",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfgFile)
		},
	}
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file path (optional).")

	cmd.AddCommand(newTasksCmd())
	return cmd
}

func run(ctx context.Context, cfgFile string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logutil.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return err
	}

	bot, err := telegram.NewBot(cfg.Telegram.Token, cfg.Telegram.PollTimeout, cfg.Telegram.Debug, logger)
	if err != nil {
		return err
	}

	c, err := container.New(ctx, cfg, bot, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Warn("container_close_failed", "error", err.Error())
		}
	}()

	g, ctx := errgroup.WithContext(ctx)
	if cfg.HTTP.Addr != "" {
		g.Go(func() error {
			return telegram.Serve(ctx, cfg.HTTP.Addr, telegram.NewHTTPHandler(c.Metrics), logger)
		})
	}
	g.Go(func() error {
		return bot.Run(ctx, c.Conversation)
	})
	return g.Wait()
}

func newTasksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tasks",
		Short: "List analysis tasks in menu order",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tMODEL\tOUTPUT")
			for _, d := range entity.DefaultRegistry().All() {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", d.ID, d.Name, d.ModelName, d.Output)
			}
			return w.Flush()
		},
	}
}
