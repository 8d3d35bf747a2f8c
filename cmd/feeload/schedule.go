package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/gyeh/feeschedule/internal/exitcode"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run ingest on a cron schedule until interrupted",
	RunE:  runSchedule,
}

var runNow bool

func init() {
	addIngestFlags(scheduleCmd)
	f := scheduleCmd.Flags()
	f.StringVar(&cfg.CronSpec, "cron", "0 3 * * 1", "Standard 5-field cron expression")
	f.BoolVar(&runNow, "now", false, "Also run once immediately at startup")
	rootCmd.AddCommand(scheduleCmd)
}

func runSchedule(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cfg.ValidateWithDSN(); err != nil {
		return fail(exitcode.ConfigError, err)
	}

	pool, err := openPool(ctx, cfg.Migrate)
	if err != nil {
		return err
	}
	defer pool.Close()

	job := func() {
		summary, err := ingestOnce(ctx, pool)
		if err != nil {
			log.Error().Err(err).Msg("scheduled run failed")
			return
		}
		if err := summaryError(summary); err != nil {
			log.Warn().Err(err).Msg("scheduled run incomplete")
		}
	}

	cronLog := cron.PrintfLogger(&log)
	c := cron.New(
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)
	id, err := c.AddFunc(cfg.CronSpec, job)
	if err != nil {
		return fail(exitcode.ConfigError, err)
	}
	if runNow {
		c.Entry(id).WrappedJob.Run()
	}

	c.Start()
	log.Info().Str("cron", cfg.CronSpec).Int("jobs", len(c.Entries())).Msg("scheduler started")

	<-ctx.Done()
	log.Info().Msg("scheduler stopping, waiting for a running ingest to finish")
	stopped := c.Stop()
	<-stopped.Done()
	return nil
}
