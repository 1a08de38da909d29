package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"coopwatch/services"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var jobCmd = &cobra.Command{
	Use:   "job <name>",
	Short: "Run one daily job now",
	Long: `Run a daily job (health_calendar, water_summary) outside its trigger time.
A job that already completed today is not repeated. midnight_reset clears the
cooldown state of the serving process and only runs inside serve.`,
	Args: cobra.ExactArgs(1),
	RunE: runJob,
}

func init() {
	rootCmd.AddCommand(jobCmd)
}

func runJob(cmd *cobra.Command, args []string) error {
	name := args[0]
	if err := checkCLIJob(name); err != nil {
		return err
	}

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := buildApp(cfg, logger, false)
	if err != nil {
		return err
	}
	defer a.close()
	defer a.notifier.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ran, err := a.scheduler.RunJob(ctx, name)
	if err != nil {
		return fmt.Errorf("job %s failed (available: %s): %w", name, strings.Join(a.scheduler.JobNames(), ", "), err)
	}

	if !ran {
		logger.Info("Job already completed today", zap.String("job", name))
		return nil
	}
	logger.Info("Job completed", zap.String("job", name))
	return nil
}

// checkCLIJob rejects jobs whose effect lives only in the serving process
func checkCLIJob(name string) error {
	if name == services.JobMidnightReset {
		return fmt.Errorf("%s resets in-process cooldown state and only runs inside serve", name)
	}
	return nil
}
