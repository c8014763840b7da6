package cli

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/halcyon-ai/graphrag/internal/jobs"
	"github.com/halcyon-ai/graphrag/internal/telemetry"
)

// WorkerCmd returns the worker command
func WorkerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run the background ingestion worker",
		Long:  "Claim queued ingestion jobs and run the chunking, embedding and graph extraction pipeline for each",
		RunE:  runWorker,
	}

	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runWorker(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	a, err := newApp(ctx, !noMigrate)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.cfg.SentryDSN != "" {
		sampleRate := 0.1
		if a.cfg.Environment == "development" {
			sampleRate = 1.0
		}
		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              a.cfg.SentryDSN,
			Environment:      a.cfg.Environment,
			TracesSampleRate: sampleRate,
			Debug:            a.cfg.Debug,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	processor := jobs.NewIngestionWorker(a.jobRepo, a.documentRepo, a.ingestion)
	worker := jobs.NewWorker(processor, a.cfg.WorkerPollInterval)
	go worker.Start(ctx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	fmt.Println("shutting down...")

	worker.Stop()
	return nil
}
