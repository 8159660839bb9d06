package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nepsetools/meroshare_apply_bot/config"
	"github.com/nepsetools/meroshare_apply_bot/internal/externalApi/cloudStorageApi/googleDriveApi"
	"github.com/nepsetools/meroshare_apply_bot/internal/externalApi/meroShareApi"
	"github.com/nepsetools/meroshare_apply_bot/internal/model"
	"github.com/nepsetools/meroshare_apply_bot/internal/reportGenerator/xslsxGenerator"
	"github.com/nepsetools/meroshare_apply_bot/internal/scheduler"
	"github.com/nepsetools/meroshare_apply_bot/internal/service/ipoService"
	"github.com/nepsetools/meroshare_apply_bot/utils"
)

func main() {
	cfg := config.MustLoad()

	setupLogger(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	meroShareApiClient := meroShareApi.New(cfg)

	reportGenerator := xslsxGenerator.New()

	var cloudStorage ipoService.CloudStorage
	var driveApi *googleDriveApi.GoogleDriveApi
	if cfg.GoogleDrive.UploadReports {
		driveApi = googleDriveApi.New(ctx, cfg)
		cloudStorage = driveApi
	}

	ipoSrv := ipoService.New(cfg, meroShareApiClient, reportGenerator, cloudStorage)

	switch cfg.RunMode {
	case "apply":
		runCtx := utils.NewCtxWithRqID(ctx)
		result, err := ipoSrv.ApplyForIssue(runCtx, model.ApplicationParams{
			TargetScrip:  cfg.Application.TargetScrip,
			Boid:         cfg.Application.Boid,
			CrnNumber:    cfg.Application.CrnNumber,
			AppliedKitta: cfg.Application.AppliedKitta,
			Pin:          cfg.Application.TransactionPIN,
		})
		if err != nil {
			slog.Error("application failed", slog.String("err", err.Error()))
			os.Exit(1)
		}
		slog.Info(
			"application succeeded",
			slog.String("scrip", result.Scrip),
			slog.String("companyName", result.CompanyName),
			slog.String("referenceNo", result.ReferenceNo),
		)
	case "report":
		runCtx := utils.NewCtxWithRqID(ctx)
		if err := ipoSrv.ReportStatuses(runCtx); err != nil {
			slog.Error("status report failed", slog.String("err", err.Error()))
			os.Exit(1)
		}
	case "daemon":
		sched := scheduler.New()
		sched.NewIntervalJob("report application statuses", withRqID(ipoSrv.ReportStatuses), cfg.Jobs.ReportStatusesInterval, true)
		if driveApi != nil {
			sched.NewIntervalJob("cleanup old drive reports", withRqID(driveApi.DeleteOldFiles), cfg.Jobs.DriveCleanupInterval, false)
		}
		sched.Start()
		defer sched.Stop()

		// Waiting interruption signal
		interrupt := make(chan os.Signal, 1)
		signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
		<-interrupt
	default:
		slog.Error("unknown run mode", slog.String("runMode", cfg.RunMode))
		os.Exit(1)
	}
}

// withRqID gives every scheduled run its own request ID.
func withRqID(fn func(ctx context.Context) error) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return fn(utils.NewCtxWithRqID(ctx))
	}
}

func setupLogger(cfg *config.Config) {
	var logLevel slog.Level

	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warning":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(log)
}
