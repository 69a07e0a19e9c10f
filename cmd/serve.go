package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"

	config "ops-task-service.com/ops-task-service/internal/configs"
	httpapi "ops-task-service.com/ops-task-service/internal/http"
	"ops-task-service.com/ops-task-service/internal/services"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long:  "Starts the ops task HTTP API, the event log sink and the cron schedules",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap()
		if err != nil {
			return err
		}
		cfg, logger := a.cfg, a.logger

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		scheduler, err := services.NewScheduleService(a.tasks, a.runner, logger)
		if err != nil {
			return err
		}
		if cfg.SchedulesFile != "" {
			schedules, err := config.LoadSchedules(cfg.SchedulesFile)
			if err != nil {
				return err
			}
			if err := scheduler.Register(schedules); err != nil {
				return err
			}
		}
		scheduler.Start()

		e := echo.New()
		e.HideBanner = true
		httpapi.Register(e, httpapi.NewHandler(a.tasks, a.runner, a.eventRepo, logger), cfg.RateLimit)

		go func() {
			logger.WithField("addr", cfg.AppURL).Info("HTTP server listening")
			if err := e.Start(cfg.AppURL); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.WithError(err).Error("server stopped")
				stop()
			}
		}()

		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
		defer cancel()

		scheduler.Stop()
		if err := e.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("error shutting down HTTP server")
		}
		a.close(shutdownCtx)

		logger.Info("HTTP server and event log sink shut down gracefully")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
