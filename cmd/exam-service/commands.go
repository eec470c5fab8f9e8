package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/SAP-F-2025/exam-service/internal/auth"
	"github.com/SAP-F-2025/exam-service/internal/events"
	"github.com/SAP-F-2025/exam-service/internal/handlers"
	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/services"
	"github.com/SAP-F-2025/exam-service/internal/utils"
	"github.com/SAP-F-2025/exam-service/pkg"
	"github.com/SAP-F-2025/exam-service/pkg/tracing"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

// ===== SERVE =====

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and the expiry sweeper",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.String("port", "", "HTTP listen port (PORT)")
	f.Bool("migrate", false, "Run schema migrations before serving (DATABASE_AUTO_MIGRATE)")
	f.Bool("no-sweep", false, "Do not run the expiry sweeper in this process")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd, map[string]string{
		"port":    "PORT",
		"migrate": "DATABASE_AUTO_MIGRATE",
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if cfg.Tracing.Endpoint != "" {
		shutdownTracer, err := tracing.InitTracer(cfg.Tracing.ServiceName, cfg.Tracing.Endpoint)
		if err != nil {
			return fmt.Errorf("failed to initialize tracing: %w", err)
		}
		defer func() {
			if err := shutdownTracer(context.Background()); err != nil {
				a.logger.Warn("Failed to shutdown tracer provider", "error", err)
			}
		}()
	}

	authenticator, err := auth.New(cfg.Auth)
	if err != nil {
		return fmt.Errorf("failed to initialize authentication: %w", err)
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), utils.LoggerMiddleware(a.logger), utils.ContextLogger(a.logger))

	if cfg.Storage.Provider == "local" && strings.HasPrefix(cfg.Storage.BaseURL, "/") {
		router.Static(cfg.Storage.BaseURL, cfg.Storage.LocalDir)
	}

	handlers.NewHandlerManager(a.services, handlers.RouterOptions{
		Authenticator: authenticator,
		Limiter:       utils.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst),
		Metrics:       a.metrics,
		MaxImageBytes: cfg.Storage.MaxImageBytes,
	}, a.logger).SetupRoutes(router)

	noSweep, _ := cmd.Flags().GetBool("no-sweep")
	sweepDone := make(chan struct{})
	if noSweep {
		close(sweepDone)
	} else {
		go func() {
			defer close(sweepDone)
			a.services.Sweeper().Run(ctx)
		}()
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("Server listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			stop()
			<-sweepDone
			return fmt.Errorf("http server failed: %w", err)
		}
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	<-sweepDone
	a.logger.Info("Server exited")
	return nil
}

// ===== MIGRATE =====

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, nil)
			if err != nil {
				return err
			}
			logger := newLogger(cfg)

			db, err := pkg.InitDatabase(cfg)
			if err != nil {
				return err
			}
			if sqlDB, err := db.DB(); err == nil {
				defer sqlDB.Close()
			}

			if err := pkg.Migrate(db); err != nil {
				return err
			}
			logger.Info("Database migrated", "driver", cfg.Database.Driver, "tables", len(pkg.Models()))
			return nil
		},
	}
}

// ===== SWEEP =====

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Force-submit expired answer sheets once and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, nil)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			submitted, err := a.services.Sweeper().RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "submitted %d expired answer sheets\n", submitted)
			return nil
		},
	}
}

// ===== EXPORT =====

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export an exam's results as xlsx or csv",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.Uint("exam", 0, "Exam ID (required)")
	f.String("faculty", "", "User ID of the owning faculty member (required)")
	f.String("org", "", "Organization of the faculty member")
	f.String("format", string(services.ExportXLSX), "Output format (xlsx, csv)")
	f.StringP("output", "o", "", "Output file path (defaults to the generated file name, - for stdout)")

	_ = cmd.MarkFlagRequired("exam")
	_ = cmd.MarkFlagRequired("faculty")
	return cmd
}

func runExport(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd, nil)
	if err != nil {
		return err
	}
	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	f := cmd.Flags()
	examID, _ := f.GetUint("exam")
	facultyID, _ := f.GetString("faculty")
	org, _ := f.GetString("org")
	format, _ := f.GetString("format")
	output, _ := f.GetString("output")

	actor := models.Actor{UserID: facultyID, Role: models.RoleTeacher, Organization: org}
	file, err := a.services.Export().ExportExamResults(cmd.Context(), examID, services.ExportFormat(format), actor)
	if err != nil {
		return err
	}

	if output == "-" {
		_, err = cmd.OutOrStdout().Write(file.Data)
		return err
	}
	if output == "" {
		output = file.Filename
	}
	if err := os.WriteFile(output, file.Data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", output, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", output, len(file.Data))
	return nil
}

// ===== EVENTS =====

func eventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Inspect the exam events topic",
	}

	tail := &cobra.Command{
		Use:   "tail",
		Short: "Print exam events as JSON lines until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, nil)
			if err != nil {
				return err
			}
			logger := newLogger(cfg)
			group, _ := cmd.Flags().GetString("group")

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			enc := json.NewEncoder(cmd.OutOrStdout())
			return events.Tail(ctx, events.SubscriberConfig{
				KafkaBrokers:  cfg.Events.GetKafkaBrokers(),
				TopicName:     cfg.Events.Topic,
				ConsumerGroup: group,
				Logger:        utils.ToSlogLogger(logger),
			}, func(_ context.Context, event *events.ExamEvent) error {
				return enc.Encode(event)
			})
		},
	}
	tail.Flags().String("group", "exam-service-tail", "Kafka consumer group")

	cmd.AddCommand(tail)
	return cmd
}
