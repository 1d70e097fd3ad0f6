package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/masapos/api/internal/activity"
	"github.com/masapos/api/internal/catalog"
	"github.com/masapos/api/internal/config"
	"github.com/masapos/api/internal/database"
	"github.com/masapos/api/internal/events"
	"github.com/masapos/api/internal/filestore"
	"github.com/masapos/api/internal/jobs"
	"github.com/masapos/api/internal/router"
	"github.com/masapos/api/internal/service"
	"github.com/masapos/api/internal/ws"
	"github.com/sirupsen/logrus"
)

const (
	readHeaderTimeout = 30 * time.Second
	shutdownTimeout   = 10 * time.Second
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MigrateOnStart {
		// Blocks while another instance holds the migration lock.
		if err := database.Migrate(cfg.DatabaseURL); err != nil {
			logrus.Fatalf("migrate: %v", err)
		}
		logrus.Info("migrations applied")
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logrus.Fatalf("connect database: %v", err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logrus.Fatalf("ping database: %v", err)
	}

	queries := database.New(pool)

	hub := ws.NewHub()
	go hub.Run()

	publisher := events.Multi{events.NewHubPublisher(hub)}
	if cfg.NATSURL != "" {
		natsPub, err := events.NewNATSPublisher(cfg.NATSURL)
		if err != nil {
			logrus.Fatalf("connect nats: %v", err)
		}
		defer natsPub.Close()
		publisher = append(publisher, natsPub)
		logrus.WithField("url", cfg.NATSURL).Info("publishing events to NATS")
	}

	recorder := activity.NewRecorder(queries, cfg.ActivityMirrorSize)
	engine := service.NewEngine(
		pool,
		func(db database.DBTX) service.EngineStore { return database.New(db) },
		catalog.NewResolver(queries),
		recorder,
		publisher,
	)

	if cfg.ReconcileSchedule != "" {
		scheduler, err := jobs.Schedule(cfg.ReconcileSchedule, jobs.NewReconcileJob(engine))
		if err != nil {
			logrus.Fatalf("reconcile sweep: %v", err)
		}
		defer scheduler.Stop()
		logrus.WithField("schedule", cfg.ReconcileSchedule).Info("table reconcile sweep scheduled")
	}

	srv := &http.Server{
		Addr: fmt.Sprintf(":%s", cfg.Port),
		Handler: router.New(cfg, router.Deps{
			Queries:  queries,
			Engine:   engine,
			Recorder: recorder,
			Files:    filestore.New(cfg.DataDir),
			Hub:      hub,
		}),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		logrus.Infof("starting server on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	logrus.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("server shutdown")
	}
}
