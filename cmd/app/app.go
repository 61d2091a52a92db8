package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/bartime/bartime-api/internal/api"
	"github.com/bartime/bartime-api/internal/config"
	"github.com/bartime/bartime-api/internal/db"
	"github.com/bartime/bartime-api/internal/jobs"
	"github.com/bartime/bartime-api/internal/logger"
	"github.com/bartime/bartime-api/internal/tracing"
)

const shutdownTimeout = 10 * time.Second

func Start() error {
	conf, err := config.Load("./cmd/app/config.yml")
	if err != nil {
		return fmt.Errorf("failed to initialize config -> %w", err)
	}

	if err = logger.Init(conf.API.Environment); err != nil {
		return fmt.Errorf("failed to initialize logger -> %w", err)
	}
	defer zap.L().Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, conf.Tracing)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing -> %w", err)
	}
	defer shutdownTracing(context.Background())

	dbURL := os.Getenv("DATABASE_URL")
	var postgresDB *gorm.DB
	if dbURL != "" {
		postgresDB, err = db.OpenPostgresWithURL(dbURL)
	} else {
		postgresDB, err = db.OpenPostgres(conf.Postgres)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize database -> %w", err)
	}

	s, err := api.NewServer(conf, api.PostgresStores(postgresDB))
	if err != nil {
		return fmt.Errorf("failed to initialize server -> %w", err)
	}

	conf.OnLedgerChange(func(ledger config.LedgerConfig) {
		settings, err := api.LedgerSettings(&ledger)
		if err != nil {
			zap.L().Error("ledger settings not applied", zap.Error(err))
			return
		}
		s.Ledger.Reconfigure(settings)
		zap.L().Info("ledger settings reloaded")
	}, func(err error) {
		zap.L().Error("ledger config rejected", zap.Error(err))
	})

	// The hub outlives the signal so long-polls still in flight can drain.
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go s.Hub.Run(hubCtx)

	job := jobs.NewReconcileJob(s.Ledger, conf.Jobs.ReconcileEveryMinutes)
	job.Start()
	defer job.Stop()

	srv := &http.Server{
		Addr:    ":" + s.Config.API.Port,
		Handler: s.Router,
	}
	zap.L().Info(fmt.Sprintf("starting server at %v", srv.Addr))
	if err = serve(ctx, srv, shutdownTimeout); err != nil {
		return fmt.Errorf("failed to run the server -> %w", err)
	}
	zap.L().Info("server stopped")

	return nil
}

// serve runs srv until ctx is done, then stops accepting connections and
// waits up to timeout for in-flight requests.
func serve(ctx context.Context, srv *http.Server, timeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("srv.Shutdown -> %w", err)
	}

	return nil
}
