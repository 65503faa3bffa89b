package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cmlabs-hris/payroll-dispatch/internal/config"
	"github.com/cmlabs-hris/payroll-dispatch/internal/domain/payroll"
	appHTTP "github.com/cmlabs-hris/payroll-dispatch/internal/handler/http"
	"github.com/cmlabs-hris/payroll-dispatch/internal/pkg/bankgateway"
	"github.com/cmlabs-hris/payroll-dispatch/internal/pkg/cache"
	"github.com/cmlabs-hris/payroll-dispatch/internal/pkg/database"
	"github.com/cmlabs-hris/payroll-dispatch/internal/pkg/jwt"
	"github.com/cmlabs-hris/payroll-dispatch/internal/repository/postgresql"
	paymentService "github.com/cmlabs-hris/payroll-dispatch/internal/service/payment"
	payrollService "github.com/cmlabs-hris/payroll-dispatch/internal/service/payroll"
	"github.com/cmlabs-hris/payroll-dispatch/migrations"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Println("Error loading config:", err)
		os.Exit(1)
	}

	logger := appHTTP.NewLogger(os.Stdout, "payroll-dispatch", cfg.App.Version, cfg.App.Env)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	dsn := cfg.DatabaseURL()
	db, err := database.NewPostgreSQLDB(ctx, dsn, database.PoolConfig{MaxConns: cfg.Database.MaxConns})
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(migrations.FS, dsn); err != nil {
			return err
		}
	}

	store := cache.New(ctx, logger, cache.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Prefix:   cfg.Redis.Prefix,
	})
	defer store.Close()

	gateway := bankgateway.NewClient(logger, bankgateway.Config{
		BaseURL:      cfg.Gateway.BaseURL,
		TokenURL:     cfg.Gateway.TokenURL,
		ClientID:     cfg.Gateway.ClientID,
		ClientSecret: cfg.Gateway.ClientSecret,
		Scopes:       cfg.Gateway.Scopes,
		Timeout:      cfg.Gateway.Timeout,
	}, store)

	runRepo := postgresql.NewPayrollRunRepository(db)
	lineRepo := postgresql.NewPayrollLineRepository(db)
	batchRepo := postgresql.NewPaymentBatchRepository(db)
	employeeRepo := postgresql.NewEmployeeRepository(db)
	bankAccountRepo := postgresql.NewBankAccountRepository(db)
	transactor := postgresql.NewTransactor(db)

	dispatcher := paymentService.NewDispatcher(
		logger,
		transactor,
		runRepo,
		lineRepo,
		employeeRepo,
		batchRepo,
		gateway,
		paymentService.Config{
			MaxTransfersPerBatch: cfg.Dispatch.MaxTransfersPerBatch,
			GatewayTimeout:       cfg.Gateway.Timeout,
		},
	)
	payrollSvc := payrollService.NewPayrollService(
		logger,
		payroll.SystemClock{},
		transactor,
		runRepo,
		lineRepo,
		employeeRepo,
		bankAccountRepo,
		dispatcher,
		paymentService.NewLease(logger, store, cfg.Dispatch.LeaseTTL),
	)

	JWTService := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessExpiration)
	payrollHandler := appHTTP.NewPayrollHandler(payrollSvc)

	router := appHTTP.NewRouter(
		logger,
		appHTTP.RouterConfig{AllowedOrigins: cfg.App.AllowedOrigins},
		JWTService,
		payrollHandler,
	)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server running", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	// a release in flight may be mid-dispatch; give it the gateway timeout to finish
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Gateway.Timeout+5*time.Second)
	defer cancel()
	logger.Info("shutting down server")
	return server.Shutdown(shutdownCtx)
}
