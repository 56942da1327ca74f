package server

import (
	"context"
	"errors"
	nethttp "net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"

	"github.com/dwarvesf/faucet-swap-backend/internal/chainrpc"
	"github.com/dwarvesf/faucet-swap-backend/internal/consts"
	"github.com/dwarvesf/faucet-swap-backend/internal/faucet"
	"github.com/dwarvesf/faucet-swap-backend/internal/handler"
	"github.com/dwarvesf/faucet-swap-backend/internal/listener"
	"github.com/dwarvesf/faucet-swap-backend/internal/monitoring"
	"github.com/dwarvesf/faucet-swap-backend/internal/reconciler"
	"github.com/dwarvesf/faucet-swap-backend/internal/store"
	"github.com/dwarvesf/faucet-swap-backend/internal/telemetry"
	"github.com/dwarvesf/faucet-swap-backend/internal/transport/http"
	"github.com/dwarvesf/faucet-swap-backend/internal/utils/config"
	"github.com/dwarvesf/faucet-swap-backend/internal/utils/logger"
	"github.com/dwarvesf/faucet-swap-backend/internal/utils/vault"
	"github.com/dwarvesf/faucet-swap-backend/internal/utils/webhook"
)

const shutdownTimeout = 30 * time.Second

func Init() {
	appConfig := config.New()
	logger := logger.New(appConfig.Environment)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	signerKey, err := signerPrivateKey(appConfig)
	if err != nil {
		logger.Fatal("[Init][signerPrivateKey] failed to load signer key", map[string]string{
			"error": err.Error(),
		})
	}

	repo := store.NewPostgresStore(appConfig, logger)
	defer repo.Close()
	db := repo.DB()
	s := store.New(db)

	rawRPC, err := chainrpc.New(appConfig.Chain, signerKey, logger.Named("chainrpc"))
	if err != nil {
		logger.Fatal("[Init][chainrpc.New] failed to init chain rpc", map[string]string{
			"error": err.Error(),
		})
	}

	registry := prometheus.NewRegistry()
	externalAPIMetrics := monitoring.NewExternalAPIMetrics()
	externalAPIMetrics.MustRegister(registry)
	swapMetrics := monitoring.NewSwapMetrics()
	swapMetrics.MustRegister(registry)
	jobMetrics := monitoring.NewBackgroundJobMetrics()
	jobMetrics.MustRegister(registry)
	httpMetrics := monitoring.NewHTTPMetrics()
	httpMetrics.MustRegister(registry)

	rpc := monitoring.NewCircuitBreakerChainRPC(rawRPC, monitoring.CircuitBreakerConfigs[monitoring.ServiceChainRPC], externalAPIMetrics, logger)
	executor := faucet.New(rpc, appConfig.Faucet, logger.Named("faucet"))
	rec := reconciler.New(db, s, rpc, executor, swapMetrics, logger.Named("reconciler"))

	jobStatusManager := monitoring.NewJobStatusManager(logger, jobMetrics)
	defer jobStatusManager.Stop()

	// In-flight requests are settled before the listener can redeliver their deposits.
	monitoring.NewInstrumentedJobWithWebhook(
		consts.JobRecoverInFlight,
		rec.RecoverProcessing,
		jobStatusManager,
		logger,
		10*time.Minute,
		webhook.New(logger),
		appConfig.UptimeWebhooks.Reconciler,
	).Run()

	l := listener.New(db, s, rpc, appConfig.Listener, logger.Named("listener"))
	batches, err := l.Start(ctx)
	if err != nil {
		logger.Fatal("[Init][listener.Start] failed to start deposit listener", map[string]string{
			"error": err.Error(),
		})
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		rec.Run(ctx, batches)
	}()

	tm := telemetry.New(db, s, appConfig, logger, swapMetrics)
	instrumented := monitoring.NewInstrumentedTelemetry(tm, jobStatusManager, logger, appConfig)

	c := cron.New()
	if _, err := c.AddFunc(appConfig.Reconciler.MaintenanceSchedule, func() {
		instrumented.ExpireStalePendingRequests()
		instrumented.RefreshBacklog()
	}); err != nil {
		logger.Fatal("[Init][cron.AddFunc] invalid maintenance schedule", map[string]string{
			"schedule": appConfig.Reconciler.MaintenanceSchedule,
			"error":    err.Error(),
		})
	}
	c.Start()

	h := handler.New(logger, db, s, rpc, registry, httpMetrics, jobStatusManager)
	srv := &nethttp.Server{
		Addr:    ":" + appConfig.ApiServer.Port,
		Handler: http.NewHttpServer(appConfig, logger, h, httpMetrics),
	}

	go func() {
		logger.Info("[Init] http server listening", map[string]string{
			"addr": srv.Addr,
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			logger.Error("[Init][ListenAndServe]", map[string]string{
				"error": err.Error(),
			})
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("[Init] shutting down")

	l.Stop()
	wg.Wait()
	<-c.Stop().Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("[Init][Shutdown]", map[string]string{
			"error": err.Error(),
		})
	}
}

// signerPrivateKey prefers Vault when it is configured.
func signerPrivateKey(appConfig *config.AppConfig) (string, error) {
	if appConfig.Vault.Addr == "" {
		return appConfig.Chain.SignerPrivateKey, nil
	}

	vc, err := vault.New(appConfig.Vault.Addr, appConfig.Vault.KVSecretPath, appConfig.Vault.Role)
	if err != nil {
		return "", err
	}
	return vc.GetKV(appConfig.Vault.SignerKeyName)
}
