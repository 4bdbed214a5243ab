// Copyright 2026 The BigFin Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/moov-io/base/admin"
	"github.com/raynmakr/bigfin"
	"github.com/raynmakr/bigfin/internal/accounts"
	appcfg "github.com/raynmakr/bigfin/internal/config"
	"github.com/raynmakr/bigfin/internal/contracts"
	"github.com/raynmakr/bigfin/internal/database"
	"github.com/raynmakr/bigfin/internal/instruments"
	"github.com/raynmakr/bigfin/internal/ledger"
	"github.com/raynmakr/bigfin/internal/notify"
	"github.com/raynmakr/bigfin/internal/prefund"
	"github.com/raynmakr/bigfin/internal/provider"
	"github.com/raynmakr/bigfin/internal/reconciliation"
	"github.com/raynmakr/bigfin/internal/route"
	"github.com/raynmakr/bigfin/internal/routing"
	"github.com/raynmakr/bigfin/internal/secrets"
	"github.com/raynmakr/bigfin/internal/stream"
	"github.com/raynmakr/bigfin/internal/transfers"
	"github.com/raynmakr/bigfin/internal/util"
	"github.com/raynmakr/bigfin/pkg/id"
	"github.com/raynmakr/bigfin/x/schedule"
	"github.com/raynmakr/bigfin/x/trace"

	"github.com/go-kit/kit/log"
	"github.com/gorilla/mux"
)

var (
	flagConfigFile = flag.String("config", "", "Filepath for config file to load")
)

func main() {
	flag.Parse()

	configFilepath := util.Or(os.Getenv("CONFIG_FILE"), *flagConfigFile)
	cfg, err := appcfg.FromFile(configFilepath)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	cfg.Logger.Log("startup", fmt.Sprintf("Starting bigfin server version %s", bigfin.Version))

	ctx, cancelFunc := context.WithCancel(context.Background())
	defer cancelFunc()

	// migrate database
	db, err := database.New(ctx, cfg.Logger, cfg.Database)
	if err != nil {
		panic(fmt.Sprintf("error creating database: %v", err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			cfg.Logger.Log("exit", err)
		}
	}()

	// Listen for application termination.
	errs := make(chan error)
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		errs <- fmt.Errorf("%s", <-c)
	}()

	// Spin up admin HTTP server
	adminAddr := util.Or(os.Getenv("HTTP_ADMIN_BIND_ADDRESS"), cfg.Admin.BindAddress)
	adminServer := admin.NewServer(adminAddr)
	adminServer.AddVersionHandler(bigfin.Version) // Setup 'GET /version'
	go func() {
		cfg.Logger.Log("admin", fmt.Sprintf("listening on %s", adminServer.BindAddr()))
		if err := adminServer.Listen(); err != nil {
			err = fmt.Errorf("problem starting admin http: %v", err)
			cfg.Logger.Log("admin", err)
			errs <- err
		}
	}()
	defer adminServer.Shutdown()

	// Distributed tracing
	_, traceCloser, err := trace.New(cfg.Logger, trace.Config{Service: "bigfin", Rate: 0.10})
	if err != nil {
		panic(fmt.Sprintf("problem starting tracer: %v", err))
	}
	defer traceCloser.Close()

	keeper, err := secrets.OpenKeeper(ctx, cfg.Secrets)
	if err != nil {
		panic(err)
	}
	stringKeeper := secrets.NewStringKeeper(keeper, cfg.Secrets.Timeout)
	defer stringKeeper.Close()

	// Setup repositories
	accountRepo := accounts.NewRepo(cfg.Logger, db)
	if err := accounts.SeedSystemChart(accountRepo); err != nil {
		panic(fmt.Sprintf("error seeding chart of accounts: %v", err))
	}

	ledgerEngine := ledger.NewEngine(cfg.Logger, db, accountRepo)

	instrumentRepo := instruments.NewRepo(cfg.Logger, db)
	contractRepo := contracts.NewRepo(cfg.Logger, db)
	prefundRepo := prefund.NewRepo(cfg.Logger, db)
	transferRepo := transfers.NewRepo(cfg.Logger, db)
	reconciliationRepo := reconciliation.NewRepo(cfg.Logger, db)
	idempotencyStore := transfers.NewIdempotencyStore(db)

	contractService := contracts.NewService(cfg.Logger, contractRepo, ledgerEngine)
	prefundService := prefund.NewService(cfg.Logger, prefundRepo, ledgerEngine)

	loc, err := cfg.Routing.Location()
	if err != nil {
		panic(fmt.Sprintf("error loading routing timezone: %v", err))
	}
	routingEngine := routing.NewEngine(cfg.Logger, loc)

	providerClient := provider.NewClient(cfg.Logger, cfg.Provider)
	adminServer.AddLivenessCheck("provider", providerClient.Ping)

	// Transfer status events
	topic, err := stream.OpenTopic(ctx, cfg.Stream)
	if err != nil {
		panic(fmt.Sprintf("error opening stream topic: %v", err))
	}
	var events transfers.EventPublisher
	if publisher := stream.NewPublisher(topic); publisher != nil {
		defer topic.Shutdown(ctx)
		events = publisher
	}

	orchestrator := transfers.NewOrchestrator(cfg.Logger, cfg.Availability,
		transferRepo, contractRepo, instrumentRepo, prefundService,
		routingEngine, providerClient, ledgerEngine, events)

	// The sandbox reports status changes in-process instead of over webhooks.
	if sandbox, ok := providerClient.(*provider.SandboxClient); ok {
		sandbox.OnStatusChange(func(providerID, status string) {
			err := orchestrator.ProcessStatusUpdate(transfers.StatusUpdate{
				ProviderRef:    id.ProviderRef(providerID),
				ProviderStatus: status,
			})
			if err != nil {
				cfg.Logger.Log("sandbox", fmt.Sprintf("problem applying status update: %v", err))
			}
		})
	}

	// Reconciliation alerting
	sender, err := notify.NewMultiSender(cfg.Logger, cfg.Notifications)
	if err != nil {
		panic(fmt.Sprintf("error setting up notifications: %v", err))
	}
	alerter := notify.NewExceptionAlerter(sender)

	reconciliationEngine := reconciliation.NewEngine(cfg.Logger, cfg.Reconciliation,
		reconciliationRepo, transferRepo, prefundRepo, ledgerEngine, providerClient,
		orchestrator, alerter)
	reconciliation.RegisterAdminRoutes(cfg.Logger, adminServer, reconciliationEngine, transferRepo)

	// Background schedules
	stopDaily := setupReconciliationSchedule(cfg, reconciliationEngine, transferRepo, os.Getenv("DISABLE_RECONCILIATION_SCHEDULE"))
	defer stopDaily()

	stopSweeps := setupTransferSweeps(cfg.Logger, orchestrator)
	defer stopSweeps()

	// Create HTTP handler
	handler := mux.NewRouter()
	route.AddPingRoute(cfg.Logger, handler)

	ledger.NewRouter(cfg.Logger, ledgerEngine).RegisterRoutes(handler)
	instruments.NewRouter(cfg.Logger, instrumentRepo, stringKeeper).RegisterRoutes(handler)
	prefund.NewRouter(cfg.Logger, prefundService, prefundRepo).RegisterRoutes(handler)
	contracts.NewRouter(cfg.Logger, contractService, contractRepo).RegisterRoutes(handler)
	transfers.NewRouter(cfg.Logger, orchestrator, transferRepo, idempotencyStore, cfg.Provider.GetWebhookSecret()).RegisterRoutes(handler)
	reconciliation.NewRouter(cfg.Logger, reconciliationEngine, reconciliationRepo).RegisterRoutes(handler)

	// Create main HTTP server
	httpAddr := util.Or(os.Getenv("HTTP_BIND_ADDRESS"), cfg.Http.BindAddress)
	serve := &http.Server{
		Addr:    httpAddr,
		Handler: handler,
		TLSConfig: &tls.Config{
			InsecureSkipVerify:       false,
			PreferServerCipherSuites: true,
			MinVersion:               tls.VersionTLS12,
		},
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	shutdownServer := func() {
		if err := serve.Shutdown(context.TODO()); err != nil {
			cfg.Logger.Log("shutdown", err)
		}
	}
	defer shutdownServer()

	// Start main HTTP server
	go func() {
		if certFile, keyFile := os.Getenv("HTTPS_CERT_FILE"), os.Getenv("HTTPS_KEY_FILE"); certFile != "" && keyFile != "" {
			cfg.Logger.Log("startup", fmt.Sprintf("binding to %s for secure HTTP server", httpAddr))
			if err := serve.ListenAndServeTLS(certFile, keyFile); err != nil {
				cfg.Logger.Log("exit", err)
			}
		} else {
			cfg.Logger.Log("startup", fmt.Sprintf("binding to %s for HTTP server", httpAddr))
			if err := serve.ListenAndServe(); err != nil {
				cfg.Logger.Log("exit", err)
			}
		}
	}()

	if err := <-errs; err != nil {
		cfg.Logger.Log("exit", err)
	}
}

// setupReconciliationSchedule fires a reconciliation run for every active
// tenant at each configured wall clock time. Runs stay available through
// the admin trigger when DISABLE_RECONCILIATION_SCHEDULE=yes.
func setupReconciliationSchedule(cfg *appcfg.Config, engine *reconciliation.Engine, transferRepo transfers.Repository, disabled string) func() {
	if util.Yes(disabled) {
		cfg.Logger.Log("reconciliation", "scheduled runs disabled")
		return func() {}
	}

	daily, err := schedule.ForDailyTimes(cfg.Reconciliation.Timezone, cfg.Reconciliation.Schedule)
	if err != nil {
		panic(fmt.Sprintf("error scheduling reconciliation: %v", err))
	}
	go func() {
		for range daily.C {
			tenants, err := transferRepo.GetActiveTenants()
			if err != nil {
				cfg.Logger.Log("reconciliation", fmt.Sprintf("problem listing tenants: %v", err))
				continue
			}
			for i := range tenants {
				if run, err := engine.Run(tenants[i], reconciliation.RunRequest{}); err != nil {
					cfg.Logger.Log("reconciliation", fmt.Sprintf("tenant=%s error=%v", tenants[i], err))
				} else {
					cfg.Logger.Log("reconciliation", fmt.Sprintf("tenant=%s run=%s status=%s", tenants[i], run.ID, run.Status))
				}
			}
		}
	}()
	return daily.Stop
}

// setupTransferSweeps periodically activates due scheduled repayments and
// releases expired availability holds.
func setupTransferSweeps(logger log.Logger, orchestrator *transfers.Orchestrator) func() {
	sweep, err := schedule.ForInterval(time.Minute)
	if err != nil {
		panic(fmt.Sprintf("error scheduling transfer sweeps: %v", err))
	}
	go func() {
		for now := range sweep.C {
			if n, err := orchestrator.ActivateDueRepayments(now); err != nil {
				logger.Log("transfers", fmt.Sprintf("problem activating scheduled repayments: %v", err))
			} else if n > 0 {
				logger.Log("transfers", fmt.Sprintf("activated %d scheduled repayments", n))
			}
			if n, err := orchestrator.ReleaseHolds(now); err != nil {
				logger.Log("transfers", fmt.Sprintf("problem releasing holds: %v", err))
			} else if n > 0 {
				logger.Log("transfers", fmt.Sprintf("released %d held disbursements", n))
			}
		}
	}()
	return sweep.Stop
}
