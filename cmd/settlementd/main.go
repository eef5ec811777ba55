package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/veloride/settlement-core/internal/admin"
	"github.com/veloride/settlement-core/internal/alert"
	"github.com/veloride/settlement-core/internal/config"
	"github.com/veloride/settlement-core/internal/domain/model"
	"github.com/veloride/settlement-core/internal/events"
	"github.com/veloride/settlement-core/internal/gateway"
	"github.com/veloride/settlement-core/internal/ledger"
	"github.com/veloride/settlement-core/internal/ledger/local"
	ledgerrpc "github.com/veloride/settlement-core/internal/ledger/rpc"
	"github.com/veloride/settlement-core/internal/privacy"
	"github.com/veloride/settlement-core/internal/reconcile"
	"github.com/veloride/settlement-core/internal/store/postgres"
	"github.com/veloride/settlement-core/internal/tracing"
)

func main() {
	logLevel := slog.LevelInfo
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	switch cfg.Log.Level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	logger.Info("starting settlement-core",
		"ledger_backend", cfg.Ledger.Backend,
		"ledger_rpc", cfg.Ledger.RPCURL,
		"fee_bps", cfg.Escrow.FeeBps,
		"confirmation_depth", cfg.Gateway.ConfirmationDepth,
		"workers", cfg.Coordinator.Workers,
	)

	shutdownTracing, err := tracing.Init(context.Background(), "settlement-core",
		cfg.Tracing.OTLPEndpoint, cfg.Tracing.Insecure, cfg.Tracing.SampleRatio)
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("tracing shutdown error", "error", err)
		}
	}()

	codec, err := privacy.NewCodecFromHex(cfg.Privacy.EncryptionKeyHex, cfg.Privacy.PseudonymSalt)
	if err != nil {
		logger.Error("failed to initialize privacy codec", "error", err)
		os.Exit(1)
	}

	// Connect to PostgreSQL
	db, err := postgres.New(postgres.Config{
		URL:             cfg.DB.URL,
		MaxOpenConns:    cfg.DB.MaxOpenConns,
		MaxIdleConns:    cfg.DB.MaxIdleConns,
		ConnMaxLifetime: cfg.DB.ConnMaxLifetime,
	})
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("connected to database")

	if err := db.RunMigrations(cfg.DB.MigrationsDir); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	escrowRepo := postgres.NewEscrowRepo(db)
	verificationRepo := postgres.NewVerificationRepo(db)
	jobRepo := postgres.NewJobRepo(db)
	outboxRepo := postgres.NewOutboxRepo(db)

	// Outbound event transport
	var transport events.Transport
	if cfg.Redis.Addr != "" {
		transport, err = events.NewRedisTransport(context.Background(), events.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Stream:   cfg.Redis.Stream,
		})
		if err != nil {
			logger.Error("failed to connect to redis", "error", err, "addr", cfg.Redis.Addr)
			os.Exit(1)
		}
		logger.Info("redis event transport enabled", "addr", cfg.Redis.Addr, "stream", cfg.Redis.Stream)
	} else {
		transport = events.NewInMemoryTransport()
		logger.Warn("no redis configured, outbound events stay in process")
	}
	defer transport.Close()

	client, err := buildLedgerClient(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize ledger client", "error", err)
		os.Exit(1)
	}

	gw := gateway.New(client, gateway.Config{
		SubmitTimeout:     time.Duration(cfg.Gateway.SubmitTimeoutSec) * time.Second,
		ReadTimeout:       time.Duration(cfg.Gateway.ReadTimeoutSec) * time.Second,
		ConfirmationDepth: cfg.Gateway.ConfirmationDepth,
		ConfirmPoll:       time.Duration(cfg.Gateway.ConfirmPollMs) * time.Millisecond,
		SubmitRate:        rate.Limit(cfg.Gateway.SubmitRatePerSec),
		SubmitBurst:       cfg.Gateway.SubmitBurst,
	}, logger)

	alerter := buildAlerter(cfg, logger)

	operator := model.Party(cfg.Coordinator.Operator)
	coordinator := reconcile.New(reconcile.Config{
		Workers:     cfg.Coordinator.Workers,
		QueueSize:   cfg.Coordinator.QueueSize,
		MaxAttempts: cfg.Coordinator.MaxAttempts,
		BaseBackoff: time.Duration(cfg.Coordinator.BaseBackoffMs) * time.Millisecond,
		MaxBackoff:  time.Duration(cfg.Coordinator.MaxBackoffSec) * time.Second,
		Operator:    operator,
	}, db, escrowRepo, verificationRepo, jobRepo, outboxRepo, gw, codec, alerter, logger)

	if cfg.Coordinator.PolicyFile != "" {
		if err := seedVerifiers(context.Background(), cfg.Coordinator.PolicyFile, gw, operator, logger); err != nil {
			logger.Error("failed to seed verifier policy", "error", err)
			os.Exit(1)
		}
	}

	drainer := events.NewDrainer(outboxRepo, transport, time.Second, 100, logger)

	adminServer := admin.NewServer(escrowRepo, verificationRepo, jobRepo, outboxRepo, coordinator, gw, operator, logger)
	rateLimiter := admin.NewRateLimitMiddleware(logger)
	defer rateLimiter.Stop()
	adminHandler := otelhttp.NewHandler(
		admin.AuthMiddleware(cfg.Server.AdminToken, logger,
			admin.AuditMiddleware(logger, rateLimiter.Wrap(adminServer.Handler()))),
		"admin")

	// Context with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Recover in-flight jobs before accepting anything new.
	if err := coordinator.Recover(ctx); err != nil {
		logger.Error("job recovery failed", "error", err)
		os.Exit(1)
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return coordinator.Run(gCtx)
	})
	g.Go(func() error {
		return drainer.Run(gCtx)
	})
	g.Go(func() error {
		return runHTTPServer(gCtx, cfg.Server.AdminPort, adminHandler, "admin", logger)
	})
	g.Go(func() error {
		return runHTTPServer(gCtx, cfg.Server.MetricsPort, metricsHandler(logger), "metrics", logger)
	})

	// Signal handler
	g.Go(func() error {
		select {
		case sig := <-sigCh:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
			return nil
		case <-gCtx.Done():
			return nil
		}
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.Error("settlement-core exited with error", "error", err)
		os.Exit(1)
	}

	logger.Info("settlement-core shut down gracefully")
}

func buildLedgerClient(cfg *config.Config, logger *slog.Logger) (ledger.Client, error) {
	switch cfg.Ledger.Backend {
	case "rpc":
		return ledgerrpc.NewClient(cfg.Ledger.RPCURL, logger), nil
	case "local":
		node, err := local.NewNode(local.Config{
			Custody:  model.Party(cfg.Escrow.CustodyAccount),
			FeeSink:  model.Party(cfg.Escrow.FeeSinkAccount),
			Operator: model.Party(cfg.Coordinator.Operator),
			Owner:    model.Party(cfg.Coordinator.Operator),
			FeeBps:   cfg.Escrow.FeeBps,
		})
		if err != nil {
			return nil, err
		}
		seedDevBalances(node, logger)
		return node, nil
	}
	return nil, fmt.Errorf("unknown ledger backend %q", cfg.Ledger.Backend)
}

// seedDevBalances mints balances for the embedded node from
// LOCAL_DEV_MINT, a comma-separated list of account:amount pairs. The
// local backend holds no real value; this exists so dev escrows can fund.
func seedDevBalances(node *local.Node, logger *slog.Logger) {
	raw := os.Getenv("LOCAL_DEV_MINT")
	if raw == "" {
		return
	}
	for _, pair := range strings.Split(raw, ",") {
		account, amountStr, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok {
			logger.Warn("skipping malformed LOCAL_DEV_MINT entry", "entry", pair)
			continue
		}
		amount, err := strconv.ParseInt(amountStr, 10, 64)
		if err != nil || amount <= 0 {
			logger.Warn("skipping malformed LOCAL_DEV_MINT amount", "entry", pair)
			continue
		}
		node.Bank().Mint(model.Party(account), amount)
		logger.Info("minted dev balance", "account", account, "amount", amount)
	}
}

// seedVerifiers pushes the policy file's verifier allow-list to the
// ledger. Already-registered verifiers are reported as rejected by the
// registry and skipped.
func seedVerifiers(ctx context.Context, path string, gw *gateway.Gateway, owner model.Party, logger *slog.Logger) error {
	policy, err := config.LoadVerifierPolicy(path)
	if err != nil {
		return err
	}
	for _, v := range policy.Verifiers {
		v := v
		out := gw.Submit(ctx, model.Transition("add_verifier"), func(ctx context.Context, client ledger.Client) (ledger.Receipt, error) {
			return client.AddVerifier(ctx, owner, model.Party(v.Address), v.Name)
		})
		switch out.Status {
		case gateway.OutcomeConfirmed:
			logger.Info("verifier seeded", "address", v.Address, "name", v.Name)
		case gateway.OutcomeRejected:
			logger.Info("verifier already registered", "address", v.Address)
		default:
			return fmt.Errorf("seed verifier %s: %w", v.Address, out.Err)
		}
	}
	return nil
}

func buildAlerter(cfg *config.Config, logger *slog.Logger) alert.Alerter {
	var channels []alert.Alerter
	if cfg.Alert.SlackWebhookURL != "" {
		channels = append(channels, alert.NewSlackAlerter(cfg.Alert.SlackWebhookURL))
	}
	if cfg.Alert.WebhookURL != "" {
		channels = append(channels, alert.NewWebhookAlerter(cfg.Alert.WebhookURL))
	}
	if len(channels) == 0 {
		logger.Warn("no alert channels configured")
		return &alert.NoopAlerter{}
	}
	cooldown := time.Duration(cfg.Alert.CooldownMin) * time.Minute
	return alert.NewMultiAlerter(cooldown, logger, channels...)
}

func metricsHandler(logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ok")); err != nil {
			logger.Warn("failed to write health response", "error", err)
		}
	})
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func runHTTPServer(ctx context.Context, port int, handler http.Handler, name string, logger *slog.Logger) error {
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: handler,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("server shutdown error", "server", name, "error", err)
		}
	}()

	logger.Info("http server listening", "server", name, "port", port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("%s server: %w", name, err)
	}
	return nil
}
