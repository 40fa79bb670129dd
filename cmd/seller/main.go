// Command seller runs the Seller execution node: the async task engine
// behind a rate-limit and x402 payment middleware chain (spec.md §1–§2).
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/cors"

	"github.com/xy-market/seller-node/internal/auditsink"
	"github.com/xy-market/seller-node/internal/config"
	"github.com/xy-market/seller-node/internal/execution"
	"github.com/xy-market/seller-node/internal/httpapi"
	"github.com/xy-market/seller-node/internal/janitor"
	"github.com/xy-market/seller-node/internal/logging"
	"github.com/xy-market/seller-node/internal/payment"
	"github.com/xy-market/seller-node/internal/ratelimit"
	"github.com/xy-market/seller-node/internal/registration"
	"github.com/xy-market/seller-node/internal/schemaval"
	"github.com/xy-market/seller-node/internal/task"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.LoadSeller(configPath)
	if err != nil {
		panic(err)
	}

	logger := logging.New(cfg.Service.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sink := buildAuditSink(ctx, cfg, logger)
	repo := task.NewRepository(cfg.DefaultDeadline(), sink)

	runner := buildRunner(logger)
	svc := execution.NewService(ctx, repo, runner, int64(cfg.Task.MaxConcurrentTasks), logger)

	j := janitor.New(svc, cfg.JanitorInterval(), logger)
	go j.Run(ctx)

	validator, err := schemaval.NewValidator(cfg.Payment.OperationSchemaDir)
	if err != nil {
		logger.Error("failed to load operation schemas", "err", err)
		os.Exit(1)
	}

	pricing, err := payment.LoadPricingTable(cfg.Payment.PricingTablePath)
	if err != nil {
		logger.Error("failed to load pricing table", "err", err)
		os.Exit(1)
	}

	var facilitator payment.Facilitator
	if cfg.Payment.PaymentEnabled() && cfg.Payment.FacilitatorURL != "" {
		facilitator = payment.NewHTTPFacilitator(cfg.Payment.FacilitatorURL, nil)
	}
	payMiddleware := payment.New(pricing, facilitator, cfg.Payment.PayeeWalletAddress, logger)

	var rl *ratelimit.Middleware
	if cfg.RateLimit.Enabled {
		rl = ratelimit.New(cfg.RateLimit.Limits, cfg.RateLimitWindow())
	}

	h := httpapi.NewHandler(svc, validator, pricing, cfg.DefaultDeadline(), logger)
	router := httpapi.NewRouter(h, rl, payMiddleware)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Content-Type", "X-Buyer-Secret", "X-PAYMENT", "X-Payment-Proof"},
	}).Handler(router)

	regClient := registration.New(registration.Settings{
		Enabled:            cfg.Registration.Enabled,
		AgentName:          cfg.Registration.AgentName,
		SellerBaseURL:      cfg.Registration.SellerBaseURL,
		Description:        cfg.Registration.Description,
		Tags:               cfg.Registration.Tags,
		MarketplaceBaseURL: cfg.Registration.MarketplaceBaseURL,
		RetryAttempts:      cfg.Registration.RetryAttempts,
		RetryDelay:         cfg.Registration.RetryDelay(),
	}, nil, logger)
	go regClient.Register(ctx)

	addr := cfg.Service.Host + ":" + strconv.Itoa(effectivePort(cfg.Service.Port))
	server := &http.Server{Addr: addr, Handler: corsHandler}

	go func() {
		<-ctx.Done()
		svc.Shutdown(10 * time.Second)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("seller node listening", "addr", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("http server failed", "err", err)
		os.Exit(1)
	}
}

// buildRunner wires the "agent brain" TaskRunner (spec.md §9 plug-in) to an
// external HTTP service when AGENT_BRAIN_URL is set, otherwise falls back to
// a runner that fails every task with a clear diagnostic rather than
// silently returning an empty result.
func buildRunner(logger *slog.Logger) execution.TaskRunner {
	brainURL := os.Getenv("AGENT_BRAIN_URL")
	if brainURL != "" {
		return execution.NewHTTPRunner(brainURL, nil)
	}
	logger.Warn("AGENT_BRAIN_URL not set; tasks will fail until an agent brain is configured")
	return execution.TaskRunnerFunc(func(ctx context.Context, req task.Request) (execution.Outcome, error) {
		return execution.Outcome{}, &execution.Failure{Message: "no agent brain configured (set AGENT_BRAIN_URL)"}
	})
}

func buildAuditSink(ctx context.Context, cfg config.SellerConfig, logger *slog.Logger) auditsink.Sink {
	if cfg.Audit.DatabaseURL == "" {
		return auditsink.NoOp{}
	}
	pool, err := pgxpool.New(ctx, cfg.Audit.DatabaseURL)
	if err != nil {
		logger.Warn("audit sink database unreachable, falling back to no-op", "err", err)
		return auditsink.NoOp{}
	}
	return auditsink.NewPostgresSink(pool, logger)
}

func effectivePort(port int) int {
	if port <= 0 {
		return 8080
	}
	return port
}
