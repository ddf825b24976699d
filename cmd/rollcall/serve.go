package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"rollcall/internal/attendance"
	"rollcall/internal/cache"
	cachemetrics "rollcall/internal/cache/metrics"
	"rollcall/internal/deploy"
	"rollcall/internal/gateway"
	gatewaymetrics "rollcall/internal/gateway/metrics"
	"rollcall/internal/identity"
	"rollcall/internal/identity/wsfeed"
	"rollcall/internal/ledger"
	"rollcall/internal/ledger/memory"
	pgledger "rollcall/internal/ledger/postgres"
	"rollcall/internal/outcome"
	"rollcall/internal/platform/config"
	"rollcall/internal/platform/httpserver"
	"rollcall/internal/platform/kafka"
	"rollcall/internal/platform/logger"
	"rollcall/internal/platform/metrics"
	"rollcall/internal/platform/postgres"
	"rollcall/internal/platform/redis"
	"rollcall/internal/platform/tracing"
	"rollcall/internal/ratelimit"
	ratelimitmetrics "rollcall/internal/ratelimit/metrics"
	"rollcall/internal/session"
	httptransport "rollcall/internal/transport/http"
	id "rollcall/pkg/domain"
	"rollcall/pkg/platform/circuit"
)

const outcomeLogCapacity = 1024

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log, err := logger.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg, log)
	},
}

// app holds everything serve starts, in the order it must be shut down.
type app struct {
	handler  http.Handler
	gateway  *gateway.Gateway
	cache    *cache.Cache
	feed     *identity.Feed
	outcomes []outcome.Publisher
	closers  []func()
}

func serve(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	var traceOut io.Writer
	if cfg.Tracing.Stdout {
		traceOut = os.Stdout
	}
	shutdownTracing, err := tracing.Setup(traceOut)
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	a, err := build(ctx, cfg, log)
	if err != nil {
		return err
	}

	err = httpserver.ListenAndServe(ctx, cfg.Server, a.handler, log)
	log.Info("shutting down", "backend", cfg.Ledger.Backend)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	a.shutdown(shutdownCtx, log)
	return err
}

func build(ctx context.Context, cfg config.Config, log *slog.Logger) (*app, error) {
	a := &app{}
	ok := false
	defer func() {
		if !ok {
			a.shutdown(context.Background(), log)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	checks := map[string]httptransport.HealthCheck{}

	chain, registry, err := a.openLedger(ctx, cfg, log, checks)
	if err != nil {
		return nil, err
	}
	log.Info("using registry", "address", registry.String())

	tracer := otel.Tracer("rollcall")

	cacheOpts := []cache.Option{
		cache.WithLogger(log),
		cache.WithMetrics(cachemetrics.New(reg)),
		cache.WithTracer(tracer),
		cache.WithParallelism(cfg.Cache.Parallelism),
		cache.WithResyncAttempts(cfg.Cache.ResyncAttempts),
	}
	rc, err := redis.Open(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	if rc != nil {
		a.closers = append(a.closers, func() { _ = rc.Close() })
		cacheOpts = append(cacheOpts, cache.WithMirror(cache.NewRedisMirror(rc, registry, cfg.Redis.MirrorTTL)))
		checks["redis"] = redis.Check(rc)
	}
	a.cache = cache.New(chain, cacheOpts...)

	sess := session.New()

	outcomeMetrics := outcome.NewMetrics(reg)
	outcomeLog := outcome.NewLog(outcomeLogCapacity, outcomeMetrics)
	a.outcomes = append(a.outcomes, outcomeLog)
	kc, err := kafka.New(ctx, cfg.Kafka)
	if err != nil {
		return nil, err
	}
	if kc != nil {
		a.closers = append(a.closers, kc.Close)
		if err := kafka.EnsureTopic(ctx, kc, cfg.Kafka.Topic, cfg.Kafka.Partitions, cfg.Kafka.Replication); err != nil {
			return nil, err
		}
		a.outcomes = append(a.outcomes, outcome.NewKafkaPublisher(kc, cfg.Kafka.Topic, log, outcomeMetrics))
	}

	breaker := circuit.New("ledger",
		circuit.WithFailureThreshold(cfg.Breaker.FailureThreshold),
		circuit.WithSuccessThreshold(cfg.Breaker.SuccessThreshold),
		circuit.WithCooldown(cfg.Breaker.Cooldown),
	)
	gwOpts := []gateway.Option{
		gateway.WithLogger(log),
		gateway.WithMetrics(gatewaymetrics.New(reg)),
		gateway.WithBreaker(breaker),
		gateway.WithTracer(tracer),
		gateway.WithSubscriber(a.cache),
		gateway.WithSubscriber(sess),
	}
	for _, p := range a.outcomes {
		gwOpts = append(gwOpts, gateway.WithSubscriber(p))
	}
	a.gateway = gateway.New(chain, gwOpts...)

	a.feed = identity.NewFeed()
	listener := session.NewListener(a.feed, chain, sess, log)
	go func() {
		if err := listener.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("identity listener stopped", "error", err)
		}
	}()

	var limitStore ratelimit.Store = ratelimit.NewMemoryStore(cfg.Limits.Window)
	if rc != nil {
		limitStore = ratelimit.NewRedisStore(rc)
	}
	limiter := ratelimit.New(limitStore, cfg.Limits.Submissions, cfg.Limits.Window, log,
		ratelimit.WithMetrics(ratelimitmetrics.New(reg)))

	svc := attendance.New(a.gateway, a.cache, chain, sess, attendance.WithLogger(log))
	handlers := []httptransport.Registrar{
		httptransport.New(svc, outcomeLog, log, cfg.Server.RequestTimeout,
			httptransport.WithSubmitLimit(limiter.Middleware)),
	}
	if cfg.Identity.SigningKey != "" {
		verifier := wsfeed.NewVerifier(cfg.Identity.SigningKey, cfg.Identity.Issuer)
		handlers = append(handlers, wsfeed.New(a.feed, verifier, cfg.Identity.ReplayWindow, log,
			wsfeed.WithAllowedOrigins(cfg.Identity.AllowedOrigins...)))
	}

	if cfg.Identity.Initial != "" {
		if _, err := svc.Connect(ctx, cfg.Identity.Initial); err != nil {
			log.Warn("initial account connect failed", "identity", cfg.Identity.Initial, "error", err)
		}
	} else if _, err := a.cache.Resync(ctx, id.Address{}); err != nil {
		log.Warn("initial roster load failed", "error", err)
	}

	a.handler = httptransport.NewRouter(httptransport.RouterConfig{
		Logger:   log,
		Metrics:  metrics.New(reg),
		Gatherer: reg,
		Checks:   checks,
		Handlers: handlers,
	})
	ok = true
	return a, nil
}

// openLedger connects the configured backend and returns the registry to
// operate on. The memory backend always publishes a fresh registry.
func (a *app) openLedger(ctx context.Context, cfg config.Config, log *slog.Logger, checks map[string]httptransport.HealthCheck) (ledger.Ledger, id.Address, error) {
	policy, err := ledger.ParsePolicy(cfg.Ledger.Policy)
	if err != nil {
		return nil, id.Address{}, err
	}

	switch cfg.Ledger.Backend {
	case config.BackendPostgres:
		if cfg.Ledger.Registry == "" {
			return nil, id.Address{}, errors.New("ledger.registry is required for the postgres ledger backend")
		}
		address, err := id.ParseAddress(cfg.Ledger.Registry)
		if err != nil {
			return nil, id.Address{}, err
		}
		pool, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			return nil, id.Address{}, err
		}
		a.closers = append(a.closers, pool.Close)
		checks["postgres"] = pool.Ping
		if err := pgledger.Migrate(ctx, pool); err != nil {
			return nil, id.Address{}, err
		}
		network := pgledger.New(pool,
			pgledger.WithPolicy(policy),
			pgledger.WithPollInterval(cfg.Ledger.PollInterval),
			pgledger.WithLogger(log),
		)
		runCtx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			defer close(done)
			if err := network.Run(runCtx); err != nil {
				log.Error("ledger sequencer stopped", "error", err)
			}
		}()
		a.closers = append(a.closers, func() {
			cancel()
			<-done
		})
		l, err := network.Registry(ctx, address)
		if err != nil {
			return nil, id.Address{}, err
		}
		return l, address, nil

	default:
		network := memory.NewNetwork(
			memory.WithPolicy(policy),
			memory.WithConfirmationDelay(cfg.Ledger.ConfirmationDelay),
			memory.WithLogger(log),
		)
		a.closers = append(a.closers, network.Close)
		ownerText := cfg.Ledger.Owner
		if ownerText == "" {
			ownerText = cfg.Identity.Initial
		}
		if ownerText == "" {
			return nil, id.Address{}, errors.New("ledger.owner or identity.initial is required to publish a registry on the memory backend")
		}
		owner, err := id.ParseAddress(ownerText)
		if err != nil {
			return nil, id.Address{}, err
		}
		address, err := deploy.New(network).Deploy(ctx, owner)
		if err != nil {
			return nil, id.Address{}, err
		}
		l, err := network.Registry(address)
		if err != nil {
			return nil, id.Address{}, err
		}
		return l, address, nil
	}
}

// shutdown stops components in reverse dependency order. Transactions still
// in flight are tracked until ctx ends so their outcomes reach the cache and
// publishers.
func (a *app) shutdown(ctx context.Context, log *slog.Logger) {
	if a.gateway != nil {
		if err := a.gateway.Close(ctx); err != nil {
			log.Warn("abandoned in-flight transactions", "error", err)
		}
	}
	if a.feed != nil {
		a.feed.Close()
	}
	if a.cache != nil {
		a.cache.Close()
	}
	for _, p := range a.outcomes {
		flushCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := p.Close(flushCtx); err != nil {
			log.Warn("flush outcome publisher", "error", err)
		}
		cancel()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
