package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sunflower-app/sunflower/internal/api"
	"github.com/sunflower-app/sunflower/internal/app/engagement"
	"github.com/sunflower-app/sunflower/internal/domain"
	"github.com/sunflower-app/sunflower/internal/health"
	"github.com/sunflower-app/sunflower/internal/infra/companion"
	"github.com/sunflower-app/sunflower/internal/infra/purchases"
	"github.com/sunflower-app/sunflower/internal/infra/sqlite"
	"github.com/sunflower-app/sunflower/internal/logging"
)

// Daemon is the Sunflower runtime. It wires together all services.
type Daemon struct {
	Config  Config
	Log     *zap.Logger
	DB      *sqlite.DB
	Session *engagement.Session
	Server  *api.Server
	Health  *health.Checker

	redis  *companion.RedisRelay // nil when the relay is disabled
	retry  *companion.Retrying
	cancel context.CancelFunc
}

// New creates and initializes a Daemon with all services wired.
func New() (*Daemon, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	return NewWithConfig(cfg)
}

// NewWithConfig creates a Daemon with the given configuration, storing
// its database under the Sunflower home directory.
func NewWithConfig(cfg Config) (*Daemon, error) {
	return newDaemon(cfg, sunflowerHome())
}

func newDaemon(cfg Config, home string) (*Daemon, error) {
	policy, err := cfg.Policy()
	if err != nil {
		return nil, err
	}

	log, err := logging.New(logging.Options{
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxFiles,
	})
	if err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}

	db, err := sqlite.Open(home)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	d := &Daemon{Config: cfg, Log: log, DB: db}

	// Companion relay: Redis when enabled, otherwise log-only.
	var relay domain.CompanionChannel
	var companionPing health.ContextPinger
	if cfg.Companion.Enabled {
		d.redis = companion.NewRedisRelay(companion.Config{
			Addr:     cfg.Companion.RedisAddr,
			Password: cfg.Companion.RedisPassword,
			DB:       cfg.Companion.RedisDB,
			Channel:  cfg.Companion.Channel,
		}, log.Named("companion"))
		relay, companionPing = d.redis, d.redis
	} else {
		relay = companion.NewLogRelay(log.Named("companion"))
	}
	d.retry = companion.NewRetrying(relay, companion.DefaultRetryConfig(), log.Named("companion"))

	// Purchase backend; without a user id every refresh reports stale.
	var source domain.PurchaseSource
	if cfg.Purchases.AppUserID != "" {
		timeout, err := parseDuration(cfg.Purchases.Timeout, 10*time.Second)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("purchases.timeout: %w", err)
		}
		source = purchases.NewGuarded(purchases.NewClient(purchases.Config{
			Endpoint:  cfg.Purchases.Endpoint,
			APIKey:    cfg.Purchases.APIKey,
			AppUserID: cfg.Purchases.AppUserID,
			Timeout:   timeout,
		}), purchases.DefaultBreakerConfig())
	}

	d.Session = engagement.NewSession(engagement.Deps{
		Store:     db,
		Ledger:    db,
		Outbox:    db,
		Purchases: source,
		Companion: d.retry,
		Policy:    policy,
		Logger:    log,
	})

	d.Health = health.NewChecker(db, companionPing)

	d.Server = api.NewServer(d.Session, log)
	d.Server.SetHealth(d.Health)
	d.Server.SetCORSOrigins(cfg.API.CORSOrigins)
	if cfg.Telemetry.Prometheus {
		d.Server.EnableMetrics()
	}

	return d, nil
}

// Serve starts the HTTP server and the health loop, and blocks until
// SIGINT/SIGTERM, ctx cancellation or a server failure.
func (d *Daemon) Serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	defer cancel()

	addr := fmt.Sprintf("%s:%d", d.Config.API.Host, d.Config.API.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      d.Server.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		d.Health.Run(ctx)
		return nil
	})

	g.Go(func() error {
		d.retry.Run(ctx, time.Second)
		return nil
	})

	// Refresh entitlement once at startup so the companion gets a fresh value.
	g.Go(func() error {
		if _, err := d.Session.RefreshEntitlement(ctx, time.Now()); err != nil {
			d.Log.Warn("startup entitlement refresh failed", zap.Error(err))
		}
		return nil
	})

	g.Go(func() error {
		d.Log.Info("sunflower serving",
			zap.String("addr", "http://"+addr),
			zap.Bool("metrics", d.Config.Telemetry.Prometheus),
			zap.Bool("companion", d.Config.Companion.Enabled),
		)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		d.Log.Info("shutting down")
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Close shuts down all daemon resources.
func (d *Daemon) Close() {
	if d.cancel != nil {
		d.cancel()
	}
	if d.redis != nil {
		_ = d.redis.Close()
	}
	if d.DB != nil {
		_ = d.DB.Close()
	}
	if d.Log != nil {
		_ = d.Log.Sync()
	}
}
