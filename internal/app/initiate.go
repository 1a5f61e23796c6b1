package app

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/sethvargo/go-retry"
	"github.com/shandysiswandi/eksternvarsling/internal/pkg/clock"
	"github.com/shandysiswandi/eksternvarsling/internal/pkg/config"
	"github.com/shandysiswandi/eksternvarsling/internal/pkg/goroutine"
	"github.com/shandysiswandi/eksternvarsling/internal/pkg/idempotency"
	"github.com/shandysiswandi/eksternvarsling/internal/pkg/instrument"
	"github.com/shandysiswandi/eksternvarsling/internal/pkg/leader"
	"github.com/shandysiswandi/eksternvarsling/internal/pkg/messaging"
	"github.com/shandysiswandi/eksternvarsling/internal/pkg/router"
	"github.com/shandysiswandi/eksternvarsling/internal/pkg/uid"
	"github.com/shandysiswandi/eksternvarsling/internal/pkg/validator"
	"github.com/shandysiswandi/eksternvarsling/internal/varsling/outbound/db"
	"google.golang.org/api/option"
)

func (a *App) initConfig() {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "/config/config.yaml"
		if os.Getenv("LOCAL") == "true" {
			path = "./config/config.yaml"
		}
	}

	cfg, err := config.NewViper(path)
	if err != nil {
		slog.Error("failed to init config", "error", err)
		os.Exit(1)
	}

	//nolint:errcheck,gosec // ignore error
	os.Setenv("TZ", cfg.GetString("app.tz"))

	a.config = cfg
}

func (a *App) initInstrument() {
	ins, err := instrument.New(context.Background(), &instrument.Config{
		Enabled:          a.config.GetBool("instrument.enabled"),
		ServiceName:      a.config.GetString("instrument.service_name"),
		ServiceVersion:   a.config.GetString("instrument.service_version"),
		Environment:      a.config.GetString("instrument.env"),
		OTLPEndpoint:     a.config.GetString("instrument.otlp_endpoint"),
		OTLPSecure:       a.config.GetBool("instrument.otlp_secure"),
		TraceSampleRatio: a.config.GetFloat64("instrument.trace_sample_ratio"),
		MetricsInterval:  a.config.GetSecond("instrument.metric_interval_seconds"),
		MaskFields:       a.config.GetArray("instrument.log_mask_fields"),
		LogLevel:         a.config.GetString("instrument.log_level"),
	})
	if err != nil {
		slog.Error("failed to init instrumentation", "error", err)
		os.Exit(1)
	}
	a.ins = ins
}

func (a *App) initLibraries() {
	a.clock = clock.New()
	a.uuid = uid.NewUUID()
	a.goroutine = goroutine.NewManager(a.config.GetInt("app.server.max_goroutine"))

	validator, err := validator.NewV10Validator()
	if err != nil {
		slog.Error("failed to init validation v10 validator", "error", err)
		os.Exit(1)
	}
	a.validator = validator
}

// initDatabase connects with retries, since the database may come up after
// the service, and applies pending migrations.
func (a *App) initDatabase() {
	config, err := pgxpool.ParseConfig(a.config.GetString("database.url"))
	if err != nil {
		slog.Error("failed to parse DB connection string.", "error", err)
		os.Exit(1)
	}

	config.MaxConns = a.config.GetInt32("database.pool.max_conns")
	config.MinConns = a.config.GetInt32("database.pool.min_conns")
	config.MaxConnLifetime = a.config.GetSecond("database.pool.max_conn_lifetime_seconds")
	config.MaxConnIdleTime = a.config.GetSecond("database.pool.max_conn_idle_seconds")
	config.HealthCheckPeriod = a.config.GetSecond("database.pool.health_check_period_seconds")

	pool, err := pgxpool.NewWithConfig(a.ctx, config)
	if err != nil {
		slog.Error("failed to create DB connection pool", "error", err)
		os.Exit(1)
	}

	retries := a.config.GetUint64("database.connect_retries")
	backoff := retry.WithMaxRetries(retries, retry.NewConstant(5*time.Second))

	err = retry.Do(a.ctx, backoff, func(ctx context.Context) error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := pool.Ping(pingCtx); err != nil {
			slog.Warn("database not reachable yet", "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		slog.Error("failed to ping DB", "error", err)
		os.Exit(1)
	}

	if a.config.GetBool("database.migrate") {
		if err := db.Migrate(a.ctx, pool); err != nil {
			slog.Error("failed to migrate DB", "error", err)
			os.Exit(1)
		}
	}

	a.dbConn = pool
}

func (a *App) initCache() {
	opt, err := redis.ParseURL(a.config.GetString("redis.url"))
	if err != nil {
		slog.Error("failed to parse redis url", "error", err)
		os.Exit(1)
	}

	rdb := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(a.ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		slog.Error("failed to init redis", "error", err)
		os.Exit(1)
	}

	a.cacheConn = rdb
	a.idemp = idempotency.New(a.cacheConn, a.config.GetString("redis.idempotency_prefix"))
}

func (a *App) initLeader() {
	if !a.config.GetBool("leader.redis.enabled") {
		a.leader = leader.Static(a.config.GetBool("leader.static"))
		return
	}

	identity := a.config.GetString("leader.redis.identity")
	if identity == "" {
		identity, _ = os.Hostname()
	}
	if identity == "" {
		identity = a.uuid.Generate()
	}

	lease, err := leader.NewRedisLease(a.cacheConn,
		a.config.GetString("leader.redis.key"),
		identity,
		a.config.GetSecond("leader.redis.ttl_seconds"),
	)
	if err != nil {
		slog.Error("failed to init leader lease", "error", err)
		os.Exit(1)
	}

	a.lease = lease
	a.leader = lease
}

func (a *App) initMessaging() {
	driver := a.config.GetString("messaging.driver")

	dialer, err := a.kafkaDialer()
	if err != nil {
		slog.Error("failed to init kafka tls", "error", err)
		os.Exit(1)
	}

	var pubsubOptions []option.ClientOption
	if v := strings.TrimSpace(a.config.GetString("messaging.pubsub.credentials_file")); v != "" {
		pubsubOptions = append(pubsubOptions, option.WithCredentialsFile(v))
	}
	if v := strings.TrimSpace(a.config.GetString("messaging.pubsub.endpoint")); v != "" {
		pubsubOptions = append(pubsubOptions, option.WithEndpoint(v), option.WithoutAuthentication())
	}

	client, err := messaging.NewFromDriver(a.ctx, driver, messaging.FactoryOptions{
		Kafka: messaging.KafkaConfig{
			Brokers: a.config.GetArray("messaging.kafka.brokers"),
			Dialer:  dialer,
		},
		PubSub: messaging.PubSubConfig{
			ProjectID:     a.config.GetString("messaging.pubsub.project_id"),
			ClientOptions: pubsubOptions,
		},
	})
	if err != nil {
		slog.Error("failed to init messaging", "error", err, "driver", driver)
		os.Exit(1)
	}

	a.messaging = client
}

// kafkaDialer returns nil unless TLS is configured, so the driver keeps its
// default dialer.
func (a *App) kafkaDialer() (*kafka.Dialer, error) {
	if !a.config.GetBool("messaging.kafka.tls.enabled") {
		return nil, nil
	}

	cert, err := tls.LoadX509KeyPair(
		a.config.GetString("messaging.kafka.tls.cert_path"),
		a.config.GetString("messaging.kafka.tls.key_path"),
	)
	if err != nil {
		return nil, err
	}

	// #nosec G304 -- path is from trusted config file.
	ca, err := os.ReadFile(a.config.GetString("messaging.kafka.tls.ca_path"))
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(ca) {
		return nil, errors.New("no certificates found in kafka ca file")
	}

	return &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
		TLS: &tls.Config{
			Certificates: []tls.Certificate{cert},
			RootCAs:      pool,
			MinVersion:   tls.VersionTLS12,
		},
	}, nil
}

func (a *App) initHTTPServer() {
	a.router = router.NewRouter(router.Config{
		UUID:       a.uuid,
		Instrument: a.ins,
	})

	a.httpServer = &http.Server{
		Addr:              a.config.GetString("app.server.http.address"),
		Handler:           a.router,
		ReadTimeout:       a.config.GetSecond("app.server.http.read_timeout_seconds"),
		ReadHeaderTimeout: a.config.GetSecond("app.server.http.read_header_timeout_seconds"),
		WriteTimeout:      a.config.GetSecond("app.server.http.write_timeout_seconds"),
		IdleTimeout:       a.config.GetSecond("app.server.http.idle_timeout_seconds"),
	}
}

// initClosers lists resources in the order Stop releases them: the lease
// first so another replica can take over dispatch, the instrumentation last
// so shutdown errors are still exported.
func (a *App) initClosers() {
	a.closers = []closer{
		{"leader lease", func(ctx context.Context) error {
			if a.lease == nil {
				return nil
			}
			return a.lease.Release(ctx)
		}},
		{"messaging", func(context.Context) error { return a.messaging.Close() }},
		{"redis", func(context.Context) error { return a.cacheConn.Close() }},
		{"database", func(context.Context) error { a.dbConn.Close(); return nil }},
		{"config", func(context.Context) error { return a.config.Close() }},
		{"instrument", a.ins.Shutdown},
	}
}
