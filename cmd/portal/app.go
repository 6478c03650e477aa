package main

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	auth "github.com/goliatone/go-phone-auth"
	"github.com/goliatone/go-phone-auth/config"
	"github.com/goliatone/go-phone-auth/logging"
	"github.com/goliatone/go-phone-auth/migrations"
	"github.com/goliatone/go-phone-auth/redisstore"
	"github.com/goliatone/go-phone-auth/workspace"
)

// portal holds the wired components shared by the commands
type portal struct {
	cfg      *config.Config
	logger   *logging.ZapLogger
	sqldb    *sql.DB
	db       *bun.DB
	redis    *redis.Client
	registry *prometheus.Registry
	metrics  *auth.Metrics

	repo      auth.RepositoryManager
	tokens    *auth.TokenService
	resolver  *auth.SessionResolver
	signup    *auth.SignupFlow
	users     *auth.UserService
	workspace *workspace.Service
	sweeper   *auth.PendingSweeper
}

func loadPortal(ctx context.Context, configPath string) (*portal, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	logger, err := logging.NewZap(cfg.IsDevelopment())
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	p := &portal{
		cfg:      cfg,
		logger:   logger,
		registry: prometheus.NewRegistry(),
	}

	if err := p.openDB(ctx); err != nil {
		return nil, err
	}

	if cfg.Persistence.AutoMigrate {
		if err := migrations.Up(ctx, p.sqldb, migrations.Dialect(cfg.Persistence.Driver)); err != nil {
			p.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}

	if err := p.wire(ctx); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

func (p *portal) openDB(ctx context.Context) error {
	pc := p.cfg.Persistence

	switch pc.Driver {
	case "postgres":
		sqldb, err := sql.Open("pgx", pc.DSN)
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		p.sqldb = sqldb
		p.db = bun.NewDB(sqldb, pgdialect.New())
	default:
		sqldb, err := sql.Open(sqliteshim.ShimName, pc.DSN)
		if err != nil {
			return fmt.Errorf("open sqlite: %w", err)
		}
		p.sqldb = sqldb
		p.db = bun.NewDB(sqldb, sqlitedialect.New())
	}

	if pc.MaxOpenConns > 0 {
		p.sqldb.SetMaxOpenConns(pc.MaxOpenConns)
	}

	if err := p.sqldb.PingContext(ctx); err != nil {
		_ = p.sqldb.Close()
		return fmt.Errorf("ping %s: %w", pc.Driver, err)
	}
	return nil
}

func (p *portal) wire(ctx context.Context) error {
	cfg := p.cfg
	log := p.logger
	p.metrics = auth.NewMetrics(p.registry)

	repoOpts := []auth.RepositoryOption{
		auth.WithRepositoryLogger(log.Named("store")),
	}
	if cfg.Breaker.Enabled {
		repoOpts = append(repoOpts, auth.WithCircuitBreaker(auth.BreakerSettings{
			Name:        "portal-store",
			MaxFailures: cfg.Breaker.MaxFailures,
			Interval:    cfg.Breaker.Interval,
			Timeout:     cfg.Breaker.Timeout,
		}))
	}
	if cfg.Redis.Enabled {
		p.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := p.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		repoOpts = append(repoOpts, auth.WithPendingStore(redisstore.NewPendingStore(p.redis)))
	}
	p.repo = auth.NewRepositoryManager(p.db, repoOpts...)

	tokens, err := auth.NewTokenServiceFromConfig(cfg.AuthConfig(),
		auth.WithTokenMetrics(p.metrics),
		auth.WithTokenLogger(log.Named("tokens")),
	)
	if err != nil {
		return fmt.Errorf("token service: %w", err)
	}
	p.tokens = tokens

	activity := auth.LogActivitySink(log.Named("activity"))

	p.resolver = auth.NewSessionResolver(tokens, p.repo.Identities(),
		auth.WithResolverLogger(log.Named("session")),
		auth.WithResolverActivitySink(activity),
		auth.WithResolverMetrics(p.metrics),
	)

	begin := auth.NewAttemptLimiter(cfg.Signup.BeginBurst, cfg.Signup.BeginInterval)
	verify := auth.NewAttemptLimiter(cfg.Signup.VerifyBurst, cfg.Signup.VerifyInterval)

	p.signup = auth.NewSignupFlow(p.repo, tokens,
		auth.WithPendingTTL(cfg.Signup.PendingTTL),
		auth.WithCodeSender(p.codeSender()),
		auth.WithCodeHashCost(cfg.Signup.CodeHashCost),
		auth.WithPhoneRegion(cfg.Signup.PhoneRegion),
		auth.WithStrictPhoneValidation(cfg.Signup.StrictPhone),
		auth.WithHashidUserIDs(cfg.Signup.HashidUserIDs),
		auth.WithSignupLimiters(begin, verify),
		auth.WithSignupLogger(log.Named("signup")),
		auth.WithSignupActivitySink(activity),
		auth.WithSignupMetrics(p.metrics),
	)

	p.users = auth.NewUserService(p.repo,
		auth.WithUserServiceLogger(log.Named("users")),
		auth.WithUserServiceActivitySink(activity),
	)

	p.workspace = workspace.NewService(workspace.NewStore(p.db), p.repo.Identities(),
		workspace.WithLogger(log.Named("workspace")),
	)

	p.sweeper = auth.NewPendingSweeper(p.repo.Pending(),
		auth.WithSweeperLimiters(cfg.Signup.BeginInterval*10, p.signup.Limiters()...),
		auth.WithSweeperLogger(log.Named("sweeper")),
	)
	return nil
}

func (p *portal) codeSender() auth.CodeSender {
	sms := p.cfg.SMS
	if sms.Provider != "twilio" {
		return auth.LogCodeSender(p.logger.Named("sms"))
	}
	sender := auth.NewTwilioSender(sms.AccountSID, sms.AuthToken, sms.From)
	if sms.Message != "" {
		sender.Message = sms.Message
	}
	return sender
}

// Close releases the database and redis connections
func (p *portal) Close() {
	if p.redis != nil {
		_ = p.redis.Close()
	}
	if p.db != nil {
		_ = p.db.Close()
	} else if p.sqldb != nil {
		_ = p.sqldb.Close()
	}
	if p.logger != nil {
		_ = p.logger.Sync()
	}
}
