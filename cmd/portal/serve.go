package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	auth "github.com/goliatone/go-phone-auth"
	"github.com/goliatone/go-phone-auth/workspace"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
			defer cancel()

			p, err := loadPortal(ctx, *configPath)
			if err != nil {
				return err
			}
			defer p.Close()

			return p.serve(ctx)
		},
	}
}

func (p *portal) newApp() *fiber.App {
	cfg := p.cfg

	app := fiber.New(fiber.Config{
		AppName:      "portal",
		ReadTimeout:  cfg.App.ReadTimeout,
		WriteTimeout: cfg.App.WriteTimeout,
		IdleTimeout:  cfg.App.IdleTimeout,
		ErrorHandler: auth.NewErrorHandler(p.logger.Named("http")),
	})
	app.Use(recover.New())
	app.Use(requestid.New())

	p.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	app.Get("/metrics", adaptor.HTTPHandler(
		promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{}),
	)).Name("metrics.get")

	api := app.Group(cfg.App.BasePath)
	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"Success": "pong"})
	}).Name("ping.get")

	auther := auth.NewHTTPAuthenticator(p.resolver, cfg.AuthConfig())
	auther.Logger = p.logger.Named("session")

	controller := auth.NewAuthController(p.repo, p.signup, p.tokens, p.resolver, p.users, auther,
		auth.WithControllerLogger(p.logger.Named("controller")),
		auth.WithDirectIssuance(cfg.Auth.AllowDirectIssuance),
		auth.WithUserRelations(p.workspace.UserRelations),
	)
	auth.RegisterAuthRoutes(api, controller)

	workspace.RegisterRoutes(api, workspace.NewController(p.workspace), auther.ProtectedRoute())

	return app
}

func (p *portal) serve(ctx context.Context) error {
	app := p.newApp()

	if err := p.sweeper.Start(ctx, p.cfg.Signup.SweepSchedule); err != nil {
		return err
	}
	defer p.sweeper.Stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		p.logger.Info("http server listening", "addr", p.cfg.App.Addr, "base_path", p.cfg.App.BasePath)
		if err := app.Listen(p.cfg.App.Addr); err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		p.logger.Info("shutting down http server")
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	return g.Wait()
}
