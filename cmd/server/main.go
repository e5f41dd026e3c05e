// Package main is the entry point for the avatar redirect server.
//
// main only wires things together, in this order:
//
//	config → logger → telemetry → Discord client → server
//
// and then blocks until SIGINT/SIGTERM. All behaviour lives under internal/,
// which keeps it testable without starting a process.
//
// WHY run() INSTEAD OF os.Exit EVERYWHERE?
// os.Exit skips deferred calls. Returning an error from run lets the
// telemetry flush and the signal handler cleanup run before main exits
// with status 1.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/sakif/avatar-redirect/internal/config"
	"github.com/sakif/avatar-redirect/internal/discord"
	"github.com/sakif/avatar-redirect/internal/server"
	"github.com/sakif/avatar-redirect/internal/telemetry"
)

const serviceName = "avatar-redirect"

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	// === 1. READ CONFIGURATION ===
	// Everything comes from environment variables; see internal/config for
	// names and defaults. DISCORD_TOKEN is the only required one.
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// === 2. SET UP LOGGING ===
	// Text for humans by default, JSON when LOG_FORMAT=json for log
	// collectors. SetDefault routes package-level slog calls here too.
	logger := newLogger(cfg)
	slog.SetDefault(logger)
	logger.Info("starting",
		slog.String("service", serviceName),
		slog.String("environment", cfg.Environment),
		slog.String("log_level", cfg.LogLevel.String()),
	)

	// === 3. SHUTDOWN SIGNALS ===
	// ctx is cancelled on the first SIGINT/SIGTERM, which stops the server.
	ctx, stop := server.NotifyContext(context.Background())
	defer stop()

	// === 4. TELEMETRY ===
	// Spans are exported only when OTEL_EXPORTER_OTLP_ENDPOINT is set;
	// metrics are always collected and served on /metrics.
	tel, err := telemetry.New(ctx, telemetry.Config{
		ServiceName:  serviceName,
		Environment:  cfg.Environment,
		OTLPEndpoint: cfg.OTLPEndpoint,
	})
	if err != nil {
		return err
	}
	defer func() {
		// The signal context is already done here.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}()
	otel.SetTracerProvider(tel.TracerProvider)
	otel.SetMeterProvider(tel.MeterProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	// === 5. UPSTREAM CLIENT ===
	// One shared client for all requests: it pools connections and attaches
	// the bot token. UpstreamTimeout is 0 by default so the per-request
	// deadline alone decides when a Discord call is abandoned.
	users := discord.New(discord.Config{
		Token:   cfg.DiscordToken,
		BaseURL: cfg.DiscordAPIBase,
		Timeout: cfg.UpstreamTimeout,
	}, logger)

	// === 6. CREATE AND START THE SERVER ===
	trusted, err := cfg.TrustedProxyPrefixes()
	if err != nil {
		return err
	}

	srv, err := server.New(server.Config{
		Addr:               cfg.Addr(),
		RequestTimeout:     cfg.RequestTimeout,
		RateLimitPerSecond: cfg.RateLimitPerSecond,
		RateLimitBurst:     cfg.RateLimitBurst,
		TrustedProxies:     trusted,
	}, logger, users, tel)
	if err != nil {
		return err
	}

	// Start blocks until ctx is cancelled by a shutdown signal.
	return srv.Start(ctx)
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	if cfg.LogFormat == config.LogFormatJSON {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
