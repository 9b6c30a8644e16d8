// Command timemcp runs the time MCP server over stdio or HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/shaharia-lab/timemcp/config"
	"github.com/shaharia-lab/timemcp/mcp"
	"github.com/shaharia-lab/timemcp/observability"
	"github.com/shaharia-lab/timemcp/timetools"
)

// Version is set at build time.
var version = "1.0.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "timemcp: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", "", "path to the YAML configuration file")
		transport  = flag.String("transport", "", "transport to serve on: stdio or http")
		host       = flag.String("host", "", "listen host for the http transport")
		port       = flag.Int("port", 0, "listen port for the http transport")
	)
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if *transport != "" {
		cfg.Server.Transport = *transport
	}
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := buildLogger(cfg.Logging)
	if err != nil {
		return err
	}

	baseServer, err := mcp.NewBaseServer(
		mcp.UseLogger(logger),
		mcp.UseServerInfo("time-mcp-server", version),
	)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	timeHandler := timetools.NewHandler(
		timetools.WithDefaultTimezone(cfg.Time.DefaultTimezone),
	)
	if err := timeHandler.Register(baseServer); err != nil {
		return fmt.Errorf("registering time tools: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	switch cfg.Server.Transport {
	case config.TransportStdio:
		server := mcp.NewStdIOServer(baseServer, os.Stdin, os.Stdout)
		g.Go(func() error {
			return server.Run(ctx)
		})
	case config.TransportHTTP:
		authManager, err := mcp.NewAuthManager(mcp.AuthConfig{
			Enabled:        cfg.Auth.Enabled,
			JWTSecret:      []byte(cfg.Auth.JWTSecret),
			RequiredScopes: cfg.Auth.RequiredScopes,
			TokenCacheTTL:  cfg.Auth.TokenCacheTTL,
		})
		if err != nil {
			return fmt.Errorf("configuring auth: %w", err)
		}
		server := mcp.NewHTTPServer(baseServer, authManager, mcp.HTTPServerConfig{
			Address:   cfg.Server.Addr(),
			RateLimit: cfg.Server.RateLimit,
			RateBurst: cfg.Server.RateBurst,
		})
		g.Go(func() error {
			return server.Run(ctx)
		})
	default:
		return fmt.Errorf("unknown transport: %s", cfg.Server.Transport)
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// buildLogger constructs the process logger on the configured backend.
// Output goes to stderr so the stdio transport keeps stdout to itself.
func buildLogger(cfg config.LoggingConfig) (observability.Logger, error) {
	switch cfg.Backend {
	case config.LogBackendZap:
		return buildZapLogger(cfg)
	case "", config.LogBackendLogrus:
		return buildLogrusLogger(cfg)
	default:
		return nil, fmt.Errorf("unknown logging backend %q", cfg.Backend)
	}
}

func buildLogrusLogger(cfg config.LoggingConfig) (observability.Logger, error) {
	l := logrus.New()
	l.SetOutput(os.Stderr)

	if cfg.Format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	l.SetLevel(level)

	return observability.NewLogrusLogger(l), nil
}

func buildZapLogger(cfg config.LoggingConfig) (observability.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	var encoder zapcore.Encoder
	if cfg.Format == "json" {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(os.Stderr)), level)
	return observability.NewZapLogger(zap.New(core)), nil
}
