// Command routecardsd serves route-card issuing over gRPC for front-ends that cannot run
// the command line. Requests are handled one at a time against a single ledger.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"time"

	flag "github.com/spf13/pflag"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/joseph-ayodele/routecards/internal/common"
	"github.com/joseph-ayodele/routecards/internal/core"
	"github.com/joseph-ayodele/routecards/internal/layout"
	"github.com/joseph-ayodele/routecards/internal/qr"
	"github.com/joseph-ayodele/routecards/internal/repository"
	"github.com/joseph-ayodele/routecards/internal/server"
	"github.com/joseph-ayodele/routecards/internal/services/issue"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stderr)
	stop()
	os.Exit(code)
}

func defaultAddr() string {
	if port := os.Getenv("PORT"); port != "" {
		return ":" + port
	}
	return ":8080"
}

func run(ctx context.Context, args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("routecardsd", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "config file (JSONC); defaults to "+common.ConfigFileName+" when present")
	dsn := fs.String("dsn", "", "ledger DSN: SQLite path or postgres:// URL")
	addr := fs.String("addr", defaultAddr(), "listen address")
	logLevel := fs.String("log-level", "info", "debug, info, warn or error")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := common.LoadConfig(*configPath)
	if err != nil {
		logger.Error("config.load.failed", "error", err)
		return 2
	}
	if *dsn != "" {
		cfg.Ledger.DSN = *dsn
	}

	db, err := repository.Open(ctx, repository.ConfigFrom(cfg.Ledger), logger)
	if err != nil {
		return 1
	}
	defer repository.Close(db, logger)

	if err := repository.HealthCheck(ctx, db, 3*time.Second, logger); err != nil {
		logger.Error("ledger.health.failed", "error", err)
		return 1
	}
	if err := repository.Migrate(ctx, db, logger); err != nil {
		return 1
	}

	ledger := repository.NewRouteCardRepository(db, logger)
	gen := core.NewGenerator(logger, ledger, qr.NewEncoder(), layout.NewResolver(core.LayoutOptionsFrom(cfg.Layout)))
	batcher := core.NewBatcher(logger, ledger, gen, core.BatchConfigFrom(cfg))
	svc := issue.NewService(gen, batcher, cfg, logger)

	grpcServer := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(server.IssueServiceName, healthpb.HealthCheckResponse_SERVING)
	reflection.Register(grpcServer)
	server.NewIssueServer(svc, ledger, logger).Register(grpcServer)

	lis, err := net.Listen("tcp", *addr)
	if err != nil {
		logger.Error("listen.failed", "addr", *addr, "error", err)
		return 1
	}
	logger.Info("grpc.serving", "addr", lis.Addr().String())

	errCh := make(chan error, 1)
	go func() { errCh <- grpcServer.Serve(lis) }()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		hs.Shutdown()
		grpcServer.GracefulStop()
	case err := <-errCh:
		if err != nil {
			logger.Error("grpc.serve.failed", "error", err)
			return 1
		}
	}
	fmt.Fprintln(stderr, "stopped.")
	return 0
}
