package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	grpcHandler "github.com/anthanhphan/go-kv-store/internal/storage/adapter/inbound/grpc"
	httpHandler "github.com/anthanhphan/go-kv-store/internal/storage/adapter/inbound/http"
	"github.com/anthanhphan/go-kv-store/internal/storage/adapter/outbound/engine"
	"github.com/anthanhphan/go-kv-store/internal/storage/config"
	"github.com/anthanhphan/go-kv-store/internal/storage/domain"
	"github.com/anthanhphan/go-kv-store/internal/storage/port"
	"github.com/anthanhphan/go-kv-store/internal/storage/service"
	"github.com/anthanhphan/go-kv-store/pkg/resilience"
	"github.com/anthanhphan/gosdk/logger"
)

const shutdownTimeout = 10 * time.Second

// Overrides carries command-line values that take precedence over the config file.
type Overrides struct {
	Addr    string
	Engine  string
	DataDir string
}

type App struct {
	cfg        *config.Config
	engine     port.Engine
	pool       *resilience.WorkerPool
	server     *grpc.Server
	httpServer *httpHandler.Server
}

func New(configPath string, overrides Overrides) (*App, error) {
	// 1. Load Config
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := applyOverrides(cfg, overrides); err != nil {
		return nil, err
	}

	// 2. Initialize Logger
	logger.InitLogger(&cfg.Logger)

	return newApp(cfg)
}

func newApp(cfg *config.Config) (*App, error) {
	// 3. Storage Engine
	eng, err := engine.Open(cfg.Engine)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage engine: %w", err)
	}

	// 4. Dispatch
	pool := resilience.NewWorkerPool(cfg.Server.Workers, cfg.Server.QueueSize)
	kvService := service.NewKVService(eng, pool)

	// 5. gRPC Server
	grpcServer := grpc.NewServer(
		grpc.MaxRecvMsgSize(cfg.Engine.MaxRecordSize+1024),
		grpc.MaxSendMsgSize(cfg.Engine.MaxRecordSize+1024),
	)
	grpcHandler.RegisterKvServiceServer(grpcServer, grpcHandler.NewServer(kvService))

	a := &App{
		cfg:    cfg,
		engine: eng,
		pool:   pool,
		server: grpcServer,
	}

	// 6. Optional REST + metrics surface
	if cfg.Server.HTTPAddr != "" {
		a.httpServer = httpHandler.NewServer(cfg.Server.HTTPAddr, cfg.Engine.MaxRecordSize, kvService)
	}
	return a, nil
}

func applyOverrides(cfg *config.Config, o Overrides) error {
	if o.Addr != "" {
		cfg.Server.Addr = o.Addr
	}
	if o.DataDir != "" {
		cfg.Engine.DataDir = o.DataDir
	}
	if o.Engine != "" {
		kind, err := domain.ParseEngineKind(o.Engine)
		if err != nil {
			return fmt.Errorf("invalid engine %q: %w", o.Engine, err)
		}
		cfg.Engine.Kind = kind
	}
	cfg.Engine = cfg.Engine.WithDefaults()
	return nil
}

// Run serves until SIGINT/SIGTERM or a server failure, then shuts down.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	listener, err := net.Listen("tcp", a.cfg.Server.Addr)
	if err != nil {
		a.closeStorage()
		return fmt.Errorf("failed to listen on %s: %w", a.cfg.Server.Addr, err)
	}
	return a.serve(ctx, listener)
}

func (a *App) serve(ctx context.Context, listener net.Listener) error {
	logger.Infow("KV server starting",
		"addr", listener.Addr().String(),
		"http_addr", a.cfg.Server.HTTPAddr,
		"engine", a.cfg.Engine.Kind,
		"data_dir", a.cfg.Engine.DataDir,
		"workers", a.cfg.Server.Workers)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := a.server.Serve(listener); err != nil && !isClosedErr(err) {
			logger.Errorw("gRPC server exited unexpectedly", "error", err.Error())
			return fmt.Errorf("gRPC server failed: %w", err)
		}
		return nil
	})
	if a.httpServer != nil {
		g.Go(func() error {
			if err := a.httpServer.Start(); err != nil && !isClosedErr(err) {
				logger.Errorw("HTTP server exited unexpectedly", "error", err.Error())
				return fmt.Errorf("HTTP server failed: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		if ctx.Err() != nil {
			logger.Info("Shutdown signal received")
		}
		a.stopServers()
		return nil
	})

	runErr := g.Wait()
	a.closeStorage()
	return runErr
}

func (a *App) stopServers() {
	logger.Info("Shutting down kv services")
	if a.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.httpServer.Stop(ctx); err != nil {
			logger.Warnw("HTTP shutdown failed", "error", err.Error())
		}
	}
	a.server.GracefulStop()
}

// closeStorage drains in-flight jobs before the engine releases the directory.
func (a *App) closeStorage() {
	a.pool.Close()
	a.pool.Wait()
	if err := a.engine.Close(); err != nil {
		logger.Warnw("Engine close failed", "error", err.Error())
	}
}

func isClosedErr(err error) bool {
	return errors.Is(err, grpc.ErrServerStopped) ||
		errors.Is(err, net.ErrClosed) ||
		strings.Contains(err.Error(), "use of closed network connection")
}

