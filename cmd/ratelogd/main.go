package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/oicur0t/ratelog/internal/config"
	"github.com/oicur0t/ratelog/internal/dispatch"
	"github.com/oicur0t/ratelog/internal/logbuffer"
	"github.com/oicur0t/ratelog/internal/logging"
	"github.com/oicur0t/ratelog/internal/server"
	"github.com/oicur0t/ratelog/internal/source"
	"github.com/oicur0t/ratelog/pkg/mtls"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadServerConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting ratelogd",
		zap.String("listen", cfg.Server.ListenAddress),
		zap.Int("rate_limit", cfg.Buffer.RateLimit),
		zap.Duration("window", cfg.Buffer.Window),
		zap.String("policy", string(cfg.Buffer.Policy)))

	buffer, err := logbuffer.New(cfg.Buffer, logbuffer.WithLogger(logger))
	if err != nil {
		logger.Fatal("Failed to create log buffer", zap.Error(err))
	}

	router := dispatch.NewRouter(logger)
	if err := router.Register(buffer); err != nil {
		logger.Fatal("Failed to register log buffer", zap.Error(err))
	}

	handler := server.NewHandler(buffer, router, server.NewCommandParser(cfg.Server.MaxBodyBytes), logger)
	requireClientCert := cfg.MTLS.Enabled && cfg.MTLS.ClientAuth == mtls.ClientAuthRequire

	httpServer := &http.Server{
		Addr:         cfg.Server.ListenAddress,
		Handler:      server.NewMux(handler, logger, requireClientCert),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	if cfg.MTLS.Enabled {
		tlsConfig, err := mtls.LoadServerTLSConfig(
			cfg.MTLS.CACert,
			cfg.MTLS.ServerCert,
			cfg.MTLS.ServerKey,
			cfg.MTLS.ClientAuth,
		)
		if err != nil {
			logger.Fatal("Failed to load TLS config", zap.Error(err))
		}
		httpServer.TLSConfig = tlsConfig
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Tail configured files into the buffer
	var files []source.File
	for _, src := range cfg.EnabledSources() {
		files = append(files, source.File{Path: src.Path, Module: src.Module, FromStart: src.FromStart})
	}
	var watchOpts []source.WatcherOption
	if !cfg.Tail.Poll {
		watchOpts = append(watchOpts, source.WithInotify())
	}
	watcherDone := make(chan struct{})
	if len(files) > 0 {
		watcher := source.NewWatcher(files, buffer, logger, watchOpts...)
		go func() {
			defer close(watcherDone)
			if err := watcher.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Watcher failed", zap.Error(err))
			}
		}()
	} else {
		close(watcherDone)
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("HTTP server starting", zap.String("addr", cfg.Server.ListenAddress))

		if cfg.MTLS.Enabled {
			serverErrors <- httpServer.ListenAndServeTLS("", "") // Certs loaded via TLSConfig
		} else {
			serverErrors <- httpServer.ListenAndServe()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

	var sig os.Signal
	for sig == nil {
		select {
		case err := <-serverErrors:
			logger.Fatal("Server error", zap.Error(err))

		case s := <-sigChan:
			if s == syscall.SIGHUP {
				// Lift throttling without losing buffered lines
				buffer.ResetBudget()
				logger.Info("Admission budget reset")
				continue
			}
			sig = s
		}
	}

	logger.Info("Received signal, shutting down", zap.String("signal", sig.String()))

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
		httpServer.Close()
	}

	select {
	case <-watcherDone:
	case <-shutdownCtx.Done():
		logger.Warn("Watcher did not stop before shutdown timeout")
	}

	stats := buffer.Stats()
	logger.Info("Server stopped gracefully",
		zap.Uint64("admitted", stats.Admitted),
		zap.Uint64("dropped", stats.Dropped),
		zap.Int("stored", stats.Stored))
}
