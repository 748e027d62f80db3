// cmd/serialterm/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"serial-terminal/internal/config"
	"serial-terminal/internal/console"
	"serial-terminal/internal/discovery"
	serialdiscovery "serial-terminal/internal/discovery/serial"
	tcpdiscovery "serial-terminal/internal/discovery/tcp"
	"serial-terminal/internal/protocol"
	serialtransport "serial-terminal/internal/protocol/serial"
	"serial-terminal/internal/routes"
	"serial-terminal/internal/service"
	"serial-terminal/internal/utils"
)

const shutdownTimeout = 10 * time.Second

// Application represents the main application
type Application struct {
	config *config.Config
	logger *zap.Logger
	server *http.Server
	router *routes.Router

	terminalService *service.TerminalService
	console         *console.Console

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func main() {
	flags := pflag.NewFlagSet("serialterm", pflag.ExitOnError)
	config.RegisterFlags(flags)
	_ = flags.Parse(os.Args[1:])

	app, err := NewApplication(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize application: %v\n", err)
		os.Exit(1)
	}

	if err := app.Start(); err != nil {
		app.logger.Error("Application stopped with error", zap.Error(err))
		utils.CloseLogger(app.logger)
		os.Exit(1)
	}
}

// NewApplication creates a new application instance
func NewApplication(flags *pflag.FlagSet) (*Application, error) {
	cfg, err := config.Load(flags)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := utils.NewLogger(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	serviceLogger := utils.NewServiceLogger(logger, "serialterm")
	serviceLogger.LogServiceStart(cfg.App.Version, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	app := &Application{
		config: cfg,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}

	if err := app.initializeServices(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	if cfg.Server.Enabled {
		app.initializeServer()
	}

	if cfg.Console.Enabled {
		app.initializeConsole()
	}

	return app, nil
}

// initializeServices wires the transports and port scanner into the
// terminal service
func (app *Application) initializeServices() error {
	transport := protocol.NewFactory(
		serialtransport.NewTransport(app.logger),
		protocol.TCPConfig{
			DialTimeout:        app.config.Network.DialTimeout,
			WriteTimeout:       app.config.Network.WriteTimeout,
			KeepAlive:          app.config.Network.KeepAlive,
			InsecureSkipVerify: app.config.Network.InsecureSkipVerify,
		},
		app.logger,
	)
	scanner := discovery.NewScannerManager(app.logger)
	scanner.RegisterScanner(serialdiscovery.NewScanner(app.logger, &serialdiscovery.Config{
		PortPatterns: app.config.Serial.PortPatterns,
	}))
	if len(app.config.Network.Bridges) > 0 {
		scanner.RegisterScanner(tcpdiscovery.NewScanner(app.logger, &tcpdiscovery.Config{
			Bridges:     app.config.Network.Bridges,
			ConnTimeout: app.config.Network.DialTimeout,
		}))
	}

	svc, err := service.NewTerminalService(app.config, transport, scanner, app.logger)
	if err != nil {
		return err
	}
	app.terminalService = svc

	app.logger.Info("Terminal service initialized",
		zap.String("charset", app.config.Serial.Charset),
		zap.String("display_mode", string(app.config.DisplayMode())),
		zap.Strings("scanners", scanner.GetAvailableScanners()),
	)
	return nil
}

// initializeServer sets up HTTP server and routes
func (app *Application) initializeServer() {
	app.router = routes.NewRouter(app.config, app.logger, app.terminalService)

	app.server = &http.Server{
		Addr:         app.config.GetServerAddr(),
		Handler:      app.router.SetupRouter(),
		ReadTimeout:  app.config.Server.ReadTimeout,
		WriteTimeout: app.config.Server.WriteTimeout,
		IdleTimeout:  app.config.Server.IdleTimeout,
	}

	app.logger.Info("HTTP server initialized",
		zap.String("address", app.config.GetServerAddr()),
		zap.Bool("tls_enabled", app.config.Server.TLS.Enabled),
	)
}

func (app *Application) initializeConsole() {
	app.console = console.New(app.terminalService, os.Stdin, os.Stdout, app.config.LineEnding(), app.logger)
	app.terminalService.Subscribe(app.console)
}

// Start runs every component until a signal arrives, the console quits or
// the HTTP server fails
func (app *Application) Start() error {
	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		_ = app.terminalService.Run(app.ctx)
	}()

	if app.config.Serial.AutoOpen {
		app.openConfiguredPort()
	}

	errCh := make(chan error, 1)

	if app.server != nil {
		go func() {
			app.logger.Info("Starting HTTP server", zap.String("address", app.server.Addr))

			var err error
			if app.config.Server.TLS.Enabled {
				err = app.server.ListenAndServeTLS(
					app.config.Server.TLS.CertFile,
					app.config.Server.TLS.KeyFile,
				)
			} else {
				err = app.server.ListenAndServe()
			}

			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("HTTP server failed: %w", err)
			}
		}()
	}

	consoleDone := make(chan struct{})
	if app.console != nil {
		go func() {
			defer close(consoleDone)
			if err := app.console.Run(app.ctx); err != nil {
				app.logger.Error("Console stopped", zap.Error(err))
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	var runErr error
	reason := ""
	select {
	case sig := <-quit:
		reason = "received " + sig.String()
	case <-consoleDone:
		reason = "console closed"
	case runErr = <-errCh:
		reason = "HTTP server failed"
	}

	app.shutdown(reason)
	return runErr
}

// openConfiguredPort opens serial.port at startup. Failure is logged and
// the application keeps running so the port can be opened later.
func (app *Application) openConfiguredPort() {
	ctx, cancel := context.WithTimeout(app.ctx, 10*time.Second)
	defer cancel()

	if _, err := app.terminalService.OpenDefault(ctx); err != nil {
		app.logger.Warn("Failed to open configured serial port",
			zap.String("port", app.config.Serial.Port),
			zap.Error(err),
		)
	}
}

// shutdown performs graceful shutdown
func (app *Application) shutdown(reason string) {
	serviceLogger := utils.NewServiceLogger(app.logger, "serialterm")
	serviceLogger.LogServiceStop(reason)

	if app.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := app.server.Shutdown(ctx); err != nil {
			app.logger.Error("HTTP server shutdown error", zap.Error(err))
		} else {
			app.logger.Info("HTTP server stopped")
		}
		cancel()
		app.router.Close()
	}

	app.cancel()
	app.wg.Wait()

	if err := app.terminalService.Shutdown(); err != nil {
		app.logger.Warn("Serial port close error", zap.Error(err))
	}

	app.logger.Info("Application shutdown completed")
	utils.CloseLogger(app.logger)
}
