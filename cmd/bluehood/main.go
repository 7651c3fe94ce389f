package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"bluehood/internal/adapter/control"
	"bluehood/internal/adapter/notify"
	"bluehood/internal/adapter/radio"
	"bluehood/internal/adapter/store"
	"bluehood/internal/adapter/tui"
	"bluehood/internal/adapter/vendordb"
	"bluehood/internal/domain"
	"bluehood/internal/infra/config"
	"bluehood/internal/infra/logger"
	"bluehood/internal/infra/tracer"
	"bluehood/internal/usecase/eventbus"
	"bluehood/internal/usecase/scanner"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "--help", "-h", "help":
			showUsage()
			return
		}
	}

	if len(os.Args) < 2 || strings.HasPrefix(os.Args[1], "-") {
		if err := runBrowser(); err != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			os.Exit(1)
		}
		return
	}

	switch os.Args[1] {
	case "daemon":
		if err := runDaemon(); err != nil {
			fmt.Fprintf(os.Stderr, "daemon: %v\n", err)
			os.Exit(1)
		}
	case "status":
		if err := runStatus(); err != nil {
			fmt.Fprintf(os.Stderr, "status: %v\n", err)
			os.Exit(1)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\nRun 'bluehood --help' for usage information.\n", os.Args[1])
		os.Exit(1)
	}
}

func showUsage() {
	fmt.Println(`bluehood - Bluetooth presence tracker

USAGE:
    bluehood [COMMAND] [FLAGS]

COMMANDS:
    daemon      Run the scanning daemon (foreground)
    status      Print daemon state and exit

    (no command) - Open the interactive device browser

FLAGS:
    -h, --help         Show this help message
    --config PATH      Config file path (default: ./bluehood.yaml)

CONFIGURATION:
    Config file: ./bluehood.yaml (optional; defaults work out of the box)
    Environment: BLUEHOOD_* variables override config
                 (BLUEHOOD_DATA_DIR, BLUEHOOD_SOCKET, BLUEHOOD_SCAN_INTERVAL,
                  BLUEHOOD_ADAPTER, BLUEHOOD_LOG_LEVEL, BLUEHOOD_NTFY_TOPIC)

EXAMPLES:
    bluehood daemon                    # Start scanning
    bluehood                           # Browse tracked devices
    bluehood status                    # One-shot liveness check
    BLUEHOOD_ADAPTER=mock bluehood daemon   # Synthetic radio, no hardware`)
}

// configPath extracts --config from os.Args.
func configPath() string {
	for i := 1; i < len(os.Args); i++ {
		switch {
		case os.Args[i] == "--config" && i+1 < len(os.Args):
			return os.Args[i+1]
		case strings.HasPrefix(os.Args[i], "--config="):
			return strings.TrimPrefix(os.Args[i], "--config=")
		}
	}
	return ""
}

func runDaemon() error {
	// 1. Config
	cfg, err := config.Load(configPath())
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := cfg.EnsureDataDir(); err != nil {
		return err
	}

	// 2. Logger
	log, logCloser, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logCloser()

	// 3. Tracing
	tracerShutdown, err := tracer.Setup(context.Background(), cfg.Tracer)
	if err != nil {
		return fmt.Errorf("tracer: %w", err)
	}
	defer tracerShutdown(context.Background())

	// 4. Store
	st, err := store.New(cfg.StorePath(), cfg.Scan.ActiveWindow)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	defer st.Close()

	// 5. Event bus
	bus := eventbus.New(log)
	defer bus.Close()

	// 6. Radio
	var rdo domain.Radio
	if cfg.Scan.Adapter == "mock" {
		rdo = radio.NewMock()
		log.Warn("using synthetic radio, no real devices will be seen")
	} else {
		rdo = radio.NewHCIRadio(cfg.Scan.Adapter, log)
	}

	// 7. Vendor lookup
	var vendors domain.VendorLookup
	if cfg.Vendor.Enabled {
		vendors = vendordb.New(cfg.Vendor.APIURL, cfg.Vendor.Timeout, log)
	}

	// 8. Notifications
	if cfg.Notify.Enabled {
		notifier := notify.New(st, notify.Config{
			Server:     cfg.Notify.Server,
			Topic:      cfg.Notify.Topic,
			AbsenceGap: cfg.Notify.AbsenceGap,
		}, log)
		notifier.Start(bus)
		defer notifier.Stop()
	}

	// 9. Scan loop and control server
	loop := scanner.New(rdo, st, vendors, bus, scanner.Config{
		Interval:      cfg.Scan.Interval,
		Window:        cfg.Scan.Window,
		RetentionDays: cfg.Scan.RetentionDays,
		PruneSchedule: cfg.Scan.PruneSchedule,
	}, log)

	srv := control.NewServer(st, bus, func() string { return loop.State().String() },
		cfg.Socket, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	go func() { errCh <- srv.Start(ctx) }()
	go func() { errCh <- loop.Run(ctx) }()

	log.Info("bluehood daemon started",
		"socket", cfg.Socket,
		"store", cfg.StorePath(),
		"interval", cfg.Scan.Interval)

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			stop()
			return err
		}
	}
	return nil
}

func runStatus() error {
	cfg, err := config.Load(configPath())
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	client := control.NewClient(cfg.Socket)
	defer client.Close()

	res, err := client.Ping(context.Background())
	if err != nil {
		return errors.New(control.TranslateError(err))
	}
	fmt.Printf("daemon: running\nstate: %s\nclients: %d\nuptime: %ds\n",
		res.State, res.Clients, res.UptimeSeconds)
	return nil
}

func runBrowser() error {
	cfg, err := config.Load(configPath())
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	client := control.NewClient(cfg.Socket)
	defer client.Close()

	return tui.Run(client)
}
