// Command sentinel runs the launch lifecycle monitor end to end: it loads
// configuration, wires the RPC pool, push client, catalog client, notifier
// and FDV calculator into a state machine, and serves the dashboard API
// alongside a bare liveness probe until signalled to stop.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"launchsentinel/internal/api"
	"launchsentinel/internal/catalog"
	"launchsentinel/internal/config"
	"launchsentinel/internal/fdv"
	"launchsentinel/internal/healthprobe"
	"launchsentinel/internal/notifier"
	"launchsentinel/internal/pushclient"
	"launchsentinel/internal/rpcpool"
	"launchsentinel/internal/statemachine"
)

func main() {
	configPath := flag.String("config", envOr("CONFIG_PATH", "config.yaml"), "path to the YAML config document")
	healthAddr := flag.String("health-addr", ":"+envOr("HEALTH_PORT", "3000"), "address for the liveness probe")
	apiAddr := flag.String("api-addr", ":"+envOr("API_PORT", "4000"), "address for the dashboard API and push socket")
	flag.Parse()

	log := newLogger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}
	if lvl, err := logrus.ParseLevel(cfg.Logging.Level); err == nil {
		log.Logger.SetLevel(lvl)
	}
	cfg.API.Addr = *apiAddr

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := rpcpool.New(cfg.Chain.RPC.HTTP, log)
	if err != nil {
		log.WithError(err).Fatal("failed to build rpc pool")
	}
	defer pool.Shutdown()

	var pushClient *pushclient.Client
	if len(cfg.Chain.RPC.WSS) > 0 {
		pushClient = pushclient.New(cfg.Chain.RPC.WSS[0], log)
		if err := pushClient.Connect(ctx); err != nil {
			log.WithError(err).Warn("push client failed initial connect, will retry on subscribe")
		}
	}

	cat := catalog.New(cfg.Virtuals.APIBase)
	notif := notifier.New(cfg.Telegram.BotToken, cfg.Telegram.ChatID, log)
	calc := fdv.New(pool, cfg.PriceQuoteURL)

	machine := statemachine.New(cfg, cat, pool, pushClient, notif, calc, log)
	server := api.New(cfg, machine, cat, pool, log)
	probe := healthprobe.New(*healthAddr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.WithField("signal", sig.String()).Info("shutting down")
		cancel()
	}()

	done := make(chan error, 4)
	go func() { done <- machine.Run(ctx) }()
	go func() { server.Consume(ctx, machine.Events); done <- nil }()
	go func() { done <- server.Run(ctx) }()
	go func() { done <- probe.Run(ctx) }()

	var exitCode int
	for i := 0; i < 4; i++ {
		if err := <-done; err != nil && err != context.Canceled {
			log.WithError(err).Error("component exited with error")
			exitCode = 1
		}
	}

	log.Info("shutdown complete")
	os.Exit(exitCode)
}

func newLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	logger.SetLevel(logrus.InfoLevel)
	return logrus.NewEntry(logger)
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
