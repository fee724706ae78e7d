package main

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	_ "go.uber.org/automaxprocs"

	"github.com/adred-codev/devtoolsproxy/internal/broker"
	"github.com/adred-codev/devtoolsproxy/internal/config"
	"github.com/adred-codev/devtoolsproxy/internal/dispatcher"
	"github.com/adred-codev/devtoolsproxy/internal/httpproxy"
	"github.com/adred-codev/devtoolsproxy/internal/idcodec"
	"github.com/adred-codev/devtoolsproxy/internal/jsonx"
	"github.com/adred-codev/devtoolsproxy/internal/logging"
	"github.com/adred-codev/devtoolsproxy/internal/status"
	"github.com/adred-codev/devtoolsproxy/internal/supervisor"
)

func main() {
	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		logging.New(false).Fatal().Err(err).Msg("config")
	}
	cfg.Print()

	logger := logging.New(cfg.Debug)
	logger.Info().Int("gomaxprocs", runtime.GOMAXPROCS(0)).Msg("startup")

	codec, err := idcodec.New(cfg.MaxClients)
	if err != nil {
		logger.Fatal().Err(err).Msg("idcodec")
	}
	jsonCodec := jsonx.New(cfg.Features.JSONExperimental)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := broker.NewRegistry(ctx, broker.Config{
		ChromeHost:   cfg.ChromeHost,
		ChromePort:   cfg.ChromePort,
		MaxClients:   cfg.MaxClients,
		QueueBackend: cfg.Features.QueueBackend,
	}, codec, jsonCodec, logging.Component(logger, "broker"))

	statusHandler := status.New(cfg)
	proxyHandler := httpproxy.New(cfg.ChromeHost, cfg.ChromePort, logging.Component(logger, "httpproxy"))
	mux := dispatcher.New(registry, statusHandler, proxyHandler, logging.Component(logger, "dispatcher"))

	sup := supervisor.New(registry, logging.Component(logger, "supervisor"))
	if err := sup.Start(cfg.ProxyHosts, cfg.ProxyPorts, mux); err != nil {
		logger.Fatal().Err(err).Msg("bind")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info().Msg("shutdown signal received")
	sup.Shutdown(context.Background())
}
