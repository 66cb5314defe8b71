package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/giongto35/voice-relay/pkg/bridge"
	"github.com/giongto35/voice-relay/pkg/config"
	"github.com/giongto35/voice-relay/pkg/logger"
	"github.com/giongto35/voice-relay/pkg/monitoring"
	"github.com/giongto35/voice-relay/pkg/network/httpx"
	"github.com/giongto35/voice-relay/pkg/player"
	"github.com/giongto35/voice-relay/pkg/registry"
	"github.com/giongto35/voice-relay/pkg/service"
)

var Version = "?"

const shutdownTimeout = 10 * time.Second

func main() {
	conf, err := config.NewRelayConfig()
	if err != nil {
		logger.Default().Fatal().Err(err).Msg("Config load fail")
	}
	if err = conf.ParseFlags(); err != nil {
		logger.Default().Fatal().Err(err).Msg("Config load fail")
	}

	log := logger.NewConsole(conf.Relay.Debug, "relay", false)
	log.Info().Msgf("version %s", Version)
	log.Debug().Msgf("conf: %+v", conf)

	services, err := build(conf, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Init fail")
	}
	services.Start()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	sig := <-signals
	log.Info().Msgf("Shutting down [os:%v]", sig)

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := services.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Shutdown error")
	}
}

func build(conf config.RelayConfig, log *logger.Logger) (*service.Group, error) {
	var services service.Group

	api, err := bridge.NewApiFactory(conf.Bridge, log)
	if err != nil {
		return nil, err
	}
	relay := registry.New(conf,
		func(userId string) bridge.Bridge { return bridge.NewPion(userId, api, log) },
		player.Silence{},
		log,
	)

	server, err := httpx.NewServer(
		conf.Relay.Server.GetAddr(),
		func(*httpx.Server) http.Handler {
			h := http.NewServeMux()
			h.Handle("/", relay)
			return h
		},
		httpx.WithServerConfig(conf.Relay.Server),
		httpx.WithLogger(log),
	)
	if err != nil {
		return nil, err
	}

	if conf.Monitoring.IsEnabled() {
		mon, err := monitoring.New(conf.Monitoring, "relay", log)
		if err != nil {
			return nil, err
		}
		services.Add(mon)
	}
	// the registry goes after the server so its
	// sockets are closed before the listener
	services.Add(server, relay)
	return &services, nil
}
