package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/cobra"

	"github.com/zt1106/baodatui3/internal/factory"
	"github.com/zt1106/baodatui3/internal/settings"
	"github.com/zt1106/baodatui3/internal/transport/ws"
)

// serverConfig is populated from the environment first, then
// overridden by any flag the caller set explicitly.
type serverConfig struct {
	Host                  string        `env:"HOST" envDefault:""`
	Port                  int           `env:"PORT" envDefault:"8080"`
	RoomIdleTimeout       time.Duration `env:"ROOM_IDLE_TIMEOUT" envDefault:"10m"`
	PassiveNotifyInterval time.Duration `env:"PASSIVE_NOTIFY_INTERVAL" envDefault:"10s"`
}

func newRootCmd() *cobra.Command {
	var cfg serverConfig
	var flagHost string
	var flagPort int

	rootCmd := &cobra.Command{
		Use:          "baodatui-server",
		Short:        "Real-time room and lobby server",
		SilenceUsage: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := env.Parse(&cfg); err != nil {
				return err
			}
			if cmd.Flags().Changed("host") {
				cfg.Host = flagHost
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = flagPort
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cfg)
		},
	}

	rootCmd.Flags().StringVar(&flagHost, "host", "", "Listen host (env: HOST)")
	rootCmd.Flags().IntVar(&flagPort, "port", 8080, "Listen port (env: PORT)")

	return rootCmd
}

func run(cfg serverConfig) error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	st := settings.New()
	st.SetRoomIdleTimeout(cfg.RoomIdleTimeout)
	st.SetPassiveNotifyInterval(cfg.PassiveNotifyInterval)

	app := factory.New(factory.Config{
		Logger:   logger,
		Settings: st,
	})

	router := ws.NewRouter(ws.RouterConfig{
		Logger:   logger,
		Users:    app.Users,
		Registry: app.Registry,
	})

	serverConfig := ws.DefaultServerConfig()
	serverConfig.Host = cfg.Host
	serverConfig.Port = cfg.Port
	server := ws.NewServer(router, serverConfig, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info("shutdown signal received")
		cancel()
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	logger.Info("server started", slog.String("addr", server.Addr()))

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", slog.String("error", err.Error()))
			return err
		}
	case <-ctx.Done():
		if err := server.Shutdown(context.Background()); err != nil {
			logger.Error("shutdown error", slog.String("error", err.Error()))
			return err
		}
	}

	logger.Info("server stopped")
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
