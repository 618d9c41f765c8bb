package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Wyydra/roulette/internal/adapter/driven/gateway/ws"
	handler "github.com/Wyydra/roulette/internal/adapter/driving/http"
	"github.com/Wyydra/roulette/internal/config"
	"github.com/Wyydra/roulette/internal/core/service"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "roulette",
		Short:        "Anonymous one-to-one pairing and WebRTC signaling relay",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			setupLogger(cfg.Log, os.Stdout)
			return serve(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringP("config", "c", "", "path to YAML config file")
	cmd.Flags().String("env-file", ".env", "dotenv file loaded before reading the environment")
	cmd.Flags().String("addr", "", "listen address (overrides config)")
	cmd.Flags().String("log-level", "", "log level (overrides config)")
	cmd.Flags().Bool("pair-on-next", false, "pair immediately on next instead of waiting for start")

	return cmd
}

// loadConfig layers .env, the YAML file, ROULETTE_* variables and finally
// explicitly set flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := cmd.Flags()

	envFile, _ := flags.GetString("env-file")
	if err := config.LoadDotEnv(envFile); err != nil {
		return nil, err
	}

	path, _ := flags.GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	if flags.Changed("addr") {
		cfg.Server.Addr, _ = flags.GetString("addr")
	}
	if flags.Changed("log-level") {
		cfg.Log.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("pair-on-next") {
		cfg.Pairing.PairOnNext, _ = flags.GetBool("pair-on-next")
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setupLogger(cfg config.LogConfig, out io.Writer) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	w := out
	if cfg.Format == config.LogFormatConsole {
		w = zerolog.ConsoleWriter{Out: out}
	}
	log.Logger = zerolog.New(w).With().Timestamp().Caller().Logger()
}

func serve(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := ws.NewHub()
	matchmaker := service.NewMatchmaker(hub, service.Options{PairOnNext: cfg.Pairing.PairOnNext})
	h := handler.NewHandler(matchmaker, hub, cfg)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: h.NewRouter(),
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return matchmaker.Run(ctx)
	})

	g.Go(func() error {
		log.Info().Str("addr", cfg.Server.Addr).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// hijacked websocket connections are not tracked by Shutdown
		hub.Stop()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
			return err
		}
		log.Info().Msg("Server exited")
		return nil
	})

	return g.Wait()
}
