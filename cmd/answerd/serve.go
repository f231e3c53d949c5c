package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"answerd/internal/httpapi"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		addr            string
		corsOrigins     string
		defaultProvider string
		modelsDir       string
		timeoutSec      int64
	)
	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Run the HTTP API",
		Example: "  answerd serve --addr :8080 --provider horde",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if corsOrigins != "" {
				cfg.Server.CORSOrigins = splitCSV(corsOrigins)
			}
			if defaultProvider != "" {
				cfg.Generation.DefaultProvider = defaultProvider
			}
			if modelsDir != "" {
				cfg.Local.ModelsDir = modelsDir
			}
			if err := validate(cfg); err != nil {
				return err
			}
			log := a.log

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			mgr, err := newManager(cfg, log, nil)
			if err != nil {
				return err
			}
			defer mgr.Close()

			httpapi.SetLogger(log)
			httpapi.SetDefaultLogLevel(cfg.Server.LogLevel)
			httpapi.SetBaseContext(ctx)
			httpapi.SetGenerateTimeoutSeconds(timeoutSec)
			httpapi.SetCORSOptions(len(cfg.Server.CORSOrigins) > 0, cfg.Server.CORSOrigins, nil, nil)
			srv := &http.Server{
				Addr:              cfg.Server.Addr,
				Handler:           httpapi.NewMux(mgr),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				log.Info().Str("addr", cfg.Server.Addr).Str("provider", cfg.Generation.DefaultProvider).
					Strs("providers", mgr.Providers()).Int("models", len(mgr.ListModels())).Msg("answerd listening")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}
			log.Info().Msg("shutting down")
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(sctx); err != nil {
				log.Warn().Err(err).Msg("graceful shutdown error")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address, e.g. :8080")
	cmd.Flags().StringVar(&corsOrigins, "cors-origins", "", "Comma-separated allowed CORS origins (enables CORS)")
	cmd.Flags().StringVar(&defaultProvider, "provider", "", "Default provider: local|openai|internal|horde")
	cmd.Flags().StringVar(&modelsDir, "models-dir", "", "Directory to scan for *.gguf model files")
	cmd.Flags().Int64Var(&timeoutSec, "generate-timeout", 0, "Max seconds a streaming request may run (0 disables)")
	return cmd
}
