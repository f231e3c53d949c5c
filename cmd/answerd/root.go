package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"answerd/internal/config"
)

// app carries state shared by subcommands after the root pre-run.
type app struct {
	configPath string
	logLevel   string
	logJSON    bool

	cfg config.Config
	log zerolog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "answerd",
		Short:         "Search-grounded answer generation",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", os.Getenv("ANSWERD_CONFIG"), "Config file (.yaml, .json or .toml)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level: debug|info|warn|error (overrides config)")
	root.PersistentFlags().BoolVar(&a.logJSON, "log-json", false, "Log JSON instead of console output")
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg := config.Default()
		if a.configPath != "" {
			var err error
			if cfg, err = config.Load(a.configPath); err != nil {
				return err
			}
		}
		if a.logLevel != "" {
			cfg.Server.LogLevel = a.logLevel
		}
		if a.logJSON {
			cfg.Server.LogJSON = true
		}
		a.cfg = cfg
		a.log = newLogger(cmd.ErrOrStderr(), cfg.Server.LogLevel, cfg.Server.LogJSON)
		return nil
	}
	root.AddCommand(newServeCmd(a), newAskCmd(a), newDoctorCmd(a))
	return root
}

func newLogger(w io.Writer, level string, json bool) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	if !json {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

// splitCSV splits a comma-separated flag value, dropping empty items.
func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func validate(cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
