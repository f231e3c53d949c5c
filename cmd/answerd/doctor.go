package main

import (
	"encoding/json"
	"sort"

	"github.com/spf13/cobra"

	"answerd/internal/provider/local"
)

type doctorReport struct {
	ConfigError string             `json:"config_error,omitempty"`
	Providers   []string           `json:"providers"`
	Default     string             `json:"default_provider"`
	Search      string             `json:"search_url,omitempty"`
	Local       local.SanityReport `json:"local"`
}

func newDoctorCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration and local runtimes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			rep := doctorReport{Default: cfg.Generation.DefaultProvider, Search: cfg.Search.URL}
			if err := cfg.Validate(); err != nil {
				rep.ConfigError = err.Error()
			}
			providers, models := buildProviders(cfg, a.log)
			for k := range providers {
				rep.Providers = append(rep.Providers, k)
			}
			sort.Strings(rep.Providers)
			rep.Local = local.SanityCheck(cfg.Local.ServerBin, len(models))
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(rep)
		},
	}
}
