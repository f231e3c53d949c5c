package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"answerd/internal/generation"
	"answerd/pkg/types"
)

func newAskCmd(a *app) *cobra.Command {
	var (
		provider string
		results  int
		confirm  bool
	)
	cmd := &cobra.Command{
		Use:     "ask <query>",
		Short:   "Answer one query on the terminal",
		Example: "  answerd ask --provider horde \"what is the tallest mountain on mars\"",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			if provider != "" {
				cfg.Generation.DefaultProvider = provider
			}
			if err := validate(cfg); err != nil {
				return err
			}
			var consent generation.DownloadConsent
			if confirm {
				consent = stdinConsent(cmd.InOrStdin(), cmd.ErrOrStderr())
			}
			mgr, err := newManager(cfg, a.log, consent)
			if err != nil {
				return err
			}
			defer mgr.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT)
			defer stop()
			req := types.GenerateRequest{Query: strings.Join(args, " ")}
			if cmd.Flags().Changed("results") {
				req.ResultsToConsider = &results
			}
			s, err := mgr.Start(a.log.WithContext(ctx), req)
			if err != nil {
				return err
			}
			return printSession(ctx, s, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	cmd.Flags().StringVarP(&provider, "provider", "p", "", "Provider: local|openai|internal|horde")
	cmd.Flags().IntVarP(&results, "results", "n", 0, "Search results to consider (0 disables search)")
	cmd.Flags().BoolVar(&confirm, "confirm", false, "Ask before loading a local model")
	return cmd
}

// printSession writes the response as it grows and reports state changes
// on errOut. Ctrl+C interrupts the session; the partial answer is kept.
func printSession(ctx context.Context, s *generation.Session, out, errOut io.Writer) error {
	printed := ""
	var last generation.State
	for {
		snap, changed := s.Tracker().Watch()
		if snap.State != last && snap.State != generation.StateGenerating && !snap.State.Terminal() {
			fmt.Fprintf(errOut, "[%s]\n", snap.State)
		}
		last = snap.State
		if resp := snap.Response; resp != printed {
			if strings.HasPrefix(resp, printed) {
				fmt.Fprint(out, resp[len(printed):])
			} else {
				// A retry on another model starts the answer over.
				fmt.Fprintln(out)
				fmt.Fprintln(errOut, "[restarted]")
				fmt.Fprint(out, resp)
			}
			printed = resp
		}
		switch snap.State {
		case generation.StateCompleted:
			fmt.Fprintln(out)
			return nil
		case generation.StateInterrupted:
			fmt.Fprintln(out)
			fmt.Fprintln(errOut, "[interrupted]")
			return nil
		case generation.StateFailed:
			fmt.Fprintln(out)
			return fmt.Errorf("generation failed: %s", snap.Err)
		}
		select {
		case <-changed:
		case <-ctx.Done():
			s.Interrupt()
			ctx = context.Background()
		}
	}
}

// stdinConsent asks on the terminal before a model is loaded.
func stdinConsent(in io.Reader, out io.Writer) generation.DownloadConsent {
	return generation.ConsentFunc(func(ctx context.Context) (bool, error) {
		fmt.Fprint(out, "Load the local model now? [y/N] ")
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && line == "" {
			return false, nil
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true, nil
		}
		return false, nil
	})
}
