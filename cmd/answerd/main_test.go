package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"answerd/internal/config"
	"answerd/internal/generation"
)

func TestSplitCSV(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"a,b,c", []string{"a", "b", "c"}},
		{" a , b , c ", []string{"a", "b", "c"}},
		{"a,,c", []string{"a", "c"}},
		{"", nil},
	}
	for _, c := range cases {
		got := splitCSV(c.in)
		if len(got) != len(c.want) {
			t.Fatalf("%q -> %v, want %v", c.in, got, c.want)
		}
		for i := range got {
			if got[i] != c.want[i] {
				t.Fatalf("%q -> %v, want %v", c.in, got, c.want)
			}
		}
	}
}

func TestBuildProviders_FromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Local.ModelsDir = t.TempDir()
	cfg.OpenAI.BaseURL = "http://llm.local/v1"
	cfg.Internal.BaseURL = "http://gw.local/v1"
	cfg.Horde.Enabled = true
	providers, models := buildProviders(cfg, zerolog.Nop())
	if len(models) != 0 {
		t.Fatalf("models=%v", models)
	}
	for _, k := range []string{"local", "openai", "internal", "horde"} {
		p, ok := providers[k]
		if !ok {
			t.Fatalf("provider %s missing", k)
		}
		if p.Name() != k {
			t.Fatalf("provider %s reports name %s", k, p.Name())
		}
	}
}

func TestTokenSource_RereadsFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(p, []byte("one\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	ts := tokenSource(config.OpenAI{TokenFile: p})
	if tok, err := ts.Token(context.Background()); err != nil || tok != "one" {
		t.Fatalf("token=%q err=%v", tok, err)
	}
	if err := os.WriteFile(p, []byte("two"), 0o600); err != nil {
		t.Fatal(err)
	}
	if tok, _ := ts.Token(context.Background()); tok != "two" {
		t.Fatalf("rotated token not picked up: %q", tok)
	}
	if _, err := tokenSource(config.OpenAI{}).Token(context.Background()); err == nil {
		t.Fatalf("expected error without token file or key")
	}
}

func TestStdinConsent(t *testing.T) {
	var out bytes.Buffer
	for in, want := range map[string]bool{"y\n": true, "YES\n": true, "n\n": false, "\n": false, "": false} {
		ok, err := stdinConsent(strings.NewReader(in), &out).Allow(context.Background())
		if err != nil || ok != want {
			t.Fatalf("%q -> %v, %v", in, ok, err)
		}
	}
}

type chunkProvider struct{ chunks []string }

func (p chunkProvider) Name() string { return "chunks" }

func (p chunkProvider) Start(ctx context.Context, onProgress func(float64)) (generation.Generator, error) {
	return p, nil
}

func (p chunkProvider) Generate(ctx context.Context, _ []generation.Message, _ generation.Params, onUpdate generation.UpdateFunc) (string, error) {
	text := ""
	for _, c := range p.chunks {
		text += c
		onUpdate(text)
	}
	return text, nil
}

func (p chunkProvider) Close() error { return nil }

func TestPrintSession_PrintsAnswer(t *testing.T) {
	s := generation.NewSession(generation.SessionConfig{
		ID:               "cli",
		Provider:         chunkProvider{chunks: []string{"Olympus", " Mons"}},
		Messages:         []generation.Message{{Role: generation.RoleUser, Content: "q"}},
		ThrottleInterval: time.Millisecond,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go s.Run(ctx)
	var out, errOut bytes.Buffer
	if err := printSession(ctx, s, &out, &errOut); err != nil {
		t.Fatalf("printSession: %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != "Olympus Mons" {
		t.Fatalf("printed %q", got)
	}
}

// replayProvider publishes each cumulative value in turn, pausing so the
// printer observes every one.
type replayProvider struct{ updates []string }

func (p replayProvider) Name() string { return "replay" }

func (p replayProvider) Start(ctx context.Context, onProgress func(float64)) (generation.Generator, error) {
	return p, nil
}

func (p replayProvider) Generate(ctx context.Context, _ []generation.Message, _ generation.Params, onUpdate generation.UpdateFunc) (string, error) {
	for _, u := range p.updates {
		onUpdate(u)
		time.Sleep(20 * time.Millisecond)
	}
	return p.updates[len(p.updates)-1], nil
}

func (p replayProvider) Close() error { return nil }

func TestPrintSession_RestartedAnswerIsReprinted(t *testing.T) {
	s := generation.NewSession(generation.SessionConfig{
		ID:               "cli",
		Provider:         replayProvider{updates: []string{"Paris is", "Paris is the capital", "Berlin", "Berlin is a city in Germany"}},
		Messages:         []generation.Message{{Role: generation.RoleUser, Content: "q"}},
		ThrottleInterval: time.Millisecond,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go s.Run(ctx)
	var out, errOut bytes.Buffer
	if err := printSession(ctx, s, &out, &errOut); err != nil {
		t.Fatalf("printSession: %v", err)
	}
	want := s.Snapshot().Response
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if got := lines[len(lines)-1]; got != want || want != "Berlin is a city in Germany" {
		t.Fatalf("last line %q, response %q", got, want)
	}
	if strings.Contains(out.String(), "capitalGermany") || strings.Contains(out.String(), "capitalBerlin") {
		t.Fatalf("restart glued onto previous attempt: %q", out.String())
	}
	if !strings.Contains(errOut.String(), "[restarted]") {
		t.Fatalf("restart not reported: %q", errOut.String())
	}
}

func TestDoctor_ReportsJSON(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "answerd.yaml")
	body := "local:\n  models_dir: " + t.TempDir() + "\n  server_bin: definitely-not-installed-llama-server\n"
	if err := os.WriteFile(cfgPath, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", cfgPath, "doctor"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("doctor: %v", err)
	}
	var rep doctorReport
	if err := json.Unmarshal(out.Bytes(), &rep); err != nil {
		t.Fatalf("json: %v\n%s", err, out.String())
	}
	if rep.Default != "local" || len(rep.Providers) != 1 || rep.Local.ServerFound {
		t.Fatalf("unexpected report: %+v", rep)
	}
}
