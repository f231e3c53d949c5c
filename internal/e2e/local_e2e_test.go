//go:build integration

package e2e

import (
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"answerd/internal/generation"
	"answerd/internal/httpapi"
	"answerd/internal/manager"
	"answerd/internal/provider/local"
	"answerd/internal/registry"
)

// TestE2E_LocalCPUFallback drives /generate through the local provider. The
// accelerated runtime is unavailable without the llama tag, so the session
// falls back to a fake llama-server subprocess.
func TestE2E_LocalCPUFallback(t *testing.T) {
	bin := filepath.Join(t.TempDir(), "fake_llama_server")
	cmd := exec.Command("go", "build", "-o", bin, "../provider/local/testdata/fake_llama_server.go")
	cmd.Env = append(os.Environ(), "CGO_ENABLED=0")
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("build fake server: %v: %s", err, out)
	}
	t.Setenv("FAKE_LOAD_MS", "100")

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "tiny-q4_k_m.gguf"), []byte("gguf"), 0o644); err != nil {
		t.Fatal(err)
	}
	models, err := registry.LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	p := local.New(local.Config{
		Models:      models,
		Accelerate:  true,
		Accelerated: local.NewAccelerated(local.AcceleratedOptions{}),
		CPU:         local.NewCPU(local.ServerOptions{Bin: bin, PortStart: 31200, PortEnd: 31220, ReadyTimeout: 5 * time.Second}),
	})
	m, err := manager.New(manager.ManagerConfig{
		Providers:         map[string]generation.Provider{local.Name: p},
		DefaultProvider:   local.Name,
		ResultsToConsider: -1,
		Models:            models,
	})
	if err != nil {
		t.Fatalf("manager.New: %v", err)
	}
	srv := httptest.NewServer(httpapi.NewMux(m))
	t.Cleanup(m.Close)
	t.Cleanup(srv.Close)

	resp := post(t, testCtx(t), srv.URL+"/generate", `{"query":"hi"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d", resp.StatusCode)
	}
	lines := readLines(t, resp)
	sawLoading := false
	for _, l := range lines {
		if l.State == string(generation.StateLoadingModel) {
			sawLoading = true
		}
	}
	last := lines[len(lines)-1]
	if !sawLoading || !last.Done || last.State != "completed" || last.Text != "hello world" {
		t.Fatalf("sawLoading=%v final=%+v", sawLoading, last)
	}
}
