package local

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"answerd/internal/common/fsutil"
	"answerd/internal/generation"
)

// ServerOptions configures the CPU runtime.
type ServerOptions struct {
	// Bin is the llama-server executable (name or path).
	Bin       string
	Host      string
	PortStart int
	PortEnd   int
	CtxSize   int
	Threads   int
	ExtraArgs []string
	// ReadyTimeout bounds model load; RequestTimeout bounds one completion.
	ReadyTimeout   time.Duration
	RequestTimeout time.Duration
}

// cpuRuntime spawns one llama-server per engine with GPU offload disabled.
type cpuRuntime struct {
	opts       ServerOptions
	httpClient *http.Client
}

// NewCPU constructs the CPU runtime.
func NewCPU(opts ServerOptions) Runtime {
	if strings.TrimSpace(opts.Host) == "" {
		opts.Host = "127.0.0.1"
	}
	if opts.Bin == "" {
		opts.Bin = "llama-server"
	}
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = 120 * time.Second
	}
	// Timeout=0: every request carries a context deadline instead.
	return &cpuRuntime{opts: opts, httpClient: &http.Client{Timeout: 0}}
}

func (r *cpuRuntime) Name() string { return "cpu" }

func (r *cpuRuntime) Start(ctx context.Context, modelPath string, onProgress func(float64)) (Engine, error) {
	if strings.TrimSpace(modelPath) == "" {
		return nil, errors.New("model path is empty")
	}
	bin, err := fsutil.FindExecutable(r.opts.Bin, "./bin")
	if err != nil {
		return nil, ErrDependencyUnavailable("llama-server not found: " + err.Error())
	}
	var port int
	if r.opts.PortStart > 0 && r.opts.PortEnd >= r.opts.PortStart {
		port, err = pickPortInRange(r.opts.Host, r.opts.PortStart, r.opts.PortEnd)
	} else {
		port, err = pickFreePort(r.opts.Host)
	}
	if err != nil {
		return nil, err
	}
	baseURL := fmt.Sprintf("http://%s:%d", r.opts.Host, port)

	args := []string{
		"-m", modelPath,
		"--host", r.opts.Host,
		"--port", strconv.Itoa(port),
		"--n-gpu-layers", "0",
	}
	if r.opts.CtxSize > 0 {
		args = append(args, "-c", strconv.Itoa(r.opts.CtxSize))
	}
	if r.opts.Threads > 0 {
		args = append(args, "-t", strconv.Itoa(r.opts.Threads))
	}
	args = append(args, r.opts.ExtraArgs...)

	// The process outlives ctx, so it is not bound to it.
	cmd := exec.Command(bin, args...)
	stderr := &tailBuffer{max: 4096}
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start llama-server: %w", err)
	}
	log := zerolog.Ctx(ctx).With().Int("pid", cmd.Process.Pid).Str("url", baseURL).Logger()
	log.Debug().Msg("llama-server spawned")
	e := &cpuEngine{
		cmd:        cmd,
		baseURL:    baseURL,
		httpClient: r.httpClient,
		reqTimeout: r.opts.RequestTimeout,
		exited:     make(chan struct{}),
	}
	go func() {
		e.exitErr = cmd.Wait()
		close(e.exited)
	}()
	onProgress(10)

	if err := e.waitReady(ctx, r.opts.ReadyTimeout, onProgress); err != nil {
		_ = e.Close()
		if ctx.Err() != nil {
			return nil, generation.Interrupted(ctx.Err())
		}
		if tail := stderr.String(); tail != "" {
			err = fmt.Errorf("%w; stderr tail: %s", err, tail)
		}
		return nil, err
	}
	onProgress(100)
	log.Debug().Msg("llama-server ready")
	return e, nil
}

// cpuEngine talks to one spawned llama-server.
type cpuEngine struct {
	cmd        *exec.Cmd
	baseURL    string
	httpClient *http.Client
	reqTimeout time.Duration

	exited  chan struct{}
	exitErr error

	closeOnce sync.Once
	closed    atomic.Bool
}

// waitReady polls /health until the server reports ready. llama-server
// answers 503 while the model is loading.
func (e *cpuEngine) waitReady(ctx context.Context, timeout time.Duration, onProgress func(float64)) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case <-e.exited:
			if e.exitErr != nil {
				return fmt.Errorf("llama-server exited early: %v", e.exitErr)
			}
			return fmt.Errorf("llama-server exited before ready: %s", e.baseURL)
		default:
		}
		switch code := e.health(ctx); {
		case code >= 200 && code < 300:
			return nil
		case code == http.StatusServiceUnavailable:
			onProgress(50)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("llama-server not ready in time: %s", e.baseURL)
		case <-tick.C:
		}
	}
}

func (e *cpuEngine) health(ctx context.Context) int {
	hctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(hctx, http.MethodGet, e.baseURL+"/health", nil)
	if err != nil {
		return 0
	}
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return 0
	}
	_ = resp.Body.Close()
	return resp.StatusCode
}

func (e *cpuEngine) Generate(ctx context.Context, messages []generation.Message, params generation.Params, onToken func(string) error) (string, error) {
	if e.closed.Load() {
		return "", errors.New("engine closed")
	}
	parent := ctx
	if e.reqTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.reqTimeout)
		defer cancel()
	}
	text, err := e.stream(ctx, messages, params, onToken)
	if err != nil && parent.Err() == nil && ctx.Err() != nil {
		return text, fmt.Errorf("llama server request timed out after %v", e.reqTimeout)
	}
	return text, err
}

func (e *cpuEngine) stream(ctx context.Context, messages []generation.Message, params generation.Params, onToken func(string) error) (string, error) {
	body, err := json.Marshal(newChatRequest(messages, params))
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	resp, err := e.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", generation.Interrupted(ctx.Err())
		}
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("llama server http error: %s: %s", resp.Status, strings.TrimSpace(string(b)))
	}
	var sb strings.Builder
	_, err = readStream(ctx, resp.Body, func(tok string) error {
		sb.WriteString(tok)
		return onToken(tok)
	})
	return sb.String(), err
}

// Close stops the server: SIGTERM first, then kill after two seconds.
func (e *cpuEngine) Close() error {
	e.closeOnce.Do(func() {
		e.closed.Store(true)
		if e.cmd == nil || e.cmd.Process == nil {
			return
		}
		_ = e.cmd.Process.Signal(syscall.SIGTERM)
		select {
		case <-e.exited:
		case <-time.After(2 * time.Second):
			_ = e.cmd.Process.Kill()
			<-e.exited
		}
	})
	return nil
}

func pickPortInRange(host string, start, end int) (int, error) {
	for p := start; p <= end; p++ {
		l, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(p)))
		if err != nil {
			continue
		}
		_ = l.Close()
		return p, nil
	}
	return 0, fmt.Errorf("no free port in range %d-%d", start, end)
}

func pickFreePort(host string) (int, error) {
	l, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if len(b.buf) > b.max {
		b.buf = b.buf[len(b.buf)-b.max:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.TrimSpace(string(b.buf))
}
