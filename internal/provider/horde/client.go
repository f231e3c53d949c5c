package horde

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is the public AI Horde API root.
const DefaultBaseURL = "https://aihorde.net/api/v2"

// AnonymousKey is the shared key for unauthenticated use.
const AnonymousKey = "0000000000"

// Client is a minimal AI Horde text generation client.
type Client struct {
	baseURL    string
	apiKey     string
	agent      string
	httpClient *http.Client
}

// NewClient constructs a client. Requests carry no client-side timeout; every
// call is bounded by its context.
func NewClient(baseURL, apiKey, clientAgent string, connectTimeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if apiKey == "" {
		apiKey = AnonymousKey
	}
	if connectTimeout <= 0 {
		connectTimeout = 10 * time.Second
	}
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   connectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        16,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		agent:      clientAgent,
		httpClient: &http.Client{Transport: tr, Timeout: 0},
	}
}

// GenerationInput is the body of POST /generate/text/async.
type GenerationInput struct {
	Prompt  string      `json:"prompt"`
	Params  InputParams `json:"params"`
	Models  []string    `json:"models,omitempty"`
	Workers []string    `json:"workers,omitempty"`
}

// InputParams are the sampling parameters AI Horde accepts.
type InputParams struct {
	N                int      `json:"n"`
	MaxContextLength int      `json:"max_context_length"`
	MaxLength        int      `json:"max_length"`
	Temperature      float32  `json:"temperature"`
	TopP             float32  `json:"top_p,omitempty"`
	MinP             float32  `json:"min_p,omitempty"`
	StopSequence     []string `json:"stop_sequence,omitempty"`
}

// SubmitResponse is the reply to a submission.
type SubmitResponse struct {
	ID      string  `json:"id"`
	Kudos   float64 `json:"kudos"`
	Message string  `json:"message,omitempty"`
}

// Generation is one finished output of a job.
type Generation struct {
	Text       string `json:"text"`
	Model      string `json:"model"`
	WorkerName string `json:"worker_name"`
}

// Status is the reply of GET /generate/text/status/{id}.
type Status struct {
	Generations   []Generation `json:"generations"`
	Done          bool         `json:"done"`
	Faulted       bool         `json:"faulted"`
	IsPossible    bool         `json:"is_possible"`
	QueuePosition int          `json:"queue_position"`
	WaitTime      int          `json:"wait_time"`
}

// Text returns the first generation's text.
func (s Status) Text() string {
	if len(s.Generations) == 0 {
		return ""
	}
	return s.Generations[0].Text
}

// UnmarshalJSON defaults IsPossible to true when the field is absent.
func (s *Status) UnmarshalJSON(b []byte) error {
	type plain Status
	aux := struct {
		*plain
		IsPossible *bool `json:"is_possible"`
	}{plain: (*plain)(s)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	s.IsPossible = aux.IsPossible == nil || *aux.IsPossible
	return nil
}

// Submit queues a text generation job.
func (c *Client) Submit(ctx context.Context, in GenerationInput) (SubmitResponse, error) {
	var out SubmitResponse
	body, err := json.Marshal(in)
	if err != nil {
		return out, err
	}
	if err := c.do(ctx, http.MethodPost, "/generate/text/async", bytes.NewReader(body), &out); err != nil {
		return out, err
	}
	if out.ID == "" {
		return out, fmt.Errorf("horde submit: empty job id (%s)", out.Message)
	}
	return out, nil
}

// Status fetches the state of a job.
func (c *Client) Status(ctx context.Context, id string) (Status, error) {
	var out Status
	err := c.do(ctx, http.MethodGet, "/generate/text/status/"+url.PathEscape(id), nil, &out)
	return out, err
}

// Cancel deletes a job server-side.
func (c *Client) Cancel(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/generate/text/status/"+url.PathEscape(id), nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("apikey", c.apiKey)
	if c.agent != "" {
		req.Header.Set("Client-Agent", c.agent)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("horde %s %s: %s: %s", method, path, resp.Status, strings.TrimSpace(string(b)))
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("horde %s %s: decode: %w", method, path, err)
	}
	return nil
}
