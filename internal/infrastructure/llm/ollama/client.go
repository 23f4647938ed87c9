package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/avoskres/assisted-search/internal/core/domain"
	"github.com/avoskres/assisted-search/internal/infrastructure/resilience"
)

const (
	defaultTemperature = 0.2
	// Temperature for the strict-JSON repair attempt after a parse failure.
	repairTemperature = 0.1
)

const strictJSONReminder = "\n\nOutput ONLY valid JSON. No markdown, no prose, no extra keys."

type Client struct {
	baseURL    string
	httpClient *http.Client
	exec       *resilience.Executor

	mu    sync.RWMutex
	model string
}

func New(baseURL, model string, exec *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		exec:       exec,
	}
}

func (c *Client) ActiveModel() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.model
}

// SelectModel switches the generation model after validating it against
// the tags the host actually serves.
func (c *Client) SelectModel(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.WrapError(domain.ErrInvalidInput, "select model", fmt.Errorf("model name is required"))
	}

	models, err := c.ListModels(ctx)
	if err != nil {
		return err
	}
	if !slices.Contains(models, name) {
		return domain.WrapError(domain.ErrInvalidInput, "select model", fmt.Errorf("model %q is not installed", name))
	}

	c.mu.Lock()
	c.model = name
	c.mu.Unlock()
	return nil
}

func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	var response struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	err := c.exec.Execute(ctx, "ollama.tags", func(ctx context.Context) error {
		return c.getJSON(ctx, "/api/tags", &response, "tags")
	}, classifyOllamaError)
	if err != nil {
		return nil, wrapUnavailableIfNeeded("list models", err)
	}

	names := make([]string, 0, len(response.Models))
	for _, m := range response.Models {
		if m.Name != "" {
			names = append(names, m.Name)
		}
	}
	return names, nil
}

func (c *Client) Health(ctx context.Context) error {
	if err := c.getJSON(ctx, "/api/version", nil, "version"); err != nil {
		return wrapUnavailableIfNeeded("health", err)
	}
	return nil
}

// Warmup fires a minimal generation so the model is resident before the
// first real request. Failures are reported but must not stop startup.
func (c *Client) Warmup(ctx context.Context) error {
	reqBody := map[string]any{
		"model":  c.ActiveModel(),
		"prompt": "Reply with the single word: ready",
		"stream": false,
		"options": map[string]any{
			"num_predict": 4,
		},
	}
	var response struct {
		Response string `json:"response"`
	}
	if err := c.postJSON(ctx, "/api/generate", reqBody, &response, "warmup"); err != nil {
		return wrapUnavailableIfNeeded("warmup", err)
	}
	return nil
}

func (c *Client) generateJSON(ctx context.Context, prompt string, temperature float64) (string, error) {
	reqBody := map[string]any{
		"model":  c.ActiveModel(),
		"prompt": prompt,
		"stream": false,
		"format": "json",
		"options": map[string]any{
			"temperature": temperature,
		},
	}
	return c.generate(ctx, reqBody)
}

func (c *Client) generateText(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]any{
		"model":  c.ActiveModel(),
		"prompt": prompt,
		"stream": false,
		"options": map[string]any{
			"temperature": defaultTemperature,
		},
	}
	return c.generate(ctx, reqBody)
}

func (c *Client) generate(ctx context.Context, reqBody map[string]any) (string, error) {
	var response struct {
		Response string `json:"response"`
	}
	err := c.exec.Execute(ctx, "ollama.generate", func(ctx context.Context) error {
		return c.postJSON(ctx, "/api/generate", reqBody, &response, "generate")
	}, classifyOllamaError)
	if err != nil {
		return "", wrapUnavailableIfNeeded("generate", err)
	}
	return strings.TrimSpace(response.Response), nil
}

// structuredJSON asks for a JSON object and decodes it into out. A parse
// or validation failure earns exactly one repair attempt with a
// strict-output reminder at low temperature; the second failure is
// returned to the caller. validate may be nil.
func (c *Client) structuredJSON(ctx context.Context, operation, prompt string, out any, validate func() error) error {
	decode := func(raw string) error {
		if err := json.Unmarshal([]byte(extractJSONObject(raw)), out); err != nil {
			return err
		}
		if validate != nil {
			return validate()
		}
		return nil
	}

	raw, err := c.generateJSON(ctx, prompt, defaultTemperature)
	if err != nil {
		return err
	}
	if decode(raw) == nil {
		return nil
	}

	raw, err = c.generateJSON(ctx, prompt+strictJSONReminder, repairTemperature)
	if err != nil {
		return err
	}
	if err := decode(raw); err != nil {
		return fmt.Errorf("parse %s json: %w", operation, err)
	}
	return nil
}

// generateStream runs a streaming generation, invoking onChunk for every
// non-empty fragment in arrival order. The stream is line-delimited JSON
// objects with "response" and "done" fields.
func (c *Client) generateStream(ctx context.Context, prompt string, onChunk func(string) error) error {
	reqBody := map[string]any{
		"model":  c.ActiveModel(),
		"prompt": prompt,
		"stream": true,
		"options": map[string]any{
			"temperature": defaultTemperature,
		},
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal stream request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create stream request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return wrapUnavailableIfNeeded("stream", fmt.Errorf("ollama stream request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return wrapUnavailableIfNeeded("stream", newHTTPStatusError("stream", resp))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var frame struct {
			Response string `json:"response"`
			Done     bool   `json:"done"`
			Error    string `json:"error"`
		}
		if err := json.Unmarshal(line, &frame); err != nil {
			return fmt.Errorf("decode stream frame: %w", err)
		}
		if frame.Error != "" {
			return fmt.Errorf("ollama stream: %s", frame.Error)
		}
		if frame.Response != "" {
			if err := onChunk(frame.Response); err != nil {
				return err
			}
		}
		if frame.Done {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return wrapUnavailableIfNeeded("stream", fmt.Errorf("read stream: %w", err))
	}
	return nil
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
