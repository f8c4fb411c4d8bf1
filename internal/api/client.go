// internal/api/client.go
// Package api is the HTTP client for the generation backend: model registry,
// streaming generation, evaluation and file upload.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/mwiater/medgen/internal/appconfig"
	"github.com/mwiater/medgen/internal/logging"
	"github.com/mwiater/medgen/internal/runstate"
	"github.com/mwiater/medgen/internal/stream"
)

const (
	pathModels         = "/api/ollama/models"
	pathLocalModels    = "/api/local/models"
	pathBackend        = "/api/local/backend"
	pathAllModels      = "/api/all-models"
	pathGenerateStream = "/api/generate-stream"
	pathEvaluate       = "/api/evaluate"
	pathUpload         = "/api/upload"
)

// Client talks to the generation backend.
type Client struct {
	baseURL string
	backend string
	http    *http.Client
	timeout time.Duration
}

// New constructs a Client from the application configuration.
func New(cfg appconfig.Config) *Client {
	return &Client{
		baseURL: cfg.BaseURL(),
		backend: strings.TrimSpace(cfg.Backend),
		http: &http.Client{
			Transport: &http.Transport{ForceAttemptHTTP2: false},
		},
		timeout: cfg.RequestTimeout(),
	}
}

// BaseURL returns the backend URL requests are sent to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// LocalModel names a model together with the backend that serves it.
type LocalModel struct {
	Model   string `json:"model"`
	Backend string `json:"backend"`
}

// GenerateRequest is the body of a streaming generation request.
type GenerateRequest struct {
	InputText    string       `json:"input_text"`
	OllamaModels []string     `json:"ollama_models"`
	LocalModels  []LocalModel `json:"local_models,omitempty"`
}

// EvaluateRequest is the body of an evaluation request.
type EvaluateRequest struct {
	InputText string            `json:"input_text"`
	Outputs   map[string]string `json:"outputs"`
}

// LocalModels is the registry answer for the active local backend.
type LocalModels struct {
	Models  []string `json:"models"`
	Backend string   `json:"backend"`
	Error   string   `json:"error,omitempty"`
}

// BackendInfo describes where the backend forwards local generations.
type BackendInfo struct {
	Backend   string `json:"backend"`
	OllamaURL string `json:"ollama_url"`
	VLLMURL   string `json:"vllm_url"`
}

// AllModels lists models of every local backend.
type AllModels struct {
	Ollama []string `json:"ollama"`
	VLLM   []string `json:"vllm"`
}

// ListModels returns the locally served models offered for selection.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	var resp struct {
		Models []string `json:"models"`
	}
	if err := c.getJSON(ctx, pathModels, &resp); err != nil {
		return nil, err
	}
	return resp.Models, nil
}

// ListLocalModels returns the models of the configured local backend.
func (c *Client) ListLocalModels(ctx context.Context) (LocalModels, error) {
	var resp LocalModels
	err := c.getJSON(ctx, pathLocalModels, &resp)
	return resp, err
}

// Backend returns the backend's local model routing.
func (c *Client) Backend(ctx context.Context) (BackendInfo, error) {
	var resp BackendInfo
	err := c.getJSON(ctx, pathBackend, &resp)
	return resp, err
}

// ListAllModels returns the models of both local backends.
func (c *Client) ListAllModels(ctx context.Context) (AllModels, error) {
	var resp AllModels
	err := c.getJSON(ctx, pathAllModels, &resp)
	return resp, err
}

// NewGenerateRequest builds the request body for input and models. The
// backend starts one stream per entry of either list, so each model goes into
// exactly one of them: local_models when a backend is configured, else
// ollama_models.
func (c *Client) NewGenerateRequest(input string, models []string) GenerateRequest {
	req := GenerateRequest{InputText: input, OllamaModels: []string{}}
	if c.backend == "" {
		req.OllamaModels = append(req.OllamaModels, models...)
		return req
	}
	for _, m := range models {
		req.LocalModels = append(req.LocalModels, LocalModel{Model: m, Backend: c.backend})
	}
	return req
}

// Models returns every model the request streams, in request order.
func (r GenerateRequest) Models() []string {
	models := append([]string{}, r.OllamaModels...)
	for _, m := range r.LocalModels {
		models = append(models, m.Model)
	}
	return models
}

// GenerateStream posts req and returns the response body as an open stream.
// The caller must Close it. The stream is bound to ctx only; the request
// timeout does not apply to the body.
func (c *Client) GenerateStream(ctx context.Context, req GenerateRequest) (io.ReadCloser, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	logging.LogRequest("MEDGEN->API", pathGenerateStream, strings.Join(req.Models(), ","), body)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+pathGenerateStream, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("generate stream: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(resp.Body)
		logging.LogRequest("API->MEDGEN", pathGenerateStream, "", respBody)
		return nil, newError(resp, respBody)
	}
	return resp.Body, nil
}

// Stream posts req and returns a decoder over the response events together
// with the body that must be closed when done.
func (c *Client) Stream(ctx context.Context, req GenerateRequest) (*stream.Decoder, io.Closer, error) {
	body, err := c.GenerateStream(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	return stream.NewDecoder(body), body, nil
}

// Evaluate asks the backend to judge the finalized outputs of a run.
func (c *Client) Evaluate(ctx context.Context, input string, outputs map[string]string) (runstate.Evaluation, error) {
	var result runstate.Evaluation
	err := c.postJSON(ctx, pathEvaluate, EvaluateRequest{InputText: input, Outputs: outputs}, &result)
	return result, err
}

// Upload sends a file to the backend and returns its extracted text.
func (c *Client) Upload(ctx context.Context, filename string, content io.Reader) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(filename))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, content); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	logging.LogRequest("MEDGEN->API", pathUpload, "", map[string]any{"filename": filepath.Base(filename), "bytes": buf.Len()})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+pathUpload, &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var resp struct {
		Content string `json:"content"`
	}
	if err := c.do(req, pathUpload, &resp); err != nil {
		return "", err
	}
	return resp.Content, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	logging.LogRequest("MEDGEN->API", path, "", map[string]string{"method": http.MethodGet, "url": c.baseURL + path})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, path, out)
}

func (c *Client) postJSON(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	logging.LogRequest("MEDGEN->API", path, "", body)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, path, out)
}

// do sends req, maps non-2xx answers to *Error and decodes the body into out.
func (c *Client) do(req *http.Request, path string, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: read body: %w", path, err)
	}
	logging.LogRequest("API->MEDGEN", path, "", body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newError(resp, body)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", path, err)
	}
	return nil
}
