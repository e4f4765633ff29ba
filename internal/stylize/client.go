package stylize

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// InferenceClient speaks the KServe / Triton v2 REST inference protocol.
type InferenceClient struct {
	baseURL    string
	httpClient *http.Client
	inputName  string
	outputName string
}

type ClientConfig struct {
	Endpoint   string
	Timeout    time.Duration
	InputName  string
	OutputName string
}

func NewInferenceClient(cfg ClientConfig) (*InferenceClient, error) {
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	if endpoint == "" {
		return nil, errors.New("inference endpoint is required")
	}
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return nil, fmt.Errorf("parse inference endpoint: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	inputName := cfg.InputName
	if inputName == "" {
		inputName = "input"
	}
	outputName := cfg.OutputName
	if outputName == "" {
		outputName = "output"
	}

	return &InferenceClient{
		baseURL:    endpoint,
		httpClient: &http.Client{Timeout: timeout},
		inputName:  inputName,
		outputName: outputName,
	}, nil
}

type inferTensor struct {
	Name     string    `json:"name"`
	Shape    []int     `json:"shape,omitempty"`
	Datatype string    `json:"datatype,omitempty"`
	Data     []float32 `json:"data,omitempty"`
}

type inferRequest struct {
	Inputs  []inferTensor `json:"inputs"`
	Outputs []inferTensor `json:"outputs,omitempty"`
}

type inferResponse struct {
	ModelName string        `json:"model_name"`
	Outputs   []inferTensor `json:"outputs"`
	Error     string        `json:"error,omitempty"`
}

func (c *InferenceClient) Ready(ctx context.Context, model string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.modelURL(model, "ready"), nil)
	if err != nil {
		return fmt.Errorf("build ready request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("model ready check: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("model %s not ready: status=%d", model, resp.StatusCode)
	}
	return nil
}

func (c *InferenceClient) Generate(ctx context.Context, model string, input Tensor) (Tensor, error) {
	body, err := json.Marshal(inferRequest{
		Inputs: []inferTensor{{
			Name:     c.inputName,
			Shape:    input.Shape,
			Datatype: "FP32",
			Data:     input.Data,
		}},
		Outputs: []inferTensor{{Name: c.outputName}},
	})
	if err != nil {
		return Tensor{}, fmt.Errorf("marshal infer request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.modelURL(model, "infer"), bytes.NewReader(body))
	if err != nil {
		return Tensor{}, fmt.Errorf("build infer request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Tensor{}, fmt.Errorf("infer request: %w", err)
	}
	defer resp.Body.Close()

	var decoded inferResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Tensor{}, fmt.Errorf("decode infer response (status=%d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		return Tensor{}, fmt.Errorf("infer %s failed: status=%d error=%q", model, resp.StatusCode, decoded.Error)
	}

	for _, out := range decoded.Outputs {
		if out.Name == c.outputName || len(decoded.Outputs) == 1 {
			return Tensor{Shape: out.Shape, Data: out.Data}, nil
		}
	}
	return Tensor{}, fmt.Errorf("infer %s: output %q missing from response", model, c.outputName)
}

func (c *InferenceClient) modelURL(model, action string) string {
	return fmt.Sprintf("%s/v2/models/%s/%s", c.baseURL, url.PathEscape(model), action)
}
