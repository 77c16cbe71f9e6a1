package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OllamaClient talks to a local Ollama server's /api/generate endpoint.
type OllamaClient struct {
	host  string
	model string
	hc    *http.Client
}

func NewOllamaClient(host, model string, timeout time.Duration) *OllamaClient {
	return &OllamaClient{
		host:  strings.TrimRight(host, "/"),
		model: model,
		hc:    &http.Client{Timeout: timeout},
	}
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateReply struct {
	Response string `json:"response"`
}

func (c *OllamaClient) Generate(ctx context.Context, prompt string) (string, error) {
	b, err := json.Marshal(generateRequest{
		Model:  c.model,
		Prompt: prompt,
		Stream: false,
	})
	if err != nil {
		return "", fmt.Errorf("generate: json.Marshal: %w", err)
	}
	body := bytes.NewBuffer(b)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/api/generate", body)
	if err != nil {
		return "", fmt.Errorf("generate: http.NewRequestWithContext: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("generate: http.Client.Do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		rbody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("generate: resp.StatusCode: %d, resp.Body: %s", resp.StatusCode, rbody)
	}

	var reply generateReply
	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(&reply); err != nil {
		return "", fmt.Errorf("generate: json.Decode: %w", err)
	}

	return strings.TrimSpace(reply.Response), nil
}
