package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"kbchat/internal/logging"
	"kbchat/internal/types"
)

// HTTPConfig holds configuration for the gateway client.
type HTTPConfig struct {
	BaseURL string
	Timeout time.Duration
}

// HTTPInvoker invokes the agent through an HTTP gateway exposing the
// agent runtime's invoke route.
type HTTPInvoker struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPInvoker creates a gateway client.
func NewHTTPInvoker(cfg HTTPConfig) *HTTPInvoker {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &HTTPInvoker{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type invokeRequest struct {
	InputText   string `json:"inputText"`
	EnableTrace bool   `json:"enableTrace"`
}

// Invoke posts the prompt and decodes the complete response.
func (c *HTTPInvoker) Invoke(ctx context.Context, req Request) (types.RawResponse, error) {
	startTime := time.Now()
	if req.AgentID == "" {
		return types.RawResponse{}, fmt.Errorf("agent id not configured")
	}

	jsonData, err := json.Marshal(invokeRequest{InputText: req.Prompt, EnableTrace: true})
	if err != nil {
		return types.RawResponse{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/agents/%s/agentAliases/%s/sessions/%s/text",
		c.baseURL, url.PathEscape(req.AgentID), url.PathEscape(req.AliasID), url.PathEscape(req.SessionID))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return types.RawResponse{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json, application/x-ndjson")

	logging.AgentDebug("invoking agent %s/%s session=%s prompt_len=%d", req.AgentID, req.AliasID, req.SessionID, len(req.Prompt))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		logging.AgentError("request failed after %v: %v", time.Since(startTime), err)
		return types.RawResponse{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		logging.AgentError("agent returned status %d", resp.StatusCode)
		return types.RawResponse{}, fmt.Errorf("agent request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	raw, err := Decode(resp.Body)
	if err != nil {
		logging.AgentError("failed to decode response: %v", err)
		return types.RawResponse{}, err
	}

	logging.Agent("agent responded in %v: text_len=%d citations=%d trace_fragments=%d",
		time.Since(startTime), len(raw.OutputText), len(raw.Citations), raw.Trace.Len())
	return raw, nil
}
