package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/kbukum/agentflow/errors"
	"github.com/kbukum/agentflow/httpclient"
	"github.com/kbukum/agentflow/workflow"
)

// HTTPRequest is the JSON body posted to a remote agent.
type HTTPRequest struct {
	Node  string `json:"node"`
	Input string `json:"input"`
	Image string `json:"image,omitempty"`
}

// HTTPResponse is the JSON body a remote agent answers with. A non-empty
// Error fails the node even on a 2xx status.
type HTTPResponse struct {
	Output string `json:"output"`
	Error  string `json:"error,omitempty"`
}

// HTTP posts each request to a remote agent endpoint.
type HTTP struct {
	url    string
	client *httpclient.Client
}

// NewHTTP creates a remote agent executor.
func NewHTTP(cfg HTTPConfig) (*HTTP, error) {
	client, err := httpclient.New(httpclient.Config{
		Timeout: cfg.Timeout,
		Auth:    cfg.Auth,
		Headers: cfg.Headers,
	})
	if err != nil {
		return nil, err
	}
	return &HTTP{url: cfg.URL, client: client}, nil
}

// Kind implements workflow.Kinded.
func (h *HTTP) Kind() string { return string(TypeHTTP) }

// Execute implements workflow.Executor.
func (h *HTTP) Execute(ctx context.Context, req workflow.Request) (string, error) {
	resp, err := h.client.Do(ctx, httpclient.Request{
		Method: http.MethodPost,
		Path:   h.url,
		Body:   HTTPRequest{Node: req.Node, Input: req.Input, Image: req.Image},
	})
	if err != nil {
		return "", err
	}

	var out HTTPResponse
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return "", errors.ExternalServiceError("remote executor", fmt.Errorf("decoding response: %w", err))
	}
	if out.Error != "" {
		return "", errors.ExternalServiceError("remote executor", fmt.Errorf("agent error: %s", out.Error))
	}
	return out.Output, nil
}
