// Package runner is the thin HTTP client that translates console
// invocations into the deployment's wire format.
package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/funcdeck-hq/funcdeck/pkg/model"
)

// InvokeRequest describes one function invocation.
type InvokeRequest struct {
	// FullPath is the function identity key, e.g. "products/products:list".
	FullPath string `json:"path"`
	// Kind selects the execution endpoint on the deployment.
	Kind model.FunctionKind `json:"kind"`
	// Args is the JSON argument object; nil means {}.
	Args json.RawMessage `json:"args,omitempty"`
	// Identity, when set, is the user identity the function runs under.
	Identity string `json:"identity,omitempty"`
}

// InvokeResult is the deployment's reply.
type InvokeResult struct {
	Status       string          `json:"status"`
	Value        json.RawMessage `json:"value,omitempty"`
	ErrorMessage string          `json:"errorMessage,omitempty"`
	LogLines     []string        `json:"logLines,omitempty"`
}

// wireRequest is the deployment API request format.
type wireRequest struct {
	Path           string          `json:"path"`
	Args           json.RawMessage `json:"args"`
	Format         string          `json:"format"`
	ActingIdentity string          `json:"actingUserIdentity,omitempty"`
}

// Client invokes functions on a live deployment.
type Client struct {
	baseURL    string
	adminKey   string
	httpClient *http.Client
}

// NewClient creates a client for the deployment at baseURL. adminKey
// authorizes execution and identity impersonation.
func NewClient(baseURL, adminKey string) *Client {
	return &Client{
		baseURL:  baseURL,
		adminKey: adminKey,
		httpClient: &http.Client{
			Timeout: 60 * time.Second, // actions may run long
		},
	}
}

// Invoke runs one function on the deployment and returns its result. A
// function-level failure comes back as a result with status "error", not
// as a Go error; errors are reserved for transport problems.
func (c *Client) Invoke(ctx context.Context, req InvokeRequest) (*InvokeResult, error) {
	args := req.Args
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}

	body, err := json.Marshal(wireRequest{
		Path:           req.FullPath,
		Args:           args,
		Format:         "json",
		ActingIdentity: req.Identity,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode invoke request: %w", err)
	}

	url := c.baseURL + "/api/" + endpoint(req.Kind)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.adminKey != "" {
		httpReq.Header.Set("Authorization", "Deploy "+c.adminKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("deployment unreachable: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("deployment returned %d: %s", resp.StatusCode, data)
	}

	var result InvokeResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &result, nil
}

// endpoint maps a function kind to its execution endpoint.
func endpoint(kind model.FunctionKind) string {
	switch kind {
	case model.KindMutation:
		return "mutation"
	case model.KindAction:
		return "action"
	default:
		return "query"
	}
}
