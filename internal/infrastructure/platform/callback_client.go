// Package platform implements the outbound HTTP callbacks to the delivery
// platform.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"go.uber.org/zap"

	apporder "github.com/posbridge/backend/internal/application/order"
	"github.com/posbridge/backend/internal/infrastructure/config"
)

// responses larger than this are truncated before logging and returning
const maxCallbackResponseBytes = 64 << 10

// CallbackClient calls the platform's callback URLs: PUT for status updates,
// POST for the prepared notification. Both calls run under their own bounded
// timeout and never surface transport errors to the caller.
type CallbackClient struct {
	statusClient   *http.Client
	preparedClient *http.Client
	logger         *zap.Logger
}

// NewCallbackClient creates the callback client with per-call timeouts from
// the configuration.
func NewCallbackClient(cfg *config.CallbackConfig, logger *zap.Logger) *CallbackClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CallbackClient{
		statusClient:   &http.Client{Timeout: cfg.StatusTimeout},
		preparedClient: &http.Client{Timeout: cfg.PreparedTimeout},
		logger:         logger,
	}
}

// PutStatus forwards the status payload to the platform's callback URL.
func (c *CallbackClient) PutStatus(ctx context.Context, url string, body map[string]any) apporder.CallbackResult {
	if body == nil {
		body = map[string]any{}
	}
	return c.call(ctx, c.statusClient, http.MethodPut, url, body)
}

// PostPrepared notifies the platform that the order is prepared. The
// platform contract expects an empty JSON object body.
func (c *CallbackClient) PostPrepared(ctx context.Context, url string) apporder.CallbackResult {
	return c.call(ctx, c.preparedClient, http.MethodPost, url, map[string]any{})
}

func (c *CallbackClient) call(ctx context.Context, client *http.Client, method, url string, body map[string]any) apporder.CallbackResult {
	payload, err := json.Marshal(body)
	if err != nil {
		return apporder.CallbackResult{Err: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(payload))
	if err != nil {
		return apporder.CallbackResult{Err: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		c.logger.Warn("Platform callback transport error",
			zap.String("method", method),
			zap.String("url", url),
			zap.Error(err))
		return apporder.CallbackResult{Err: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxCallbackResponseBytes))
	if err != nil {
		return apporder.CallbackResult{StatusCode: resp.StatusCode, Err: err.Error()}
	}

	result := apporder.CallbackResult{
		Success:    resp.StatusCode >= 200 && resp.StatusCode < 300,
		StatusCode: resp.StatusCode,
		Body:       string(respBody),
	}
	if !result.Success {
		c.logger.Warn("Platform callback rejected",
			zap.String("method", method),
			zap.String("url", url),
			zap.Int("status_code", resp.StatusCode))
	}
	return result
}
