package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/warrantykeeper/warranty-server-go/internal/config"
	apperrors "github.com/warrantykeeper/warranty-server-go/internal/errors"
)

// HTTPGateway talks to the chat platform's bot API over HTTP.
type HTTPGateway struct {
	client  *http.Client
	baseURL string
	token   string
}

func NewHTTPGateway(baseURL, token string) *HTTPGateway {
	return &HTTPGateway{
		client: &http.Client{
			Timeout: config.GatewayRequestTimeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
	}
}

type sendRequest struct {
	UserID   string    `json:"userId"`
	Text     string    `json:"text"`
	Controls *Controls `json:"controls,omitempty"`
}

type sendResponse struct {
	MessageRef string `json:"messageRef"`
}

type editRequest struct {
	MessageRef string    `json:"messageRef"`
	Text       string    `json:"text"`
	Controls   *Controls `json:"controls,omitempty"`
}

type deleteRequest struct {
	MessageRef string `json:"messageRef"`
}

func (g *HTTPGateway) SendText(ctx context.Context, userID, text string, controls *Controls) (MessageRef, error) {
	var resp sendResponse
	if err := g.post(ctx, "/send", sendRequest{UserID: userID, Text: text, Controls: controls}, &resp); err != nil {
		return "", err
	}
	return MessageRef(resp.MessageRef), nil
}

func (g *HTTPGateway) EditMessage(ctx context.Context, ref MessageRef, text string, controls *Controls) error {
	return g.post(ctx, "/edit", editRequest{MessageRef: string(ref), Text: text, Controls: controls}, nil)
}

func (g *HTTPGateway) DeleteMessage(ctx context.Context, ref MessageRef) error {
	return g.post(ctx, "/delete", deleteRequest{MessageRef: string(ref)}, nil)
}

func (g *HTTPGateway) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	start := time.Now()
	resp, err := g.client.Do(req)
	elapsed := time.Since(start)

	if err != nil {
		log.Error().
			Err(err).
			Str("path", path).
			Dur("elapsed", elapsed).
			Msg("gateway request error")
		return apperrors.Delivery(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Error().
			Str("path", path).
			Int("status", resp.StatusCode).
			Dur("elapsed", elapsed).
			Msg("gateway call failed")
		return apperrors.Delivery(fmt.Errorf("gateway call failed with status %d", resp.StatusCode))
	}

	log.Debug().
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("elapsed", elapsed).
		Msg("gateway call successful")

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode gateway response: %w", err)
	}
	return nil
}
