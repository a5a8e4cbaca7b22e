// Package ner implements the named-entity-recognition capability against a
// HuggingFace token-classification endpoint. The timeout and retry budget are
// explicit configuration, never unbounded.
package ner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dealdocs/contractocr/internal/common"
	"github.com/dealdocs/contractocr/internal/extract"
)

// Client calls a HuggingFace inference endpoint for token classification.
type Client struct {
	cfg    common.NERConfig
	http   *http.Client
	logger *slog.Logger
}

func NewClient(cfg common.NERConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api-inference.huggingface.co"
	}
	if cfg.Model == "" {
		cfg.Model = "dslim/bert-base-NER"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// token mirrors one element of the inference response. Depending on the
// pipeline's aggregation setting the label arrives as entity_group or entity.
type token struct {
	EntityGroup string  `json:"entity_group"`
	Entity      string  `json:"entity"`
	Word        string  `json:"word"`
	Score       float64 `json:"score"`
}

func (t token) label() string {
	if t.EntityGroup != "" {
		return t.EntityGroup
	}
	return t.Entity
}

// RecognizeEntities implements extract.EntityRecognizer. Transport errors are
// retried up to the configured budget; a non-2xx response is never retried,
// since the model rejecting the input will not improve on a second attempt.
func (c *Client) RecognizeEntities(ctx context.Context, text string) ([]extract.Entity, error) {
	reqID := uuid.New().String()
	start := time.Now()
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/models/" + c.cfg.Model

	body, err := json.Marshal(map[string]any{"inputs": text})
	if err != nil {
		return nil, fmt.Errorf("encode json: %w", err)
	}

	var raw []byte
	var lastErr error
	for attempt := 0; attempt <= c.cfg.Retries; attempt++ {
		raw, lastErr = c.post(ctx, endpoint, body, reqID)
		if lastErr == nil {
			break
		}
		var se *statusError
		if errors.As(lastErr, &se) {
			break // the endpoint answered; retrying won't change its mind
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Warn("ner.request.retry", "req_id", reqID, "attempt", attempt+1, "error", lastErr)
	}
	if lastErr != nil {
		c.logger.Error("ner.request.failed", "req_id", reqID, "error", lastErr,
			"elapsed_ms", time.Since(start).Milliseconds())
		return nil, lastErr
	}

	if err := validateResponse(raw); err != nil {
		return nil, fmt.Errorf("ner response: %w", err)
	}
	tokens, err := decodeTokens(raw)
	if err != nil {
		return nil, err
	}

	ents := make([]extract.Entity, 0, len(tokens))
	for _, t := range tokens {
		ents = append(ents, extract.Entity{Category: t.label(), Value: t.Word})
	}
	c.logger.Debug("ner.request.ok", "req_id", reqID, "entities", len(ents),
		"elapsed_ms", time.Since(start).Milliseconds())
	return ents, nil
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("non-2xx status: %d: %s", e.code, e.body)
}

func (c *Client) post(ctx context.Context, url string, body []byte, reqID string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Warn("ner.response_body_close_error", "req_id", reqID, "error", err)
		}
	}()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		return nil, &statusError{code: resp.StatusCode, body: truncate(string(raw), 512)}
	}
	return raw, nil
}

// decodeTokens accepts both response shapes the inference API produces: a
// flat token array, or one array per input sequence.
func decodeTokens(raw []byte) ([]token, error) {
	var flat []token
	if err := json.Unmarshal(raw, &flat); err == nil {
		return flat, nil
	}
	var nested [][]token
	if err := json.Unmarshal(raw, &nested); err == nil {
		var out []token
		for _, seq := range nested {
			out = append(out, seq...)
		}
		return out, nil
	}
	return nil, fmt.Errorf("decode ner response: unexpected shape")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
