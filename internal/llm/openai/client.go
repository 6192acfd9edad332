// Package openai is the OpenAI-compatible extraction collaborator. It sends the
// receipt itself (images as data URLs, PDFs as file parts) to chat/completions
// and validates the JSON reply against the receipt schema.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/receipts-intake/constants"
	"github.com/joseph-ayodele/receipts-intake/internal/common"
	"github.com/joseph-ayodele/receipts-intake/internal/extract"
	"github.com/joseph-ayodele/receipts-intake/internal/llm"
)

var _ extract.Extractor = (*Client)(nil)

// Extract implements extract.Extractor. Replies that cannot be parsed or fail
// validation are retried up to MaxAttempts times; transport and file errors
// are returned immediately.
func (c *Client) Extract(ctx context.Context, path string) (extract.ReceiptData, error) {
	rid := uuid.New().String()
	start := time.Now()
	log := common.LoggerFromContext(ctx, c.log)

	schema, err := llm.ReceiptSchema()
	if err != nil {
		return extract.ReceiptData{}, extract.NewError(extract.KindUnknown, path, err)
	}
	parts, err := c.fileParts(path)
	if err != nil {
		return extract.ReceiptData{}, err
	}

	req := llm.ExtractRequest{
		FilePath:        path,
		FilenameHint:    filepath.Base(path),
		DefaultCurrency: c.cfg.DefaultCurrency,
		Today:           c.now().Format("2006-01-02"),
	}

	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		log.Info("llm.extract.start",
			"req_id", rid,
			"model", c.cfg.Model,
			"file", req.FilenameHint,
			"attempt", attempt,
		)
		data, err := c.extractOnce(ctx, log, rid, schema, req, parts)
		if err == nil {
			log.Info("llm.extract.ok",
				"req_id", rid,
				"description", data.Description,
				"date", data.Date,
				"amount", data.Amount,
				"currency", data.Currency,
				"confidence", data.Confidence,
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return data, nil
		}
		lastErr = err
		if extract.KindOf(err) != extract.KindParseFailure {
			break
		}
		log.Warn("llm.extract.retry", "req_id", rid, "attempt", attempt, "error", err)
	}
	return extract.ReceiptData{}, lastErr
}

func (c *Client) fileParts(path string) ([]map[string]any, error) {
	format := constants.MapExtToFormat(filepath.Ext(path))
	if format == "" {
		return nil, extract.NewError(extract.KindUnsupportedFormat, path,
			fmt.Errorf("extension %q not supported", filepath.Ext(path)))
	}
	dataURL, _, err := llm.ReadAsDataURL(path)
	if err != nil {
		if errors.Is(err, llm.ErrTooLarge) {
			return nil, extract.NewError(extract.KindUnsupportedFormat, path, err)
		}
		return nil, extract.NewError(extract.KindFileCorrupt, path, err)
	}

	if format == constants.PDF {
		return []map[string]any{{
			"type": "file",
			"file": map[string]any{"filename": filepath.Base(path), "file_data": dataURL},
		}}, nil
	}
	return []map[string]any{{
		"type":      "image_url",
		"image_url": map[string]any{"url": dataURL},
	}}, nil
}

func (c *Client) extractOnce(ctx context.Context, log *slog.Logger, rid string, schema *llm.Schema, req llm.ExtractRequest, parts []map[string]any) (extract.ReceiptData, error) {
	path := req.FilePath

	content := append([]map[string]any{{"type": "text", "text": llm.BuildUserPrompt(req)}}, parts...)
	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": llm.BuildSystemPrompt(req)},
			{"role": "system", "content": "JSON Schema:\n" + mustJSON(schema.Document)},
			{"role": "user", "content": content},
		},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}
	raw, _, err := llm.SendJSON(ctx, c.httpClient, endpoint, body, headers, log)
	if err != nil {
		log.Error("llm.extract.http_error", "req_id", rid, "error", err)
		return extract.ReceiptData{}, extract.NewError(extract.KindAPIFailure, path, err)
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		log.Error("llm.extract.decode_error", "req_id", rid, "error", err, "raw_bytes", len(raw))
		return extract.ReceiptData{}, extract.NewError(extract.KindAPIFailure, path, fmt.Errorf("decode openai response: %w", err))
	}
	if len(cc.Choices) == 0 {
		log.Error("llm.extract.no_choices", "req_id", rid, "raw", string(raw))
		return extract.ReceiptData{}, extract.NewError(extract.KindAPIFailure, path, errors.New("no choices in openai response"))
	}
	rawContent := []byte(stripFences(cc.Choices[0].Message.Content))

	// Validate strictly first.
	if err := schema.Validate(rawContent); err != nil {
		if !c.cfg.LenientOptional {
			log.Error("llm.extract.schema_validation_failed", "req_id", rid, "error", err, "content", string(rawContent))
			return extract.ReceiptData{}, extract.NewError(extract.KindParseFailure, path, fmt.Errorf("schema validation failed: %w", err))
		}
		// Try a lenient sanitize: rename/normalize offenders and re-validate.
		cleaned, dropped, sErr := llm.NormalizeAndSanitizeJSON(rawContent, log)
		if sErr != nil {
			log.Error("llm.extract.sanitize_failed", "req_id", rid, "error", sErr)
			return extract.ReceiptData{}, extract.NewError(extract.KindParseFailure, path, sErr)
		}
		if vErr := schema.Validate(cleaned); vErr != nil {
			log.Error("llm.extract.schema_validation_failed", "req_id", rid, "error", vErr, "content", string(rawContent))
			return extract.ReceiptData{}, extract.NewError(extract.KindParseFailure, path, fmt.Errorf("schema validation failed: %w", vErr))
		}
		log.Warn("llm.extract.lenient_sanitize_applied", "req_id", rid, "dropped", dropped)
		rawContent = cleaned
	}

	var out llm.ReceiptFields
	if err := json.Unmarshal(rawContent, &out); err != nil {
		return extract.ReceiptData{}, extract.NewError(extract.KindParseFailure, path, fmt.Errorf("unmarshal fields: %w", err))
	}
	data, err := out.ToReceiptData()
	if err != nil {
		return extract.ReceiptData{}, extract.NewError(extract.KindParseFailure, path, err)
	}
	if err := extract.Validate(data, c.now()); err != nil {
		log.Warn("llm.extract.invalid_fields", "req_id", rid, "error", err)
		return extract.ReceiptData{}, extract.NewError(extract.KindParseFailure, path, err)
	}
	return data, nil
}

// stripFences removes a ```json fence some models wrap around the reply.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
