// Package vision extracts statement data from scanned or image-only
// documents by sending the pages to a multimodal model. Model and network
// failures are reported as data (an empty result with a warning and zero
// confidence) rather than as errors, so a broken extraction still reaches
// review instead of failing the job.
package vision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
	"google.golang.org/genai"

	"github.com/dcastellanos/extracto/internal/domain"
	"github.com/dcastellanos/extracto/internal/logger"
)

// Page is one document page ready to be sent to the model.
type Page struct {
	MIMEType string
	Data     []byte
}

// Client talks to the Gemini API.
type Client struct {
	model   string
	timeout time.Duration
	retries uint64

	// generate performs one model round trip. Split out so tests can stub
	// the network while exercising the full request/response handling.
	generate func(ctx context.Context, parts []*genai.Part) (string, error)
}

// New builds a vision client against the Gemini API. maxRetries bounds how
// many times a failed model call is re-attempted before the failure is
// reported as data.
func New(ctx context.Context, apiKey, model string, timeout time.Duration, maxRetries int) (*Client, error) {
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("vision.New: create genai client: %w", err)
	}

	if maxRetries < 0 {
		maxRetries = 0
	}
	c := &Client{model: model, timeout: timeout, retries: uint64(maxRetries)}
	c.generate = func(ctx context.Context, parts []*genai.Part) (string, error) {
		contents := []*genai.Content{{Role: "user", Parts: parts}}
		resp, err := gc.Models.GenerateContent(ctx, c.model, contents, nil)
		if err != nil {
			return "", err
		}
		return resp.Text(), nil
	}
	return c, nil
}

// Extract sends every page in one request and returns the validated result.
// All pages travel together so multi-page statements keep their running
// balances coherent. The returned error is non-nil only when the surrounding
// context was cancelled; every other failure comes back as a zero-confidence
// result carrying a warning.
func (c *Client) Extract(ctx context.Context, pages []Page) (*domain.ExtractionResult, error) {
	log := logger.FromContext(ctx)

	if len(pages) == 0 {
		return failed("no pages to extract"), nil
	}

	parts := make([]*genai.Part, 0, len(pages)+1)
	parts = append(parts, &genai.Part{Text: extractionPrompt})
	for _, p := range pages {
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{MIMEType: p.MIMEType, Data: p.Data},
		})
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var raw string
	backoff := retry.WithMaxRetries(c.retries, retry.NewExponential(time.Second))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var genErr error
		raw, genErr = c.generate(ctx, parts)
		if genErr != nil {
			log.Warn().Err(genErr).Msg("model request failed, may retry")
			return retry.RetryableError(genErr)
		}
		return nil
	})
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, ctx.Err()
		}
		log.Error().Err(err).Int("pages", len(pages)).Msg("vision extraction failed")
		return failed("extraction service unavailable, no data could be read"), nil
	}

	doc, ok := ExtractJSON(raw)
	if !ok {
		log.Error().Int("response_len", len(raw)).Msg("no JSON found in model response")
		return failed("model returned an unreadable response"), nil
	}

	var p payload
	if err := json.Unmarshal([]byte(doc), &p); err != nil {
		log.Error().Err(err).Msg("model response is not valid JSON")
		return failed("model returned malformed data"), nil
	}

	res := validate(&p)
	log.Info().
		Int("pages", len(pages)).
		Int("accounts", len(res.Accounts)).
		Int("transactions", len(res.Transactions)).
		Int("confidence", res.Confidence).
		Msg("vision extraction complete")
	return res, nil
}

// failed is the error-as-data shape: nothing extracted, zero confidence, one
// warning explaining why.
func failed(warning string) *domain.ExtractionResult {
	return &domain.ExtractionResult{
		Confidence: 0,
		Warnings:   []string{warning},
	}
}
