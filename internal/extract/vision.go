package extract

import (
	"context"
	"errors"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Bay-State-Pet-and-Garden-Supply/BayStateConsolidator/internal/resilience"
	"github.com/Bay-State-Pet-and-Garden-Supply/BayStateConsolidator/pkg/anthropic"
)

const labelPrompt = `Extract the following information from the product image:
- Ingredients list (full text)
- Net weight
- Nutrition facts (summary)
Respond with a single JSON object with the keys "ingredients", "net_weight" and "nutrition_facts". Use null for anything not visible.`

// VisionConfig configures a VisionExtractor.
type VisionConfig struct {
	Model      string
	MaxTokens  int64
	RatePerSec float64
	Retry      resilience.Policy
}

// VisionExtractor asks a vision model to read a product label.
type VisionExtractor struct {
	client  anthropic.Client
	cfg     VisionConfig
	limiter *rate.Limiter
	log     *zap.Logger
}

// NewVisionExtractor creates an extractor backed by client.
func NewVisionExtractor(client anthropic.Client, cfg VisionConfig) *VisionExtractor {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	limit := rate.Inf
	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
	}
	if cfg.Retry.OnRetry == nil {
		cfg.Retry.OnRetry = resilience.LogRetries("anthropic", "extract label")
	}
	return &VisionExtractor{
		client:  client,
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, 1),
		log:     zap.L().With(zap.String("component", "extract")),
	}
}

// Extract returns whatever the model could read from imageURL. Failures are
// logged and yield an empty Result.
func (v *VisionExtractor) Extract(ctx context.Context, imageURL string) Result {
	if imageURL == "" {
		return Result{}
	}

	resp, err := resilience.DoVal(ctx, v.cfg.Retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		if err := v.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "extract: rate limit")
		}
		resp, err := v.client.CreateMessage(ctx, anthropic.MessageRequest{
			Model:     v.cfg.Model,
			MaxTokens: v.cfg.MaxTokens,
			Messages: []anthropic.Message{{
				Role:      "user",
				Content:   labelPrompt,
				ImageURLs: []string{imageURL},
			}},
		})
		return resp, classify(err)
	})
	if err != nil {
		v.log.Warn("label extraction failed", zap.String("image", imageURL), zap.Error(err))
		return Result{}
	}
	resp.Usage.LogCost(v.cfg.Model, "extract")

	res, err := ParseResult(resp.Text())
	if err != nil {
		v.log.Warn("label extraction unparseable", zap.String("image", imageURL), zap.Error(err))
		return Result{}
	}
	return res
}

// classify marks rate-limit and overload answers from the API as transient.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) && resilience.IsTransientHTTPStatus(apiErr.StatusCode) {
		return resilience.NewTransientError(err, apiErr.StatusCode)
	}
	return err
}
