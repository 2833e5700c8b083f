package render

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// Strategy pairs a renderer with a stable name for attempt logging.
type Strategy struct {
	Name     string
	Renderer Renderer
}

// Chain tries an ordered list of render strategies until one succeeds. Each
// attempt is logged distinctly so a degraded render is visible in the logs
// rather than hidden behind nested recovery paths.
type Chain struct {
	strategies []Strategy
	logger     zerolog.Logger
}

func NewChain(logger zerolog.Logger, strategies ...Strategy) *Chain {
	return &Chain{strategies: strategies, logger: logger}
}

func (c *Chain) Render(ctx context.Context, req Request) (*Artifact, error) {
	if len(c.strategies) == 0 {
		return nil, errors.New("render: no strategies configured")
	}
	var lastErr error
	for i, strategy := range c.strategies {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c.logger.Info().
			Str("job_id", req.JobID).
			Str("strategy", strategy.Name).
			Int("attempt", i+1).
			Msg("render: attempting strategy")

		artifact, err := strategy.Renderer.Render(ctx, req)
		if err == nil {
			return artifact, nil
		}
		// Cancellation and deadline expiry are not recoverable by a
		// simpler strategy.
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		lastErr = err
		c.logger.Warn().
			Err(err).
			Str("job_id", req.JobID).
			Str("strategy", strategy.Name).
			Int("attempt", i+1).
			Msg("render: strategy failed")
	}
	return nil, fmt.Errorf("render: all strategies failed: %w", lastErr)
}

var _ Renderer = (*Chain)(nil)
