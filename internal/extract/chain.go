package extract

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Strategy is one extraction tier: a pure function from whitespace-normalized
// text to a candidate record. Strategies never mutate the input and never
// depend on each other's state; the same text always yields the same
// candidate.
type Strategy interface {
	Name() string
	Extract(ctx context.Context, normalizedText string) Record
}

// Chain runs strategies in priority order and merges their candidates.
// Earlier strategies win per field; a field no strategy resolves stays
// "Not Found". The set and order of tiers is configuration, not code: a
// deployment can run labeled-only for deterministic latency or the full
// three-tier chain for coverage.
type Chain struct {
	strategies []Strategy
	logger     *slog.Logger
}

func NewChain(logger *slog.Logger, strategies ...Strategy) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{strategies: strategies, logger: logger}
}

// BuildChain assembles a chain from configured strategy names. The entity
// tier requires a recognizer; naming it without one is a configuration error.
func BuildChain(logger *slog.Logger, names []string, rec EntityRecognizer) (*Chain, error) {
	var strategies []Strategy
	for _, name := range names {
		switch name {
		case "labeled":
			strategies = append(strategies, Labeled{})
		case "narrative":
			strategies = append(strategies, Narrative{})
		case "entity":
			if rec == nil {
				return nil, fmt.Errorf("strategy %q requires an entity recognizer", name)
			}
			strategies = append(strategies, NewEntityTier(rec, logger))
		default:
			return nil, fmt.Errorf("unknown strategy %q", name)
		}
	}
	if len(strategies) == 0 {
		return nil, fmt.Errorf("no extraction strategies configured")
	}
	return NewChain(logger, strategies...), nil
}

// Run normalizes whitespace once, then consults each strategy until the
// record is complete. Merging keeps the first non-"Not Found" value per
// field.
func (c *Chain) Run(ctx context.Context, rawText string) Record {
	text := NormalizeWhitespace(rawText)
	rec := NewRecord()
	for _, s := range c.strategies {
		if rec.Complete() {
			break
		}
		start := time.Now()
		cand := s.Extract(ctx, text)
		rec.Merge(cand)
		c.logger.Debug("strategy ran",
			"strategy", s.Name(),
			"duration_ms", time.Since(start).Milliseconds(),
			"complete", rec.Complete(),
		)
	}
	return rec
}
