package validator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hetulpatel/arbwatch/internal/cache"
	"github.com/hetulpatel/arbwatch/internal/logging"
	"github.com/hetulpatel/arbwatch/internal/matches"
)

const systemPrompt = "You are a strict arbitrage validator. Determine if two binary markets resolve identically with no ambiguity. Reject if timing, definitions, or data sources differ. Respond only with JSON."

// Completer is the slice of llm.Client the validator needs.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Config controls the validator behavior.
type Config struct {
	LLM          Completer
	Cache        cache.VerdictCache
	SystemPrompt string
}

// Service checks matched pairs for identical resolution.
type Service struct {
	llm          Completer
	cache        cache.VerdictCache
	systemPrompt string
}

func NewService(cfg Config) (*Service, error) {
	if cfg.LLM == nil {
		return nil, fmt.Errorf("validator: llm client is required")
	}
	system := cfg.SystemPrompt
	if strings.TrimSpace(system) == "" {
		system = systemPrompt
	}
	return &Service{llm: cfg.LLM, cache: cfg.Cache, systemPrompt: system}, nil
}

// Validate returns the verdict for one pair, from cache when possible.
func (s *Service) Validate(ctx context.Context, pair matches.Pair) (*matches.ResolutionVerdict, error) {
	if s == nil {
		return nil, fmt.Errorf("validator: service is nil")
	}
	key := matches.VerdictCacheKey(pair)
	if s.cache != nil && key != "" {
		if v, ok, err := s.cache.Get(ctx, key); err != nil {
			logging.Warnf("[validator] verdict cache get %s: %v", key, err)
		} else if ok {
			return v, nil
		}
	}

	userPrompt, err := buildUserPrompt(pair)
	if err != nil {
		return nil, err
	}
	raw, err := s.llm.Complete(ctx, s.systemPrompt, userPrompt)
	if err != nil {
		return nil, fmt.Errorf("validator: llm call: %w", err)
	}
	verdict, err := parseResult(raw)
	if err != nil {
		return nil, fmt.Errorf("validator: parse response: %w", err)
	}

	if s.cache != nil && key != "" {
		if err := s.cache.Set(ctx, key, *verdict); err != nil {
			logging.Warnf("[validator] verdict cache set %s: %v", key, err)
		}
	}
	return verdict, nil
}

// Filter keeps pairs the model did not reject. A pair whose validation fails
// is kept and logged, so an unreachable model never hides a match.
func (s *Service) Filter(ctx context.Context, pairs []matches.Pair) []matches.Pair {
	if s == nil {
		return pairs
	}
	kept := make([]matches.Pair, 0, len(pairs))
	var rejected, failed int
	for _, p := range pairs {
		if ctx.Err() != nil {
			// Keep the remainder unchecked.
			kept = append(kept, p)
			continue
		}
		v, err := s.Validate(ctx, p)
		if err != nil {
			failed++
			logging.Warnf("[validator] %s / %s: %v", p.Kalshi.MarketID, p.Polymarket.MarketID, err)
			kept = append(kept, p)
			continue
		}
		if !v.ValidResolution {
			rejected++
			logging.Infof("[validator] rejected %s / %s: %s", p.Kalshi.MarketID, p.Polymarket.MarketID, v.ResolutionReason)
			continue
		}
		kept = append(kept, p)
	}
	logging.Debugf("[validator] %d pairs in, %d kept, %d rejected, %d unchecked", len(pairs), len(kept), rejected, failed)
	return kept
}

func buildUserPrompt(pair matches.Pair) (string, error) {
	input, err := json.MarshalIndent(buildPromptPayload(pair), "", "  ")
	if err != nil {
		return "", fmt.Errorf("validator: marshal prompt input: %w", err)
	}
	return strings.Join([]string{
		"Compare the following Kalshi and Polymarket markets. They were paired by title similarity for a cross-venue arbitrage scanner.",
		"Buying YES on one venue and NO on the other is only risk-free if both markets resolve on the exact same binary outcome, with the same cutoff time and definitions.",
		"If any real-world outcome could resolve one market YES and the other NO, or the close times cover different events, answer false.",
		"If unsure, treat it as invalid. Keep the reason short.",
		"Return EXACTLY this JSON format:\n{\n  \"ValidResolution\": true|false,\n  \"ResolutionReason\": \"short explanation\"\n}\n\nInput JSON:\n" + string(input),
	}, "\n"), nil
}
