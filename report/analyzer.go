// Package report turns a graded attempt into an analysis document: it builds
// the statistics, asks a generative model for narrative analysis, and renders
// the result as HTML.
package report

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"exam-server-go/config"
)

// ErrAnalyzerDisabled is returned when no model is configured.
var ErrAnalyzerDisabled = errors.New("analyzer disabled")

// Analyzer produces narrative analysis text for a prompt.
type Analyzer interface {
	Analyze(ctx context.Context, prompt string) (string, error)
}

// GeminiAnalyzer calls Google Gemini through the genai SDK.
type GeminiAnalyzer struct {
	client *genai.Client
	cfg    config.GeminiConfig
	logger *zap.Logger
}

// NewGeminiAnalyzer builds an analyzer from config. Without an API key it
// returns an analyzer that always reports ErrAnalyzerDisabled.
func NewGeminiAnalyzer(ctx context.Context, cfg config.GeminiConfig, logger *zap.Logger) (*GeminiAnalyzer, error) {
	a := &GeminiAnalyzer{cfg: cfg, logger: logger}
	if cfg.APIKey == "" {
		logger.Warn("GEMINI_API_KEY not set, reports will use computed analysis")
		return a, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	a.client = client
	logger.Info("Gemini analyzer ready", zap.String("model", cfg.Model))
	return a, nil
}

func (a *GeminiAnalyzer) Analyze(ctx context.Context, prompt string) (string, error) {
	if a.client == nil {
		return "", ErrAnalyzerDisabled
	}
	resp, err := a.client.Models.GenerateContent(ctx, a.cfg.Model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(a.cfg.Temperature),
		MaxOutputTokens: a.cfg.MaxOutputTokens,
	})
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", errors.New("gemini returned an empty response")
	}
	return text, nil
}
