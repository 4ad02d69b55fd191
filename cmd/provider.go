package cmd

import (
	"fmt"

	"github.com/lehigh-university-libraries/gembooth/internal/config"
	"github.com/lehigh-university-libraries/gembooth/internal/gemini"
	"github.com/lehigh-university-libraries/gembooth/internal/openai"
	"github.com/lehigh-university-libraries/gembooth/internal/providers"
	"github.com/lehigh-university-libraries/gembooth/internal/session"
)

func newTransformer(cfg *config.Config) (providers.Transformer, error) {
	switch cfg.Provider.Name {
	case "gemini":
		return gemini.New(cfg.Provider.APIKey), nil
	case "openai":
		return openai.New(cfg.Provider.APIKey, cfg.Provider.BaseURL), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider.Name)
	}
}

func defaultModel(cfg *config.Config) string {
	if cfg.Provider.Model != "" {
		return cfg.Provider.Model
	}
	if cfg.Provider.Name == "openai" {
		return openai.DefaultModel
	}
	return gemini.DefaultModel
}

func sessionOptions(cfg *config.Config) (session.Options, error) {
	transformer, err := newTransformer(cfg)
	if err != nil {
		return session.Options{}, err
	}
	return session.Options{
		Transformer: transformer,
		Model:       defaultModel(cfg),
		Timeout:     cfg.Timeout(),
		MaxInFlight: cfg.Provider.MaxInFlight,
	}, nil
}
