// Package openai checks a realtime API key against the OpenAI REST API
// before it is stored.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sashabaranov/go-openai"

	"voice-navigator/internal/application/port/output"
)

var (
	ErrInvalidKey       = errors.New("API key was rejected")
	ErrModelUnavailable = errors.New("realtime model is not available for this key")
)

type Config struct {
	BaseURL string
	Model   string
	Logger  output.LoggerPort
}

// KeyVerifier lists the models visible to a key and looks for the
// configured realtime model.
type KeyVerifier struct {
	baseURL string
	model   string
	logger  output.LoggerPort
}

func NewKeyVerifier(cfg Config) *KeyVerifier {
	return &KeyVerifier{
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
		logger:  cfg.Logger,
	}
}

func (v *KeyVerifier) Verify(ctx context.Context, apiKey string) error {
	config := openai.DefaultConfig(apiKey)
	if v.baseURL != "" {
		config.BaseURL = v.baseURL
	}
	client := openai.NewClientWithConfig(config)

	models, err := client.ListModels(ctx)
	if err != nil {
		if status := httpStatus(err); status == http.StatusUnauthorized || status == http.StatusForbidden {
			return fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
		return fmt.Errorf("list models failed: %w", err)
	}

	v.logger.Debug("Listed models", "count", len(models.Models))
	for _, m := range models.Models {
		if m.ID == v.model {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrModelUnavailable, v.model)
}

func httpStatus(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
