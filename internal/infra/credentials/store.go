package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"asseto/internal/infra"
	"asseto/internal/sqlinline"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Store keeps provider API keys in the integration_tokens table.
type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

// Supported reports whether provider names a known integration.
func Supported(provider string) bool {
	switch provider {
	case ProviderGemini, ProviderOpenAI:
		return true
	}
	return false
}

// Token returns the stored key for provider, or "" when none is stored.
func (s *Store) Token(ctx context.Context, provider string) (string, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectIntegrationToken, provider)
	var token string
	if err := row.Scan(&token); err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(token), nil
}

// SetToken stores key for provider, replacing any previous one.
func (s *Store) SetToken(ctx context.Context, provider, key string, props map[string]any) error {
	if !Supported(provider) {
		return fmt.Errorf("unsupported provider %q", provider)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("%s api key is required", provider)
	}
	if props == nil {
		props = map[string]any{}
	}
	raw, err := json.Marshal(props)
	if err != nil {
		return err
	}
	_, err = s.sql.Exec(ctx, sqlinline.QUpsertIntegrationToken, provider, key, raw)
	return err
}

// DeleteToken removes the stored key for provider. It reports whether a key
// existed.
func (s *Store) DeleteToken(ctx context.Context, provider string) (bool, error) {
	if !Supported(provider) {
		return false, fmt.Errorf("unsupported provider %q", provider)
	}
	tag, err := s.sql.Exec(ctx, sqlinline.QDeleteIntegrationToken, provider)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Resolve fills empty provider keys in cfg from the store. Keys already set
// through the environment win.
func (s *Store) Resolve(ctx context.Context, cfg *infra.Config) error {
	if cfg.GeminiAPIKey == "" {
		key, err := s.Token(ctx, ProviderGemini)
		if err != nil {
			return fmt.Errorf("load gemini key: %w", err)
		}
		cfg.GeminiAPIKey = key
	}
	if cfg.OpenAIAPIKey == "" {
		key, err := s.Token(ctx, ProviderOpenAI)
		if err != nil {
			return fmt.Errorf("load openai key: %w", err)
		}
		cfg.OpenAIAPIKey = key
	}
	return nil
}
