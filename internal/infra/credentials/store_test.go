package credentials

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"asseto/internal/infra"
	"asseto/internal/sqlinline"
)

type stubExecutor struct {
	tokens map[string]string
	err    error
	exec   struct {
		query string
		args  []any
	}
}

func (s *stubExecutor) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.exec.query = query
	s.exec.args = args
	if s.err != nil {
		return pgconn.CommandTag{}, s.err
	}
	if query == sqlinline.QDeleteIntegrationToken {
		provider := args[0].(string)
		if _, ok := s.tokens[provider]; ok {
			delete(s.tokens, provider)
			return pgconn.NewCommandTag("DELETE 1"), nil
		}
		return pgconn.NewCommandTag("DELETE 0"), nil
	}
	return pgconn.CommandTag{}, nil
}

func (s *stubExecutor) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	if s.err != nil {
		return stubRow{err: s.err}
	}
	token, ok := s.tokens[args[0].(string)]
	if !ok {
		return stubRow{err: pgx.ErrNoRows}
	}
	return stubRow{token: token}
}

func (s *stubExecutor) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

type stubRow struct {
	token string
	err   error
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	ptr, ok := dest[0].(*string)
	if !ok {
		return errors.New("invalid dest")
	}
	*ptr = r.token
	return nil
}

func TestToken(t *testing.T) {
	store := NewStore(&stubExecutor{tokens: map[string]string{ProviderGemini: " abc123 "}})
	key, err := store.Token(context.Background(), ProviderGemini)
	if err != nil {
		t.Fatalf("Token error: %v", err)
	}
	if key != "abc123" {
		t.Fatalf("expected abc123, got %q", key)
	}
}

func TestToken_NoRows(t *testing.T) {
	store := NewStore(&stubExecutor{})
	key, err := store.Token(context.Background(), ProviderOpenAI)
	if err != nil {
		t.Fatalf("Token error: %v", err)
	}
	if key != "" {
		t.Fatalf("expected empty key, got %q", key)
	}
}

func TestToken_Error(t *testing.T) {
	store := NewStore(&stubExecutor{err: errors.New("down")})
	if _, err := store.Token(context.Background(), ProviderGemini); err == nil {
		t.Fatal("expected error")
	}
}

func TestSetToken(t *testing.T) {
	exec := &stubExecutor{}
	store := NewStore(exec)
	if err := store.SetToken(context.Background(), ProviderOpenAI, " secret ", map[string]any{"model": "gpt-4o"}); err != nil {
		t.Fatalf("SetToken error: %v", err)
	}
	if len(exec.exec.args) != 3 {
		t.Fatalf("expected 3 args, got %d", len(exec.exec.args))
	}
	if v, ok := exec.exec.args[1].(string); !ok || v != "secret" {
		t.Fatalf("expected secret argument, got %T %v", exec.exec.args[1], exec.exec.args[1])
	}
	if raw, ok := exec.exec.args[2].([]byte); !ok || string(raw) != `{"model":"gpt-4o"}` {
		t.Fatalf("unexpected properties %v", exec.exec.args[2])
	}
}

func TestSetTokenRejects(t *testing.T) {
	store := NewStore(&stubExecutor{})
	if err := store.SetToken(context.Background(), ProviderGemini, " ", nil); err == nil {
		t.Fatal("expected error for empty key")
	}
	if err := store.SetToken(context.Background(), "qwen", "k", nil); err == nil {
		t.Fatal("expected error for unsupported provider")
	}
}

func TestResolve(t *testing.T) {
	store := NewStore(&stubExecutor{tokens: map[string]string{
		ProviderGemini: "stored-gemini",
		ProviderOpenAI: "stored-openai",
	}})
	cfg := &infra.Config{GeminiAPIKey: "env-gemini"}
	if err := store.Resolve(context.Background(), cfg); err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if cfg.GeminiAPIKey != "env-gemini" {
		t.Fatalf("environment key overwritten: %q", cfg.GeminiAPIKey)
	}
	if cfg.OpenAIAPIKey != "stored-openai" {
		t.Fatalf("openai key = %q", cfg.OpenAIAPIKey)
	}
}

func TestDeleteToken(t *testing.T) {
	exec := &stubExecutor{tokens: map[string]string{ProviderOpenAI: "sk-live"}}
	store := NewStore(exec)

	existed, err := store.DeleteToken(context.Background(), ProviderOpenAI)
	if err != nil || !existed {
		t.Fatalf("DeleteToken = %v, %v", existed, err)
	}
	if token, _ := store.Token(context.Background(), ProviderOpenAI); token != "" {
		t.Fatalf("token still stored: %q", token)
	}
	existed, err = store.DeleteToken(context.Background(), ProviderOpenAI)
	if err != nil || existed {
		t.Fatalf("second DeleteToken = %v, %v", existed, err)
	}
	if _, err := store.DeleteToken(context.Background(), "qwen"); err == nil {
		t.Fatal("expected unsupported provider error")
	}
}
