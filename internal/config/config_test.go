package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kirillkom/manual-assistant/internal/core/domain"
)

func TestLoadIncludesRetrievalDefaults(t *testing.T) {
	t.Setenv("RAG_TOP_K", "")
	t.Setenv("RAG_MIN_KEYWORD_HITS", "")
	t.Setenv("MAX_CONTEXT_LENGTH", "")
	t.Setenv("CORPUS_CACHE_TTL", "")
	t.Setenv("GEMINI_MODELS", "")

	cfg := Load()
	if cfg.RAGTopK != 8 {
		t.Fatalf("expected default top k 8, got %d", cfg.RAGTopK)
	}
	if cfg.RAGMinKeywordHit != 1 {
		t.Fatalf("expected default minimum keyword hits 1, got %d", cfg.RAGMinKeywordHit)
	}
	if cfg.MaxContextLength != 4000 {
		t.Fatalf("expected default max context length 4000, got %d", cfg.MaxContextLength)
	}
	if cfg.CorpusCacheTTL != time.Minute {
		t.Fatalf("expected default corpus cache ttl 1m, got %s", cfg.CorpusCacheTTL)
	}
	if len(cfg.GeminiModels) != 6 || cfg.GeminiModels[0] != "gemini-2.5-flash" {
		t.Fatalf("unexpected default gemini models %v", cfg.GeminiModels)
	}
}

func TestLoadParsesRetrievalOverrides(t *testing.T) {
	t.Setenv("RAG_TOP_K", "12")
	t.Setenv("RAG_MIN_KEYWORD_HITS", "2")
	t.Setenv("MAX_CONTEXT_LENGTH", "2500")
	t.Setenv("GEMINI_MODELS", " gemini-2.5-flash , ,models/gemini-pro ")
	t.Setenv("API_OVERLOAD_WAIT", "750ms")

	cfg := Load()
	rc := cfg.Retrieval()
	if rc.SemanticTopK != 12 || rc.MinKeywordHits != 2 || rc.MaxContextLength != 2500 {
		t.Fatalf("unexpected retrieval config %+v", rc)
	}
	if len(cfg.GeminiModels) != 2 || cfg.GeminiModels[1] != "models/gemini-pro" {
		t.Fatalf("unexpected gemini models %v", cfg.GeminiModels)
	}
	if cfg.APIOverloadWait != 750*time.Millisecond {
		t.Fatalf("unexpected overload wait %s", cfg.APIOverloadWait)
	}
}

func TestValidateRejectsInvalidRetrievalSettings(t *testing.T) {
	t.Setenv("GENERATION_PROVIDER", "ollama")
	t.Setenv("RAG_TOP_K", "-1")
	t.Setenv("RAG_MIN_KEYWORD_HITS", "0")

	err := Load().Validate()
	if !domain.IsKind(err, domain.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestValidateRequiresGoogleKeyForGemini(t *testing.T) {
	t.Setenv("GENERATION_PROVIDER", "gemini")
	t.Setenv("GOOGLE_API_KEY", "")
	if err := Load().Validate(); !domain.IsKind(err, domain.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}

	t.Setenv("GOOGLE_API_KEY", "key")
	if err := Load().Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestLoadSourcesResolvesRelativePaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sources.yaml")
	content := `manuals:
  - file: data/husqvarna435.pdf
    model: Husqvarna 435
    start_page: 112
  - file: /abs/husqvarna542i.pdf
    model: Husqvarna 542i XP
    start_page: 1
    end_page: 44
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write sources: %v", err)
	}

	list, err := LoadSources(path)
	if err != nil {
		t.Fatalf("LoadSources() error = %v", err)
	}
	if len(list.Manuals) != 2 {
		t.Fatalf("expected 2 manuals, got %d", len(list.Manuals))
	}
	if list.Manuals[0].File != filepath.Join(dir, "data/husqvarna435.pdf") {
		t.Fatalf("unexpected resolved path %s", list.Manuals[0].File)
	}
	if list.Manuals[1].File != "/abs/husqvarna542i.pdf" || list.Manuals[1].EndPage != 44 {
		t.Fatalf("unexpected second manual %+v", list.Manuals[1])
	}
}

func TestLoadSourcesRejectsInvertedPageRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.yaml")
	content := "manuals:\n  - file: a.pdf\n    start_page: 10\n    end_page: 2\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write sources: %v", err)
	}
	if _, err := LoadSources(path); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
