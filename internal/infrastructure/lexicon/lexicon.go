package lexicon

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/manual-assistant/internal/core/domain"
	"github.com/kirillkom/manual-assistant/internal/core/retrieval"
)

//go:embed default.yaml
var defaultLexicon []byte

type document struct {
	Triggers map[string][]string `yaml:"triggers"`
}

// Default returns the built-in lexicon.
func Default() (retrieval.Lexicon, error) {
	return Parse(defaultLexicon)
}

// Load reads a lexicon file, falling back to the built-in one for an empty path.
func Load(path string) (retrieval.Lexicon, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return retrieval.Lexicon{}, domain.WrapError(domain.ErrInvalidConfig, "read lexicon", err)
	}
	return Parse(raw)
}

func Parse(raw []byte) (retrieval.Lexicon, error) {
	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return retrieval.Lexicon{}, domain.WrapError(domain.ErrInvalidConfig, "parse lexicon", err)
	}
	if len(doc.Triggers) == 0 {
		return retrieval.Lexicon{}, domain.WrapError(domain.ErrInvalidConfig, "parse lexicon", errors.New("no triggers defined"))
	}
	return retrieval.NewLexicon(doc.Triggers), nil
}

// Marshal renders a lexicon in the same YAML layout Load accepts.
func Marshal(lex retrieval.Lexicon) ([]byte, error) {
	out, err := yaml.Marshal(document{Triggers: lex.Entries()})
	if err != nil {
		return nil, fmt.Errorf("marshal lexicon: %w", err)
	}
	return out, nil
}
