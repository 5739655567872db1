package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/manual-assistant/internal/core/domain"
)

// ManualSource is one manual to ingest in batch mode.
type ManualSource struct {
	File      string `yaml:"file"`
	Model     string `yaml:"model"`
	StartPage int    `yaml:"start_page"`
	EndPage   int    `yaml:"end_page"`
}

type SourceList struct {
	Manuals []ManualSource `yaml:"manuals"`
}

// LoadSources reads a sources file. Relative file paths resolve against the
// directory of the sources file.
func LoadSources(path string) (*SourceList, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources: %w", err)
	}
	var list SourceList
	if err := yaml.Unmarshal(raw, &list); err != nil {
		return nil, domain.WrapError(domain.ErrInvalidConfig, "parse sources", err)
	}
	if len(list.Manuals) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidConfig, "parse sources", errors.New("no manuals listed"))
	}

	base := filepath.Dir(path)
	for i := range list.Manuals {
		src := &list.Manuals[i]
		if src.File == "" {
			return nil, domain.WrapError(domain.ErrInvalidConfig, "parse sources", fmt.Errorf("manual %d has no file", i))
		}
		if err := src.Pages().Validate(); err != nil {
			return nil, fmt.Errorf("manual %s: %w", src.File, err)
		}
		if !filepath.IsAbs(src.File) {
			src.File = filepath.Join(base, src.File)
		}
	}
	return &list, nil
}

func (s ManualSource) Pages() domain.PageRange {
	return domain.PageRange{Start: s.StartPage, End: s.EndPage}
}
