package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/kirillkom/manual-assistant/internal/core/domain"
)

type Generator struct {
	client *Client
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	request := map[string]any{
		"model":  g.client.genModel,
		"prompt": prompt,
		"stream": false,
	}
	var response struct {
		Response string `json:"response"`
	}
	if err := g.client.do(ctx, http.MethodPost, "/api/generate", request, &response, "generate"); err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}

// Warmup checks that the generation model has been pulled.
func (g *Generator) Warmup(ctx context.Context) error {
	var response struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := g.client.do(ctx, http.MethodGet, "/api/tags", nil, &response, "tags"); err != nil {
		return domain.WrapError(domain.ErrNotReady, "ollama warmup", err)
	}
	for _, m := range response.Models {
		if sameModel(m.Name, g.client.genModel) {
			return nil
		}
	}
	return domain.WrapError(domain.ErrNotReady, "ollama warmup", fmt.Errorf("model %q is not pulled", g.client.genModel))
}

func (g *Generator) Model() string {
	return g.client.genModel
}

// sameModel treats a missing tag as ":latest".
func sameModel(a, b string) bool {
	normalize := func(s string) string {
		if !strings.Contains(s, ":") {
			return s + ":latest"
		}
		return s
	}
	return normalize(a) == normalize(b)
}
