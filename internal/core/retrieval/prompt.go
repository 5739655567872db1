package retrieval

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/kirillkom/manual-assistant/internal/core/domain"
)

// DefaultPromptTemplate is the Swedish instructional template used when no
// override is configured. Values are inserted as data and never re-parsed.
const DefaultPromptTemplate = `Du är en vänlig och kunnig expert på {{.Domain}}. Du hjälper användare med deras frågor på ett avslappnat och naturligt sätt, som om du pratar med en kompis som behöver hjälp.
{{if .Products}}
Du har tillgång till information om FLERA modeller:
{{range .Products}}- {{.}}
{{end}}{{end}}
REGLER FÖR DIN TON:
- Var personlig och vänlig, men inte överdriven
- Använd vardagligt språk, undvik stelt "kundtjänst-språk"
- Ge konkreta och praktiska svar
- Om du ger instruktioner, gör dem enkla att följa

REGLER FÖR JÄMFÖRELSER:
- Om användaren frågar om en specifik modell, fokusera på den
- Om användaren vill jämföra, lyft fram skillnader tydligt
- Ange alltid vilken modell informationen gäller
- Kontexten är taggad med [MODELL: ...] för att visa vilken produkt texten gäller

KONTEXT FRÅN BRUKSANVISNINGAR:
{{.Context}}

ANVÄNDARENS FRÅGA:
{{.Question}}

Svara på {{.Language}}. Om informationen inte finns i kontexten, var ärlig med det men försök ändå vara hjälpsam.`

type PromptOptions struct {
	Template string
	Domain   string
	Language string
	Products []string
}

type PromptBuilder struct {
	tmpl     *template.Template
	domain   string
	language string
	products []string
}

type promptData struct {
	Domain   string
	Language string
	Products []string
	Context  string
	Question string
}

func NewPromptBuilder(opts PromptOptions) (*PromptBuilder, error) {
	text := opts.Template
	if strings.TrimSpace(text) == "" {
		text = DefaultPromptTemplate
	}
	tmpl, err := template.New("prompt").Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidConfig, "parse prompt template", err)
	}

	language := strings.TrimSpace(opts.Language)
	if language == "" {
		language = "svenska"
	}
	domainName := strings.TrimSpace(opts.Domain)
	if domainName == "" {
		domainName = "produkterna i bruksanvisningarna"
	}

	products := make([]string, 0, len(opts.Products))
	for _, p := range opts.Products {
		if p = strings.TrimSpace(p); p != "" {
			products = append(products, p)
		}
	}

	return &PromptBuilder{
		tmpl:     tmpl,
		domain:   domainName,
		language: language,
		products: products,
	}, nil
}

// Build renders the template with the packed context and the raw question.
// An empty context still yields a complete prompt.
func (b *PromptBuilder) Build(contextText, question string) (string, error) {
	var out strings.Builder
	err := b.tmpl.Execute(&out, promptData{
		Domain:   b.domain,
		Language: b.language,
		Products: b.products,
		Context:  contextText,
		Question: question,
	})
	if err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return out.String(), nil
}
