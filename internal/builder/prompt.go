package builder

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/rigforge/rigforge/internal/model"
)

const systemPrompt = `You are a PC-build advisor for a hardware store. You assemble complete machine configurations strictly from the store's live catalog.

Hard constraints:
- Use ONLY item ids that appear in the provided candidate list. Never invent ids.
- The sum of selected item prices must not exceed %s (budget %s plus a 10%% ceiling).
- Every required slot must be filled: %s.
- Respond with a single JSON object and nothing else:
{"items": {"<category>": "<item id>", ...}, "totalPrice": <number>, "description": "<one short paragraph explaining the build>"}`

const userPromptTemplate = `User request: %s
Budget: %s
Usage profile: %s
Appearance preference: %s

Candidate catalog (id | category | name | price):
%s
%s Pick the best-balanced configuration for the stated budget and usage.`

const referenceSection = `Community builds near this budget, for reference only (do not copy ids from here):
%s
`

var pricePrinter = message.NewPrinter(language.English)

func formatPrice(v float64) string {
	return pricePrinter.Sprintf("%.0f", v)
}

// buildPrompts renders the system and user messages for one generation request.
func buildPrompts(req GenerateRequest, budget float64, usage Usage, candidates []model.Candidate, refs []model.ReferenceBuild, overrun float64) (string, string) {
	required := make([]string, 0, len(model.RequiredCategories()))
	for _, c := range model.RequiredCategories() {
		required = append(required, string(c))
	}

	ceiling := budget * (1 + overrun)
	system := fmt.Sprintf(systemPrompt,
		formatPrice(ceiling), formatPrice(budget), strings.Join(required, ", "))

	var catalog strings.Builder
	for _, c := range candidates {
		fmt.Fprintf(&catalog, "%s | %s | %s %s | %s\n",
			c.ID, c.Category, c.Brand, c.Model, formatPrice(c.Price))
	}

	var refBlock string
	if len(refs) > 0 {
		var lines strings.Builder
		for _, r := range refs {
			fmt.Fprintf(&lines, "- %q, total %s, slots: %s\n",
				r.Title, formatPrice(r.TotalPrice), formatSlots(r.Items))
		}
		refBlock = fmt.Sprintf(referenceSection, lines.String())
	}

	appearance := req.Appearance
	if appearance == "" {
		appearance = "no preference"
	}

	user := fmt.Sprintf(userPromptTemplate,
		strings.TrimSpace(req.Prompt), formatPrice(budget), usage, appearance,
		catalog.String(), refBlock)

	return system, user
}

func formatSlots(items map[model.Category]string) string {
	parts := make([]string, 0, len(items))
	for _, c := range model.AllCategories() {
		if id, ok := items[c]; ok {
			parts = append(parts, fmt.Sprintf("%s=%s", c, id))
		}
	}
	return strings.Join(parts, " ")
}
