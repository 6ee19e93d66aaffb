package builder

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rigforge/rigforge/internal/model"
	"github.com/rigforge/rigforge/internal/resilience"
	"github.com/rigforge/rigforge/pkg/anthropic"
)

const (
	completionTemperature = 0.2
	completionMaxTokens   = 2048
)

// modelAnswer is the JSON structure the completion is required to return.
type modelAnswer struct {
	Items       map[string]string `json:"items"`
	TotalPrice  float64           `json:"totalPrice"`
	Description string            `json:"description"`
}

var monitorKeywords = []string{"显示器", "屏幕", "带屏", "monitor", "screen"}

// Generate runs the full pipeline: intent extraction, concurrent candidate and
// reference retrieval, one completion call, and reconciliation against the
// live catalog. The returned total is always recomputed from current prices.
func (b *Builder) Generate(ctx context.Context, req GenerateRequest) (*model.GeneratedBuild, error) {
	if !b.settings.Configured() {
		return nil, ErrNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, b.opts.Timeout)
	defer cancel()

	budget := ExtractBudget(req.Prompt, req.Budget, b.opts.DefaultBudget)
	usage := DetectUsage(req.Prompt, req.Usage)

	var extras []model.Category
	if wantsMonitor(req.Prompt) {
		extras = append(extras, model.CategoryMonitor)
	}

	var (
		candidates []model.Candidate
		refs       []model.ReferenceBuild
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		candidates, err = b.Retrieve(gctx, budget, usage, extras...)
		return err
	})
	g.Go(func() error {
		var err error
		refs, err = b.References(gctx, budget)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, eris.New("builder: no active hardware in catalog")
	}

	system, user := buildPrompts(req, budget, usage, candidates, refs, b.opts.BudgetOverrun)

	answer, err := b.complete(ctx, system, user)
	if err != nil {
		return nil, err
	}

	build, err := b.reconcile(ctx, answer)
	if err != nil {
		return nil, err
	}

	zap.L().Info("build generated",
		zap.Float64("budget", budget),
		zap.String("usage", string(usage)),
		zap.Int("candidates", len(candidates)),
		zap.Int("references", len(refs)),
		zap.Float64("total_price", build.TotalPrice),
	)
	return build, nil
}

func wantsMonitor(prompt string) bool {
	lower := strings.ToLower(prompt)
	for _, kw := range monitorKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// complete calls the completion service with bounded retries on transient
// failures and parses the strict-JSON answer. Parse failures propagate; a
// malformed build is never presented as valid.
func (b *Builder) complete(ctx context.Context, system, user string) (*modelAnswer, error) {
	temp := completionTemperature

	retryCfg := b.opts.Retry
	retryCfg.ShouldRetry = func(err error) bool {
		return resilience.IsTransient(err) ||
			resilience.IsTransientHTTPStatus(anthropic.StatusCode(err))
	}
	retryCfg.OnRetry = resilience.RetryLogger("anthropic", "generate_build")

	resp, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return b.client.CreateMessage(ctx, anthropic.MessageRequest{
			Model:     b.settings.Model,
			MaxTokens: completionMaxTokens,
			System:    []anthropic.SystemBlock{{Text: system}},
			Messages: []anthropic.Message{
				{Role: "user", Content: user},
			},
			Temperature: &temp,
		})
	})
	if err != nil {
		return nil, eris.Wrap(err, "builder: completion call")
	}
	resp.Usage.LogUsage(b.settings.Model, "generate_build")

	var answer modelAnswer
	if err := json.Unmarshal([]byte(cleanJSON(resp.Text())), &answer); err != nil {
		return nil, eris.Wrap(err, "builder: parse completion answer")
	}
	if len(answer.Items) == 0 {
		return nil, eris.New("builder: completion answer has no items")
	}
	return &answer, nil
}

// reconcile replaces every category→id pair with the authoritative catalog
// record. Unknown ids become nil slots rather than failing the request; the
// model's self-reported total is discarded unconditionally.
func (b *Builder) reconcile(ctx context.Context, answer *modelAnswer) (*model.GeneratedBuild, error) {
	items := make(map[model.Category]*model.HardwareItem, len(answer.Items))
	var total float64

	for rawCat, id := range answer.Items {
		cat := model.Category(rawCat)
		if !cat.Valid() {
			continue
		}

		item, err := b.catalog.GetHardware(ctx, id)
		if err != nil {
			return nil, eris.Wrapf(err, "builder: resolve %s item %s", cat, id)
		}
		if item == nil {
			zap.L().Warn("completion referenced unknown item",
				zap.String("category", rawCat),
				zap.String("id", id),
			)
			items[cat] = nil
			continue
		}
		items[cat] = item
		total += item.Price
	}

	return &model.GeneratedBuild{
		Items:       items,
		TotalPrice:  total,
		Description: answer.Description,
	}, nil
}

// cleanJSON strips markdown fences and extracts the JSON object.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}
