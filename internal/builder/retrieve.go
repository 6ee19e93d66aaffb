package builder

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/rigforge/rigforge/internal/model"
	"github.com/rigforge/rigforge/internal/store"
)

// ratioWindow is the fraction-of-budget band an item's price is expected to
// fall within for its category.
type ratioWindow struct {
	Min float64
	Max float64
}

// ratioProfiles holds per-usage budget windows. The profiles shift spend
// toward the GPU for gaming and toward CPU/RAM for productivity work.
var ratioProfiles = map[Usage]map[model.Category]ratioWindow{
	UsageGaming: {
		model.CategoryGPU:       {0.30, 0.50},
		model.CategoryCPU:       {0.12, 0.30},
		model.CategoryMainboard: {0.06, 0.18},
		model.CategoryRAM:       {0.04, 0.12},
		model.CategoryDisk:      {0.03, 0.10},
		model.CategoryPower:     {0.03, 0.10},
		model.CategoryCooling:   {0.01, 0.06},
		model.CategoryCase:      {0.02, 0.08},
		model.CategoryFan:       {0.005, 0.03},
		model.CategoryMonitor:   {0.10, 0.25},
	},
	UsageWork: {
		model.CategoryGPU:       {0.08, 0.25},
		model.CategoryCPU:       {0.22, 0.45},
		model.CategoryMainboard: {0.08, 0.20},
		model.CategoryRAM:       {0.08, 0.20},
		model.CategoryDisk:      {0.06, 0.16},
		model.CategoryPower:     {0.03, 0.09},
		model.CategoryCooling:   {0.01, 0.06},
		model.CategoryCase:      {0.02, 0.08},
		model.CategoryFan:       {0.005, 0.03},
		model.CategoryMonitor:   {0.10, 0.25},
	},
	UsageStreaming: {
		model.CategoryGPU:       {0.22, 0.45},
		model.CategoryCPU:       {0.15, 0.35},
		model.CategoryMainboard: {0.06, 0.18},
		model.CategoryRAM:       {0.05, 0.15},
		model.CategoryDisk:      {0.04, 0.12},
		model.CategoryPower:     {0.04, 0.11},
		model.CategoryCooling:   {0.01, 0.06},
		model.CategoryCase:      {0.02, 0.08},
		model.CategoryFan:       {0.005, 0.03},
		model.CategoryMonitor:   {0.10, 0.25},
	},
}

// priceTolerance widens the upper price bound. GPU and CPU get extra headroom
// so the model can propose one performance tier up.
func priceTolerance(cat model.Category) float64 {
	switch cat {
	case model.CategoryGPU, model.CategoryCPU:
		return 1.3
	default:
		return 1.1
	}
}

// Retrieve produces the bounded candidate list of active hardware for a
// generation request: budget-window filtering per category, a two-cheapest
// fallback so no category with stock comes back empty, and deterministic
// down-sampling to bound prompt size. Pure read, no side effects.
func (b *Builder) Retrieve(ctx context.Context, budget float64, usage Usage, extras ...model.Category) ([]model.Candidate, error) {
	if budget <= 0 {
		return nil, eris.New("builder: budget must be positive")
	}
	windows, ok := ratioProfiles[usage]
	if !ok {
		windows = ratioProfiles[UsageGaming]
	}

	categories := append(model.RequiredCategories(), extras...)

	var out []model.Candidate
	for _, cat := range categories {
		items, err := b.catalog.ListHardware(ctx, store.HardwareFilter{
			Category: cat,
			Status:   model.HardwareActive,
		})
		if err != nil {
			return nil, eris.Wrapf(err, "builder: list %s candidates", cat)
		}
		if len(items) == 0 {
			continue
		}

		sortByPrice(items)

		win := windows[cat]
		upper := win.Max * budget * priceTolerance(cat)
		lower := win.Min * budget * 0.4

		kept := items[:0:0]
		for _, it := range items {
			if it.Price > upper || it.Price < lower {
				continue
			}
			kept = append(kept, it)
		}

		// Never offer an empty category while stock exists: fall back to the
		// two cheapest items.
		if len(kept) == 0 {
			n := 2
			if len(items) < n {
				n = len(items)
			}
			kept = items[:n]
		}

		for _, it := range downSample(kept, b.opts.MaxCandidates) {
			out = append(out, model.Candidate{
				ID:       it.ID,
				Category: it.Category,
				Brand:    it.Brand,
				Model:    it.Model,
				Price:    it.Price,
				Specs:    it.Specs,
			})
		}
	}
	return out, nil
}

// sortByPrice orders items price ascending with ID as the tiebreak so the
// down-sampling step is deterministic.
func sortByPrice(items []model.HardwareItem) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].Price != items[j].Price {
			return items[i].Price < items[j].Price
		}
		return items[i].ID < items[j].ID
	})
}

// downSample keeps at most max items at evenly spaced indices of the sorted
// input, preserving the cheapest and the most expensive.
func downSample(items []model.HardwareItem, max int) []model.HardwareItem {
	n := len(items)
	if n <= max {
		return items
	}
	if max <= 1 {
		return items[:1]
	}

	out := make([]model.HardwareItem, 0, max)
	prev := -1
	for i := 0; i < max; i++ {
		idx := i * (n - 1) / (max - 1)
		if idx == prev {
			continue
		}
		out = append(out, items[idx])
		prev = idx
	}
	return out
}

// References surfaces up to MaxReferences published, community-endorsed builds
// whose total price falls within ±20% of the budget, most liked first. Item-id
// maps stay unresolved; they serve as stylistic precedent only.
func (b *Builder) References(ctx context.Context, budget float64) ([]model.ReferenceBuild, error) {
	builds, err := b.catalog.ListReferenceBuilds(ctx, budget*0.8, budget*1.2, b.opts.MaxReferences)
	if err != nil {
		return nil, eris.Wrap(err, "builder: list reference builds")
	}

	refs := make([]model.ReferenceBuild, 0, len(builds))
	for _, bc := range builds {
		refs = append(refs, model.ReferenceBuild{
			Title:      bc.Title,
			TotalPrice: bc.TotalPrice,
			Items:      bc.Items,
		})
	}
	return refs, nil
}
