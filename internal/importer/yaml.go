package importer

import (
	"context"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/rigforge/rigforge/internal/model"
)

// catalogDoc is the YAML catalog format: a flat list of items. It suits
// hand-maintained seed catalogs where a supplier workbook is overkill.
type catalogDoc struct {
	Items []catalogEntry `yaml:"items"`
}

type catalogEntry struct {
	Category string         `yaml:"category"`
	Brand    string         `yaml:"brand"`
	Model    string         `yaml:"model"`
	Price    float64        `yaml:"price"`
	Specs    map[string]any `yaml:"specs"`
}

// ImportCatalogFile loads a YAML catalog and applies it with the same
// semantics as a workbook import: new items are created, known items get spec
// refreshes and catalog-routed price updates.
func (imp *Importer) ImportCatalogFile(ctx context.Context, path string) (*Report, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "importer: read catalog %s", path)
	}
	return imp.ImportCatalog(ctx, raw)
}

// ImportCatalog applies a YAML catalog document. Entry-level failures are
// collected in the report instead of aborting the run.
func (imp *Importer) ImportCatalog(ctx context.Context, raw []byte) (*Report, error) {
	var doc catalogDoc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, eris.Wrap(err, "importer: parse catalog")
	}
	if len(doc.Items) == 0 {
		return nil, eris.New("importer: catalog lists no items")
	}

	report := &Report{}
	var pending []model.HardwareItem

	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		if bulk, ok := imp.store.(BulkWriter); ok {
			n, err := bulk.BulkInsertHardware(ctx, pending)
			if err != nil {
				return err
			}
			report.Created += int(n)
		} else {
			for i := range pending {
				if err := imp.store.UpsertHardware(ctx, &pending[i]); err != nil {
					return err
				}
				report.Created++
			}
		}
		pending = pending[:0]
		return nil
	}

	for i, entry := range doc.Items {
		if ctx.Err() != nil {
			return report, eris.Wrap(ctx.Err(), "importer: cancelled")
		}

		item, err := entryToItem(entry)
		if err != nil {
			report.addError("catalog", i+1, err)
			continue
		}

		existing, err := imp.store.GetHardware(ctx, item.ID)
		if err != nil {
			report.addError("catalog", i+1, err)
			continue
		}
		if existing == nil {
			pending = append(pending, *item)
			if len(pending) >= imp.opts.BatchSize {
				if err := flush(); err != nil {
					return report, err
				}
			}
			continue
		}

		newPrice := item.Price
		if mergeItem(existing, item) {
			if err := imp.store.UpsertHardware(ctx, existing); err != nil {
				report.addError("catalog", i+1, err)
				continue
			}
			report.Updated++
		}
		if newPrice != existing.Price {
			if _, err := imp.catalog.UpdatePrice(ctx, existing.ID, newPrice); err != nil {
				report.addError("catalog", i+1, err)
				continue
			}
			report.PriceChanges++
		}
	}
	if err := flush(); err != nil {
		return report, err
	}

	zap.L().Info("catalog imported",
		zap.Int("created", report.Created),
		zap.Int("updated", report.Updated),
		zap.Int("price_changes", report.PriceChanges),
		zap.Int("errors", len(report.Errors)),
	)
	return report, nil
}

func entryToItem(e catalogEntry) (*model.HardwareItem, error) {
	if e.Model == "" {
		return nil, eris.New("model is empty")
	}
	category := model.Category(e.Category)
	if !category.Valid() {
		return nil, eris.Errorf("unknown category %q", e.Category)
	}
	if e.Price <= 0 {
		return nil, eris.Errorf("price must be positive, got %v", e.Price)
	}

	now := time.Now().UTC()
	return &model.HardwareItem{
		ID:        hardwareID(category, e.Brand, e.Model),
		Category:  category,
		Brand:     e.Brand,
		Model:     e.Model,
		Price:     e.Price,
		Status:    model.HardwareActive,
		Specs:     e.Specs,
		IsNew:     true,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
