package importer

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rigforge/rigforge/internal/model"
)

// Store is the slice of persistence the importer needs.
type Store interface {
	GetHardware(ctx context.Context, id string) (*model.HardwareItem, error)
	UpsertHardware(ctx context.Context, item *model.HardwareItem) error
}

// Catalog routes price changes through the service layer so history rows and
// discount flags stay consistent with admin-driven edits.
type Catalog interface {
	UpdatePrice(ctx context.Context, id string, newPrice float64) (*model.HardwareItem, error)
}

// BulkWriter is implemented by the Postgres store. New items are COPY-loaded
// in batches when available; stores without it fall back to per-row upserts.
type BulkWriter interface {
	BulkInsertHardware(ctx context.Context, items []model.HardwareItem) (int64, error)
}

// Options tunes the import run.
type Options struct {
	MaxConcurrentSheets int // default 4
	BatchSize           int // default 200
}

func (o Options) withDefaults() Options {
	if o.MaxConcurrentSheets <= 0 {
		o.MaxConcurrentSheets = 4
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 200
	}
	return o
}

// RowError records one rejected workbook row. Row is 1-based as shown in
// spreadsheet software.
type RowError struct {
	Sheet string `json:"sheet"`
	Row   int    `json:"row"`
	Err   string `json:"error"`
}

// Report summarizes an import run.
type Report struct {
	mu sync.Mutex

	SheetsProcessed int        `json:"sheetsProcessed"`
	Created         int        `json:"created"`
	Updated         int        `json:"updated"`
	PriceChanges    int        `json:"priceChanges"`
	Errors          []RowError `json:"errors,omitempty"`
}

func (r *Report) addError(sheet string, row int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Errors = append(r.Errors, RowError{Sheet: sheet, Row: row, Err: err.Error()})
}

// Importer loads supplier price lists into the catalog.
type Importer struct {
	store   Store
	catalog Catalog
	opts    Options
}

// New creates an Importer.
func New(st Store, cat Catalog, opts Options) *Importer {
	return &Importer{store: st, catalog: cat, opts: opts.withDefaults()}
}

// ImportFile opens a workbook and runs the import.
func (imp *Importer) ImportFile(ctx context.Context, path string, manifest *Manifest) (*Report, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "importer: open workbook %s", path)
	}
	return imp.Import(ctx, f, manifest)
}

// Import processes every mapped sheet of the workbook. Sheets run
// concurrently; row-level failures are collected in the report instead of
// aborting the run.
func (imp *Importer) Import(ctx context.Context, f *xlsx.File, manifest *Manifest) (*Report, error) {
	report := &Report{}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(imp.opts.MaxConcurrentSheets)
	for _, mapping := range manifest.Sheets {
		sheet, ok := f.Sheet[mapping.Name]
		if !ok {
			report.addError(mapping.Name, 0, eris.Errorf("sheet %q not found in workbook", mapping.Name))
			continue
		}
		g.Go(func() error {
			return imp.importSheet(ctx, sheet, mapping, report)
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}

	report.mu.Lock()
	defer report.mu.Unlock()
	zap.L().Info("price list imported",
		zap.Int("sheets", report.SheetsProcessed),
		zap.Int("created", report.Created),
		zap.Int("updated", report.Updated),
		zap.Int("price_changes", report.PriceChanges),
		zap.Int("errors", len(report.Errors)),
	)
	return report, nil
}

func (imp *Importer) importSheet(ctx context.Context, sheet *xlsx.Sheet, mapping SheetMapping, report *Report) error {
	var created, updated, priceChanges int
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
			created += int(n)
		} else {
			for i := range pending {
				if err := imp.store.UpsertHardware(ctx, &pending[i]); err != nil {
					return err
				}
				created++
			}
		}
		pending = pending[:0]
		return nil
	}

	for i, row := range sheet.Rows {
		if i < mapping.headerRows() {
			continue
		}
		if ctx.Err() != nil {
			return eris.Wrap(ctx.Err(), "importer: cancelled")
		}

		item, err := rowToItem(row, mapping)
		if err != nil {
			report.addError(mapping.Name, i+1, err)
			continue
		}
		if item == nil {
			continue // blank row
		}

		existing, err := imp.store.GetHardware(ctx, item.ID)
		if err != nil {
			report.addError(mapping.Name, i+1, err)
			continue
		}
		if existing == nil {
			pending = append(pending, *item)
			if len(pending) >= imp.opts.BatchSize {
				if err := flush(); err != nil {
					return err
				}
			}
			continue
		}

		// Known item: refresh descriptive fields first, then route the
		// price through the catalog so history rows get written.
		newPrice := item.Price
		changed := mergeItem(existing, item)
		if changed {
			if err := imp.store.UpsertHardware(ctx, existing); err != nil {
				report.addError(mapping.Name, i+1, err)
				continue
			}
			updated++
		}
		if newPrice != existing.Price {
			if _, err := imp.catalog.UpdatePrice(ctx, existing.ID, newPrice); err != nil {
				report.addError(mapping.Name, i+1, err)
				continue
			}
			priceChanges++
		}
	}
	if err := flush(); err != nil {
		return err
	}

	report.mu.Lock()
	report.SheetsProcessed++
	report.Created += created
	report.Updated += updated
	report.PriceChanges += priceChanges
	report.mu.Unlock()
	return nil
}

// mergeItem copies descriptive fields from the parsed row onto the stored
// item, leaving price and lifecycle state alone. Reports whether anything
// changed.
func mergeItem(existing, parsed *model.HardwareItem) bool {
	changed := false
	for k, v := range parsed.Specs {
		if existing.Specs == nil {
			existing.Specs = map[string]any{}
		}
		if existing.Specs[k] != v {
			existing.Specs[k] = v
			changed = true
		}
	}
	if changed {
		existing.UpdatedAt = time.Now().UTC()
	}
	return changed
}

// hardwareNamespace seeds deterministic ids so re-importing the same list is
// idempotent.
var hardwareNamespace = uuid.MustParse("8a9d5cf0-41f2-4b63-9a0e-2d7c66a1c3f5")

func hardwareID(category model.Category, brand, mdl string) string {
	key := strings.ToLower(string(category) + "|" + brand + "|" + mdl)
	return uuid.NewSHA1(hardwareNamespace, []byte(key)).String()
}

func rowToItem(row *xlsx.Row, mapping SheetMapping) (*model.HardwareItem, error) {
	cell := func(idx int) string {
		if idx < 0 || idx >= len(row.Cells) {
			return ""
		}
		return strings.TrimSpace(row.Cells[idx].String())
	}

	brand := cell(mapping.Columns.Brand)
	mdl := cell(mapping.Columns.Model)
	priceRaw := cell(mapping.Columns.Price)
	if brand == "" && mdl == "" && priceRaw == "" {
		return nil, nil
	}
	if mdl == "" {
		return nil, eris.New("model column is empty")
	}

	price, err := parsePrice(priceRaw)
	if err != nil {
		return nil, err
	}

	var specs map[string]any
	for key, idx := range mapping.Specs {
		if v := cell(idx); v != "" {
			if specs == nil {
				specs = map[string]any{}
			}
			specs[key] = v
		}
	}

	now := time.Now().UTC()
	return &model.HardwareItem{
		ID:        hardwareID(mapping.Category, brand, mdl),
		Category:  mapping.Category,
		Brand:     brand,
		Model:     mdl,
		Price:     price,
		Status:    model.HardwareActive,
		Specs:     specs,
		IsNew:     true,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// parsePrice accepts plain numbers plus the currency decorations supplier
// sheets tend to carry (¥1,299.00).
func parsePrice(raw string) (float64, error) {
	cleaned := strings.NewReplacer("¥", "", "￥", "", ",", "", " ", "").Replace(raw)
	if cleaned == "" {
		return 0, eris.New("price column is empty")
	}
	price, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, eris.Errorf("unparseable price %q", raw)
	}
	if price <= 0 {
		return 0, eris.Errorf("price must be positive, got %v", price)
	}
	return price, nil
}
