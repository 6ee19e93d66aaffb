// Package importer loads supplier price lists from xlsx workbooks into the
// hardware catalog, recording price history for items whose price moved.
package importer

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/rigforge/rigforge/internal/model"
)

// Manifest maps workbook sheets onto catalog categories and columns. Supplier
// workbooks differ in layout, so the mapping ships next to the workbook
// instead of being hardcoded.
type Manifest struct {
	Sheets []SheetMapping `yaml:"sheets"`
}

// SheetMapping describes one sheet of the workbook.
type SheetMapping struct {
	Name     string         `yaml:"name"`
	Category model.Category `yaml:"category"`
	// HeaderRows counts leading rows to skip. Defaults to 1.
	HeaderRows *int `yaml:"headerRows,omitempty"`
	Columns    struct {
		Brand int `yaml:"brand"`
		Model int `yaml:"model"`
		Price int `yaml:"price"`
	} `yaml:"columns"`
	// Specs maps spec keys to column indexes, e.g. vram: 3.
	Specs map[string]int `yaml:"specs,omitempty"`
}

func (m SheetMapping) headerRows() int {
	if m.HeaderRows == nil {
		return 1
	}
	return *m.HeaderRows
}

// ParseManifest decodes and validates a manifest document.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, eris.Wrap(err, "importer: parse manifest")
	}
	if len(m.Sheets) == 0 {
		return nil, eris.New("importer: manifest has no sheets")
	}
	for _, sheet := range m.Sheets {
		if sheet.Name == "" {
			return nil, eris.New("importer: sheet mapping missing name")
		}
		if !sheet.Category.Valid() {
			return nil, eris.Errorf("importer: sheet %q has unknown category %q", sheet.Name, sheet.Category)
		}
	}
	return &m, nil
}

// LoadManifest reads a manifest from disk.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "importer: read manifest %s", path)
	}
	return ParseManifest(data)
}
