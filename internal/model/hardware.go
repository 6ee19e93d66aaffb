// Package model defines the domain types shared across the catalog, store,
// builder and HTTP layers.
package model

import "time"

// Category identifies a hardware slot in a build.
type Category string

const (
	CategoryCPU       Category = "cpu"
	CategoryGPU       Category = "gpu"
	CategoryMainboard Category = "mainboard"
	CategoryRAM       Category = "ram"
	CategoryDisk      Category = "disk"
	CategoryPower     Category = "power"
	CategoryCooling   Category = "cooling"
	CategoryCase      Category = "case"
	CategoryFan       Category = "fan"
	CategoryMonitor   Category = "monitor"
)

// AllCategories lists every known category in display order.
func AllCategories() []Category {
	return []Category{
		CategoryCPU, CategoryGPU, CategoryMainboard, CategoryRAM,
		CategoryDisk, CategoryPower, CategoryCooling, CategoryCase,
		CategoryFan, CategoryMonitor,
	}
}

// RequiredCategories lists the slots every complete build must fill.
// Fans and monitors are optional extras.
func RequiredCategories() []Category {
	return []Category{
		CategoryCPU, CategoryGPU, CategoryMainboard, CategoryRAM,
		CategoryDisk, CategoryPower, CategoryCooling, CategoryCase,
	}
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	for _, k := range AllCategories() {
		if c == k {
			return true
		}
	}
	return false
}

// HardwareStatus is the lifecycle state of a catalog item.
type HardwareStatus string

const (
	HardwareActive   HardwareStatus = "active"
	HardwareArchived HardwareStatus = "archived"
)

// HardwareItem is a catalog entry. Specs is an opaque key-value map
// (socket, memoryType, wattage, ...) persisted as JSON.
type HardwareItem struct {
	ID            string         `json:"id"`
	Category      Category       `json:"category"`
	Brand         string         `json:"brand"`
	Model         string         `json:"model"`
	Price         float64        `json:"price"`
	PreviousPrice *float64       `json:"previousPrice,omitempty"`
	Status        HardwareStatus `json:"status"`
	SortOrder     int            `json:"sortOrder"`
	Specs         map[string]any `json:"specs"`
	Image         string         `json:"image,omitempty"`
	IsDiscount    bool           `json:"isDiscount"`
	IsRecommended bool           `json:"isRecommended"`
	IsNew         bool           `json:"isNew"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

// Name returns the display name used in price-history rows and prompts.
func (h HardwareItem) Name() string {
	if h.Brand == "" {
		return h.Model
	}
	return h.Brand + " " + h.Model
}

// PriceChange records one price mutation of a catalog item. Consecutive
// changes to the same item inside the merge window collapse into one row.
type PriceChange struct {
	ID            string    `json:"id"`
	HardwareID    string    `json:"hardwareId"`
	HardwareName  string    `json:"hardwareName"`
	Category      Category  `json:"category"`
	OldPrice      float64   `json:"oldPrice"`
	NewPrice      float64   `json:"newPrice"`
	ChangeAmount  float64   `json:"changeAmount"`
	ChangePercent float64   `json:"changePercent"`
	ChangedAt     time.Time `json:"changedAt"`
}

// Candidate is one retrieval result offered to the language model. It is a
// skeletal projection of a HardwareItem; it only lives for the duration of a
// single generation request.
type Candidate struct {
	ID       string         `json:"id"`
	Category Category       `json:"category"`
	Brand    string         `json:"brand"`
	Model    string         `json:"model"`
	Price    float64        `json:"price"`
	Specs    map[string]any `json:"specs,omitempty"`
}
