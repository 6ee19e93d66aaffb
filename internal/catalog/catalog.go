// Package catalog manages the hardware inventory: CRUD over the store plus
// price-history logging with merge-window collapsing.
package catalog

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/rigforge/rigforge/internal/model"
	"github.com/rigforge/rigforge/internal/store"
)

// mergeWindow is how long consecutive price changes to the same item collapse
// into a single history row. Supplier lists often arrive in bursts; without
// merging, one import would spam the history.
const mergeWindow = 2 * time.Hour

// Store is the slice of the persistence layer the catalog needs.
type Store interface {
	CreateHardware(ctx context.Context, item *model.HardwareItem) error
	GetHardware(ctx context.Context, id string) (*model.HardwareItem, error)
	UpdateHardware(ctx context.Context, item *model.HardwareItem) error
	DeleteHardware(ctx context.Context, id string) error
	ListHardware(ctx context.Context, filter store.HardwareFilter) ([]model.HardwareItem, error)
	LatestPriceChange(ctx context.Context, hardwareID string) (*model.PriceChange, error)
	InsertPriceChange(ctx context.Context, pc *model.PriceChange) error
	UpdatePriceChange(ctx context.Context, pc *model.PriceChange) error
	ListPriceChanges(ctx context.Context, hardwareID string, limit int) ([]model.PriceChange, error)
}

// Service wraps hardware catalog operations.
type Service struct {
	store Store
}

// New creates a catalog Service.
func New(st Store) *Service {
	return &Service{store: st}
}

// Create inserts a new catalog item, assigning an id and timestamps.
func (s *Service) Create(ctx context.Context, item *model.HardwareItem) error {
	if !item.Category.Valid() {
		return eris.Errorf("catalog: unknown category %q", item.Category)
	}
	if item.Price <= 0 {
		return eris.New("catalog: price must be positive")
	}

	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	if item.Status == "" {
		item.Status = model.HardwareActive
	}
	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now

	return s.store.CreateHardware(ctx, item)
}

// Get returns one item or nil when absent.
func (s *Service) Get(ctx context.Context, id string) (*model.HardwareItem, error) {
	return s.store.GetHardware(ctx, id)
}

// List returns items matching the filter.
func (s *Service) List(ctx context.Context, filter store.HardwareFilter) ([]model.HardwareItem, error) {
	return s.store.ListHardware(ctx, filter)
}

// Update replaces the item's mutable fields. Price changes go through
// UpdatePrice so the history stays consistent.
func (s *Service) Update(ctx context.Context, item *model.HardwareItem) error {
	if !item.Category.Valid() {
		return eris.Errorf("catalog: unknown category %q", item.Category)
	}

	existing, err := s.store.GetHardware(ctx, item.ID)
	if err != nil {
		return err
	}
	if existing == nil {
		return eris.Errorf("catalog: hardware not found: %s", item.ID)
	}

	if item.Price != existing.Price {
		if err := s.logPriceChange(ctx, existing, item.Price); err != nil {
			return err
		}
		prev := existing.Price
		item.PreviousPrice = &prev
	}

	return s.store.UpdateHardware(ctx, item)
}

// UpdatePrice changes only the price of an item, recording the change.
func (s *Service) UpdatePrice(ctx context.Context, id string, newPrice float64) (*model.HardwareItem, error) {
	if newPrice <= 0 {
		return nil, eris.New("catalog: price must be positive")
	}

	item, err := s.store.GetHardware(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, eris.Errorf("catalog: hardware not found: %s", id)
	}
	if item.Price == newPrice {
		return item, nil
	}

	if err := s.logPriceChange(ctx, item, newPrice); err != nil {
		return nil, err
	}

	prev := item.Price
	item.PreviousPrice = &prev
	item.Price = newPrice
	item.IsDiscount = newPrice < prev
	if err := s.store.UpdateHardware(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// logPriceChange records a price mutation. A change landing within the merge
// window of the item's latest history row updates that row in place, keeping
// its original old price so the row spans the whole burst.
func (s *Service) logPriceChange(ctx context.Context, item *model.HardwareItem, newPrice float64) error {
	now := time.Now().UTC()

	latest, err := s.store.LatestPriceChange(ctx, item.ID)
	if err != nil {
		return err
	}

	if latest != nil && now.Sub(latest.ChangedAt) < mergeWindow {
		latest.NewPrice = newPrice
		latest.ChangeAmount = newPrice - latest.OldPrice
		latest.ChangePercent = changePercent(latest.OldPrice, newPrice)
		latest.ChangedAt = now
		return s.store.UpdatePriceChange(ctx, latest)
	}

	pc := &model.PriceChange{
		ID:            uuid.New().String(),
		HardwareID:    item.ID,
		HardwareName:  item.Name(),
		Category:      item.Category,
		OldPrice:      item.Price,
		NewPrice:      newPrice,
		ChangeAmount:  newPrice - item.Price,
		ChangePercent: changePercent(item.Price, newPrice),
		ChangedAt:     now,
	}
	zap.L().Info("price change",
		zap.String("hardware_id", item.ID),
		zap.Float64("old_price", pc.OldPrice),
		zap.Float64("new_price", pc.NewPrice),
	)
	return s.store.InsertPriceChange(ctx, pc)
}

func changePercent(oldPrice, newPrice float64) float64 {
	if oldPrice == 0 {
		return 0
	}
	return (newPrice - oldPrice) / oldPrice * 100
}

// Archive marks an item archived so retrieval and listings skip it.
func (s *Service) Archive(ctx context.Context, id string) error {
	item, err := s.store.GetHardware(ctx, id)
	if err != nil {
		return err
	}
	if item == nil {
		return eris.Errorf("catalog: hardware not found: %s", id)
	}
	item.Status = model.HardwareArchived
	return s.store.UpdateHardware(ctx, item)
}

// Delete removes an item permanently.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.DeleteHardware(ctx, id)
}

// PriceHistory returns recent price changes for an item, newest first.
func (s *Service) PriceHistory(ctx context.Context, hardwareID string, limit int) ([]model.PriceChange, error) {
	return s.store.ListPriceChanges(ctx, hardwareID, limit)
}
