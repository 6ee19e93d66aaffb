// Package store defines the persistence interface for the platform and its
// Postgres and SQLite implementations.
package store

import (
	"context"
	"time"

	"github.com/rigforge/rigforge/internal/model"
)

// HardwareFilter narrows ListHardware results.
type HardwareFilter struct {
	Category model.Category       `json:"category,omitempty"`
	Status   model.HardwareStatus `json:"status,omitempty"`
	MinPrice float64              `json:"minPrice,omitempty"`
	MaxPrice float64              `json:"maxPrice,omitempty"`
	Limit    int                  `json:"limit,omitempty"`
	Offset   int                  `json:"offset,omitempty"`
}

// BuildFilter narrows ListBuilds results.
type BuildFilter struct {
	Status model.BuildStatus `json:"status,omitempty"`
	UserID string            `json:"userId,omitempty"`
	Limit  int               `json:"limit,omitempty"`
	Offset int               `json:"offset,omitempty"`
}

// UsedFilter narrows ListUsedItems results.
type UsedFilter struct {
	Status   model.UsedItemStatus `json:"status,omitempty"`
	Category model.Category       `json:"category,omitempty"`
	SellerID string               `json:"sellerId,omitempty"`
	Limit    int                  `json:"limit,omitempty"`
	Offset   int                  `json:"offset,omitempty"`
}

// StatField names one DailyStat counter for BumpDailyStat.
type StatField string

const (
	StatAIGenerations StatField = "ai_generations"
	StatNewBuilds     StatField = "new_builds"
	StatNewUsers      StatField = "new_users"
)

// Store is the persistence interface for the platform. Both PostgresStore and
// SQLiteStore implement it; services depend on narrower views of it.
type Store interface {
	// Hardware catalog
	CreateHardware(ctx context.Context, item *model.HardwareItem) error
	GetHardware(ctx context.Context, id string) (*model.HardwareItem, error)
	UpdateHardware(ctx context.Context, item *model.HardwareItem) error
	DeleteHardware(ctx context.Context, id string) error
	ListHardware(ctx context.Context, filter HardwareFilter) ([]model.HardwareItem, error)
	UpsertHardware(ctx context.Context, item *model.HardwareItem) error

	// Price history
	LatestPriceChange(ctx context.Context, hardwareID string) (*model.PriceChange, error)
	InsertPriceChange(ctx context.Context, pc *model.PriceChange) error
	UpdatePriceChange(ctx context.Context, pc *model.PriceChange) error
	ListPriceChanges(ctx context.Context, hardwareID string, limit int) ([]model.PriceChange, error)

	// Build configurations
	CreateBuild(ctx context.Context, b *model.BuildConfig) error
	GetBuild(ctx context.Context, id string) (*model.BuildConfig, error)
	UpdateBuild(ctx context.Context, b *model.BuildConfig) error
	DeleteBuild(ctx context.Context, id string) error
	ListBuilds(ctx context.Context, filter BuildFilter) ([]model.BuildConfig, error)
	IncrementBuildViews(ctx context.Context, id string) error
	IncrementBuildLikes(ctx context.Context, id string) error
	ListReferenceBuilds(ctx context.Context, minPrice, maxPrice float64, limit int) ([]model.BuildConfig, error)

	// Used marketplace
	CreateUsedItem(ctx context.Context, u *model.UsedItem) error
	GetUsedItem(ctx context.Context, id string) (*model.UsedItem, error)
	UpdateUsedItem(ctx context.Context, u *model.UsedItem) error
	ListUsedItems(ctx context.Context, filter UsedFilter) ([]model.UsedItem, error)

	// Users
	CreateUser(ctx context.Context, u *model.User) error
	GetUser(ctx context.Context, id string) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	GetUserByMobile(ctx context.Context, mobile string) (*model.User, error)
	UpdateUserLogin(ctx context.Context, id string, at time.Time) error
	IncrementInviteCount(ctx context.Context, userID string) error

	// Invitation codes
	CreateInvitation(ctx context.Context, inv *model.InvitationCode) error
	GetInvitation(ctx context.Context, code string) (*model.InvitationCode, error)
	ConsumeInvitation(ctx context.Context, code string) error

	// Verification codes
	InsertVerificationCode(ctx context.Context, vc *model.VerificationCode) error
	LatestVerificationCode(ctx context.Context, destination string, channel model.VerificationChannel) (*model.VerificationCode, error)
	DeleteVerificationCodes(ctx context.Context, destination string, channel model.VerificationChannel) error

	// Orders
	CreateOrder(ctx context.Context, o *model.Order) error
	GetOrder(ctx context.Context, id string) (*model.Order, error)
	MarkOrderPaid(ctx context.Context, id string, at time.Time) error

	// Chat
	UpsertChatSession(ctx context.Context, s *model.ChatSession) error
	GetChatSession(ctx context.Context, id string) (*model.ChatSession, error)
	ListChatSessions(ctx context.Context, status string, limit int) ([]model.ChatSession, error)
	InsertChatMessage(ctx context.Context, m *model.ChatMessage) error
	ListChatMessages(ctx context.Context, sessionID string, limit int) ([]model.ChatMessage, error)
	MarkSessionRead(ctx context.Context, sessionID string) error

	// Settings (opaque JSON documents keyed by name)
	GetSetting(ctx context.Context, key string) ([]byte, error)
	SetSetting(ctx context.Context, key string, value []byte) error

	// Daily stats
	BumpDailyStat(ctx context.Context, date string, field StatField) error
	GetDailyStats(ctx context.Context, from, to string) ([]model.DailyStat, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
