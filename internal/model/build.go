package model

import "time"

// BuildStatus is the publication state of a build configuration.
type BuildStatus string

const (
	BuildDraft     BuildStatus = "draft"
	BuildPublished BuildStatus = "published"
	BuildArchived  BuildStatus = "archived"
)

// BuildConfig is a user-assembled (or AI-generated then saved) machine
// configuration: one catalog item id per slot plus presentation metadata.
// Updates replace the full document.
type BuildConfig struct {
	ID            string              `json:"id"`
	UserID        string              `json:"userId,omitempty"`
	UserName      string              `json:"userName,omitempty"`
	SerialNumber  string              `json:"serialNumber"`
	Title         string              `json:"title"`
	Description   string              `json:"description,omitempty"`
	Items         map[Category]string `json:"items"`
	TotalPrice    float64             `json:"totalPrice"`
	Status        BuildStatus         `json:"status"`
	Tags          []string            `json:"tags"`
	IsRecommended bool                `json:"isRecommended"`
	Views         int                 `json:"views"`
	Likes         int                 `json:"likes"`
	CreatedAt     time.Time           `json:"createdAt"`
	UpdatedAt     time.Time           `json:"updatedAt"`
}

// ReferenceBuild is the compact view of a published community build handed to
// the language model for stylistic grounding. Item ids stay unresolved.
type ReferenceBuild struct {
	Title      string              `json:"title"`
	TotalPrice float64             `json:"price"`
	Items      map[Category]string `json:"components"`
}

// GeneratedBuild is the reconciled output of one generation request. Every
// slot holds either the full, freshly-read catalog record or nil when the
// model referenced an id that no longer exists. TotalPrice is always the sum
// of the non-nil item prices; the model's self-reported total is discarded.
type GeneratedBuild struct {
	Items       map[Category]*HardwareItem `json:"items"`
	TotalPrice  float64                    `json:"totalPrice"`
	Description string                     `json:"description,omitempty"`
}
