package models

import (
	"time"

	"gorm.io/gorm"
)

// AvailabilityStatus tracks whether an episode's source URL is reachable.
type AvailabilityStatus string

const (
	AvailabilityUnknown     AvailabilityStatus = "unknown"
	AvailabilityAvailable   AvailabilityStatus = "available"
	AvailabilityUnavailable AvailabilityStatus = "unavailable"
	AvailabilityGone        AvailabilityStatus = "gone"
)

// Episode is one downloadable item under a Work. Czech Radio streams
// appear and disappear within days, so an Episode outlives its URL:
// unreachable episodes age through status transitions and keep their
// alias and probe history instead of being deleted.
type Episode struct {
	gorm.Model
	WorkID uint `json:"work_id" gorm:"not null;index"`

	// ExtID is the upstream identifier (typically the mujrozhlas UUID).
	// Unique when present; episodes found only by scraping have none.
	ExtID string `json:"ext_id" gorm:"index:idx_episodes_ext_id,unique,where:ext_id <> ''"`

	Title         string     `json:"title" gorm:"not null"`
	EpisodeNumber *int       `json:"episode_number"`
	PublishedAt   *time.Time `json:"published_at"`

	// URL is the currently preferred source URL. Every URL the episode
	// has ever been observed at lives in Aliases.
	URL        string `json:"url" gorm:"not null;index"`
	DurationMs int64  `json:"duration_ms"`
	Summary    string `json:"summary" gorm:"type:text"`

	AvailabilityStatus AvailabilityStatus `json:"availability_status" gorm:"default:'unknown';index"`
	FirstSeenAt        time.Time          `json:"first_seen_at"`
	LastSeenAt         time.Time          `json:"last_seen_at"`
	LastCheckedAt      *time.Time         `json:"last_checked_at"`

	// Priority orders download jobs; higher fetches first.
	Priority        int    `json:"priority" gorm:"default:0;index"`
	DiscoverySource string `json:"discovery_source"`

	Aliases []EpisodeAlias `json:"aliases,omitempty" gorm:"foreignKey:EpisodeID"`
	Assets  []Asset        `json:"assets,omitempty" gorm:"foreignKey:EpisodeID"`
	Jobs    []DownloadJob  `json:"jobs,omitempty" gorm:"foreignKey:EpisodeID"`
}

// IsGone reports whether the episode was confirmed permanently unavailable.
func (e *Episode) IsGone() bool {
	return e.AvailabilityStatus == AvailabilityGone
}

// MarkSeen stamps the episode as observed by discovery at t.
func (e *Episode) MarkSeen(t time.Time) {
	if e.FirstSeenAt.IsZero() {
		e.FirstSeenAt = t
	}
	if t.After(e.LastSeenAt) {
		e.LastSeenAt = t
	}
}

// EpisodeAlias is a secondary URL or external id under which the same
// logical Episode has been observed. Rows are append-only; re-airs and
// URL variants accumulate here.
type EpisodeAlias struct {
	gorm.Model
	EpisodeID       uint   `json:"episode_id" gorm:"not null;uniqueIndex:idx_aliases_episode_url"`
	URL             string `json:"url" gorm:"not null;uniqueIndex:idx_aliases_episode_url"`
	ExtID           string `json:"ext_id"`
	DiscoverySource string `json:"discovery_source"`
}

// AvailabilityLog is an append-only record of one availability probe.
type AvailabilityLog struct {
	ID           uint      `json:"id" gorm:"primarykey"`
	EpisodeID    uint      `json:"episode_id" gorm:"not null;index"`
	CheckedAt    time.Time `json:"checked_at" gorm:"not null"`
	WasAvailable bool      `json:"was_available"`
	HTTPStatus   int       `json:"http_status"`
}

// TableName specifies the table name for GORM.
func (AvailabilityLog) TableName() string {
	return "availability_log"
}
